package journal

import (
	"context"
	"path/filepath"
	"time"

	"colony.ai/internal/colony"
)

const (
	CyclePrefix = "cycles"
	NotePrefix  = "notes"
)

// CycleLogger writes one JSONL entry per cycle report (compressed).
type CycleLogger struct{ w *JSONLZstdWriter }

func NewCycleLogger(dir string) *CycleLogger {
	return &CycleLogger{w: NewJSONLZstdWriter(filepath.Clean(dir), CyclePrefix)}
}

func (l *CycleLogger) WriteCycle(r *colony.Report) error { return l.w.Write(r) }
func (l *CycleLogger) Close() error                      { return l.w.Close() }

// Note is one delivered notification.
type Note struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// NoteLogger keeps the notification stream next to the cycle journal. It is
// a notification sink.
type NoteLogger struct{ w *JSONLZstdWriter }

func NewNoteLogger(dir string) *NoteLogger {
	return &NoteLogger{w: NewJSONLZstdWriter(filepath.Clean(dir), NotePrefix)}
}

func (l *NoteLogger) Name() string { return "journal" }

func (l *NoteLogger) Notify(_ context.Context, text string) error {
	return l.w.Write(Note{At: l.w.now().UTC(), Text: text})
}

func (l *NoteLogger) Close() error { return l.w.Close() }
