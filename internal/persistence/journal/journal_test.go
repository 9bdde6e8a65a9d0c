package journal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colony.ai/internal/colony"
)

func TestCycleLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewCycleLogger(dir)
	for tick := uint64(1); tick <= 3; tick++ {
		r := &colony.Report{RunID: "run", Tick: tick, Agents: int(tick)}
		r.Assigned = []colony.Assignment{{Agent: "a", Kind: colony.KindGather, Target: "src"}}
		require.NoError(t, l.WriteCycle(r))
	}
	require.NoError(t, l.Close())

	var got []uint64
	err := ReadCycles(dir, func(r *colony.Report) error {
		got = append(got, r.Tick)
		assert.Equal(t, "run", r.RunID)
		assert.Equal(t, colony.KindGather, r.Assigned[0].Kind)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, got)
}

func TestWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "cycles")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	require.NoError(t, w.Write(map[string]int{"tick": 1}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, w.Write(map[string]int{"tick": 2}))
	require.NoError(t, w.Close())

	files, err := ListFiles(dir, "cycles")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "cycles-2026-03-01-10.jsonl.zst", filepath.Base(files[0]))
	assert.Equal(t, "cycles-2026-03-01-11.jsonl.zst", filepath.Base(files[1]))

	var ticks []int
	for _, f := range files {
		require.NoError(t, ReadLines(f, func(line []byte) error {
			var v map[string]int
			if err := json.Unmarshal(line, &v); err != nil {
				return err
			}
			ticks = append(ticks, v["tick"])
			return nil
		}))
	}
	assert.Equal(t, []int{1, 2}, ticks)
}

func TestWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "cycles")
		w.now = func() time.Time { return fixed }
		require.NoError(t, w.Write(map[string]int{"tick": i}))
		require.NoError(t, w.Close())
	}
	files, err := ListFiles(dir, "cycles")
	require.NoError(t, err)
	require.Len(t, files, 1)
	n := 0
	require.NoError(t, ReadLines(files[0], func([]byte) error { n++; return nil }))
	assert.Equal(t, 2, n)
}

func TestNoteLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewNoteLogger(dir)
	assert.Equal(t, "journal", l.Name())
	require.NoError(t, l.Notify(context.Background(), "[12] couldn't spawn"))
	require.NoError(t, l.Close())

	files, err := ListFiles(dir, NotePrefix)
	require.NoError(t, err)
	require.Len(t, files, 1)
	var note Note
	require.NoError(t, ReadLines(files[0], func(line []byte) error { return json.Unmarshal(line, &note) }))
	assert.Equal(t, "[12] couldn't spawn", note.Text)
}

func TestListFiles_IgnoresOtherPrefixes(t *testing.T) {
	dir := t.TempDir()
	c := NewCycleLogger(dir)
	n := NewNoteLogger(dir)
	require.NoError(t, c.WriteCycle(&colony.Report{Tick: 1}))
	require.NoError(t, n.Notify(context.Background(), "x"))
	require.NoError(t, c.Close())
	require.NoError(t, n.Close())

	files, err := ListFiles(dir, CyclePrefix)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
