package logging

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// NotifyHook forwards log events at or above a level to notification sinks,
// prefixed with the current cycle: "[1234] message".
//
// Backend failures are logged at debug on a separate logger and never
// surface to the caller.
type NotifyHook struct {
	min     zerolog.Level
	limiter *rate.Limiter
	debug   zerolog.Logger

	mu    sync.RWMutex
	sinks []Sink
	clock func() uint64

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewNotifyHook allows perMinute notifications per minute with a burst of the
// same size. perMinute <= 0 disables throttling.
func NewNotifyHook(min zerolog.Level, perMinute int, debug zerolog.Logger) *NotifyHook {
	lim := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &NotifyHook{min: min, limiter: lim, debug: debug}
}

func (h *NotifyHook) Add(s Sink) {
	if s == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// SetClock sets the cycle counter used for the message prefix.
func (h *NotifyHook) SetClock(fn func() uint64) {
	h.mu.Lock()
	h.clock = fn
	h.mu.Unlock()
}

func (h *NotifyHook) Sent() uint64    { return h.sent.Load() }
func (h *NotifyHook) Dropped() uint64 { return h.dropped.Load() }

func (h *NotifyHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level < h.min || level >= zerolog.NoLevel || msg == "" {
		return
	}
	h.mu.RLock()
	sinks := h.sinks
	clock := h.clock
	h.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}
	if !h.limiter.Allow() {
		h.dropped.Add(1)
		return
	}

	var tick uint64
	if clock != nil {
		tick = clock()
	}
	text := fmt.Sprintf("[%d] %s", tick, msg)
	h.sent.Add(1)
	for _, s := range sinks {
		if err := s.Notify(context.Background(), text); err != nil {
			h.debug.Debug().Err(err).Str("sink", s.Name()).Msg("notify failed")
		}
	}
}
