package logging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"colony.ai/internal/config"
	"colony.ai/internal/env"
)

// Sink is one notification backend.
type Sink interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// EnvSink delivers through the environment's own notify primitive.
type EnvSink struct {
	N env.Notifier
}

func (s EnvSink) Name() string { return "env" }

func (s EnvSink) Notify(_ context.Context, text string) error {
	if s.N == nil {
		return errors.New("no environment notifier")
	}
	s.N.Notify(text)
	return nil
}

// SlackSink posts to a Slack incoming webhook.
type SlackSink struct {
	WebhookURL string
	Timeout    time.Duration
}

func (s SlackSink) Name() string { return "slack" }

func (s SlackSink) Notify(ctx context.Context, text string) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return slack.PostWebhookContext(ctx, s.WebhookURL, &slack.WebhookMessage{Text: text})
}

// DiscordSink executes a Discord webhook. No bot token is needed.
type DiscordSink struct {
	session *discordgo.Session
	id      string
	token   string
}

func NewDiscordSink(id, token string) (*DiscordSink, error) {
	dg, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordSink{session: dg, id: id, token: token}, nil
}

func (s *DiscordSink) Name() string { return "discord" }

func (s *DiscordSink) Notify(ctx context.Context, text string) error {
	_, err := s.session.WebhookExecute(s.id, s.token, false, &discordgo.WebhookParams{Content: text},
		discordgo.WithContext(ctx))
	return err
}

// AsyncSink moves delivery off the calling goroutine. Messages are dropped
// when the buffer is full or the sink is closed.
type AsyncSink struct {
	inner Sink
	log   zerolog.Logger

	mu     sync.RWMutex // guards sends on ch against Close
	ch     chan string
	closed atomic.Bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewAsyncSink(inner Sink, buffer int, log zerolog.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = 16
	}
	a := &AsyncSink{inner: inner, log: log, ch: make(chan string, buffer)}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *AsyncSink) Name() string { return a.inner.Name() }

func (a *AsyncSink) Notify(_ context.Context, text string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed.Load() {
		return fmt.Errorf("%s: notification sink closed", a.inner.Name())
	}
	select {
	case a.ch <- text:
		return nil
	default:
		return fmt.Errorf("%s: notification queue full", a.inner.Name())
	}
}

func (a *AsyncSink) loop() {
	defer a.wg.Done()
	for text := range a.ch {
		if err := a.inner.Notify(context.Background(), text); err != nil {
			a.log.Debug().Err(err).Str("sink", a.inner.Name()).Msg("notify failed")
		}
	}
}

// Close drains queued messages and stops the worker.
func (a *AsyncSink) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed.Store(true)
		close(a.ch)
		a.mu.Unlock()
	})
	a.wg.Wait()
	return nil
}

// BuildSinks creates the backends named in cfg.Notify. Network backends are
// wrapped in an AsyncSink; the caller closes them.
func BuildSinks(cfg config.LogConfig, n env.Notifier, log zerolog.Logger) ([]Sink, error) {
	var out []Sink
	for _, name := range cfg.Notify {
		switch name {
		case "env":
			if n != nil {
				out = append(out, EnvSink{N: n})
			}
		case "slack":
			out = append(out, NewAsyncSink(SlackSink{WebhookURL: cfg.SlackWebhook, Timeout: 10 * time.Second}, 32, log))
		case "discord":
			d, err := NewDiscordSink(cfg.DiscordWebhookID, cfg.DiscordWebhookToken)
			if err != nil {
				return nil, err
			}
			out = append(out, NewAsyncSink(d, 32, log))
		default:
			return nil, fmt.Errorf("unknown notify backend %q", name)
		}
	}
	return out, nil
}
