package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

// ErrClosed is returned by Await once the server ended the session.
var ErrClosed = errors.New("ws: session closed by server")

// ErrNoCycle is returned by commands issued outside a cycle.
var ErrNoCycle = errors.New("ws: no cycle in progress")

const (
	defaultMaxFailures uint32        = 3
	defaultOpenTimeout time.Duration = 10 * time.Second
)

type DialConfig struct {
	URL         string
	Player      string
	// MaxFailures consecutive dial failures open the breaker for OpenTimeout.
	MaxFailures uint32
	OpenTimeout time.Duration
	// ReadTimeout bounds the wait for the next CYCLE.
	ReadTimeout time.Duration
}

// Client is a remote env.Env. Between Await and Done it exposes the last
// CYCLE view; handles from an earlier cycle are stale and their commands are
// rejected locally. The same Client survives reconnects, so a bot bound to it
// keeps its state.
type Client struct {
	cfg     DialConfig
	log     zerolog.Logger
	breaker *gobreaker.CircuitBreaker[*websocket.Conn]
	now     func() time.Time

	mu      sync.Mutex
	conn    *websocket.Conn
	welcome protocol.WelcomeMsg
	seq     uint64

	notesMu sync.Mutex
	notes   []string

	view    *cycleView
	inCycle bool
	start   time.Time
}

func NewClient(cfg DialConfig, log zerolog.Logger) *Client {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.Player == "" {
		cfg.Player = "colony"
	}
	maxFailures := cfg.MaxFailures
	c := &Client{cfg: cfg, log: log, now: time.Now, view: emptyView()}
	c.breaker = gobreaker.NewCircuitBreaker[*websocket.Conn](gobreaker.Settings{
		Name:        "ws:" + cfg.URL,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
	})
	return c
}

// Connect dials the world and performs the handshake. While the breaker is
// open it fails fast with gobreaker.ErrOpenState.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.breaker.Execute(func() (*websocket.Conn, error) {
		return c.dial(ctx)
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.inCycle = false
	c.mu.Unlock()
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Player: c.cfg.Player}
	if err := writeJSON(conn, hello); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: expected WELCOME")
	}
	c.mu.Lock()
	c.welcome = welcome
	c.mu.Unlock()
	c.log.Info().Str("session", welcome.SessionID).Str("world", welcome.WorldID).Uint64("tick", welcome.Tick).Msg("connected")
	return conn, nil
}

func (c *Client) Welcome() protocol.WelcomeMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome
}

func (c *Client) BreakerState() gobreaker.State { return c.breaker.State() }

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Await blocks until the next CYCLE and installs it as the current view.
func (c *Client) Await(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0, ErrClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		deadline := time.Now().Add(c.cfg.ReadTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = c.conn.SetReadDeadline(deadline)
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
				return 0, ErrClosed
			}
			return 0, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeCycle {
			continue
		}
		if err := protocol.Validate(protocol.TypeCycle, msg); err != nil {
			return 0, fmt.Errorf("cycle: %w", err)
		}
		var cycle protocol.CycleMsg
		if err := json.Unmarshal(msg, &cycle); err != nil {
			return 0, fmt.Errorf("cycle: %w", err)
		}
		c.view = c.buildView(cycle)
		c.inCycle = true
		c.start = c.now()
		return cycle.Tick, nil
	}
}

// Done flushes queued notifications and ends the current cycle.
func (c *Client) Done() error {
	c.notesMu.Lock()
	notes := c.notes
	c.notes = nil
	c.notesMu.Unlock()
	for _, text := range notes {
		if err := c.call("notify", protocol.CmdMsg{Op: protocol.OpNotify, Text: text}, c.Time()); err != nil {
			c.log.Debug().Err(err).Msg("notify failed")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inCycle {
		return ErrNoCycle
	}
	c.inCycle = false
	if c.conn == nil {
		return ErrClosed
	}
	return writeJSON(c.conn, protocol.DoneMsg{
		Type:            protocol.TypeDone,
		ProtocolVersion: protocol.Version,
		Tick:            c.view.tick,
		CPUUsedMs:       c.cpuUsed(),
	})
}

// call sends one CMD stamped with tick and waits for its RESULT.
func (c *Client) call(op string, cmd protocol.CmdMsg, tick uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inCycle || c.conn == nil {
		return protocol.Reject(op, protocol.ErrStale, "no cycle in progress")
	}
	if tick != c.view.tick {
		return protocol.Reject(op, protocol.ErrStale, fmt.Sprintf("handle from tick %d", tick))
	}
	c.seq++
	cmd.Type = protocol.TypeCmd
	cmd.ProtocolVersion = protocol.Version
	cmd.Tick = tick
	cmd.Seq = c.seq
	if err := writeJSON(c.conn, cmd); err != nil {
		return err
	}
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeResult {
			continue
		}
		var res protocol.ResultMsg
		if err := json.Unmarshal(msg, &res); err != nil {
			return err
		}
		if res.Seq != cmd.Seq {
			continue
		}
		return protocol.Reject(op, res.Code, res.Message)
	}
}

func (c *Client) cpuUsed() float64 {
	if c.start.IsZero() {
		return 0
	}
	return float64(c.now().Sub(c.start).Microseconds()) / 1000
}

// env.Env

func (c *Client) Time() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.tick
}

func (c *Client) CPUUsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cpuUsed()
}

// Notify queues msg; queued messages are sent when the cycle ends.
func (c *Client) Notify(msg string) {
	c.notesMu.Lock()
	c.notes = append(c.notes, msg)
	c.notesMu.Unlock()
}

func (c *Client) Lookup(id env.ObjectID) (env.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.view.objects[id]
	return o, ok
}

func (c *Client) Agents() []env.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]env.Agent(nil), c.view.agents...)
}

func (c *Client) Facilities() []env.Facility {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]env.Facility(nil), c.view.facilities...)
}

func (c *Client) MemoryNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.view.memory))
	for n := range c.view.memory {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (c *Client) DeleteMemory(name string) {
	c.mu.Lock()
	tick := c.view.tick
	c.mu.Unlock()
	if err := c.call("delete_memory", protocol.CmdMsg{Op: protocol.OpDeleteMemory, Name: name}, tick); err != nil {
		c.log.Debug().Err(err).Str("name", name).Msg("delete memory failed")
		return
	}
	c.mu.Lock()
	delete(c.view.memory, name)
	c.mu.Unlock()
}
