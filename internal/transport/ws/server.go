package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"colony.ai/internal/protocol"
	"colony.ai/internal/sim/world"
)

// ServerConfig controls how a hosted world is driven.
type ServerConfig struct {
	// TickRateHz paces ticks; 0 runs as fast as the player answers.
	TickRateHz  int
	// MaxTicks ends the session after this many ticks; 0 is unlimited.
	MaxTicks    uint64
	CPULimitMs  int
	// ReadTimeout bounds the wait for each player message.
	ReadTimeout time.Duration
}

// Server hosts one world for one player at a time. Each tick it sends CYCLE,
// executes CMDs in arrival order until DONE, then steps the world.
type Server struct {
	world *world.World
	cfg   ServerConfig
	log   zerolog.Logger

	upgrader websocket.Upgrader

	// mu guards the world between the session loop and the status handler.
	mu     sync.Mutex
	busy   atomic.Bool
	ticks  atomic.Uint64
	cmds   atomic.Uint64
	reject atomic.Uint64
}

func NewServer(w *world.World, cfg ServerConfig, log zerolog.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	return &Server{
		world: w,
		cfg:   cfg,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Status is served as JSON by StatusHandler.
type Status struct {
	WorldID    string `json:"world_id"`
	Tick       uint64 `json:"tick"`
	Creeps     int    `json:"creeps"`
	Session    bool   `json:"session"`
	Ticks      uint64 `json:"ticks_served"`
	Commands   uint64 `json:"commands"`
	Rejected   uint64 `json:"rejected"`
	CPULimit   int    `json:"cpu_limit_ms"`
	TickRateHz int    `json:"tick_rate_hz"`
}

func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		WorldID:    s.world.ID(),
		Tick:       s.world.Time(),
		Creeps:     len(s.world.Agents()),
		Session:    s.busy.Load(),
		Ticks:      s.ticks.Load(),
		Commands:   s.cmds.Load(),
		Rejected:   s.reject.Load(),
		CPULimit:   s.cfg.CPULimitMs,
		TickRateHz: s.cfg.TickRateHz,
	}
}

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.Status())
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !s.busy.CompareAndSwap(false, true) {
			closeWith(conn, websocket.ClosePolicyViolation, "session in progress")
			return
		}
		defer s.busy.Store(false)

		hello, ok := s.handshake(conn)
		if !ok {
			return
		}
		log := s.log.With().Str("player", hello.Player).Logger()
		log.Info().Msg("session started")

		err = s.session(r.Context(), conn, log)
		switch {
		case err == nil:
			closeWith(conn, websocket.CloseNormalClosure, "max ticks reached")
			log.Info().Uint64("ticks", s.ticks.Load()).Msg("session finished")
		case errors.Is(err, context.Canceled):
			log.Info().Msg("session cancelled")
		default:
			log.Warn().Err(err).Msg("session ended")
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return hello, false
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return hello, false
	}
	if hello.Player == "" {
		hello.Player = "player"
	}

	s.mu.Lock()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       ulid.Make().String(),
		WorldID:         s.world.ID(),
		Tick:            s.world.Time(),
	}
	s.mu.Unlock()
	if err := writeJSON(conn, welcome); err != nil {
		return hello, false
	}
	return hello, true
}

func (s *Server) session(ctx context.Context, conn *websocket.Conn, log zerolog.Logger) error {
	var interval time.Duration
	if s.cfg.TickRateHz > 0 {
		interval = time.Second / time.Duration(s.cfg.TickRateHz)
	}
	var served uint64
	for {
		if s.cfg.MaxTicks > 0 && served >= s.cfg.MaxTicks {
			return nil
		}
		start := time.Now()
		if err := s.tick(conn, log); err != nil {
			return err
		}
		served++
		s.ticks.Add(1)

		if interval > 0 {
			if wait := interval - time.Since(start); wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}
	}
}

// tick serves one world tick: view, commands until DONE, then Step.
func (s *Server) tick(conn *websocket.Conn, log zerolog.Logger) error {
	s.mu.Lock()
	s.world.BeginCycle()
	view := s.world.CycleView(s.cfg.CPULimitMs)
	s.mu.Unlock()

	if err := writeJSON(conn, view); err != nil {
		return err
	}
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeCmd:
			res := s.command(msg)
			if res.Code != "" {
				log.Debug().Uint64("seq", res.Seq).Str("code", res.Code).Msg("command rejected")
			}
			if err := writeJSON(conn, res); err != nil {
				return err
			}
		case protocol.TypeDone:
			var done protocol.DoneMsg
			if err := json.Unmarshal(msg, &done); err != nil || done.Tick != view.Tick {
				continue
			}
			s.mu.Lock()
			s.world.Step()
			s.mu.Unlock()
			return nil
		}
	}
}

func (s *Server) command(msg []byte) protocol.ResultMsg {
	s.cmds.Add(1)
	res := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version}

	var cmd protocol.CmdMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		s.reject.Add(1)
		res.Code = protocol.ErrProtoBadRequest
		res.Message = err.Error()
		return res
	}
	res.Seq = cmd.Seq
	if err := protocol.Validate(protocol.TypeCmd, msg); err != nil {
		s.reject.Add(1)
		res.Code = protocol.ErrProtoBadRequest
		res.Message = err.Error()
		return res
	}
	if cmd.ProtocolVersion != protocol.Version {
		s.reject.Add(1)
		res.Code = protocol.ErrProtoBadRequest
		res.Message = "bad protocol_version"
		return res
	}

	s.mu.Lock()
	err := s.world.Apply(cmd)
	s.mu.Unlock()
	if err != nil {
		s.reject.Add(1)
		res.Code = protocol.CodeOf(err)
		var ce *protocol.CodeError
		if errors.As(err, &ce) {
			res.Message = ce.Message
		} else {
			res.Message = err.Error()
		}
	}
	return res
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
