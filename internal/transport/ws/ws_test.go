package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colony.ai/internal/colony"
	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
	"colony.ai/internal/sim/world"
)

var workerBody = []env.Part{env.PartMove, env.PartMove, env.PartCarry, env.PartWork}

type testServer struct {
	srv   *Server
	world *world.World
	http  *httptest.Server
	url   string
}

func startServer(t *testing.T, cfg ServerConfig) *testServer {
	t.Helper()
	w, err := world.New(world.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	s := NewServer(w, cfg, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", s.Handler())
	mux.HandleFunc("/v1/status", s.StatusHandler())
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)
	return &testServer{
		srv:   s,
		world: w,
		http:  hs,
		url:   "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/ws",
	}
}

// withWorld runs fn while the session loop is kept off the world.
func (ts *testServer) withWorld(fn func(w *world.World)) {
	ts.srv.mu.Lock()
	defer ts.srv.mu.Unlock()
	fn(ts.world)
}

func connect(t *testing.T, url string) *Client {
	t.Helper()
	c := NewClient(DialConfig{URL: url, Player: "tester", ReadTimeout: 5 * time.Second}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func await(t *testing.T, c *Client) uint64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tick, err := c.Await(ctx)
	require.NoError(t, err)
	return tick
}

func TestSession_HandshakeAndSpawn(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	c := connect(t, ts.url)

	welcome := c.Welcome()
	assert.Equal(t, "sim", welcome.WorldID)
	assert.Len(t, welcome.SessionID, 26)

	require.Equal(t, uint64(1), await(t, c))
	assert.Empty(t, c.Agents())
	facs := c.Facilities()
	require.Len(t, facs, 1)
	assert.Equal(t, "Spawn1", facs[0].Name())
	assert.Equal(t, 300, facs[0].EnergyAvailable())

	o, ok := c.Lookup("ctl-W1N1")
	require.True(t, ok)
	_, isObjective := o.(env.Objective)
	assert.True(t, isObjective)

	require.NoError(t, facs[0].Spawn(workerBody, "1-0"))
	require.NoError(t, c.Done())

	require.Equal(t, uint64(2), await(t, c))
	agents := c.Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, "1-0", agents[0].Name())
	assert.True(t, agents[0].Spawning())
	assert.Contains(t, c.MemoryNames(), "1-0")
	room, ok := agents[0].Room()
	require.True(t, ok)
	assert.Len(t, room.ActiveSources(), 2)
}

func TestSession_RejectionsCarryCodes(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	c := connect(t, ts.url)
	await(t, c)

	f := c.Facilities()[0]
	err := f.Spawn([]env.Part{env.PartClaim}, "x")
	assert.True(t, protocol.IsCode(err, protocol.ErrNotEnoughEnergy), "got %v", err)

	require.NoError(t, f.Spawn(workerBody, "a"))
	err = f.Spawn(workerBody, "b")
	assert.True(t, protocol.IsCode(err, protocol.ErrBusy), "got %v", err)
}

func TestSession_StaleHandleRejectedLocally(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	c := connect(t, ts.url)
	await(t, c)
	old := c.Facilities()[0]
	require.NoError(t, c.Done())

	err := old.Spawn(workerBody, "late")
	assert.True(t, protocol.IsCode(err, protocol.ErrStale), "between cycles: %v", err)

	await(t, c)
	err = old.Spawn(workerBody, "late")
	assert.True(t, protocol.IsCode(err, protocol.ErrStale), "next cycle: %v", err)
	assert.Equal(t, uint64(0), ts.srv.Status().Commands)
}

func TestSession_NotifyFlushedOnDone(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	c := connect(t, ts.url)
	c.Notify("before first cycle")
	await(t, c)
	c.Notify("during cycle")
	require.NoError(t, c.Done())
	await(t, c)

	var notes []world.Note
	ts.withWorld(func(w *world.World) { notes = w.Notes() })
	require.Len(t, notes, 2)
	assert.Equal(t, "before first cycle", notes[0].Text)
	assert.Equal(t, "during cycle", notes[1].Text)
	assert.Equal(t, uint64(1), notes[0].Tick)
}

func TestSession_DeleteMemory(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	ts.withWorld(func(w *world.World) {
		_, err := w.AddCreep("gone", env.Position{Room: "W1N1", X: 5, Y: 5}, workerBody, 0)
		require.NoError(t, err)
		require.True(t, w.Kill("gone"))
	})

	c := connect(t, ts.url)
	await(t, c)
	require.Contains(t, c.MemoryNames(), "gone")
	c.DeleteMemory("gone")
	assert.NotContains(t, c.MemoryNames(), "gone")
	ts.withWorld(func(w *world.World) {
		_, ok := w.Memory("gone")
		assert.False(t, ok)
	})
}

func TestSession_MaxTicksEndsSession(t *testing.T) {
	ts := startServer(t, ServerConfig{MaxTicks: 2})
	c := connect(t, ts.url)
	for i := 0; i < 2; i++ {
		await(t, c)
		require.NoError(t, c.Done())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Await(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, uint64(3), ts.srv.Status().Tick)
}

func TestSession_SecondPlayerRefused(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	connect(t, ts.url)

	c2 := NewClient(DialConfig{URL: ts.url, MaxFailures: 5}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, c2.Connect(ctx))
}

func TestServer_InvalidCommand(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version}))
	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))
	var cycle protocol.CycleMsg
	require.NoError(t, conn.ReadJSON(&cycle))

	// HARVEST without actor or target fails schema validation.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": protocol.TypeCmd, "protocol_version": protocol.Version,
		"tick": cycle.Tick, "seq": 7, "op": protocol.OpHarvest,
	}))
	var res protocol.ResultMsg
	require.NoError(t, conn.ReadJSON(&res))
	assert.Equal(t, uint64(7), res.Seq)
	assert.Equal(t, protocol.ErrProtoBadRequest, res.Code)

	// A command for another tick is stale.
	require.NoError(t, conn.WriteJSON(protocol.CmdMsg{
		Type: protocol.TypeCmd, ProtocolVersion: protocol.Version,
		Tick: cycle.Tick + 1, Seq: 8, Op: protocol.OpNotify, Text: "hi",
	}))
	require.NoError(t, conn.ReadJSON(&res))
	assert.Equal(t, protocol.ErrStale, res.Code)
	assert.Equal(t, uint64(2), ts.srv.Status().Rejected)
}

func TestServer_RejectsBadHello(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1"}))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestServer_StatusHandler(t *testing.T) {
	ts := startServer(t, ServerConfig{CPULimitMs: 20, TickRateHz: 5})
	resp, err := http.Get(ts.http.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "sim", st.WorldID)
	assert.Equal(t, uint64(1), st.Tick)
	assert.Equal(t, 20, st.CPULimit)
	assert.False(t, st.Session)
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	hs := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	hs.Close()

	c := NewClient(DialConfig{URL: url, MaxFailures: 2, OpenTimeout: time.Minute}, zerolog.Nop())
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := c.Connect(ctx)
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())
	assert.ErrorIs(t, c.Connect(ctx), gobreaker.ErrOpenState)
}

// A bot bound to a Client drives the hosted world over the wire.
func TestBot_OverWebsocket(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	c := connect(t, ts.url)

	cfg := colony.DefaultConfig()
	cfg.RunID = "ws"
	bot := colony.NewBot(c, cfg, zerolog.Nop())

	var spawned []string
	for i := 0; i < 30; i++ {
		await(t, c)
		require.True(t, bot.GuardedLoop())
		spawned = append(spawned, bot.LastReport().Spawned()...)
		require.NoError(t, c.Done())
	}
	require.NotEmpty(t, spawned)

	ts.withWorld(func(w *world.World) {
		info, ok := w.Creep(spawned[0])
		require.True(t, ok)
		assert.False(t, info.Spawning)
	})
	assert.NotEmpty(t, bot.Targets().Agents())
}
