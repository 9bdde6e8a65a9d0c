package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"colony.ai/internal/config"
	"colony.ai/internal/logging"
	"colony.ai/internal/sim/world"
	"colony.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "", "path to colony.yaml or colony.toml (host and log sections)")
		worldPath  = flag.String("world", "", "path to world.yaml (default: host.world_config, or the built-in room)")
		maxTicks   = flag.Uint64("max_ticks", 0, "end each session after this many ticks (0: host.max_ticks)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	logger := logging.New(cfg.Log, os.Stdout).With().Str("component", "server").Logger()

	wp := strings.TrimSpace(*worldPath)
	if wp == "" {
		wp = cfg.Host.WorldConfig
	}
	wcfg := world.DefaultConfig()
	if wp != "" {
		wcfg, err = world.LoadConfig(wp)
		if err != nil {
			logger.Fatal().Err(err).Str("path", wp).Msg("load world config")
		}
	}
	w, err := world.New(wcfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("world")
	}

	ticks := cfg.Host.MaxTicks
	if *maxTicks != 0 {
		ticks = *maxTicks
	}
	wsSrv := ws.NewServer(w, ws.ServerConfig{
		TickRateHz: cfg.Host.TickRateHz,
		MaxTicks:   ticks,
		CPULimitMs: int(cfg.Host.CPULimitMs),
	}, logger)

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		st := wsSrv.Status()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP colony_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE colony_world_tick gauge\n")
		fmt.Fprintf(rw, "colony_world_tick{world=%q} %d\n", st.WorldID, st.Tick)

		fmt.Fprintf(rw, "# HELP colony_world_creeps Current number of creeps in the world.\n")
		fmt.Fprintf(rw, "# TYPE colony_world_creeps gauge\n")
		fmt.Fprintf(rw, "colony_world_creeps{world=%q} %d\n", st.WorldID, st.Creeps)

		session := 0
		if st.Session {
			session = 1
		}
		fmt.Fprintf(rw, "# HELP colony_world_session Whether a player is connected.\n")
		fmt.Fprintf(rw, "# TYPE colony_world_session gauge\n")
		fmt.Fprintf(rw, "colony_world_session{world=%q} %d\n", st.WorldID, session)

		fmt.Fprintf(rw, "# HELP colony_world_ticks_served_total Ticks served to players.\n")
		fmt.Fprintf(rw, "# TYPE colony_world_ticks_served_total counter\n")
		fmt.Fprintf(rw, "colony_world_ticks_served_total{world=%q} %d\n", st.WorldID, st.Ticks)

		fmt.Fprintf(rw, "# HELP colony_world_commands_total Commands received.\n")
		fmt.Fprintf(rw, "# TYPE colony_world_commands_total counter\n")
		fmt.Fprintf(rw, "colony_world_commands_total{world=%q,result=%q} %d\n", st.WorldID, "ok", st.Commands-st.Rejected)
		fmt.Fprintf(rw, "colony_world_commands_total{world=%q,result=%q} %d\n", st.WorldID, "rejected", st.Rejected)
	})
	mux.HandleFunc("/v1/status", wsSrv.StatusHandler())
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	if envBool("COLONY_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			pprof.Index(rw, r)
		})
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Debug().Msg("pprof endpoints disabled (COLONY_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Str("world", w.ID()).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
