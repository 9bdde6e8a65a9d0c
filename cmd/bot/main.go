package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"colony.ai/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/colony.yaml", "path to colony.yaml or colony.toml")
		mode       = flag.String("mode", "", "local or remote (default: host.mode)")
		url        = flag.String("url", "", "world ws url for remote mode (default: host.url)")
		maxTicks   = flag.Uint64("max_ticks", 0, "stop after this many cycles (default: host.max_ticks)")
		noRestore  = flag.Bool("no_restore", false, "start with an empty target store")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	if m := strings.TrimSpace(*mode); m != "" {
		cfg.Host.Mode = m
	}
	if u := strings.TrimSpace(*url); u != "" {
		cfg.Host.URL = u
	}
	if *maxTicks != 0 {
		cfg.Host.MaxTicks = *maxTicks
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := run(ctx, cfg, runOptions{out: os.Stdout, restore: !*noRestore}); err != nil {
		fmt.Fprintln(os.Stderr, "bot:", err)
		os.Exit(1)
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
