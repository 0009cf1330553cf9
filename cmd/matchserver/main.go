// Package main wires together the rank-matching server: configuration,
// logging, the process-wide registry, the tick loop, and the WebSocket
// transport.
//
// Startup shape follows the teacher's main()/NewGameServer()/Start() in
// cmd/gameserver/main.go, generalized to run the tick loop and the
// transport server as sibling goroutines coordinated with an errgroup
// instead of the teacher's bare background goroutines, since this server
// has two long-running loops that should bring each other down on
// failure rather than leak silently.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/EaseCation/rank-matcher/config"
	"github.com/EaseCation/rank-matcher/internal/dispatch"
	"github.com/EaseCation/rank-matcher/internal/obs"
	"github.com/EaseCation/rank-matcher/internal/registry"
	"github.com/EaseCation/rank-matcher/internal/tick"
	"github.com/EaseCation/rank-matcher/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the server configuration file")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	obs.Init(os.Stderr, *debug)
	log := obs.New("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Info().Str("websocket_addr", cfg.WebsocketAddr).Str("api_url", cfg.APIURL).Msg("starting rank-matcher")

	reg := registry.New()
	dispatcher := dispatch.NewWithDefaultClient(cfg.APIURL, reg, obs.New("dispatch"))
	loop := tick.New(reg, dispatcher, obs.New("tick"))
	srv := transport.New(cfg.WebsocketAddr, reg, obs.New("transport"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		select {
		case <-gctx.Done():
			return gctx.Err()
		case err := <-errCh:
			return err
		}
	})

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("shutdown complete")
}
