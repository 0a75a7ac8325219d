// Command halofxd runs the full lighting control core: the master clock and
// fx engine driving Art-Net transmitters, fronted by the REST and WebSocket
// surfaces a console UI or lighting desk talks to.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/robmorgan/halofx/api"
	"github.com/robmorgan/halofx/config"
	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/fx"
	"github.com/robmorgan/halofx/logging"
	"github.com/robmorgan/halofx/rhythm"
	"github.com/robmorgan/halofx/transaction"
	"k8s.io/utils/clock"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional, overlays the demo rig defaults)")
	flag.Parse()

	log := logging.GetProjectLogger()

	cfg := config.NewDefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	registry, err := cfg.BuildRegistry()
	if err != nil {
		log.Fatalf("building registry: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := sync.WaitGroup{}

	engines := make(map[dmx.Universe]*dmx.ChannelFadeEngine, len(cfg.Transmitters))
	transmitters := make(map[dmx.Universe]*dmx.UniverseTransmitter, len(cfg.Transmitters))
	for _, target := range cfg.Transmitters {
		t, err := dmx.NewUniverseTransmitter(target.Universe, target.DestAddr, target.NeedsRefresh, clock.RealClock{})
		if err != nil {
			log.Fatalf("starting transmitter for universe %s: %v", target.Universe, err)
		}
		engines[target.Universe] = t.Fades()
		transmitters[target.Universe] = t

		wg.Add(1)
		go func(t *dmx.UniverseTransmitter) {
			defer wg.Done()
			if err := t.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("transmitter stopped")
			}
		}(t)
	}

	resolve := transaction.NewMapResolver(engines)
	engine := fx.New(registry, resolve)
	engine.SetTransmitResolver(transaction.NewTransmitResolver(transmitters))

	clk := rhythm.New(cfg.BPM, clock.RealClock{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := clk.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("master clock stopped")
		}
	}()
	engine.Run(ctx, clk)

	srv := api.NewServer(engine, registry, clk, engines)
	srv.Hub().AddClockListener(clk)
	srv.SetTransmitters(transmitters)

	restServer := &http.Server{Addr: cfg.RestAddr, Handler: srv.Routes()}
	wsServer := &http.Server{Addr: cfg.WebSocketAddr, Handler: srv.WSRoutes()}

	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Infof("REST listening on %s", cfg.RestAddr)
		if err := restServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("REST server stopped")
		}
	}()
	go func() {
		defer wg.Done()
		log.Infof("WebSocket listening on %s", cfg.WebSocketAddr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("WebSocket server stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.SampleMetrics()
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down halofxd")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = restServer.Shutdown(shutdownCtx)
	_ = wsServer.Shutdown(shutdownCtx)

	cancel()
	wg.Wait()
}
