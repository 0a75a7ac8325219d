// Command fxdemo patches the built-in demo rig, starts a master clock, and
// runs a handful of effects against it, transmitting Art-Net to a
// configurable destination. It exists to exercise the fx engine end to end
// without the REST/WebSocket surface.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"

	"github.com/robmorgan/halofx/config"
	"github.com/robmorgan/halofx/distribution"
	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/effect"
	"github.com/robmorgan/halofx/fx"
	"github.com/robmorgan/halofx/logging"
	"github.com/robmorgan/halofx/rhythm"
	"github.com/robmorgan/halofx/transaction"
	"github.com/sirupsen/logrus"
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

	seedDemoEffects(log, engine)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down fxdemo")
	cancel()
	wg.Wait()
}

// seedDemoEffects patches a handful of effects onto the demo rig's groups
// so fxdemo produces visible output without any external client.
func seedDemoEffects(log *logrus.Logger, engine *fx.FxEngine) {
	if _, err := engine.AddEffect(fx.AddEffectRequest{
		Effect:       effect.SineWave(0, 255),
		Target:       fx.GroupRef("pars"),
		Property:     "dimmer",
		BlendMode:    fx.Override,
		BeatDivision: 1,
		Distribution: distribution.Linear(),
	}); err != nil {
		log.Errorf("seeding pars effect: %v", err)
	}

	if _, err := engine.AddEffect(fx.AddEffectRequest{
		Effect:       effect.RainbowCycle(1, 1),
		Target:       fx.GroupRef("wash"),
		Property:     "colour",
		BlendMode:    fx.Override,
		BeatDivision: 4,
		Distribution: distribution.Unified(),
	}); err != nil {
		log.Errorf("seeding wash effect: %v", err)
	}

	if _, err := engine.AddEffect(fx.AddEffectRequest{
		Effect:       effect.Circle(128, 128, 80, 40),
		Target:       fx.GroupRef("spots"),
		Property:     "position",
		BlendMode:    fx.Override,
		BeatDivision: 8,
		Distribution: distribution.Unified(),
	}); err != nil {
		log.Errorf("seeding spots effect: %v", err)
	}
}
