package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"tdisplay-ng/internal/config"
	"tdisplay-ng/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config (defaults: simulated backlight and battery)")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
	}

	logs := web.NewLogBuffer(1000)
	out := io.MultiWriter(os.Stderr, logs)
	log.SetOutput(out)
	slog.SetDefault(slog.New(slog.NewTextHandler(out, nil)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newApp(cfg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer rt.Close()

	log.Printf("tdisplay-ng starting")
	log.Printf("backlight backend=%s gpio=%d channel=%d %d-bit %dHz", cfg.Backlight.Backend, cfg.Backlight.GPIO, cfg.Backlight.Channel, cfg.Backlight.ResolutionBits, cfg.Backlight.FreqHz)
	log.Printf("battery source=%s", cfg.Battery.Source)

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("%s stopped: %v", name, err)
				cancel()
			}
		}()
	}

	if cfg.UI.BootFadeIn {
		if err := rt.panel.BootFadeIn(ctx, cfg.UI.BootStepDelay); err != nil && ctx.Err() == nil {
			log.Printf("boot fade-in failed: %v", err)
		}
	}

	goRun("panel", func(ctx context.Context) error {
		return rt.panel.Run(ctx, cfg.UI.HWInterval, cfg.UI.RefreshInterval, nil)
	})
	if cfg.Web.Enable {
		log.Printf("web listen=%s", cfg.Web.Listen)
		goRun("web", func(ctx context.Context) error {
			return web.Serve(ctx, cfg.Web.Listen, rt.status, rt.panel, logs)
		})
	}
	if pub := rt.publisher(cfg.MQTT); pub != nil {
		log.Printf("mqtt broker=%s topic=%s", cfg.MQTT.Broker, cfg.MQTT.Topic)
		goRun("mqtt", pub.Run)
	}

	<-ctx.Done()
	log.Printf("tdisplay-ng stopping")
	wg.Wait()
}
