package main

import (
	"context"
	"flag"
	"os"

	"ailedger/internal/backend"
	"ailedger/internal/cli"
	applog "ailedger/internal/log"
	"ailedger/internal/services"
	"ailedger/internal/worker"
)

func main() {
	configFile := flag.String("config", "", "config file (default is ./ailedger.yaml)")
	flag.Parse()

	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(*configFile)
	if err != nil {
		cli.Fatal(nil, "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err := cfg.ValidateMirror(); err != nil {
		cli.Fatal(logger, "Mirror configuration invalid", err)
	}

	logger.Info("Starting ailedger-worker",
		"backend", cfg.Storage.Backend,
		"broker", cfg.Events.Broker,
		"interval", cfg.Worker.MirrorInterval)

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	factory := backend.NewFactory(logger.Base())

	source, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open ledger backend", err)
	}
	if source.Cleanup != nil {
		defer source.Cleanup()
	}

	mirror, err := factory.CreateMirror(ctx, bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets mirror", err)
	}

	events, err := factory.CreateEvents(ctx, bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to connect to event broker", err)
	}
	if events.Cleanup != nil {
		defer events.Cleanup()
	}
	if events.Consumer == nil {
		logger.Info("No event broker configured, mirroring on the ticker only")
	}

	processor := services.NewMirrorProcessor(source.Store, mirror.Store, services.MirrorConfig{
		Interval: cfg.Worker.MirrorInterval,
	}, logger.Base())

	if err := worker.NewMirrorWorker(processor, events.Consumer, logger.Base()).Run(ctx); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
