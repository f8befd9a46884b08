package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/leasefin/internal/activity"
	"github.com/matthewbaird/leasefin/internal/config"
	"github.com/matthewbaird/leasefin/internal/configstore"
	"github.com/matthewbaird/leasefin/internal/event"
	"github.com/matthewbaird/leasefin/internal/eventbus"
	"github.com/matthewbaird/leasefin/internal/finconfig"
	"github.com/matthewbaird/leasefin/internal/handler"
	"github.com/matthewbaird/leasefin/internal/jurisdiction"
	"github.com/matthewbaird/leasefin/internal/logger"
	"github.com/matthewbaird/leasefin/internal/server"
	"github.com/matthewbaird/leasefin/internal/signals"
	"github.com/matthewbaird/leasefin/internal/wire"
)

var cli struct {
	Config string `help:"Path to a config file (default: config.yaml in . or /etc/leasefin)." type:"path"`
}

func main() {
	kong.Parse(&cli, kong.Name("leasefin-server"), kong.Description("Tenant-unit financial configuration service."))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli.Config); err != nil {
		fmt.Fprintf(os.Stderr, "leasefin-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.Log.Logger())
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	db, err := sql.Open("sqlite", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	configs := configstore.NewSQLStore(db)
	if err := configs.CreateTable(ctx); err != nil {
		return err
	}
	feed := activity.NewSQLStore(db)
	if err := feed.CreateTable(ctx); err != nil {
		return err
	}
	log.Info("database ready", zap.String("path", cfg.Database.Path))

	bus := eventbus.New(256, log)
	bus.Subscribe("log", eventbus.NewLogConsumer(log.Named("events")))
	bus.Subscribe("signals", eventbus.NewSignalConsumer(feed, signals.DefaultRules(), log.Named("signals")))
	bus.Start(ctx)
	defer bus.Stop()

	recorder := event.NewActivityRecorder(feed, bus)

	engines, err := finconfig.NewEngines(finconfig.WithLogger(log.Named("finconfig")))
	if err != nil {
		return err
	}
	enforcer := jurisdiction.NewEnforcer(cfg.Jurisdiction.EffectiveRules(), log.Named("jurisdiction"))
	log.Info("jurisdiction rules loaded",
		zap.Int("jurisdictions", enforcer.Jurisdictions()),
		zap.String("default", cfg.Jurisdiction.Default))

	fh, err := handler.NewFinancialConfigHandler(handler.Options{
		Engines:             engines,
		Store:               configs,
		Enforcer:            enforcer,
		DefaultJurisdiction: cfg.Jurisdiction.Default,
		Recorder:            recorder,
		Logger:              log,
	})
	if err != nil {
		return err
	}

	return server.Run(ctx, server.Config{
		Addr:            cfg.HTTP.Addr(),
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		MaxBodySize:     cfg.HTTP.MaxBodySize,
		FinancialConfig: fh,
		Activity:        feed,
		Live:            wire.NewHandler(engines, log),
		Logger:          log,
	})
}
