package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/vault-share/internal/blob"
	"github.com/alexjbarnes/vault-share/internal/config"
	"github.com/alexjbarnes/vault-share/internal/importer"
	"github.com/alexjbarnes/vault-share/internal/logging"
	"github.com/alexjbarnes/vault-share/internal/notify"
	"github.com/alexjbarnes/vault-share/internal/registry"
	"github.com/alexjbarnes/vault-share/internal/state"
	"github.com/alexjbarnes/vault-share/internal/vault"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("vault-share starting",
		slog.String("version", Version),
		slog.String("user", cfg.User),
		slog.String("registry", cfg.RegistryURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appState, err := state.LoadAt(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	blobs, err := blob.Open(cfg.BlobDir, cfg.VaultPassword, appState)
	if err != nil {
		return fmt.Errorf("opening blob vault: %w", err)
	}

	reg := registry.NewClient(cfg.RegistryURL, cfg.Token, nil)

	// The scheduler, service, and notify client reference each other, so
	// the hooks go through this pointer filled in below.
	var sched *vault.Scheduler

	svcCfg := vault.ServiceConfig{
		User:     cfg.User,
		Registry: reg,
		Store:    appState,
		Blobs:    blobs,
		OnMutate: func() { sched.Trigger(vault.TriggerMutation) },
	}

	var notifyClient *notify.Client
	if cfg.NotifyURL != "" {
		notifyClient = notify.NewClient(notify.Config{
			URL:   cfg.NotifyURL,
			User:  cfg.User,
			Token: cfg.Token,
			OnSignal: func(user string) {
				if user == cfg.User {
					sched.Trigger(vault.TriggerRemote)
				}
			},
			// Whatever happened while the channel was down is caught up
			// immediately instead of waiting out the poll interval.
			OnConnect: func() { sched.Trigger(vault.TriggerVisible) },
		}, logging.Component(logger, "notify"))
		svcCfg.Notify = notifyClient
	}

	svc := vault.NewService(svcCfg, logging.Component(logger, "engine"))

	sched = vault.NewScheduler(svc, vault.SchedulerConfig{
		Debounce:     cfg.SyncDebounce,
		PollInterval: cfg.PollInterval,
	}, logging.Component(logger, "scheduler"))

	// A cached view from the previous run renders while the first pass
	// fetches fresh state.
	if cached, savedAt, ok, err := appState.LoadViews(cfg.User); err != nil {
		logger.Warn("loading cached views", slog.String("error", err.Error()))
	} else if ok {
		logger.Info("loaded cached views",
			slog.Int("active", len(cached.Active)),
			slog.Int("shared", len(cached.SharedWithMe)),
			slog.Int("trash", len(cached.Trash)),
			slog.Time("saved_at", savedAt),
		)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	if notifyClient != nil {
		g.Go(func() error {
			return notifyClient.Listen(gctx)
		})
	}

	if cfg.ImportDir != "" {
		rules, err := importer.LoadRules(cfg.ImportRules)
		if err != nil {
			return fmt.Errorf("loading import rules: %w", err)
		}

		imp := importer.New(cfg.ImportDir, rules, svc, logging.Component(logger, "importer"))
		g.Go(func() error {
			return imp.Watch(gctx)
		})
	}

	// First pass runs immediately rather than after the debounce window.
	sched.Trigger(vault.TriggerVisible)

	return g.Wait()
}
