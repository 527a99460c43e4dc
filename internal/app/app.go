package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/config"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/notify"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/scanner"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/sequence"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/server"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

// App wires the store, delivery path, scanner, HTTP triggers, and the
// internal periodic timer together for one process.
type App struct {
	cfg config.Config
	log *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *App {
	return &App{cfg: cfg, log: log}
}

// Run blocks until the context is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting notifier",
		zap.String("http", a.cfg.HTTPAddr),
		zap.Duration("scanInterval", a.cfg.ScanInterval),
	)

	st, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	defer func() { _ = st.Close() }()
	a.log.Info("store ready", zap.String("path", a.cfg.DBPath))

	gateway := notify.NewBrevoGateway(notify.GatewayConfig{
		APIKey:      a.cfg.BrevoAPIKey,
		BaseURL:     a.cfg.BrevoBaseURL,
		SenderEmail: a.cfg.SenderEmail,
		SenderName:  a.cfg.SenderName,
		ReplyTo:     a.cfg.ReplyToEmail,
		Timeout:     a.cfg.HTTPTimeout,
	})
	sender := notify.NewSender(
		notify.NewRecipientResolver(st),
		notify.NewTemplateResolver(st),
		gateway, a.log,
	)
	runner := scanner.NewRunner(st, sender, a.log)
	registry := scanner.NewRegistry(sequence.All(sequence.Deps{
		Store:     st,
		DefaultTZ: a.cfg.DefaultTZ,
	})...)

	httpSrv := &http.Server{
		Addr:    a.cfg.HTTPAddr,
		Handler: server.New(registry, runner, sender, a.log).Routes(),
		// A run endpoint may walk several hundred candidates.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(a.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			return nil

		case <-ticker.C:
			a.scanAll(ctx, runner, registry)
		}
	}
}

// scanAll runs every registered sequence once, sequentially. A fatal error in
// one sequence's query never stops the others.
func (a *App) scanAll(ctx context.Context, runner *scanner.Runner, registry *scanner.Registry) {
	for _, id := range registry.IDs() {
		seq, ok := registry.Get(id)
		if !ok {
			continue
		}
		if _, err := runner.Run(ctx, seq); err != nil {
			a.log.Error("scan failed", zap.String("sequence", id), zap.Error(err))
		}
	}
}
