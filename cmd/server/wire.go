package main

import (
	"context"
	"fmt"

	crmsyncapp "github.com/feerecon/backend/internal/application/crmsync"
	appreconciliation "github.com/feerecon/backend/internal/application/reconciliation"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/feerecon/backend/internal/infrastructure/cache"
	"github.com/feerecon/backend/internal/infrastructure/config"
	"github.com/feerecon/backend/internal/infrastructure/crm"
	"github.com/feerecon/backend/internal/infrastructure/event"
	"github.com/feerecon/backend/internal/infrastructure/persistence"
	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// application holds the wired reconciliation service and what must be closed with it
type application struct {
	service *appreconciliation.Service
	tokens  cache.TokenCache
	log     *zap.Logger
}

func (a *application) close() {
	if a.tokens == nil {
		return
	}
	if err := a.tokens.Close(); err != nil {
		a.log.Warn("Token cache close failed", zap.Error(err))
	}
}

func newApplication(ctx context.Context, cfg *config.Config, db *persistence.Database, meter metric.Meter, log *zap.Logger) (*application, error) {
	session, err := newSession(cfg.Reconciliation)
	if err != nil {
		return nil, err
	}

	mirror := persistence.NewGormMirror(db.DB, log)
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(appreconciliation.NewMirrorHandler(mirror, log))

	metrics, err := telemetry.NewReconciliationMetrics(meter)
	if err != nil {
		log.Warn("Reconciliation metrics disabled", zap.Error(err))
	}

	app := &application{log: log}
	opts := []appreconciliation.Option{appreconciliation.WithMetrics(metrics)}

	if cfg.CRM.BaseURL == "" {
		log.Warn("CRM base URL not configured, sync and download are disabled")
	} else {
		tokens, err := cache.NewTokenCache(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("token cache: %w", err)
		}
		app.tokens = tokens

		gateway, err := newGateway(cfg.CRM, cfg.Redis.TokenKey, tokens, log)
		if err != nil {
			return nil, err
		}
		syncer := crmsyncapp.NewSyncService(gateway, mirror, crmsyncapp.SyncConfig{
			BatchSize:  cfg.CRM.BatchSize,
			BatchDelay: cfg.CRM.BatchDelay,
		}, log,
			crmsyncapp.WithPropagationQueue(mirror),
			crmsyncapp.WithBacklog(mirror),
		)
		if metrics != nil {
			syncer.SetReconciliationMetrics(metrics)
		}
		downloader := crmsyncapp.NewDownloadService(gateway, mirror, crmsyncapp.DownloadConfig{
			PageSize:  cfg.CRM.PageSize,
			ReadDelay: cfg.CRM.ReadDelay,
			MaxPages:  cfg.CRM.MaxPages,
		}, log)
		opts = append(opts,
			appreconciliation.WithSyncer(syncer),
			appreconciliation.WithDownloader(downloader),
			appreconciliation.WithSource(gateway),
		)
	}

	app.service = appreconciliation.NewService(session, bus, mirror,
		appreconciliation.Config{SyncOnConfirm: cfg.Reconciliation.SyncOnConfirm}, log, opts...)
	if !app.service.Restore(ctx) {
		log.Info("No mirrored session restored, starting empty")
	}
	return app, nil
}

func newGateway(cfg config.CRMConfig, tokenKey string, tokens cache.TokenCache, log *zap.Logger) (*crm.Gateway, error) {
	source, err := crm.NewRefreshTokenSource(crm.RefreshTokenConfig{
		AccountsURL:  cfg.AccountsURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: cfg.RefreshToken,
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	provider := crm.NewTokenProvider(source, tokens, tokenKey, cfg.TokenMargin, log)
	client, err := crm.NewClient(crm.ClientConfig{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, provider, log)
	if err != nil {
		return nil, err
	}
	return crm.NewGateway(client), nil
}

func newSession(cfg config.ReconciliationConfig) (*reconciliation.Session, error) {
	tolerance, err := reconciliation.NewTolerance(decimal.NewFromFloat(cfg.DefaultTolerance))
	if err != nil {
		return nil, fmt.Errorf("default tolerance: %w", err)
	}
	ladder := make(reconciliation.ToleranceLadder, 0, len(cfg.ToleranceLadder))
	for _, s := range cfg.ToleranceLadder {
		t, err := reconciliation.ParseTolerance(s)
		if err != nil {
			return nil, fmt.Errorf("tolerance ladder: %w", err)
		}
		ladder = append(ladder, t)
	}
	return reconciliation.NewSession(
		reconciliation.WithTolerance(tolerance),
		reconciliation.WithToleranceLadder(ladder),
		reconciliation.WithPrescreenThreshold(cfg.PrescreenThreshold),
		reconciliation.WithActor(cfg.Actor),
	), nil
}
