package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TemamAb/ainex-sub004/internal/breaker"
	"github.com/TemamAb/ainex-sub004/internal/config"
	"github.com/TemamAb/ainex-sub004/internal/crypto"
	"github.com/TemamAb/ainex-sub004/internal/domain"
	"github.com/TemamAb/ainex-sub004/internal/notify"
	"github.com/TemamAb/ainex-sub004/internal/orchestrator"
	"github.com/TemamAb/ainex-sub004/internal/pipeline"
	"github.com/TemamAb/ainex-sub004/internal/recovery"
	"github.com/TemamAb/ainex-sub004/internal/server"
	"github.com/TemamAb/ainex-sub004/internal/server/handler"
	"github.com/TemamAb/ainex-sub004/internal/server/ws"
	"github.com/TemamAb/ainex-sub004/internal/submit/bundler"
)

// ExecuteMode runs the full pipeline: plan consumption, orchestrated
// submission under breaker protection, scheduled archival, and the daily
// loss boundary. The HTTP server runs alongside when enabled.
func (a *App) ExecuteMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting execute mode")

	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = a.newHub()
	}

	alerts := notify.NewAlerts(deps.Notifier)
	brk := a.newBreaker(deps, hub, alerts)

	// Signer: raw key for dev setups, encrypted keystore in production.
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("execute mode: load wallet key: %w", err)
	}
	signer, err := crypto.NewSigner(key, a.cfg.Bundler.ChainID)
	if err != nil {
		return fmt.Errorf("execute mode: create signer: %w", err)
	}
	a.logger.InfoContext(ctx, "submission wallet loaded",
		slog.String("address", signer.Address().Hex()),
		slog.Int64("chain_id", signer.ChainID()),
	)

	channel := bundler.New(bundler.Config{
		RPCURL:            a.cfg.Bundler.RPCURL,
		AlternativeRPCURL: a.cfg.Bundler.AlternativeRPCURL,
		EntryPoint:        a.cfg.Bundler.EntryPoint,
		Paymaster:         a.cfg.Bundler.Paymaster,
		ChainID:           a.cfg.Bundler.ChainID,
	}, a.logger)

	engine := recovery.NewEngine(recovery.Config{
		MaxRetries:  a.cfg.Recovery.MaxRetries,
		BackoffBase: a.cfg.Recovery.BackoffBase,
		BackoffMax:  a.cfg.Recovery.BackoffMax.Duration,
	}, a.logger)

	orch := orchestrator.New(
		channel,
		brk,
		engine,
		orchestrator.NewPayloadBuilder(signer),
		deps.ExecutionStore,
		deps.LedgerStore,
		deps.AuditStore,
		orchestrator.Config{
			ConfirmationTimeout: a.cfg.Orchestrator.ConfirmationTimeout.Duration,
			PollInterval:        a.cfg.Orchestrator.PollInterval.Duration,
			MaxRetries:          a.cfg.Orchestrator.MaxRetries,
		},
		a.logger,
	)
	orch.OnResult(func(res domain.ExecutionResult) {
		if hub != nil {
			hub.BroadcastResult(res)
		}
		if res.Kind == domain.ErrorKindExecutionReverted {
			nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := alerts.ManualReview(nctx, res); err != nil {
				a.logger.Warn("manual review alert failed", slog.String("error", err.Error()))
			}
		}
	})

	// Plan consumer.
	consumer := pipeline.NewConsumer(
		deps.PlanBus,
		orch,
		a.cfg.Pipeline.Concurrency,
		a.cfg.Orchestrator.MaxRetries,
		a.logger,
	)
	g.Go(func() error {
		return consumer.Run(ctx)
	})

	// Scheduled archival to cold storage.
	if deps.Archiver != nil {
		arch := pipeline.NewArchiver(deps.Archiver, brk, a.cfg.Pipeline.ArchiveRetentionDays, a.logger)
		g.Go(func() error {
			return arch.RunCron(ctx, a.cfg.Pipeline.ArchiveCron)
		})
	}

	// Daily loss boundary at midnight UTC.
	resetter := &dailyLossResetter{brk: brk}
	onReset := func(rctx context.Context) {
		if err := deps.AuditStore.Log(rctx, "daily_loss_reset", map[string]any{
			"previous_loss_eth": resetter.lastLoss,
		}); err != nil {
			a.logger.Warn("daily reset audit failed", slog.String("error", err.Error()))
		}
		if err := alerts.DailyLossReset(rctx, resetter.lastLoss); err != nil {
			a.logger.Warn("daily reset alert failed", slog.String("error", err.Error()))
		}
	}
	dailyReset := pipeline.NewDailyReset(resetter, onReset, a.logger)
	g.Go(func() error {
		return dailyReset.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, brk, hub)
	}

	return g.Wait()
}

// MonitorMode observes the plan stream without executing anything and serves
// the HTTP API. Useful for shadowing a live deployment.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := a.newHub()
	alerts := notify.NewAlerts(deps.Notifier)
	brk := a.newBreaker(deps, hub, alerts)

	g.Go(func() error {
		plans, err := deps.PlanBus.Plans(ctx)
		if err != nil {
			return fmt.Errorf("monitor mode: open plan source: %w", err)
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case plan, ok := <-plans:
				if !ok {
					return nil
				}
				a.logger.InfoContext(ctx, "plan observed (not executed)",
					slog.String("plan_id", plan.ID),
					slog.String("strategy", plan.Strategy),
					slog.Float64("est_profit_eth", plan.EstProfitETH),
				)
			}
		}
	})

	// HTTP server is always started in monitor mode.
	a.startServer(ctx, g, deps, brk, hub)

	return g.Wait()
}

// ServerMode serves only the HTTP + WebSocket API over the shared stores.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := a.newHub()
	alerts := notify.NewAlerts(deps.Notifier)
	brk := a.newBreaker(deps, hub, alerts)

	a.startServer(ctx, g, deps, brk, hub)

	return g.Wait()
}

// newHub creates the WebSocket hub with runtime metadata.
func (a *App) newHub() *ws.Hub {
	return ws.NewHub(a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
}

// newBreaker builds the circuit breaker and fans its state changes out to the
// status cache, the WebSocket hub, and operator notifications. The breaker
// only reports; it never drives execution.
func (a *App) newBreaker(deps *Dependencies, hub *ws.Hub, alerts *notify.Alerts) *breaker.Breaker {
	brk := breaker.New(breaker.Config{
		DailyLossLimitETH:      a.cfg.Breaker.DailyLossLimitETH,
		MaxConsecutiveFailures: a.cfg.Breaker.MaxConsecutiveFailures,
		FailureThresholdPct:    a.cfg.Breaker.FailureThresholdPct,
		RecoveryTimeout:        a.cfg.Breaker.RecoveryTimeout.Duration,
		EventCapacity:          a.cfg.Breaker.EventCapacity,
	}, a.logger)

	brk.OnStateChange(func(from, to domain.CircuitState) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		status := brk.Status()
		if err := deps.StatusCache.SetStatus(ctx, status); err != nil {
			a.logger.Warn("status cache update failed", slog.String("error", err.Error()))
		}
		if hub != nil {
			hub.BroadcastBreakerStatus(status)
		}
		if err := alerts.StateChange(ctx, from, to, status); err != nil {
			a.logger.Warn("state change alert failed", slog.String("error", err.Error()))
		}
	})

	return brk
}

// dailyLossResetter snapshots the accumulated loss before clearing it so the
// reset callback can report what was wiped.
type dailyLossResetter struct {
	brk      *breaker.Breaker
	lastLoss float64
}

func (r *dailyLossResetter) ResetDailyLoss() {
	r.lastLoss = r.brk.Status().DailyLossETH
	r.brk.ResetDailyLoss()
}

// startServer adds the HTTP server and hub goroutines to the given errgroup.
// The server is shut down gracefully when the context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, brk *breaker.Breaker, hub *ws.Hub) {
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Status:     handler.NewStatusHandler(a.cfg.Mode, time.Now().UTC()),
		Breaker:    handler.NewBreakerHandler(brk, a.logger),
		Executions: handler.NewExecutionHandler(deps.ExecutionStore, deps.LedgerStore, a.logger),
		Plans:      handler.NewPlanHandler(deps.PlanBus, a.logger),
		Audit:      handler.NewAuditHandler(deps.AuditStore, a.logger),
	}

	srv := server.NewServer(serverConfig(a.cfg), handlers, hub, deps.RateLimiter, a.logger)

	if hub != nil {
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		APIKey:          cfg.Server.APIKey,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow.Duration,
	}
}
