package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgehound/edgehound/internal/domain"
	"github.com/edgehound/edgehound/internal/engine"
	"github.com/edgehound/edgehound/internal/notify"
	"github.com/edgehound/edgehound/internal/paper"
	"github.com/edgehound/edgehound/internal/scan"
)

// buildScanner assembles the scan loop around the given execution back end.
func (a *App) buildScanner(deps *Dependencies, exec scan.Executor) *scan.Scanner {
	detector := engine.NewDetector(engine.DetectorConfig{
		MinEdge: a.cfg.Risk.MinEdge,
	}, a.logger)

	risk := engine.NewRiskManager(engine.RiskConfig{
		KellyFraction:    a.cfg.Risk.KellyFraction,
		MaxExposure:      a.cfg.Risk.MaxExposure,
		MaxPositionSize:  a.cfg.Risk.MaxPositionSize,
		MinConfidence:    a.cfg.Risk.MinConfidence,
		MaxTradesPerHour: a.cfg.Risk.MaxTradesPerHour,
	}, a.logger)

	return scan.New(
		scan.Config{
			Interval:      a.cfg.Scan.Interval.Duration,
			ForecastDelay: a.cfg.ForecastDelay(),
			EstimateTTL:   a.cfg.Scan.EstimateTTL.Duration,
			Filter: scan.FilterConfig{
				Categories:    a.cfg.Scan.Categories,
				MaxCandidates: a.cfg.Scan.MaxCandidates,
			},
		},
		deps.Kalshi,
		detector,
		risk,
		deps.Forecaster,
		exec,
		scan.Options{
			Cache:    deps.EstimateCache,
			Limiter:  deps.RateLimiter,
			Signals:  deps.SignalStore,
			Arbs:     deps.ArbStore,
			Notifier: deps.Notifier,
		},
		a.logger,
	)
}

// PaperMode runs the scan loop against the simulated ledger, alongside the
// daily risk reset and, when enabled, the archival loop.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	ledger := paper.NewLedger(a.cfg.Paper.InitialBalance, a.logger)
	exec := scan.NewPaperExecutor(ledger, deps.TradeStore, a.logger)
	scanner := a.buildScanner(deps, exec)

	a.logger.Info("paper trading started",
		slog.Float64("initial_balance", a.cfg.Paper.InitialBalance),
	)
	return a.runLoops(ctx, deps, scanner)
}

// LiveMode runs the scan loop against the real exchange.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	exec := scan.NewLiveExecutor(deps.Kalshi, deps.TradeStore, a.logger)
	scanner := a.buildScanner(deps, exec)

	a.logger.Warn("live trading started, orders will reach the exchange")
	return a.runLoops(ctx, deps, scanner)
}

// OnceMode executes a single scan cycle against the simulated ledger and
// exits. Useful for cron-style scheduling and smoke tests.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	ledger := paper.NewLedger(a.cfg.Paper.InitialBalance, a.logger)
	exec := scan.NewPaperExecutor(ledger, deps.TradeStore, a.logger)
	scanner := a.buildScanner(deps, exec)

	a.logger.Info("single cycle starting")
	if err := scanner.RunOnce(ctx); err != nil {
		return fmt.Errorf("once: %w", err)
	}
	return nil
}

// MonitorMode repeatedly runs the structural arbitrage scan without
// forecasting or trading. Detected mispricings are persisted and alerted on.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	detector := engine.NewDetector(engine.DetectorConfig{
		MinEdge: a.cfg.Risk.MinEdge,
	}, a.logger)

	interval := a.cfg.Scan.Interval.Duration
	a.logger.Info("arbitrage monitor started", slog.Duration("interval", interval))

	scanOnce := func() {
		contracts, err := deps.Kalshi.ListOpenContracts(ctx)
		if err != nil {
			a.logger.Error("monitor fetch failed", slog.String("error", err.Error()))
			return
		}
		opps := detector.FindArbitrage(contracts)
		for _, opp := range opps {
			if err := deps.ArbStore.Insert(ctx, opp); err != nil {
				a.logger.Error("persist arb opportunity failed",
					slog.String("ticker", opp.Ticker),
					slog.String("error", err.Error()),
				)
			}
			if opp.Kind != domain.ArbGuaranteedProfit {
				continue
			}
			if err := deps.Notifier.Notify(ctx, notify.EventArbitrage, "Guaranteed-profit book",
				fmt.Sprintf("%s: yes %d¢ + no %d¢ = %d¢", opp.Ticker, opp.YesAsk, opp.NoAsk, opp.Total),
			); err != nil {
				a.logger.Warn("notification failed", slog.String("error", err.Error()))
			}
		}
		a.logger.Info("monitor pass complete",
			slog.Int("open", len(contracts)),
			slog.Int("opportunities", len(opps)),
		)
	}

	scanOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			scanOnce()
		}
	}
}

// runLoops drives the scanner plus the background maintenance loops until the
// context is cancelled.
func (a *App) runLoops(ctx context.Context, deps *Dependencies, scanner *scan.Scanner) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scanner.Run(ctx)
	})

	g.Go(func() error {
		return a.dailyResetLoop(ctx, deps, scanner)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	return g.Wait()
}

// dailyResetLoop clears the daily loss breaker at midnight UTC.
func (a *App) dailyResetLoop(ctx context.Context, deps *Dependencies, scanner *scan.Scanner) error {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		scanner.ResetDaily()
		a.logger.Info("daily risk counters reset")
		if err := deps.AuditStore.Log(ctx, "risk.daily_reset", map[string]any{
			"at": time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			a.logger.Warn("audit write failed", slog.String("error", err.Error()))
		}
	}
}

// archiveLoop periodically snapshots records older than the retention window
// to object storage. Rows are not deleted from PostgreSQL here; see Archiver.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	a.logger.Info("archiver started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		cutoff := time.Now().UTC().Add(-retention)
		a.archivePass(ctx, deps, cutoff)
	}
}

func (a *App) archivePass(ctx context.Context, deps *Dependencies, cutoff time.Time) {
	runs := []struct {
		kind string
		fn   func(context.Context, time.Time) (int64, error)
	}{
		{"trades", deps.Archiver.ArchiveTrades},
		{"signals", deps.Archiver.ArchiveSignals},
		{"arbs", deps.Archiver.ArchiveArbs},
	}
	for _, r := range runs {
		n, err := r.fn(ctx, cutoff)
		if err != nil {
			a.logger.Error("archive pass failed",
				slog.String("kind", r.kind),
				slog.String("error", err.Error()),
			)
			continue
		}
		if n > 0 {
			a.logger.Info("records archived",
				slog.String("kind", r.kind),
				slog.Int64("count", n),
			)
		}
	}
}
