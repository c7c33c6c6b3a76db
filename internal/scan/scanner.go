package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgehound/edgehound/internal/domain"
	"github.com/edgehound/edgehound/internal/engine"
	"github.com/edgehound/edgehound/internal/forecast"
	"github.com/edgehound/edgehound/internal/notify"
)

// MarketSource supplies the open-contract universe each cycle.
type MarketSource interface {
	ListOpenContracts(ctx context.Context) ([]domain.Contract, error)
	GetMarket(ctx context.Context, ticker string) (domain.Contract, error)
}

// Config holds the cycle parameters.
type Config struct {
	Interval      time.Duration // sleep between cycles
	ForecastDelay time.Duration // pause between consecutive forecast requests
	EstimateTTL   time.Duration // forecast cache lifetime
	Filter        FilterConfig
}

// Scanner runs the scan cycle. Everything inside a cycle is sequential by
// design: the forecaster boundary is rate limited and the risk state and
// ledger are owned by this single thread of control.
type Scanner struct {
	cfg        Config
	source     MarketSource
	detector   *engine.Detector
	risk       *engine.RiskManager
	state      *engine.RiskState
	forecaster forecast.Forecaster
	exec       Executor

	// Optional collaborators; each may be nil.
	cache    domain.EstimateCache
	limiter  domain.RateLimiter
	signals  domain.SignalStore
	arbs     domain.ArbStore
	notifier *notify.Notifier

	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Options carries the optional collaborators for a Scanner.
type Options struct {
	Cache    domain.EstimateCache
	Limiter  domain.RateLimiter
	Signals  domain.SignalStore
	Arbs     domain.ArbStore
	Notifier *notify.Notifier
}

// New creates a Scanner. The risk state is owned here and passed by handle
// into every sizing call.
func New(
	cfg Config,
	source MarketSource,
	detector *engine.Detector,
	risk *engine.RiskManager,
	forecaster forecast.Forecaster,
	exec Executor,
	opts Options,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		cfg:        cfg,
		source:     source,
		detector:   detector,
		risk:       risk,
		state:      &engine.RiskState{},
		forecaster: forecaster,
		exec:       exec,
		cache:      opts.Cache,
		limiter:    opts.Limiter,
		signals:    opts.Signals,
		arbs:       opts.Arbs,
		notifier:   opts.Notifier,
		logger:     logger.With(slog.String("component", "scanner")),
		sleep:      sleepCtx,
	}
}

// ResetDaily zeroes the daily loss breaker. Wired to the midnight scheduler.
func (s *Scanner) ResetDaily() {
	s.risk.ResetDaily(s.state)
}

// Run executes one cycle immediately, then repeats on the configured interval
// until ctx is cancelled. A failed cycle is logged and the loop continues;
// only cancellation stops the process.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner starting",
		slog.Duration("interval", s.cfg.Interval),
		slog.Int("max_candidates", s.cfg.Filter.MaxCandidates),
	)

	if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("cycle failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce executes a single scan cycle.
func (s *Scanner) RunOnce(ctx context.Context) error {
	start := time.Now()

	contracts, err := s.source.ListOpenContracts(ctx)
	if err != nil {
		return fmt.Errorf("scan: fetch contracts: %w", err)
	}

	pf, err := s.exec.Portfolio(ctx)
	if err != nil {
		return fmt.Errorf("scan: portfolio snapshot: %w", err)
	}

	s.settleResolved(ctx, pf)

	candidates := FilterCandidates(contracts, s.cfg.Filter)

	// The structural scan runs over every open contract: arbitrage needs
	// neither liquidity nor category match.
	opps := s.detector.FindArbitrage(contracts)
	s.recordArbs(ctx, opps)

	forecastable := FilterForecastable(candidates)
	selected := SelectDiverse(forecastable, s.cfg.Filter.MaxCandidates)

	s.logger.Info("candidates selected",
		slog.Int("open", len(contracts)),
		slog.Int("filtered", len(candidates)),
		slog.Int("forecastable", len(forecastable)),
		slog.Int("selected", len(selected)),
	)

	estimates := s.collectEstimates(ctx, selected)
	edges := s.detector.DetectEdges(selected, estimates)

	// Re-snapshot after settlements so sizing sees current cash.
	pf, err = s.exec.Portfolio(ctx)
	if err != nil {
		return fmt.Errorf("scan: portfolio snapshot: %w", err)
	}

	if len(edges) > 0 && s.risk.DailyHalted(s.state) {
		s.notify(ctx, notify.EventBreaker, "Daily loss breaker tripped",
			fmt.Sprintf("refusing %d qualifying edges until the daily reset", len(edges)))
	}

	signals := s.risk.GenerateSignals(s.state, edges, pf)
	filled := s.dispatch(ctx, signals)

	s.summarize(ctx, time.Since(start), len(edges), len(signals), filled, len(opps))
	return ctx.Err()
}

// collectEstimates requests forecasts strictly sequentially, pausing between
// consecutive provider calls. Cache hits skip the provider and the pause. A
// contract whose forecast fails after retries is dropped from the batch.
func (s *Scanner) collectEstimates(ctx context.Context, contracts []domain.Contract) map[string]domain.Estimate {
	estimates := make(map[string]domain.Estimate, len(contracts))
	requested := false

	for _, c := range contracts {
		if ctx.Err() != nil {
			break
		}

		if s.cache != nil {
			if est, err := s.cache.Get(ctx, c.Ticker); err == nil {
				estimates[c.Ticker] = est
				continue
			} else if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("estimate cache read failed",
					slog.String("ticker", c.Ticker),
					slog.String("error", err.Error()),
				)
			}
		}

		if requested {
			if err := s.sleep(ctx, s.cfg.ForecastDelay); err != nil {
				break
			}
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, "forecast"); err != nil {
				s.logger.Warn("rate limiter wait failed", slog.String("error", err.Error()))
			}
		}

		requested = true
		est, err := s.forecaster.Forecast(ctx, c)
		if err != nil {
			s.logger.Error("forecast abandoned",
				slog.String("ticker", c.Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		estimates[c.Ticker] = est

		if s.cache != nil {
			if err := s.cache.Set(ctx, est, s.cfg.EstimateTTL); err != nil {
				s.logger.Warn("estimate cache write failed",
					slog.String("ticker", c.Ticker),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return estimates
}

// dispatch sends each signal to the execution back end. A per-signal failure
// is logged and the remaining signals still go out. Returns the fill count.
func (s *Scanner) dispatch(ctx context.Context, signals []domain.TradeSignal) int {
	filled := 0
	for _, sig := range signals {
		if s.signals != nil {
			if err := s.signals.Insert(ctx, sig); err != nil {
				s.logger.Error("persist signal failed",
					slog.String("signal_id", sig.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		rec, err := s.exec.Execute(ctx, sig)
		if err != nil {
			s.logger.Error("signal dispatch failed",
				slog.String("ticker", sig.Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !rec.Filled {
			s.logger.Warn("signal not filled",
				slog.String("ticker", sig.Ticker),
				slog.String("reason", rec.Reason),
			)
			continue
		}
		filled++

		s.notify(ctx, notify.EventSignal, "Trade signal filled",
			fmt.Sprintf("%s %s x%d @ %d¢ ($%.2f)\n%s",
				sig.Ticker, sig.Side, sig.Contracts, sig.LimitPrice, sig.SizeUSD, sig.Rationale))
	}
	return filled
}

// settleResolved checks each held position against the exchange and settles
// those whose contract has resolved. A losing settlement feeds the daily loss
// breaker.
func (s *Scanner) settleResolved(ctx context.Context, pf domain.Portfolio) {
	settler, ok := s.exec.(Settler)
	if !ok {
		return
	}

	for _, pos := range pf.Positions {
		c, err := s.source.GetMarket(ctx, pos.Ticker)
		if err != nil {
			s.logger.Warn("resolution check failed",
				slog.String("ticker", pos.Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		if c.Status != domain.ContractStatusSettled || c.Result == "" {
			continue
		}

		set, err := settler.Settle(ctx, pos.Ticker, c.Result)
		if err != nil {
			s.logger.Error("settlement failed",
				slog.String("ticker", pos.Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		if set.RealizedPnL < 0 {
			s.risk.RecordLoss(s.state, -set.RealizedPnL)
		}

		s.notify(ctx, notify.EventSettlement, "Position settled",
			fmt.Sprintf("%s held %s, resolved %s: P&L $%.2f",
				set.Ticker, set.Side, set.Outcome, set.RealizedPnL))
	}
}

// recordArbs persists detected mispricings and alerts on guaranteed profits.
func (s *Scanner) recordArbs(ctx context.Context, opps []domain.ArbOpportunity) {
	for _, opp := range opps {
		if s.arbs != nil {
			if err := s.arbs.Insert(ctx, opp); err != nil {
				s.logger.Error("persist arb opportunity failed",
					slog.String("ticker", opp.Ticker),
					slog.String("error", err.Error()),
				)
			}
		}
		if opp.Kind == domain.ArbGuaranteedProfit {
			s.notify(ctx, notify.EventArbitrage, "Guaranteed-profit book",
				fmt.Sprintf("%s: yes %d¢ + no %d¢ = %d¢", opp.Ticker, opp.YesAsk, opp.NoAsk, opp.Total))
		}
	}
}

func (s *Scanner) summarize(ctx context.Context, elapsed time.Duration, edges, signals, filled, arbs int) {
	pf, err := s.exec.Portfolio(ctx)
	if err != nil {
		s.logger.Warn("summary portfolio snapshot failed", slog.String("error", err.Error()))
		return
	}

	s.logger.Info("cycle complete",
		slog.Duration("elapsed", elapsed.Round(time.Millisecond)),
		slog.Int("edges", edges),
		slog.Int("signals", signals),
		slog.Int("filled", filled),
		slog.Int("arbs", arbs),
		slog.Float64("balance", pf.Balance),
		slog.Float64("exposure", pf.Exposure),
		slog.Float64("realized_pnl", pf.RealizedPnL),
	)

	if signals > 0 || arbs > 0 {
		s.notify(ctx, notify.EventCycle, "Cycle summary",
			fmt.Sprintf("edges %d, signals %d, filled %d, arbs %d\nbalance $%.2f, exposure $%.2f, realized $%.2f",
				edges, signals, filled, arbs, pf.Balance, pf.Exposure, pf.RealizedPnL))
	}
}

func (s *Scanner) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
