package optimization

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pairsTradingBot/internal/backtest"
	"pairsTradingBot/internal/ports"
)

// ParameterRange defines a grid dimension for the threshold sweep.
type ParameterRange struct {
	Name string // "zscore_entry", "zscore_exit" or "zscore_stop"
	Min  float64
	Max  float64
	Step float64
}

// Result pairs one parameter combination with its backtest outcome.
type Result struct {
	Params backtest.Params
	Metric *backtest.Result
	Score  float64
}

// Config holds the sweep setup. Base supplies every parameter the ranges
// don't vary; Score ranks outcomes (higher is better).
type Config struct {
	Ranges  []ParameterRange
	Base    backtest.Params
	Score   func(*backtest.Result) float64
	Workers int
}

// Optimizer sweeps z-score thresholds over the backtest simulator.
// Combinations that fail Params validation (e.g., exit >= entry on some
// grid point) are skipped rather than treated as errors.
type Optimizer struct {
	cfg    Config
	sim    *backtest.Simulator
	logger ports.Logger
}

// New creates an optimizer.
func New(cfg Config, sim *backtest.Simulator, logger ports.Logger) (*Optimizer, error) {
	if sim == nil {
		return nil, fmt.Errorf("simulator is required for optimizer")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer")
	}
	if len(cfg.Ranges) == 0 {
		return nil, fmt.Errorf("%w: at least one parameter range is required", ports.ErrConfiguration)
	}
	for _, r := range cfg.Ranges {
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("%w: invalid range for %s", ports.ErrConfiguration, r.Name)
		}
	}
	if cfg.Score == nil {
		cfg.Score = DefaultScore
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Optimizer{cfg: cfg, sim: sim, logger: logger}, nil
}

// DefaultScore balances expectancy against drawdown.
func DefaultScore(r *backtest.Result) float64 {
	if r.TotalTrades == 0 {
		return 0
	}
	return r.Expectancy - r.MaxDrawdownPercent/10
}

// Optimize runs the grid sweep and returns results sorted by score
// descending. Independent parameter sets run in parallel; each backtest
// is self-contained.
func (o *Optimizer) Optimize(ctx context.Context, symbol1, symbol2 string, series1, series2 []float64, times []time.Time) ([]Result, error) {
	combos := o.combinations()
	o.logger.Info(ctx, "starting threshold sweep", map[string]interface{}{
		"pair":         symbol1 + "_" + symbol2,
		"combinations": len(combos),
	})

	var (
		mu      sync.Mutex
		results []Result
		wg      sync.WaitGroup
		sem     = make(chan struct{}, o.cfg.Workers)
	)

	for _, params := range combos {
		if params.Validate() != nil {
			continue
		}
		wg.Add(1)
		go func(p backtest.Params) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := o.sim.Run(ctx, symbol1, symbol2, series1, series2, times, p)
			if err != nil {
				o.logger.Warn(ctx, "sweep point failed", map[string]interface{}{
					"entry": p.ZScoreEntry, "exit": p.ZScoreExit, "stop": p.ZScoreStop,
					"error": err.Error(),
				})
				return
			}
			mu.Lock()
			results = append(results, Result{Params: p, Metric: res, Score: o.cfg.Score(res)})
			mu.Unlock()
		}(params)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// combinations expands the ranges into the full parameter grid.
func (o *Optimizer) combinations() []backtest.Params {
	out := []backtest.Params{o.cfg.Base}
	for _, r := range o.cfg.Ranges {
		var next []backtest.Params
		for v := r.Min; v <= r.Max+1e-9; v += r.Step {
			for _, p := range out {
				q := p
				switch r.Name {
				case "zscore_entry":
					q.ZScoreEntry = v
				case "zscore_exit":
					q.ZScoreExit = v
				case "zscore_stop":
					q.ZScoreStop = v
				}
				next = append(next, q)
			}
		}
		out = next
	}
	return out
}
