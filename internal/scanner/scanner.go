package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"
)

// ScanResult summarizes one scan over candidate pairs.
type ScanResult struct {
	Timestamp          time.Time
	PairsScanned       int
	CointegratedFound  int
	NewPairs           int
	BreakdownsDetected int
	Results            []domain.CointegrationResult
}

// Scanner tests candidate symbol pairs for cointegration and persists the
// hits through the pair repository. It consumes pre-fetched, aligned
// series; data retrieval stays with the caller.
type Scanner struct {
	analyzer *analysis.Analyzer
	repo     ports.PairRepository
	logger   ports.Logger
}

// New creates a scanner.
func New(analyzer *analysis.Analyzer, repo ports.PairRepository, logger ports.Logger) (*Scanner, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required for scanner")
	}
	if repo == nil {
		return nil, fmt.Errorf("pair repository is required for scanner")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for scanner")
	}
	return &Scanner{analyzer: analyzer, repo: repo, logger: logger}, nil
}

// ScanUniverse tests every two-combination of the given symbols whose
// series are present in data. A failure on one pair never aborts the
// rest of the scan.
func (s *Scanner) ScanUniverse(ctx context.Context, symbols []string, data map[string][]float64, maxPairs int) (*ScanResult, error) {
	var candidates [][2]string
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			if _, ok := data[symbols[i]]; !ok {
				continue
			}
			if _, ok := data[symbols[j]]; !ok {
				continue
			}
			candidates = append(candidates, [2]string{symbols[i], symbols[j]})
		}
	}
	if maxPairs > 0 && len(candidates) > maxPairs {
		s.logger.Info(ctx, "limiting scan", map[string]interface{}{
			"candidates": len(candidates),
			"max_pairs":  maxPairs,
		})
		candidates = candidates[:maxPairs]
	}
	return s.scanPairs(ctx, candidates, func(sym1, sym2 string) ([]float64, []float64) {
		return data[sym1], data[sym2]
	})
}

// ScanPairs tests an explicit list of pairs against the supplied series.
func (s *Scanner) ScanPairs(ctx context.Context, pairs [][2]string, data map[string][]float64) (*ScanResult, error) {
	return s.scanPairs(ctx, pairs, func(sym1, sym2 string) ([]float64, []float64) {
		return data[sym1], data[sym2]
	})
}

func (s *Scanner) scanPairs(ctx context.Context, pairs [][2]string, lookup func(string, string) ([]float64, []float64)) (*ScanResult, error) {
	out := &ScanResult{Timestamp: time.Now()}

	for _, p := range pairs {
		sym1, sym2 := p[0], p[1]
		series1, series2 := lookup(sym1, sym2)
		if len(series1) == 0 || len(series2) == 0 || len(series1) != len(series2) {
			continue
		}

		result, err := s.analyzer.TestEngleGranger(ctx, series1, series2, sym1, sym2)
		if err != nil {
			if errors.Is(err, ports.ErrInsufficientData) || errors.Is(err, ports.ErrEstimationFailed) {
				s.logger.Debug(ctx, "pair not evaluable", map[string]interface{}{
					"pair": domain.PairID(sym1, sym2), "error": err.Error(),
				})
				continue
			}
			return nil, err
		}

		out.PairsScanned++
		if !result.IsCointegrated {
			continue
		}
		out.CointegratedFound++
		out.Results = append(out.Results, result)

		pairID := domain.PairID(sym1, sym2)
		existing, err := s.repo.FindPair(ctx, pairID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			out.NewPairs++
		}
		if err := s.repo.SavePair(ctx, &domain.Pair{
			PairID:     pairID,
			Symbol1:    sym1,
			Symbol2:    sym2,
			HedgeRatio: result.HedgeRatio,
			HalfLife:   result.HalfLife,
			PValue:     result.PValue,
			SpreadMean: result.SpreadMean,
			SpreadStd:  result.SpreadStd,
			TestMethod: result.TestMethod,
			IsActive:   true,
		}); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "cointegrated pair found", map[string]interface{}{
			"pair":        pairID,
			"pvalue":      result.PValue,
			"hedge_ratio": result.HedgeRatio,
			"half_life":   result.HalfLife,
		})
	}

	return out, nil
}

// ValidateActivePairs re-tests every active pair against fresh series and
// deactivates the ones whose relationship has broken down. Returns the
// counts of validated and broken-down pairs.
func (s *Scanner) ValidateActivePairs(ctx context.Context, data map[string][]float64) (validated, breakdowns int, err error) {
	active, err := s.repo.FindActivePairs(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, pair := range active {
		series1, ok1 := data[pair.Symbol1]
		series2, ok2 := data[pair.Symbol2]
		if !ok1 || !ok2 || len(series1) != len(series2) {
			continue
		}

		result, err := s.analyzer.TestEngleGranger(ctx, series1, series2, pair.Symbol1, pair.Symbol2)
		if err != nil {
			if errors.Is(err, ports.ErrInsufficientData) || errors.Is(err, ports.ErrEstimationFailed) {
				continue
			}
			return validated, breakdowns, err
		}

		if down, reason := s.analyzer.CheckBreakdown(result, pair.HedgeRatio); down {
			breakdowns++
			s.logger.Warn(ctx, "pair breakdown detected", map[string]interface{}{
				"pair":   pair.PairID,
				"reason": reason,
			})
			if err := s.repo.DeactivatePair(ctx, pair.PairID); err != nil {
				return validated, breakdowns, err
			}
			continue
		}

		validated++
		pair.HedgeRatio = result.HedgeRatio
		pair.HalfLife = result.HalfLife
		pair.PValue = result.PValue
		pair.SpreadMean = result.SpreadMean
		pair.SpreadStd = result.SpreadStd
		if err := s.repo.SavePair(ctx, pair); err != nil {
			return validated, breakdowns, err
		}
	}

	return validated, breakdowns, nil
}
