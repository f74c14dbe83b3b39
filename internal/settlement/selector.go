// ==============================================================================
// BEST-OF SELECTOR - internal/settlement/selector.go
// ==============================================================================
package settlement

import (
	"context"
	"fmt"
	"time"

	"settleup/internal/domain"
	"settleup/pkg/errors"
	"settleup/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Candidate is the outcome of one heuristic on the selector's input.
type Candidate struct {
	Strategy     domain.Strategy `json:"strategy"`
	Transactions int             `json:"transactions"`
	Error        string          `json:"error,omitempty"`

	ledger *domain.Ledger
	err    error
}

// Result is an audited settlement.
type Result struct {
	Ledger     *domain.Ledger
	Strategy   domain.Strategy
	Candidates []Candidate
}

// Selector runs every heuristic against the same reduced ledger and keeps
// the result with the fewest transactions.
type Selector struct {
	strategies []Strategy
	limits     SubsetLimits
	parallel   bool
	logger     logger.Logger
	recorder   Recorder
}

// NewSelector returns a selector over AllStrategies(opts). With parallel
// set, the heuristics run concurrently, each on its own copy.
func NewSelector(opts Options, parallel bool) *Selector {
	opts = opts.withDefaults()
	return &Selector{
		strategies: AllStrategies(opts),
		limits:     opts.Subset.withDefaults(),
		parallel:   parallel,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
	}
}

// Best evaluates every strategy and returns the audited winner. Ties go to
// the strategy evaluated first (largest difference, subset then largest,
// subset then closest, closest difference). A degenerate ledger (no
// participants, or nobody owed anything) yields ErrNoResult. A failed
// audit yields ErrConservationViolated and no result.
func (s *Selector) Best(ctx context.Context, l *domain.Ledger) (*Result, error) {
	if err := checkSettleable(l); err != nil {
		return nil, err
	}

	start := time.Now()
	candidates, err := s.evaluate(ctx, l)
	if err != nil {
		return nil, err
	}

	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if c.err != nil {
			if errors.Is(c.err, errors.ErrConservationViolated) {
				s.logger.Error("Settlement strategy broke conservation", map[string]interface{}{
					"strategy": string(c.Strategy),
					"ledger":   l.Name,
					"error":    c.err.Error(),
				})
				return nil, c.err
			}
			continue
		}
		if best == nil || c.Transactions < best.Transactions {
			best = c
		}
	}

	if best == nil {
		return nil, errors.Wrap(errors.ErrNoResult, "every strategy failed")
	}

	if err := Audit(best.ledger); err != nil {
		s.logger.Error("Settlement audit failed", map[string]interface{}{
			"strategy": string(best.Strategy),
			"ledger":   l.Name,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.recorder.ObserveSelected(string(best.Strategy), best.Transactions)
	s.logger.Info("Settlement selected", map[string]interface{}{
		"ledger":       l.Name,
		"strategy":     string(best.Strategy),
		"transactions": best.Transactions,
		"participants": len(l.Participants),
		"duration_ms":  time.Since(start).Milliseconds(),
	})

	return &Result{
		Ledger:     best.ledger,
		Strategy:   best.Strategy,
		Candidates: candidates,
	}, nil
}

// Signature identifies the selector configuration that can change results.
func (s *Selector) Signature() string {
	return fmt.Sprintf("subset:%d:%d", s.limits.MaxGroup, s.limits.StepBudget)
}

// MustBest is Best for callers that treat an audit failure as fatal: it
// panics on ErrConservationViolated and returns every other error.
func (s *Selector) MustBest(ctx context.Context, l *domain.Ledger) (*Result, error) {
	res, err := s.Best(ctx, l)
	if errors.Is(err, errors.ErrConservationViolated) {
		panic(fmt.Sprintf("settlement: %v", err))
	}
	return res, err
}

func (s *Selector) evaluate(ctx context.Context, l *domain.Ledger) ([]Candidate, error) {
	candidates := make([]Candidate, len(s.strategies))

	runOne := func(i int) {
		strategy := s.strategies[i]
		out, err := strategy.Settle(l)

		c := Candidate{Strategy: strategy.Kind(), ledger: out, err: err}
		if err != nil {
			c.Error = err.Error()
		} else {
			c.Transactions = len(out.Transactions)
		}
		candidates[i] = c

		s.recorder.ObserveCandidate(string(c.Strategy), c.Transactions, err)
		s.logger.Debug("Settlement candidate", map[string]interface{}{
			"strategy":     string(c.Strategy),
			"transactions": c.Transactions,
			"error":        c.Error,
		})
	}

	if !s.parallel {
		for i := range s.strategies {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			runOne(i)
		}
		return candidates, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range s.strategies {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runOne(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return candidates, nil
}

// Settle runs a single named strategy and audits it, or the full selector
// when kind is empty or StrategyBest.
func (s *Selector) Settle(ctx context.Context, l *domain.Ledger, kind domain.Strategy) (*Result, error) {
	if kind == "" || kind == domain.StrategyBest {
		return s.Best(ctx, l)
	}

	var strategy Strategy
	for _, candidate := range s.strategies {
		if candidate.Kind() == kind {
			strategy = candidate
			break
		}
	}
	if strategy == nil {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownStrategy, kind)
	}
	if err := checkSettleable(l); err != nil {
		return nil, err
	}

	out, err := strategy.Settle(l)
	if err != nil {
		return nil, err
	}
	if err := Audit(out); err != nil {
		return nil, err
	}

	c := Candidate{Strategy: kind, Transactions: len(out.Transactions), ledger: out}
	s.recorder.ObserveCandidate(string(kind), c.Transactions, nil)
	s.recorder.ObserveSelected(string(kind), c.Transactions)
	return &Result{Ledger: out, Strategy: kind, Candidates: []Candidate{c}}, nil
}

// checkSettleable rejects unreduced ledgers and degenerate ones with no
// non-zero balance to pay down.
func checkSettleable(l *domain.Ledger) error {
	if !l.IsReduced() {
		return errors.ErrNotReduced
	}
	if len(l.Participants) == 0 {
		return errors.Wrap(errors.ErrNoResult, "ledger has no participants")
	}
	for _, p := range l.Participants {
		if p.InitialNetBalance != 0 {
			return nil
		}
	}
	return errors.Wrap(errors.ErrNoResult, "every balance is already zero")
}
