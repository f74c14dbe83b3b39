// ==============================================================================
// SETTLEMENT STRATEGIES - internal/settlement/strategy.go
// ==============================================================================
package settlement

import (
	"fmt"
	"sort"

	"settleup/internal/domain"
	"settleup/pkg/errors"
	"settleup/pkg/logger"
)

// Strategy turns a balance-reduced ledger into a settlement ledger whose
// transactions pay every current balance down to zero. Implementations
// work on a private copy and never mutate their input.
type Strategy interface {
	Kind() domain.Strategy
	Settle(l *domain.Ledger) (*domain.Ledger, error)
}

// Recorder receives settlement engine observations. *metrics.SettlementRecorder
// implements it; a nil Recorder is allowed.
type Recorder interface {
	ObserveCandidate(strategy string, transactions int, err error)
	ObserveSelected(strategy string, transactions int)
	ObserveTruncatedSearch(strategy string, count int)
}

// Options configures strategy construction.
type Options struct {
	Subset   SubsetLimits
	Logger   logger.Logger
	Recorder Recorder
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	return o
}

// NewStrategy returns the heuristic identified by kind.
func NewStrategy(kind domain.Strategy, opts Options) (Strategy, error) {
	opts = opts.withDefaults()

	switch kind {
	case domain.StrategyLargestDifference:
		return largestDifference{}, nil
	case domain.StrategyClosestDifference:
		return closestDifference{}, nil
	case domain.StrategySubsetThenLargest:
		return &subsetThen{kind: kind, finish: payDownLargest, opts: opts}, nil
	case domain.StrategySubsetThenClosest:
		return &subsetThen{kind: kind, finish: payDownClosest, opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownStrategy, kind)
	}
}

// AllStrategies returns every heuristic in evaluation order.
func AllStrategies(opts Options) []Strategy {
	out := make([]Strategy, 0, len(domain.Strategies))
	for _, kind := range domain.Strategies {
		s, _ := NewStrategy(kind, opts)
		out = append(out, s)
	}
	return out
}

// run is the shared scaffolding of every heuristic: validate, copy, pay
// down, then check that nothing is left over.
func run(l *domain.Ledger, payDown func(work *domain.Ledger) []domain.Transaction) (*domain.Ledger, error) {
	if !l.IsReduced() {
		return nil, errors.ErrNotReduced
	}

	work := l.Clone()
	work.Transactions = payDown(work)

	if err := checkSettled(work); err != nil {
		return nil, err
	}
	return work, nil
}

func checkSettled(l *domain.Ledger) error {
	for _, name := range l.Names() {
		if residual := l.Participants[name].CurrentNetBalance; residual != 0 {
			return fmt.Errorf("%w: %s left with residual balance %d", errors.ErrConservationViolated, name, residual)
		}
	}
	return nil
}

// active returns the participants with a non-zero current balance sorted
// by less, names breaking ties so runs are deterministic.
func active(l *domain.Ledger, less func(a, b *domain.Participant) bool) []*domain.Participant {
	out := make([]*domain.Participant, 0, len(l.Participants))
	for _, p := range l.Participants {
		if p.CurrentNetBalance != 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func byCurrentDesc(a, b *domain.Participant) bool { return a.CurrentNetBalance > b.CurrentNetBalance }
func byCurrentAsc(a, b *domain.Participant) bool  { return a.CurrentNetBalance < b.CurrentNetBalance }
func byInitialDesc(a, b *domain.Participant) bool { return a.InitialNetBalance > b.InitialNetBalance }

// settlePair applies the equal/less/greater rule between a creditor
// (positive balance) and a debtor (negative balance) and returns the
// transaction it produces. The creditor is always the origin.
func settlePair(creditor, debtor *domain.Participant) domain.Transaction {
	a, b := creditor.CurrentNetBalance, debtor.CurrentNetBalance

	var weight int64
	switch {
	case a == -b:
		weight = a
		creditor.CurrentNetBalance = 0
		debtor.CurrentNetBalance = 0
	case a < -b:
		weight = a
		creditor.CurrentNetBalance = 0
		debtor.CurrentNetBalance = a + b
	default:
		weight = -b
		creditor.CurrentNetBalance = a + b
		debtor.CurrentNetBalance = 0
	}

	return domain.Transaction{Origin: creditor.Name, Destination: debtor.Name, Weight: weight}
}

type nopRecorder struct{}

func (nopRecorder) ObserveCandidate(string, int, error) {}
func (nopRecorder) ObserveSelected(string, int)         {}
func (nopRecorder) ObserveTruncatedSearch(string, int)  {}
