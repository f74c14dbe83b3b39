package settlement

import (
	"settleup/internal/domain"
)

// subsetThen first collapses every exact star-shaped match it can find
// (one balance offset by several of the opposite sign) and then hands the
// remaining balances to finish.
type subsetThen struct {
	kind   domain.Strategy
	finish func(work *domain.Ledger) []domain.Transaction
	opts   Options
}

func (s *subsetThen) Kind() domain.Strategy { return s.kind }

func (s *subsetThen) Settle(l *domain.Ledger) (*domain.Ledger, error) {
	matcher := NewSubsetMatcher(s.opts.Subset)

	out, err := run(l, func(work *domain.Ledger) []domain.Transaction {
		txs := payDownSubsets(work, matcher)
		return append(txs, s.finish(work)...)
	})

	if n := matcher.Truncated(); n > 0 {
		s.opts.Logger.Warn("Subset search truncated", map[string]interface{}{
			"strategy":     string(s.kind),
			"ledger":       l.Name,
			"participants": len(l.Participants),
			"truncated":    n,
		})
		s.opts.Recorder.ObserveTruncatedSearch(string(s.kind), n)
	}

	return out, err
}

// payDownSubsets applies subset matches until neither direction finds one.
// The first round reads initial balances, later rounds current ones. Every
// match zeroes at least two participants, so the participant count bounds
// the number of rounds.
func payDownSubsets(work *domain.Ledger, matcher *SubsetMatcher) []domain.Transaction {
	txs := make([]domain.Transaction, 0)

	useInitial := true
	for round := 0; round <= len(work.Participants); round++ {
		balances, m, ok := nextSubsetMatch(work, matcher, useInitial)
		if !ok {
			break
		}
		useInitial = false
		txs = append(txs, applySubsetMatch(balances, m)...)
	}

	return txs
}

// nextSubsetMatch tries a descending scan (creditors expressed as sums of
// debtors) and then an ascending one (debtors as sums of creditors).
func nextSubsetMatch(work *domain.Ledger, matcher *SubsetMatcher, useInitial bool) ([]*domain.Participant, Match, bool) {
	for _, reverse := range []bool{true, false} {
		less := byCurrentDesc
		if !reverse {
			less = byCurrentAsc
		}
		if useInitial {
			less = byInitial(reverse)
		}

		balances := active(work, less)
		values := make([]int64, len(balances))
		for i, p := range balances {
			if useInitial {
				values[i] = p.InitialNetBalance
			} else {
				values[i] = p.CurrentNetBalance
			}
		}

		if m, ok := matcher.Match(values, reverse); ok {
			return balances, m, true
		}
	}
	return nil, Match{}, false
}

func byInitial(desc bool) func(a, b *domain.Participant) bool {
	if desc {
		return byInitialDesc
	}
	return func(a, b *domain.Participant) bool { return a.InitialNetBalance < b.InitialNetBalance }
}

// applySubsetMatch emits one transaction per matched right-hand balance,
// always from the positive side to the negative side, and zeroes them.
func applySubsetMatch(balances []*domain.Participant, m Match) []domain.Transaction {
	left := balances[m.Left]
	txs := make([]domain.Transaction, 0, len(m.Right))

	for _, r := range m.Right {
		p := balances[r]
		weight := abs(p.CurrentNetBalance)

		if p.CurrentNetBalance < 0 {
			txs = append(txs, domain.Transaction{Origin: left.Name, Destination: p.Name, Weight: weight})
			left.CurrentNetBalance -= weight
		} else {
			txs = append(txs, domain.Transaction{Origin: p.Name, Destination: left.Name, Weight: weight})
			left.CurrentNetBalance += weight
		}
		p.CurrentNetBalance = 0
	}

	return txs
}
