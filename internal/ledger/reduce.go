// ==============================================================================
// BALANCE REDUCTION - internal/ledger/reduce.go
// ==============================================================================
package ledger

import (
	"fmt"

	"settleup/internal/domain"
	"settleup/pkg/errors"
)

// Reduce folds the transactions of l into one net balance per participant
// (received minus given, on top of any balance already carried) and returns
// a copy with an empty transaction list. l is left untouched, and reducing
// an already reduced ledger changes nothing.
func Reduce(l *domain.Ledger) *domain.Ledger {
	out := l.Clone()

	given := make(map[string]int64, len(out.Participants))
	received := make(map[string]int64, len(out.Participants))
	for _, t := range out.Transactions {
		out.AddParticipant(t.Origin)
		out.AddParticipant(t.Destination)
		given[t.Origin] += t.Weight
		received[t.Destination] += t.Weight
	}

	for name, p := range out.Participants {
		net := p.InitialNetBalance + received[name] - given[name]
		p.InitialNetBalance = net
		p.CurrentNetBalance = net
	}

	out.Transactions = make([]domain.Transaction, 0)
	return out
}

// Totals returns the sum of positive and the absolute sum of negative
// initial balances.
func Totals(l *domain.Ledger) (credit, debit int64) {
	for _, p := range l.Participants {
		if p.InitialNetBalance > 0 {
			credit += p.InitialNetBalance
		} else {
			debit -= p.InitialNetBalance
		}
	}
	return credit, debit
}

// CheckConservation verifies that a reduced ledger's credits equal its
// debits, and, when source is non-nil, that no participant's net position
// exceeds what the source transactions moved.
func CheckConservation(reduced, source *domain.Ledger) error {
	credit, debit := Totals(reduced)
	if credit != debit {
		return fmt.Errorf("%w: credits %d != debits %d", errors.ErrConservationViolated, credit, debit)
	}
	if source == nil {
		return nil
	}

	gross := source.Volume()
	if credit > gross {
		return fmt.Errorf("%w: net credits %d exceed gross volume %d", errors.ErrConservationViolated, credit, gross)
	}

	recomputed := Reduce(source)
	for name, p := range reduced.Participants {
		want := int64(0)
		if rp, ok := recomputed.Participants[name]; ok {
			want = rp.InitialNetBalance
		}
		if p.InitialNetBalance != want {
			return fmt.Errorf("%w: %s has %d, source nets to %d", errors.ErrConservationViolated, name, p.InitialNetBalance, want)
		}
	}
	return nil
}
