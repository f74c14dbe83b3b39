// ==============================================================================
// SETTLEMENT AUDIT - internal/settlement/audit.go
// ==============================================================================
package settlement

import (
	"fmt"

	"settleup/internal/domain"
	"settleup/internal/ledger"
	"settleup/pkg/errors"
)

// Replay returns, per participant, what the settlement transactions move:
// outgoing weight minus incoming weight. A correct settlement replays to
// each participant's initial net balance, i.e. it exactly cancels the raw
// debts the balances were reduced from. The sign is the negation of
// replaying raw debts (add incoming, subtract outgoing) because settlement
// transfers run from creditor to debtor.
func Replay(settled *domain.Ledger) map[string]int64 {
	positions := make(map[string]int64, len(settled.Participants))
	for name := range settled.Participants {
		positions[name] = 0
	}
	for _, t := range settled.Transactions {
		positions[t.Origin] += t.Weight
		positions[t.Destination] -= t.Weight
	}
	return positions
}

// Audit verifies a settlement ledger: credits equal debits, every
// transaction is a positive payment between known participants, replay
// reproduces every initial balance, and nobody is left with a residual.
// Any failure is an engine bug and wraps ErrConservationViolated.
func Audit(settled *domain.Ledger) error {
	if err := ledger.CheckConservation(settled, nil); err != nil {
		return err
	}

	for i, t := range settled.Transactions {
		if t.Weight <= 0 {
			return fmt.Errorf("%w: transaction %d (%s -> %s) has weight %d: %v",
				errors.ErrConservationViolated, i, t.Origin, t.Destination, t.Weight, errors.ErrInvalidWeight)
		}
		for _, name := range []string{t.Origin, t.Destination} {
			if _, ok := settled.Participants[name]; !ok {
				return fmt.Errorf("%w: transaction %d references %q: %v",
					errors.ErrConservationViolated, i, name, errors.ErrUnknownParticipant)
			}
		}
	}

	replayed := Replay(settled)
	for _, name := range settled.Names() {
		p := settled.Participants[name]
		if replayed[name] != p.InitialNetBalance {
			return fmt.Errorf("%w: replay gives %s %d, expected %d",
				errors.ErrConservationViolated, name, replayed[name], p.InitialNetBalance)
		}
	}

	return checkSettled(settled)
}
