// ==============================================================================
// LEDGER CONSTRUCTION - internal/ledger/ledger.go
// ==============================================================================
package ledger

import (
	"fmt"
	"strings"

	"settleup/internal/domain"
	"settleup/pkg/errors"
)

// Entry is a raw IOU as delivered by a loader: Giver paid Receiver Amount
// minor units on the receiver's behalf.
type Entry struct {
	Giver    string `json:"giver"`
	Receiver string `json:"receiver"`
	Amount   int64  `json:"amount"`
}

// New builds a ledger from raw entries. Participant names are trimmed and
// deduplicated; each entry becomes one transaction.
func New(name string, entries []Entry) (*domain.Ledger, error) {
	l := domain.NewLedger(name)

	for i, e := range entries {
		giver := strings.TrimSpace(e.Giver)
		receiver := strings.TrimSpace(e.Receiver)

		if giver == "" || receiver == "" {
			return nil, fmt.Errorf("entry %d: %w", i, errors.ErrEmptyName)
		}
		if giver == receiver {
			return nil, fmt.Errorf("entry %d (%s): %w", i, giver, errors.ErrSelfPayment)
		}
		if e.Amount <= 0 {
			return nil, fmt.Errorf("entry %d (%s -> %s, %d): %w", i, giver, receiver, e.Amount, errors.ErrInvalidWeight)
		}

		l.AddParticipant(giver)
		l.AddParticipant(receiver)
		l.Transactions = append(l.Transactions, domain.Transaction{
			Origin:      giver,
			Destination: receiver,
			Weight:      e.Amount,
		})
	}

	return l, nil
}
