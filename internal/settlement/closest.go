package settlement

import (
	"sort"

	"settleup/internal/domain"
)

// closestDifference settles the largest creditor against the debtor whose
// balance offsets it most closely, rather than the largest debtor.
type closestDifference struct{}

func (closestDifference) Kind() domain.Strategy { return domain.StrategyClosestDifference }

func (closestDifference) Settle(l *domain.Ledger) (*domain.Ledger, error) {
	return run(l, payDownClosest)
}

func payDownClosest(work *domain.Ledger) []domain.Transaction {
	// Reference order is fixed by the initial balances; only the current
	// balances move while paying down.
	order := make([]*domain.Participant, 0, len(work.Participants))
	for _, name := range work.Names() {
		order = append(order, work.Participants[name])
	}
	sort.SliceStable(order, func(i, j int) bool { return byInitialDesc(order[i], order[j]) })

	txs := make([]domain.Transaction, 0)
	for {
		balances := make([]*domain.Participant, 0, len(order))
		for _, p := range order {
			if p.CurrentNetBalance != 0 {
				balances = append(balances, p)
			}
		}

		split := -1
		for i, p := range balances {
			if p.CurrentNetBalance < 0 {
				split = i
				break
			}
		}
		if split <= 0 {
			break
		}

		creditor := balances[0]
		for _, p := range balances[1:split] {
			if p.CurrentNetBalance > creditor.CurrentNetBalance {
				creditor = p
			}
		}

		closest := balances[split]
		for _, p := range balances[split+1:] {
			if p.CurrentNetBalance < 0 && abs(creditor.CurrentNetBalance+p.CurrentNetBalance) < abs(creditor.CurrentNetBalance+closest.CurrentNetBalance) {
				closest = p
			}
		}

		txs = append(txs, settlePair(creditor, closest))
	}

	return txs
}
