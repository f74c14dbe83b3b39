package settlement

import "settleup/internal/domain"

// largestDifference repeatedly settles the largest creditor against the
// largest debtor. It needs at most n-1 transactions for n participants.
type largestDifference struct{}

func (largestDifference) Kind() domain.Strategy { return domain.StrategyLargestDifference }

func (largestDifference) Settle(l *domain.Ledger) (*domain.Ledger, error) {
	return run(l, payDownLargest)
}

func payDownLargest(work *domain.Ledger) []domain.Transaction {
	txs := make([]domain.Transaction, 0)

	for balances := active(work, byCurrentDesc); len(balances) > 1; balances = active(work, byCurrentDesc) {
		creditor, debtor := balances[0], balances[len(balances)-1]
		if creditor.CurrentNetBalance <= 0 || debtor.CurrentNetBalance >= 0 {
			// One-sided leftovers cannot be settled; checkSettled reports them.
			break
		}
		txs = append(txs, settlePair(creditor, debtor))
	}

	return txs
}
