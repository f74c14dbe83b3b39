package settlement

import (
	"context"
	"testing"

	"settleup/internal/domain"
	"settleup/internal/ledger"
	"settleup/pkg/errors"
	"settleup/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_Best(t *testing.T) {
	tests := []struct {
		fixture  fixture
		strategy domain.Strategy
		count    int
	}{
		{noCycle, domain.StrategyLargestDifference, 2},
		{fourToThree, domain.StrategyLargestDifference, 3},
		{starMatches, domain.StrategySubsetThenLargest, 5},
		{greedyCounterExample, domain.StrategySubsetThenLargest, 3},
		{oppositeCounterExample, domain.StrategySubsetThenLargest, 4},
	}

	for _, parallel := range []bool{false, true} {
		for _, tt := range tests {
			t.Run(tt.fixture.name, func(t *testing.T) {
				sel := NewSelector(Options{}, parallel)
				in := reduced(t, tt.fixture)

				res, err := sel.Best(context.Background(), in)
				require.NoError(t, err)

				assert.Equal(t, tt.strategy, res.Strategy)
				assert.Len(t, res.Ledger.Transactions, tt.count)
				require.Len(t, res.Candidates, 4)
				for i, c := range res.Candidates {
					assert.Equal(t, domain.Strategies[i], c.Strategy)
					assert.Empty(t, c.Error)
					assert.LessOrEqual(t, tt.count, c.Transactions, string(c.Strategy))
				}
				require.NoError(t, Audit(res.Ledger))
			})
		}
	}
}

func TestSelector_BeatsGreedyCounterExample(t *testing.T) {
	in := reduced(t, greedyCounterExample)

	greedy := settleWith(t, domain.StrategyLargestDifference, in)
	res, err := NewSelector(Options{}, false).Best(context.Background(), in)
	require.NoError(t, err)

	assert.Len(t, greedy.Transactions, 4)
	assert.Len(t, res.Ledger.Transactions, 3)
}

func TestSelector_TiesGoToFirstStrategy(t *testing.T) {
	res, err := NewSelector(Options{}, true).Best(context.Background(), reduced(t, fourFriends))
	require.NoError(t, err)

	for _, c := range res.Candidates {
		assert.Equal(t, 3, c.Transactions)
	}
	assert.Equal(t, domain.StrategyLargestDifference, res.Strategy)
}

func TestSelector_EmptyLedgerHasNoResult(t *testing.T) {
	res, err := NewSelector(Options{}, false).Best(context.Background(), domain.NewLedger("empty"))

	assert.Nil(t, res)
	assert.ErrorIs(t, err, errors.ErrNoResult)
}

func TestSelector_DegenerateLedgerHasNoResult(t *testing.T) {
	cancelled := fixture{"payments cancel out", []ledger.Entry{
		{Giver: "A", Receiver: "B", Amount: 5},
		{Giver: "B", Receiver: "A", Amount: 5},
	}}

	for _, f := range []fixture{cancelled, zeroSum} {
		for _, parallel := range []bool{false, true} {
			t.Run(f.name, func(t *testing.T) {
				rec := &countingRecorder{}
				sel := NewSelector(Options{Recorder: rec}, parallel)
				in := reduced(t, f)

				res, err := sel.Best(context.Background(), in)
				assert.Nil(t, res)
				assert.ErrorIs(t, err, errors.ErrNoResult)

				res, err = sel.Settle(context.Background(), in, domain.StrategyClosestDifference)
				assert.Nil(t, res)
				assert.ErrorIs(t, err, errors.ErrNoResult)

				_, err = sel.Settle(context.Background(), in, "round_robin")
				assert.ErrorIs(t, err, errors.ErrUnknownStrategy)

				assert.Zero(t, rec.candidates)
				assert.Empty(t, rec.selected)
			})
		}
	}
}

func TestSelector_SignatureUsesDefaultLimits(t *testing.T) {
	assert.Equal(t, "subset:24:1000000", NewSelector(Options{}, false).Signature())
	assert.Equal(t, "subset:8:500", NewSelector(Options{Subset: SubsetLimits{MaxGroup: 8, StepBudget: 500}}, false).Signature())
	assert.Equal(t, "subset:24:500", NewSelector(Options{Subset: SubsetLimits{StepBudget: 500}}, false).Signature())
}

func TestSelector_RejectsUnreducedLedger(t *testing.T) {
	in := reduced(t, noCycle)
	in.Transactions = append(in.Transactions, tx("A", "B", 1))

	_, err := NewSelector(Options{}, false).Best(context.Background(), in)
	assert.ErrorIs(t, err, errors.ErrNotReduced)
}

func TestSelector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSelector(Options{}, false).Best(ctx, reduced(t, noCycle))
	assert.ErrorIs(t, err, context.Canceled)
}

// brokenStrategy drops the last transaction of a correct settlement.
type brokenStrategy struct{}

func (brokenStrategy) Kind() domain.Strategy { return "broken" }

func (brokenStrategy) Settle(l *domain.Ledger) (*domain.Ledger, error) {
	out, err := largestDifference{}.Settle(l)
	if err != nil {
		return nil, err
	}
	out.Transactions = out.Transactions[:len(out.Transactions)-1]
	return out, nil
}

func TestSelector_AuditFailureIsFatal(t *testing.T) {
	sel := &Selector{
		strategies: []Strategy{brokenStrategy{}},
		logger:     logger.NewNop(),
		recorder:   nopRecorder{},
	}

	res, err := sel.Best(context.Background(), reduced(t, noCycle))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, errors.ErrConservationViolated)

	assert.Panics(t, func() {
		_, _ = sel.MustBest(context.Background(), reduced(t, noCycle))
	})
}

func TestSelector_SettleWithNamedStrategy(t *testing.T) {
	rec := &countingRecorder{}
	sel := NewSelector(Options{Recorder: rec}, false)

	res, err := sel.Settle(context.Background(), reduced(t, greedyCounterExample), domain.StrategyClosestDifference)
	require.NoError(t, err)

	assert.Equal(t, domain.StrategyClosestDifference, res.Strategy)
	assert.Len(t, res.Ledger.Transactions, 4)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, string(domain.StrategyClosestDifference), rec.selected)

	_, err = sel.Settle(context.Background(), reduced(t, noCycle), "round_robin")
	assert.ErrorIs(t, err, errors.ErrUnknownStrategy)
}

func TestSelector_SettleDefaultsToBest(t *testing.T) {
	sel := NewSelector(Options{}, false)

	res, err := sel.Settle(context.Background(), reduced(t, starMatches), "")
	require.NoError(t, err)

	assert.Equal(t, domain.StrategySubsetThenLargest, res.Strategy)
	assert.Len(t, res.Candidates, 4)
}

func TestAudit(t *testing.T) {
	settled := settleWith(t, domain.StrategyLargestDifference, reduced(t, fourToThree))
	require.NoError(t, Audit(settled))

	assert.Equal(t, map[string]int64{"A": -3, "B": -7, "C": 4, "D": 6}, Replay(settled))

	tampered := settled.Clone()
	tampered.Transactions[0].Weight++
	assert.ErrorIs(t, Audit(tampered), errors.ErrConservationViolated)

	stranger := settled.Clone()
	stranger.Transactions = append(stranger.Transactions, tx("A", "Z", 1))
	assert.ErrorIs(t, Audit(stranger), errors.ErrConservationViolated)

	zero := settled.Clone()
	zero.Transactions = append(zero.Transactions, tx("A", "B", 0))
	assert.ErrorIs(t, Audit(zero), errors.ErrConservationViolated)

	residual := settled.Clone()
	residual.Participants["A"].CurrentNetBalance = -1
	assert.ErrorIs(t, Audit(residual), errors.ErrConservationViolated)
}
