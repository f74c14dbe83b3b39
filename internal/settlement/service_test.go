package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"settleup/internal/domain"
	"settleup/internal/ledger"
	"settleup/pkg/errors"
	"settleup/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, run *domain.SettlementRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementRun), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

// Tests

func greedyRequest() SettleRequest {
	return SettleRequest{Name: "trip", Entries: greedyCounterExample.entries}
}

func TestService_Settle(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCache := new(MockCache)
	mockLog := new(MockLogger)

	service := NewService(mockRepo, mockCache, NewSelector(Options{}, false), mockLog, time.Hour)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return created }

	mockCache.On("Get", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(errors.ErrCacheMiss)
	mockCache.On("Set", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*settlement.plan"), time.Hour).Return(nil)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.SettlementRun")).Return(nil)
	mockLog.On("Info", "Settlement run recorded", mock.Anything).Return()

	run, err := service.Settle(context.Background(), greedyRequest())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, "trip", run.LedgerName)
	assert.Equal(t, domain.StrategySubsetThenLargest, run.Strategy)
	assert.Equal(t, domain.SettlementStatusComputed, run.Status)
	assert.Equal(t, 5, run.ParticipantCount)
	assert.Equal(t, 5, run.InputCount)
	assert.Equal(t, 3, run.TransactionCount)
	assert.Equal(t, int64(17), run.GrossVolume)
	assert.Equal(t, int64(17), run.SettledVolume)
	assert.Equal(t, created, run.CreatedAt)
	assert.Equal(t, false, run.Metadata["cache_hit"])
	assert.Equal(t, "subset:24:1000000", run.Metadata["selector"])
	assert.Contains(t, run.Fingerprint, "settlement:plan:")

	require.Len(t, run.Balances, 5)
	assert.Equal(t, "A", run.Balances[0].Name)
	assert.Equal(t, int64(9), run.Balances[0].InitialNetBalance)

	mockRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockLog.AssertExpectations(t)
}

func TestService_SettleUsesCachedPlan(t *testing.T) {
	mockCache := new(MockCache)
	mockLog := new(MockLogger)

	cached := []domain.Transaction{tx("A", "C", 3), tx("A", "D", 6), tx("B", "E", 8)}
	mockCache.On("Get", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			p := args.Get(2).(*plan)
			p.Strategy = domain.StrategySubsetThenLargest
			p.Transfers = cached
		}).
		Return(nil)
	mockLog.On("Info", "Settlement run recorded", mock.MatchedBy(func(f map[string]interface{}) bool {
		return f["cache_hit"] == true
	})).Return()

	service := NewService(nil, mockCache, NewSelector(Options{}, false), mockLog, time.Hour)

	run, err := service.Settle(context.Background(), greedyRequest())
	require.NoError(t, err)

	assert.Equal(t, cached, run.Transfers)
	assert.Equal(t, true, run.Metadata["cache_hit"])
	mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CacheFailureFallsThrough(t *testing.T) {
	mockCache := new(MockCache)
	mockLog := new(MockLogger)

	mockCache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("connection refused"))
	mockCache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("connection refused"))
	mockLog.On("Warn", "Settlement cache read failed", mock.Anything).Return()
	mockLog.On("Warn", "Settlement cache write failed", mock.Anything).Return()
	mockLog.On("Info", "Settlement run recorded", mock.Anything).Return()

	service := NewService(nil, mockCache, NewSelector(Options{}, false), mockLog, time.Minute)

	run, err := service.Settle(context.Background(), greedyRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, run.TransactionCount)
	mockLog.AssertExpectations(t)
}

func TestService_SameBalancesShareFingerprint(t *testing.T) {
	service := NewService(nil, nil, NewSelector(Options{}, false), logger.NewNop(), 0)

	// Both batches net to A:+5, B:-5.
	first, err := service.Settle(context.Background(), SettleRequest{Name: "a", Entries: []ledger.Entry{
		{Giver: "B", Receiver: "A", Amount: 5},
	}})
	require.NoError(t, err)
	second, err := service.Settle(context.Background(), SettleRequest{Name: "b", Entries: []ledger.Entry{
		{Giver: "B", Receiver: "A", Amount: 7},
		{Giver: "A", Receiver: "B", Amount: 2},
	}})
	require.NoError(t, err)
	forced, err := service.Settle(context.Background(), SettleRequest{Name: "c", Strategy: domain.StrategyClosestDifference, Entries: []ledger.Entry{
		{Giver: "B", Receiver: "A", Amount: 5},
	}})
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.NotEqual(t, first.Fingerprint, forced.Fingerprint)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []domain.Transaction{tx("A", "B", 5)}, second.Transfers)
}

func TestService_SettleBalancedLedgerIsEmpty(t *testing.T) {
	service := NewService(nil, nil, NewSelector(Options{}, false), logger.NewNop(), 0)

	run, err := service.Settle(context.Background(), SettleRequest{Name: "even", Entries: zeroSum.entries})
	require.NoError(t, err)

	assert.Equal(t, domain.SettlementStatusEmpty, run.Status)
	assert.Equal(t, domain.StrategyBest, run.Strategy)
	assert.Empty(t, run.Transfers)
	assert.Equal(t, 3, run.ParticipantCount)
	assert.Equal(t, int64(0), run.SettledVolume)
	assert.Equal(t, int64(50), run.GrossVolume)

	forced, err := service.Settle(context.Background(), SettleRequest{Name: "even", Strategy: domain.StrategyLargestDifference, Entries: zeroSum.entries})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyLargestDifference, forced.Strategy)

	_, err = service.Settle(context.Background(), SettleRequest{Name: "even", Strategy: "random", Entries: zeroSum.entries})
	assert.ErrorIs(t, err, errors.ErrUnknownStrategy)
}

func TestService_BalancedLedgerIsNotCached(t *testing.T) {
	mockCache := new(MockCache)
	mockCache.On("Get", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(errors.ErrCacheMiss)

	service := NewService(nil, mockCache, NewSelector(Options{}, false), logger.NewNop(), time.Hour)

	run, err := service.Settle(context.Background(), SettleRequest{Name: "even", Entries: zeroSum.entries})
	require.NoError(t, err)

	assert.Equal(t, domain.SettlementStatusEmpty, run.Status)
	mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_SettleRejectsBadInput(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, NewSelector(Options{}, false), logger.NewNop(), 0)

	_, err := service.Settle(context.Background(), SettleRequest{Entries: []ledger.Entry{
		{Giver: "A", Receiver: "A", Amount: 5},
	}})
	assert.ErrorIs(t, err, errors.ErrSelfPayment)

	_, err = service.Settle(context.Background(), SettleRequest{})
	assert.ErrorIs(t, err, errors.ErrNoResult)

	_, err = service.Settle(context.Background(), SettleRequest{Strategy: "random", Entries: noCycle.entries})
	assert.ErrorIs(t, err, errors.ErrUnknownStrategy)

	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_SettleRepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(fmt.Errorf("database is down"))

	service := NewService(mockRepo, nil, NewSelector(Options{}, false), logger.NewNop(), 0)

	run, err := service.Settle(context.Background(), greedyRequest())
	assert.Nil(t, run)
	assert.EqualError(t, err, "database is down")
}

func TestService_Get(t *testing.T) {
	mockRepo := new(MockRepository)
	id := uuid.New()
	stored := &domain.SettlementRun{ID: id, LedgerName: "trip"}

	mockRepo.On("FindByID", mock.Anything, id).Return(stored, nil)
	mockRepo.On("FindByID", mock.Anything, mock.Anything).Return(nil, errors.ErrSettlementNotFound)

	service := NewService(mockRepo, nil, NewSelector(Options{}, false), logger.NewNop(), 0)

	got, err := service.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	_, err = service.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errors.ErrSettlementNotFound)

	_, err = NewService(nil, nil, NewSelector(Options{}, false), logger.NewNop(), 0).Get(context.Background(), id)
	assert.ErrorIs(t, err, errors.ErrSettlementNotFound)
}
