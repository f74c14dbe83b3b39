// ==============================================================================
// SETTLEMENT SERVICE - internal/settlement/service.go
// ==============================================================================
package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"settleup/internal/domain"
	"settleup/internal/ledger"
	"settleup/pkg/errors"
	"settleup/pkg/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo     Repository
	cache    Cache
	selector *Selector
	logger   logger.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService wires the selector to optional persistence and caching; repo
// and cache may be nil.
func NewService(repo Repository, cache Cache, selector *Selector, log logger.Logger, cacheTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		selector: selector,
		logger:   log,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// SettleRequest is a batch of raw IOUs to settle.
type SettleRequest struct {
	Name     string
	Entries  []ledger.Entry
	Strategy domain.Strategy
}

// plan is the cacheable part of a settlement: it depends only on the
// reduced balances, the strategy and the selector configuration.
type plan struct {
	Strategy   domain.Strategy      `json:"strategy"`
	Transfers  []domain.Transaction `json:"transfers"`
	Candidates []Candidate          `json:"candidates"`
}

// Settle reduces the request to net balances, computes (or reuses) an
// audited settlement and records the run.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*domain.SettlementRun, error) {
	raw, err := ledger.New(req.Name, req.Entries)
	if err != nil {
		return nil, err
	}

	reduced := ledger.Reduce(raw)
	if err := ledger.CheckConservation(reduced, raw); err != nil {
		s.logger.Error("Balance reduction broke conservation", map[string]interface{}{
			"ledger": req.Name,
			"error":  err.Error(),
		})
		return nil, err
	}

	key := s.fingerprint(reduced, req.Strategy)
	p, hit := s.cachedPlan(ctx, key)
	if !hit {
		res, err := s.selector.Settle(ctx, reduced, req.Strategy)
		switch {
		case errors.Is(err, errors.ErrNoResult) && len(reduced.Participants) > 0:
			// Everybody already nets to zero: record the run with no transfers.
			p = &plan{Strategy: requested(req.Strategy), Transfers: []domain.Transaction{}}
		case err != nil:
			return nil, err
		default:
			p = &plan{Strategy: res.Strategy, Transfers: res.Ledger.Transactions, Candidates: res.Candidates}
			s.storePlan(ctx, key, p)
		}
	}

	run := s.newRun(raw, reduced, key, p)
	run.Metadata["cache_hit"] = hit

	if s.repo != nil {
		if err := s.repo.Create(ctx, run); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Settlement run recorded", map[string]interface{}{
		"run_id":       run.ID,
		"ledger":       run.LedgerName,
		"strategy":     string(run.Strategy),
		"inputs":       run.InputCount,
		"transactions": run.TransactionCount,
		"cache_hit":    hit,
	})

	return run, nil
}

// Get returns a recorded run.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error) {
	if s.repo == nil {
		return nil, errors.ErrSettlementNotFound
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) newRun(raw, reduced *domain.Ledger, key string, p *plan) *domain.SettlementRun {
	run := &domain.SettlementRun{
		ID:               uuid.New(),
		LedgerName:       raw.Name,
		Fingerprint:      key,
		Strategy:         p.Strategy,
		Status:           domain.SettlementStatusComputed,
		ParticipantCount: len(reduced.Participants),
		InputCount:       len(raw.Transactions),
		TransactionCount: len(p.Transfers),
		GrossVolume:      raw.Volume(),
		Metadata: domain.Metadata{
			"candidates": p.Candidates,
			"selector":   s.selector.Signature(),
		},
		CreatedAt: s.now().UTC(),
		Transfers: p.Transfers,
	}

	for _, t := range p.Transfers {
		run.SettledVolume += t.Weight
	}
	if run.TransactionCount == 0 {
		run.Status = domain.SettlementStatusEmpty
	}

	run.Balances = make([]domain.Participant, 0, len(reduced.Participants))
	for _, name := range reduced.Names() {
		run.Balances = append(run.Balances, *reduced.Participants[name])
	}

	return run
}

func (s *Service) cachedPlan(ctx context.Context, key string) (*plan, bool) {
	if s.cache == nil {
		return nil, false
	}

	var p plan
	if err := s.cache.Get(ctx, key, &p); err != nil {
		if !errors.Is(err, errors.ErrCacheMiss) {
			s.logger.Warn("Settlement cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil, false
	}
	return &p, true
}

func (s *Service) storePlan(ctx context.Context, key string, p *plan) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, p, s.cacheTTL); err != nil {
		s.logger.Warn("Settlement cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// fingerprint hashes the reduced balances together with everything else
// that determines the settlement.
func (s *Service) fingerprint(reduced *domain.Ledger, kind domain.Strategy) string {
	kind = requested(kind)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s", kind, s.selector.Signature())
	for _, name := range reduced.Names() {
		fmt.Fprintf(&b, "|%q=%d", name, reduced.Participants[name].InitialNetBalance)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return "settlement:plan:" + hex.EncodeToString(sum[:])
}

func requested(kind domain.Strategy) domain.Strategy {
	if kind == "" {
		return domain.StrategyBest
	}
	return kind
}

// Interfaces
type Repository interface {
	Create(ctx context.Context, run *domain.SettlementRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}
