// Package domain re-exports core domain types so internal code can import
// `settleup/internal/domain` while using definitions from `settleup/pkg/domain`.
package domain

import pkg "settleup/pkg/domain"

// Participant is a balance holder in a ledger.
type Participant = pkg.Participant

// Transaction is a directed payment between two participants.
type Transaction = pkg.Transaction

// Ledger groups participants and transactions.
type Ledger = pkg.Ledger

// Strategy identifies a settlement heuristic.
type Strategy = pkg.Strategy

// Metadata holds arbitrary key-value metadata.
type Metadata = pkg.Metadata

// SettlementRun is a persisted settlement computation.
type SettlementRun = pkg.SettlementRun

// SettlementStatus represents settlement run states.
type SettlementStatus = pkg.SettlementStatus

// Re-exported strategies.
const (
	StrategyBest              = pkg.StrategyBest
	StrategyLargestDifference = pkg.StrategyLargestDifference
	StrategySubsetThenLargest = pkg.StrategySubsetThenLargest
	StrategySubsetThenClosest = pkg.StrategySubsetThenClosest
	StrategyClosestDifference = pkg.StrategyClosestDifference
)

// Re-exported settlement statuses.
const (
	SettlementStatusComputed = pkg.SettlementStatusComputed
	SettlementStatusEmpty    = pkg.SettlementStatusEmpty
)

// Strategies lists heuristics in evaluation order.
var Strategies = pkg.Strategies

// NewLedger returns an empty ledger.
func NewLedger(name string) *Ledger {
	return pkg.NewLedger(name)
}

// ParseStrategy resolves a strategy name or alias.
func ParseStrategy(s string) (Strategy, bool) {
	return pkg.ParseStrategy(s)
}
