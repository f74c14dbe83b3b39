// ==============================================================================
// DOMAIN MODELS - pkg/domain/models.go
// ==============================================================================
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Participant holds the balances of a single ledger member. Amounts are
// integer minor units (e.g. cents).
type Participant struct {
	Name              string `json:"name" db:"name"`
	InitialNetBalance int64  `json:"initial_net_balance" db:"initial_net_balance"`
	CurrentNetBalance int64  `json:"current_net_balance" db:"current_net_balance"`
}

// Transaction is a directed payment: Origin pays Destination Weight units.
type Transaction struct {
	Origin      string `json:"origin" db:"origin"`
	Destination string `json:"destination" db:"destination"`
	Weight      int64  `json:"weight" db:"weight"`
}

// Ledger groups participants and the transactions between them.
// Transactions reference participants by name so clones never alias.
type Ledger struct {
	ID           uuid.UUID               `json:"id"`
	Name         string                  `json:"name"`
	Participants map[string]*Participant `json:"participants"`
	Transactions []Transaction           `json:"transactions"`
}

// NewLedger returns an empty ledger with a fresh ID.
func NewLedger(name string) *Ledger {
	return &Ledger{
		ID:           uuid.New(),
		Name:         name,
		Participants: make(map[string]*Participant),
		Transactions: make([]Transaction, 0),
	}
}

// AddParticipant registers name with zero balances. Existing entries are kept.
func (l *Ledger) AddParticipant(name string) *Participant {
	if p, ok := l.Participants[name]; ok {
		return p
	}
	p := &Participant{Name: name}
	l.Participants[name] = p
	return p
}

// Clone deep-copies the ledger.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		ID:           l.ID,
		Name:         l.Name,
		Participants: make(map[string]*Participant, len(l.Participants)),
		Transactions: make([]Transaction, len(l.Transactions)),
	}
	for name, p := range l.Participants {
		cp := *p
		c.Participants[name] = &cp
	}
	copy(c.Transactions, l.Transactions)
	return c
}

// Names returns participant names in lexical order.
func (l *Ledger) Names() []string {
	names := make([]string, 0, len(l.Participants))
	for name := range l.Participants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsReduced reports whether the ledger carries net balances only.
func (l *Ledger) IsReduced() bool {
	if len(l.Transactions) > 0 {
		return false
	}
	for _, p := range l.Participants {
		if p.InitialNetBalance != p.CurrentNetBalance {
			return false
		}
	}
	return true
}

// Volume sums the weights of all transactions.
func (l *Ledger) Volume() int64 {
	var total int64
	for _, t := range l.Transactions {
		total += t.Weight
	}
	return total
}

// Strategy identifies a settlement heuristic.
type Strategy string

const (
	StrategyBest              Strategy = "best"
	StrategyLargestDifference Strategy = "largest_difference"
	StrategySubsetThenLargest Strategy = "subset_then_largest"
	StrategySubsetThenClosest Strategy = "subset_then_closest"
	StrategyClosestDifference Strategy = "closest_difference"
)

// Strategies lists the heuristics in evaluation order. Ties between
// candidates are won by the earlier entry.
var Strategies = []Strategy{
	StrategyLargestDifference,
	StrategySubsetThenLargest,
	StrategySubsetThenClosest,
	StrategyClosestDifference,
}

var strategyAliases = map[string]Strategy{
	"largest":        StrategyLargestDifference,
	"subset-largest": StrategySubsetThenLargest,
	"subset-closest": StrategySubsetThenClosest,
	"closest":        StrategyClosestDifference,
}

// ParseStrategy accepts a canonical strategy name or one of its short
// aliases ("largest", "subset-largest", "subset-closest", "closest"). An
// empty string selects StrategyBest.
func ParseStrategy(s string) (Strategy, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(StrategyBest) {
		return StrategyBest, true
	}
	if alias, ok := strategyAliases[s]; ok {
		return alias, true
	}
	for _, known := range Strategies {
		if s == string(known) {
			return known, true
		}
	}
	return "", false
}

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}

// SettlementRun is a persisted settlement computation.
type SettlementRun struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	LedgerName       string           `json:"ledger_name" db:"ledger_name"`
	Fingerprint      string           `json:"fingerprint" db:"fingerprint"`
	Strategy         Strategy         `json:"strategy" db:"strategy"`
	Status           SettlementStatus `json:"status" db:"status"`
	ParticipantCount int              `json:"participant_count" db:"participant_count"`
	InputCount       int              `json:"input_count" db:"input_count"`
	TransactionCount int              `json:"transaction_count" db:"transaction_count"`
	GrossVolume      int64            `json:"gross_volume" db:"gross_volume"`
	SettledVolume    int64            `json:"settled_volume" db:"settled_volume"`
	Metadata         Metadata         `json:"metadata" db:"metadata"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`

	Balances  []Participant `json:"balances" db:"-"`
	Transfers []Transaction `json:"transfers" db:"-"`
}

// SettlementStatus represents settlement lifecycle states
type SettlementStatus string

const (
	SettlementStatusComputed SettlementStatus = "computed"
	SettlementStatusEmpty    SettlementStatus = "empty"
)
