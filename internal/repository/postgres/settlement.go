// ==============================================================================
// SETTLEMENT RUN REPOSITORY - internal/repository/postgres/settlement.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"time"

	"settleup/internal/domain"
	"settleup/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SettlementRepository struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

type balanceRow struct {
	Name       string `db:"name"`
	NetBalance int64  `db:"net_balance"`
}

type transferRow struct {
	Position    int    `db:"position"`
	Origin      string `db:"origin"`
	Destination string `db:"destination"`
	Amount      int64  `db:"amount"`
}

// Create stores a run with its balances and transfers in one transaction.
func (r *SettlementRepository) Create(ctx context.Context, run *domain.SettlementRun) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO settlement_runs (
			id, ledger_name, fingerprint, strategy, status, participant_count,
			input_count, transaction_count, gross_volume, settled_volume,
			metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err = tx.ExecContext(ctx, query,
		run.ID, run.LedgerName, run.Fingerprint, run.Strategy, run.Status,
		run.ParticipantCount, run.InputCount, run.TransactionCount,
		run.GrossVolume, run.SettledVolume, run.Metadata, run.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create settlement run")
	}

	for _, p := range run.Balances {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO settlement_balances (run_id, name, net_balance) VALUES ($1, $2, $3)`,
			run.ID, p.Name, p.InitialNetBalance,
		)
		if err != nil {
			return errors.Wrap(err, "failed to store settlement balance")
		}
	}

	for i, t := range run.Transfers {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO settlement_transfers (run_id, position, origin, destination, amount) VALUES ($1, $2, $3, $4, $5)`,
			run.ID, i, t.Origin, t.Destination, t.Weight,
		)
		if err != nil {
			return errors.Wrap(err, "failed to store settlement transfer")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit settlement run")
}

func (r *SettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error) {
	var run domain.SettlementRun
	query := `
		SELECT id, ledger_name, fingerprint, strategy, status, participant_count,
			input_count, transaction_count, gross_volume, settled_volume,
			metadata, created_at
		FROM settlement_runs WHERE id = $1
	`

	err := r.db.GetContext(ctx, &run, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSettlementNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find settlement run")
	}

	var balances []balanceRow
	err = r.db.SelectContext(ctx, &balances,
		`SELECT name, net_balance FROM settlement_balances WHERE run_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load settlement balances")
	}

	var transfers []transferRow
	err = r.db.SelectContext(ctx, &transfers,
		`SELECT position, origin, destination, amount FROM settlement_transfers WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load settlement transfers")
	}

	run.Balances = make([]domain.Participant, 0, len(balances))
	for _, b := range balances {
		run.Balances = append(run.Balances, domain.Participant{
			Name:              b.Name,
			InitialNetBalance: b.NetBalance,
			CurrentNetBalance: b.NetBalance,
		})
	}

	run.Transfers = make([]domain.Transaction, 0, len(transfers))
	for _, t := range transfers {
		run.Transfers = append(run.Transfers, domain.Transaction{
			Origin:      t.Origin,
			Destination: t.Destination,
			Weight:      t.Amount,
		})
	}

	return &run, nil
}

// Ping reports whether the database is reachable.
func (r *SettlementRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// DeleteCreatedBefore removes runs older than cutoff together with their
// balances and transfers, and returns how many runs went.
func (r *SettlementRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM settlement_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
