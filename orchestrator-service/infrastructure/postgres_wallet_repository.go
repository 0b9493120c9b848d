package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/draftea/saga-engine/orchestrator-service/domain"
	"github.com/draftea/saga-engine/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresWalletRepository implements domain.WalletRepository using
// PostgreSQL. Movements are idempotent on their reference: a repeated
// Debit/Credit with a reference already in the ledger returns the existing
// movement and leaves the balance untouched, which is what lets saga steps
// retry and resume safely.
//
// Schema (see migrations/002_wallets.sql): a wallets table holding balances
// and a wallet_movements ledger with a UNIQUE reference.
type PostgresWalletRepository struct {
	db *sqlx.DB
}

// NewPostgresWalletRepository creates a new PostgresWalletRepository
func NewPostgresWalletRepository(db *sqlx.DB) *PostgresWalletRepository {
	return &PostgresWalletRepository{db: db}
}

// postgresMovement represents a wallet movement in the database
type postgresMovement struct {
	ID        string    `db:"id"`
	WalletID  string    `db:"wallet_id"`
	Amount    int64     `db:"amount"`
	Currency  string    `db:"currency"`
	Direction string    `db:"direction"`
	Reference string    `db:"reference"`
	CreatedAt time.Time `db:"created_at"`
}

// Debit withdraws amount from the wallet
func (r *PostgresWalletRepository) Debit(ctx context.Context, walletID models.ID, amount models.Money, reference string) (models.ID, error) {
	return r.move(ctx, walletID, amount, reference, "debit")
}

// Credit deposits amount into the wallet
func (r *PostgresWalletRepository) Credit(ctx context.Context, walletID models.ID, amount models.Money, reference string) (models.ID, error) {
	return r.move(ctx, walletID, amount, reference, "credit")
}

func (r *PostgresWalletRepository) move(ctx context.Context, walletID models.ID, amount models.Money, reference, direction string) (models.ID, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	// Idempotency: a movement with this reference was already applied.
	var existing string
	err = tx.GetContext(ctx, &existing,
		"SELECT id FROM wallet_movements WHERE reference = $1", reference)
	if err == nil {
		return models.ID(existing), nil
	}
	if err != sql.ErrNoRows {
		return "", errors.Wrap(err, "failed to check movement reference")
	}

	delta := amount.Amount
	if direction == "debit" {
		delta = -delta
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3 AND currency = $4 AND balance + $1 >= 0`,
		delta, time.Now(), walletID.String(), amount.Currency)
	if err != nil {
		return "", errors.Wrap(err, "failed to update wallet balance")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", errors.Wrap(err, "failed to read rows affected")
	}
	if rows == 0 {
		if direction == "debit" {
			return "", domain.ErrInsufficientFunds
		}
		return "", domain.ErrWalletNotFound
	}

	movement := &postgresMovement{
		ID:        models.GenerateUUID().String(),
		WalletID:  walletID.String(),
		Amount:    amount.Amount,
		Currency:  amount.Currency,
		Direction: direction,
		Reference: reference,
		CreatedAt: time.Now(),
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO wallet_movements (
			id, wallet_id, amount, currency, direction, reference, created_at
		) VALUES (
			:id, :wallet_id, :amount, :currency, :direction, :reference, :created_at
		)`, movement)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert wallet movement")
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit movement")
	}

	return models.ID(movement.ID), nil
}
