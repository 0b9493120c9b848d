package domain

import (
	"context"

	"github.com/draftea/saga-engine/shared/models"
	"github.com/pkg/errors"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
)

// WalletRepository moves money in and out of user wallets. Both operations
// are idempotent on the caller-supplied reference: repeating a call with a
// reference that was already applied returns the existing movement instead
// of moving money twice. Saga steps rely on this for safe retries and
// crash-resume.
type WalletRepository interface {
	// Debit withdraws amount from the wallet and returns the movement ID
	Debit(ctx context.Context, walletID models.ID, amount models.Money, reference string) (models.ID, error)

	// Credit deposits amount into the wallet and returns the movement ID
	Credit(ctx context.Context, walletID models.ID, amount models.Money, reference string) (models.ID, error)
}
