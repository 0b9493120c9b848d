package domain

import (
	"context"

	"github.com/draftea/saga-engine/shared/models"
)

// ChargeRequest is a charge submitted to the external payment provider
type ChargeRequest struct {
	PaymentID      models.ID    `json:"payment_id"`
	Amount         models.Money `json:"amount"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// ChargeResult is the provider's acknowledgement of a charge
type ChargeResult struct {
	ChargeID string `json:"charge_id"`
}

// PaymentGateway is the external payment provider boundary. Charges are
// idempotent on the idempotency key; submitting the same key twice returns
// the original charge.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// VoidCharge cancels a charge that has not settled
	VoidCharge(ctx context.Context, chargeID string) error

	// RefundCharge refunds a settled charge and returns the refund ID
	RefundCharge(ctx context.Context, chargeID string, amount models.Money) (string, error)
}
