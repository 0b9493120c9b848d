package application

import (
	"context"

	"github.com/draftea/saga-engine/orchestrator-service/domain"
	"github.com/draftea/saga-engine/shared/models"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/pkg/errors"
)

// RefundPaymentCommand represents the command to refund a completed payment
type RefundPaymentCommand struct {
	PaymentID string `json:"payment_id"`
	WalletID  string `json:"wallet_id"`
	ChargeID  string `json:"charge_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// RefundPaymentResponse represents the outcome of a refund saga run
type RefundPaymentResponse struct {
	SagaID string `json:"saga_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RefundPayment runs the refund saga for one completed payment
type RefundPayment struct {
	runner SagaRunner
}

// NewRefundPayment creates a new RefundPayment use case
func NewRefundPayment(runner SagaRunner) *RefundPayment {
	return &RefundPayment{runner: runner}
}

// Execute validates the command, seeds a saga context and runs the refund
// saga to a terminal state
func (uc *RefundPayment) Execute(ctx context.Context, cmd *RefundPaymentCommand) (*RefundPaymentResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	paymentID, err := models.NewID(cmd.PaymentID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid payment ID")
	}
	walletID, err := models.NewID(cmd.WalletID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid wallet ID")
	}

	sc := saga.NewContext().WithCorrelationID(models.GenerateUUID())
	sc.Set(domain.KeyPaymentID, paymentID.String())
	sc.Set(domain.KeyWalletID, walletID.String())
	sc.Set(domain.KeyChargeID, cmd.ChargeID)
	sc.Set(domain.KeyAmount, cmd.Amount)
	sc.Set(domain.KeyCurrency, cmd.Currency)

	result, err := uc.runner.Run(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run refund saga")
	}

	response := &RefundPaymentResponse{
		SagaID: result.SagaID.String(),
		Status: string(result.Status),
	}
	if result.Err != nil {
		response.Error = result.Err.Error()
	}

	return response, nil
}

func (uc *RefundPayment) validateCommand(cmd *RefundPaymentCommand) error {
	if cmd.PaymentID == "" {
		return errors.New("payment ID is required")
	}
	if cmd.WalletID == "" {
		return errors.New("wallet ID is required")
	}
	if cmd.ChargeID == "" {
		return errors.New("charge ID is required")
	}
	if !models.NewMoney(cmd.Amount, cmd.Currency).IsPositive() {
		return errors.New("amount must be positive")
	}
	if cmd.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}
