package application

import (
	"context"

	"github.com/draftea/saga-engine/orchestrator-service/domain"
	"github.com/draftea/saga-engine/shared/models"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/pkg/errors"
)

// SagaRunner is the slice of the orchestrator the use cases depend on
type SagaRunner interface {
	Name() string
	Run(ctx context.Context, sc *saga.Context) (*saga.Result, error)
	Resume(ctx context.Context, sagaID models.ID) (*saga.Result, error)
}

// ProcessPaymentCommand represents the command to process a payment
type ProcessPaymentCommand struct {
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Notify   *bool  `json:"notify,omitempty"`
}

// ProcessPaymentResponse represents the outcome of a payment saga run
type ProcessPaymentResponse struct {
	PaymentID string `json:"payment_id"`
	SagaID    string `json:"saga_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// ProcessPayment runs the payment saga for one payment
type ProcessPayment struct {
	runner SagaRunner
}

// NewProcessPayment creates a new ProcessPayment use case
func NewProcessPayment(runner SagaRunner) *ProcessPayment {
	return &ProcessPayment{runner: runner}
}

// Execute validates the command, seeds a saga context and runs the payment
// saga to a terminal state. A rolled-back saga is a valid outcome, not an
// error: the response carries the terminal status and the causal error.
func (uc *ProcessPayment) Execute(ctx context.Context, cmd *ProcessPaymentCommand) (*ProcessPaymentResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	userID, err := models.NewID(cmd.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user ID")
	}
	walletID, err := models.NewID(cmd.WalletID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid wallet ID")
	}

	paymentID := models.GenerateUUID()

	sc := saga.NewContext().WithCorrelationID(models.GenerateUUID())
	sc.Set(domain.KeyPaymentID, paymentID.String())
	sc.Set(domain.KeyUserID, userID.String())
	sc.Set(domain.KeyWalletID, walletID.String())
	sc.Set(domain.KeyAmount, cmd.Amount)
	sc.Set(domain.KeyCurrency, cmd.Currency)
	if cmd.Notify != nil {
		sc.Set(domain.KeyNotify, *cmd.Notify)
	}

	result, err := uc.runner.Run(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run payment saga")
	}

	response := &ProcessPaymentResponse{
		PaymentID: paymentID.String(),
		SagaID:    result.SagaID.String(),
		Status:    string(result.Status),
	}
	if result.Err != nil {
		response.Error = result.Err.Error()
	}

	return response, nil
}

func (uc *ProcessPayment) validateCommand(cmd *ProcessPaymentCommand) error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.WalletID == "" {
		return errors.New("wallet ID is required")
	}
	if !models.NewMoney(cmd.Amount, cmd.Currency).IsPositive() {
		return errors.New("amount must be positive")
	}
	if cmd.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}
