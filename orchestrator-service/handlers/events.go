package handlers

import (
	"context"

	"github.com/draftea/saga-engine/orchestrator-service/application"
	"github.com/draftea/saga-engine/shared/events"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RefundInitiatedData is the payload of payment.refund.initiated events
type RefundInitiatedData struct {
	PaymentID string `json:"payment_id"`
	WalletID  string `json:"wallet_id"`
	ChargeID  string `json:"charge_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// SagaEventHandlers routes inbound events to the orchestrator use cases
type SagaEventHandlers struct {
	refundPayment *application.RefundPayment
	logger        *zap.Logger
}

// NewSagaEventHandlers creates new saga event handlers
func NewSagaEventHandlers(refundPayment *application.RefundPayment, logger *zap.Logger) *SagaEventHandlers {
	return &SagaEventHandlers{
		refundPayment: refundPayment,
		logger:        logger,
	}
}

// Handle implements the events.EventHandler interface
func (h *SagaEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.PaymentRefundInitiatedEvent:
		return h.HandleRefundInitiated(ctx, event)
	default:
		// Unknown event type, ignore
		return nil
	}
}

// HandleRefundInitiated starts the refund saga for the payment named in the
// event. The saga's own idempotency (movement references, provider refund
// keys) absorbs redelivered events.
func (h *SagaEventHandlers) HandleRefundInitiated(ctx context.Context, event *events.Event) error {
	var data RefundInitiatedData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to parse refund initiated data")
	}

	response, err := h.refundPayment.Execute(ctx, &application.RefundPaymentCommand{
		PaymentID: data.PaymentID,
		WalletID:  data.WalletID,
		ChargeID:  data.ChargeID,
		Amount:    data.Amount,
		Currency:  data.Currency,
	})
	if err != nil {
		h.logger.Error("failed to run refund saga for event",
			zap.String("event_id", event.ID.String()),
			zap.String("payment_id", data.PaymentID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("refund saga finished",
		zap.String("payment_id", data.PaymentID),
		zap.String("saga_id", response.SagaID),
		zap.String("status", response.Status),
	)
	return nil
}
