package domain

import (
	"context"

	"github.com/draftea/saga-engine/shared/events"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/pkg/errors"
)

// Step names of the payment saga. They end up in the persisted
// completed_steps list, so treat them as part of the storage format.
const (
	StepReserveFunds  = "reserve_funds"
	StepChargeGateway = "charge_gateway"
	StepNotifyUser    = "notify_user"
)

// PaymentSagaName identifies the payment saga type in the state store
const PaymentSagaName = "payment_processing"

// PaymentSagaSteps returns the ordered steps of the payment saga:
// reserve wallet funds, charge the provider, notify the user.
func PaymentSagaSteps(wallets WalletRepository, gateway PaymentGateway, publisher events.Publisher) []saga.Step {
	return []saga.Step{
		NewReserveFundsStep(wallets),
		NewChargeGatewayStep(gateway),
		NewNotifyUserStep(publisher),
	}
}

// ReserveFundsStep debits the user's wallet for the payment amount.
// Compensation credits the amount back (semantic compensation: the debit
// stays in the ledger, a matching credit reverses its effect). Both
// directions are idempotent through the movement reference.
type ReserveFundsStep struct {
	wallets WalletRepository
}

func NewReserveFundsStep(wallets WalletRepository) *ReserveFundsStep {
	return &ReserveFundsStep{wallets: wallets}
}

func (s *ReserveFundsStep) Name() string {
	return StepReserveFunds
}

func (s *ReserveFundsStep) Execute(ctx context.Context, sc *saga.Context) error {
	walletID, err := idFromContext(sc, KeyWalletID)
	if err != nil {
		return err
	}
	paymentID, err := idFromContext(sc, KeyPaymentID)
	if err != nil {
		return err
	}
	amount, err := moneyFromContext(sc)
	if err != nil {
		return err
	}

	movementID, err := s.wallets.Debit(ctx, walletID, amount, "payment:"+paymentID.String())
	if err != nil {
		return errors.Wrap(err, "failed to reserve funds")
	}

	sc.Set(KeyReservationID, movementID.String())
	return nil
}

func (s *ReserveFundsStep) Compensate(ctx context.Context, sc *saga.Context) error {
	walletID, err := idFromContext(sc, KeyWalletID)
	if err != nil {
		return err
	}
	paymentID, err := idFromContext(sc, KeyPaymentID)
	if err != nil {
		return err
	}
	amount, err := moneyFromContext(sc)
	if err != nil {
		return err
	}

	_, err = s.wallets.Credit(ctx, walletID, amount, "payment:"+paymentID.String()+":reversal")
	return errors.Wrap(err, "failed to release reserved funds")
}

// ChargeGatewayStep submits the charge to the external provider, keyed by
// payment ID so retries and resumed runs reuse the original charge.
// Compensation voids the charge.
type ChargeGatewayStep struct {
	gateway PaymentGateway
}

func NewChargeGatewayStep(gateway PaymentGateway) *ChargeGatewayStep {
	return &ChargeGatewayStep{gateway: gateway}
}

func (s *ChargeGatewayStep) Name() string {
	return StepChargeGateway
}

func (s *ChargeGatewayStep) Execute(ctx context.Context, sc *saga.Context) error {
	paymentID, err := idFromContext(sc, KeyPaymentID)
	if err != nil {
		return err
	}
	amount, err := moneyFromContext(sc)
	if err != nil {
		return err
	}

	result, err := s.gateway.Charge(ctx, ChargeRequest{
		PaymentID:      paymentID,
		Amount:         amount,
		IdempotencyKey: paymentID.String(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to charge gateway")
	}

	sc.Set(KeyChargeID, result.ChargeID)
	return nil
}

func (s *ChargeGatewayStep) Compensate(ctx context.Context, sc *saga.Context) error {
	chargeID, ok := sc.GetString(KeyChargeID)
	if !ok {
		return errors.Errorf("context is missing %q", KeyChargeID)
	}
	return errors.Wrap(s.gateway.VoidCharge(ctx, chargeID), "failed to void charge")
}

// NotifyUserStep publishes payment.completed for downstream consumers.
// Delivery is at-least-once, so the compensation is a no-op: consumers
// de-duplicate on payment ID, and a rolled-back saga publishes its own
// terminal event. Skipped entirely when the context carries notify=false.
type NotifyUserStep struct {
	publisher events.Publisher
}

func NewNotifyUserStep(publisher events.Publisher) *NotifyUserStep {
	return &NotifyUserStep{publisher: publisher}
}

func (s *NotifyUserStep) Name() string {
	return StepNotifyUser
}

func (s *NotifyUserStep) Execute(ctx context.Context, sc *saga.Context) error {
	paymentID, err := idFromContext(sc, KeyPaymentID)
	if err != nil {
		return err
	}
	chargeID, _ := sc.GetString(KeyChargeID)

	event := events.NewEvent(paymentID, events.PaymentCompletedEvent, map[string]interface{}{
		"payment_id": paymentID.String(),
		"charge_id":  chargeID,
	}).WithCorrelationID(sc.CorrelationID())

	return errors.Wrap(s.publisher.Publish(ctx, event), "failed to publish payment.completed")
}

func (s *NotifyUserStep) Compensate(ctx context.Context, sc *saga.Context) error {
	return nil
}

func (s *NotifyUserStep) ShouldSkip(sc *saga.Context) bool {
	notify, ok := sc.Get(KeyNotify)
	if !ok {
		return false
	}
	flag, ok := notify.(bool)
	return ok && !flag
}
