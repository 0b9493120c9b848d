package domain

import (
	"context"

	"github.com/draftea/saga-engine/shared/events"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/pkg/errors"
)

// Step names of the refund saga
const (
	StepRefundCharge = "refund_charge"
	StepRestoreFunds = "restore_funds"
	StepNotifyRefund = "notify_refund"
)

// RefundSagaName identifies the refund saga type in the state store
const RefundSagaName = "payment_refund"

// RefundSagaSteps returns the ordered steps of the refund saga: refund the
// provider charge, credit the wallet back, notify downstream consumers.
func RefundSagaSteps(wallets WalletRepository, gateway PaymentGateway, publisher events.Publisher) []saga.Step {
	return []saga.Step{
		NewRefundChargeStep(gateway),
		NewRestoreFundsStep(wallets),
		NewNotifyRefundStep(publisher),
	}
}

// RefundChargeStep refunds the settled charge at the provider. A provider
// refund cannot be taken back, so the compensation is a documented no-op;
// a failed refund saga leaves the refund in place and the error surfaces
// for manual follow-up.
type RefundChargeStep struct {
	gateway PaymentGateway
}

func NewRefundChargeStep(gateway PaymentGateway) *RefundChargeStep {
	return &RefundChargeStep{gateway: gateway}
}

func (s *RefundChargeStep) Name() string {
	return StepRefundCharge
}

func (s *RefundChargeStep) Execute(ctx context.Context, sc *saga.Context) error {
	chargeID, ok := sc.GetString(KeyChargeID)
	if !ok {
		return errors.Errorf("context is missing %q", KeyChargeID)
	}
	amount, err := moneyFromContext(sc)
	if err != nil {
		return err
	}

	refundID, err := s.gateway.RefundCharge(ctx, chargeID, amount)
	if err != nil {
		return errors.Wrap(err, "failed to refund charge")
	}

	sc.Set(KeyRefundID, refundID)
	return nil
}

func (s *RefundChargeStep) Compensate(ctx context.Context, sc *saga.Context) error {
	return nil
}

// RestoreFundsStep credits the refunded amount back to the wallet.
// Compensation debits it again (backward recovery: the exact prior balance
// is restored). Both directions are idempotent through the reference.
type RestoreFundsStep struct {
	wallets WalletRepository
}

func NewRestoreFundsStep(wallets WalletRepository) *RestoreFundsStep {
	return &RestoreFundsStep{wallets: wallets}
}

func (s *RestoreFundsStep) Name() string {
	return StepRestoreFunds
}

func (s *RestoreFundsStep) Execute(ctx context.Context, sc *saga.Context) error {
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

	_, err = s.wallets.Credit(ctx, walletID, amount, "refund:"+paymentID.String())
	return errors.Wrap(err, "failed to restore funds")
}

func (s *RestoreFundsStep) Compensate(ctx context.Context, sc *saga.Context) error {
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

	_, err = s.wallets.Debit(ctx, walletID, amount, "refund:"+paymentID.String()+":reversal")
	return errors.Wrap(err, "failed to reverse restored funds")
}

// NotifyRefundStep publishes payment.refund.completed. No-op compensation,
// same rationale as NotifyUserStep.
type NotifyRefundStep struct {
	publisher events.Publisher
}

func NewNotifyRefundStep(publisher events.Publisher) *NotifyRefundStep {
	return &NotifyRefundStep{publisher: publisher}
}

func (s *NotifyRefundStep) Name() string {
	return StepNotifyRefund
}

func (s *NotifyRefundStep) Execute(ctx context.Context, sc *saga.Context) error {
	paymentID, err := idFromContext(sc, KeyPaymentID)
	if err != nil {
		return err
	}
	refundID, _ := sc.GetString(KeyRefundID)

	event := events.NewEvent(paymentID, events.PaymentRefundCompletedEvent, map[string]interface{}{
		"payment_id": paymentID.String(),
		"refund_id":  refundID,
	}).WithCorrelationID(sc.CorrelationID())

	return errors.Wrap(s.publisher.Publish(ctx, event), "failed to publish payment.refund.completed")
}

func (s *NotifyRefundStep) Compensate(ctx context.Context, sc *saga.Context) error {
	return nil
}
