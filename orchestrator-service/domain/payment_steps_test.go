package domain_test

import (
	"context"
	"testing"

	"github.com/draftea/saga-engine/orchestrator-service/domain"
	"github.com/draftea/saga-engine/orchestrator-service/mocks"
	"github.com/draftea/saga-engine/shared/events"
	"github.com/draftea/saga-engine/shared/models"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func paymentContext(t *testing.T) (*saga.Context, models.ID, models.ID) {
	t.Helper()

	paymentID := models.GenerateUUID()
	walletID := models.GenerateUUID()

	sc := saga.NewContext()
	sc.Set(domain.KeyPaymentID, paymentID.String())
	sc.Set(domain.KeyWalletID, walletID.String())
	sc.Set(domain.KeyAmount, int64(5000))
	sc.Set(domain.KeyCurrency, "USD")

	return sc, paymentID, walletID
}

func TestReserveFundsStep_Execute(t *testing.T) {
	sc, paymentID, walletID := paymentContext(t)
	movementID := models.GenerateUUID()

	wallets := mocks.NewMockWalletRepository(t)
	wallets.EXPECT().
		Debit(mock.Anything, walletID, models.NewMoney(5000, "USD"), "payment:"+paymentID.String()).
		Return(movementID, nil).Once()

	step := domain.NewReserveFundsStep(wallets)
	require.NoError(t, step.Execute(context.Background(), sc))

	reservation, ok := sc.GetString(domain.KeyReservationID)
	require.True(t, ok)
	assert.Equal(t, movementID.String(), reservation)
}

func TestReserveFundsStep_Execute_InsufficientFunds(t *testing.T) {
	sc, _, _ := paymentContext(t)

	wallets := mocks.NewMockWalletRepository(t)
	wallets.EXPECT().
		Debit(mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.ID(""), domain.ErrInsufficientFunds).Once()

	step := domain.NewReserveFundsStep(wallets)
	err := step.Execute(context.Background(), sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestReserveFundsStep_Compensate(t *testing.T) {
	sc, paymentID, walletID := paymentContext(t)

	wallets := mocks.NewMockWalletRepository(t)
	wallets.EXPECT().
		Credit(mock.Anything, walletID, models.NewMoney(5000, "USD"), "payment:"+paymentID.String()+":reversal").
		Return(models.GenerateUUID(), nil).Once()

	step := domain.NewReserveFundsStep(wallets)
	require.NoError(t, step.Compensate(context.Background(), sc))
}

func TestChargeGatewayStep_Execute(t *testing.T) {
	sc, paymentID, _ := paymentContext(t)

	gateway := mocks.NewMockPaymentGateway(t)
	gateway.EXPECT().
		Charge(mock.Anything, domain.ChargeRequest{
			PaymentID:      paymentID,
			Amount:         models.NewMoney(5000, "USD"),
			IdempotencyKey: paymentID.String(),
		}).
		Return(&domain.ChargeResult{ChargeID: "ch_42"}, nil).Once()

	step := domain.NewChargeGatewayStep(gateway)
	require.NoError(t, step.Execute(context.Background(), sc))

	chargeID, ok := sc.GetString(domain.KeyChargeID)
	require.True(t, ok)
	assert.Equal(t, "ch_42", chargeID)
}

func TestChargeGatewayStep_Compensate(t *testing.T) {
	sc, _, _ := paymentContext(t)
	sc.Set(domain.KeyChargeID, "ch_42")

	gateway := mocks.NewMockPaymentGateway(t)
	gateway.EXPECT().VoidCharge(mock.Anything, "ch_42").Return(nil).Once()

	step := domain.NewChargeGatewayStep(gateway)
	require.NoError(t, step.Compensate(context.Background(), sc))
}

func TestChargeGatewayStep_Compensate_MissingChargeID(t *testing.T) {
	sc, _, _ := paymentContext(t)

	gateway := mocks.NewMockPaymentGateway(t)

	step := domain.NewChargeGatewayStep(gateway)
	err := step.Compensate(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.KeyChargeID)
}

func TestNotifyUserStep_Execute(t *testing.T) {
	sc, paymentID, _ := paymentContext(t)
	sc.Set(domain.KeyChargeID, "ch_42")

	publisher := mocks.NewMockPublisher(t)
	publisher.EXPECT().
		Publish(mock.Anything, mock.MatchedBy(func(evt *events.Event) bool {
			return evt.EventType == events.PaymentCompletedEvent &&
				evt.AggregateID == paymentID
		})).
		Return(nil).Once()

	step := domain.NewNotifyUserStep(publisher)
	require.NoError(t, step.Execute(context.Background(), sc))
}

func TestNotifyUserStep_ShouldSkip(t *testing.T) {
	publisher := mocks.NewMockPublisher(t)
	step := domain.NewNotifyUserStep(publisher)

	sc, _, _ := paymentContext(t)
	assert.False(t, step.ShouldSkip(sc))

	sc.Set(domain.KeyNotify, false)
	assert.True(t, step.ShouldSkip(sc))

	sc.Set(domain.KeyNotify, true)
	assert.False(t, step.ShouldSkip(sc))
}

func TestRefundChargeStep_Execute(t *testing.T) {
	sc, _, _ := paymentContext(t)
	sc.Set(domain.KeyChargeID, "ch_42")

	gateway := mocks.NewMockPaymentGateway(t)
	gateway.EXPECT().
		RefundCharge(mock.Anything, "ch_42", models.NewMoney(5000, "USD")).
		Return("re_7", nil).Once()

	step := domain.NewRefundChargeStep(gateway)
	require.NoError(t, step.Execute(context.Background(), sc))

	refundID, ok := sc.GetString(domain.KeyRefundID)
	require.True(t, ok)
	assert.Equal(t, "re_7", refundID)
}

func TestRestoreFundsStep_ExecuteAndCompensate(t *testing.T) {
	sc, paymentID, walletID := paymentContext(t)

	wallets := mocks.NewMockWalletRepository(t)
	wallets.EXPECT().
		Credit(mock.Anything, walletID, models.NewMoney(5000, "USD"), "refund:"+paymentID.String()).
		Return(models.GenerateUUID(), nil).Once()
	wallets.EXPECT().
		Debit(mock.Anything, walletID, models.NewMoney(5000, "USD"), "refund:"+paymentID.String()+":reversal").
		Return(models.GenerateUUID(), nil).Once()

	step := domain.NewRestoreFundsStep(wallets)
	require.NoError(t, step.Execute(context.Background(), sc))
	require.NoError(t, step.Compensate(context.Background(), sc))
}

func TestSteps_MissingContextKeys(t *testing.T) {
	wallets := mocks.NewMockWalletRepository(t)
	gateway := mocks.NewMockPaymentGateway(t)

	sc := saga.NewContext() // empty context

	assert.Error(t, domain.NewReserveFundsStep(wallets).Execute(context.Background(), sc))
	assert.Error(t, domain.NewChargeGatewayStep(gateway).Execute(context.Background(), sc))
	assert.Error(t, domain.NewRefundChargeStep(gateway).Execute(context.Background(), sc))
}

func TestMoneyRoundTripsThroughSnapshot(t *testing.T) {
	// Amounts written as int64 come back as json.Number after a restore;
	// the steps must accept both forms.
	sc, paymentID, walletID := paymentContext(t)

	snapshot, err := sc.Snapshot()
	require.NoError(t, err)
	restored, err := saga.RestoreContext(snapshot)
	require.NoError(t, err)

	wallets := mocks.NewMockWalletRepository(t)
	wallets.EXPECT().
		Debit(mock.Anything, walletID, models.NewMoney(5000, "USD"), "payment:"+paymentID.String()).
		Return(models.GenerateUUID(), nil).Once()

	step := domain.NewReserveFundsStep(wallets)
	require.NoError(t, step.Execute(context.Background(), restored))
}

func TestRefundChargeStep_Execute_GatewayError(t *testing.T) {
	sc, _, _ := paymentContext(t)
	sc.Set(domain.KeyChargeID, "ch_42")

	gateway := mocks.NewMockPaymentGateway(t)
	gateway.EXPECT().
		RefundCharge(mock.Anything, "ch_42", mock.Anything).
		Return("", errors.New("provider unavailable")).Once()

	step := domain.NewRefundChargeStep(gateway)
	err := step.Execute(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to refund charge")
}
