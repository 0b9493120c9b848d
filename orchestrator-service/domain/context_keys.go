package domain

import (
	"encoding/json"

	"github.com/draftea/saga-engine/shared/models"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/pkg/errors"
)

// Saga context keys shared by the payment and refund sagas. Steps communicate
// exclusively through these keys; none of them keeps state of its own.
const (
	KeyPaymentID     = "payment_id"
	KeyUserID        = "user_id"
	KeyWalletID      = "wallet_id"
	KeyAmount        = "amount"
	KeyCurrency      = "currency"
	KeyNotify        = "notify"
	KeyReservationID = "reservation_id"
	KeyChargeID      = "charge_id"
	KeyRefundID      = "refund_id"
)

// moneyFromContext reads the amount/currency pair. Amounts written as int64
// come back as json.Number after a snapshot restore, so both forms are
// accepted.
func moneyFromContext(sc *saga.Context) (models.Money, error) {
	rawAmount, ok := sc.Get(KeyAmount)
	if !ok {
		return models.Money{}, errors.Errorf("context is missing %q", KeyAmount)
	}

	var amount int64
	switch v := rawAmount.(type) {
	case int64:
		amount = v
	case int:
		amount = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return models.Money{}, errors.Wrapf(err, "invalid %q", KeyAmount)
		}
		amount = parsed
	case float64:
		amount = int64(v)
	default:
		return models.Money{}, errors.Errorf("unexpected type %T for %q", rawAmount, KeyAmount)
	}

	currency, ok := sc.GetString(KeyCurrency)
	if !ok {
		return models.Money{}, errors.Errorf("context is missing %q", KeyCurrency)
	}

	return models.NewMoney(amount, currency), nil
}

// idFromContext reads a models.ID stored under key
func idFromContext(sc *saga.Context, key string) (models.ID, error) {
	raw, ok := sc.GetString(key)
	if !ok {
		return "", errors.Errorf("context is missing %q", key)
	}
	id, err := models.NewID(raw)
	if err != nil {
		return "", errors.Wrapf(err, "invalid %q", key)
	}
	return id, nil
}
