package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/draftea/saga-engine/orchestrator-service/domain"
	"github.com/draftea/saga-engine/shared/models"
	"github.com/pkg/errors"
)

// HTTPPaymentGateway implements domain.PaymentGateway against the provider's
// REST API. The Idempotency-Key header carries the saga's idempotency key so
// retried and resumed charges reuse the original one on the provider side.
type HTTPPaymentGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPaymentGateway creates a gateway client for the given base URL
func NewHTTPPaymentGateway(baseURL string, timeout time.Duration) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type gatewayChargeResponse struct {
	ChargeID string `json:"charge_id"`
}

type gatewayRefundResponse struct {
	RefundID string `json:"refund_id"`
}

// Charge submits a charge to the provider
func (g *HTTPPaymentGateway) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	var response gatewayChargeResponse
	err := g.post(ctx, "/charges", req.IdempotencyKey, map[string]interface{}{
		"payment_id": req.PaymentID.String(),
		"amount":     req.Amount.Amount,
		"currency":   req.Amount.Currency,
	}, &response)
	if err != nil {
		return nil, err
	}

	return &domain.ChargeResult{ChargeID: response.ChargeID}, nil
}

// VoidCharge cancels a charge that has not settled
func (g *HTTPPaymentGateway) VoidCharge(ctx context.Context, chargeID string) error {
	return g.post(ctx, fmt.Sprintf("/charges/%s/void", chargeID), chargeID+":void", nil, nil)
}

// RefundCharge refunds a settled charge
func (g *HTTPPaymentGateway) RefundCharge(ctx context.Context, chargeID string, amount models.Money) (string, error) {
	var response gatewayRefundResponse
	err := g.post(ctx, fmt.Sprintf("/charges/%s/refunds", chargeID), chargeID+":refund", map[string]interface{}{
		"amount":   amount.Amount,
		"currency": amount.Currency,
	}, &response)
	if err != nil {
		return "", err
	}

	return response.RefundID, nil
}

func (g *HTTPPaymentGateway) post(ctx context.Context, path, idempotencyKey string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	res, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "gateway request failed")
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return errors.Errorf("gateway returned %d: %s", res.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode gateway response")
	}

	return nil
}
