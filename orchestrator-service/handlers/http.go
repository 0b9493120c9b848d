package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/draftea/saga-engine/orchestrator-service/application"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// SagaHandlers contains the orchestrator HTTP handlers
type SagaHandlers struct {
	processPayment *application.ProcessPayment
	refundPayment  *application.RefundPayment
	getSaga        *application.GetSaga
}

// NewSagaHandlers creates new saga handlers
func NewSagaHandlers(
	processPayment *application.ProcessPayment,
	refundPayment *application.RefundPayment,
	getSaga *application.GetSaga,
) *SagaHandlers {
	return &SagaHandlers{
		processPayment: processPayment,
		refundPayment:  refundPayment,
		getSaga:        getSaga,
	}
}

// ProcessPayment handles payment processing requests. The saga runs to a
// terminal state before the response is written, so the status in the body
// is final.
func (h *SagaHandlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var cmd application.ProcessPaymentCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.processPayment.Execute(r.Context(), &cmd)
	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCodeFor(response.Status))
	json.NewEncoder(w).Encode(response)
}

// RefundPayment handles refund requests
func (h *SagaHandlers) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var cmd application.RefundPaymentCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.PaymentID = chi.URLParam(r, "id")

	response, err := h.refundPayment.Execute(r.Context(), &cmd)
	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCodeFor(response.Status))
	json.NewEncoder(w).Encode(response)
}

// GetSaga handles saga state retrieval requests
func (h *SagaHandlers) GetSaga(w http.ResponseWriter, r *http.Request) {
	sagaID := chi.URLParam(r, "id")
	if sagaID == "" {
		http.Error(w, "Saga ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.getSaga.Execute(r.Context(), &application.GetSagaQuery{SagaID: sagaID})
	if err != nil {
		if errors.Is(err, saga.ErrSagaNotFound) {
			http.Error(w, "saga not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// RegisterRoutes registers the orchestrator routes
func (h *SagaHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.ProcessPayment)
		r.Post("/{id}/refund", h.RefundPayment)
	})
	r.Route("/sagas", func(r chi.Router) {
		r.Get("/{id}", h.GetSaga)
	})
}

// statusCodeFor maps a terminal saga status to an HTTP status: completed
// sagas are 201, rolled-back ones 422, failed compensations 500.
func statusCodeFor(status string) int {
	switch saga.Status(status) {
	case saga.StatusCompleted:
		return http.StatusCreated
	case saga.StatusCompensated:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	return strings.HasPrefix(err.Error(), "invalid command") ||
		strings.HasPrefix(err.Error(), "invalid ")
}
