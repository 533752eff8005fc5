package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vastrabill/vastrabill/internal/platform/httpx"
	"github.com/vastrabill/vastrabill/internal/shared"
)

// Handler manages payment and statement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.applyPayment)
	r.Get("/", h.listPayments)
	r.Get("/{id}", h.getPayment)
}

// MountCustomerRoutes registers the per-customer ledger routes.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/{id}/statement", h.statement)
	r.Post("/{id}/recompute", h.recompute)
}

// ApplyPaymentRequest is the payment creation payload.
type ApplyPaymentRequest struct {
	CustomerID int64           `json:"customerId" validate:"required,gt=0"`
	InvoiceID  *int64          `json:"invoiceId" validate:"omitempty,gt=0"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method" validate:"omitempty,oneof=CASH UPI BANK_TRANSFER CHEQUE"`
	PaidAt     *time.Time      `json:"paidAt"`
	Note       string          `json:"note" validate:"omitempty,max=500"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	var req ApplyPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := ApplyPaymentInput{
		CustomerID:     req.CustomerID,
		InvoiceID:      req.InvoiceID,
		Amount:         req.Amount,
		Method:         req.Method,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.PaidAt != nil {
		input.PaidAt = *req.PaidAt
	}

	payment, err := h.service.ApplyPayment(r.Context(), input)
	if err != nil {
		h.respondError(w, "apply payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	customerID, _ := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	filter := PaymentFilter{CustomerID: customerID, Page: page, Limit: limit}
	payments, total, err := h.service.ListPayments(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list payments", err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"payments":   payments,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment ID")
		return
	}

	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.respondError(w, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer ID")
		return
	}

	stmt, err := h.service.Statement(r.Context(), id)
	if err != nil {
		h.respondError(w, "build statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer ID")
		return
	}

	outstanding, err := h.service.RecomputeBalance(r.Context(), id)
	if err != nil {
		h.respondError(w, "recompute balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"customerId":         id,
		"outstandingBalance": outstanding,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrCustomerNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "customer not found")
	case errors.Is(err, ErrPaymentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "payment not found")
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
	case errors.Is(err, ErrOverpayment), errors.Is(err, ErrInvoiceMismatch):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "request already processed")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
