package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vastrabill/vastrabill/internal/ledger"
	"github.com/vastrabill/vastrabill/internal/platform/httpx"
	"github.com/vastrabill/vastrabill/internal/sequence"
	"github.com/vastrabill/vastrabill/internal/shared"
	"github.com/vastrabill/vastrabill/internal/tax"
)

// Handler manages invoice and dyeing bill endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountInvoiceRoutes registers invoice routes.
func (h *Handler) MountInvoiceRoutes(r chi.Router) {
	r.Post("/", h.createInvoice)
	r.Get("/", h.listInvoices)
	r.Get("/{id}", h.getInvoice)
	r.Delete("/{id}", h.deleteInvoice)
	r.Post("/{id}/payments", h.recordInvoicePayment)
}

// MountDyeingBillRoutes registers dyeing bill routes.
func (h *Handler) MountDyeingBillRoutes(r chi.Router) {
	r.Post("/", h.createDyeingBill)
	r.Get("/", h.listDyeingBills)
	r.Get("/{id}", h.getDyeingBill)
	r.Delete("/{id}", h.deleteDyeingBill)
	r.Post("/{id}/payments", h.recordDyeingBillPayment)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	inv, err := h.service.CreateInvoice(r.Context(), req)
	if err != nil {
		h.respondError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	invoices, total, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   invoices,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice ID")
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice ID")
		return
	}
	if err := h.service.DeleteInvoice(r.Context(), id); err != nil {
		h.respondError(w, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordInvoicePayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice ID")
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	inv, err := h.service.RecordInvoicePayment(r.Context(), id, req.PaidAmount)
	if err != nil {
		h.respondError(w, "record invoice payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) createDyeingBill(w http.ResponseWriter, r *http.Request) {
	var req CreateDyeingBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	bill, err := h.service.CreateDyeingBill(r.Context(), req)
	if err != nil {
		h.respondError(w, "create dyeing bill", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) listDyeingBills(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	bills, total, err := h.service.ListDyeingBills(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list dyeing bills", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dyeingBills": bills,
		"pagination":  shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) getDyeingBill(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid dyeing bill ID")
		return
	}
	bill, err := h.service.GetDyeingBill(r.Context(), id)
	if err != nil {
		h.respondError(w, "get dyeing bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) deleteDyeingBill(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid dyeing bill ID")
		return
	}
	if err := h.service.DeleteDyeingBill(r.Context(), id); err != nil {
		h.respondError(w, "delete dyeing bill", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordDyeingBillPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid dyeing bill ID")
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	bill, err := h.service.RecordDyeingBillPayment(r.Context(), id, req.PaidAmount)
	if err != nil {
		h.respondError(w, "record dyeing bill payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "document not found")
	case errors.Is(err, ledger.ErrCustomerNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "customer not found")
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrInvalidItem), errors.Is(err, ErrInvalidPaidAmount),
		errors.Is(err, tax.ErrInvalidMode), errors.Is(err, tax.ErrInvalidRate), errors.Is(err, tax.ErrNegativeSubtotal):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, sequence.ErrCorruption):
		// Loud server-side failure: numbering must be repaired by an
		// operator, never silently restarted.
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Numbering Corruption", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	customerID, _ := strconv.ParseInt(q.Get("customer_id"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := ListFilter{
		CustomerID: customerID,
		Status:     Status(q.Get("status")),
		Page:       page,
		Limit:      limit,
	}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		filter.From = from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		filter.To = to
	}
	return filter
}
