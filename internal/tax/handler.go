package tax

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vastrabill/vastrabill/internal/platform/httpx"
)

// Handler exposes the tax computation endpoint.
type Handler struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger, validate: validator.New()}
}

// MountRoutes registers tax routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/compute", h.compute)
}

type computeRequest struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	RatePercent decimal.Decimal `json:"rate_percent"`
	Mode        Mode            `json:"mode" validate:"required,oneof=INTRASTATE INTERSTATE"`
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	breakdown, err := Compute(req.Subtotal, req.RatePercent, req.Mode)
	switch {
	case errors.Is(err, ErrNegativeSubtotal), errors.Is(err, ErrInvalidRate), errors.Is(err, ErrInvalidMode):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	case err != nil:
		h.logger.Error("compute tax", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, breakdown.Rounded())
}
