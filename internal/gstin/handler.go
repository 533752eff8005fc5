package gstin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vastrabill/vastrabill/internal/platform/httpx"
)

// Handler exposes GSTIN decode and lookup endpoints.
type Handler struct {
	logger   *slog.Logger
	registry *RegistryClient
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, registry *RegistryClient) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// MountRoutes registers GSTIN routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/decode", h.decode)
	r.Get("/{gstin}/registry", h.lookup)
}

type decodeRequest struct {
	GSTIN string `json:"gstin"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	decoded, err := Decode(req.GSTIN)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, problemTitle(err), err.Error())
		return
	}

	httpx.JSON(w, http.StatusOK, decoded)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gstin")

	record, err := h.registry.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, ErrRegistryUnavailable):
		h.logger.Warn("gstin registry lookup failed", slog.String("gstin", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Registry Unavailable", "registry lookup failed")
		return
	case err != nil:
		httpx.Problem(w, http.StatusBadRequest, problemTitle(err), err.Error())
		return
	}

	httpx.JSON(w, http.StatusOK, record)
}

func problemTitle(err error) string {
	switch {
	case errors.Is(err, ErrLength):
		return "Invalid Length"
	case errors.Is(err, ErrFormat):
		return "Invalid Format"
	case errors.Is(err, ErrUnknownState):
		return "Unknown State"
	default:
		return "Invalid GSTIN"
	}
}
