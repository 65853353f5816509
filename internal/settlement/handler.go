package settlement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bakeledger/bakeledger/internal/platform/httpx"
	"github.com/bakeledger/bakeledger/internal/shared"
)

// Handler wires HTTP endpoints for receipt settlement.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	repo     *Repository
	validate *validator.Validate
}

// NewHandler constructs settlement handler.
func NewHandler(logger *slog.Logger, service *Service, repo *Repository) *Handler {
	return &Handler{logger: logger, service: service, repo: repo, validate: validator.New()}
}

// MountRoutes registers settlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receipts", h.clear)
	r.Get("/receipts/{number}", h.show)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	var req ClearReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	receipt, err := req.toReceipt()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
		return
	}

	result, err := h.service.ClearFromReceipt(r.Context(), shared.StaffFromContext(r.Context()), receipt)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.repo.FindReceipt(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.repo.ClearedItems(r.Context(), receipt.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []ClearedItem{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipt": receipt, "cleared_items": items})
}
