package returns

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bakeledger/bakeledger/internal/ledger"
	"github.com/bakeledger/bakeledger/internal/platform/httpx"
	"github.com/bakeledger/bakeledger/internal/shared"
)

// Handler wires HTTP endpoints for GRM/GVN write-offs.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	repo     *Repository
	validate *validator.Validate
}

// NewHandler constructs returns handler.
func NewHandler(logger *slog.Logger, service *Service, repo *Repository) *Handler {
	return &Handler{logger: logger, service: service, repo: repo, validate: validator.New()}
}

// MountRoutes registers returns routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/grm/candidates", h.grmCandidates)
	r.Get("/gvn/candidates", h.gvnCandidates)
	r.Post("/grm", h.processGRM)
	r.Post("/gvn", h.processGVN)
	r.Get("/", h.list)
}

func (h *Handler) grmCandidates(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(w, r)
	if !ok {
		return
	}
	batches, err := h.service.ListGRMCandidates(r.Context(), date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"candidates": batches})
}

func (h *Handler) gvnCandidates(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(w, r)
	if !ok {
		return
	}
	batches, err := h.service.ListGVNCandidates(r.Context(), date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"candidates": batches})
}

func (h *Handler) processGRM(w http.ResponseWriter, r *http.Request) {
	h.processReturns(w, r, TypeGRM)
}

func (h *Handler) processGVN(w http.ResponseWriter, r *http.Request) {
	h.processReturns(w, r, TypeGVN)
}

func (h *Handler) processReturns(w http.ResponseWriter, r *http.Request, t Type) {
	var req ProcessReturnsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := req.toInput(shared.StaffFromContext(r.Context()))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "return_date must be YYYY-MM-DD")
		return
	}

	var summary Summary
	if t == TypeGRM {
		summary, err = h.service.ProcessGRMReturn(r.Context(), input)
	} else {
		summary, err = h.service.ProcessGVNDamage(r.Context(), input)
	}
	if err != nil {
		var insufficient *ledger.InsufficientStockError
		if errors.As(err, &insufficient) {
			httpx.Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, summary)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(w, r)
	if !ok {
		return
	}
	result, err := h.repo.ListByDate(r.Context(), date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if result == nil {
		result = []Return{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"returns": result})
}

func parseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
