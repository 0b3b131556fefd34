package closure

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/garuda-dms/garuda-dms/internal/platform/httpx"
	"github.com/garuda-dms/garuda-dms/internal/shared"
)

// Handler exposes closed-period endpoints. Creation models the month-close
// process collaborator; the adjustment engine itself only reads.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry, validate: validator.New()}
}

// MountRoutes registers closed-period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/closed-periods", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.markClosed)
	})
}

type closedPeriodResponse struct {
	ID       int64  `json:"id"`
	Division string `json:"division"`
	Month    string `json:"month"`
	Year     int    `json:"year"`
	ClosedBy int64  `json:"closed_by"`
	ClosedAt string `json:"closed_at"`
}

type markClosedRequest struct {
	Division string `json:"division" validate:"required"`
	Year     int    `json:"year" validate:"required,gte=2000,lte=2200"`
	Month    int    `json:"month" validate:"required,gte=1,lte=12"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	division := strings.TrimSpace(r.URL.Query().Get("division"))
	if division == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "division is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	periods, err := h.registry.ListByDivision(r.Context(), division, limit, offset)
	if err != nil {
		h.logger.Error("list closed periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]closedPeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, toClosedPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"closed_periods": out})
}

func (h *Handler) markClosed(w http.ResponseWriter, r *http.Request) {
	var req markClosedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actor identity required")
		return
	}
	period, err := h.registry.MarkClosed(r.Context(), MarkClosedInput{
		Division: strings.TrimSpace(req.Division),
		Year:     req.Year,
		Month:    req.Month,
		ActorID:  actorID,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Warn("mark period closed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toClosedPeriodResponse(period))
}

func toClosedPeriodResponse(p ClosedPeriod) closedPeriodResponse {
	return closedPeriodResponse{
		ID:       p.ID,
		Division: p.Division,
		Month:    p.MonthKey(),
		Year:     p.Year,
		ClosedBy: p.ClosedBy,
		ClosedAt: p.ClosedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
