package adjustment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garuda-dms/garuda-dms/internal/closure"
	"github.com/garuda-dms/garuda-dms/internal/platform/httpx"
	"github.com/garuda-dms/garuda-dms/internal/shared"
)

// idempotencyGuard claims create keys and releases them when the guarded
// create fails. *shared.IdempotencyStore satisfies it.
type idempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes the adjustment workflow over HTTP.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency idempotencyGuard
	validate    *validator.Validate
}

// NewHandler constructs a Handler. idempotency may be nil in tests.
func NewHandler(logger *slog.Logger, service *Service, idempotency idempotencyGuard) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		validate:    validator.New(),
	}
}

// MountRoutes registers adjustment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/adjustments", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/categories", h.categories)
		r.Get("/aggregates", h.aggregates)
		r.Get("/aggregates/{division}/{month}", h.aggregate)
		r.Get("/{id}", h.get)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type createRequest struct {
	Division    string `json:"division" validate:"required"`
	Month       string `json:"month" validate:"required"`
	Category    string `json:"category" validate:"required"`
	CompanyID   int64  `json:"company_id"`
	Nominal     string `json:"nominal" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	year, month, err := closure.SplitMonthKey(req.Month)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
		return
	}
	nominal, err := decimal.NewFromString(req.Nominal)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid nominal")
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actor identity required")
		return
	}

	var claimedKey string
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, shared.IdempotencyModuleAdjustmentCreate); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate", "request already processed")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		claimedKey = key
	}

	created, posting, err := h.service.Create(r.Context(), CreateInput{
		Division:    req.Division,
		Year:        year,
		Month:       month,
		Category:    req.Category,
		CompanyID:   req.CompanyID,
		Nominal:     nominal,
		Description: req.Description,
		ActorID:     actorID,
	})
	if err != nil {
		// No adjustment was posted, so the key must not block a retry.
		h.releaseIdempotencyKey(r.Context(), claimedKey)
		h.respondWorkflowError(w, err)
		return
	}
	body := map[string]any{"request": toRequestResponse(created)}
	if posting != nil {
		body["posting"] = toPostingResponse(*posting)
	}
	httpx.JSON(w, http.StatusCreated, body)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actor identity required")
		return
	}
	approved, result, err := h.service.Approve(r.Context(), id, actorID)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"request": toRequestResponse(approved),
		"posting": toPostingResponse(result),
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actor identity required")
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rejected, err := h.service.Reject(r.Context(), id, actorID, req.Reason)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"request": toRequestResponse(rejected)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.logger.Warn("load approval history", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"request":   toRequestResponse(req),
		"approvals": toApprovalResponses(history),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{
		Division: strings.TrimSpace(q.Get("division")),
		Status:   Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
	}
	if monthKey := q.Get("month"); monthKey != "" {
		year, month, err := closure.SplitMonthKey(monthKey)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
			return
		}
		f.Year, f.Month = year, month
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	f.Limit = limit
	f.Offset = (page - 1) * limit

	requests, total, err := h.service.List(r.Context(), f)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requests":   out,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	division := chi.URLParam(r, "division")
	year, month, err := closure.SplitMonthKey(chi.URLParam(r, "month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
		return
	}
	agg, err := h.service.Aggregate(r.Context(), division, year, month)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAggregateResponse(agg))
}

func (h *Handler) aggregates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	division := strings.TrimSpace(q.Get("division"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	aggs, err := h.service.ListAggregates(r.Context(), division, limit, (page-1)*limit)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	out := make([]aggregateResponse, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, toAggregateResponse(agg))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"aggregates": out})
}

func (h *Handler) categories(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": Categories()})
}

// releaseIdempotencyKey frees a claimed key after a failed create so the
// caller can retry with the same header.
func (h *Handler) releaseIdempotencyKey(ctx context.Context, key string) {
	if key == "" || h.idempotency == nil {
		return
	}
	if err := h.idempotency.Delete(ctx, key); err != nil {
		h.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request id")
		return uuid.Nil, false
	}
	return id, true
}

// respondWorkflowError distinguishes business rejections, which the caller
// must change the request to resolve, from posting failures, which are safe
// to retry as-is because the transaction rolled back.
func (h *Handler) respondWorkflowError(w http.ResponseWriter, err error) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validation.Error())
		return
	}
	var posting *PostingError
	if errors.As(err, &posting) {
		h.logger.Error("posting failure", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Posting Failed", "posting could not complete, retry the approval")
		return
	}
	httpx.RespondError(w, err)
}
