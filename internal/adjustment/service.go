package adjustment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garuda-dms/garuda-dms/internal/shared"
)

const approvalModule = "adjustment"

// ClosureChecker answers whether a division month is closed.
type ClosureChecker interface {
	IsClosed(ctx context.Context, division string, year, month int) (bool, error)
}

// CompanyChecker answers whether a company exists.
type CompanyChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type approvalRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CreateInput carries a new adjustment request.
type CreateInput struct {
	Division    string
	Year        int
	Month       int
	Category    string
	CompanyID   int64
	Nominal     decimal.Decimal
	Description string
	ActorID     int64
}

// Service runs the request workflow: intake, decision, posting. Approval
// history and audit records are best-effort side channels; a failure there
// is logged and never rolls back a committed posting.
type Service struct {
	repo      Repository
	poster    Poster
	closures  ClosureChecker
	companies CompanyChecker
	approvals approvalRecorder
	audit     auditRecorder
	logger    *slog.Logger
}

// NewService constructs the Service.
func NewService(repo Repository, poster Poster, closures ClosureChecker, companies CompanyChecker,
	approvals approvalRecorder, audit auditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		poster:    poster,
		closures:  closures,
		companies: companies,
		approvals: approvals,
		audit:     audit,
		logger:    logger,
	}
}

// Create validates and persists a new request. Pre-vetted categories are
// approved and posted in the same call; the returned result is non-nil only
// on that path.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, *PostingResult, error) {
	profile, err := s.validateCreate(&in)
	if err != nil {
		return Request{}, nil, err
	}
	if err := s.verifyCompany(ctx, profile, in.CompanyID); err != nil {
		return Request{}, nil, err
	}

	closed, err := s.closures.IsClosed(ctx, in.Division, in.Year, in.Month)
	if err != nil {
		// Treat a registry outage like an open month. Eligibility is never
		// assumed.
		return Request{}, nil, fmt.Errorf("verify period closure: %w", err)
	}
	if !closed {
		return Request{}, nil, shared.ErrIneligiblePeriod
	}

	req := Request{
		ID:           uuid.New(),
		Division:     in.Division,
		Year:         in.Year,
		Month:        in.Month,
		Category:     in.Category,
		CompanyID:    in.CompanyID,
		Nominal:      in.Nominal,
		Description:  in.Description,
		Status:       StatusPending,
		AutoApproved: profile.AutoApprove,
		RequestedBy:  in.ActorID,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return Request{}, nil, fmt.Errorf("create adjustment request: %w", err)
	}
	s.recordApproval(ctx, req.ID, in.ActorID, shared.ApprovalSubmit, "")
	s.recordAudit(ctx, in.ActorID, "adjustment.create", req.ID, map[string]any{
		"division": req.Division,
		"period":   fmt.Sprintf("%04d-%02d", req.Year, req.Month),
		"category": req.Category,
		"nominal":  req.Nominal.String(),
	})

	if !profile.AutoApprove {
		stored, err := s.repo.Get(ctx, req.ID)
		if err != nil {
			return req, nil, nil
		}
		return stored, nil, nil
	}

	result, err := s.poster.Post(ctx, req, profile, in.ActorID)
	if err != nil {
		// The request stays pending for a manual decision.
		s.logger.Error("auto-approve posting failed",
			slog.String("request_id", req.ID.String()),
			slog.Any("error", err))
		stored, getErr := s.repo.Get(ctx, req.ID)
		if getErr != nil {
			stored = req
		}
		return stored, nil, err
	}
	s.recordApproval(ctx, req.ID, in.ActorID, shared.ApprovalApprove, "auto-approved category")
	s.recordAudit(ctx, in.ActorID, "adjustment.auto_approve", req.ID, nil)
	stored, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		stored = req
		stored.Status = StatusApproved
	}
	return stored, &result, nil
}

// Approve posts a pending request. The decision and its ledger effects
// commit together; an approval that returns an error changed nothing.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actorID int64) (Request, PostingResult, error) {
	if actorID == 0 {
		return Request{}, PostingResult{}, &ValidationError{Field: "actor", Reason: "approver identity required"}
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, PostingResult{}, err
	}
	if req.Status.Terminal() {
		return Request{}, PostingResult{}, shared.ErrInvalidStateTransition
	}
	profile, err := EffectsFor(req.Category)
	if err != nil {
		return Request{}, PostingResult{}, err
	}

	result, err := s.poster.Post(ctx, req, profile, actorID)
	if err != nil {
		return Request{}, PostingResult{}, err
	}
	s.recordApproval(ctx, id, actorID, shared.ApprovalApprove, "")
	s.recordAudit(ctx, actorID, "adjustment.approve", id, map[string]any{
		"capital_balance":  result.CapitalBalance.String(),
		"negative_warning": result.NegativeCapitalWarning,
	})
	if result.NegativeCapitalWarning {
		s.logger.Warn("posting drove capital negative",
			slog.String("request_id", id.String()),
			slog.Int64("company_id", req.CompanyID),
			slog.String("balance", result.CapitalBalance.String()))
	}

	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, PostingResult{}, err
	}
	return stored, result, nil
}

// Reject declines a pending request with a mandatory reason. Rejection has
// no ledger effects and is terminal.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actorID int64, reason string) (Request, error) {
	if actorID == 0 {
		return Request{}, &ValidationError{Field: "actor", Reason: "approver identity required"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Request{}, &ValidationError{Field: "reason", Reason: "rejection reason required"}
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Request{}, err
	}
	rejected, err := s.repo.MarkRejected(ctx, id, actorID, reason)
	if err != nil {
		return Request{}, fmt.Errorf("reject adjustment request: %w", err)
	}
	if !rejected {
		return Request{}, shared.ErrInvalidStateTransition
	}
	s.recordApproval(ctx, id, actorID, shared.ApprovalReject, reason)
	s.recordAudit(ctx, actorID, "adjustment.reject", id, map[string]any{"reason": reason})
	return s.repo.Get(ctx, id)
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.repo.Get(ctx, id)
}

// History returns the approval trail for a request.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]shared.ApprovalLog, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.approvals.List(ctx, approvalModule, id)
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Request, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, &ValidationError{Field: "status", Reason: "unknown status"}
	}
	return s.repo.List(ctx, f)
}

// Aggregate returns the monthly aggregate for a division month. A month
// with no postings yields a zero row, not an error.
func (s *Service) Aggregate(ctx context.Context, division string, year, month int) (MonthlyAggregate, error) {
	if strings.TrimSpace(division) == "" {
		return MonthlyAggregate{}, &ValidationError{Field: "division", Reason: "division required"}
	}
	return s.repo.GetAggregate(ctx, division, year, month)
}

// ListAggregates returns aggregates for a division, newest month first.
func (s *Service) ListAggregates(ctx context.Context, division string, limit, offset int) ([]MonthlyAggregate, error) {
	if strings.TrimSpace(division) == "" {
		return nil, &ValidationError{Field: "division", Reason: "division required"}
	}
	return s.repo.ListAggregates(ctx, division, limit, offset)
}

func (s *Service) validateCreate(in *CreateInput) (EffectProfile, error) {
	in.Division = strings.TrimSpace(in.Division)
	in.Description = strings.TrimSpace(in.Description)
	if in.ActorID == 0 {
		return EffectProfile{}, &ValidationError{Field: "actor", Reason: "requester identity required"}
	}
	if in.Division == "" {
		return EffectProfile{}, &ValidationError{Field: "division", Reason: "division required"}
	}
	if in.Month < 1 || in.Month > 12 || in.Year < 2000 || in.Year > 2200 {
		return EffectProfile{}, &ValidationError{Field: "month", Reason: "month out of range"}
	}
	if !in.Nominal.IsPositive() {
		return EffectProfile{}, &ValidationError{Field: "nominal", Reason: "nominal must be positive"}
	}
	if in.Description == "" {
		return EffectProfile{}, &ValidationError{Field: "description", Reason: "description required"}
	}
	profile, err := EffectsFor(in.Category)
	if err != nil {
		return EffectProfile{}, err
	}
	if (profile.AffectsCapital || profile.AffectsCashLedger) && in.CompanyID <= 0 {
		return EffectProfile{}, &ValidationError{Field: "company_id", Reason: "company required for this category"}
	}
	return profile, nil
}

// verifyCompany is split from validateCreate because it needs I/O.
func (s *Service) verifyCompany(ctx context.Context, profile EffectProfile, companyID int64) error {
	if !profile.AffectsCapital && !profile.AffectsCashLedger {
		return nil
	}
	exists, err := s.companies.Exists(ctx, companyID)
	if err != nil {
		return fmt.Errorf("verify company: %w", err)
	}
	if !exists {
		return &ValidationError{Field: "company_id", Reason: "company not found"}
	}
	return nil
}

func (s *Service) recordApproval(ctx context.Context, id uuid.UUID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   id,
		ActorID: actorID,
		Action:  action,
		Note:    note,
		At:      time.Now(),
	})
	if err != nil {
		s.logger.Error("record approval", slog.String("request_id", id.String()), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   shared.AuditEntityAdjustment,
		EntityID: id.String(),
		Meta:     meta,
		At:       time.Now(),
	})
	if err != nil {
		s.logger.Error("record audit", slog.String("request_id", id.String()), slog.Any("error", err))
	}
}
