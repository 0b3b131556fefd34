package adjustment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garuda-dms/garuda-dms/internal/ledger"
	"github.com/garuda-dms/garuda-dms/internal/shared"
)

type fakeRepo struct {
	requests   map[uuid.UUID]Request
	aggregates map[string]MonthlyAggregate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		requests:   map[uuid.UUID]Request{},
		aggregates: map[string]MonthlyAggregate{},
	}
}

func aggKey(division string, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", division, year, month)
}

func (r *fakeRepo) Create(_ context.Context, req Request) error {
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	r.requests[req.ID] = req
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return Request{}, shared.ErrNotFound
	}
	return req, nil
}

func (r *fakeRepo) List(_ context.Context, f ListFilter) ([]Request, int, error) {
	var out []Request
	for _, req := range r.requests {
		if f.Division != "" && req.Division != f.Division {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		if f.Year != 0 && req.Year != f.Year {
			continue
		}
		if f.Month != 0 && req.Month != f.Month {
			continue
		}
		out = append(out, req)
	}
	return out, len(out), nil
}

func (r *fakeRepo) MarkRejected(_ context.Context, id uuid.UUID, actorID int64, reason string) (bool, error) {
	req, ok := r.requests[id]
	if !ok || req.Status != StatusPending {
		return false, nil
	}
	now := time.Now()
	req.Status = StatusRejected
	req.DecidedBy = &actorID
	req.DecisionReason = reason
	req.DecidedAt = &now
	r.requests[id] = req
	return true, nil
}

func (r *fakeRepo) GetAggregate(_ context.Context, division string, year, month int) (MonthlyAggregate, error) {
	agg, ok := r.aggregates[aggKey(division, year, month)]
	if !ok {
		return MonthlyAggregate{
			Division: division, Year: year, Month: month,
			TotalNominal: decimal.Zero, CapitalTotal: decimal.Zero,
			ProfitTotal: decimal.Zero, CashTotal: decimal.Zero,
		}, nil
	}
	return agg, nil
}

func (r *fakeRepo) ListAggregates(_ context.Context, division string, _, _ int) ([]MonthlyAggregate, error) {
	var out []MonthlyAggregate
	for _, agg := range r.aggregates {
		if agg.Division == division {
			out = append(out, agg)
		}
	}
	return out, nil
}

func (r *fakeRepo) ReplaceAggregate(_ context.Context, agg MonthlyAggregate) error {
	r.aggregates[aggKey(agg.Division, agg.Year, agg.Month)] = agg
	return nil
}

// fakePoster mirrors the engine's semantics against in-memory stores:
// claim the pending request, apply the profile's effects, bump the
// aggregate, all or nothing.
type fakePoster struct {
	repo       *fakeRepo
	capital    map[int64]decimal.Decimal
	entries    []ledger.CashEntry
	deductions []ledger.ProfitDeduction
	failWith   error
}

func newFakePoster(repo *fakeRepo) *fakePoster {
	return &fakePoster{repo: repo, capital: map[int64]decimal.Decimal{}}
}

func (p *fakePoster) Post(_ context.Context, req Request, profile EffectProfile, actorID int64) (PostingResult, error) {
	if p.failWith != nil {
		return PostingResult{}, p.failWith
	}
	stored, ok := p.repo.requests[req.ID]
	if !ok {
		return PostingResult{}, shared.ErrNotFound
	}
	if stored.Status != StatusPending {
		return PostingResult{}, shared.ErrInvalidStateTransition
	}
	now := time.Now()
	stored.Status = StatusApproved
	stored.DecidedBy = &actorID
	stored.DecidedAt = &now
	stored.PostedAt = &now
	p.repo.requests[req.ID] = stored

	var result PostingResult
	if profile.AffectsCashLedger {
		p.entries = append(p.entries, ledger.CashEntry{
			Date:      ledger.EntryDateFor(req.Year, req.Month),
			Division:  req.Division,
			CompanyID: req.CompanyID,
			Debit:     req.Nominal,
			RequestID: &req.ID,
		})
		result.CashEntryID = int64(len(p.entries))
	}
	capitalDelta := profile.CapitalDelta(req.Nominal)
	if profile.AffectsCapital {
		balance := p.capital[req.CompanyID].Sub(capitalDelta)
		p.capital[req.CompanyID] = balance
		result.CapitalBalance = balance
		result.NegativeCapitalWarning = balance.IsNegative()
	}
	if profile.AffectsProfit {
		p.deductions = append(p.deductions, ledger.ProfitDeduction{
			Division: req.Division, Year: req.Year, Month: req.Month,
			Category: req.Category, Amount: req.Nominal, RequestID: req.ID,
		})
		result.ProfitDeductionID = int64(len(p.deductions))
	}

	key := aggKey(req.Division, req.Year, req.Month)
	agg, ok := p.repo.aggregates[key]
	if !ok {
		agg = MonthlyAggregate{
			Division: req.Division, Year: req.Year, Month: req.Month,
			TotalNominal: decimal.Zero, CapitalTotal: decimal.Zero,
			ProfitTotal: decimal.Zero, CashTotal: decimal.Zero,
		}
	}
	agg.TotalNominal = agg.TotalNominal.Add(req.Nominal)
	if profile.AffectsCapital {
		agg.CapitalTotal = agg.CapitalTotal.Add(capitalDelta)
	}
	if profile.AffectsProfit {
		agg.ProfitTotal = agg.ProfitTotal.Add(req.Nominal)
	}
	if profile.AffectsCashLedger {
		agg.CashTotal = agg.CashTotal.Add(req.Nominal)
	}
	agg.RequestCount++
	p.repo.aggregates[key] = agg
	return result, nil
}

type fakeClosures struct {
	closed map[string]bool
	err    error
}

func (c *fakeClosures) IsClosed(_ context.Context, division string, year, month int) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.closed[aggKey(division, year, month)], nil
}

type fakeCompanies struct {
	known map[int64]bool
}

func (c *fakeCompanies) Exists(_ context.Context, id int64) (bool, error) {
	return c.known[id], nil
}

type fakeApprovals struct {
	logs []shared.ApprovalLog
}

func (a *fakeApprovals) Record(_ context.Context, log shared.ApprovalLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *fakeApprovals) List(_ context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (a *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type fixture struct {
	service   *Service
	repo      *fakeRepo
	poster    *fakePoster
	closures  *fakeClosures
	approvals *fakeApprovals
	audit     *fakeAudit
}

func newFixture() *fixture {
	repo := newFakeRepo()
	poster := newFakePoster(repo)
	closures := &fakeClosures{closed: map[string]bool{
		aggKey("sport", 2024, 3): true,
	}}
	companies := &fakeCompanies{known: map[int64]bool{1: true, 2: true}}
	approvals := &fakeApprovals{}
	audit := &fakeAudit{}
	service := NewService(repo, poster, closures, companies, approvals, audit,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &fixture{
		service:   service,
		repo:      repo,
		poster:    poster,
		closures:  closures,
		approvals: approvals,
		audit:     audit,
	}
}

func globalOperationalInput() CreateInput {
	return CreateInput{
		Division:    "sport",
		Year:        2024,
		Month:       3,
		Category:    "Global Operational",
		CompanyID:   1,
		Nominal:     decimal.NewFromInt(500000),
		Description: "vendor invoice surfaced after close",
		ActorID:     7,
	}
}

func salaryShortfallInput() CreateInput {
	return CreateInput{
		Division:    "sport",
		Year:        2024,
		Month:       3,
		Category:    "Salary Shortfall vs Profit",
		Nominal:     decimal.NewFromInt(200000),
		Description: "march payroll gap",
		ActorID:     7,
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"unknown category", func(in *CreateInput) { in.Category = "Misc" }, "category"},
		{"zero nominal", func(in *CreateInput) { in.Nominal = decimal.Zero }, "nominal"},
		{"negative nominal", func(in *CreateInput) { in.Nominal = decimal.NewFromInt(-100) }, "nominal"},
		{"missing actor", func(in *CreateInput) { in.ActorID = 0 }, "actor"},
		{"missing division", func(in *CreateInput) { in.Division = " " }, "division"},
		{"bad month", func(in *CreateInput) { in.Month = 13 }, "month"},
		{"missing description", func(in *CreateInput) { in.Description = "" }, "description"},
		{"missing company", func(in *CreateInput) { in.CompanyID = 0 }, "company_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			in := globalOperationalInput()
			tc.mutate(&in)
			_, _, err := f.service.Create(context.Background(), in)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			require.Equal(t, tc.field, validation.Field)
			require.Empty(t, f.repo.requests)
		})
	}
}

func TestCreateUnknownCompany(t *testing.T) {
	f := newFixture()
	in := globalOperationalInput()
	in.CompanyID = 99
	_, _, err := f.service.Create(context.Background(), in)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "company_id", validation.Field)
}

func TestCreateRequiresClosedPeriod(t *testing.T) {
	f := newFixture()
	in := globalOperationalInput()
	in.Month = 4
	_, _, err := f.service.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrIneligiblePeriod)
	require.Empty(t, f.repo.requests)
}

func TestCreateFailsClosedOnRegistryError(t *testing.T) {
	f := newFixture()
	f.closures.err = fmt.Errorf("registry down")
	_, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.Error(t, err)
	require.NotErrorIs(t, err, shared.ErrIneligiblePeriod)
	require.Empty(t, f.repo.requests)
}

func TestCreatePendingRecordsSubmit(t *testing.T) {
	f := newFixture()
	created, posting, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)
	require.Nil(t, posting)
	require.Equal(t, StatusPending, created.Status)
	require.False(t, created.AutoApproved)

	require.Len(t, f.approvals.logs, 1)
	require.Equal(t, shared.ApprovalSubmit, f.approvals.logs[0].Action)
	require.Empty(t, f.poster.entries)
	require.Empty(t, f.poster.deductions)
}

func TestCreateAutoApprovePostsImmediately(t *testing.T) {
	f := newFixture()
	created, posting, err := f.service.Create(context.Background(), salaryShortfallInput())
	require.NoError(t, err)
	require.NotNil(t, posting)
	require.Equal(t, StatusApproved, created.Status)
	require.True(t, created.AutoApproved)

	// Profit-only category: a deduction, no cash entry, no capital movement.
	require.Empty(t, f.poster.entries)
	require.Len(t, f.poster.deductions, 1)
	require.True(t, f.poster.deductions[0].Amount.Equal(decimal.NewFromInt(200000)))
	require.Empty(t, f.poster.capital)

	agg, err := f.service.Aggregate(context.Background(), "sport", 2024, 3)
	require.NoError(t, err)
	require.True(t, agg.TotalNominal.Equal(decimal.NewFromInt(200000)))
	require.True(t, agg.ProfitTotal.Equal(decimal.NewFromInt(200000)))
	require.True(t, agg.CapitalTotal.IsZero())
	require.True(t, agg.CashTotal.IsZero())
}

func TestApprovePostsAllEffects(t *testing.T) {
	f := newFixture()
	f.poster.capital[1] = decimal.NewFromInt(300000)
	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)

	approved, result, err := f.service.Approve(context.Background(), created.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedBy)
	require.Equal(t, int64(9), *approved.DecidedBy)

	// Full-effect category writes all three stores.
	require.Len(t, f.poster.entries, 1)
	require.True(t, f.poster.entries[0].Debit.Equal(decimal.NewFromInt(500000)))
	require.Equal(t, ledger.EntryDateFor(2024, 3), f.poster.entries[0].Date)
	require.Len(t, f.poster.deductions, 1)

	// 300000 opening minus 500000 lands negative; the posting commits and
	// the caller gets a warning.
	require.True(t, f.poster.capital[1].Equal(decimal.NewFromInt(-200000)))
	require.True(t, result.NegativeCapitalWarning)
	require.True(t, result.CapitalBalance.Equal(decimal.NewFromInt(-200000)))
}

func TestApproveTwiceDoesNotDoublePost(t *testing.T) {
	f := newFixture()
	f.poster.capital[1] = decimal.NewFromInt(1000000)
	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)

	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	require.NoError(t, err)
	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)

	require.Len(t, f.poster.entries, 1)
	require.True(t, f.poster.capital[1].Equal(decimal.NewFromInt(500000)))
	agg, err := f.service.Aggregate(context.Background(), "sport", 2024, 3)
	require.NoError(t, err)
	require.Equal(t, 1, agg.RequestCount)
}

func TestRejectLeavesLedgersUntouched(t *testing.T) {
	f := newFixture()
	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)

	rejected, err := f.service.Reject(context.Background(), created.ID, 9, "duplicate of REQ-112")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "duplicate of REQ-112", rejected.DecisionReason)

	require.Empty(t, f.poster.entries)
	require.Empty(t, f.poster.deductions)
	require.Empty(t, f.poster.capital)
	agg, err := f.service.Aggregate(context.Background(), "sport", 2024, 3)
	require.NoError(t, err)
	require.True(t, agg.TotalNominal.IsZero())
	require.Equal(t, 0, agg.RequestCount)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture()
	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)

	_, err = f.service.Reject(context.Background(), created.ID, 9, "   ")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "reason", validation.Field)

	stored, err := f.service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
}

func TestRejectAfterDecisionFails(t *testing.T) {
	f := newFixture()
	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)
	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	require.NoError(t, err)

	_, err = f.service.Reject(context.Background(), created.ID, 9, "changed my mind")
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	stored, err := f.service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, stored.Status)
}

func TestAggregateSumsPostedRequests(t *testing.T) {
	f := newFixture()
	f.poster.capital[1] = decimal.NewFromInt(2000000)

	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)
	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	require.NoError(t, err)

	_, posting, err := f.service.Create(context.Background(), salaryShortfallInput())
	require.NoError(t, err)
	require.NotNil(t, posting)

	agg, err := f.service.Aggregate(context.Background(), "sport", 2024, 3)
	require.NoError(t, err)
	require.True(t, agg.TotalNominal.Equal(decimal.NewFromInt(700000)), "total %s", agg.TotalNominal)
	require.True(t, agg.CapitalTotal.Equal(decimal.NewFromInt(500000)))
	require.True(t, agg.ProfitTotal.Equal(decimal.NewFromInt(700000)))
	require.True(t, agg.CashTotal.Equal(decimal.NewFromInt(500000)))
	require.Equal(t, 2, agg.RequestCount)
}

func TestPartialCapitalMagnitude(t *testing.T) {
	f := newFixture()
	f.poster.capital[2] = decimal.NewFromInt(1000000)
	in := globalOperationalInput()
	in.Category = "Shared Overhead Allocation"
	in.CompanyID = 2
	in.Nominal = decimal.NewFromInt(100000)
	created, _, err := f.service.Create(context.Background(), in)
	require.NoError(t, err)

	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	require.NoError(t, err)

	// Half the nominal burdens capital, the full nominal hits cash and profit.
	require.True(t, f.poster.capital[2].Equal(decimal.NewFromInt(950000)))
	agg, err := f.service.Aggregate(context.Background(), "sport", 2024, 3)
	require.NoError(t, err)
	require.True(t, agg.CapitalTotal.Equal(decimal.NewFromInt(50000)))
	require.True(t, agg.CashTotal.Equal(decimal.NewFromInt(100000)))
	require.True(t, agg.ProfitTotal.Equal(decimal.NewFromInt(100000)))
}

func TestApprovePostingFailureKeepsPending(t *testing.T) {
	f := newFixture()
	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)

	f.poster.failWith = &PostingError{RequestID: created.ID, Err: fmt.Errorf("connection reset")}
	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	var posting *PostingError
	require.ErrorAs(t, err, &posting)

	// The failed approval left the request open for a retry.
	f.poster.failWith = nil
	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	require.NoError(t, err)
}

func TestApproveConcurrencyConflictSurfaces(t *testing.T) {
	f := newFixture()
	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)

	f.poster.failWith = shared.ErrConcurrencyConflict
	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	require.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestApproveUnknownRequest(t *testing.T) {
	f := newFixture()
	_, _, err := f.service.Approve(context.Background(), uuid.New(), 9)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHistoryTracksWorkflow(t *testing.T) {
	f := newFixture()
	created, _, err := f.service.Create(context.Background(), globalOperationalInput())
	require.NoError(t, err)
	_, _, err = f.service.Approve(context.Background(), created.ID, 9)
	require.NoError(t, err)

	history, err := f.service.History(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, shared.ApprovalSubmit, history[0].Action)
	require.Equal(t, shared.ApprovalApprove, history[1].Action)
}
