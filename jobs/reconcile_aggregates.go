package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/garuda-dms/garuda-dms/internal/adjustment"
	"github.com/garuda-dms/garuda-dms/internal/closure"
	jobmetrics "github.com/garuda-dms/garuda-dms/internal/jobs"
)

// AdjustmentSource provides the reads and the repair write the
// reconciliation needs. adjustment.Repository satisfies it.
type AdjustmentSource interface {
	List(ctx context.Context, f adjustment.ListFilter) ([]adjustment.Request, int, error)
	GetAggregate(ctx context.Context, division string, year, month int) (adjustment.MonthlyAggregate, error)
	ReplaceAggregate(ctx context.Context, agg adjustment.MonthlyAggregate) error
}

// ReconcileAggregatesJob rebuilds monthly aggregates from approved requests.
// The aggregates are maintained inside the posting transaction, so drift
// here means operator surgery or a bug; the job repairs the row and flags it.
type ReconcileAggregatesJob struct {
	Source  AdjustmentSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReconcileAggregatesJob constructs the job handler.
func NewReconcileAggregatesJob(source AdjustmentSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileAggregatesJob {
	return &ReconcileAggregatesJob{
		Source:  source,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one reconciliation run.
func (j *ReconcileAggregatesJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("reconcile aggregates: dependencies not configured")
	}
	var payload ReconcileAggregatesPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	filter := adjustment.ListFilter{
		Division: payload.Division,
		Status:   adjustment.StatusApproved,
		Limit:    200,
	}
	if payload.Month != "" {
		year, month, err := closure.SplitMonthKey(payload.Month)
		if err != nil {
			return asynq.SkipRetry
		}
		filter.Year, filter.Month = year, month
	}

	tracker := j.metrics().Track(TaskReconcileAggregates)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	expected, err := j.collect(ctx, filter)
	if err != nil {
		resultErr = err
		j.log().Error("collect approved requests", slog.Any("error", err))
		return resultErr
	}

	repaired := 0
	for _, want := range expected {
		got, err := j.Source.GetAggregate(ctx, want.Division, want.Year, want.Month)
		if err != nil {
			resultErr = err
			j.log().Error("load aggregate", slog.String("division", want.Division), slog.Any("error", err))
			return resultErr
		}
		if aggregatesMatch(got, want) {
			continue
		}
		j.metrics().AddDrift(want.Division, want.Year, want.Month, 1)
		j.log().Warn("aggregate drift detected",
			slog.String("division", want.Division),
			slog.String("period", closure.MonthKey(want.Year, want.Month)),
			slog.String("stored_total", got.TotalNominal.String()),
			slog.String("expected_total", want.TotalNominal.String()))
		if err := j.Source.ReplaceAggregate(ctx, want); err != nil {
			resultErr = err
			j.log().Error("repair aggregate", slog.String("division", want.Division), slog.Any("error", err))
			return resultErr
		}
		repaired++
	}

	j.log().Info("reconciled adjustment aggregates",
		slog.Int("months", len(expected)),
		slog.Int("repaired", repaired),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

// collect rebuilds the expected aggregate per division month by replaying
// every approved request through its category's effect profile.
func (j *ReconcileAggregatesJob) collect(ctx context.Context, filter adjustment.ListFilter) ([]adjustment.MonthlyAggregate, error) {
	byKey := map[string]*adjustment.MonthlyAggregate{}
	var order []string
	offset := 0
	for {
		filter.Offset = offset
		batch, total, err := j.Source.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, req := range batch {
			profile, err := adjustment.EffectsFor(req.Category)
			if err != nil {
				// A retired category still counts toward the totals it
				// posted; skip recomputation for it and flag loudly.
				j.log().Error("unknown category in posted request",
					slog.String("request_id", req.ID.String()),
					slog.String("category", req.Category))
				continue
			}
			key := req.Division + closure.MonthKey(req.Year, req.Month)
			agg, ok := byKey[key]
			if !ok {
				agg = &adjustment.MonthlyAggregate{
					Division: req.Division, Year: req.Year, Month: req.Month,
					TotalNominal: decimal.Zero, CapitalTotal: decimal.Zero,
					ProfitTotal: decimal.Zero, CashTotal: decimal.Zero,
				}
				byKey[key] = agg
				order = append(order, key)
			}
			agg.TotalNominal = agg.TotalNominal.Add(req.Nominal)
			if profile.AffectsCapital {
				agg.CapitalTotal = agg.CapitalTotal.Add(profile.CapitalDelta(req.Nominal))
			}
			if profile.AffectsProfit {
				agg.ProfitTotal = agg.ProfitTotal.Add(req.Nominal)
			}
			if profile.AffectsCashLedger {
				agg.CashTotal = agg.CashTotal.Add(req.Nominal)
			}
			agg.RequestCount++
		}
		offset += len(batch)
		if offset >= total || len(batch) == 0 {
			break
		}
	}
	out := make([]adjustment.MonthlyAggregate, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}

func aggregatesMatch(a, b adjustment.MonthlyAggregate) bool {
	return a.RequestCount == b.RequestCount &&
		a.TotalNominal.Equal(b.TotalNominal) &&
		a.CapitalTotal.Equal(b.CapitalTotal) &&
		a.ProfitTotal.Equal(b.ProfitTotal) &&
		a.CashTotal.Equal(b.CashTotal)
}

func (j *ReconcileAggregatesJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReconcileAggregatesJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReconcileAggregates))
	}
	return slog.Default().With(slog.String("job", TaskReconcileAggregates))
}

func (j *ReconcileAggregatesJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *ReconcileAggregatesJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
