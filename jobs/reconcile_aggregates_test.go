package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garuda-dms/garuda-dms/internal/adjustment"
	jobmetrics "github.com/garuda-dms/garuda-dms/internal/jobs"
)

type fakeSource struct {
	requests   []adjustment.Request
	aggregates map[string]adjustment.MonthlyAggregate
	replaced   []adjustment.MonthlyAggregate
}

func sourceKey(division string, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", division, year, month)
}

func (s *fakeSource) List(_ context.Context, f adjustment.ListFilter) ([]adjustment.Request, int, error) {
	var out []adjustment.Request
	for _, req := range s.requests {
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		if f.Division != "" && req.Division != f.Division {
			continue
		}
		out = append(out, req)
	}
	return out, len(out), nil
}

func (s *fakeSource) GetAggregate(_ context.Context, division string, year, month int) (adjustment.MonthlyAggregate, error) {
	agg, ok := s.aggregates[sourceKey(division, year, month)]
	if !ok {
		return adjustment.MonthlyAggregate{
			Division: division, Year: year, Month: month,
			TotalNominal: decimal.Zero, CapitalTotal: decimal.Zero,
			ProfitTotal: decimal.Zero, CashTotal: decimal.Zero,
		}, nil
	}
	return agg, nil
}

func (s *fakeSource) ReplaceAggregate(_ context.Context, agg adjustment.MonthlyAggregate) error {
	s.aggregates[sourceKey(agg.Division, agg.Year, agg.Month)] = agg
	s.replaced = append(s.replaced, agg)
	return nil
}

func approvedRequest(division, category string, nominal int64) adjustment.Request {
	return adjustment.Request{
		ID:       uuid.New(),
		Division: division,
		Year:     2024,
		Month:    3,
		Category: category,
		Nominal:  decimal.NewFromInt(nominal),
		Status:   adjustment.StatusApproved,
	}
}

func newReconcileJob(source *fakeSource) *ReconcileAggregatesJob {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	return NewReconcileAggregatesJob(source, logger, metrics)
}

func TestReconcileRepairsDriftedAggregate(t *testing.T) {
	source := &fakeSource{
		requests: []adjustment.Request{
			approvedRequest("sport", "Global Operational", 500000),
			approvedRequest("sport", "Salary Shortfall vs Profit", 200000),
		},
		aggregates: map[string]adjustment.MonthlyAggregate{
			// Someone hand-edited the row; the total no longer matches.
			sourceKey("sport", 2024, 3): {
				Division: "sport", Year: 2024, Month: 3,
				TotalNominal: decimal.NewFromInt(999999),
				CapitalTotal: decimal.NewFromInt(500000),
				ProfitTotal:  decimal.NewFromInt(700000),
				CashTotal:    decimal.NewFromInt(500000),
				RequestCount: 2,
			},
		},
	}
	job := newReconcileJob(source)

	task, err := NewReconcileAggregatesTask("", "")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, source.replaced, 1)
	repaired := source.aggregates[sourceKey("sport", 2024, 3)]
	require.True(t, repaired.TotalNominal.Equal(decimal.NewFromInt(700000)))
	require.True(t, repaired.CapitalTotal.Equal(decimal.NewFromInt(500000)))
	require.True(t, repaired.ProfitTotal.Equal(decimal.NewFromInt(700000)))
	require.True(t, repaired.CashTotal.Equal(decimal.NewFromInt(500000)))
	require.Equal(t, 2, repaired.RequestCount)
}

func TestReconcileLeavesConsistentAggregateAlone(t *testing.T) {
	source := &fakeSource{
		requests: []adjustment.Request{
			approvedRequest("sport", "Global Operational", 500000),
		},
		aggregates: map[string]adjustment.MonthlyAggregate{
			sourceKey("sport", 2024, 3): {
				Division: "sport", Year: 2024, Month: 3,
				TotalNominal: decimal.NewFromInt(500000),
				CapitalTotal: decimal.NewFromInt(500000),
				ProfitTotal:  decimal.NewFromInt(500000),
				CashTotal:    decimal.NewFromInt(500000),
				RequestCount: 1,
			},
		},
	}
	job := newReconcileJob(source)

	task, err := NewReconcileAggregatesTask("sport", "2024-03")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, source.replaced)
}

func TestReconcileSkipsUnknownCategory(t *testing.T) {
	source := &fakeSource{
		requests: []adjustment.Request{
			approvedRequest("sport", "Retired Category", 100000),
		},
		aggregates: map[string]adjustment.MonthlyAggregate{},
	}
	job := newReconcileJob(source)

	task, err := NewReconcileAggregatesTask("", "")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, source.replaced)
}
