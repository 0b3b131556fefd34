package adjustment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/garuda-dms/garuda-dms/internal/shared"
)

// Repository persists adjustment requests and their monthly aggregates.
type Repository interface {
	Create(ctx context.Context, req Request) error
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	List(ctx context.Context, f ListFilter) ([]Request, int, error)
	MarkRejected(ctx context.Context, id uuid.UUID, actorID int64, reason string) (bool, error)
	GetAggregate(ctx context.Context, division string, year, month int) (MonthlyAggregate, error)
	ListAggregates(ctx context.Context, division string, limit, offset int) ([]MonthlyAggregate, error)
	ReplaceAggregate(ctx context.Context, agg MonthlyAggregate) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const requestColumns = `id, division, year, month, category, company_id, nominal::text, description,
status, auto_approved, requested_by, decided_by, decision_reason, decided_at, posted_at, created_at, updated_at`

func (r *pgRepository) Create(ctx context.Context, req Request) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO adjustment_requests
(id, division, year, month, category, company_id, nominal, description, status, auto_approved, requested_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		req.ID, req.Division, req.Year, req.Month, req.Category, nullableCompany(req.CompanyID),
		req.Nominal.String(), req.Description, string(req.Status), req.AutoApproved, req.RequestedBy)
	return err
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM adjustment_requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, shared.ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

func (r *pgRepository) List(ctx context.Context, f ListFilter) ([]Request, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Division != "" {
		args = append(args, f.Division)
		where = append(where, "division=$"+strconv.Itoa(len(args)))
	}
	if f.Year != 0 {
		args = append(args, f.Year)
		where = append(where, "year=$"+strconv.Itoa(len(args)))
	}
	if f.Month != 0 {
		args = append(args, f.Month)
		where = append(where, "month=$"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status=$"+strconv.Itoa(len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM adjustment_requests WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	limitPos := len(args)
	args = append(args, f.Offset)
	offsetPos := len(args)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM adjustment_requests WHERE %s
ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, requestColumns, cond, limitPos, offsetPos), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// MarkRejected flips a pending request to rejected. The status guard makes
// concurrent decisions race-free: exactly one wins, the rest see false.
func (r *pgRepository) MarkRejected(ctx context.Context, id uuid.UUID, actorID int64, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE adjustment_requests
SET status=$2, decided_by=$3, decision_reason=$4, decided_at=NOW(), updated_at=NOW()
WHERE id=$1 AND status=$5`, id, string(StatusRejected), actorID, reason, string(StatusPending))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// claimApproval flips a pending request to approved inside the posting
// transaction. Same guard as MarkRejected; a retry of an already posted
// request claims zero rows and posts nothing.
func claimApproval(ctx context.Context, tx pgx.Tx, id uuid.UUID, actorID int64) (bool, error) {
	tag, err := tx.Exec(ctx, `UPDATE adjustment_requests
SET status=$2, decided_by=$3, decided_at=NOW(), posted_at=NOW(), updated_at=NOW()
WHERE id=$1 AND status=$4`, id, string(StatusApproved), actorID, string(StatusPending))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// aggregateDelta is one posting's additive contribution to the monthly
// aggregate.
type aggregateDelta struct {
	Division     string
	Year         int
	Month        int
	Nominal      decimal.Decimal
	CapitalTotal decimal.Decimal
	ProfitTotal  decimal.Decimal
	CashTotal    decimal.Decimal
}

func applyAggregate(ctx context.Context, tx pgx.Tx, d aggregateDelta) error {
	_, err := tx.Exec(ctx, `INSERT INTO monthly_adjustment_aggregates
(division, year, month, total_nominal, capital_total, profit_total, cash_total, request_count, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1, NOW())
ON CONFLICT (division, year, month) DO UPDATE SET
total_nominal = monthly_adjustment_aggregates.total_nominal + EXCLUDED.total_nominal,
capital_total = monthly_adjustment_aggregates.capital_total + EXCLUDED.capital_total,
profit_total = monthly_adjustment_aggregates.profit_total + EXCLUDED.profit_total,
cash_total = monthly_adjustment_aggregates.cash_total + EXCLUDED.cash_total,
request_count = monthly_adjustment_aggregates.request_count + 1,
updated_at = NOW()`,
		d.Division, d.Year, d.Month, d.Nominal.String(), d.CapitalTotal.String(), d.ProfitTotal.String(), d.CashTotal.String())
	return err
}

const aggregateColumns = `division, year, month, total_nominal::text, capital_total::text, profit_total::text, cash_total::text, request_count, updated_at`

func (r *pgRepository) GetAggregate(ctx context.Context, division string, year, month int) (MonthlyAggregate, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+aggregateColumns+`
FROM monthly_adjustment_aggregates WHERE division=$1 AND year=$2 AND month=$3`, division, year, month)
	agg, err := scanAggregate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MonthlyAggregate{
				Division: division, Year: year, Month: month,
				TotalNominal: decimal.Zero, CapitalTotal: decimal.Zero,
				ProfitTotal: decimal.Zero, CashTotal: decimal.Zero,
			}, nil
		}
		return MonthlyAggregate{}, err
	}
	return agg, nil
}

func (r *pgRepository) ListAggregates(ctx context.Context, division string, limit, offset int) ([]MonthlyAggregate, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+aggregateColumns+`
FROM monthly_adjustment_aggregates WHERE division=$1
ORDER BY year DESC, month DESC LIMIT $2 OFFSET $3`, division, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthlyAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceAggregate overwrites one aggregate row with recomputed totals.
// Only the reconciliation job uses it.
func (r *pgRepository) ReplaceAggregate(ctx context.Context, agg MonthlyAggregate) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO monthly_adjustment_aggregates
(division, year, month, total_nominal, capital_total, profit_total, cash_total, request_count, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (division, year, month) DO UPDATE SET
total_nominal = EXCLUDED.total_nominal,
capital_total = EXCLUDED.capital_total,
profit_total = EXCLUDED.profit_total,
cash_total = EXCLUDED.cash_total,
request_count = EXCLUDED.request_count,
updated_at = NOW()`,
		agg.Division, agg.Year, agg.Month, agg.TotalNominal.String(), agg.CapitalTotal.String(),
		agg.ProfitTotal.String(), agg.CashTotal.String(), agg.RequestCount)
	return err
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var nominal, status string
	var companyID *int64
	var decisionReason *string
	if err := row.Scan(&req.ID, &req.Division, &req.Year, &req.Month, &req.Category, &companyID,
		&nominal, &req.Description, &status, &req.AutoApproved, &req.RequestedBy,
		&req.DecidedBy, &decisionReason, &req.DecidedAt, &req.PostedAt, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	if companyID != nil {
		req.CompanyID = *companyID
	}
	if decisionReason != nil {
		req.DecisionReason = *decisionReason
	}
	req.Status = Status(status)
	var err error
	if req.Nominal, err = decimal.NewFromString(nominal); err != nil {
		return Request{}, fmt.Errorf("adjustment: bad nominal %q: %w", nominal, err)
	}
	return req, nil
}

func scanAggregate(row pgx.Row) (MonthlyAggregate, error) {
	var agg MonthlyAggregate
	var total, capital, profit, cash string
	if err := row.Scan(&agg.Division, &agg.Year, &agg.Month, &total, &capital, &profit, &cash,
		&agg.RequestCount, &agg.UpdatedAt); err != nil {
		return MonthlyAggregate{}, err
	}
	var err error
	if agg.TotalNominal, err = decimal.NewFromString(total); err != nil {
		return MonthlyAggregate{}, fmt.Errorf("adjustment: bad total %q: %w", total, err)
	}
	if agg.CapitalTotal, err = decimal.NewFromString(capital); err != nil {
		return MonthlyAggregate{}, fmt.Errorf("adjustment: bad capital total %q: %w", capital, err)
	}
	if agg.ProfitTotal, err = decimal.NewFromString(profit); err != nil {
		return MonthlyAggregate{}, fmt.Errorf("adjustment: bad profit total %q: %w", profit, err)
	}
	if agg.CashTotal, err = decimal.NewFromString(cash); err != nil {
		return MonthlyAggregate{}, fmt.Errorf("adjustment: bad cash total %q: %w", cash, err)
	}
	return agg, nil
}

func nullableCompany(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
