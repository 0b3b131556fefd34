package closure

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garuda-dms/garuda-dms/internal/platform/db"
)

// Repository defines closed-period persistence.
type Repository interface {
	Exists(ctx context.Context, division string, year, month int) (bool, error)
	Insert(ctx context.Context, in MarkClosedInput) (ClosedPeriod, error)
	ListByDivision(ctx context.Context, division string, limit, offset int) ([]ClosedPeriod, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) Exists(ctx context.Context, division string, year, month int) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM closed_periods WHERE division=$1 AND year=$2 AND month=$3`, division, year, month).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *pgRepository) Insert(ctx context.Context, in MarkClosedInput) (ClosedPeriod, error) {
	var period ClosedPeriod
	err := r.pool.QueryRow(ctx, `INSERT INTO closed_periods (division, year, month, closed_by, closed_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING id, division, year, month, closed_by, closed_at`,
		in.Division, in.Year, in.Month, in.ActorID).
		Scan(&period.ID, &period.Division, &period.Year, &period.Month, &period.ClosedBy, &period.ClosedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ClosedPeriod{}, ErrAlreadyClosed
		}
		return ClosedPeriod{}, err
	}
	return period, nil
}

func (r *pgRepository) ListByDivision(ctx context.Context, division string, limit, offset int) ([]ClosedPeriod, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, division, year, month, closed_by, closed_at
FROM closed_periods WHERE division=$1 ORDER BY year DESC, month DESC LIMIT $2 OFFSET $3`, division, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []ClosedPeriod
	for rows.Next() {
		var p ClosedPeriod
		if err := rows.Scan(&p.ID, &p.Division, &p.Year, &p.Month, &p.ClosedBy, &p.ClosedAt); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return periods, nil
}
