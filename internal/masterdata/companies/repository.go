package companies

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garuda-dms/garuda-dms/internal/shared"
)

// Repository defines company persistence.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]Company, int, error)
	Get(ctx context.Context, id int64) (Company, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, in CreateInput) (Company, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Company, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, division, created_at, updated_at
FROM companies ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Division, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return companies, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, division, created_at, updated_at
FROM companies WHERE id=$1`, id).Scan(&c.ID, &c.Code, &c.Name, &c.Division, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, shared.ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

func (r *repository) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM companies WHERE id=$1`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts the company together with its opening capital row so the
// posting engine always finds a balance to mutate.
func (r *repository) Create(ctx context.Context, in CreateInput) (Company, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Company{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var c Company
	err = tx.QueryRow(ctx, `INSERT INTO companies (code, name, division, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id, code, name, division, created_at, updated_at`,
		in.Code, in.Name, in.Division).
		Scan(&c.ID, &c.Code, &c.Name, &c.Division, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Company{}, err
	}
	_, err = tx.Exec(ctx, `INSERT INTO company_capital (company_id, division, balance, updated_at)
VALUES ($1, $2, $3, NOW())`, c.ID, c.Division, in.OpeningCapital.String())
	if err != nil {
		return Company{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Company{}, err
	}
	return c, nil
}
