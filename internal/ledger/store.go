package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/garuda-dms/garuda-dms/internal/shared"
)

// Store provides read access to the derived ledger views. Reporting pages
// are pure consumers; all writes go through TxStore inside the posting
// transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListCashEntries returns cash ledger rows for a division and month.
func (s *Store) ListCashEntries(ctx context.Context, division string, year, month int) ([]CashEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, date, division, company_id, description, debit::text, kredit::text, request_id, created_at
FROM cash_ledger_entries
WHERE division=$1 AND date >= make_date($2, $3, 1) AND date < make_date($2, $3, 1) + INTERVAL '1 month'
ORDER BY date, id`, division, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []CashEntry
	for rows.Next() {
		var e CashEntry
		var debit, kredit string
		if err := rows.Scan(&e.ID, &e.Date, &e.Division, &e.CompanyID, &e.Description, &debit, &kredit, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("ledger: bad debit %q: %w", debit, err)
		}
		if e.Kredit, err = decimal.NewFromString(kredit); err != nil {
			return nil, fmt.Errorf("ledger: bad kredit %q: %w", kredit, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetCompanyCapital returns the capital balance for one company.
func (s *Store) GetCompanyCapital(ctx context.Context, companyID int64) (CompanyCapital, error) {
	var c CompanyCapital
	var balance string
	err := s.pool.QueryRow(ctx, `SELECT company_id, division, balance::text, updated_at
FROM company_capital WHERE company_id=$1`, companyID).
		Scan(&c.CompanyID, &c.Division, &balance, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompanyCapital{}, shared.ErrNotFound
		}
		return CompanyCapital{}, err
	}
	if c.Balance, err = decimal.NewFromString(balance); err != nil {
		return CompanyCapital{}, fmt.Errorf("ledger: bad balance %q: %w", balance, err)
	}
	return c, nil
}

// ListCapitalBalances returns all capital balances for a division.
func (s *Store) ListCapitalBalances(ctx context.Context, division string) ([]CompanyCapital, error) {
	rows, err := s.pool.Query(ctx, `SELECT company_id, division, balance::text, updated_at
FROM company_capital WHERE division=$1 ORDER BY company_id`, division)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []CompanyCapital
	for rows.Next() {
		var c CompanyCapital
		var balance string
		if err := rows.Scan(&c.CompanyID, &c.Division, &balance, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if c.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("ledger: bad balance %q: %w", balance, err)
		}
		balances = append(balances, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return balances, nil
}

// MonthlyProfit computes the derived profit figure for a division month.
func (s *Store) MonthlyProfit(ctx context.Context, division string, year, month int) (MonthlyProfit, error) {
	p := MonthlyProfit{Division: division, Year: year, Month: month}
	var sales, costs string
	err := s.pool.QueryRow(ctx, `SELECT sales_total::text, operational_costs::text
FROM monthly_profit WHERE division=$1 AND year=$2 AND month=$3`, division, year, month).Scan(&sales, &costs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			sales, costs = "0", "0"
		} else {
			return MonthlyProfit{}, err
		}
	}
	if p.SalesTotal, err = decimal.NewFromString(sales); err != nil {
		return MonthlyProfit{}, fmt.Errorf("ledger: bad sales total %q: %w", sales, err)
	}
	if p.OperationalCosts, err = decimal.NewFromString(costs); err != nil {
		return MonthlyProfit{}, fmt.Errorf("ledger: bad operational costs %q: %w", costs, err)
	}
	var deductions string
	err = s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text
FROM profit_deductions WHERE division=$1 AND year=$2 AND month=$3`, division, year, month).Scan(&deductions)
	if err != nil {
		return MonthlyProfit{}, err
	}
	if p.Deductions, err = decimal.NewFromString(deductions); err != nil {
		return MonthlyProfit{}, fmt.Errorf("ledger: bad deductions %q: %w", deductions, err)
	}
	p.Net = p.SalesTotal.Sub(p.OperationalCosts).Sub(p.Deductions)
	return p, nil
}

// TxStore exposes the ledger write primitives used by the posting engine.
// All methods run on the caller's transaction so a posting either applies
// to every store or to none.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps a transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// AppendCashEntry inserts one cash ledger row. Entries are never updated
// or deleted by this engine.
func (s *TxStore) AppendCashEntry(ctx context.Context, e CashEntry) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO cash_ledger_entries (date, division, company_id, description, debit, kredit, request_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		e.Date, e.Division, e.CompanyID, e.Description, e.Debit.String(), e.Kredit.String(), e.RequestID).Scan(&id)
	return id, err
}

// AdjustCapital applies a signed delta to a company balance as an atomic
// in-database increment, returning the new balance. The balance is never
// clamped; a negative result is the caller's warning to surface.
func (s *TxStore) AdjustCapital(ctx context.Context, companyID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance string
	err := s.tx.QueryRow(ctx, `UPDATE company_capital SET balance = balance + $2, updated_at = NOW()
WHERE company_id=$1 RETURNING balance::text`, companyID, delta.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.ErrNotFound
		}
		return decimal.Zero, err
	}
	out, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: bad balance %q: %w", balance, err)
	}
	return out, nil
}

// DeductProfit appends a profit deduction for the target month.
func (s *TxStore) DeductProfit(ctx context.Context, d ProfitDeduction) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO profit_deductions (division, year, month, category, description, amount, request_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		d.Division, d.Year, d.Month, d.Category, d.Description, d.Amount.String(), d.RequestID).Scan(&id)
	return id, err
}

// EntryDateFor returns the first day of the target month. Retroactive
// postings are dated at the target month so period reports reconcile,
// while created_at keeps the audit trail of when the correction landed.
func EntryDateFor(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}
