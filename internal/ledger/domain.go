package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashEntry is one debit/credit row in the cash ledger (pembukuan).
// Rows are append-only: corrections are new entries, never edits.
type CashEntry struct {
	ID          int64
	Date        time.Time
	Division    string
	CompanyID   int64
	Description string
	Debit       decimal.Decimal
	Kredit      decimal.Decimal
	RequestID   *uuid.UUID
	CreatedAt   time.Time
}

// CompanyCapital is the running capital (modal) balance of a company.
// Mutated exclusively through signed deltas; negative balances are legal
// and reported as a warning, never rejected.
type CompanyCapital struct {
	CompanyID int64
	Division  string
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// NegativeBalance flags the warning condition consumers must surface.
func (c CompanyCapital) NegativeBalance() bool {
	return c.Balance.IsNegative()
}

// ProfitDeduction records a posted profit-only correction. The monthly
// profit figure is derived, so the engine never writes profit directly;
// it only appends deductions.
type ProfitDeduction struct {
	ID          int64
	Division    string
	Year        int
	Month       int
	Category    string
	Description string
	Amount      decimal.Decimal
	RequestID   uuid.UUID
	CreatedAt   time.Time
}

// MonthlyProfit is the derived per-(month, division) profit view:
// completed sales minus operational costs minus posted deductions.
type MonthlyProfit struct {
	Division         string
	Year             int
	Month            int
	SalesTotal       decimal.Decimal
	OperationalCosts decimal.Decimal
	Deductions       decimal.Decimal
	Net              decimal.Decimal
}
