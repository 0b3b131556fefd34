// Package adjustment implements the retroactive ledger adjustment workflow:
// request intake, approval, and atomic posting against the capital, cash and
// profit stores for months that have already been closed.
package adjustment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an adjustment request.
type Status string

const (
	// StatusPending means the request awaits a decision.
	StatusPending Status = "PENDING"
	// StatusApproved means the request was approved and its effects posted.
	StatusApproved Status = "APPROVED"
	// StatusRejected means the request was declined; it has no ledger effects.
	StatusRejected Status = "REJECTED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Request is one retroactive adjustment request. Approved and rejected
// requests are immutable; corrections require a new request.
type Request struct {
	ID             uuid.UUID       `json:"id"`
	Division       string          `json:"division"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	Category       string          `json:"category"`
	CompanyID      int64           `json:"company_id,omitempty"`
	Nominal        decimal.Decimal `json:"nominal"`
	Description    string          `json:"description"`
	Status         Status          `json:"status"`
	AutoApproved   bool            `json:"auto_approved"`
	RequestedBy    int64           `json:"requested_by"`
	DecidedBy      *int64          `json:"decided_by,omitempty"`
	DecisionReason string          `json:"decision_reason,omitempty"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
	PostedAt       *time.Time      `json:"posted_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// MonthlyAggregate accumulates posted adjustments per division month. It is
// maintained incrementally inside the posting transaction so it never drifts
// from the underlying requests except through operator intervention.
type MonthlyAggregate struct {
	Division     string          `json:"division"`
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	TotalNominal decimal.Decimal `json:"total_nominal"`
	CapitalTotal decimal.Decimal `json:"capital_total"`
	ProfitTotal  decimal.Decimal `json:"profit_total"`
	CashTotal    decimal.Decimal `json:"cash_total"`
	RequestCount int             `json:"request_count"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PostingResult reports what one posting wrote. A negative capital warning
// is informational: the posting committed.
type PostingResult struct {
	CashEntryID            int64           `json:"cash_entry_id,omitempty"`
	ProfitDeductionID      int64           `json:"profit_deduction_id,omitempty"`
	CapitalBalance         decimal.Decimal `json:"capital_balance"`
	NegativeCapitalWarning bool            `json:"negative_capital_warning"`
}

// ValidationError rejects malformed input before any state changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PostingError wraps an infrastructure failure during posting. The
// transaction rolled back, so the request stays pending and the approval
// can be retried safely.
type PostingError struct {
	RequestID uuid.UUID
	Err       error
}

func (e *PostingError) Error() string {
	return fmt.Sprintf("posting request %s failed: %v", e.RequestID, e.Err)
}

func (e *PostingError) Unwrap() error { return e.Err }

// ListFilter narrows request listings.
type ListFilter struct {
	Division string
	Year     int
	Month    int
	Status   Status
	Limit    int
	Offset   int
}
