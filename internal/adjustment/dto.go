package adjustment

import (
	"time"

	"github.com/garuda-dms/garuda-dms/internal/closure"
	"github.com/garuda-dms/garuda-dms/internal/shared"
)

type requestResponse struct {
	ID             string     `json:"id"`
	Division       string     `json:"division"`
	Month          string     `json:"month"`
	Category       string     `json:"category"`
	CompanyID      int64      `json:"company_id,omitempty"`
	Nominal        string     `json:"nominal"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	AutoApproved   bool       `json:"auto_approved"`
	RequestedBy    int64      `json:"requested_by"`
	DecidedBy      *int64     `json:"decided_by,omitempty"`
	DecisionReason string     `json:"decision_reason,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type approvalResponse struct {
	ActorID int64     `json:"actor_id"`
	Action  string    `json:"action"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

type aggregateResponse struct {
	Division     string    `json:"division"`
	Month        string    `json:"month"`
	TotalNominal string    `json:"total_nominal"`
	CapitalTotal string    `json:"capital_total"`
	ProfitTotal  string    `json:"profit_total"`
	CashTotal    string    `json:"cash_total"`
	RequestCount int       `json:"request_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type postingResponse struct {
	CashEntryID            int64  `json:"cash_entry_id,omitempty"`
	ProfitDeductionID      int64  `json:"profit_deduction_id,omitempty"`
	CapitalBalance         string `json:"capital_balance,omitempty"`
	NegativeCapitalWarning bool   `json:"negative_capital_warning"`
}

func toRequestResponse(req Request) requestResponse {
	return requestResponse{
		ID:             req.ID.String(),
		Division:       req.Division,
		Month:          closure.MonthKey(req.Year, req.Month),
		Category:       req.Category,
		CompanyID:      req.CompanyID,
		Nominal:        req.Nominal.String(),
		Description:    req.Description,
		Status:         string(req.Status),
		AutoApproved:   req.AutoApproved,
		RequestedBy:    req.RequestedBy,
		DecidedBy:      req.DecidedBy,
		DecisionReason: req.DecisionReason,
		DecidedAt:      req.DecidedAt,
		PostedAt:       req.PostedAt,
		CreatedAt:      req.CreatedAt,
	}
}

func toApprovalResponses(logs []shared.ApprovalLog) []approvalResponse {
	out := make([]approvalResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, approvalResponse{
			ActorID: l.ActorID,
			Action:  string(l.Action),
			Note:    l.Note,
			At:      l.At,
		})
	}
	return out
}

func toAggregateResponse(agg MonthlyAggregate) aggregateResponse {
	return aggregateResponse{
		Division:     agg.Division,
		Month:        closure.MonthKey(agg.Year, agg.Month),
		TotalNominal: agg.TotalNominal.String(),
		CapitalTotal: agg.CapitalTotal.String(),
		ProfitTotal:  agg.ProfitTotal.String(),
		CashTotal:    agg.CashTotal.String(),
		RequestCount: agg.RequestCount,
		UpdatedAt:    agg.UpdatedAt,
	}
}

func toPostingResponse(res PostingResult) postingResponse {
	out := postingResponse{
		CashEntryID:            res.CashEntryID,
		ProfitDeductionID:      res.ProfitDeductionID,
		NegativeCapitalWarning: res.NegativeCapitalWarning,
	}
	if !res.CapitalBalance.IsZero() || res.NegativeCapitalWarning {
		out.CapitalBalance = res.CapitalBalance.String()
	}
	return out
}
