package adjustment

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Magnitude selects how much of the nominal reaches the capital balance.
type Magnitude string

const (
	// MagnitudeFull applies the whole nominal to capital.
	MagnitudeFull Magnitude = "FULL"
	// MagnitudePartial applies PartialRatio of the nominal to capital.
	MagnitudePartial Magnitude = "PARTIAL"
)

// EffectProfile declares which stores a category touches when posted.
// Profiles are static configuration; the posting engine consults them and
// nothing else to decide its writes.
type EffectProfile struct {
	AffectsCashLedger bool
	AffectsCapital    bool
	AffectsProfit     bool
	CapitalMagnitude  Magnitude
	PartialRatio      decimal.Decimal
	AutoApprove       bool
}

// CapitalDelta returns the amount deducted from capital for a nominal.
// An unset ratio on a partial profile counts as 1 so a misconfigured
// category can never silently post zero.
func (p EffectProfile) CapitalDelta(nominal decimal.Decimal) decimal.Decimal {
	if !p.AffectsCapital {
		return decimal.Zero
	}
	if p.CapitalMagnitude == MagnitudePartial && p.PartialRatio.IsPositive() {
		return nominal.Mul(p.PartialRatio)
	}
	return nominal
}

// The category catalog. Categories are product configuration, not user
// data; unknown categories are rejected at request creation.
var catalog = map[string]EffectProfile{
	// Missed operational spend discovered after close. Hits everything:
	// the cash book, the company's capital, and the month's profit.
	"Global Operational": {
		AffectsCashLedger: true,
		AffectsCapital:    true,
		AffectsProfit:     true,
		CapitalMagnitude:  MagnitudeFull,
	},
	// Salary paid out of pocket against the month's profit. No cash book
	// entry and no capital movement; pre-vetted, so it auto-approves.
	"Salary Shortfall vs Profit": {
		AffectsProfit: true,
		AutoApprove:   true,
	},
	// Capital injection that never reached the books. Corrects cash and
	// capital without touching the profit figure.
	"Capital Shortfall": {
		AffectsCashLedger: true,
		AffectsCapital:    true,
		CapitalMagnitude:  MagnitudeFull,
	},
	// Overhead shared with the holding; only half the nominal burdens
	// this division's capital while cash and profit carry it in full.
	"Shared Overhead Allocation": {
		AffectsCashLedger: true,
		AffectsCapital:    true,
		AffectsProfit:     true,
		CapitalMagnitude:  MagnitudePartial,
		PartialRatio:      decimal.NewFromFloat(0.5),
	},
}

// EffectsFor resolves the effect profile of a category.
func EffectsFor(category string) (EffectProfile, error) {
	profile, ok := catalog[category]
	if !ok {
		return EffectProfile{}, &ValidationError{Field: "category", Reason: "unknown adjustment category"}
	}
	return profile, nil
}

// Categories returns the known category names for discovery endpoints.
func Categories() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
