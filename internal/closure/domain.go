package closure

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClosedPeriod marks an accounting month whose books are closed for a
// division. Closed months are the only legal targets for retroactive
// adjustment; the month-close process is the sole writer.
type ClosedPeriod struct {
	ID       int64
	Division string
	Year     int
	Month    int
	ClosedBy int64
	ClosedAt time.Time
}

// MonthKey renders the period as the YYYY-MM string consumers rely on.
func (p ClosedPeriod) MonthKey() string {
	return MonthKey(p.Year, p.Month)
}

// MonthKey formats a (year, month) pair as YYYY-MM.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// SplitMonthKey parses a YYYY-MM string into year and month.
func SplitMonthKey(key string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(key), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("closure: invalid month %q", key)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 2000 || year > 2200 {
		return 0, 0, fmt.Errorf("closure: invalid year in %q", key)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("closure: invalid month in %q", key)
	}
	return year, month, nil
}

// MarkClosedInput bundles parameters for registering a closed month.
type MarkClosedInput struct {
	Division string
	Year     int
	Month    int
	ActorID  int64
}

// Validate ensures the input identifies exactly one period.
func (in MarkClosedInput) Validate() error {
	if strings.TrimSpace(in.Division) == "" {
		return errors.New("closure: division required")
	}
	if in.Year < 2000 || in.Year > 2200 {
		return errors.New("closure: year out of range")
	}
	if in.Month < 1 || in.Month > 12 {
		return errors.New("closure: month out of range")
	}
	if in.ActorID == 0 {
		return errors.New("closure: actor required")
	}
	return nil
}

// ErrAlreadyClosed indicates the (division, year, month) is closed already.
var ErrAlreadyClosed = errors.New("closure: period already closed for division")
