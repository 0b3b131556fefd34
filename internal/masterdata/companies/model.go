package companies

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company represents a financing entity whose capital the engine tracks.
type Company struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Division  string    `json:"division"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries fields for registering a company. OpeningCapital seeds
// the company_capital row the posting engine later mutates.
type CreateInput struct {
	Code           string
	Name           string
	Division       string
	OpeningCapital decimal.Decimal
}
