package adjustment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/garuda-dms/garuda-dms/internal/ledger"
	"github.com/garuda-dms/garuda-dms/internal/observability"
	"github.com/garuda-dms/garuda-dms/internal/platform/db"
	"github.com/garuda-dms/garuda-dms/internal/shared"
)

const postingRetries = 3

// Poster applies an approved request's effects. The concrete engine writes
// the ledgers; the service only knows this seam.
type Poster interface {
	Post(ctx context.Context, req Request, profile EffectProfile, actorID int64) (PostingResult, error)
}

// Engine posts adjustments. Every posting runs in one transaction holding
// an advisory lock for the division month, so postings into the same month
// serialise and either all stores change or none do.
type Engine struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine constructs the posting engine. metrics may be nil.
func NewEngine(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{pool: pool, logger: logger, metrics: metrics}
}

// Post claims the pending request and applies its effects. Claiming and
// posting share the transaction: a request observed approved always has its
// effects, and a retried approval of a posted request changes nothing.
func (e *Engine) Post(ctx context.Context, req Request, profile EffectProfile, actorID int64) (PostingResult, error) {
	var result PostingResult
	var lastErr error
	for attempt := 0; attempt < postingRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return PostingResult{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
		result = PostingResult{}
		err := db.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
			return e.postTx(ctx, tx, req, profile, actorID, &result)
		})
		if err == nil {
			e.metrics.CountPosting(req.Division, "posted")
			return result, nil
		}
		if isDomainErr(err) {
			return PostingResult{}, err
		}
		if !db.IsSerializationFailure(err) {
			e.metrics.CountPosting(req.Division, "failed")
			return PostingResult{}, &PostingError{RequestID: req.ID, Err: err}
		}
		lastErr = err
		e.logger.Warn("posting serialization conflict, retrying",
			slog.String("request_id", req.ID.String()),
			slog.Int("attempt", attempt+1))
	}
	e.logger.Error("posting retries exhausted",
		slog.String("request_id", req.ID.String()),
		slog.Any("error", lastErr))
	e.metrics.CountPosting(req.Division, "conflict")
	return PostingResult{}, shared.ErrConcurrencyConflict
}

func (e *Engine) postTx(ctx context.Context, tx pgx.Tx, req Request, profile EffectProfile, actorID int64, result *PostingResult) error {
	if err := db.AcquireTxLock(ctx, tx, shared.PostingLockKey(req.Division, req.Year, req.Month)); err != nil {
		return err
	}

	claimed, err := claimApproval(ctx, tx, req.ID, actorID)
	if err != nil {
		return err
	}
	if !claimed {
		return shared.ErrInvalidStateTransition
	}

	store := ledger.NewTxStore(tx)
	capitalDelta := profile.CapitalDelta(req.Nominal)

	if profile.AffectsCashLedger {
		id, err := store.AppendCashEntry(ctx, ledger.CashEntry{
			Date:        ledger.EntryDateFor(req.Year, req.Month),
			Division:    req.Division,
			CompanyID:   req.CompanyID,
			Description: fmt.Sprintf("[%s] %s", req.Category, req.Description),
			Debit:       req.Nominal,
			Kredit:      decimal.Zero,
			RequestID:   &req.ID,
		})
		if err != nil {
			return fmt.Errorf("append cash entry: %w", err)
		}
		result.CashEntryID = id
	}

	if profile.AffectsCapital {
		balance, err := store.AdjustCapital(ctx, req.CompanyID, capitalDelta.Neg())
		if err != nil {
			return fmt.Errorf("adjust capital: %w", err)
		}
		result.CapitalBalance = balance
		result.NegativeCapitalWarning = balance.IsNegative()
	}

	if profile.AffectsProfit {
		id, err := store.DeductProfit(ctx, ledger.ProfitDeduction{
			Division:    req.Division,
			Year:        req.Year,
			Month:       req.Month,
			Category:    req.Category,
			Description: req.Description,
			Amount:      req.Nominal,
			RequestID:   req.ID,
		})
		if err != nil {
			return fmt.Errorf("deduct profit: %w", err)
		}
		result.ProfitDeductionID = id
	}

	delta := aggregateDelta{
		Division: req.Division,
		Year:     req.Year,
		Month:    req.Month,
		Nominal:  req.Nominal,
	}
	if profile.AffectsCapital {
		delta.CapitalTotal = capitalDelta
	}
	if profile.AffectsProfit {
		delta.ProfitTotal = req.Nominal
	}
	if profile.AffectsCashLedger {
		delta.CashTotal = req.Nominal
	}
	if err := applyAggregate(ctx, tx, delta); err != nil {
		return fmt.Errorf("apply aggregate: %w", err)
	}
	return nil
}

func isDomainErr(err error) bool {
	return errors.Is(err, shared.ErrInvalidStateTransition) || errors.Is(err, shared.ErrNotFound)
}
