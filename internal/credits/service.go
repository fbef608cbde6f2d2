package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCreditPrice         int64 = 2
	DefaultInitialGrant        int64 = 50
	DefaultHistoryLimit              = 50
	DefaultOfficerHistoryLimit       = 20
	MaxPageLimit                     = 500

	defaultDeductMode    = "Manual Adjustment"
	defaultDeductRemarks = "Manual credit deduction"
)

var mobilePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Observer receives ledger telemetry. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	ObserveCredits(action Action, credits int64)
	ObserveDrift(officerID string, drift int64)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, error, time.Duration) {}
func (nopObserver) ObserveCredits(Action, int64)                  {}
func (nopObserver) ObserveDrift(string, int64)                    {}

// Service owns the credit ledger.
//
// Ledger invariants:
// - No balance change without a ledger entry, and no entry without its balance change
// - Entries are append-only (immutable)
// - Each mutation locks the officer, validates, inserts, then writes the balance,
//   all inside one Store unit of work
//
// Balance strategy:
// - credits_remaining is a projection updated atomically alongside ledger inserts;
//   Reconcile recomputes it from the ledger.
type Service struct {
	store Store
	log   *slog.Logger
	obs   Observer
	// clock is injectable for deterministic tests.
	clock          func() time.Time
	newID          func() string
	pricePerCredit int64
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.obs = o
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithCreditPrice sets the revenue estimate per consumed credit.
func WithCreditPrice(minor int64) Option {
	return func(s *Service) {
		if minor >= 0 {
			s.pricePerCredit = minor
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		log:            slog.Default(),
		obs:            nopObserver{},
		clock:          time.Now,
		newID:          newEntryID,
		pricePerCredit: DefaultCreditPrice,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newEntryID returns a time-ordered UUID so that the id tie-break in history
// listings follows insertion order within a process.
func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Grant adds credits with a Renewal, Top-up or Refund entry.
// Renewal and Top-up also raise the officer's lifetime total.
func (s *Service) Grant(ctx context.Context, officerID string, action Action, amount int64, meta Metadata) (Result, error) {
	if officerID == "" {
		return Result{}, invalid("officer_id is required")
	}
	if !action.IsGrant() {
		return Result{}, invalid("action must be Renewal, Top-up or Refund, got %q", action)
	}
	if amount <= 0 {
		return Result{}, fmt.Errorf("%w: credits must be >= 1, got %d", ErrInvalidAmount, amount)
	}

	p := posting{action: action, credits: amount}
	if action.raisesTotal() {
		p.totalDelta = amount
	}
	return s.post(ctx, "grant", officerID, p, meta, nil)
}

// Deduct removes credits with a Deduction entry. The balance never goes negative:
// if fewer than amount credits remain nothing is written and ErrInsufficientCredits is returned.
func (s *Service) Deduct(ctx context.Context, officerID string, amount int64, meta Metadata) (Result, error) {
	if officerID == "" {
		return Result{}, invalid("officer_id is required")
	}
	if amount <= 0 {
		return Result{}, fmt.Errorf("%w: credits must be >= 1, got %d", ErrInvalidAmount, amount)
	}
	if meta.PaymentMode == "" {
		meta.PaymentMode = defaultDeductMode
	}
	if meta.Remarks == "" {
		meta.Remarks = defaultDeductRemarks
	}

	return s.post(ctx, "deduct", officerID, posting{action: ActionDeduction, credits: -amount}, meta, func(o Officer) error {
		if o.CreditsRemaining < amount {
			return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientCredits, o.CreditsRemaining, amount)
		}
		return nil
	})
}

// Adjust records an administrative correction of delta credits (either sign).
// Remarks are required. TotalCredits moves only when meta.CorrectTotal is set.
func (s *Service) Adjust(ctx context.Context, officerID string, delta int64, meta Metadata) (Result, error) {
	if officerID == "" {
		return Result{}, invalid("officer_id is required")
	}
	if delta == 0 || delta == math.MinInt64 {
		return Result{}, fmt.Errorf("%w: adjustment must be a non-zero int64 above the minimum, got %d", ErrInvalidAmount, delta)
	}
	if strings.TrimSpace(meta.Remarks) == "" {
		return Result{}, invalid("remarks are required for adjustments")
	}

	p := posting{action: ActionAdjustment, credits: delta}
	if meta.CorrectTotal {
		p.totalDelta = delta
	}
	return s.post(ctx, "adjust", officerID, p, meta, func(o Officer) error {
		if o.CreditsRemaining+delta < 0 {
			return fmt.Errorf("%w: balance %d, adjustment %d", ErrInsufficientCredits, o.CreditsRemaining, delta)
		}
		if meta.CorrectTotal && o.TotalCredits+delta < 0 {
			return invalid("total credits cannot go below zero")
		}
		return nil
	})
}

// posting is the entry a mutation intends to write.
type posting struct {
	action     Action
	credits    int64
	totalDelta int64
}

// fits reports whether applying p to o keeps both counters within int64.
func (p posting) fits(o Officer) bool {
	if p.credits > 0 && o.CreditsRemaining > math.MaxInt64-p.credits {
		return false
	}
	if p.totalDelta > 0 && o.TotalCredits > math.MaxInt64-p.totalDelta {
		return false
	}
	return true
}

// post runs one ledger mutation: lock, replay check, validate, insert entry, write balance.
// The entry id and timestamp are taken after the lock so entry order matches apply order.
func (s *Service) post(ctx context.Context, op, officerID string, p posting, meta Metadata, check func(o Officer) error) (Result, error) {
	start := time.Now()

	var out Result
	var entryID string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOfficer(ctx, officerID)
		if err != nil {
			if errors.Is(err, ErrOfficerNotFound) {
				return err
			}
			return storeErr("lock officer", officerID, "", err)
		}

		// A known key replays its entry, but only for the same action and amount.
		if meta.IdempotencyKey != "" {
			existing, ok, err := tx.FindByIdempotencyKey(ctx, officerID, meta.IdempotencyKey)
			if err != nil {
				return storeErr("find idempotency key", officerID, "", err)
			}
			if ok {
				if existing.Action != p.action || existing.Credits != p.credits {
					return fmt.Errorf("%w: key %q already recorded %s of %d credits",
						ErrIdempotencyConflict, meta.IdempotencyKey, existing.Action, existing.Credits)
				}
				out = Result{
					Transaction:     existing,
					PreviousBalance: existing.PreviousBalance,
					NewBalance:      existing.NewBalance,
					TotalCredits:    o.TotalCredits,
					Replayed:        true,
				}
				return nil
			}
		}

		if !p.fits(o) {
			return fmt.Errorf("%w: %d credits would exceed the maximum balance", ErrInvalidAmount, p.credits)
		}
		if check != nil {
			if err := check(o); err != nil {
				return err
			}
		}

		now := s.clock().UTC()
		entryID = s.newID()
		entry := Transaction{
			ID:               entryID,
			OfficerID:        o.ID,
			Action:           p.action,
			Credits:          p.credits,
			PreviousBalance:  o.CreditsRemaining,
			NewBalance:       o.CreditsRemaining + p.credits,
			PaymentMode:      meta.PaymentMode,
			PaymentReference: meta.PaymentReference,
			Remarks:          meta.Remarks,
			ProcessedBy:      meta.ProcessedBy,
			IdempotencyKey:   meta.IdempotencyKey,
			CreatedAt:        now,
		}
		newTotal := o.TotalCredits + p.totalDelta

		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return storeErr("insert transaction", o.ID, entry.ID, err)
		}
		if err := tx.WriteBalance(ctx, o.ID, entry.NewBalance, newTotal, now); err != nil {
			return storeErr("write balance", o.ID, entry.ID, err)
		}

		out = Result{
			Transaction:     entry,
			PreviousBalance: entry.PreviousBalance,
			NewBalance:      entry.NewBalance,
			TotalCredits:    newTotal,
		}
		return nil
	})
	if err != nil && !isDomainErr(err) {
		err = storeErr("commit", officerID, entryID, err)
	}
	s.obs.ObserveOperation(op, err, time.Since(start))

	if err != nil {
		if errors.Is(err, ErrStoreFailure) {
			s.log.ErrorContext(ctx, "ledger mutation failed", "op", op, "officer_id", officerID, "error", err)
		} else {
			s.log.DebugContext(ctx, "ledger mutation rejected", "op", op, "officer_id", officerID, "error", err)
		}
		return Result{}, err
	}

	if out.Replayed {
		s.log.InfoContext(ctx, "ledger entry replayed",
			"op", op,
			"officer_id", officerID,
			"transaction_id", out.Transaction.ID,
			"idempotency_key", meta.IdempotencyKey,
		)
		return out, nil
	}
	s.obs.ObserveCredits(out.Transaction.Action, out.Transaction.Credits)
	s.log.InfoContext(ctx, "ledger entry recorded",
		"op", op,
		"officer_id", officerID,
		"transaction_id", out.Transaction.ID,
		"action", string(out.Transaction.Action),
		"credits", out.Transaction.Credits,
		"previous_balance", out.PreviousBalance,
		"new_balance", out.NewBalance,
		"processed_by", meta.ProcessedBy,
	)
	return out, nil
}

// Balance returns the officer with its cached balance.
func (s *Service) Balance(ctx context.Context, officerID string) (Officer, error) {
	if officerID == "" {
		return Officer{}, invalid("officer_id is required")
	}
	o, err := s.store.GetOfficer(ctx, officerID)
	if err != nil {
		if errors.Is(err, ErrOfficerNotFound) {
			return Officer{}, err
		}
		return Officer{}, storeErr("get officer", officerID, "", err)
	}
	return o, nil
}

// Reconcile recomputes the balance from the ledger under the officer lock.
// When the cached balance disagrees, the report is returned together with
// ErrConsistencyViolation.
func (s *Service) Reconcile(ctx context.Context, officerID string) (Reconciliation, error) {
	if officerID == "" {
		return Reconciliation{}, invalid("officer_id is required")
	}
	start := time.Now()

	var rec Reconciliation
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOfficer(ctx, officerID)
		if err != nil {
			if errors.Is(err, ErrOfficerNotFound) {
				return err
			}
			return storeErr("lock officer", officerID, "", err)
		}
		sum, n, err := tx.SumCredits(ctx, officerID)
		if err != nil {
			return storeErr("sum credits", officerID, "", err)
		}
		rec = Reconciliation{
			OfficerID:       officerID,
			Consistent:      sum == o.CreditsRemaining,
			ComputedBalance: sum,
			CachedBalance:   o.CreditsRemaining,
			Drift:           o.CreditsRemaining - sum,
			Entries:         n,
		}
		return nil
	})
	if err != nil && !isDomainErr(err) {
		err = storeErr("commit", officerID, "", err)
	}
	s.obs.ObserveOperation("reconcile", err, time.Since(start))
	if err != nil {
		return Reconciliation{}, err
	}

	if !rec.Consistent {
		s.obs.ObserveDrift(officerID, rec.Drift)
		s.log.WarnContext(ctx, "ledger drift detected",
			"officer_id", officerID,
			"cached_balance", rec.CachedBalance,
			"computed_balance", rec.ComputedBalance,
			"entries", rec.Entries,
		)
		return rec, fmt.Errorf("%w: officer %s cached %d, ledger %d", ErrConsistencyViolation, officerID, rec.CachedBalance, rec.ComputedBalance)
	}
	return rec, nil
}
