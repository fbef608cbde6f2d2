package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OpenAccount creates an officer at zero balance and, when initialGrant > 0,
// records a seed Renewal in the same unit of work, so the balance equals the
// ledger sum from the first moment the officer exists.
func (s *Service) OpenAccount(ctx context.Context, o Officer, initialGrant int64, meta Metadata) (Officer, *Transaction, error) {
	o.Name = strings.TrimSpace(o.Name)
	o.Mobile = strings.TrimSpace(o.Mobile)
	o.Email = strings.TrimSpace(o.Email)
	if len(o.Name) < 2 {
		return Officer{}, nil, invalid("name must be at least 2 characters")
	}
	if !mobilePattern.MatchString(o.Mobile) {
		return Officer{}, nil, invalid("mobile %q is not a valid phone number", o.Mobile)
	}
	if o.Status == "" {
		o.Status = OfficerStatusActive
	}
	if !o.Status.Valid() {
		return Officer{}, nil, invalid("status must be Active, Suspended or Inactive, got %q", o.Status)
	}
	if initialGrant < 0 {
		return Officer{}, nil, fmt.Errorf("%w: initial credits must be >= 0, got %d", ErrInvalidAmount, initialGrant)
	}

	start := time.Now()
	o.CreditsRemaining = 0
	o.TotalCredits = 0

	if meta.PaymentMode == "" {
		meta.PaymentMode = "Initial Allocation"
	}
	if meta.Remarks == "" {
		meta.Remarks = "Initial credit allocation"
	}

	var seed *Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.clock().UTC()
		o.ID = s.newID()
		o.CreatedAt = now
		o.UpdatedAt = now
		if err := tx.CreateOfficer(ctx, o); err != nil {
			if errors.Is(err, ErrDuplicateMobile) {
				return err
			}
			return storeErr("create officer", o.ID, "", err)
		}
		if initialGrant == 0 {
			return nil
		}
		entry := Transaction{
			ID:               s.newID(),
			OfficerID:        o.ID,
			Action:           ActionRenewal,
			Credits:          initialGrant,
			PreviousBalance:  0,
			NewBalance:       initialGrant,
			PaymentMode:      meta.PaymentMode,
			PaymentReference: meta.PaymentReference,
			Remarks:          meta.Remarks,
			ProcessedBy:      meta.ProcessedBy,
			IdempotencyKey:   meta.IdempotencyKey,
			CreatedAt:        o.CreatedAt,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return storeErr("insert transaction", o.ID, entry.ID, err)
		}
		if err := tx.WriteBalance(ctx, o.ID, initialGrant, initialGrant, o.CreatedAt); err != nil {
			return storeErr("write balance", o.ID, entry.ID, err)
		}
		seed = &entry
		return nil
	})
	if err != nil && !isDomainErr(err) {
		err = storeErr("commit", o.ID, "", err)
	}
	s.obs.ObserveOperation("open_account", err, time.Since(start))
	if err != nil {
		return Officer{}, nil, err
	}

	if seed != nil {
		o.CreditsRemaining = initialGrant
		o.TotalCredits = initialGrant
		s.obs.ObserveCredits(seed.Action, seed.Credits)
	}
	s.log.InfoContext(ctx, "officer account opened",
		"officer_id", o.ID,
		"initial_credits", initialGrant,
		"processed_by", meta.ProcessedBy,
	)
	return o, seed, nil
}

// CloseAccount hard-deletes an officer that has never had a ledger entry.
// Officers with history must be archived with SetStatus(Inactive) instead.
func (s *Service) CloseAccount(ctx context.Context, officerID string) error {
	if officerID == "" {
		return invalid("officer_id is required")
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockOfficer(ctx, officerID); err != nil {
			if errors.Is(err, ErrOfficerNotFound) {
				return err
			}
			return storeErr("lock officer", officerID, "", err)
		}
		n, err := tx.CountTransactions(ctx, officerID)
		if err != nil {
			return storeErr("count transactions", officerID, "", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %d entries; set status Inactive to archive", ErrOfficerHasLedger, n)
		}
		if err := tx.DeleteOfficer(ctx, officerID); err != nil {
			return storeErr("delete officer", officerID, "", err)
		}
		return nil
	})
	if err != nil && !isDomainErr(err) {
		err = storeErr("commit", officerID, "", err)
	}
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "officer account closed", "officer_id", officerID)
	return nil
}

// SetStatus changes an officer's lifecycle status and returns the updated officer.
func (s *Service) SetStatus(ctx context.Context, officerID string, status OfficerStatus) (Officer, error) {
	if officerID == "" {
		return Officer{}, invalid("officer_id is required")
	}
	if !status.Valid() {
		return Officer{}, invalid("status must be Active, Suspended or Inactive, got %q", status)
	}

	var out Officer
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOfficer(ctx, officerID)
		if err != nil {
			if errors.Is(err, ErrOfficerNotFound) {
				return err
			}
			return storeErr("lock officer", officerID, "", err)
		}
		now := s.clock().UTC()
		if err := tx.UpdateOfficerStatus(ctx, officerID, status, now); err != nil {
			return storeErr("update status", officerID, "", err)
		}
		o.Status = status
		o.UpdatedAt = now
		out = o
		return nil
	})
	if err != nil && !isDomainErr(err) {
		err = storeErr("commit", officerID, "", err)
	}
	if err != nil {
		return Officer{}, err
	}
	return out, nil
}

func (s *Service) ListOfficers(ctx context.Context, q OfficerQuery) (OfficerPage, error) {
	if q.Status != "" && !q.Status.Valid() {
		return OfficerPage{}, invalid("status must be Active, Suspended or Inactive, got %q", q.Status)
	}
	page, limit := normalizePage(q.Page, q.Limit, DefaultHistoryLimit)
	officers, total, err := s.store.ListOfficers(ctx, OfficerFilter{
		Search: strings.TrimSpace(q.Search),
		Status: q.Status,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return OfficerPage{}, storeErr("list officers", "", "", err)
	}
	if officers == nil {
		officers = []Officer{}
	}
	return OfficerPage{Officers: officers, Pagination: paginate(page, limit, total)}, nil
}

// UpdateProfile applies u to an officer's descriptive fields and returns the
// officer before and after the change. Balances and status are untouched.
func (s *Service) UpdateProfile(ctx context.Context, officerID string, u ProfileUpdate) (Officer, Officer, error) {
	if officerID == "" {
		return Officer{}, Officer{}, invalid("officer_id is required")
	}

	var before, after Officer
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOfficer(ctx, officerID)
		if err != nil {
			if errors.Is(err, ErrOfficerNotFound) {
				return err
			}
			return storeErr("lock officer", officerID, "", err)
		}
		before = o
		if err := u.apply(&o); err != nil {
			return err
		}
		o.UpdatedAt = s.clock().UTC()
		if err := tx.UpdateOfficerProfile(ctx, o); err != nil {
			if errors.Is(err, ErrDuplicateMobile) {
				return err
			}
			return storeErr("update profile", officerID, "", err)
		}
		after = o
		return nil
	})
	if err != nil && !isDomainErr(err) {
		err = storeErr("commit", officerID, "", err)
	}
	if err != nil {
		return Officer{}, Officer{}, err
	}
	s.log.InfoContext(ctx, "officer profile updated", "officer_id", officerID)
	return before, after, nil
}

func (u ProfileUpdate) apply(o *Officer) error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if len(name) < 2 {
			return invalid("name must be at least 2 characters")
		}
		o.Name = name
	}
	if u.Mobile != nil {
		mobile := strings.TrimSpace(*u.Mobile)
		if !mobilePattern.MatchString(mobile) {
			return invalid("mobile %q is not a valid phone number", mobile)
		}
		o.Mobile = mobile
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&o.Email, u.Email)
	set(&o.Department, u.Department)
	set(&o.Rank, u.Rank)
	set(&o.BadgeNumber, u.BadgeNumber)
	return nil
}

// OfficerStats summarises one officer's ledger over r next to their current balance.
func (s *Service) OfficerStats(ctx context.Context, officerID string, r Range) (OfficerStats, error) {
	if officerID == "" {
		return OfficerStats{}, invalid("officer_id is required")
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return OfficerStats{}, invalid("date_to is before date_from")
	}
	o, err := s.Balance(ctx, officerID)
	if err != nil {
		return OfficerStats{}, err
	}
	txs, _, err := s.store.ListTransactions(ctx, TransactionFilter{OfficerID: officerID, From: r.From, To: r.To})
	if err != nil {
		return OfficerStats{}, storeErr("list transactions", officerID, "", err)
	}
	return OfficerStats{
		OfficerID:        o.ID,
		Name:             o.Name,
		Status:           o.Status,
		CreditsRemaining: o.CreditsRemaining,
		TotalCredits:     o.TotalCredits,
		Ledger:           summarize(txs, s.pricePerCredit),
	}, nil
}
