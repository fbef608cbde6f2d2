package credits

import (
	"context"
	"time"
)

// Store persists officers and their ledger. Every balance change happens
// inside WithinTx, and an error returned from fn discards all of its writes.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOfficer(ctx context.Context, officerID string) (Officer, error)
	ListOfficers(ctx context.Context, f OfficerFilter) ([]Officer, int, error)
	// ListTransactions returns matching entries newest first (created_at desc, id desc)
	// and the total number of matches ignoring Offset/Limit.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, int, error)
}

// Tx is the unit of work handed to WithinTx.
// LockOfficer and GetOfficer return ErrOfficerNotFound for unknown ids;
// CreateOfficer returns ErrDuplicateMobile on a mobile collision.
type Tx interface {
	// LockOfficer reads the officer and holds it exclusively until the unit of work ends.
	LockOfficer(ctx context.Context, officerID string) (Officer, error)
	WriteBalance(ctx context.Context, officerID string, remaining, total int64, at time.Time) error
	InsertTransaction(ctx context.Context, t Transaction) error
	FindByIdempotencyKey(ctx context.Context, officerID, key string) (Transaction, bool, error)
	// SumCredits returns the signed sum and count of the officer's entries.
	SumCredits(ctx context.Context, officerID string) (int64, int, error)

	CreateOfficer(ctx context.Context, o Officer) error
	UpdateOfficerStatus(ctx context.Context, officerID string, status OfficerStatus, at time.Time) error
	// UpdateOfficerProfile rewrites the descriptive fields of o (never balances or status).
	UpdateOfficerProfile(ctx context.Context, o Officer) error
	DeleteOfficer(ctx context.Context, officerID string) error
	CountTransactions(ctx context.Context, officerID string) (int, error)
}

// TransactionFilter selects ledger entries. Zero fields do not filter.
// From and To are inclusive. Search matches remarks or payment reference,
// case-insensitively. Limit <= 0 returns every match.
type TransactionFilter struct {
	OfficerID string
	Action    Action
	From      time.Time
	To        time.Time
	Search    string
	Offset    int
	Limit     int
}

// OfficerFilter selects officers. Search matches name, mobile or badge number.
type OfficerFilter struct {
	Search string
	Status OfficerStatus
	Offset int
	Limit  int
}
