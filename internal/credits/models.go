package credits

import "time"

type OfficerStatus string

const (
	OfficerStatusActive    OfficerStatus = "Active"
	OfficerStatusSuspended OfficerStatus = "Suspended"
	OfficerStatusInactive  OfficerStatus = "Inactive"
)

func (s OfficerStatus) Valid() bool {
	switch s {
	case OfficerStatusActive, OfficerStatusSuspended, OfficerStatusInactive:
		return true
	default:
		return false
	}
}

// Officer is an account holder. CreditsRemaining is a cached projection of the
// ledger and is only ever written together with a Transaction.
type Officer struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Mobile           string        `json:"mobile"`
	Email            string        `json:"email,omitempty"`
	Department       string        `json:"department,omitempty"`
	Rank             string        `json:"rank,omitempty"`
	BadgeNumber      string        `json:"badge_number,omitempty"`
	Status           OfficerStatus `json:"status"`
	CreditsRemaining int64         `json:"credits_remaining"`
	TotalCredits     int64         `json:"total_credits"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type Action string

const (
	ActionRenewal    Action = "Renewal"
	ActionTopUp      Action = "Top-up"
	ActionRefund     Action = "Refund"
	ActionDeduction  Action = "Deduction"
	ActionAdjustment Action = "Adjustment"
)

func (a Action) Valid() bool {
	switch a {
	case ActionRenewal, ActionTopUp, ActionRefund, ActionDeduction, ActionAdjustment:
		return true
	default:
		return false
	}
}

// IsGrant reports whether Grant accepts the action.
func (a Action) IsGrant() bool {
	return a == ActionRenewal || a == ActionTopUp || a == ActionRefund
}

// raisesTotal reports whether the action counts toward an officer's lifetime total.
func (a Action) raisesTotal() bool {
	return a == ActionRenewal || a == ActionTopUp
}

// Transaction is one immutable ledger entry.
// Credits is signed: positive increases the balance, negative decreases it,
// and NewBalance == PreviousBalance + Credits always holds.
type Transaction struct {
	ID               string    `json:"id"`
	OfficerID        string    `json:"officer_id"`
	Action           Action    `json:"action"`
	Credits          int64     `json:"credits"`
	PreviousBalance  int64     `json:"previous_balance"`
	NewBalance       int64     `json:"new_balance"`
	PaymentMode      string    `json:"payment_mode,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	Remarks          string    `json:"remarks,omitempty"`
	ProcessedBy      string    `json:"processed_by,omitempty"`
	IdempotencyKey   string    `json:"idempotency_key,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Metadata is caller-supplied context copied onto a ledger entry.
type Metadata struct {
	PaymentMode      string
	PaymentReference string
	Remarks          string
	ProcessedBy      string
	IdempotencyKey   string
	// CorrectTotal makes Adjust move TotalCredits by the same delta.
	CorrectTotal bool
}

// Result describes a committed (or replayed) ledger mutation.
type Result struct {
	Transaction     Transaction `json:"transaction"`
	PreviousBalance int64       `json:"previous_balance"`
	NewBalance      int64       `json:"new_balance"`
	TotalCredits    int64       `json:"total_credits"`
	// Replayed is set when an entry with the same idempotency key already existed.
	Replayed bool `json:"replayed"`
}

type Reconciliation struct {
	OfficerID       string `json:"officer_id"`
	Consistent      bool   `json:"consistent"`
	ComputedBalance int64  `json:"computed_balance"`
	CachedBalance   int64  `json:"cached_balance"`
	Drift           int64  `json:"drift"`
	Entries         int    `json:"entries"`
}

type HistoryQuery struct {
	OfficerID string
	Action    Action
	From      time.Time
	To        time.Time
	Search    string
	Page      int
	Limit     int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type Page struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}

type OfficerQuery struct {
	Search string
	Status OfficerStatus
	Page   int
	Limit  int
}

type OfficerPage struct {
	Officers   []Officer  `json:"officers"`
	Pagination Pagination `json:"pagination"`
}

// ProfileUpdate carries the descriptive officer fields to change. Nil fields are left as is.
type ProfileUpdate struct {
	Name        *string
	Mobile      *string
	Email       *string
	Department  *string
	Rank        *string
	BadgeNumber *string
}

// OfficerStats is one officer's balance alongside a summary of their ledger.
type OfficerStats struct {
	OfficerID        string        `json:"officer_id"`
	Name             string        `json:"name"`
	Status           OfficerStatus `json:"status"`
	CreditsRemaining int64         `json:"credits_remaining"`
	TotalCredits     int64         `json:"total_credits"`
	Ledger           Stats         `json:"ledger"`
}

// Range bounds AggregateStats. Zero values are open ends; both ends are inclusive.
type Range struct {
	From time.Time
	To   time.Time
}

type Stats struct {
	TotalCreditsIssued int64 `json:"total_credits_issued"`
	TotalCreditsUsed   int64 `json:"total_credits_used"`
	TotalTransactions  int   `json:"total_transactions"`
	Renewals           int   `json:"renewals"`
	TopUps             int   `json:"topups"`
	Refunds            int   `json:"refunds"`
	Deductions         int   `json:"deductions"`
	Adjustments        int   `json:"adjustments"`
	EstimatedRevenue   int64 `json:"estimated_revenue"`
}
