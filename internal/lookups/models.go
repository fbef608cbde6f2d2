package lookups

import "time"

// Record is one executed lookup in the query history.
//
// Records are written once, after the lookup has been charged, and never updated.
// TransactionID links a paid lookup to its Deduction ledger entry.
type Record struct {
	ID             string    `json:"id" db:"id"`
	OfficerID      string    `json:"officer_id" db:"officer_id"`
	Type           string    `json:"type" db:"type"`
	Input          string    `json:"input" db:"input"`
	Status         Status    `json:"status" db:"status"`
	CreditsUsed    int64     `json:"credits_used" db:"credits_used"`
	TransactionID  string    `json:"transaction_id,omitempty" db:"transaction_id"`
	ResultSummary  string    `json:"result_summary,omitempty" db:"result_summary"`
	RequestedBy    string    `json:"requested_by,omitempty" db:"requested_by"`
	ResponseTimeMS int64     `json:"response_time_ms" db:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	StatusPending Status = "Pending"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusPending:
		return true
	}
	return false
}

// Filter selects records for List. Zero values match everything.
type Filter struct {
	OfficerID string
	Type      string
	Status    Status
	From      time.Time
	To        time.Time
	// Search matches input or result summary, case-insensitively.
	Search string
	Offset int
	Limit  int
}

// Query is the paged form of Filter used by Service.List.
type Query struct {
	OfficerID string
	Type      string
	Status    Status
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
	Queries    []Record   `json:"queries"`
	Pagination Pagination `json:"pagination"`
}

type Summary struct {
	TotalQueries          int            `json:"total_queries"`
	ByType                map[string]int `json:"by_type"`
	Successful            int            `json:"successful"`
	Failed                int            `json:"failed"`
	Pending               int            `json:"pending"`
	TotalCreditsUsed      int64          `json:"total_credits_used"`
	AverageResponseTimeMS int64          `json:"average_response_time_ms"`
}
