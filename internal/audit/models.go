package audit

import "time"

// Event is an immutable, append-only audit log record of an administrator action.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block ledger flows on audit failures.
//
// Storage (Postgres): table audit_logs, INSERT-only.
type Event struct {
	ID string `json:"id" db:"id"`

	// Action is the business category of the audit record.
	Action EventType `json:"action" db:"action"`

	// ActorUserID is the authenticated administrator causing the event.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress is the resolved client IP.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// ResourceType/ResourceID identify what was acted upon (officer, transaction).
	ResourceType string `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   string `json:"resource_id,omitempty" db:"resource_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is a JSON object with full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventAddCredits          EventType = "ADD_CREDITS"
	EventDeductCredits       EventType = "DEDUCT_CREDITS"
	EventAdjustCredits       EventType = "ADJUST_CREDITS"
	EventCreateOfficer       EventType = "CREATE_OFFICER"
	EventUpdateOfficer       EventType = "UPDATE_OFFICER"
	EventUpdateOfficerStatus EventType = "UPDATE_OFFICER_STATUS"
	EventDeleteOfficer       EventType = "DELETE_OFFICER"
	EventLookupQuery         EventType = "LOOKUP_QUERY"
	EventLogin               EventType = "LOGIN"
)

const (
	ResourceOfficer     = "officer"
	ResourceTransaction = "credit_transaction"
	ResourceAdmin       = "admin"
)

// Actor identifies who performed an action and from where.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
