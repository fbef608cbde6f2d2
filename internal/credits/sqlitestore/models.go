package sqlitestore

import (
	"time"

	"pickme-intel/internal/audit"
	"pickme-intel/internal/credits"
	"pickme-intel/internal/lookups"
)

type officerRow struct {
	ID               string    `gorm:"primaryKey;size:64"`
	Name             string    `gorm:"not null"`
	Mobile           string    `gorm:"not null;uniqueIndex:idx_officers_mobile"`
	Email            string    `gorm:"not null;default:''"`
	Department       string    `gorm:"not null;default:''"`
	Rank             string    `gorm:"not null;default:''"`
	BadgeNumber      string    `gorm:"not null;default:''"`
	Status           string    `gorm:"not null;default:Active;index"`
	CreditsRemaining int64     `gorm:"not null;default:0"`
	TotalCredits     int64     `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"not null;index"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (officerRow) TableName() string { return "officers" }

type transactionRow struct {
	ID               string    `gorm:"primaryKey;size:64"`
	OfficerID        string    `gorm:"not null;index:idx_credit_tx_officer,priority:1;index:idx_credit_tx_idem,priority:1"`
	Action           string    `gorm:"not null;index"`
	Credits          int64     `gorm:"not null"`
	PreviousBalance  int64     `gorm:"not null"`
	NewBalance       int64     `gorm:"not null"`
	PaymentMode      string    `gorm:"not null;default:''"`
	PaymentReference string    `gorm:"not null;default:''"`
	Remarks          string    `gorm:"not null;default:''"`
	ProcessedBy      string    `gorm:"not null;default:''"`
	IdempotencyKey   string    `gorm:"not null;default:'';index:idx_credit_tx_idem,priority:2"`
	CreatedAt        time.Time `gorm:"not null;index;index:idx_credit_tx_officer,priority:2"`
}

func (transactionRow) TableName() string { return "credit_transactions" }

type auditRow struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Action       string    `gorm:"not null;index"`
	ActorUserID  string    `gorm:"not null;default:''"`
	ActorRole    string    `gorm:"not null;default:''"`
	IPAddress    string    `gorm:"not null;default:''"`
	ResourceType string    `gorm:"not null;default:''"`
	ResourceID   string    `gorm:"not null;default:'';index"`
	Message      string    `gorm:"not null;default:''"`
	Metadata     string    `gorm:"not null;default:'{}'"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

func (auditRow) TableName() string { return "audit_logs" }

type lookupRow struct {
	ID             string    `gorm:"primaryKey;size:64"`
	OfficerID      string    `gorm:"not null;index:idx_lookup_officer,priority:1"`
	Type           string    `gorm:"not null;index"`
	Input          string    `gorm:"not null"`
	Status         string    `gorm:"not null;default:Success"`
	CreditsUsed    int64     `gorm:"not null;default:0"`
	TransactionID  string    `gorm:"not null;default:''"`
	ResultSummary  string    `gorm:"not null;default:''"`
	RequestedBy    string    `gorm:"not null;default:''"`
	ResponseTimeMS int64     `gorm:"column:response_time_ms;not null;default:0"`
	CreatedAt      time.Time `gorm:"not null;index;index:idx_lookup_officer,priority:2"`
}

func (lookupRow) TableName() string { return "lookup_queries" }

// migrateModels lists every table created by AutoMigrate.
var migrateModels = []any{
	&officerRow{},
	&transactionRow{},
	&auditRow{},
	&lookupRow{},
}

func officerToRow(o credits.Officer) officerRow {
	return officerRow{
		ID:               o.ID,
		Name:             o.Name,
		Mobile:           o.Mobile,
		Email:            o.Email,
		Department:       o.Department,
		Rank:             o.Rank,
		BadgeNumber:      o.BadgeNumber,
		Status:           string(o.Status),
		CreditsRemaining: o.CreditsRemaining,
		TotalCredits:     o.TotalCredits,
		CreatedAt:        o.CreatedAt.UTC(),
		UpdatedAt:        o.UpdatedAt.UTC(),
	}
}

func (r officerRow) toOfficer() credits.Officer {
	return credits.Officer{
		ID:               r.ID,
		Name:             r.Name,
		Mobile:           r.Mobile,
		Email:            r.Email,
		Department:       r.Department,
		Rank:             r.Rank,
		BadgeNumber:      r.BadgeNumber,
		Status:           credits.OfficerStatus(r.Status),
		CreditsRemaining: r.CreditsRemaining,
		TotalCredits:     r.TotalCredits,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func transactionToRow(t credits.Transaction) transactionRow {
	return transactionRow{
		ID:               t.ID,
		OfficerID:        t.OfficerID,
		Action:           string(t.Action),
		Credits:          t.Credits,
		PreviousBalance:  t.PreviousBalance,
		NewBalance:       t.NewBalance,
		PaymentMode:      t.PaymentMode,
		PaymentReference: t.PaymentReference,
		Remarks:          t.Remarks,
		ProcessedBy:      t.ProcessedBy,
		IdempotencyKey:   t.IdempotencyKey,
		CreatedAt:        t.CreatedAt.UTC(),
	}
}

func (r transactionRow) toTransaction() credits.Transaction {
	return credits.Transaction{
		ID:               r.ID,
		OfficerID:        r.OfficerID,
		Action:           credits.Action(r.Action),
		Credits:          r.Credits,
		PreviousBalance:  r.PreviousBalance,
		NewBalance:       r.NewBalance,
		PaymentMode:      r.PaymentMode,
		PaymentReference: r.PaymentReference,
		Remarks:          r.Remarks,
		ProcessedBy:      r.ProcessedBy,
		IdempotencyKey:   r.IdempotencyKey,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func auditToRow(e audit.Event) auditRow {
	return auditRow{
		ID:           e.ID,
		Action:       string(e.Action),
		ActorUserID:  e.ActorUserID,
		ActorRole:    e.ActorRole,
		IPAddress:    e.IPAddress,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Message:      e.Message,
		Metadata:     e.Metadata,
		CreatedAt:    e.CreatedAt.UTC(),
	}
}

func lookupToRow(r lookups.Record) lookupRow {
	return lookupRow{
		ID:             r.ID,
		OfficerID:      r.OfficerID,
		Type:           r.Type,
		Input:          r.Input,
		Status:         string(r.Status),
		CreditsUsed:    r.CreditsUsed,
		TransactionID:  r.TransactionID,
		ResultSummary:  r.ResultSummary,
		RequestedBy:    r.RequestedBy,
		ResponseTimeMS: r.ResponseTimeMS,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func (r lookupRow) toRecord() lookups.Record {
	return lookups.Record{
		ID:             r.ID,
		OfficerID:      r.OfficerID,
		Type:           r.Type,
		Input:          r.Input,
		Status:         lookups.Status(r.Status),
		CreditsUsed:    r.CreditsUsed,
		TransactionID:  r.TransactionID,
		ResultSummary:  r.ResultSummary,
		RequestedBy:    r.RequestedBy,
		ResponseTimeMS: r.ResponseTimeMS,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}
