package pricing

import "strings"

// Lookup costs are expressed in whole credits. Money amounts (revenue estimates)
// are minor units handled by the credits package.

// QueryType identifies a lookup product.
type QueryType string

const (
	QueryOSINT  QueryType = "OSINT"
	QueryRC     QueryType = "RC"
	QueryCellID QueryType = "CELLID"
	QueryPro    QueryType = "PRO"
	QueryFASTag QueryType = "FASTAG"
)

// ParseQueryType normalizes user input such as "cellid" or " Pro ".
func ParseQueryType(s string) QueryType {
	return QueryType(strings.ToUpper(strings.TrimSpace(s)))
}

// Tier groups lookups for display and reporting.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// LookupCost is the charge for a single lookup of Type.
type LookupCost struct {
	Type    QueryType `json:"type"`
	Credits int64     `json:"credits"`
	Tier    Tier      `json:"tier"`
}

// Free reports whether the lookup does not touch the officer's balance.
func (c LookupCost) Free() bool { return c.Credits == 0 }
