package migrations

import (
	"strings"
	"testing"
)

func TestPostgresSchemaDeclaresLedgerTables(t *testing.T) {
	s := Postgres()
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS officers",
		"CREATE TABLE IF NOT EXISTS credit_transactions",
		"CREATE TABLE IF NOT EXISTS audit_logs",
		"CONSTRAINT officers_mobile_key UNIQUE (mobile)",
		"ON DELETE RESTRICT",
		"new_balance = previous_balance + credits",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}
