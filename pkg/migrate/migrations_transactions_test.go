package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTransactionsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_transactions_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no transactions migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE transaction_kind AS ENUM",
		"CREATE TYPE transaction_status AS ENUM",
		"CREATE TABLE IF NOT EXISTS transactions",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_payment_intent_payment",
		"WHERE kind = 'payment'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_refund_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_dispute_id",
		"parent_transaction_id  uuid REFERENCES transactions(id)",
		"DROP TABLE IF EXISTS transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentEventsMigrationContainsClaimColumns(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_payment_events_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no payment events migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE payment_event_status AS ENUM",
		"CREATE TABLE IF NOT EXISTS payment_events",
		"event_id     text PRIMARY KEY",
		"CREATE INDEX IF NOT EXISTS idx_payment_events_status_claimed",
		"DROP TABLE IF EXISTS payment_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestFeeLocksMigrationContainsPeriodUniqueness(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_account_fee_locks_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no fee locks migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS account_fee_locks",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_account_fee_locks_period ON account_fee_locks (club_id, period_key)",
		"CHECK (fee_cents >= 0)",
		"DROP TABLE IF EXISTS account_fee_locks",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
