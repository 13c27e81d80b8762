package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/courier-dispatch/pkg/migrate"
)

func TestDispatchMigrationContainsVersionColumnsAndConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_dispatch_core.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no dispatch core migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS deliveries",
		"CREATE TABLE IF NOT EXISTS courier_profiles",
		"CREATE TABLE IF NOT EXISTS notifications",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_deliveries_order_id ON deliveries (order_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number ON orders (order_number)",
		"CHECK (status <> 'DELIVERED' OR payment_status = 'PAID')",
		"DROP TABLE IF EXISTS deliveries",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}

	if got := strings.Count(content, "version bigint NOT NULL DEFAULT 1"); got != 3 {
		t.Errorf("expected 3 versioned tables, got %d", got)
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}
