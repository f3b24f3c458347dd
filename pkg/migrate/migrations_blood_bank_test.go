package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBloodBankMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_blood_bank.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no blood bank migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS blood_inventories",
		"CONSTRAINT ux_blood_inventories_group UNIQUE (blood_group)",
		"CHECK (units_available >= 0)",
		"CHECK (balance_after >= 0)",
		"FOREIGN KEY (inventory_id) REFERENCES blood_inventories(id) ON DELETE CASCADE",
		"CHECK (units_requested > 0)",
		"DROP TABLE IF EXISTS blood_requests",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAppointmentsMigrationGuardsDoubleBooking(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_appointments.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no appointments migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX ux_appointments_doctor_active_slot",
		"WHERE status = 'scheduled'",
		"CHECK (fee_amount >= 0)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
