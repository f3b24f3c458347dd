package doctors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

func newDoctorsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:doctors_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	table := `
CREATE TABLE IF NOT EXISTS doctors (
  id TEXT PRIMARY KEY,
  user_id TEXT UNIQUE,
  full_name TEXT NOT NULL,
  specialty TEXT NOT NULL,
  qualifications TEXT NOT NULL,
  bio TEXT,
  consultation_fee NUMERIC NOT NULL,
  available_days TEXT NOT NULL,
  day_start_min INTEGER NOT NULL DEFAULT 540,
  day_end_min INTEGER NOT NULL DEFAULT 1020,
  slot_minutes INTEGER NOT NULL DEFAULT 30,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	if err := conn.Exec(table).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return conn
}

func newDoctorService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn)})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func sampleCreateInput() CreateInput {
	return CreateInput{
		FullName:        "Dr. Irene Castillo",
		Specialty:       "cardiology",
		Qualifications:  "MD, FACC",
		ConsultationFee: decimal.NewFromInt(150),
		AvailableDays:   []string{"Monday", "wednesday", "monday"},
	}
}

func TestCreateNormalizesDays(t *testing.T) {
	svc := newDoctorService(t, newDoctorsDB(t))

	doctor, err := svc.Create(context.Background(), sampleCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(doctor.AvailableDays) != 2 || doctor.AvailableDays[0] != "monday" || doctor.AvailableDays[1] != "wednesday" {
		t.Fatalf("expected deduped lowercase days, got %+v", doctor.AvailableDays)
	}
	if doctor.DayStartMin != 540 || doctor.DayEndMin != 1020 || doctor.SlotMinutes != 30 {
		t.Fatalf("expected default window, got %+v", doctor)
	}
	if !doctor.IsActive {
		t.Fatal("expected new doctor active")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newDoctorService(t, newDoctorsDB(t))
	badStart := -10
	badSlot := 7

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing name", func(in *CreateInput) { in.FullName = " " }},
		{"missing specialty", func(in *CreateInput) { in.Specialty = "" }},
		{"negative fee", func(in *CreateInput) { in.ConsultationFee = decimal.NewFromInt(-5) }},
		{"no days", func(in *CreateInput) { in.AvailableDays = nil }},
		{"bad day", func(in *CreateInput) { in.AvailableDays = []string{"funday"} }},
		{"bad window", func(in *CreateInput) { in.DayStartMin = &badStart }},
		{"uneven slots", func(in *CreateInput) { in.SlotMinutes = &badSlot }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := sampleCreateInput()
			tc.mutate(&input)
			_, err := svc.Create(context.Background(), input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestUpdateAndDeactivate(t *testing.T) {
	svc := newDoctorService(t, newDoctorsDB(t))
	doctor, err := svc.Create(context.Background(), sampleCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fee := decimal.NewFromInt(200)
	updated, err := svc.Update(context.Background(), doctor.ID, UpdateInput{ConsultationFee: &fee})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.ConsultationFee.Equal(fee) {
		t.Fatalf("expected fee 200, got %s", updated.ConsultationFee)
	}

	deactivated, err := svc.Deactivate(context.Background(), doctor.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.IsActive {
		t.Fatal("expected doctor inactive")
	}

	rows, err := svc.List(context.Background(), ListFilter{Params: pagination.Params{Limit: 10}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("inactive doctor must not appear in public list, got %d", len(rows))
	}

	all, err := svc.List(context.Background(), ListFilter{IncludeAll: true, Params: pagination.Params{Limit: 10}})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 row with IncludeAll, got %d", len(all))
	}
}

func TestListFiltersBySpecialty(t *testing.T) {
	svc := newDoctorService(t, newDoctorsDB(t))

	first := sampleCreateInput()
	if _, err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := sampleCreateInput()
	second.FullName = "Dr. Omar Haddad"
	second.Specialty = "dermatology"
	if _, err := svc.Create(context.Background(), second); err != nil {
		t.Fatalf("create: %v", err)
	}

	rows, err := svc.List(context.Background(), ListFilter{Specialty: "dermatology", Params: pagination.Params{Limit: 10}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].FullName != "Dr. Omar Haddad" {
		t.Fatalf("unexpected filter result %+v", rows)
	}
}

func TestSlotTimes(t *testing.T) {
	doctor := &models.Doctor{
		AvailableDays: []string{"monday"},
		DayStartMin:   9 * 60,
		DayEndMin:     11 * 60,
		SlotMinutes:   30,
	}

	monday := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	slots := SlotTimes(doctor, monday)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	if slots[0].Hour() != 9 || slots[0].Minute() != 0 {
		t.Fatalf("unexpected first slot %s", slots[0])
	}
	if slots[3].Hour() != 10 || slots[3].Minute() != 30 {
		t.Fatalf("unexpected last slot %s", slots[3])
	}

	tuesday := monday.AddDate(0, 0, 1)
	if SlotTimes(doctor, tuesday) != nil {
		t.Fatal("expected no slots on a non-working day")
	}
}

func TestIsBookableSlot(t *testing.T) {
	doctor := &models.Doctor{
		AvailableDays: []string{"monday"},
		DayStartMin:   9 * 60,
		DayEndMin:     17 * 60,
		SlotMinutes:   30,
	}

	monday := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	if !IsBookableSlot(doctor, monday) {
		t.Fatal("expected 09:30 monday bookable")
	}
	if IsBookableSlot(doctor, monday.Add(10*time.Minute)) {
		t.Fatal("expected off-grid time rejected")
	}
	if IsBookableSlot(doctor, monday.Add(8*time.Hour)) {
		t.Fatal("expected slot ending past window rejected")
	}
	if IsBookableSlot(doctor, monday.AddDate(0, 0, 1)) {
		t.Fatal("expected non-working day rejected")
	}
}
