package prescriptions

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

func newPrescriptionDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:prescriptions_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	prescriptions := `
CREATE TABLE IF NOT EXISTS prescriptions (
  id TEXT PRIMARY KEY,
  doctor_id TEXT NOT NULL,
  patient_id TEXT NOT NULL,
  appointment_id TEXT,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	lines := `
CREATE TABLE IF NOT EXISTS prescription_lines (
  id TEXT PRIMARY KEY,
  prescription_id TEXT NOT NULL,
  medicine_id TEXT,
  medicine_name TEXT NOT NULL,
  dosage TEXT NOT NULL,
  duration_days INTEGER NOT NULL,
  instructions TEXT
);`
	for _, stmt := range []string{prescriptions, lines} {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return conn
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeCatalog struct {
	medicines map[uuid.UUID]*models.Medicine
}

func (f *fakeCatalog) GetMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error) {
	med, ok := f.medicines[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "medicine not found")
	}
	return med, nil
}

func newPrescriptionService(t *testing.T, conn *gorm.DB, catalog *fakeCatalog) Service {
	t.Helper()
	params := ServiceParams{
		Repo:     NewRepository(conn),
		TxRunner: fakeTxRunner{},
	}
	if catalog != nil {
		params.Catalog = catalog
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func amoxicillinLine() LineInput {
	return LineInput{MedicineName: "Amoxicillin 250mg", Dosage: "1 capsule twice daily", DurationDays: 7}
}

func TestCreateResolvesCatalogName(t *testing.T) {
	conn := newPrescriptionDB(t)
	medID := uuid.New()
	catalog := &fakeCatalog{medicines: map[uuid.UUID]*models.Medicine{
		medID: {ID: medID, Name: "Paracetamol 500mg"},
	}}
	svc := newPrescriptionService(t, conn, catalog)

	created, err := svc.Create(context.Background(), CreateInput{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Lines: []LineInput{
			{MedicineID: &medID, Dosage: "1 tablet as needed", DurationDays: 3},
			amoxicillinLine(),
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(created.Lines))
	}
	if created.Lines[0].MedicineName != "Paracetamol 500mg" {
		t.Fatalf("expected name resolved from catalog, got %q", created.Lines[0].MedicineName)
	}
	if created.Lines[0].MedicineID == nil || *created.Lines[0].MedicineID != medID {
		t.Fatal("expected catalog reference preserved")
	}
}

func TestCreateValidation(t *testing.T) {
	conn := newPrescriptionDB(t)
	svc := newPrescriptionService(t, conn, nil)
	doctorID, patientID := uuid.New(), uuid.New()

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing patient", CreateInput{DoctorID: doctorID, Lines: []LineInput{amoxicillinLine()}}},
		{"no lines", CreateInput{DoctorID: doctorID, PatientID: patientID}},
		{"missing name", CreateInput{DoctorID: doctorID, PatientID: patientID, Lines: []LineInput{{Dosage: "1x", DurationDays: 3}}}},
		{"missing dosage", CreateInput{DoctorID: doctorID, PatientID: patientID, Lines: []LineInput{{MedicineName: "Ibuprofen", DurationDays: 3}}}},
		{"zero duration", CreateInput{DoctorID: doctorID, PatientID: patientID, Lines: []LineInput{{MedicineName: "Ibuprofen", Dosage: "1x"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestGetAuthorization(t *testing.T) {
	conn := newPrescriptionDB(t)
	svc := newPrescriptionService(t, conn, nil)
	doctorID, patientID := uuid.New(), uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{
		DoctorID:  doctorID,
		PatientID: patientID,
		Lines:     []LineInput{amoxicillinLine()},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	owner := Actor{UserID: uuid.New(), PatientID: &patientID, Role: enums.UserRolePatient}
	if _, err := svc.Get(context.Background(), created.ID, owner); err != nil {
		t.Fatalf("owning patient must view own prescription: %v", err)
	}

	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	if _, err := svc.Get(context.Background(), created.ID, admin); err != nil {
		t.Fatalf("admin must view prescriptions: %v", err)
	}

	strangerID := uuid.New()
	stranger := Actor{UserID: uuid.New(), PatientID: &strangerID, Role: enums.UserRolePatient}
	_, err = svc.Get(context.Background(), created.ID, stranger)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for other patient, got %v", err)
	}
}

func TestUpdateReplacesLines(t *testing.T) {
	conn := newPrescriptionDB(t)
	svc := newPrescriptionService(t, conn, nil)
	doctorID, patientID := uuid.New(), uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{
		DoctorID:  doctorID,
		PatientID: patientID,
		Lines:     []LineInput{amoxicillinLine()},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	notes := "switch after culture results"
	author := Actor{UserID: uuid.New(), DoctorID: &doctorID, Role: enums.UserRoleDoctor}
	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{
		Notes: &notes,
		Lines: []LineInput{
			{MedicineName: "Cefuroxime 500mg", Dosage: "1 tablet twice daily", DurationDays: 10},
		},
	}, author)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != notes {
		t.Fatalf("expected notes updated, got %+v", updated.Notes)
	}

	reloaded, err := svc.Get(context.Background(), created.ID, author)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Lines) != 1 || reloaded.Lines[0].MedicineName != "Cefuroxime 500mg" {
		t.Fatalf("expected lines replaced, got %+v", reloaded.Lines)
	}
}

func TestUpdateRequiresAuthor(t *testing.T) {
	conn := newPrescriptionDB(t)
	svc := newPrescriptionService(t, conn, nil)
	doctorID := uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		Lines:     []LineInput{amoxicillinLine()},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	otherID := uuid.New()
	other := Actor{UserID: uuid.New(), DoctorID: &otherID, Role: enums.UserRoleDoctor}
	notes := "not yours"
	_, err = svc.Update(context.Background(), created.ID, UpdateInput{Notes: &notes}, other)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for other doctor, got %v", err)
	}
}

func TestListForPatient(t *testing.T) {
	conn := newPrescriptionDB(t)
	svc := newPrescriptionService(t, conn, nil)
	doctorID, patientID := uuid.New(), uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := svc.Create(context.Background(), CreateInput{
			DoctorID:  doctorID,
			PatientID: patientID,
			Lines:     []LineInput{amoxicillinLine()},
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := svc.Create(context.Background(), CreateInput{
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		Lines:     []LineInput{amoxicillinLine()},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	rows, err := svc.ListForPatient(context.Background(), patientID, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 prescriptions, got %d", len(rows))
	}
	for _, row := range rows {
		if len(row.Lines) == 0 {
			t.Fatal("expected lines preloaded")
		}
	}
}
