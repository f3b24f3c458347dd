package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/config"
	"github.com/carewellhq/carewell-backend/pkg/db"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/security"
)

func newRegisterService(t *testing.T) (RegisterService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	usersTable := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT,
  role TEXT NOT NULL DEFAULT 'patient',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	patientsTable := `
CREATE TABLE IF NOT EXISTS patients (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  date_of_birth DATETIME,
  gender TEXT,
  blood_group TEXT,
  address TEXT,
  allergies TEXT,
  emergency_contact TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range []string{usersTable, patientsTable} {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	svc, err := NewRegisterService(RegisterServiceParams{
		DB:             db.NewFromConn(conn),
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return svc, conn
}

func TestRegisterCreatesPatientProfile(t *testing.T) {
	svc, conn := newRegisterService(t)
	group := enums.BloodGroupAPositive

	dto, err := svc.Register(context.Background(), RegisterRequest{
		FirstName:  "Jamie",
		LastName:   "Rivera",
		Email:      "Jamie.Rivera@Example.com",
		Password:   "Secret123!",
		BloodGroup: &group,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if dto.Email != "jamie.rivera@example.com" {
		t.Fatalf("expected lowercased email, got %s", dto.Email)
	}
	if dto.Role != enums.UserRolePatient {
		t.Fatalf("expected patient role, got %s", dto.Role)
	}

	var user models.User
	if err := conn.First(&user, "email = ?", dto.Email).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	valid, err := security.VerifyPassword("Secret123!", user.PasswordHash)
	if err != nil || !valid {
		t.Fatalf("stored hash does not verify: valid=%v err=%v", valid, err)
	}

	var profile models.Patient
	if err := conn.First(&profile, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("load patient profile: %v", err)
	}
	if profile.BloodGroup == nil || *profile.BloodGroup != enums.BloodGroupAPositive {
		t.Fatal("expected blood group stored on profile")
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _ := newRegisterService(t)

	req := RegisterRequest{
		FirstName: "Sam",
		LastName:  "Ortiz",
		Email:     "sam.ortiz@example.com",
		Password:  "Secret123!",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	_, err := svc.Register(context.Background(), req)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newRegisterService(t)
	bad := enums.BloodGroup("Z-")

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing email", RegisterRequest{FirstName: "A", LastName: "B", Password: "Secret123!"}},
		{"missing first name", RegisterRequest{LastName: "B", Email: "a@b.c", Password: "Secret123!"}},
		{"missing last name", RegisterRequest{FirstName: "A", Email: "a@b.c", Password: "Secret123!"}},
		{"bad blood group", RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.c", Password: "Secret123!", BloodGroup: &bad}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestRegisterStaff(t *testing.T) {
	svc, conn := newRegisterService(t)

	dto, err := svc.RegisterStaff(context.Background(), StaffRegisterRequest{
		FirstName: "Dana",
		LastName:  "Wells",
		Email:     "dana.wells@example.com",
		Password:  "Secret123!",
		Role:      enums.UserRoleDoctor,
	})
	if err != nil {
		t.Fatalf("register staff failed: %v", err)
	}
	if dto.Role != enums.UserRoleDoctor {
		t.Fatalf("expected doctor role, got %s", dto.Role)
	}

	var count int64
	if err := conn.Model(&models.Patient{}).Count(&count).Error; err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if count != 0 {
		t.Fatal("staff registration must not create a patient profile")
	}

	_, err = svc.RegisterStaff(context.Background(), StaffRegisterRequest{
		FirstName: "Pat",
		LastName:  "Low",
		Email:     "pat.low@example.com",
		Password:  "Secret123!",
		Role:      enums.UserRolePatient,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for patient role, got %v", err)
	}
}
