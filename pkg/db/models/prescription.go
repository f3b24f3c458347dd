package models

import (
	"time"

	"github.com/google/uuid"
)

// Prescription is authored by a doctor for a patient.
type Prescription struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DoctorID      uuid.UUID  `gorm:"column:doctor_id;type:uuid;not null;index"`
	PatientID     uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index"`
	AppointmentID *uuid.UUID `gorm:"column:appointment_id;type:uuid"`
	Notes         *string    `gorm:"column:notes"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Lines []PrescriptionLine `gorm:"foreignKey:PrescriptionID"`
}

// PrescriptionLine is one medication directive on a prescription.
type PrescriptionLine struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PrescriptionID uuid.UUID  `gorm:"column:prescription_id;type:uuid;not null;index"`
	MedicineID     *uuid.UUID `gorm:"column:medicine_id;type:uuid"`
	MedicineName   string     `gorm:"column:medicine_name;not null"`
	Dosage         string     `gorm:"column:dosage;not null"`
	DurationDays   int        `gorm:"column:duration_days;not null"`
	Instructions   *string    `gorm:"column:instructions"`
}
