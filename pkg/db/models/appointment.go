package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// Appointment is a booked consultation slot against a doctor.
type Appointment struct {
	ID              uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID       uuid.UUID               `gorm:"column:patient_id;type:uuid;not null;index"`
	DoctorID        uuid.UUID               `gorm:"column:doctor_id;type:uuid;not null;index:idx_appointments_doctor_slot"`
	ScheduledAt     time.Time               `gorm:"column:scheduled_at;not null;index:idx_appointments_doctor_slot"`
	Reason          *string                 `gorm:"column:reason"`
	Status          enums.AppointmentStatus `gorm:"column:status;type:appointment_status_enum;not null;default:'scheduled'"`
	PaymentStatus   enums.PaymentStatus     `gorm:"column:payment_status;type:payment_status_enum;not null;default:'unpaid'"`
	FeeAmount       decimal.Decimal         `gorm:"column:fee_amount;type:numeric(10,2);not null"`
	StripeSessionID *string                 `gorm:"column:stripe_session_id;index"`
	CancelledBy     *uuid.UUID              `gorm:"column:cancelled_by;type:uuid"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`

	Doctor  *Doctor  `gorm:"foreignKey:DoctorID"`
	Patient *Patient `gorm:"foreignKey:PatientID"`
}
