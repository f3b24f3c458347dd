package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// Invoice records one billable charge against a patient.
type Invoice struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID       uuid.UUID           `gorm:"column:patient_id;type:uuid;not null;index"`
	Kind            enums.InvoiceKind   `gorm:"column:kind;type:invoice_kind_enum;not null"`
	ReferenceID     *uuid.UUID          `gorm:"column:reference_id;type:uuid"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Status          enums.InvoiceStatus `gorm:"column:status;type:invoice_status_enum;not null;default:'pending'"`
	StripeSessionID *string             `gorm:"column:stripe_session_id;index"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
