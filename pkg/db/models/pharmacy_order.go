package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// PharmacyOrder snapshots a cart at checkout time.
type PharmacyOrder struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID       uuid.UUID           `gorm:"column:patient_id;type:uuid;not null;index"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:payment_status_enum;not null;default:'unpaid'"`
	StripeSessionID *string             `gorm:"column:stripe_session_id;index"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []PharmacyOrderItem `gorm:"foreignKey:OrderID"`
}

// PharmacyOrderItem is one priced line on a pharmacy order.
type PharmacyOrderItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	MedicineID uuid.UUID       `gorm:"column:medicine_id;type:uuid;not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`

	Medicine *Medicine `gorm:"foreignKey:MedicineID"`
}
