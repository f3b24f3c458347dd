package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem holds one medicine line in a patient's cart.
type CartItem struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID  uuid.UUID `gorm:"column:patient_id;type:uuid;not null;uniqueIndex:ux_cart_items_patient_medicine"`
	MedicineID uuid.UUID `gorm:"column:medicine_id;type:uuid;not null;uniqueIndex:ux_cart_items_patient_medicine"`
	Quantity   int       `gorm:"column:quantity;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Medicine *Medicine `gorm:"foreignKey:MedicineID"`
}
