package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Medicine is a pharmacy catalog entry.
type Medicine struct {
	ID                   uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name                 string          `gorm:"column:name;not null;uniqueIndex"`
	Category             string          `gorm:"column:category;not null;index"`
	Manufacturer         string          `gorm:"column:manufacturer;not null"`
	Description          *string         `gorm:"column:description"`
	Price                decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Stock                int             `gorm:"column:stock;not null;default:0"`
	RequiresPrescription bool            `gorm:"column:requires_prescription;not null;default:false"`
	IsActive             bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
