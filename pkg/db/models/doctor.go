package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Doctor is a directory entry patients browse and book against.
type Doctor struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          *uuid.UUID      `gorm:"column:user_id;type:uuid;uniqueIndex"`
	FullName        string          `gorm:"column:full_name;not null"`
	Specialty       string          `gorm:"column:specialty;not null;index"`
	Qualifications  string          `gorm:"column:qualifications;not null"`
	Bio             *string         `gorm:"column:bio"`
	ConsultationFee decimal.Decimal `gorm:"column:consultation_fee;type:numeric(10,2);not null"`
	// AvailableDays holds lowercase weekday names, e.g. {monday,wednesday}.
	AvailableDays pq.StringArray `gorm:"column:available_days;type:text[];not null"`
	DayStartMin   int            `gorm:"column:day_start_min;not null;default:540"`
	DayEndMin     int            `gorm:"column:day_end_min;not null;default:1020"`
	SlotMinutes   int            `gorm:"column:slot_minutes;not null;default:30"`
	IsActive      bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
