package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// Patient holds the medical-facing profile tied to a user account.
type Patient struct {
	ID               uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	DateOfBirth      *time.Time        `gorm:"column:date_of_birth"`
	Gender           *string           `gorm:"column:gender"`
	BloodGroup       *enums.BloodGroup `gorm:"column:blood_group;type:blood_group_enum"`
	Address          *string           `gorm:"column:address"`
	Allergies        pq.StringArray    `gorm:"column:allergies;type:text[]"`
	EmergencyContact *string           `gorm:"column:emergency_contact"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	User *User `gorm:"foreignKey:UserID"`
}
