package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// BloodRequest is a patient-facing ask for units, reviewed by admins.
type BloodRequest struct {
	ID              uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BloodGroup      enums.BloodGroup           `gorm:"column:blood_group;type:blood_group_enum;not null;index"`
	UnitsRequested  int                        `gorm:"column:units_requested;not null"`
	Priority        enums.BloodRequestPriority `gorm:"column:priority;type:blood_request_priority_enum;not null;default:'medium'"`
	Status          enums.BloodRequestStatus   `gorm:"column:status;type:blood_request_status_enum;not null;default:'pending';index"`
	RequesterUserID *uuid.UUID                 `gorm:"column:requester_user_id;type:uuid;index"`
	RequesterName   string                     `gorm:"column:requester_name;not null"`
	RequesterEmail  string                     `gorm:"column:requester_email;not null;index"`
	RequesterPhone  *string                    `gorm:"column:requester_phone;index"`
	Reason          *string                    `gorm:"column:reason"`
	NeededOn        *time.Time                 `gorm:"column:needed_on"`
	ProcessedBy     *uuid.UUID                 `gorm:"column:processed_by;type:uuid"`
	ProcessedAt     *time.Time                 `gorm:"column:processed_at"`
	RejectionReason *string                    `gorm:"column:rejection_reason"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
