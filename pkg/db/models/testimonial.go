package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// Testimonial is a patient-submitted review pending moderation.
type Testimonial struct {
	ID        uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID uuid.UUID               `gorm:"column:patient_id;type:uuid;not null;index"`
	Rating    int                     `gorm:"column:rating;not null"`
	Body      string                  `gorm:"column:body;not null"`
	Status    enums.TestimonialStatus `gorm:"column:status;type:testimonial_status_enum;not null;default:'pending'"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
