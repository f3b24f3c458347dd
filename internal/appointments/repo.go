package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// ListFilter narrows staff-facing appointment listings.
type ListFilter struct {
	Status   *enums.AppointmentStatus
	DoctorID *uuid.UUID
	Params   pagination.Params
}

// Repository manages persistence for appointments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, appt *models.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Appointment, error)
	Save(ctx context.Context, appt *models.Appointment) error
	List(ctx context.Context, filter ListFilter) ([]models.Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Appointment, error)
	ListForDoctorOn(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]models.Appointment, error)
	HasActiveSlot(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an appointment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, appt *models.Appointment) error {
	return r.db.WithContext(ctx).Omit("Doctor", "Patient").Create(appt).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var row models.Appointment
	if err := r.db.WithContext(ctx).
		Preload("Doctor").
		First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var row models.Appointment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Appointment, error) {
	var row models.Appointment
	if err := r.db.WithContext(ctx).
		First(&row, "stripe_session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, appt *models.Appointment) error {
	return r.db.WithContext(ctx).Omit("Doctor", "Patient").Save(appt).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Appointment, error) {
	query := r.db.WithContext(ctx).
		Preload("Doctor").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Params.Limit))

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.DoctorID != nil {
		query = query.Where("doctor_id = ?", *filter.DoctorID)
	}

	cursor, err := pagination.ParseCursor(filter.Params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Appointment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Appointment, error) {
	query := r.db.WithContext(ctx).
		Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Appointment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListForDoctorOn(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]models.Appointment, error) {
	var rows []models.Appointment
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Where("status = ?", enums.AppointmentStatusScheduled).
		Where("scheduled_at >= ? AND scheduled_at < ?", dayStart, dayEnd).
		Order("scheduled_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) HasActiveSlot(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("doctor_id = ?", doctorID).
		Where("scheduled_at = ?", at).
		Where("status = ?", enums.AppointmentStatusScheduled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	var rows []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Doctor").
		Where("status = ?", enums.AppointmentStatusScheduled).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to).
		Order("scheduled_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
