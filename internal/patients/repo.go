package patients

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// ListFilter narrows staff-facing patient listings.
type ListFilter struct {
	Search string
	Params pagination.Params
}

// Repository manages persistence for patient profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, patient *models.Patient) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Patient, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Patient, error)
	Save(ctx context.Context, patient *models.Patient) error
	List(ctx context.Context, filter ListFilter) ([]models.Patient, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a patient repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, patient *models.Patient) error {
	return r.db.WithContext(ctx).Create(patient).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	var row models.Patient
	if err := r.db.WithContext(ctx).
		Preload("User").
		First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Patient, error) {
	var row models.Patient
	if err := r.db.WithContext(ctx).
		Preload("User").
		First(&row, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, patient *models.Patient) error {
	return r.db.WithContext(ctx).Omit("User").Save(patient).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Patient, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Patient{}).
		Preload("User").
		Joins("JOIN users ON users.id = patients.user_id").
		Order("patients.created_at DESC").
		Order("patients.id DESC").
		Limit(pagination.LimitWithBuffer(filter.Params.Limit))

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where(
			"users.first_name LIKE ? OR users.last_name LIKE ? OR users.email LIKE ?",
			like, like, like,
		)
	}

	cursor, err := pagination.ParseCursor(filter.Params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(patients.created_at < ?) OR (patients.created_at = ? AND patients.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Patient
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
