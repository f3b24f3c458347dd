package doctors

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// ListFilter narrows the public doctor directory.
type ListFilter struct {
	Specialty  string
	IncludeAll bool
	Params     pagination.Params
}

// Repository manages persistence for the doctor directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, doctor *models.Doctor) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Doctor, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Doctor, error)
	Save(ctx context.Context, doctor *models.Doctor) error
	List(ctx context.Context, filter ListFilter) ([]models.Doctor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a doctor repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, doctor *models.Doctor) error {
	return r.db.WithContext(ctx).Create(doctor).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Doctor, error) {
	var row models.Doctor
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Doctor, error) {
	var row models.Doctor
	if err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, doctor *models.Doctor) error {
	return r.db.WithContext(ctx).Save(doctor).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Doctor, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Params.Limit))

	if !filter.IncludeAll {
		query = query.Where("is_active = ?", true)
	}
	if filter.Specialty != "" {
		query = query.Where("specialty = ?", filter.Specialty)
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

	var rows []models.Doctor
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
