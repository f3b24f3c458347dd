package testimonials

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// ListFilter narrows the moderation listing.
type ListFilter struct {
	Status enums.TestimonialStatus
	Params pagination.Params
}

// Repository manages testimonial persistence.
type Repository interface {
	Create(ctx context.Context, testimonial *models.Testimonial) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Testimonial, error)
	Save(ctx context.Context, testimonial *models.Testimonial) error
	List(ctx context.Context, filter ListFilter) ([]models.Testimonial, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Testimonial, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a testimonial repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, testimonial *models.Testimonial) error {
	return r.db.WithContext(ctx).Create(testimonial).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Testimonial, error) {
	var row models.Testimonial
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, testimonial *models.Testimonial) error {
	return r.db.WithContext(ctx).Save(testimonial).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Testimonial, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Params.Limit))

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	query, err := applyCursor(query, filter.Params)
	if err != nil {
		return nil, err
	}

	var rows []models.Testimonial
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Testimonial, error) {
	query := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	query, err := applyCursor(query, params)
	if err != nil {
		return nil, err
	}

	var rows []models.Testimonial
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applyCursor(query *gorm.DB, params pagination.Params) (*gorm.DB, error) {
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
	return query, nil
}
