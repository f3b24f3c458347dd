package bloodrequests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// ListFilter narrows staff-facing request listings.
type ListFilter struct {
	Status         *enums.BloodRequestStatus
	Group          *enums.BloodGroup
	RequesterEmail *string
	RequesterPhone *string
	Params         pagination.Params
}

// Repository manages persistence for blood requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.BloodRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error)
	Save(ctx context.Context, request *models.BloodRequest) error
	List(ctx context.Context, filter ListFilter) ([]models.BloodRequest, error)
	ListByRequester(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.BloodRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a blood request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.BloodRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
	var row models.BloodRequest
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
	var row models.BloodRequest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, request *models.BloodRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.BloodRequest, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Params.Limit))

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Group != nil {
		query = query.Where("blood_group = ?", *filter.Group)
	}
	if filter.RequesterEmail != nil {
		query = query.Where("LOWER(requester_email) = LOWER(?)", *filter.RequesterEmail)
	}
	if filter.RequesterPhone != nil {
		query = query.Where("requester_phone = ?", *filter.RequesterPhone)
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

	var rows []models.BloodRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByRequester(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.BloodRequest, error) {
	query := r.db.WithContext(ctx).
		Where("requester_user_id = ?", userID).
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

	var rows []models.BloodRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
