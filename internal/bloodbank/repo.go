package bloodbank

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// Repository manages persistence for blood inventories and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListInventory(ctx context.Context) ([]models.BloodInventory, error)
	FindByGroup(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error)
	FindByGroupForUpdate(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error)
	CreateInventory(ctx context.Context, inv *models.BloodInventory) error
	SaveInventory(ctx context.Context, inv *models.BloodInventory) error
	DeleteInventory(ctx context.Context, inv *models.BloodInventory) error
	AppendHistory(ctx context.Context, entry *models.BloodHistoryEntry) error
	ListHistory(ctx context.Context, inventoryID uuid.UUID, params pagination.Params) ([]models.BloodHistoryEntry, error)
	ListBelowThreshold(ctx context.Context) ([]models.BloodInventory, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a blood bank repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListInventory(ctx context.Context) ([]models.BloodInventory, error) {
	var rows []models.BloodInventory
	if err := r.db.WithContext(ctx).
		Order("blood_group ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByGroup(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
	var row models.BloodInventory
	if err := r.db.WithContext(ctx).
		Where("blood_group = ?", group).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByGroupForUpdate takes a row lock so concurrent adjustments for the same
// group serialize on the database.
func (r *repository) FindByGroupForUpdate(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
	var row models.BloodInventory
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("blood_group = ?", group).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) CreateInventory(ctx context.Context, inv *models.BloodInventory) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *repository) SaveInventory(ctx context.Context, inv *models.BloodInventory) error {
	return r.db.WithContext(ctx).Save(inv).Error
}

// DeleteInventory removes the row; history entries cascade at the database.
func (r *repository) DeleteInventory(ctx context.Context, inv *models.BloodInventory) error {
	return r.db.WithContext(ctx).Delete(inv).Error
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.BloodHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListHistory returns entries chronological-ascending; the cursor names the
// last entry of the previous page.
func (r *repository) ListHistory(ctx context.Context, inventoryID uuid.UUID, params pagination.Params) ([]models.BloodHistoryEntry, error) {
	query := r.db.WithContext(ctx).
		Where("inventory_id = ?", inventoryID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at > ?) OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.BloodHistoryEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListBelowThreshold(ctx context.Context) ([]models.BloodInventory, error) {
	var rows []models.BloodInventory
	if err := r.db.WithContext(ctx).
		Where("minimum_threshold IS NOT NULL AND units_available <= minimum_threshold").
		Order("blood_group ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
