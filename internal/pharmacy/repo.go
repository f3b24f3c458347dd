package pharmacy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// CatalogFilter narrows the public medicine listing.
type CatalogFilter struct {
	Search     string
	Category   string
	IncludeAll bool
	Params     pagination.Params
}

// Repository manages persistence for the pharmacy catalog, carts, and orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateMedicine(ctx context.Context, medicine *models.Medicine) error
	FindMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error)
	FindMedicineForUpdate(ctx context.Context, id uuid.UUID) (*models.Medicine, error)
	SaveMedicine(ctx context.Context, medicine *models.Medicine) error
	ListMedicines(ctx context.Context, filter CatalogFilter) ([]models.Medicine, error)

	UpsertCartItem(ctx context.Context, item *models.CartItem) error
	RemoveCartItem(ctx context.Context, patientID, medicineID uuid.UUID) error
	ClearCart(ctx context.Context, patientID uuid.UUID) error
	ListCart(ctx context.Context, patientID uuid.UUID) ([]models.CartItem, error)

	CreateOrder(ctx context.Context, order *models.PharmacyOrder) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.PharmacyOrder, error)
	FindOrderBySessionID(ctx context.Context, sessionID string) (*models.PharmacyOrder, error)
	SaveOrder(ctx context.Context, order *models.PharmacyOrder) error
	ListOrdersForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.PharmacyOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a pharmacy repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateMedicine(ctx context.Context, medicine *models.Medicine) error {
	return r.db.WithContext(ctx).Create(medicine).Error
}

func (r *repository) FindMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error) {
	var row models.Medicine
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindMedicineForUpdate(ctx context.Context, id uuid.UUID) (*models.Medicine, error) {
	var row models.Medicine
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SaveMedicine(ctx context.Context, medicine *models.Medicine) error {
	return r.db.WithContext(ctx).Save(medicine).Error
}

func (r *repository) ListMedicines(ctx context.Context, filter CatalogFilter) ([]models.Medicine, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Params.Limit))

	if !filter.IncludeAll {
		query = query.Where("is_active = ?", true)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR manufacturer LIKE ?", like, like)
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

	var rows []models.Medicine
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Omit("Medicine").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "patient_id"}, {Name: "medicine_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error
}

func (r *repository) RemoveCartItem(ctx context.Context, patientID, medicineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("patient_id = ? AND medicine_id = ?", patientID, medicineID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ClearCart(ctx context.Context, patientID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ListCart(ctx context.Context, patientID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Medicine").
		Where("patient_id = ?", patientID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.PharmacyOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.PharmacyOrder, error) {
	var row models.PharmacyOrder
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Medicine").
		First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindOrderBySessionID(ctx context.Context, sessionID string) (*models.PharmacyOrder, error) {
	var row models.PharmacyOrder
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&row, "stripe_session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SaveOrder(ctx context.Context, order *models.PharmacyOrder) error {
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *repository) ListOrdersForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.PharmacyOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
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

	var rows []models.PharmacyOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
