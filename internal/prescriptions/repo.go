package prescriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// Repository manages persistence for prescriptions and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, prescription *models.Prescription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Prescription, error)
	Save(ctx context.Context, prescription *models.Prescription) error
	ReplaceLines(ctx context.Context, prescriptionID uuid.UUID, lines []models.PrescriptionLine) error
	ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Prescription, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, params pagination.Params) ([]models.Prescription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a prescription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, prescription *models.Prescription) error {
	return r.db.WithContext(ctx).Create(prescription).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Prescription, error) {
	var row models.Prescription
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, prescription *models.Prescription) error {
	return r.db.WithContext(ctx).Omit("Lines").Save(prescription).Error
}

func (r *repository) ReplaceLines(ctx context.Context, prescriptionID uuid.UUID, lines []models.PrescriptionLine) error {
	if err := r.db.WithContext(ctx).
		Where("prescription_id = ?", prescriptionID).
		Delete(&models.PrescriptionLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Prescription, error) {
	return r.list(ctx, "patient_id = ?", patientID, params)
}

func (r *repository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, params pagination.Params) ([]models.Prescription, error) {
	return r.list(ctx, "doctor_id = ?", doctorID, params)
}

func (r *repository) list(ctx context.Context, cond string, id uuid.UUID, params pagination.Params) ([]models.Prescription, error) {
	query := r.db.WithContext(ctx).
		Preload("Lines").
		Where(cond, id).
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

	var rows []models.Prescription
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
