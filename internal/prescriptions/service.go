package prescriptions

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// Service exposes prescription authoring and retrieval.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Prescription, error)
	Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Prescription, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor Actor) (*models.Prescription, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Prescription, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, params pagination.Params) ([]models.Prescription, error)
}

// Actor identifies the authenticated caller for authorization checks.
type Actor struct {
	UserID    uuid.UUID
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Role      enums.UserRole
}

// LineInput is one medication directive on an incoming prescription.
type LineInput struct {
	MedicineID   *uuid.UUID
	MedicineName string
	Dosage       string
	DurationDays int
	Instructions *string
}

// CreateInput holds a new prescription authored by a doctor.
type CreateInput struct {
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	AppointmentID *uuid.UUID
	Notes         *string
	Lines         []LineInput
}

// UpdateInput carries the mutable prescription fields. A nil Lines slice
// leaves the stored lines untouched.
type UpdateInput struct {
	Notes *string
	Lines []LineInput
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type medicineCatalog interface {
	GetMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error)
}

// ServiceParams wires the dependencies the service validates at startup.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Catalog  medicineCatalog
	Logger   *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	catalog medicineCatalog
	logg    *logger.Logger
}

// NewService wires a prescription service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "prescription repository required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TxRunner,
		catalog: params.Catalog,
		logg:    params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Prescription, error) {
	if input.DoctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor is required")
	}
	if input.PatientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient is required")
	}

	prescription := &models.Prescription{
		ID:            uuid.New(),
		DoctorID:      input.DoctorID,
		PatientID:     input.PatientID,
		AppointmentID: input.AppointmentID,
		Notes:         input.Notes,
	}
	lines, err := s.buildLines(ctx, prescription.ID, input.Lines)
	if err != nil {
		return nil, err
	}
	prescription.Lines = lines

	if err := s.repo.Create(ctx, prescription); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create prescription")
	}
	return prescription, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Prescription, error) {
	prescription, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	if !canView(prescription, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this prescription")
	}
	return prescription, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor Actor) (*models.Prescription, error) {
	prescription, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	if actor.DoctorID == nil || *actor.DoctorID != prescription.DoctorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the prescribing doctor can update a prescription")
	}

	if input.Notes != nil {
		prescription.Notes = input.Notes
	}
	var lines []models.PrescriptionLine
	if input.Lines != nil {
		lines, err = s.buildLines(ctx, prescription.ID, input.Lines)
		if err != nil {
			return nil, err
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Save(ctx, prescription); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save prescription")
		}
		if input.Lines != nil {
			if err := repo.ReplaceLines(ctx, prescription.ID, lines); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace prescription lines")
			}
			prescription.Lines = lines
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prescription, nil
}

func (s *service) ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Prescription, error) {
	rows, err := s.repo.ListForPatient(ctx, patientID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list prescriptions")
	}
	return rows, nil
}

func (s *service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, params pagination.Params) ([]models.Prescription, error) {
	rows, err := s.repo.ListForDoctor(ctx, doctorID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list prescriptions")
	}
	return rows, nil
}

// buildLines validates the incoming lines and resolves catalog references.
// A line that points at a catalog medicine inherits its name unless one is
// given explicitly.
func (s *service) buildLines(ctx context.Context, prescriptionID uuid.UUID, inputs []LineInput) ([]models.PrescriptionLine, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one prescription line is required")
	}

	lines := make([]models.PrescriptionLine, 0, len(inputs))
	for _, input := range inputs {
		name := strings.TrimSpace(input.MedicineName)
		if input.MedicineID != nil && s.catalog != nil {
			medicine, err := s.catalog.GetMedicine(ctx, *input.MedicineID)
			if err != nil {
				return nil, err
			}
			if name == "" {
				name = medicine.Name
			}
		}
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "medicine name is required")
		}
		if strings.TrimSpace(input.Dosage) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "dosage is required")
		}
		if input.DurationDays <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration must be positive")
		}
		lines = append(lines, models.PrescriptionLine{
			ID:             uuid.New(),
			PrescriptionID: prescriptionID,
			MedicineID:     input.MedicineID,
			MedicineName:   name,
			Dosage:         strings.TrimSpace(input.Dosage),
			DurationDays:   input.DurationDays,
			Instructions:   input.Instructions,
		})
	}
	return lines, nil
}

func canView(prescription *models.Prescription, actor Actor) bool {
	if actor.Role.IsStaff() {
		return true
	}
	if actor.DoctorID != nil && *actor.DoctorID == prescription.DoctorID {
		return true
	}
	if actor.PatientID != nil && *actor.PatientID == prescription.PatientID {
		return true
	}
	return false
}

func asLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "prescription not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prescription")
}
