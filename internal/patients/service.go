package patients

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

// Service exposes patient profile operations.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Patient, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*models.Patient, error)
	List(ctx context.Context, filter ListFilter) ([]models.Patient, error)
}

// UpdateProfileInput carries the mutable profile fields. Nil pointers leave
// the stored value untouched.
type UpdateProfileInput struct {
	DateOfBirth      *time.Time
	Gender           *string
	BloodGroup       *enums.BloodGroup
	Address          *string
	Allergies        []string
	EmergencyContact *string
}

// ServiceParams bundles the dependencies for the patient service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService constructs a patient service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "patient repository required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	return row, nil
}

func (s *service) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Patient, error) {
	row, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, asLookupError(err)
	}
	return row, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*models.Patient, error) {
	if input.BloodGroup != nil && !input.BloodGroup.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid blood group")
	}

	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, asLookupError(err)
	}

	if input.DateOfBirth != nil {
		profile.DateOfBirth = input.DateOfBirth
	}
	if input.Gender != nil {
		profile.Gender = input.Gender
	}
	if input.BloodGroup != nil {
		profile.BloodGroup = input.BloodGroup
	}
	if input.Address != nil {
		profile.Address = input.Address
	}
	if input.Allergies != nil {
		profile.Allergies = input.Allergies
	}
	if input.EmergencyContact != nil {
		profile.EmergencyContact = input.EmergencyContact
	}

	if err := s.repo.Save(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save profile")
	}
	return profile, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Patient, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list patients")
	}
	return rows, nil
}

func asLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "patient not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load patient")
}
