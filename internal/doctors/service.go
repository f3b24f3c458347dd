package doctors

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

const (
	defaultDayStartMin = 540
	defaultDayEndMin   = 1020
	defaultSlotMinutes = 30
)

// Service exposes doctor directory operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Doctor, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Doctor, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Doctor, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*models.Doctor, error)
	List(ctx context.Context, filter ListFilter) ([]models.Doctor, error)
}

// CreateInput holds a new directory entry.
type CreateInput struct {
	UserID          *uuid.UUID
	FullName        string
	Specialty       string
	Qualifications  string
	Bio             *string
	ConsultationFee decimal.Decimal
	AvailableDays   []string
	DayStartMin     *int
	DayEndMin       *int
	SlotMinutes     *int
}

// UpdateInput carries the mutable directory fields. Nil pointers leave the
// stored value untouched.
type UpdateInput struct {
	FullName        *string
	Specialty       *string
	Qualifications  *string
	Bio             *string
	ConsultationFee *decimal.Decimal
	AvailableDays   []string
	DayStartMin     *int
	DayEndMin       *int
	SlotMinutes     *int
	IsActive        *bool
}

// ServiceParams bundles the dependencies for the doctor service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService constructs a doctor directory service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "doctor repository required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Doctor, error) {
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name is required")
	}
	specialty := strings.TrimSpace(input.Specialty)
	if specialty == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "specialty is required")
	}
	if input.ConsultationFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consultation fee cannot be negative")
	}
	days, err := normalizeDays(input.AvailableDays)
	if err != nil {
		return nil, err
	}

	doctor := &models.Doctor{
		ID:              uuid.New(),
		UserID:          input.UserID,
		FullName:        fullName,
		Specialty:       specialty,
		Qualifications:  strings.TrimSpace(input.Qualifications),
		Bio:             input.Bio,
		ConsultationFee: input.ConsultationFee,
		AvailableDays:   days,
		DayStartMin:     valueOr(input.DayStartMin, defaultDayStartMin),
		DayEndMin:       valueOr(input.DayEndMin, defaultDayEndMin),
		SlotMinutes:     valueOr(input.SlotMinutes, defaultSlotMinutes),
		IsActive:        true,
	}
	if err := validateWindow(doctor.DayStartMin, doctor.DayEndMin, doctor.SlotMinutes); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create doctor")
	}
	return doctor, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Doctor, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	return row, nil
}

func (s *service) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Doctor, error) {
	row, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, asLookupError(err)
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Doctor, error) {
	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name cannot be empty")
		}
		doctor.FullName = name
	}
	if input.Specialty != nil {
		specialty := strings.TrimSpace(*input.Specialty)
		if specialty == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "specialty cannot be empty")
		}
		doctor.Specialty = specialty
	}
	if input.Qualifications != nil {
		doctor.Qualifications = strings.TrimSpace(*input.Qualifications)
	}
	if input.Bio != nil {
		doctor.Bio = input.Bio
	}
	if input.ConsultationFee != nil {
		if input.ConsultationFee.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "consultation fee cannot be negative")
		}
		doctor.ConsultationFee = *input.ConsultationFee
	}
	if input.AvailableDays != nil {
		days, err := normalizeDays(input.AvailableDays)
		if err != nil {
			return nil, err
		}
		doctor.AvailableDays = days
	}
	if input.DayStartMin != nil {
		doctor.DayStartMin = *input.DayStartMin
	}
	if input.DayEndMin != nil {
		doctor.DayEndMin = *input.DayEndMin
	}
	if input.SlotMinutes != nil {
		doctor.SlotMinutes = *input.SlotMinutes
	}
	if input.IsActive != nil {
		doctor.IsActive = *input.IsActive
	}
	if err := validateWindow(doctor.DayStartMin, doctor.DayEndMin, doctor.SlotMinutes); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, doctor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save doctor")
	}
	return doctor, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*models.Doctor, error) {
	inactive := false
	return s.Update(ctx, id, UpdateInput{IsActive: &inactive})
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Doctor, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list doctors")
	}
	return rows, nil
}

func normalizeDays(days []string) ([]string, error) {
	if len(days) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available_days is required")
	}
	out := make([]string, 0, len(days))
	seen := map[string]bool{}
	for _, day := range days {
		name := strings.ToLower(strings.TrimSpace(day))
		if !IsValidWeekday(name) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid weekday "+day)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

func validateWindow(startMin, endMin, slotMinutes int) error {
	if startMin < 0 || endMin > 24*60 || endMin <= startMin {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid consultation window")
	}
	if slotMinutes <= 0 || (endMin-startMin)%slotMinutes != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "slot minutes must evenly divide the window")
	}
	return nil
}

func valueOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func asLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "doctor not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load doctor")
}
