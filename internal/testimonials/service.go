package testimonials

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

const maxBodyLength = 2000

// Service exposes testimonial submission, moderation, and listing.
type Service interface {
	Submit(ctx context.Context, patientID uuid.UUID, rating int, body string) (*models.Testimonial, error)
	Moderate(ctx context.Context, id uuid.UUID, status enums.TestimonialStatus) (*models.Testimonial, error)
	ListPublished(ctx context.Context, params pagination.Params) ([]models.Testimonial, error)
	List(ctx context.Context, filter ListFilter) ([]models.Testimonial, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Testimonial, error)
}

// ServiceParams wires the dependencies the service validates at startup.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires a testimonial service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "testimonial repository required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) Submit(ctx context.Context, patientID uuid.UUID, rating int, body string) (*models.Testimonial, error) {
	if patientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient is required")
	}
	if rating < 1 || rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "body is required")
	}
	if len(body) > maxBodyLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "body is too long")
	}

	testimonial := &models.Testimonial{
		ID:        uuid.New(),
		PatientID: patientID,
		Rating:    rating,
		Body:      body,
		Status:    enums.TestimonialStatusPending,
	}
	if err := s.repo.Create(ctx, testimonial); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create testimonial")
	}
	return testimonial, nil
}

func (s *service) Moderate(ctx context.Context, id uuid.UUID, status enums.TestimonialStatus) (*models.Testimonial, error) {
	if status != enums.TestimonialStatusPublished && status != enums.TestimonialStatusHidden {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be published or hidden")
	}

	testimonial, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "testimonial not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load testimonial")
	}
	if testimonial.Status == status {
		return testimonial, nil
	}

	testimonial.Status = status
	if err := s.repo.Save(ctx, testimonial); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save testimonial")
	}
	return testimonial, nil
}

func (s *service) ListPublished(ctx context.Context, params pagination.Params) ([]models.Testimonial, error) {
	return s.List(ctx, ListFilter{Status: enums.TestimonialStatusPublished, Params: params})
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Testimonial, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list testimonials")
	}
	return rows, nil
}

func (s *service) ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Testimonial, error) {
	rows, err := s.repo.ListForPatient(ctx, patientID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list testimonials")
	}
	return rows, nil
}
