package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// Service exposes invoice reads plus the settlement write used by the
// Stripe webhook.
type Service interface {
	RecordPaymentTx(ctx context.Context, tx *gorm.DB, input PaymentInput) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Invoice, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]models.Invoice, error)
	Void(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

// Actor identifies the authenticated caller for authorization checks.
type Actor struct {
	UserID    uuid.UUID
	PatientID *uuid.UUID
	Role      enums.UserRole
}

// PaymentInput records one settled Stripe checkout session as an invoice.
type PaymentInput struct {
	PatientID   uuid.UUID
	Kind        enums.InvoiceKind
	ReferenceID uuid.UUID
	Amount      decimal.Decimal
	SessionID   string
	PaidAt      time.Time
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the dependencies the service validates at startup.
type ServiceParams struct {
	Repo   Repository
	Outbox eventEmitter
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	outbox eventEmitter
	logg   *logger.Logger
}

// NewService wires a billing service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &service{
		repo:   params.Repo,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

// RecordPaymentTx writes a paid invoice for the session inside the caller's
// transaction. Redelivered webhooks find the existing invoice and return it
// without emitting a second event.
func (s *service) RecordPaymentTx(ctx context.Context, tx *gorm.DB, input PaymentInput) (*models.Invoice, error) {
	if input.PatientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient is required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice kind")
	}
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.FindBySessionID(ctx, input.SessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	referenceID := input.ReferenceID
	invoice := &models.Invoice{
		ID:              uuid.New(),
		PatientID:       input.PatientID,
		Kind:            input.Kind,
		ReferenceID:     &referenceID,
		Amount:          input.Amount,
		Status:          enums.InvoiceStatusPaid,
		StripeSessionID: &input.SessionID,
		PaidAt:          &paidAt,
	}
	if err := repo.Create(ctx, invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventInvoicePaid,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Version:       1,
		Data: payloads.InvoicePaidEvent{
			InvoiceID: invoice.ID,
			PatientID: invoice.PatientID,
			Kind:      invoice.Kind,
			Amount:    invoice.Amount.String(),
			PaidAt:    paidAt,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit invoice paid event")
	}
	return invoice, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	if !actor.Role.IsStaff() {
		if actor.PatientID == nil || *actor.PatientID != invoice.PatientID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this invoice")
		}
	}
	return invoice, nil
}

func (s *service) ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Invoice, error) {
	rows, err := s.repo.ListForPatient(ctx, patientID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return rows, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Invoice, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return rows, nil
}

func (s *service) Void(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	if invoice.Status == enums.InvoiceStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "paid invoices cannot be voided")
	}
	if invoice.Status == enums.InvoiceStatusVoid {
		return invoice, nil
	}

	invoice.Status = enums.InvoiceStatusVoid
	if err := s.repo.Save(ctx, invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save invoice")
	}
	return invoice, nil
}

func asLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
}
