package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/internal/doctors"
	"github.com/carewellhq/carewell-backend/internal/payments"
	"github.com/carewellhq/carewell-backend/pkg/db"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// Service exposes the appointment booking lifecycle.
type Service interface {
	Book(ctx context.Context, input BookInput) (*models.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]models.Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Appointment, error)
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]time.Time, error)
	Complete(ctx context.Context, id uuid.UUID, actor Actor) (*models.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.Appointment, error)
	Checkout(ctx context.Context, id uuid.UUID, patientID uuid.UUID) (*CheckoutResult, error)
	MarkPaidTx(ctx context.Context, tx *gorm.DB, sessionID string) (*models.Appointment, error)
}

// Actor is the authenticated identity driving a lifecycle change.
type Actor struct {
	UserID    uuid.UUID
	PatientID *uuid.UUID
	Role      enums.UserRole
}

// BookInput reserves one slot against a doctor.
type BookInput struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	ScheduledAt time.Time
	Reason      *string
	ActorUserID uuid.UUID
}

// CheckoutResult carries the Stripe redirect for the booking fee.
type CheckoutResult struct {
	SessionID   string
	RedirectURL string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type checkoutURLs interface {
	SuccessURL() string
	CancelURL() string
}

// ServiceParams wires the dependencies the service validates at startup.
type ServiceParams struct {
	Repo     Repository
	Doctors  doctors.Service
	TxRunner txRunner
	Outbox   eventEmitter
	Checkout payments.CheckoutClient
	URLs     checkoutURLs
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	doctors  doctors.Service
	tx       txRunner
	outbox   eventEmitter
	checkout payments.CheckoutClient
	urls     checkoutURLs
	logg     *logger.Logger
}

// NewService wires an appointment service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "appointment repository required")
	}
	if params.Doctors == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "doctor service required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &service{
		repo:     params.Repo,
		doctors:  params.Doctors,
		tx:       params.TxRunner,
		outbox:   params.Outbox,
		checkout: params.Checkout,
		urls:     params.URLs,
		logg:     params.Logger,
	}, nil
}

func (s *service) Book(ctx context.Context, input BookInput) (*models.Appointment, error) {
	doctor, err := s.doctors.Get(ctx, input.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor is not accepting appointments")
	}

	slot := input.ScheduledAt.UTC().Truncate(time.Minute)
	if !slot.After(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment must be in the future")
	}
	if !doctors.IsBookableSlot(doctor, slot) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested time is outside the doctor's schedule")
	}

	appt := &models.Appointment{
		ID:            uuid.New(),
		PatientID:     input.PatientID,
		DoctorID:      doctor.ID,
		ScheduledAt:   slot,
		Reason:        input.Reason,
		Status:        enums.AppointmentStatusScheduled,
		PaymentStatus: enums.PaymentStatusUnpaid,
		FeeAmount:     doctor.ConsultationFee,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		taken, err := repo.HasActiveSlot(ctx, doctor.ID, slot)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slot")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "slot is already booked")
		}

		if err := repo.Create(ctx, appt); err != nil {
			if db.IsUniqueViolation(err, "ux_appointments_doctor_active_slot") {
				return pkgerrors.New(pkgerrors.CodeConflict, "slot is already booked")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create appointment")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventAppointmentBooked,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appt.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID},
			Data: payloads.AppointmentBookedEvent{
				AppointmentID: appt.ID,
				PatientID:     appt.PatientID,
				DoctorID:      appt.DoctorID,
				ScheduledAt:   appt.ScheduledAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit booked event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	appt.Doctor = doctor
	return appt, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	return appt, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Appointment, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list appointments")
	}
	return rows, nil
}

func (s *service) ListForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.Appointment, error) {
	rows, err := s.repo.ListForPatient(ctx, patientID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list appointments")
	}
	return rows, nil
}

func (s *service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]time.Time, error) {
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	all := doctors.SlotTimes(doctor, date.UTC())
	if len(all) == 0 {
		return nil, nil
	}

	dayStart := all[0].Truncate(24 * time.Hour)
	booked, err := s.repo.ListForDoctorOn(ctx, doctorID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list booked slots")
	}

	taken := make(map[int64]bool, len(booked))
	for _, appt := range booked {
		taken[appt.ScheduledAt.UTC().Unix()] = true
	}

	free := make([]time.Time, 0, len(all))
	for _, slot := range all {
		if !taken[slot.Unix()] {
			free = append(free, slot)
		}
	}
	return free, nil
}

func (s *service) Complete(ctx context.Context, id uuid.UUID, actor Actor) (*models.Appointment, error) {
	var appt *models.Appointment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := lockAppointment(ctx, repo, id)
		if err != nil {
			return err
		}
		if row.Status != enums.AppointmentStatusScheduled {
			return pkgerrors.New(
				pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot complete a %s appointment", row.Status),
			)
		}
		row.Status = enums.AppointmentStatusCompleted
		if err := repo.Save(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save appointment")
		}
		appt = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.Appointment, error) {
	var appt *models.Appointment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := lockAppointment(ctx, repo, id)
		if err != nil {
			return err
		}

		if !actor.Role.IsStaff() {
			if actor.PatientID == nil || *actor.PatientID != row.PatientID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "cannot cancel another patient's appointment")
			}
		}
		if row.Status != enums.AppointmentStatusScheduled {
			return pkgerrors.New(
				pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot cancel a %s appointment", row.Status),
			)
		}

		actorID := actor.UserID
		row.Status = enums.AppointmentStatusCancelled
		row.CancelledBy = &actorID
		if err := repo.Save(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save appointment")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventAppointmentCancelled,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   row.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.AppointmentCancelledEvent{
				AppointmentID: row.ID,
				PatientID:     row.PatientID,
				DoctorID:      row.DoctorID,
				CancelledAt:   time.Now().UTC(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit cancelled event")
		}
		appt = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *service) Checkout(ctx context.Context, id uuid.UUID, patientID uuid.UUID) (*CheckoutResult, error) {
	if s.checkout == nil || s.urls == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured")
	}

	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	if appt.PatientID != patientID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot pay for another patient's appointment")
	}
	if appt.Status != enums.AppointmentStatusScheduled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "appointment is not payable")
	}
	if appt.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "appointment is already paid")
	}

	name := "Consultation"
	if appt.Doctor != nil {
		name = "Consultation with " + appt.Doctor.FullName
	}
	params := payments.BuildSessionParams(
		payments.KindAppointment,
		appt.ID,
		[]payments.LineItem{{Name: name, AmountCents: payments.AmountToCents(appt.FeeAmount)}},
		s.urls.SuccessURL(),
		s.urls.CancelURL(),
	)

	session, err := s.checkout.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	appt.StripeSessionID = &session.ID
	if err := s.repo.Save(ctx, appt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session id")
	}

	return &CheckoutResult{SessionID: session.ID, RedirectURL: session.URL}, nil
}

// MarkPaidTx flips the payment status inside the caller's transaction so the
// webhook can write the invoice atomically with the appointment update.
func (s *service) MarkPaidTx(ctx context.Context, tx *gorm.DB, sessionID string) (*models.Appointment, error) {
	repo := s.repo.WithTx(tx)
	appt, err := repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found for session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment")
	}
	if appt.PaymentStatus == enums.PaymentStatusPaid {
		return appt, nil
	}

	appt.PaymentStatus = enums.PaymentStatusPaid
	if err := repo.Save(ctx, appt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save appointment")
	}
	return appt, nil
}

func lockAppointment(ctx context.Context, repo Repository, id uuid.UUID) (*models.Appointment, error) {
	row, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, asLookupError(err)
	}
	return row, nil
}

func asLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment")
}
