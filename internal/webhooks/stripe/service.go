package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/internal/billing"
	"github.com/carewellhq/carewell-backend/internal/payments"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

type appointmentSettler interface {
	MarkPaidTx(ctx context.Context, tx *gorm.DB, sessionID string) (*models.Appointment, error)
}

type pharmacySettler interface {
	MarkPaidTx(ctx context.Context, tx *gorm.DB, sessionID string) (*models.PharmacyOrder, error)
}

type invoiceRecorder interface {
	RecordPaymentTx(ctx context.Context, tx *gorm.DB, input billing.PaymentInput) (*models.Invoice, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the dependencies the service validates at startup.
type ServiceParams struct {
	Appointments      appointmentSettler
	Pharmacy          pharmacySettler
	Billing           invoiceRecorder
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service settles Stripe checkout sessions against the domain they paid for.
type Service struct {
	appointments appointmentSettler
	pharmacy     pharmacySettler
	billing      invoiceRecorder
	txRunner     txRunner
	logg         *logger.Logger
}

// NewService wires a Stripe webhook service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Appointments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "appointments service required")
	}
	if params.Pharmacy == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service required")
	}
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		appointments: params.Appointments,
		pharmacy:     params.Pharmacy,
		billing:      params.Billing,
		txRunner:     params.TransactionRunner,
		logg:         params.Logger,
	}, nil
}

// HandleEvent routes a verified Stripe event. Event types the platform does
// not care about are acknowledged without work.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.settleSession(ctx, &session)
	default:
		return nil
	}
}

func (s *Service) settleSession(ctx context.Context, session *stripe.CheckoutSession) error {
	if session == nil || session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}

	kind := session.Metadata[payments.MetadataKindKey]
	switch kind {
	case payments.KindAppointment:
		return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			appointment, err := s.appointments.MarkPaidTx(ctx, tx, session.ID)
			if err != nil {
				return err
			}
			_, err = s.billing.RecordPaymentTx(ctx, tx, billing.PaymentInput{
				PatientID:   appointment.PatientID,
				Kind:        enums.InvoiceKindAppointment,
				ReferenceID: appointment.ID,
				Amount:      appointment.FeeAmount,
				SessionID:   session.ID,
			})
			return err
		})
	case payments.KindPharmacy:
		return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.pharmacy.MarkPaidTx(ctx, tx, session.ID)
			if err != nil {
				return err
			}
			_, err = s.billing.RecordPaymentTx(ctx, tx, billing.PaymentInput{
				PatientID:   order.PatientID,
				Kind:        enums.InvoiceKindPharmacy,
				ReferenceID: order.ID,
				Amount:      order.TotalAmount,
				SessionID:   session.ID,
			})
			return err
		})
	default:
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("checkout session %s carries unknown kind %q", session.ID, kind))
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout session kind")
	}
}
