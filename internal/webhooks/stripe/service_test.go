package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/internal/billing"
	"github.com/carewellhq/carewell-backend/internal/payments"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeAppointments struct {
	appointment *models.Appointment
	calls       int
}

func (f *fakeAppointments) MarkPaidTx(ctx context.Context, tx *gorm.DB, sessionID string) (*models.Appointment, error) {
	f.calls++
	if f.appointment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found for session")
	}
	return f.appointment, nil
}

type fakePharmacy struct {
	order *models.PharmacyOrder
	calls int
}

func (f *fakePharmacy) MarkPaidTx(ctx context.Context, tx *gorm.DB, sessionID string) (*models.PharmacyOrder, error) {
	f.calls++
	if f.order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for session")
	}
	return f.order, nil
}

type fakeBilling struct {
	inputs []billing.PaymentInput
}

func (f *fakeBilling) RecordPaymentTx(ctx context.Context, tx *gorm.DB, input billing.PaymentInput) (*models.Invoice, error) {
	f.inputs = append(f.inputs, input)
	return &models.Invoice{ID: uuid.New(), PatientID: input.PatientID}, nil
}

func newWebhookService(t *testing.T, appointments *fakeAppointments, pharmacy *fakePharmacy, bills *fakeBilling) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Appointments:      appointments,
		Pharmacy:          pharmacy,
		Billing:           bills,
		TransactionRunner: fakeTxRunner{},
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func checkoutCompletedEvent(t *testing.T, sessionID, kind string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id": sessionID,
		"metadata": map[string]string{
			payments.MetadataKindKey:      kind,
			payments.MetadataReferenceKey: uuid.NewString(),
		},
	})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		ID:   fmt.Sprintf("evt_%s", uuid.NewString()),
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEvent_AppointmentSession(t *testing.T) {
	appointment := &models.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		FeeAmount: decimal.NewFromInt(150),
	}
	appointments := &fakeAppointments{appointment: appointment}
	pharmacy := &fakePharmacy{}
	bills := &fakeBilling{}
	svc := newWebhookService(t, appointments, pharmacy, bills)

	event := checkoutCompletedEvent(t, "cs_test_appt", payments.KindAppointment)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if appointments.calls != 1 || pharmacy.calls != 0 {
		t.Fatalf("expected appointment settlement only, got %d/%d", appointments.calls, pharmacy.calls)
	}
	if len(bills.inputs) != 1 {
		t.Fatalf("expected one invoice, got %d", len(bills.inputs))
	}
	input := bills.inputs[0]
	if input.Kind != enums.InvoiceKindAppointment || input.PatientID != appointment.PatientID {
		t.Fatalf("unexpected invoice input %+v", input)
	}
	if !input.Amount.Equal(appointment.FeeAmount) || input.SessionID != "cs_test_appt" {
		t.Fatalf("unexpected invoice input %+v", input)
	}
}

func TestHandleEvent_PharmacySession(t *testing.T) {
	order := &models.PharmacyOrder{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		TotalAmount: decimal.NewFromInt(21),
	}
	appointments := &fakeAppointments{}
	pharmacy := &fakePharmacy{order: order}
	bills := &fakeBilling{}
	svc := newWebhookService(t, appointments, pharmacy, bills)

	event := checkoutCompletedEvent(t, "cs_test_rx", payments.KindPharmacy)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if pharmacy.calls != 1 || appointments.calls != 0 {
		t.Fatalf("expected pharmacy settlement only, got %d/%d", pharmacy.calls, appointments.calls)
	}
	if len(bills.inputs) != 1 || bills.inputs[0].Kind != enums.InvoiceKindPharmacy {
		t.Fatalf("unexpected invoice inputs %+v", bills.inputs)
	}
	if bills.inputs[0].ReferenceID != order.ID {
		t.Fatal("expected invoice to reference the order")
	}
}

func TestHandleEvent_UnknownKind(t *testing.T) {
	svc := newWebhookService(t, &fakeAppointments{}, &fakePharmacy{}, &fakeBilling{})

	event := checkoutCompletedEvent(t, "cs_test_unknown", "subscription")
	err := svc.HandleEvent(context.Background(), event)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestHandleEvent_IgnoresOtherEventTypes(t *testing.T) {
	appointments := &fakeAppointments{}
	pharmacy := &fakePharmacy{}
	svc := newWebhookService(t, appointments, pharmacy, &fakeBilling{})

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected irrelevant event to be acknowledged, got %v", err)
	}
	if appointments.calls != 0 || pharmacy.calls != 0 {
		t.Fatal("irrelevant event must not settle anything")
	}
}

func TestHandleEvent_RequiresEventData(t *testing.T) {
	svc := newWebhookService(t, &fakeAppointments{}, &fakePharmacy{}, &fakeBilling{})

	err := svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeCheckoutSessionCompleted})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
