package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// BloodInventoryAdjustedEvent is emitted on every balance change to an inventory row.
type BloodInventoryAdjustedEvent struct {
	InventoryID  uuid.UUID              `json:"inventory_id"`
	BloodGroup   enums.BloodGroup       `json:"blood_group"`
	Change       int                    `json:"change"`
	BalanceAfter int                    `json:"balance_after"`
	Type         enums.BloodHistoryType `json:"type"`
}

// BloodStockLowEvent tells downstream systems a group fell to or below its threshold.
type BloodStockLowEvent struct {
	InventoryID      uuid.UUID        `json:"inventory_id"`
	BloodGroup       enums.BloodGroup `json:"blood_group"`
	UnitsAvailable   int              `json:"units_available"`
	MinimumThreshold int              `json:"minimum_threshold"`
}

// BloodRequestCreatedEvent signals a new request awaiting review.
type BloodRequestCreatedEvent struct {
	RequestID      uuid.UUID                  `json:"request_id"`
	BloodGroup     enums.BloodGroup           `json:"blood_group"`
	UnitsRequested int                        `json:"units_requested"`
	Priority       enums.BloodRequestPriority `json:"priority"`
}

// BloodRequestDecidedEvent is emitted when staff approve, reject, or cancel a request.
type BloodRequestDecidedEvent struct {
	RequestID  uuid.UUID                `json:"request_id"`
	BloodGroup enums.BloodGroup         `json:"blood_group"`
	Status     enums.BloodRequestStatus `json:"status"`
	Reason     string                   `json:"reason,omitempty"`
}

// BloodRequestFulfilledEvent surfaces the stock debit when a request is fulfilled.
type BloodRequestFulfilledEvent struct {
	RequestID      uuid.UUID        `json:"request_id"`
	BloodGroup     enums.BloodGroup `json:"blood_group"`
	UnitsDispensed int              `json:"units_dispensed"`
	BalanceAfter   int              `json:"balance_after"`
}

// AppointmentBookedEvent is emitted when a consultation slot is reserved.
type AppointmentBookedEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}

// AppointmentCancelledEvent is emitted whenever a scheduled appointment is cancelled.
type AppointmentCancelledEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

// AppointmentReminderDueEvent tells downstream systems to notify the patient.
type AppointmentReminderDueEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}

// InvoicePaidEvent is emitted when a Stripe webhook marks an invoice paid.
type InvoicePaidEvent struct {
	InvoiceID uuid.UUID         `json:"invoice_id"`
	PatientID uuid.UUID         `json:"patient_id"`
	Kind      enums.InvoiceKind `json:"kind"`
	Amount    string            `json:"amount"`
	PaidAt    time.Time         `json:"paid_at"`
}

// PharmacyOrderPaidEvent surfaces the stock debit after checkout completes.
type PharmacyOrderPaidEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Total     string    `json:"total"`
	PaidAt    time.Time `json:"paid_at"`
}
