package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBloodInventory OutboxAggregateType = "blood_inventory"
	AggregateBloodRequest   OutboxAggregateType = "blood_request"
	AggregateAppointment    OutboxAggregateType = "appointment"
	AggregateInvoice        OutboxAggregateType = "invoice"
	AggregatePharmacyOrder  OutboxAggregateType = "pharmacy_order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBloodInventory,
	AggregateBloodRequest,
	AggregateAppointment,
	AggregateInvoice,
	AggregatePharmacyOrder,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBloodInventoryAdjusted OutboxEventType = "blood_inventory_adjusted"
	EventBloodStockLow          OutboxEventType = "blood_stock_low"
	EventBloodRequestCreated    OutboxEventType = "blood_request_created"
	EventBloodRequestDecided    OutboxEventType = "blood_request_decided"
	EventBloodRequestFulfilled  OutboxEventType = "blood_request_fulfilled"
	EventAppointmentBooked      OutboxEventType = "appointment_booked"
	EventAppointmentCancelled   OutboxEventType = "appointment_cancelled"
	EventAppointmentReminderDue OutboxEventType = "appointment_reminder_due"
	EventInvoicePaid            OutboxEventType = "invoice_paid"
	EventPharmacyOrderPaid      OutboxEventType = "pharmacy_order_paid"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBloodInventoryAdjusted,
	EventBloodStockLow,
	EventBloodRequestCreated,
	EventBloodRequestDecided,
	EventBloodRequestFulfilled,
	EventAppointmentBooked,
	EventAppointmentCancelled,
	EventAppointmentReminderDue,
	EventInvoicePaid,
	EventPharmacyOrderPaid,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
