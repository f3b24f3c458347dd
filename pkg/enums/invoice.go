package enums

import "fmt"

// InvoiceKind names the billable surface an invoice originated from.
type InvoiceKind string

const (
	InvoiceKindAppointment InvoiceKind = "appointment"
	InvoiceKindPharmacy    InvoiceKind = "pharmacy"
	InvoiceKindBlood       InvoiceKind = "blood"
)

var validInvoiceKinds = []InvoiceKind{
	InvoiceKindAppointment,
	InvoiceKindPharmacy,
	InvoiceKindBlood,
}

// IsValid reports whether the value is a known InvoiceKind.
func (k InvoiceKind) IsValid() bool {
	for _, candidate := range validInvoiceKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseInvoiceKind converts raw input into InvoiceKind.
func ParseInvoiceKind(value string) (InvoiceKind, error) {
	for _, candidate := range validInvoiceKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice kind %q", value)
}

// InvoiceStatus tracks payment settlement of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusPending,
	InvoiceStatusPaid,
	InvoiceStatusVoid,
}

// IsValid reports whether the value is a known InvoiceStatus.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
