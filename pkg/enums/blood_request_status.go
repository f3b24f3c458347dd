package enums

import "fmt"

// BloodRequestStatus tracks the lifecycle of a patient blood request.
type BloodRequestStatus string

const (
	BloodRequestStatusPending   BloodRequestStatus = "pending"
	BloodRequestStatusApproved  BloodRequestStatus = "approved"
	BloodRequestStatusRejected  BloodRequestStatus = "rejected"
	BloodRequestStatusFulfilled BloodRequestStatus = "fulfilled"
	BloodRequestStatusCancelled BloodRequestStatus = "cancelled"
)

var validBloodRequestStatuses = []BloodRequestStatus{
	BloodRequestStatusPending,
	BloodRequestStatusApproved,
	BloodRequestStatusRejected,
	BloodRequestStatusFulfilled,
	BloodRequestStatusCancelled,
}

// bloodRequestTransitions is the server-authoritative transition graph.
// pending fans out to approved/rejected/cancelled; approved may only become
// fulfilled; the remaining states are terminal.
var bloodRequestTransitions = map[BloodRequestStatus][]BloodRequestStatus{
	BloodRequestStatusPending: {
		BloodRequestStatusApproved,
		BloodRequestStatusRejected,
		BloodRequestStatusCancelled,
	},
	BloodRequestStatusApproved: {
		BloodRequestStatusFulfilled,
	},
}

// String implements fmt.Stringer.
func (s BloodRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BloodRequestStatus.
func (s BloodRequestStatus) IsValid() bool {
	for _, candidate := range validBloodRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s BloodRequestStatus) IsTerminal() bool {
	return len(bloodRequestTransitions[s]) == 0
}

// CanTransitionTo reports whether the transition graph allows moving to next.
func (s BloodRequestStatus) CanTransitionTo(next BloodRequestStatus) bool {
	for _, candidate := range bloodRequestTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseBloodRequestStatus converts raw input into BloodRequestStatus.
func ParseBloodRequestStatus(value string) (BloodRequestStatus, error) {
	for _, candidate := range validBloodRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid blood request status %q", value)
}
