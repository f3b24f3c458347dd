package enums

import "fmt"

// BloodRequestPriority orders requests for review.
type BloodRequestPriority string

const (
	BloodRequestPriorityLow      BloodRequestPriority = "low"
	BloodRequestPriorityMedium   BloodRequestPriority = "medium"
	BloodRequestPriorityHigh     BloodRequestPriority = "high"
	BloodRequestPriorityCritical BloodRequestPriority = "critical"
)

var validBloodRequestPriorities = []BloodRequestPriority{
	BloodRequestPriorityLow,
	BloodRequestPriorityMedium,
	BloodRequestPriorityHigh,
	BloodRequestPriorityCritical,
}

// IsValid reports whether the value is a known BloodRequestPriority.
func (p BloodRequestPriority) IsValid() bool {
	for _, candidate := range validBloodRequestPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseBloodRequestPriority converts raw input into BloodRequestPriority.
func ParseBloodRequestPriority(value string) (BloodRequestPriority, error) {
	for _, candidate := range validBloodRequestPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid blood request priority %q", value)
}
