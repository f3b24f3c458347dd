package enums

import "fmt"

// BloodHistoryType tags a single balance change in the inventory audit trail.
type BloodHistoryType string

const (
	BloodHistoryTypeRestock            BloodHistoryType = "restock"
	BloodHistoryTypeDonation           BloodHistoryType = "donation"
	BloodHistoryTypeRequestFulfillment BloodHistoryType = "request-fulfillment"
	BloodHistoryTypeAdjustment         BloodHistoryType = "adjustment"
)

var validBloodHistoryTypes = []BloodHistoryType{
	BloodHistoryTypeRestock,
	BloodHistoryTypeDonation,
	BloodHistoryTypeRequestFulfillment,
	BloodHistoryTypeAdjustment,
}

// IsValid reports whether the value matches the canonical history type enum.
func (t BloodHistoryType) IsValid() bool {
	for _, candidate := range validBloodHistoryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBloodHistoryType converts raw input into BloodHistoryType.
func ParseBloodHistoryType(value string) (BloodHistoryType, error) {
	for _, candidate := range validBloodHistoryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid blood history type %q", value)
}
