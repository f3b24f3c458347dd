package enums

import "fmt"

// BloodGroup is one of the eight ABO/Rh blood types.
type BloodGroup string

const (
	BloodGroupAPositive  BloodGroup = "A+"
	BloodGroupANegative  BloodGroup = "A-"
	BloodGroupBPositive  BloodGroup = "B+"
	BloodGroupBNegative  BloodGroup = "B-"
	BloodGroupABPositive BloodGroup = "AB+"
	BloodGroupABNegative BloodGroup = "AB-"
	BloodGroupOPositive  BloodGroup = "O+"
	BloodGroupONegative  BloodGroup = "O-"
)

var validBloodGroups = []BloodGroup{
	BloodGroupAPositive,
	BloodGroupANegative,
	BloodGroupBPositive,
	BloodGroupBNegative,
	BloodGroupABPositive,
	BloodGroupABNegative,
	BloodGroupOPositive,
	BloodGroupONegative,
}

// AllBloodGroups returns the canonical ordering of the eight groups.
func AllBloodGroups() []BloodGroup {
	groups := make([]BloodGroup, len(validBloodGroups))
	copy(groups, validBloodGroups)
	return groups
}

// String implements fmt.Stringer.
func (g BloodGroup) String() string {
	return string(g)
}

// IsValid reports whether the value is a known BloodGroup.
func (g BloodGroup) IsValid() bool {
	for _, candidate := range validBloodGroups {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseBloodGroup converts raw input into a BloodGroup.
func ParseBloodGroup(value string) (BloodGroup, error) {
	for _, candidate := range validBloodGroups {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid blood group %q", value)
}
