package enums

import "fmt"

// TestimonialStatus tracks the moderation state of patient testimonials.
type TestimonialStatus string

const (
	TestimonialStatusPending   TestimonialStatus = "pending"
	TestimonialStatusPublished TestimonialStatus = "published"
	TestimonialStatusHidden    TestimonialStatus = "hidden"
)

var validTestimonialStatuses = []TestimonialStatus{
	TestimonialStatusPending,
	TestimonialStatusPublished,
	TestimonialStatusHidden,
}

// IsValid reports whether the value is a known TestimonialStatus.
func (s TestimonialStatus) IsValid() bool {
	for _, candidate := range validTestimonialStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTestimonialStatus converts raw input into TestimonialStatus.
func ParseTestimonialStatus(value string) (TestimonialStatus, error) {
	for _, candidate := range validTestimonialStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid testimonial status %q", value)
}
