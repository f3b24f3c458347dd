package doctors

import (
	"strings"
	"time"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
)

// validWeekdays is the accepted spelling for available_days entries.
var validWeekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// IsValidWeekday reports whether name is a recognized lowercase weekday.
func IsValidWeekday(name string) bool {
	_, ok := validWeekdays[name]
	return ok
}

// WorksOn reports whether the doctor consults on the given weekday.
func WorksOn(doctor *models.Doctor, day time.Weekday) bool {
	for _, name := range doctor.AvailableDays {
		if wd, ok := validWeekdays[strings.ToLower(name)]; ok && wd == day {
			return true
		}
	}
	return false
}

// SlotTimes expands the doctor's daily window into concrete start times for
// the given date. Returns nil when the doctor does not work that day.
func SlotTimes(doctor *models.Doctor, date time.Time) []time.Time {
	if !WorksOn(doctor, date.Weekday()) {
		return nil
	}
	if doctor.SlotMinutes <= 0 || doctor.DayEndMin <= doctor.DayStartMin {
		return nil
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	var slots []time.Time
	for minute := doctor.DayStartMin; minute+doctor.SlotMinutes <= doctor.DayEndMin; minute += doctor.SlotMinutes {
		slots = append(slots, midnight.Add(time.Duration(minute)*time.Minute))
	}
	return slots
}

// IsBookableSlot reports whether t lands exactly on one of the doctor's slot
// boundaries on a working day.
func IsBookableSlot(doctor *models.Doctor, t time.Time) bool {
	if !WorksOn(doctor, t.Weekday()) {
		return false
	}
	if doctor.SlotMinutes <= 0 {
		return false
	}
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}

	minute := t.Hour()*60 + t.Minute()
	if minute < doctor.DayStartMin || minute+doctor.SlotMinutes > doctor.DayEndMin {
		return false
	}
	return (minute-doctor.DayStartMin)%doctor.SlotMinutes == 0
}
