package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carewellhq/carewell-backend/api/responses"
	"github.com/carewellhq/carewell-backend/api/validators"
	"github.com/carewellhq/carewell-backend/internal/appointments"
	"github.com/carewellhq/carewell-backend/internal/doctors"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

type createDoctorRequest struct {
	UserID          *uuid.UUID      `json:"user_id,omitempty"`
	FullName        string          `json:"full_name" validate:"required"`
	Specialty       string          `json:"specialty" validate:"required"`
	Qualifications  string          `json:"qualifications" validate:"required"`
	Bio             *string         `json:"bio,omitempty"`
	ConsultationFee decimal.Decimal `json:"consultation_fee" validate:"required"`
	AvailableDays   []string        `json:"available_days,omitempty"`
	DayStartMin     *int            `json:"day_start_min,omitempty" validate:"omitempty,min=0,max=1440"`
	DayEndMin       *int            `json:"day_end_min,omitempty" validate:"omitempty,min=0,max=1440"`
	SlotMinutes     *int            `json:"slot_minutes,omitempty" validate:"omitempty,min=5,max=240"`
}

type updateDoctorRequest struct {
	FullName        *string          `json:"full_name,omitempty"`
	Specialty       *string          `json:"specialty,omitempty"`
	Qualifications  *string          `json:"qualifications,omitempty"`
	Bio             *string          `json:"bio,omitempty"`
	ConsultationFee *decimal.Decimal `json:"consultation_fee,omitempty"`
	AvailableDays   []string         `json:"available_days,omitempty"`
	DayStartMin     *int             `json:"day_start_min,omitempty" validate:"omitempty,min=0,max=1440"`
	DayEndMin       *int             `json:"day_end_min,omitempty" validate:"omitempty,min=0,max=1440"`
	SlotMinutes     *int             `json:"slot_minutes,omitempty" validate:"omitempty,min=5,max=240"`
	IsActive        *bool            `json:"is_active,omitempty"`
}

// DoctorList pages through the public directory.
func DoctorList(svc doctors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "doctor service unavailable"))
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), doctors.ListFilter{
			Specialty: strings.TrimSpace(r.URL.Query().Get("specialty")),
			Params:    params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// DoctorGet returns one directory entry.
func DoctorGet(svc doctors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "doctor service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doctor, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, doctor)
	}
}

// DoctorSlots returns the open consultation slots for one doctor on one day.
func DoctorSlots(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointment service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("date"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date query parameter required"))
			return
		}
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date"))
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), id, date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, slots)
	}
}

// DoctorCreate adds a directory entry. Admin only.
func DoctorCreate(svc doctors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "doctor service unavailable"))
			return
		}

		var body createDoctorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doctor, err := svc.Create(r.Context(), doctors.CreateInput{
			UserID:          body.UserID,
			FullName:        body.FullName,
			Specialty:       body.Specialty,
			Qualifications:  body.Qualifications,
			Bio:             body.Bio,
			ConsultationFee: body.ConsultationFee,
			AvailableDays:   body.AvailableDays,
			DayStartMin:     body.DayStartMin,
			DayEndMin:       body.DayEndMin,
			SlotMinutes:     body.SlotMinutes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, doctor)
	}
}

// DoctorUpdate changes directory fields. Admin only.
func DoctorUpdate(svc doctors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "doctor service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateDoctorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doctor, err := svc.Update(r.Context(), id, doctors.UpdateInput{
			FullName:        body.FullName,
			Specialty:       body.Specialty,
			Qualifications:  body.Qualifications,
			Bio:             body.Bio,
			ConsultationFee: body.ConsultationFee,
			AvailableDays:   body.AvailableDays,
			DayStartMin:     body.DayStartMin,
			DayEndMin:       body.DayEndMin,
			SlotMinutes:     body.SlotMinutes,
			IsActive:        body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, doctor)
	}
}

// DoctorDeactivate removes a doctor from the bookable directory. Admin only.
func DoctorDeactivate(svc doctors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "doctor service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doctor, err := svc.Deactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, doctor)
	}
}
