package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carewellhq/carewell-backend/api/middleware"
	"github.com/carewellhq/carewell-backend/api/responses"
	"github.com/carewellhq/carewell-backend/api/validators"
	"github.com/carewellhq/carewell-backend/internal/appointments"
	"github.com/carewellhq/carewell-backend/internal/patients"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

type bookAppointmentRequest struct {
	DoctorID    uuid.UUID `json:"doctor_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Reason      *string   `json:"reason,omitempty"`
}

func appointmentActor(r *http.Request, patientSvc patients.Service) (appointments.Actor, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return appointments.Actor{}, err
	}
	actor := appointments.Actor{
		UserID: userID,
		Role:   enums.UserRole(middleware.RoleFromContext(r.Context())),
	}
	if actor.Role == enums.UserRolePatient && patientSvc != nil {
		patient, err := patientProfile(r, patientSvc)
		if err != nil {
			return appointments.Actor{}, err
		}
		actor.PatientID = &patient.ID
	}
	return actor, nil
}

// AppointmentBook reserves a slot for the calling patient.
func AppointmentBook(svc appointments.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointment service unavailable"))
			return
		}

		patient, err := patientProfile(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body bookAppointmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appt, err := svc.Book(r.Context(), appointments.BookInput{
			PatientID:   patient.ID,
			DoctorID:    body.DoctorID,
			ScheduledAt: body.ScheduledAt,
			Reason:      body.Reason,
			ActorUserID: patient.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, appt)
	}
}

// AppointmentListMine pages through the calling patient's appointments.
func AppointmentListMine(svc appointments.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointment service unavailable"))
			return
		}

		patient, err := patientProfile(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListForPatient(r.Context(), patient.ID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AppointmentList pages through appointments with optional filters. Staff only.
func AppointmentList(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointment service unavailable"))
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := appointments.ListFilter{Params: params}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseAppointmentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}
		if raw := r.URL.Query().Get("doctor_id"); raw != "" {
			doctorID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid doctor id"))
				return
			}
			filter.DoctorID = &doctorID
		}

		rows, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AppointmentGet returns one appointment.
func AppointmentGet(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
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

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appt)
	}
}

// AppointmentCancel releases a scheduled slot.
func AppointmentCancel(svc appointments.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
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

		actor, err := appointmentActor(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appt, err := svc.Cancel(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appt)
	}
}

// AppointmentComplete closes a finished consultation. Staff only.
func AppointmentComplete(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
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

		actor, err := appointmentActor(r, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appt, err := svc.Complete(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appt)
	}
}

// AppointmentCheckout opens a Stripe checkout session for the consultation fee.
func AppointmentCheckout(svc appointments.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
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

		patient, err := patientProfile(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), id, patient.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"session_id":   result.SessionID,
			"redirect_url": result.RedirectURL,
		})
	}
}
