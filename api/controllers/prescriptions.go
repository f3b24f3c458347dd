package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/carewellhq/carewell-backend/api/middleware"
	"github.com/carewellhq/carewell-backend/api/responses"
	"github.com/carewellhq/carewell-backend/api/validators"
	"github.com/carewellhq/carewell-backend/internal/doctors"
	"github.com/carewellhq/carewell-backend/internal/patients"
	"github.com/carewellhq/carewell-backend/internal/prescriptions"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

type prescriptionLineRequest struct {
	MedicineID   *uuid.UUID `json:"medicine_id,omitempty"`
	MedicineName string     `json:"medicine_name,omitempty"`
	Dosage       string     `json:"dosage" validate:"required"`
	DurationDays int        `json:"duration_days" validate:"required,min=1"`
	Instructions *string    `json:"instructions,omitempty"`
}

type createPrescriptionRequest struct {
	PatientID     uuid.UUID                 `json:"patient_id" validate:"required"`
	AppointmentID *uuid.UUID                `json:"appointment_id,omitempty"`
	Notes         *string                   `json:"notes,omitempty"`
	Lines         []prescriptionLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updatePrescriptionRequest struct {
	Notes *string                   `json:"notes,omitempty"`
	Lines []prescriptionLineRequest `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

func prescriptionLines(reqs []prescriptionLineRequest) []prescriptions.LineInput {
	if reqs == nil {
		return nil
	}
	lines := make([]prescriptions.LineInput, 0, len(reqs))
	for _, line := range reqs {
		lines = append(lines, prescriptions.LineInput{
			MedicineID:   line.MedicineID,
			MedicineName: line.MedicineName,
			Dosage:       line.Dosage,
			DurationDays: line.DurationDays,
			Instructions: line.Instructions,
		})
	}
	return lines
}

func prescriptionActor(r *http.Request, doctorSvc doctors.Service, patientSvc patients.Service) (prescriptions.Actor, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return prescriptions.Actor{}, err
	}
	actor := prescriptions.Actor{
		UserID: userID,
		Role:   enums.UserRole(middleware.RoleFromContext(r.Context())),
	}
	switch actor.Role {
	case enums.UserRoleDoctor:
		if doctorSvc != nil {
			doctor, err := doctorSvc.GetByUserID(r.Context(), userID)
			if err == nil {
				actor.DoctorID = &doctor.ID
			}
		}
	case enums.UserRolePatient:
		if patientSvc != nil {
			patient, err := patientSvc.GetByUserID(r.Context(), userID)
			if err != nil {
				return prescriptions.Actor{}, err
			}
			actor.PatientID = &patient.ID
		}
	}
	return actor, nil
}

// PrescriptionCreate authors a prescription for a patient. Doctors only.
func PrescriptionCreate(svc prescriptions.Service, doctorSvc doctors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescription service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doctor, err := doctorSvc.GetByUserID(r.Context(), userID)
		if err != nil {
			if apiErr := pkgerrors.As(err); apiErr != nil && apiErr.Code() == pkgerrors.CodeNotFound {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "doctor profile required"))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createPrescriptionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prescription, err := svc.Create(r.Context(), prescriptions.CreateInput{
			DoctorID:      doctor.ID,
			PatientID:     body.PatientID,
			AppointmentID: body.AppointmentID,
			Notes:         body.Notes,
			Lines:         prescriptionLines(body.Lines),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, prescription)
	}
}

// PrescriptionGet returns one prescription, authorized per actor.
func PrescriptionGet(svc prescriptions.Service, doctorSvc doctors.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescription service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := prescriptionActor(r, doctorSvc, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prescription, err := svc.Get(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prescription)
	}
}

// PrescriptionUpdate amends notes or lines. Authoring doctor only.
func PrescriptionUpdate(svc prescriptions.Service, doctorSvc doctors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescription service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updatePrescriptionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := prescriptionActor(r, doctorSvc, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prescription, err := svc.Update(r.Context(), id, prescriptions.UpdateInput{
			Notes: body.Notes,
			Lines: prescriptionLines(body.Lines),
		}, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prescription)
	}
}

// PrescriptionListMine pages through the calling patient's prescriptions.
func PrescriptionListMine(svc prescriptions.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescription service unavailable"))
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

// PrescriptionListAuthored pages through the calling doctor's prescriptions.
func PrescriptionListAuthored(svc prescriptions.Service, doctorSvc doctors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescription service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doctor, err := doctorSvc.GetByUserID(r.Context(), userID)
		if err != nil {
			if apiErr := pkgerrors.As(err); apiErr != nil && apiErr.Code() == pkgerrors.CodeNotFound {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "doctor profile required"))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListForDoctor(r.Context(), doctor.ID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
