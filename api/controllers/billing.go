package controllers

import (
	"net/http"

	"github.com/carewellhq/carewell-backend/api/middleware"
	"github.com/carewellhq/carewell-backend/api/responses"
	"github.com/carewellhq/carewell-backend/internal/billing"
	"github.com/carewellhq/carewell-backend/internal/patients"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

func billingActor(r *http.Request, patientSvc patients.Service) (billing.Actor, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return billing.Actor{}, err
	}
	actor := billing.Actor{
		UserID: userID,
		Role:   enums.UserRole(middleware.RoleFromContext(r.Context())),
	}
	if actor.Role == enums.UserRolePatient && patientSvc != nil {
		patient, err := patientSvc.GetByUserID(r.Context(), userID)
		if err != nil {
			return billing.Actor{}, err
		}
		actor.PatientID = &patient.ID
	}
	return actor, nil
}

// InvoiceListMine pages through the calling patient's invoices.
func InvoiceListMine(svc billing.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
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

// InvoiceGet returns one invoice, authorized per actor.
func InvoiceGet(svc billing.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := billingActor(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Get(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// InvoiceList pages through all invoices with optional filters. Admin only.
func InvoiceList(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := billing.ListFilter{Params: params}
		if raw := r.URL.Query().Get("kind"); raw != "" {
			kind, err := enums.ParseInvoiceKind(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
				return
			}
			filter.Kind = kind
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseInvoiceStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = status
		}

		rows, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// InvoiceVoid voids an unpaid invoice. Admin only.
func InvoiceVoid(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Void(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}
