package controllers

import (
	"net/http"
	"time"

	"github.com/carewellhq/carewell-backend/api/responses"
	"github.com/carewellhq/carewell-backend/api/validators"
	"github.com/carewellhq/carewell-backend/internal/bloodrequests"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

type createBloodRequestRequest struct {
	Group          string     `json:"group" validate:"required"`
	UnitsRequested int        `json:"units_requested" validate:"required,min=1"`
	Priority       string     `json:"priority" validate:"required"`
	RequesterName  string     `json:"requester_name" validate:"required"`
	RequesterEmail string     `json:"requester_email" validate:"required,email"`
	RequesterPhone *string    `json:"requester_phone,omitempty"`
	Reason         *string    `json:"reason,omitempty"`
	NeededOn       *time.Time `json:"needed_on,omitempty"`
}

type decideBloodRequestRequest struct {
	Approve bool    `json:"approve"`
	Reason  *string `json:"reason,omitempty"`
}

// BloodRequestCreate files a new request for units.
func BloodRequestCreate(svc bloodrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood request service unavailable"))
			return
		}

		var body createBloodRequestRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := enums.ParseBloodGroup(body.Group)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid blood group"))
			return
		}
		priority, err := enums.ParseBloodRequestPriority(body.Priority)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority"))
			return
		}

		input := bloodrequests.CreateInput{
			Group:          group,
			UnitsRequested: body.UnitsRequested,
			Priority:       priority,
			RequesterName:  body.RequesterName,
			RequesterEmail: body.RequesterEmail,
			RequesterPhone: body.RequesterPhone,
			Reason:         body.Reason,
			NeededOn:       body.NeededOn,
		}
		if userID, err := requireUserID(r); err == nil {
			input.RequesterID = &userID
		}

		request, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// BloodRequestGet returns one request.
func BloodRequestGet(svc bloodrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood request service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// BloodRequestList pages through requests with optional filters. Staff only.
func BloodRequestList(svc bloodrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood request service unavailable"))
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := bloodrequests.ListFilter{Params: params}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseBloodRequestStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}
		if raw := r.URL.Query().Get("group"); raw != "" {
			group, err := enums.ParseBloodGroup(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid blood group"))
				return
			}
			filter.Group = &group
		}
		if raw := r.URL.Query().Get("requester_email"); raw != "" {
			filter.RequesterEmail = &raw
		}
		if raw := r.URL.Query().Get("requester_phone"); raw != "" {
			filter.RequesterPhone = &raw
		}

		rows, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// BloodRequestListMine pages through the caller's own requests.
func BloodRequestListMine(svc bloodrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood request service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListMine(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// BloodRequestDecide approves or rejects a pending request. Staff only.
func BloodRequestDecide(svc bloodrequests.Service, users userReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood request service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body decideBloodRequestRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := resolveActor(r, users)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Decide(r.Context(), id, bloodrequests.DecideInput{
			Approve: body.Approve,
			Reason:  body.Reason,
			Actor:   bloodrequests.Actor{UserID: actor.UserID, Name: actor.Name, Role: actor.Role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// BloodRequestCancel withdraws a request before fulfillment.
func BloodRequestCancel(svc bloodrequests.Service, users userReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood request service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := resolveActor(r, users)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Cancel(r.Context(), id, bloodrequests.Actor{UserID: actor.UserID, Name: actor.Name, Role: actor.Role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// BloodRequestFulfill debits inventory and closes an approved request. Staff only.
func BloodRequestFulfill(svc bloodrequests.Service, users userReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood request service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := resolveActor(r, users)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Fulfill(r.Context(), id, bloodrequests.Actor{UserID: actor.UserID, Name: actor.Name, Role: actor.Role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}
