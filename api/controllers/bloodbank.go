package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carewellhq/carewell-backend/api/responses"
	"github.com/carewellhq/carewell-backend/api/validators"
	"github.com/carewellhq/carewell-backend/internal/bloodbank"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

type upsertInventoryRequest struct {
	Units            *int    `json:"units,omitempty" validate:"omitempty,min=0"`
	MinimumThreshold *int    `json:"minimum_threshold,omitempty" validate:"omitempty,min=0"`
	Notes            *string `json:"notes,omitempty"`
}

type adjustInventoryRequest struct {
	Change int     `json:"change" validate:"required"`
	Type   string  `json:"type" validate:"required"`
	Note   *string `json:"note,omitempty"`
}

func pathBloodGroup(r *http.Request) (enums.BloodGroup, error) {
	group, err := enums.ParseBloodGroup(chi.URLParam(r, "group"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid blood group")
	}
	return group, nil
}

// BloodInventoryList returns the availability of every tracked group.
func BloodInventoryList(svc bloodbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood bank service unavailable"))
			return
		}

		rows, err := svc.ListInventory(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// BloodSummary reports units for all eight groups, zero-filled for groups
// without an inventory row.
func BloodSummary(svc bloodbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood bank service unavailable"))
			return
		}

		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// BloodInventoryGet returns a single group's availability.
func BloodInventoryGet(svc bloodbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood bank service unavailable"))
			return
		}

		group, err := pathBloodGroup(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetInventory(r.Context(), group)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// BloodInventoryUpsert creates or updates a group's threshold and notes. Admin only.
func BloodInventoryUpsert(svc bloodbank.Service, users userReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood bank service unavailable"))
			return
		}

		group, err := pathBloodGroup(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body upsertInventoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := resolveActor(r, users)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.UpsertInventory(r.Context(), bloodbank.UpsertInventoryInput{
			Group:            group,
			Units:            body.Units,
			MinimumThreshold: body.MinimumThreshold,
			Notes:            body.Notes,
			Actor:            bloodbank.Actor{UserID: actor.UserID, Name: actor.Name, Role: actor.Role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// BloodInventoryAdjust applies a signed balance change against one group. Staff only.
func BloodInventoryAdjust(svc bloodbank.Service, users userReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood bank service unavailable"))
			return
		}

		group, err := pathBloodGroup(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		historyType, err := enums.ParseBloodHistoryType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid history type"))
			return
		}

		actor, err := resolveActor(r, users)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Adjust(r.Context(), bloodbank.AdjustInput{
			Group:  group,
			Change: body.Change,
			Type:   historyType,
			Note:   body.Note,
			Actor:  bloodbank.Actor{UserID: actor.UserID, Name: actor.Name, Role: actor.Role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// BloodInventoryDelete removes a group's record and audit trail. Admin only.
func BloodInventoryDelete(svc bloodbank.Service, users userReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood bank service unavailable"))
			return
		}

		group, err := pathBloodGroup(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := resolveActor(r, users)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteInventory(r.Context(), group, bloodbank.Actor{UserID: actor.UserID, Name: actor.Name, Role: actor.Role}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// BloodHistoryList pages through a group's audit trail. Staff only.
func BloodHistoryList(svc bloodbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blood bank service unavailable"))
			return
		}

		group, err := pathBloodGroup(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.History(r.Context(), group, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
