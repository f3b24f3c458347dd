package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carewellhq/carewell-backend/api/middleware"
	"github.com/carewellhq/carewell-backend/api/validators"
	"github.com/carewellhq/carewell-backend/internal/patients"
	"github.com/carewellhq/carewell-backend/internal/users"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

func requireUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

func parsePagination(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

type actorIdentity struct {
	UserID uuid.UUID
	Name   string
	Role   enums.UserRole
}

type userReader interface {
	Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

// resolveActor loads the caller's identity for audit provenance fields.
func resolveActor(r *http.Request, reader userReader) (*actorIdentity, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return nil, err
	}
	identity := &actorIdentity{
		UserID: userID,
		Role:   enums.UserRole(middleware.RoleFromContext(r.Context())),
	}
	if reader != nil {
		user, err := reader.Me(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		identity.Name = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	return identity, nil
}

// patientProfile resolves the caller's patient record from the seeded context.
func patientProfile(r *http.Request, svc patients.Service) (*models.Patient, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return nil, err
	}
	patient, err := svc.GetByUserID(r.Context(), userID)
	if err != nil {
		if apiErr := pkgerrors.As(err); apiErr != nil && apiErr.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "patient profile required")
		}
		return nil, err
	}
	return patient, nil
}
