package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carewellhq/carewell-backend/api/responses"
	"github.com/carewellhq/carewell-backend/api/validators"
	"github.com/carewellhq/carewell-backend/internal/patients"
	"github.com/carewellhq/carewell-backend/internal/pharmacy"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
)

type createMedicineRequest struct {
	Name                 string          `json:"name" validate:"required"`
	Category             string          `json:"category" validate:"required"`
	Manufacturer         string          `json:"manufacturer" validate:"required"`
	Description          *string         `json:"description,omitempty"`
	Price                decimal.Decimal `json:"price" validate:"required"`
	Stock                int             `json:"stock" validate:"min=0"`
	RequiresPrescription bool            `json:"requires_prescription"`
}

type updateMedicineRequest struct {
	Name                 *string          `json:"name,omitempty"`
	Category             *string          `json:"category,omitempty"`
	Manufacturer         *string          `json:"manufacturer,omitempty"`
	Description          *string          `json:"description,omitempty"`
	Price                *decimal.Decimal `json:"price,omitempty"`
	RequiresPrescription *bool            `json:"requires_prescription,omitempty"`
	IsActive             *bool            `json:"is_active,omitempty"`
}

type adjustStockRequest struct {
	Change int `json:"change" validate:"required"`
}

type putCartItemRequest struct {
	MedicineID uuid.UUID `json:"medicine_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
}

// MedicineCatalog pages through the purchasable catalog.
func MedicineCatalog(svc pharmacy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListCatalog(r.Context(), pharmacy.CatalogFilter{
			Search:   strings.TrimSpace(r.URL.Query().Get("search")),
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
			Params:   params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// MedicineGet returns one catalog entry.
func MedicineGet(svc pharmacy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		medicine, err := svc.GetMedicine(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, medicine)
	}
}

// MedicineCreate adds a catalog entry. Admin only.
func MedicineCreate(svc pharmacy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		var body createMedicineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		medicine, err := svc.CreateMedicine(r.Context(), pharmacy.MedicineInput{
			Name:                 body.Name,
			Category:             body.Category,
			Manufacturer:         body.Manufacturer,
			Description:          body.Description,
			Price:                body.Price,
			Stock:                body.Stock,
			RequiresPrescription: body.RequiresPrescription,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, medicine)
	}
}

// MedicineUpdate changes catalog fields. Admin only.
func MedicineUpdate(svc pharmacy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateMedicineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		medicine, err := svc.UpdateMedicine(r.Context(), id, pharmacy.UpdateMedicineInput{
			Name:                 body.Name,
			Category:             body.Category,
			Manufacturer:         body.Manufacturer,
			Description:          body.Description,
			Price:                body.Price,
			RequiresPrescription: body.RequiresPrescription,
			IsActive:             body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, medicine)
	}
}

// MedicineAdjustStock applies a signed stock change. Admin only.
func MedicineAdjustStock(svc pharmacy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adjustStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		medicine, err := svc.AdjustStock(r.Context(), id, body.Change)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, medicine)
	}
}

// CartGet prices the calling patient's cart.
func CartGet(svc pharmacy.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		patient, err := patientProfile(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.GetCart(r.Context(), patient.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CartPut sets the quantity of one medicine in the caller's cart.
func CartPut(svc pharmacy.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		patient, err := patientProfile(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body putCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.PutCartItem(r.Context(), patient.ID, body.MedicineID, body.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.GetCart(r.Context(), patient.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CartRemove drops one medicine from the caller's cart.
func CartRemove(svc pharmacy.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		patient, err := patientProfile(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		medicineID, err := pathUUID(r, "medicineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveCartItem(r.Context(), patient.ID, medicineID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// PharmacyCheckout snapshots the cart into an order and opens a Stripe session.
func PharmacyCheckout(svc pharmacy.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		patient, err := patientProfile(r, patientSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), patient.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"order_id":     result.OrderID.String(),
			"session_id":   result.SessionID,
			"redirect_url": result.RedirectURL,
		})
	}
}

// PharmacyOrderList pages through the caller's orders.
func PharmacyOrderList(svc pharmacy.Service, patientSvc patients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
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

		rows, err := svc.ListOrdersForPatient(r.Context(), patient.ID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// PharmacyOrderGet returns one order.
func PharmacyOrderGet(svc pharmacy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
