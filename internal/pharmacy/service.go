package pharmacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/internal/payments"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// CacheTagCatalog groups cached catalog reads for tag invalidation.
const CacheTagCatalog = "pharmacyCatalog"

// catalogCacheTTL bounds staleness if an eviction is ever missed.
const catalogCacheTTL = 5 * time.Minute

// Service exposes the pharmacy catalog, cart, and order operations.
type Service interface {
	CreateMedicine(ctx context.Context, input MedicineInput) (*models.Medicine, error)
	GetMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error)
	UpdateMedicine(ctx context.Context, id uuid.UUID, input UpdateMedicineInput) (*models.Medicine, error)
	AdjustStock(ctx context.Context, id uuid.UUID, change int) (*models.Medicine, error)
	ListCatalog(ctx context.Context, filter CatalogFilter) ([]models.Medicine, error)

	PutCartItem(ctx context.Context, patientID, medicineID uuid.UUID, quantity int) error
	RemoveCartItem(ctx context.Context, patientID, medicineID uuid.UUID) error
	ClearCart(ctx context.Context, patientID uuid.UUID) error
	GetCart(ctx context.Context, patientID uuid.UUID) (*CartQuote, error)

	Checkout(ctx context.Context, patientID uuid.UUID) (*CheckoutResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.PharmacyOrder, error)
	ListOrdersForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.PharmacyOrder, error)
	MarkPaidTx(ctx context.Context, tx *gorm.DB, sessionID string) (*models.PharmacyOrder, error)
}

// MedicineInput holds a new catalog entry.
type MedicineInput struct {
	Name                 string
	Category             string
	Manufacturer         string
	Description          *string
	Price                decimal.Decimal
	Stock                int
	RequiresPrescription bool
}

// UpdateMedicineInput carries the mutable catalog fields. Nil pointers leave
// the stored value untouched.
type UpdateMedicineInput struct {
	Name                 *string
	Category             *string
	Manufacturer         *string
	Description          *string
	Price                *decimal.Decimal
	RequiresPrescription *bool
	IsActive             *bool
}

// CartQuote prices the patient's current cart.
type CartQuote struct {
	Items []models.CartItem
	Total decimal.Decimal
}

// CheckoutResult carries the Stripe redirect for the cart total.
type CheckoutResult struct {
	OrderID     uuid.UUID
	SessionID   string
	RedirectURL string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type taggedCache interface {
	CacheKey(parts ...string) string
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	TagCacheKey(ctx context.Context, key string, tags ...string) error
	InvalidateTag(ctx context.Context, tag string) error
}

type checkoutURLs interface {
	SuccessURL() string
	CancelURL() string
}

// ServiceParams wires the dependencies the service validates at startup.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Outbox   eventEmitter
	Cache    taggedCache
	Checkout payments.CheckoutClient
	URLs     checkoutURLs
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   eventEmitter
	cache    taggedCache
	checkout payments.CheckoutClient
	urls     checkoutURLs
	logg     *logger.Logger
}

// NewService wires a pharmacy service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pharmacy repository required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.TxRunner,
		outbox:   params.Outbox,
		cache:    params.Cache,
		checkout: params.Checkout,
		urls:     params.URLs,
		logg:     params.Logger,
	}, nil
}

func (s *service) CreateMedicine(ctx context.Context, input MedicineInput) (*models.Medicine, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}

	medicine := &models.Medicine{
		ID:                   uuid.New(),
		Name:                 name,
		Category:             strings.TrimSpace(input.Category),
		Manufacturer:         strings.TrimSpace(input.Manufacturer),
		Description:          input.Description,
		Price:                input.Price,
		Stock:                input.Stock,
		RequiresPrescription: input.RequiresPrescription,
		IsActive:             true,
	}
	if err := s.repo.CreateMedicine(ctx, medicine); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create medicine")
	}

	s.invalidateCatalogCache(ctx)
	return medicine, nil
}

func (s *service) GetMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error) {
	row, err := s.repo.FindMedicine(ctx, id)
	if err != nil {
		return nil, asMedicineLookupError(err)
	}
	return row, nil
}

func (s *service) UpdateMedicine(ctx context.Context, id uuid.UUID, input UpdateMedicineInput) (*models.Medicine, error) {
	medicine, err := s.repo.FindMedicine(ctx, id)
	if err != nil {
		return nil, asMedicineLookupError(err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		medicine.Name = name
	}
	if input.Category != nil {
		medicine.Category = strings.TrimSpace(*input.Category)
	}
	if input.Manufacturer != nil {
		medicine.Manufacturer = strings.TrimSpace(*input.Manufacturer)
	}
	if input.Description != nil {
		medicine.Description = input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		medicine.Price = *input.Price
	}
	if input.RequiresPrescription != nil {
		medicine.RequiresPrescription = *input.RequiresPrescription
	}
	if input.IsActive != nil {
		medicine.IsActive = *input.IsActive
	}

	if err := s.repo.SaveMedicine(ctx, medicine); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save medicine")
	}

	s.invalidateCatalogCache(ctx)
	return medicine, nil
}

func (s *service) AdjustStock(ctx context.Context, id uuid.UUID, change int) (*models.Medicine, error) {
	if change == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change cannot be zero")
	}

	var medicine *models.Medicine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindMedicineForUpdate(ctx, id)
		if err != nil {
			return asMedicineLookupError(err)
		}
		next := row.Stock + change
		if next < 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
		}
		row.Stock = next
		if err := repo.SaveMedicine(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save medicine")
		}
		medicine = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCatalogCache(ctx)
	return medicine, nil
}

func (s *service) ListCatalog(ctx context.Context, filter CatalogFilter) ([]models.Medicine, error) {
	key := catalogCacheKey(filter)
	var cached []models.Medicine
	if s.readCachedList(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.ListMedicines(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list medicines")
	}
	s.writeCachedList(ctx, key, rows)
	return rows, nil
}

// catalogCacheKey derives a stable cache key suffix from the filter so each
// distinct catalog view caches independently under the shared tag.
func catalogCacheKey(filter CatalogFilter) string {
	parts := []string{"catalog"}
	if filter.Search != "" {
		parts = append(parts, "search="+strings.ToLower(filter.Search))
	}
	if filter.Category != "" {
		parts = append(parts, "category="+strings.ToLower(filter.Category))
	}
	if filter.IncludeAll {
		parts = append(parts, "all")
	}
	if filter.Params.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", filter.Params.Limit))
	}
	if filter.Params.Cursor != "" {
		parts = append(parts, "cursor="+filter.Params.Cursor)
	}
	return strings.Join(parts, "|")
}

func (s *service) PutCartItem(ctx context.Context, patientID, medicineID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	medicine, err := s.repo.FindMedicine(ctx, medicineID)
	if err != nil {
		return asMedicineLookupError(err)
	}
	if !medicine.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "medicine is not available")
	}
	if medicine.Stock < quantity {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
	}

	item := &models.CartItem{
		ID:         uuid.New(),
		PatientID:  patientID,
		MedicineID: medicineID,
		Quantity:   quantity,
	}
	if err := s.repo.UpsertCartItem(ctx, item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
	}
	return nil
}

func (s *service) RemoveCartItem(ctx context.Context, patientID, medicineID uuid.UUID) error {
	if err := s.repo.RemoveCartItem(ctx, patientID, medicineID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return nil
}

func (s *service) ClearCart(ctx context.Context, patientID uuid.UUID) error {
	if err := s.repo.ClearCart(ctx, patientID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) GetCart(ctx context.Context, patientID uuid.UUID) (*CartQuote, error) {
	items, err := s.repo.ListCart(ctx, patientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Medicine == nil {
			continue
		}
		total = total.Add(item.Medicine.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return &CartQuote{Items: items, Total: total}, nil
}

func (s *service) Checkout(ctx context.Context, patientID uuid.UUID) (*CheckoutResult, error) {
	if s.checkout == nil || s.urls == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured")
	}

	quote, err := s.GetCart(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(quote.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	order := &models.PharmacyOrder{
		ID:            uuid.New(),
		PatientID:     patientID,
		TotalAmount:   quote.Total,
		PaymentStatus: enums.PaymentStatusUnpaid,
	}
	lineItems := make([]payments.LineItem, 0, len(quote.Items))
	for _, item := range quote.Items {
		if item.Medicine == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart item missing medicine")
		}
		if !item.Medicine.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is no longer available", item.Medicine.Name))
		}
		if item.Medicine.Stock < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("insufficient stock for %s", item.Medicine.Name))
		}
		order.Items = append(order.Items, models.PharmacyOrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			MedicineID: item.MedicineID,
			Quantity:   item.Quantity,
			UnitPrice:  item.Medicine.Price,
		})
		lineItems = append(lineItems, payments.LineItem{
			Name:        item.Medicine.Name,
			AmountCents: payments.AmountToCents(item.Medicine.Price),
			Quantity:    int64(item.Quantity),
		})
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, payments.BuildSessionParams(
		payments.KindPharmacy,
		order.ID,
		lineItems,
		s.urls.SuccessURL(),
		s.urls.CancelURL(),
	))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	order.StripeSessionID = &session.ID

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	return &CheckoutResult{
		OrderID:     order.ID,
		SessionID:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.PharmacyOrder, error) {
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListOrdersForPatient(ctx context.Context, patientID uuid.UUID, params pagination.Params) ([]models.PharmacyOrder, error) {
	rows, err := s.repo.ListOrdersForPatient(ctx, patientID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

// MarkPaidTx marks the order paid, debits medicine stock, and clears the
// patient's cart inside the caller's transaction.
func (s *service) MarkPaidTx(ctx context.Context, tx *gorm.DB, sessionID string) (*models.PharmacyOrder, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindOrderBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return order, nil
	}

	for _, item := range order.Items {
		medicine, err := repo.FindMedicineForUpdate(ctx, item.MedicineID)
		if err != nil {
			return nil, asMedicineLookupError(err)
		}
		next := medicine.Stock - item.Quantity
		if next < 0 {
			return nil, pkgerrors.New(
				pkgerrors.CodeStateConflict,
				fmt.Sprintf("insufficient stock for %s", medicine.Name),
			)
		}
		medicine.Stock = next
		if err := repo.SaveMedicine(ctx, medicine); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save medicine")
		}
	}

	now := time.Now().UTC()
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaidAt = &now
	if err := repo.SaveOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}

	if err := repo.ClearCart(ctx, order.PatientID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventPharmacyOrderPaid,
		AggregateType: enums.AggregatePharmacyOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.PharmacyOrderPaidEvent{
			OrderID:   order.ID,
			PatientID: order.PatientID,
			Total:     order.TotalAmount.String(),
			PaidAt:    now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order paid event")
	}

	s.invalidateCatalogCache(ctx)
	return order, nil
}

// readCachedList serves a catalog read from redis. Any cache error falls
// through to the database.
func (s *service) readCachedList(ctx context.Context, name string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(CacheTagCatalog, name))
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// writeCachedList stores the payload and registers its key under the catalog
// tag so the next catalog mutation evicts it.
func (s *service) writeCachedList(ctx context.Context, name string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	key := s.cache.CacheKey(CacheTagCatalog, name)
	if err := s.cache.Set(ctx, key, string(raw), catalogCacheTTL); err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "failed to cache catalog read")
		}
		return
	}
	if err := s.cache.TagCacheKey(ctx, key, CacheTagCatalog); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to tag catalog cache key")
	}
}

func (s *service) invalidateCatalogCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTag(ctx, CacheTagCatalog); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to invalidate catalog cache")
	}
}

func asMedicineLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "medicine not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medicine")
}
