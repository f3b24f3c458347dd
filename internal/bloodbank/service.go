package bloodbank

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// CacheTagInventory groups every cached blood inventory read so one mutation
// can evict them all.
const CacheTagInventory = "bloodInventory"

// inventoryCacheTTL bounds staleness if an eviction is ever missed.
const inventoryCacheTTL = 5 * time.Minute

// Service defines blood inventory operations.
type Service interface {
	ListInventory(ctx context.Context) ([]models.BloodInventory, error)
	Summary(ctx context.Context) ([]GroupSummary, error)
	GetInventory(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error)
	UpsertInventory(ctx context.Context, input UpsertInventoryInput) (*models.BloodInventory, error)
	DeleteInventory(ctx context.Context, group enums.BloodGroup, actor Actor) error
	Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error)
	AdjustTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*AdjustResult, error)
	History(ctx context.Context, group enums.BloodGroup, params pagination.Params) ([]models.BloodHistoryEntry, error)
	ListBelowThreshold(ctx context.Context) ([]models.BloodInventory, error)
	InvalidateCaches(ctx context.Context)
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

// Actor carries the authenticated identity recorded on history rows.
type Actor struct {
	UserID uuid.UUID
	Name   string
	Role   enums.UserRole
}

// UpsertInventoryInput captures an admin create-or-update of a group's record.
// Units, when set, is an absolute balance; the signed difference lands in the
// history trail as an adjustment entry.
type UpsertInventoryInput struct {
	Group            enums.BloodGroup
	Units            *int
	MinimumThreshold *int
	Notes            *string
	Actor            Actor
}

// Stock level badges computed against the minimum threshold.
const (
	StockLevelLow     = "low"
	StockLevelHealthy = "healthy"
)

// GroupSummary reports the availability of one blood group, including groups
// with no inventory row yet.
type GroupSummary struct {
	BloodGroup     enums.BloodGroup `json:"blood_group"`
	UnitsAvailable int              `json:"units_available"`
	StockLevel     string           `json:"stock_level"`
}

// AdjustInput is a single signed balance change against one blood group.
type AdjustInput struct {
	Group  enums.BloodGroup
	Change int
	Type   enums.BloodHistoryType
	Note   *string
	Actor  Actor
}

// AdjustResult returns the post-change inventory plus the audit entry written with it.
type AdjustResult struct {
	Inventory *models.BloodInventory
	Entry     *models.BloodHistoryEntry
}

// ServiceParams wires the dependencies the service validates at startup.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Outbox   eventEmitter
	Cache    taggedCache
	Logger   *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox eventEmitter
	cache  taggedCache
	logg   *logger.Logger
}

// NewService wires a blood bank service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "blood bank repository required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.TxRunner,
		outbox: params.Outbox,
		cache:  params.Cache,
		logg:   params.Logger,
	}, nil
}

func (s *service) ListInventory(ctx context.Context) ([]models.BloodInventory, error) {
	var cached []models.BloodInventory
	if s.readCachedList(ctx, "list", &cached) {
		return cached, nil
	}

	rows, err := s.repo.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	s.writeCachedList(ctx, "list", rows)
	return rows, nil
}

// Summary reports every one of the eight groups; groups without an inventory
// row come back with zero units.
func (s *service) Summary(ctx context.Context) ([]GroupSummary, error) {
	var cached []GroupSummary
	if s.readCachedList(ctx, "summary", &cached) {
		return cached, nil
	}

	rows, err := s.repo.ListInventory(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}

	byGroup := make(map[enums.BloodGroup]models.BloodInventory, len(rows))
	for i := 0; i < len(rows); i++ {
		byGroup[rows[i].BloodGroup] = rows[i]
	}

	groups := enums.AllBloodGroups()
	summary := make([]GroupSummary, 0, len(groups))
	for _, group := range groups {
		entry := GroupSummary{BloodGroup: group, StockLevel: StockLevelHealthy}
		if row, ok := byGroup[group]; ok {
			entry.UnitsAvailable = row.UnitsAvailable
			if row.MinimumThreshold != nil && row.UnitsAvailable <= *row.MinimumThreshold {
				entry.StockLevel = StockLevelLow
			}
		}
		summary = append(summary, entry)
	}
	s.writeCachedList(ctx, "summary", summary)
	return summary, nil
}

func (s *service) GetInventory(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
	if !group.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid blood group")
	}
	inv, err := s.repo.FindByGroup(ctx, group)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "blood group not tracked")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return inv, nil
}

func (s *service) UpsertInventory(ctx context.Context, input UpsertInventoryInput) (*models.BloodInventory, error) {
	if !input.Group.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid blood group")
	}
	if input.MinimumThreshold != nil && *input.MinimumThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum threshold cannot be negative")
	}
	if input.Units != nil && *input.Units < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "units cannot be negative")
	}

	var result *models.BloodInventory
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inv, err := repo.FindByGroupForUpdate(ctx, input.Group)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
			}
			inv = &models.BloodInventory{
				BloodGroup:       input.Group,
				MinimumThreshold: input.MinimumThreshold,
				Notes:            input.Notes,
			}
			if err := repo.CreateInventory(ctx, inv); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory")
			}
		} else {
			if input.MinimumThreshold != nil {
				inv.MinimumThreshold = input.MinimumThreshold
			}
			if input.Notes != nil {
				inv.Notes = input.Notes
			}
		}

		change := 0
		if input.Units != nil {
			change = *input.Units - inv.UnitsAvailable
			inv.UnitsAvailable = *input.Units
		}
		if err := repo.SaveInventory(ctx, inv); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save inventory")
		}

		// An absolute set lands in the audit trail as a signed adjustment.
		if change != 0 {
			entry := &models.BloodHistoryEntry{
				InventoryID:  inv.ID,
				Change:       change,
				BalanceAfter: inv.UnitsAvailable,
				Type:         enums.BloodHistoryTypeAdjustment,
			}
			if input.Actor.Name != "" {
				name := input.Actor.Name
				entry.ActorName = &name
			}
			if input.Actor.Role != "" {
				role := string(input.Actor.Role)
				entry.ActorRole = &role
			}
			if err := repo.AppendHistory(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history")
			}
			if err := s.emitAdjusted(ctx, tx, inv, entry, input.Actor); err != nil {
				return err
			}
			if err := s.maybeEmitLowStock(ctx, tx, inv); err != nil {
				return err
			}
		}

		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateInventoryCache(ctx)
	return result, nil
}

// DeleteInventory removes a group's record along with its history rows.
// Admin only; the role guard lives in the router.
func (s *service) DeleteInventory(ctx context.Context, group enums.BloodGroup, actor Actor) error {
	if !group.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid blood group")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inv, err := repo.FindByGroupForUpdate(ctx, group)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "blood group not tracked")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory")
		}
		if err := repo.DeleteInventory(ctx, inv); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete inventory")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.logg != nil {
		fields := map[string]any{
			"blood_group": string(group),
			"actor_role":  string(actor.Role),
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "blood inventory deleted")
	}
	s.invalidateInventoryCache(ctx)
	return nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error) {
	var result *AdjustResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.AdjustTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.invalidateInventoryCache(ctx)
	return result, nil
}

// AdjustTx applies the balance change inside the caller's transaction so other
// services can debit stock atomically with their own writes. The caller owns
// the commit and any cache invalidation.
func (s *service) AdjustTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*AdjustResult, error) {
	if err := validateAdjustInput(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	inv, err := repo.FindByGroupForUpdate(ctx, input.Group)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory")
		}
		if input.Change < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient units available")
		}
		inv = &models.BloodInventory{BloodGroup: input.Group}
		if err := repo.CreateInventory(ctx, inv); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory")
		}
	}

	balance := inv.UnitsAvailable + input.Change
	if balance < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient units available")
	}

	inv.UnitsAvailable = balance
	if input.Change > 0 && (input.Type == enums.BloodHistoryTypeRestock || input.Type == enums.BloodHistoryTypeDonation) {
		now := time.Now()
		inv.LastRestockedAt = &now
	}
	if err := repo.SaveInventory(ctx, inv); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save inventory")
	}

	entry := &models.BloodHistoryEntry{
		InventoryID:  inv.ID,
		Change:       input.Change,
		BalanceAfter: balance,
		Type:         input.Type,
		Note:         input.Note,
	}
	if input.Actor.Name != "" {
		name := input.Actor.Name
		entry.ActorName = &name
	}
	if input.Actor.Role != "" {
		role := string(input.Actor.Role)
		entry.ActorRole = &role
	}
	if err := repo.AppendHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history")
	}

	if err := s.emitAdjusted(ctx, tx, inv, entry, input.Actor); err != nil {
		return nil, err
	}
	if err := s.maybeEmitLowStock(ctx, tx, inv); err != nil {
		return nil, err
	}

	return &AdjustResult{Inventory: inv, Entry: entry}, nil
}

// InvalidateCaches evicts cached inventory reads. Exposed for services that
// debit stock through AdjustTx inside their own transaction.
func (s *service) InvalidateCaches(ctx context.Context) {
	s.invalidateInventoryCache(ctx)
}

func (s *service) History(ctx context.Context, group enums.BloodGroup, params pagination.Params) ([]models.BloodHistoryEntry, error) {
	inv, err := s.GetInventory(ctx, group)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListHistory(ctx, inv.ID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list history")
	}
	return rows, nil
}

func (s *service) ListBelowThreshold(ctx context.Context) ([]models.BloodInventory, error) {
	return s.repo.ListBelowThreshold(ctx)
}

func validateAdjustInput(input AdjustInput) error {
	if !input.Group.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid blood group")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid history type")
	}
	if input.Change == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "change cannot be zero")
	}
	switch input.Type {
	case enums.BloodHistoryTypeRestock, enums.BloodHistoryTypeDonation:
		if input.Change < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "restocks and donations must add units")
		}
	case enums.BloodHistoryTypeRequestFulfillment:
		if input.Change > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "fulfillments must remove units")
		}
	}
	return nil
}

func (s *service) emitAdjusted(ctx context.Context, tx *gorm.DB, inv *models.BloodInventory, entry *models.BloodHistoryEntry, actor Actor) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventBloodInventoryAdjusted,
		AggregateType: enums.AggregateBloodInventory,
		AggregateID:   inv.ID,
		Version:       1,
		Data: payloads.BloodInventoryAdjustedEvent{
			InventoryID:  inv.ID,
			BloodGroup:   inv.BloodGroup,
			Change:       entry.Change,
			BalanceAfter: entry.BalanceAfter,
			Type:         entry.Type,
		},
	}
	if actor.UserID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit adjusted event")
	}
	return nil
}

func (s *service) maybeEmitLowStock(ctx context.Context, tx *gorm.DB, inv *models.BloodInventory) error {
	if inv.MinimumThreshold == nil || inv.UnitsAvailable > *inv.MinimumThreshold {
		return nil
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventBloodStockLow,
		AggregateType: enums.AggregateBloodInventory,
		AggregateID:   inv.ID,
		Version:       1,
		Data: payloads.BloodStockLowEvent{
			InventoryID:      inv.ID,
			BloodGroup:       inv.BloodGroup,
			UnitsAvailable:   inv.UnitsAvailable,
			MinimumThreshold: *inv.MinimumThreshold,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit low stock event")
	}
	return nil
}

// readCachedList serves a list read from redis. Any cache error falls through
// to the database.
func (s *service) readCachedList(ctx context.Context, name string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(CacheTagInventory, name))
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// writeCachedList stores the payload and registers its key under the
// inventory tag so the next mutation evicts it.
func (s *service) writeCachedList(ctx context.Context, name string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	key := s.cache.CacheKey(CacheTagInventory, name)
	if err := s.cache.Set(ctx, key, string(raw), inventoryCacheTTL); err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "failed to cache inventory read")
		}
		return
	}
	if err := s.cache.TagCacheKey(ctx, key, CacheTagInventory); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to tag inventory cache key")
	}
}

func (s *service) invalidateInventoryCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTag(ctx, CacheTagInventory); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to invalidate inventory cache")
	}
}
