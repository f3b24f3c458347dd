package bloodbank

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

type fakeRepo struct {
	findForUpdateFn   func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error)
	createInventoryFn func(ctx context.Context, inv *models.BloodInventory) error
	saveInventoryFn   func(ctx context.Context, inv *models.BloodInventory) error
	appendHistoryFn   func(ctx context.Context, entry *models.BloodHistoryEntry) error

	inventoryRows []models.BloodInventory

	saved   []*models.BloodInventory
	history []*models.BloodHistoryEntry
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) ListInventory(ctx context.Context) ([]models.BloodInventory, error) {
	return f.inventoryRows, nil
}

func (f *fakeRepo) FindByGroup(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
	return f.findForUpdateFn(ctx, group)
}

func (f *fakeRepo) FindByGroupForUpdate(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
	return f.findForUpdateFn(ctx, group)
}

func (f *fakeRepo) CreateInventory(ctx context.Context, inv *models.BloodInventory) error {
	if f.createInventoryFn != nil {
		return f.createInventoryFn(ctx, inv)
	}
	inv.ID = uuid.New()
	f.saved = append(f.saved, inv)
	return nil
}

func (f *fakeRepo) SaveInventory(ctx context.Context, inv *models.BloodInventory) error {
	if f.saveInventoryFn != nil {
		return f.saveInventoryFn(ctx, inv)
	}
	f.saved = append(f.saved, inv)
	return nil
}

func (f *fakeRepo) DeleteInventory(ctx context.Context, inv *models.BloodInventory) error {
	return nil
}

func (f *fakeRepo) AppendHistory(ctx context.Context, entry *models.BloodHistoryEntry) error {
	if f.appendHistoryFn != nil {
		return f.appendHistoryFn(ctx, entry)
	}
	f.history = append(f.history, entry)
	return nil
}

func (f *fakeRepo) ListHistory(ctx context.Context, inventoryID uuid.UUID, params pagination.Params) ([]models.BloodHistoryEntry, error) {
	return nil, nil
}

func (f *fakeRepo) ListBelowThreshold(ctx context.Context) ([]models.BloodInventory, error) {
	return nil, nil
}

type fakeTaggedCache struct {
	store map[string]string
	tags  map[string][]string
}

func newFakeTaggedCache() *fakeTaggedCache {
	return &fakeTaggedCache{store: map[string]string{}, tags: map[string][]string{}}
}

func (f *fakeTaggedCache) CacheKey(parts ...string) string {
	return "cache:" + strings.Join(parts, ":")
}

func (f *fakeTaggedCache) Get(ctx context.Context, key string) (string, error) {
	val, ok := f.store[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return val, nil
}

func (f *fakeTaggedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.store[key] = value.(string)
	return nil
}

func (f *fakeTaggedCache) TagCacheKey(ctx context.Context, key string, tags ...string) error {
	for _, tag := range tags {
		f.tags[tag] = append(f.tags[tag], key)
	}
	return nil
}

func (f *fakeTaggedCache) InvalidateTag(ctx context.Context, tag string) error {
	for _, key := range f.tags[tag] {
		delete(f.store, key)
	}
	delete(f.tags, tag)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestService(t *testing.T, repo *fakeRepo, emitter *fakeEmitter) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		TxRunner: fakeTxRunner{},
		Outbox:   emitter,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestAdjust_AppendsHistoryWithBalance(t *testing.T) {
	inv := &models.BloodInventory{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupOPositive,
		UnitsAvailable: 10,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
			return inv, nil
		},
	}
	emitter := &fakeEmitter{}
	svc := newTestService(t, repo, emitter)

	result, err := svc.Adjust(context.Background(), AdjustInput{
		Group:  enums.BloodGroupOPositive,
		Change: 5,
		Type:   enums.BloodHistoryTypeRestock,
		Actor:  Actor{UserID: uuid.New(), Name: "Dana Ortiz", Role: enums.UserRoleAdmin},
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if result.Inventory.UnitsAvailable != 15 {
		t.Fatalf("expected balance 15, got %d", result.Inventory.UnitsAvailable)
	}
	if len(repo.history) != 1 {
		t.Fatalf("expected one history row, got %d", len(repo.history))
	}
	entry := repo.history[0]
	if entry.Change != 5 || entry.BalanceAfter != 15 {
		t.Fatalf("unexpected history entry change=%d balance=%d", entry.Change, entry.BalanceAfter)
	}
	if entry.ActorName == nil || *entry.ActorName != "Dana Ortiz" {
		t.Fatalf("expected actor name recorded")
	}
	if result.Inventory.LastRestockedAt == nil {
		t.Fatal("expected last restocked timestamp on restock")
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(emitter.events))
	}
	if emitter.events[0].EventType != enums.EventBloodInventoryAdjusted {
		t.Fatalf("unexpected event type %s", emitter.events[0].EventType)
	}
}

func TestAdjust_RejectsUnderflow(t *testing.T) {
	inv := &models.BloodInventory{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupANegative,
		UnitsAvailable: 3,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
			return inv, nil
		},
	}
	svc := newTestService(t, repo, &fakeEmitter{})

	_, err := svc.Adjust(context.Background(), AdjustInput{
		Group:  enums.BloodGroupANegative,
		Change: -4,
		Type:   enums.BloodHistoryTypeRequestFulfillment,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
	if len(repo.history) != 0 {
		t.Fatal("underflow must not write history")
	}
	if inv.UnitsAvailable != 3 {
		t.Fatalf("balance mutated on rejected adjust: %d", inv.UnitsAvailable)
	}
}

func TestAdjust_CreatesMissingGroupOnPositiveChange(t *testing.T) {
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestService(t, repo, &fakeEmitter{})

	result, err := svc.Adjust(context.Background(), AdjustInput{
		Group:  enums.BloodGroupABPositive,
		Change: 7,
		Type:   enums.BloodHistoryTypeDonation,
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if result.Inventory.UnitsAvailable != 7 {
		t.Fatalf("expected balance 7, got %d", result.Inventory.UnitsAvailable)
	}
}

func TestAdjust_MissingGroupNegativeChangeConflicts(t *testing.T) {
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestService(t, repo, &fakeEmitter{})

	_, err := svc.Adjust(context.Background(), AdjustInput{
		Group:  enums.BloodGroupBNegative,
		Change: -1,
		Type:   enums.BloodHistoryTypeAdjustment,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestAdjust_EmitsLowStockAtThreshold(t *testing.T) {
	threshold := 5
	inv := &models.BloodInventory{
		ID:               uuid.New(),
		BloodGroup:       enums.BloodGroupONegative,
		UnitsAvailable:   6,
		MinimumThreshold: &threshold,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
			return inv, nil
		},
	}
	emitter := &fakeEmitter{}
	svc := newTestService(t, repo, emitter)

	if _, err := svc.Adjust(context.Background(), AdjustInput{
		Group:  enums.BloodGroupONegative,
		Change: -1,
		Type:   enums.BloodHistoryTypeRequestFulfillment,
	}); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	if len(emitter.events) != 2 {
		t.Fatalf("expected adjusted + low stock events, got %d", len(emitter.events))
	}
	if emitter.events[1].EventType != enums.EventBloodStockLow {
		t.Fatalf("unexpected second event type %s", emitter.events[1].EventType)
	}
}

func TestAdjust_Validation(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeEmitter{})

	cases := []struct {
		name  string
		input AdjustInput
	}{
		{"invalid group", AdjustInput{Group: "Z+", Change: 1, Type: enums.BloodHistoryTypeRestock}},
		{"invalid type", AdjustInput{Group: enums.BloodGroupAPositive, Change: 1, Type: "siphon"}},
		{"zero change", AdjustInput{Group: enums.BloodGroupAPositive, Change: 0, Type: enums.BloodHistoryTypeRestock}},
		{"negative restock", AdjustInput{Group: enums.BloodGroupAPositive, Change: -2, Type: enums.BloodHistoryTypeRestock}},
		{"positive fulfillment", AdjustInput{Group: enums.BloodGroupAPositive, Change: 2, Type: enums.BloodHistoryTypeRequestFulfillment}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Adjust(context.Background(), tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestUpsertInventory_UpdatesThreshold(t *testing.T) {
	inv := &models.BloodInventory{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupBPositive,
		UnitsAvailable: 4,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
			return inv, nil
		},
	}
	svc := newTestService(t, repo, &fakeEmitter{})

	threshold := 10
	updated, err := svc.UpsertInventory(context.Background(), UpsertInventoryInput{
		Group:            enums.BloodGroupBPositive,
		MinimumThreshold: &threshold,
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if updated.MinimumThreshold == nil || *updated.MinimumThreshold != 10 {
		t.Fatal("expected threshold updated")
	}
	if updated.UnitsAvailable != 4 {
		t.Fatalf("upsert must not touch balance, got %d", updated.UnitsAvailable)
	}
}

func TestUpsertInventory_AbsoluteSetRecordsAdjustment(t *testing.T) {
	inv := &models.BloodInventory{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupBPositive,
		UnitsAvailable: 4,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
			return inv, nil
		},
	}
	svc := newTestService(t, repo, &fakeEmitter{})

	units := 9
	updated, err := svc.UpsertInventory(context.Background(), UpsertInventoryInput{
		Group: enums.BloodGroupBPositive,
		Units: &units,
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if updated.UnitsAvailable != 9 {
		t.Fatalf("expected absolute balance 9, got %d", updated.UnitsAvailable)
	}
	if len(repo.history) != 1 {
		t.Fatalf("expected one history row, got %d", len(repo.history))
	}
	entry := repo.history[0]
	if entry.Change != 5 || entry.BalanceAfter != 9 {
		t.Fatalf("history diff mismatch: change=%d balance=%d", entry.Change, entry.BalanceAfter)
	}
	if entry.Type != enums.BloodHistoryTypeAdjustment {
		t.Fatalf("expected adjustment entry, got %s", entry.Type)
	}
}

func TestUpsertInventory_RejectsNegativeUnits(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeEmitter{})

	units := -1
	_, err := svc.UpsertInventory(context.Background(), UpsertInventoryInput{
		Group: enums.BloodGroupBPositive,
		Units: &units,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListInventory_CachedUntilMutation(t *testing.T) {
	inv := &models.BloodInventory{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupOPositive,
		UnitsAvailable: 4,
	}
	repo := &fakeRepo{
		inventoryRows: []models.BloodInventory{*inv},
		findForUpdateFn: func(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
			return inv, nil
		},
	}
	cache := newFakeTaggedCache()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		TxRunner: fakeTxRunner{},
		Outbox:   &fakeEmitter{},
		Cache:    cache,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	ctx := context.Background()

	first, err := svc.ListInventory(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(first) != 1 || first[0].UnitsAvailable != 4 {
		t.Fatalf("unexpected first read %+v", first)
	}
	if len(cache.store) != 1 {
		t.Fatalf("expected one cached entry, got %d", len(cache.store))
	}

	// A write that bypasses the service must not leak through while the
	// cached entry lives.
	repo.inventoryRows[0].UnitsAvailable = 99
	stale, err := svc.ListInventory(ctx)
	if err != nil {
		t.Fatalf("cached list failed: %v", err)
	}
	if stale[0].UnitsAvailable != 4 {
		t.Fatalf("expected cached balance 4, got %d", stale[0].UnitsAvailable)
	}

	if _, err := svc.Adjust(ctx, AdjustInput{
		Group:  enums.BloodGroupOPositive,
		Change: 2,
		Type:   enums.BloodHistoryTypeRestock,
	}); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	repo.inventoryRows[0] = *inv

	fresh, err := svc.ListInventory(ctx)
	if err != nil {
		t.Fatalf("list after adjust failed: %v", err)
	}
	if fresh[0].UnitsAvailable != 6 {
		t.Fatalf("expected balance 6 after eviction, got %d", fresh[0].UnitsAvailable)
	}
}

func TestSummary_ZeroFillsAndBadges(t *testing.T) {
	threshold := 5
	repo := &fakeRepo{
		inventoryRows: []models.BloodInventory{
			{BloodGroup: enums.BloodGroupOPositive, UnitsAvailable: 3, MinimumThreshold: &threshold},
			{BloodGroup: enums.BloodGroupABNegative, UnitsAvailable: 12, MinimumThreshold: &threshold},
		},
	}
	svc := newTestService(t, repo, &fakeEmitter{})

	summary, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(summary) != len(enums.AllBloodGroups()) {
		t.Fatalf("expected all groups reported, got %d", len(summary))
	}

	byGroup := make(map[enums.BloodGroup]GroupSummary, len(summary))
	for _, row := range summary {
		byGroup[row.BloodGroup] = row
	}
	if got := byGroup[enums.BloodGroupOPositive]; got.UnitsAvailable != 3 || got.StockLevel != StockLevelLow {
		t.Fatalf("O+ badge mismatch: %+v", got)
	}
	if got := byGroup[enums.BloodGroupABNegative]; got.UnitsAvailable != 12 || got.StockLevel != StockLevelHealthy {
		t.Fatalf("AB- badge mismatch: %+v", got)
	}
	if got := byGroup[enums.BloodGroupANegative]; got.UnitsAvailable != 0 || got.StockLevel != StockLevelHealthy {
		t.Fatalf("untracked group should zero-fill: %+v", got)
	}
}
