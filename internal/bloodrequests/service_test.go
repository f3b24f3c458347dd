package bloodrequests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/internal/bloodbank"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

type fakeRepo struct {
	findForUpdateFn func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error)

	listRows []models.BloodRequest
	created  []*models.BloodRequest
	saved    []*models.BloodRequest
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, request *models.BloodRequest) error {
	request.ID = uuid.New()
	f.created = append(f.created, request)
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
	return f.findForUpdateFn(ctx, id)
}

func (f *fakeRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
	return f.findForUpdateFn(ctx, id)
}

func (f *fakeRepo) Save(ctx context.Context, request *models.BloodRequest) error {
	f.saved = append(f.saved, request)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, filter ListFilter) ([]models.BloodRequest, error) {
	return f.listRows, nil
}

func (f *fakeRepo) ListByRequester(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.BloodRequest, error) {
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
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeInventory struct {
	adjustTxFn  func(ctx context.Context, tx *gorm.DB, input bloodbank.AdjustInput) (*bloodbank.AdjustResult, error)
	invalidated int
}

func (f *fakeInventory) ListInventory(ctx context.Context) ([]models.BloodInventory, error) {
	return nil, nil
}

func (f *fakeInventory) Summary(ctx context.Context) ([]bloodbank.GroupSummary, error) {
	return nil, nil
}

func (f *fakeInventory) GetInventory(ctx context.Context, group enums.BloodGroup) (*models.BloodInventory, error) {
	return nil, nil
}

func (f *fakeInventory) DeleteInventory(ctx context.Context, group enums.BloodGroup, actor bloodbank.Actor) error {
	return nil
}

func (f *fakeInventory) UpsertInventory(ctx context.Context, input bloodbank.UpsertInventoryInput) (*models.BloodInventory, error) {
	return nil, nil
}

func (f *fakeInventory) Adjust(ctx context.Context, input bloodbank.AdjustInput) (*bloodbank.AdjustResult, error) {
	return f.adjustTxFn(ctx, nil, input)
}

func (f *fakeInventory) AdjustTx(ctx context.Context, tx *gorm.DB, input bloodbank.AdjustInput) (*bloodbank.AdjustResult, error) {
	return f.adjustTxFn(ctx, tx, input)
}

func (f *fakeInventory) History(ctx context.Context, group enums.BloodGroup, params pagination.Params) ([]models.BloodHistoryEntry, error) {
	return nil, nil
}

func (f *fakeInventory) ListBelowThreshold(ctx context.Context) ([]models.BloodInventory, error) {
	return nil, nil
}

func (f *fakeInventory) InvalidateCaches(ctx context.Context) {
	f.invalidated++
}

func newTestService(t *testing.T, repo *fakeRepo, inventory *fakeInventory, emitter *fakeEmitter) Service {
	t.Helper()
	if inventory == nil {
		inventory = &fakeInventory{}
	}
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Inventory: inventory,
		TxRunner:  fakeTxRunner{},
		Outbox:    emitter,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func strPtr(s string) *string { return &s }

func TestCreate_DefaultsPriorityAndEmits(t *testing.T) {
	repo := &fakeRepo{}
	emitter := &fakeEmitter{}
	svc := newTestService(t, repo, nil, emitter)

	requesterID := uuid.New()
	request, err := svc.Create(context.Background(), CreateInput{
		Group:          enums.BloodGroupOPositive,
		UnitsRequested: 3,
		RequesterID:    &requesterID,
		RequesterName:  "Sam Aldana",
		RequesterEmail: "Sam.Aldana@Example.com",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if request.Priority != enums.BloodRequestPriorityMedium {
		t.Fatalf("expected default priority medium, got %s", request.Priority)
	}
	if request.Status != enums.BloodRequestStatusPending {
		t.Fatalf("expected pending status, got %s", request.Status)
	}
	if request.RequesterEmail != "sam.aldana@example.com" {
		t.Fatalf("expected lowercased email, got %s", request.RequesterEmail)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventBloodRequestCreated {
		t.Fatalf("expected one created event, got %+v", emitter.events)
	}
	if emitter.events[0].Actor == nil || emitter.events[0].Actor.UserID != requesterID {
		t.Fatal("expected requester recorded as event actor")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, nil, &fakeEmitter{})

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"invalid group", CreateInput{Group: "Q+", UnitsRequested: 1, RequesterName: "a", RequesterEmail: "a@b.c"}},
		{"zero units", CreateInput{Group: enums.BloodGroupAPositive, UnitsRequested: 0, RequesterName: "a", RequesterEmail: "a@b.c"}},
		{"invalid priority", CreateInput{Group: enums.BloodGroupAPositive, UnitsRequested: 1, Priority: "urgent-ish", RequesterName: "a", RequesterEmail: "a@b.c"}},
		{"missing name", CreateInput{Group: enums.BloodGroupAPositive, UnitsRequested: 1, RequesterEmail: "a@b.c"}},
		{"missing email", CreateInput{Group: enums.BloodGroupAPositive, UnitsRequested: 1, RequesterName: "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestList_CachedUntilLifecycleChange(t *testing.T) {
	repo := &fakeRepo{
		listRows: []models.BloodRequest{
			{ID: uuid.New(), BloodGroup: enums.BloodGroupAPositive, Status: enums.BloodRequestStatusPending},
		},
	}
	cache := newFakeTaggedCache()
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Inventory: &fakeInventory{},
		TxRunner:  fakeTxRunner{},
		Outbox:    &fakeEmitter{},
		Cache:     cache,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	ctx := context.Background()

	first, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one request, got %d", len(first))
	}
	if len(cache.store) != 1 {
		t.Fatalf("expected one cached listing, got %d", len(cache.store))
	}

	// A second row added outside the service stays invisible until a
	// lifecycle change evicts the tag.
	repo.listRows = append(repo.listRows, models.BloodRequest{
		ID:         uuid.New(),
		BloodGroup: enums.BloodGroupONegative,
		Status:     enums.BloodRequestStatusPending,
	})
	stale, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("cached list failed: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected cached listing of one, got %d", len(stale))
	}

	if _, err := svc.Create(ctx, CreateInput{
		Group:          enums.BloodGroupONegative,
		UnitsRequested: 1,
		RequesterName:  "Noor Haddad",
		RequesterEmail: "noor@example.com",
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fresh, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list after create failed: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected fresh listing of two after eviction, got %d", len(fresh))
	}
}

func TestDecide_ApprovePendingRequest(t *testing.T) {
	req := &models.BloodRequest{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupBPositive,
		UnitsRequested: 2,
		Status:         enums.BloodRequestStatusPending,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
			return req, nil
		},
	}
	emitter := &fakeEmitter{}
	svc := newTestService(t, repo, nil, emitter)

	actor := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	decided, err := svc.Decide(context.Background(), req.ID, DecideInput{Approve: true, Actor: actor})
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if decided.Status != enums.BloodRequestStatusApproved {
		t.Fatalf("expected approved, got %s", decided.Status)
	}
	if decided.ProcessedBy == nil || *decided.ProcessedBy != actor.UserID {
		t.Fatal("expected processed-by recorded")
	}
	if decided.ProcessedAt == nil {
		t.Fatal("expected processed-at recorded")
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventBloodRequestDecided {
		t.Fatalf("expected one decided event, got %+v", emitter.events)
	}
}

func TestDecide_RejectRequiresReason(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, nil, &fakeEmitter{})

	_, err := svc.Decide(context.Background(), uuid.New(), DecideInput{Approve: false})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestDecide_RejectRecordsReason(t *testing.T) {
	req := &models.BloodRequest{
		ID:     uuid.New(),
		Status: enums.BloodRequestStatusPending,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
			return req, nil
		},
	}
	svc := newTestService(t, repo, nil, &fakeEmitter{})

	decided, err := svc.Decide(context.Background(), req.ID, DecideInput{
		Approve: false,
		Reason:  strPtr("cross-match incompatible"),
		Actor:   Actor{UserID: uuid.New(), Role: enums.UserRoleDoctor},
	})
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if decided.Status != enums.BloodRequestStatusRejected {
		t.Fatalf("expected rejected, got %s", decided.Status)
	}
	if decided.RejectionReason == nil || *decided.RejectionReason != "cross-match incompatible" {
		t.Fatal("expected rejection reason recorded")
	}
}

func TestDecide_RejectsTerminalStates(t *testing.T) {
	for _, status := range []enums.BloodRequestStatus{
		enums.BloodRequestStatusRejected,
		enums.BloodRequestStatusFulfilled,
		enums.BloodRequestStatusCancelled,
	} {
		req := &models.BloodRequest{ID: uuid.New(), Status: status}
		repo := &fakeRepo{
			findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
				return req, nil
			},
		}
		svc := newTestService(t, repo, nil, &fakeEmitter{})

		_, err := svc.Decide(context.Background(), req.ID, DecideInput{Approve: true})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("status %s: expected STATE_CONFLICT, got %v", status, err)
		}
		if len(repo.saved) != 0 {
			t.Fatalf("status %s: conflicting transition must not save", status)
		}
	}
}

func TestDecide_NotFound(t *testing.T) {
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestService(t, repo, nil, &fakeEmitter{})

	_, err := svc.Decide(context.Background(), uuid.New(), DecideInput{Approve: true})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCancel_OwnerCanCancelOwnRequest(t *testing.T) {
	ownerID := uuid.New()
	req := &models.BloodRequest{
		ID:              uuid.New(),
		Status:          enums.BloodRequestStatusPending,
		RequesterUserID: &ownerID,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
			return req, nil
		},
	}
	svc := newTestService(t, repo, nil, &fakeEmitter{})

	cancelled, err := svc.Cancel(context.Background(), req.ID, Actor{UserID: ownerID, Role: enums.UserRolePatient})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != enums.BloodRequestStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestCancel_StrangerForbidden(t *testing.T) {
	ownerID := uuid.New()
	req := &models.BloodRequest{
		ID:              uuid.New(),
		Status:          enums.BloodRequestStatusPending,
		RequesterUserID: &ownerID,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
			return req, nil
		},
	}
	svc := newTestService(t, repo, nil, &fakeEmitter{})

	_, err := svc.Cancel(context.Background(), req.ID, Actor{UserID: uuid.New(), Role: enums.UserRolePatient})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestFulfill_DebitsStockAndEmits(t *testing.T) {
	req := &models.BloodRequest{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupONegative,
		UnitsRequested: 4,
		Status:         enums.BloodRequestStatusApproved,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
			return req, nil
		},
	}
	var debit bloodbank.AdjustInput
	inventory := &fakeInventory{
		adjustTxFn: func(ctx context.Context, tx *gorm.DB, input bloodbank.AdjustInput) (*bloodbank.AdjustResult, error) {
			debit = input
			return &bloodbank.AdjustResult{
				Inventory: &models.BloodInventory{
					BloodGroup:     input.Group,
					UnitsAvailable: 6,
				},
			}, nil
		},
	}
	emitter := &fakeEmitter{}
	svc := newTestService(t, repo, inventory, emitter)

	fulfilled, err := svc.Fulfill(context.Background(), req.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleReceptionist})
	if err != nil {
		t.Fatalf("fulfill failed: %v", err)
	}
	if fulfilled.Status != enums.BloodRequestStatusFulfilled {
		t.Fatalf("expected fulfilled, got %s", fulfilled.Status)
	}
	if debit.Change != -4 || debit.Type != enums.BloodHistoryTypeRequestFulfillment {
		t.Fatalf("unexpected stock debit %+v", debit)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventBloodRequestFulfilled {
		t.Fatalf("expected one fulfilled event, got %+v", emitter.events)
	}
	payload, ok := emitter.events[0].Data.(payloads.BloodRequestFulfilledEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", emitter.events[0].Data)
	}
	if payload.UnitsDispensed != 4 || payload.BalanceAfter != 6 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if inventory.invalidated != 1 {
		t.Fatal("expected inventory cache invalidation after commit")
	}
}

func TestFulfill_InsufficientStockLeavesRequestApproved(t *testing.T) {
	req := &models.BloodRequest{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupABNegative,
		UnitsRequested: 9,
		Status:         enums.BloodRequestStatusApproved,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
			return req, nil
		},
	}
	inventory := &fakeInventory{
		adjustTxFn: func(ctx context.Context, tx *gorm.DB, input bloodbank.AdjustInput) (*bloodbank.AdjustResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient units available")
		},
	}
	svc := newTestService(t, repo, inventory, &fakeEmitter{})

	_, err := svc.Fulfill(context.Background(), req.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
	if len(repo.saved) != 0 {
		t.Fatal("failed fulfillment must not persist the request")
	}
}

func TestFulfill_PendingRequestConflicts(t *testing.T) {
	req := &models.BloodRequest{
		ID:             uuid.New(),
		BloodGroup:     enums.BloodGroupAPositive,
		UnitsRequested: 1,
		Status:         enums.BloodRequestStatusPending,
	}
	repo := &fakeRepo{
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
			return req, nil
		},
	}
	svc := newTestService(t, repo, nil, &fakeEmitter{})

	_, err := svc.Fulfill(context.Background(), req.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}
