package bloodrequests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/internal/bloodbank"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

// CacheTagRequests groups cached request listings for tag invalidation.
const CacheTagRequests = "bloodRequests"

// requestsCacheTTL bounds staleness if an eviction is ever missed.
const requestsCacheTTL = 5 * time.Minute

// Service defines the blood request lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.BloodRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error)
	List(ctx context.Context, filter ListFilter) ([]models.BloodRequest, error)
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.BloodRequest, error)
	Decide(ctx context.Context, id uuid.UUID, input DecideInput) (*models.BloodRequest, error)
	Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.BloodRequest, error)
	Fulfill(ctx context.Context, id uuid.UUID, actor Actor) (*models.BloodRequest, error)
}

// Actor is the authenticated identity driving a lifecycle change.
type Actor struct {
	UserID uuid.UUID
	Name   string
	Role   enums.UserRole
}

// CreateInput captures a new request for units.
type CreateInput struct {
	Group          enums.BloodGroup
	UnitsRequested int
	Priority       enums.BloodRequestPriority
	RequesterID    *uuid.UUID
	RequesterName  string
	RequesterEmail string
	RequesterPhone *string
	Reason         *string
	NeededOn       *time.Time
}

// DecideInput approves or rejects a pending request.
type DecideInput struct {
	Approve bool
	Reason  *string
	Actor   Actor
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

// ServiceParams wires the dependencies the service validates at startup.
type ServiceParams struct {
	Repo      Repository
	Inventory bloodbank.Service
	TxRunner  txRunner
	Outbox    eventEmitter
	Cache     taggedCache
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	inventory bloodbank.Service
	tx        txRunner
	outbox    eventEmitter
	cache     taggedCache
	logg      *logger.Logger
}

// NewService wires a blood request service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "blood request repository required")
	}
	if params.Inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory service required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &service{
		repo:      params.Repo,
		inventory: params.Inventory,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		cache:     params.Cache,
		logg:      params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.BloodRequest, error) {
	if !input.Group.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid blood group")
	}
	if input.UnitsRequested <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "units requested must be positive")
	}
	if input.Priority == "" {
		input.Priority = enums.BloodRequestPriorityMedium
	}
	if !input.Priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority")
	}
	if strings.TrimSpace(input.RequesterName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester name is required")
	}
	if strings.TrimSpace(input.RequesterEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester email is required")
	}

	request := &models.BloodRequest{
		BloodGroup:      input.Group,
		UnitsRequested:  input.UnitsRequested,
		Priority:        input.Priority,
		Status:          enums.BloodRequestStatusPending,
		RequesterUserID: input.RequesterID,
		RequesterName:   strings.TrimSpace(input.RequesterName),
		RequesterEmail:  strings.ToLower(strings.TrimSpace(input.RequesterEmail)),
		RequesterPhone:  input.RequesterPhone,
		Reason:          input.Reason,
		NeededOn:        input.NeededOn,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventBloodRequestCreated,
			AggregateType: enums.AggregateBloodRequest,
			AggregateID:   request.ID,
			Version:       1,
			Data: payloads.BloodRequestCreatedEvent{
				RequestID:      request.ID,
				BloodGroup:     request.BloodGroup,
				UnitsRequested: request.UnitsRequested,
				Priority:       request.Priority,
			},
		}
		if input.RequesterID != nil {
			event.Actor = &outbox.ActorRef{UserID: *input.RequesterID}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit created event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRequestCache(ctx)
	return request, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.BloodRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "blood request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	return request, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.BloodRequest, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if filter.Group != nil && !filter.Group.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid blood group filter")
	}

	key := listCacheKey(filter)
	var cached []models.BloodRequest
	if s.readCachedList(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}
	s.writeCachedList(ctx, key, rows)
	return rows, nil
}

// listCacheKey derives a stable cache key suffix from the filter so each
// distinct listing caches independently under the shared tag.
func listCacheKey(filter ListFilter) string {
	parts := []string{"list"}
	if filter.Status != nil {
		parts = append(parts, "status="+string(*filter.Status))
	}
	if filter.Group != nil {
		parts = append(parts, "group="+string(*filter.Group))
	}
	if filter.RequesterEmail != nil {
		parts = append(parts, "email="+strings.ToLower(*filter.RequesterEmail))
	}
	if filter.RequesterPhone != nil {
		parts = append(parts, "phone="+*filter.RequesterPhone)
	}
	if filter.Params.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", filter.Params.Limit))
	}
	if filter.Params.Cursor != "" {
		parts = append(parts, "cursor="+filter.Params.Cursor)
	}
	return strings.Join(parts, "|")
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.BloodRequest, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByRequester(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}
	return rows, nil
}

func (s *service) Decide(ctx context.Context, id uuid.UUID, input DecideInput) (*models.BloodRequest, error) {
	target := enums.BloodRequestStatusApproved
	if !input.Approve {
		target = enums.BloodRequestStatusRejected
		if input.Reason == nil || strings.TrimSpace(*input.Reason) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
		}
	}

	request, err := s.transition(ctx, id, target, input.Actor, func(req *models.BloodRequest) {
		if !input.Approve {
			req.RejectionReason = input.Reason
		}
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.BloodRequest, error) {
	var request *models.BloodRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := lockRequest(ctx, repo, id)
		if err != nil {
			return err
		}

		// Non-staff may only cancel their own request.
		if !actor.Role.IsStaff() {
			if req.RequesterUserID == nil || *req.RequesterUserID != actor.UserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "cannot cancel another requester's request")
			}
		}

		if err := applyTransition(req, enums.BloodRequestStatusCancelled, actor); err != nil {
			return err
		}
		if err := repo.Save(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save request")
		}
		if err := s.emitDecided(ctx, tx, req, actor); err != nil {
			return err
		}
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRequestCache(ctx)
	return request, nil
}

func (s *service) Fulfill(ctx context.Context, id uuid.UUID, actor Actor) (*models.BloodRequest, error) {
	var request *models.BloodRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := lockRequest(ctx, repo, id)
		if err != nil {
			return err
		}

		if err := applyTransition(req, enums.BloodRequestStatusFulfilled, actor); err != nil {
			return err
		}

		note := fmt.Sprintf("blood request %s", req.ID)
		adjusted, err := s.inventory.AdjustTx(ctx, tx, bloodbank.AdjustInput{
			Group:  req.BloodGroup,
			Change: -req.UnitsRequested,
			Type:   enums.BloodHistoryTypeRequestFulfillment,
			Note:   &note,
			Actor:  bloodbank.Actor{UserID: actor.UserID, Name: actor.Name, Role: actor.Role},
		})
		if err != nil {
			return err
		}

		if err := repo.Save(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save request")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventBloodRequestFulfilled,
			AggregateType: enums.AggregateBloodRequest,
			AggregateID:   req.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.BloodRequestFulfilledEvent{
				RequestID:      req.ID,
				BloodGroup:     req.BloodGroup,
				UnitsDispensed: req.UnitsRequested,
				BalanceAfter:   adjusted.Inventory.UnitsAvailable,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit fulfilled event")
		}

		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRequestCache(ctx)
	s.inventory.InvalidateCaches(ctx)
	return request, nil
}

func (s *service) transition(ctx context.Context, id uuid.UUID, target enums.BloodRequestStatus, actor Actor, mutate func(*models.BloodRequest)) (*models.BloodRequest, error) {
	var request *models.BloodRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := lockRequest(ctx, repo, id)
		if err != nil {
			return err
		}

		if err := applyTransition(req, target, actor); err != nil {
			return err
		}
		if mutate != nil {
			mutate(req)
		}
		if err := repo.Save(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save request")
		}
		if err := s.emitDecided(ctx, tx, req, actor); err != nil {
			return err
		}
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRequestCache(ctx)
	return request, nil
}

func lockRequest(ctx context.Context, repo Repository, id uuid.UUID) (*models.BloodRequest, error) {
	req, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "blood request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock request")
	}
	return req, nil
}

func applyTransition(req *models.BloodRequest, target enums.BloodRequestStatus, actor Actor) error {
	if !req.Status.CanTransitionTo(target) {
		return pkgerrors.New(
			pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move request from %s to %s", req.Status, target),
		)
	}
	req.Status = target
	now := time.Now()
	req.ProcessedAt = &now
	if actor.UserID != uuid.Nil {
		actorID := actor.UserID
		req.ProcessedBy = &actorID
	}
	return nil
}

func (s *service) emitDecided(ctx context.Context, tx *gorm.DB, req *models.BloodRequest, actor Actor) error {
	reason := ""
	if req.RejectionReason != nil {
		reason = *req.RejectionReason
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventBloodRequestDecided,
		AggregateType: enums.AggregateBloodRequest,
		AggregateID:   req.ID,
		Version:       1,
		Data: payloads.BloodRequestDecidedEvent{
			RequestID:  req.ID,
			BloodGroup: req.BloodGroup,
			Status:     req.Status,
			Reason:     reason,
		},
	}
	if actor.UserID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit decided event")
	}
	return nil
}

// readCachedList serves a listing from redis. Any cache error falls through
// to the database.
func (s *service) readCachedList(ctx context.Context, name string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(CacheTagRequests, name))
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// writeCachedList stores the payload and registers its key under the request
// tag so the next lifecycle change evicts it.
func (s *service) writeCachedList(ctx context.Context, name string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	key := s.cache.CacheKey(CacheTagRequests, name)
	if err := s.cache.Set(ctx, key, string(raw), requestsCacheTTL); err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "failed to cache request listing")
		}
		return
	}
	if err := s.cache.TagCacheKey(ctx, key, CacheTagRequests); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to tag request cache key")
	}
}

func (s *service) invalidateRequestCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTag(ctx, CacheTagRequests); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to invalidate request cache")
	}
}
