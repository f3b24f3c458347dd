package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
	errOn  enums.OutboxEventType
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.errOn != "" && event.EventType == f.errOn {
		return errors.New("outbox unavailable")
	}
	f.events = append(f.events, event)
	return nil
}

type fakeInventoryReader struct {
	rows []models.BloodInventory
	err  error
}

func (f *fakeInventoryReader) ListBelowThreshold(ctx context.Context) ([]models.BloodInventory, error) {
	return f.rows, f.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func TestLowStockJobEmitsPerGroup(t *testing.T) {
	threshold := 10
	rows := []models.BloodInventory{
		{ID: uuid.New(), BloodGroup: enums.BloodGroupONegative, UnitsAvailable: 2, MinimumThreshold: &threshold},
		{ID: uuid.New(), BloodGroup: enums.BloodGroupABPositive, UnitsAvailable: 0},
	}
	sink := &fakeOutbox{}
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:    testLogger(t),
		DB:        fakeTxRunner{},
		Inventory: &fakeInventoryReader{rows: rows},
		Outbox:    sink,
	})
	if err != nil {
		t.Fatalf("NewLowStockJob failed: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sink.events))
	}
	first := sink.events[0]
	if first.EventType != enums.EventBloodStockLow || first.AggregateType != enums.AggregateBloodInventory {
		t.Fatalf("unexpected event %+v", first)
	}
	payload, ok := first.Data.(payloads.BloodStockLowEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", first.Data)
	}
	if payload.UnitsAvailable != 2 || payload.MinimumThreshold != threshold {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestLowStockJobPropagatesReadError(t *testing.T) {
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:    testLogger(t),
		DB:        fakeTxRunner{},
		Inventory: &fakeInventoryReader{err: errors.New("db down")},
		Outbox:    &fakeOutbox{},
	})
	if err != nil {
		t.Fatalf("NewLowStockJob failed: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when the inventory read fails")
	}
}

func TestLowStockJobAggregatesEmitErrors(t *testing.T) {
	rows := []models.BloodInventory{
		{ID: uuid.New(), BloodGroup: enums.BloodGroupONegative, UnitsAvailable: 2},
	}
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:    testLogger(t),
		DB:        fakeTxRunner{},
		Inventory: &fakeInventoryReader{rows: rows},
		Outbox:    &fakeOutbox{errOn: enums.EventBloodStockLow},
	})
	if err != nil {
		t.Fatalf("NewLowStockJob failed: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected emit failure to surface")
	}
}
