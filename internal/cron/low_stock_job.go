package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
)

type inventoryReader interface {
	ListBelowThreshold(ctx context.Context) ([]models.BloodInventory, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LowStockJobParams configure the blood stock scanner.
type LowStockJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Inventory inventoryReader
	Outbox    outboxEmitter
}

// NewLowStockJob builds the cron job that flags blood groups at or below
// their minimum threshold.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &lowStockJob{
		logg:      params.Logger,
		db:        params.DB,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		now:       time.Now,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	db        txRunner
	inventory inventoryReader
	outbox    outboxEmitter
	now       func() time.Time
}

func (j *lowStockJob) Name() string { return "blood-stock-low" }

func (j *lowStockJob) Run(ctx context.Context) error {
	rows, err := j.inventory.ListBelowThreshold(ctx)
	if err != nil {
		return fmt.Errorf("query low stock groups: %w", err)
	}

	var errs []error
	count := 0
	for _, row := range rows {
		if err := j.emitLowStock(ctx, row); err != nil {
			errs = append(errs, fmt.Errorf("emit low stock for %s: %w", row.BloodGroup, err))
			continue
		}
		count++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "low stock scan complete")
	return multierr.Combine(errs...)
}

func (j *lowStockJob) emitLowStock(ctx context.Context, row models.BloodInventory) error {
	threshold := 0
	if row.MinimumThreshold != nil {
		threshold = *row.MinimumThreshold
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventBloodStockLow,
			AggregateType: enums.AggregateBloodInventory,
			AggregateID:   row.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.BloodStockLowEvent{
				InventoryID:      row.ID,
				BloodGroup:       row.BloodGroup,
				UnitsAvailable:   row.UnitsAvailable,
				MinimumThreshold: threshold,
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
}
