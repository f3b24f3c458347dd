package bloodbank

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/pagination"
)

func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:bloodbank_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	inventories := `
CREATE TABLE IF NOT EXISTS blood_inventories (
  id TEXT PRIMARY KEY,
  blood_group TEXT NOT NULL UNIQUE,
  units_available INTEGER NOT NULL DEFAULT 0,
  minimum_threshold INTEGER,
  notes TEXT,
  last_restocked_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	history := `
CREATE TABLE IF NOT EXISTS blood_history_entries (
  id TEXT PRIMARY KEY,
  inventory_id TEXT NOT NULL,
  change INTEGER NOT NULL,
  balance_after INTEGER NOT NULL,
  type TEXT NOT NULL,
  note TEXT,
  actor_name TEXT,
  actor_role TEXT,
  created_at DATETIME
);`
	for _, stmt := range []string{inventories, history} {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return conn
}

func TestRepository_InventoryLifecycle(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	ctx := context.Background()

	inv := &models.BloodInventory{BloodGroup: enums.BloodGroupOPositive, UnitsAvailable: 12}
	inv.ID = uuid.New()
	if err := repo.CreateInventory(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := repo.FindByGroup(ctx, enums.BloodGroupOPositive)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.UnitsAvailable != 12 {
		t.Fatalf("expected 12 units, got %d", found.UnitsAvailable)
	}

	found.UnitsAvailable = 8
	if err := repo.SaveInventory(ctx, found); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := repo.ListInventory(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].UnitsAvailable != 8 {
		t.Fatalf("unexpected list result %+v", rows)
	}

	if _, err := repo.FindByGroup(ctx, enums.BloodGroupABNegative); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestRepository_HistoryOrderingAndCursor(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	ctx := context.Background()

	inv := &models.BloodInventory{ID: uuid.New(), BloodGroup: enums.BloodGroupBPositive}
	if err := repo.CreateInventory(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		entry := &models.BloodHistoryEntry{
			ID:           uuid.New(),
			InventoryID:  inv.ID,
			Change:       i + 1,
			BalanceAfter: i + 1,
			Type:         enums.BloodHistoryTypeRestock,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rows, err := repo.ListHistory(ctx, inv.ID, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Change != i+1 {
			t.Fatalf("expected chronological order, got change %d at index %d", row.Change, i)
		}
	}

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: rows[0].CreatedAt, ID: rows[0].ID})
	page, err := repo.ListHistory(ctx, inv.ID, pagination.Params{Limit: 10, Cursor: cursor})
	if err != nil {
		t.Fatalf("list history with cursor: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 rows after cursor, got %d", len(page))
	}
	if page[0].Change != 2 || page[1].Change != 3 {
		t.Fatalf("cursor page out of order: changes %d, %d", page[0].Change, page[1].Change)
	}
}

func TestRepository_ListBelowThreshold(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	ctx := context.Background()

	low := 5
	rowsIn := []*models.BloodInventory{
		{ID: uuid.New(), BloodGroup: enums.BloodGroupAPositive, UnitsAvailable: 2, MinimumThreshold: &low},
		{ID: uuid.New(), BloodGroup: enums.BloodGroupBNegative, UnitsAvailable: 9, MinimumThreshold: &low},
		{ID: uuid.New(), BloodGroup: enums.BloodGroupONegative, UnitsAvailable: 0},
	}
	for _, inv := range rowsIn {
		if err := repo.CreateInventory(ctx, inv); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	out, err := repo.ListBelowThreshold(ctx)
	if err != nil {
		t.Fatalf("list below threshold: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one low group, got %d", len(out))
	}
	if out[0].BloodGroup != enums.BloodGroupAPositive {
		t.Fatalf("unexpected group %s", out[0].BloodGroup)
	}
}

func TestRepository_DeleteInventory(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	ctx := context.Background()

	inv := &models.BloodInventory{ID: uuid.New(), BloodGroup: enums.BloodGroupABPositive, UnitsAvailable: 3}
	require.NoError(t, repo.CreateInventory(ctx, inv))

	require.NoError(t, repo.DeleteInventory(ctx, inv))

	_, err := repo.FindByGroup(ctx, enums.BloodGroupABPositive)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	rows, err := repo.ListInventory(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}
