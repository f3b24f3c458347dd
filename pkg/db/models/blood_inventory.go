package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// BloodInventory is the authoritative stock record for one blood group.
// UnitsAvailable is only ever mutated inside a transaction that also appends
// a BloodHistoryEntry carrying the post-change balance.
type BloodInventory struct {
	ID               uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BloodGroup       enums.BloodGroup `gorm:"column:blood_group;type:blood_group_enum;not null;uniqueIndex:ux_blood_inventories_group"`
	UnitsAvailable   int              `gorm:"column:units_available;not null;default:0"`
	MinimumThreshold *int             `gorm:"column:minimum_threshold"`
	Notes            *string          `gorm:"column:notes"`
	LastRestockedAt  *time.Time       `gorm:"column:last_restocked_at"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	History []BloodHistoryEntry `gorm:"foreignKey:InventoryID"`
}

// BloodHistoryEntry is an immutable audit-log row describing one balance change.
type BloodHistoryEntry struct {
	ID           uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InventoryID  uuid.UUID              `gorm:"column:inventory_id;type:uuid;not null;index"`
	Change       int                    `gorm:"column:change;not null"`
	BalanceAfter int                    `gorm:"column:balance_after;not null"`
	Type         enums.BloodHistoryType `gorm:"column:type;type:blood_history_type_enum;not null"`
	Note         *string                `gorm:"column:note"`
	ActorName    *string                `gorm:"column:actor_name"`
	ActorRole    *string                `gorm:"column:actor_role"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
