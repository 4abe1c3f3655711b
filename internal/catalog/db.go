package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/crateclash/battle-backend/internal/engine"
	"github.com/crateclash/battle-backend/internal/store"
)

// DB reads pools from the catalog_items table. Rows come back in primary-key
// order, i.e. insertion order, which is the declared pool order.
type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) *DB {
	return &DB{db: db}
}

func (c *DB) ItemPool(ctx context.Context, lootBoxID string) ([]engine.PoolEntry, error) {
	var rows []store.CatalogItem
	err := c.db.WithContext(ctx).Where("loot_box_id = ?", lootBoxID).
		Order("id asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrUnknownBox
	}

	pool := make([]engine.PoolEntry, len(rows))
	for i, r := range rows {
		pool[i] = engine.PoolEntry{
			ItemID: r.ItemID,
			Rarity: r.Rarity,
			Value:  r.MarketValue,
			Weight: r.Weight,
		}
	}
	return pool, nil
}
