package engine

import "errors"

var ErrEmptyPool = errors.New("empty item pool")

// Rand is the random source injected into every draw. *rand.Rand satisfies
// it; tests and replay tooling supply seeded or recorded sources instead of
// global randomness.
type Rand interface {
	Float64() float64
}

// PoolEntry is one item slot in a loot box's pool. Weight is the catalog drop
// probability; weights need not sum to 1, only to something positive.
type PoolEntry struct {
	ItemID string
	Rarity string
	Value  int64 // market value in cents
	Weight float64
}

// Draw picks one entry from the pool: r uniform in [0, Σweight), then a
// cumulative walk in declared pool order. The walk never re-sorts, so a
// recorded roll replays to the same item.
func Draw(pool []PoolEntry, rng Rand) (PoolEntry, error) {
	entry, _, err := DrawRoll(pool, rng)
	return entry, err
}

// DrawRoll is Draw plus the raw roll in [0, Σweight), persisted alongside the
// opening so any round can be audited against the catalog weights.
func DrawRoll(pool []PoolEntry, rng Rand) (PoolEntry, float64, error) {
	var total float64
	for _, e := range pool {
		if e.Weight > 0 {
			total += e.Weight
		}
	}
	if len(pool) == 0 || total <= 0 {
		return PoolEntry{}, 0, ErrEmptyPool
	}

	r := rng.Float64() * total
	var cum float64
	for _, e := range pool {
		if e.Weight <= 0 {
			continue
		}
		cum += e.Weight
		if r < cum {
			return e, r, nil
		}
	}
	// Float accumulation can leave r a hair past the final cumulative sum.
	for i := len(pool) - 1; i >= 0; i-- {
		if pool[i].Weight > 0 {
			return pool[i], r, nil
		}
	}
	return PoolEntry{}, 0, ErrEmptyPool
}
