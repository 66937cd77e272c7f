// Package levels holds the static battle catalog.
package levels

import (
	"fmt"
	"sort"

	"github.com/fogbreaker/engine/internal/domain"
)

// UnlockScore is the minimum score on a level that unlocks the next one.
const UnlockScore = 60

// Catalog is an immutable, id-ordered set of levels.
type Catalog struct {
	levels []domain.Level
	byID   map[int]domain.Level
}

// NewCatalog builds a catalog from levels. Ids must be unique and positive.
func NewCatalog(levels []domain.Level) (*Catalog, error) {
	c := &Catalog{byID: make(map[int]domain.Level, len(levels))}
	for _, l := range levels {
		if l.ID <= 0 {
			return nil, fmt.Errorf("level id must be positive, got %d", l.ID)
		}
		if l.Rounds <= 0 {
			return nil, fmt.Errorf("level %d: rounds must be positive", l.ID)
		}
		if _, dup := c.byID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate level id %d", l.ID)
		}
		c.byID[l.ID] = l
		c.levels = append(c.levels, l)
	}
	sort.Slice(c.levels, func(i, j int) bool { return c.levels[i].ID < c.levels[j].ID })
	return c, nil
}

// Default returns the built-in eight-level catalog.
func Default() *Catalog {
	c, err := NewCatalog(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the level with id, or ErrLevelNotFound.
func (c *Catalog) Get(id int) (domain.Level, error) {
	l, ok := c.byID[id]
	if !ok {
		return domain.Level{}, domain.WrapEngineError(domain.ErrLevelNotFound.Code,
			fmt.Sprintf("level %d not found", id), nil)
	}
	return l, nil
}

// All returns the levels in id order.
func (c *Catalog) All() []domain.Level {
	out := make([]domain.Level, len(c.levels))
	copy(out, c.levels)
	return out
}

// LastID is the highest level id. Finishing it unlocks nothing.
func (c *Catalog) LastID() int {
	if len(c.levels) == 0 {
		return 0
	}
	return c.levels[len(c.levels)-1].ID
}
