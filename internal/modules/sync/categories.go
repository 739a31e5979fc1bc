package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/amasijo/dulceria-backend/internal/modules/catalog"
	"github.com/amasijo/dulceria-backend/internal/modules/square"
)

// DetectDuplicates groups a snapshot's categories by case-insensitive trimmed
// name and, for every group with more than one member, elects the member
// referenced by the most items as the survivor. Ties keep the first
// encountered, stable by input order. The returned remap sends each losing
// Square ID to its survivor's ID; survivors never appear as keys, so there
// are no transitive chains.
func DetectDuplicates(snap *square.Snapshot) map[string]string {
	refCounts := make(map[string]int)
	for _, item := range snap.Items() {
		for _, id := range item.CategoryIDs() {
			refCounts[id]++
		}
	}

	groups := make(map[string][]string)
	var names []string
	for _, cat := range snap.Categories() {
		if cat.CategoryData == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(cat.CategoryData.Name))
		if name == "" {
			continue
		}
		if _, seen := groups[name]; !seen {
			names = append(names, name)
		}
		groups[name] = append(groups[name], cat.ID)
	}

	remap := make(map[string]string)
	for _, name := range names {
		ids := groups[name]
		if len(ids) < 2 {
			continue
		}
		winner := ids[0]
		for _, id := range ids[1:] {
			if refCounts[id] > refCounts[winner] {
				winner = id
			}
		}
		for _, id := range ids {
			if id != winner {
				remap[id] = winner
				log.Printf("sync: duplicate category %q: %s remapped to %s (%d vs %d item refs)",
					name, id, winner, refCounts[id], refCounts[winner])
			}
		}
	}
	return remap
}

// ensureCategory resolves a (possibly remapped) Square category to a local
// row, trying the lookup strategies in priority order and creating the row if
// none matches. Every hit that lacked a stored Square ID gets it backfilled.
func (e *Engine) ensureCategory(ctx context.Context, squareID, name string) (*catalog.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("sync: category name is empty")
	}
	catSlug := slug.Make(name)

	type lookup struct {
		by string
		fn func() (*catalog.Category, error)
	}
	lookups := []lookup{
		{"square_id", func() (*catalog.Category, error) {
			if squareID == "" {
				return nil, catalog.ErrNotFound
			}
			return e.repo.CategoryBySquareID(ctx, squareID)
		}},
		{"name", func() (*catalog.Category, error) { return e.repo.CategoryByName(ctx, name) }},
		{"slug", func() (*catalog.Category, error) { return e.repo.CategoryBySlug(ctx, catSlug) }},
	}

	for _, l := range lookups {
		c, err := l.fn()
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sync: category lookup by %s: %w", l.by, err)
		}
		if c.SquareID == nil && squareID != "" {
			if err := e.store(ctx, func() error {
				return e.repo.SetCategorySquareID(ctx, c.ID, squareID)
			}); err != nil {
				log.Printf("sync: backfill square id on category %q failed: %v", c.Name, err)
			} else {
				c.SquareID = &squareID
			}
		}
		return c, nil
	}

	c := &catalog.Category{ID: uuid.New(), Name: name, Slug: catSlug}
	if squareID != "" {
		c.SquareID = &squareID
	}
	err := e.store(ctx, func() error { return e.repo.CreateCategory(ctx, c) })
	if _, conflict := catalog.ConstraintViolation(err); conflict {
		// Lost a create race: another item task persisted the same name first.
		if existing, lookupErr := e.repo.CategoryByName(ctx, name); lookupErr == nil {
			return existing, nil
		}
		if existing, lookupErr := e.repo.CategoryBySlug(ctx, catSlug); lookupErr == nil {
			return existing, nil
		}
		// Still nothing visible; a suffixed slug keeps the batch moving.
		c.ID = uuid.New()
		c.Slug = fmt.Sprintf("%s-%d", catSlug, time.Now().UnixMilli())
		log.Printf("sync: category %q create raced, retrying with slug %s", name, c.Slug)
		err = e.store(ctx, func() error { return e.repo.CreateCategory(ctx, c) })
	}
	if err != nil {
		return nil, fmt.Errorf("sync: create category %q: %w", name, err)
	}
	return c, nil
}
