package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/amasijo/dulceria-backend/internal/cache"
	"github.com/amasijo/dulceria-backend/internal/modules/catalog"
	"github.com/amasijo/dulceria-backend/internal/modules/square"
	"github.com/amasijo/dulceria-backend/internal/retry"
)

// CatalogClient is the slice of the Square client the engine needs.
type CatalogClient interface {
	SearchCatalog(ctx context.Context) (*square.Snapshot, error)
	RetrieveCatalogObject(ctx context.Context, id string) (*square.CatalogObject, error)
}

// Config holds the orchestrator knobs. Zero values fall back to production
// defaults; tests zero the delays and shrink the attempts.
type Config struct {
	BatchSize        int           // items per chunk
	Concurrency      int           // simultaneous item tasks within a chunk
	GroupDelay       time.Duration // pause between concurrency groups
	BatchDelay       time.Duration // pause between chunks
	StaleAfter       time.Duration // age before an absent product is archived
	StorageAttempts  int
	StorageRetryBase time.Duration
	DefaultCategory  string
	CacheTTL         time.Duration // catalog search cache window
}

func (c Config) withDefaults() Config {
	if c.BatchSize < 1 {
		c.BatchSize = 5
	}
	if c.Concurrency < 1 {
		c.Concurrency = 3
	}
	if c.GroupDelay == 0 {
		c.GroupDelay = 200 * time.Millisecond
	}
	if c.BatchDelay == 0 {
		c.BatchDelay = time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 24 * time.Hour
	}
	if c.StorageAttempts < 1 {
		c.StorageAttempts = retry.DefaultMaxAttempts
	}
	if c.StorageRetryBase <= 0 {
		c.StorageRetryBase = 100 * time.Millisecond
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = "General"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Minute
	}
	return c
}

// ItemError records one item's processing failure with enough context to
// chase it down later.
type ItemError struct {
	SquareID string `json:"square_id"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// Summary is the structured result of one sync run. Partial success is the
// normal terminal state when some items error.
type Summary struct {
	Synced      int         `json:"synced"`
	Total       int         `json:"total"`
	Archived    int64       `json:"archived"`
	Errors      []ItemError `json:"errors,omitempty"`
	SuccessRate float64     `json:"success_rate"`
	Duration    string      `json:"duration"`
}

// Engine drives the end-to-end catalog sync:
// Init → FetchSnapshot → DetectDuplicates → ProcessBatches → ArchiveStale →
// Summarize.
type Engine struct {
	client    CatalogClient
	repo      catalog.Repository
	images    *ImageResolver
	cache     *cache.TTLCache
	sanitizer *bluemonday.Policy
	cfg       Config
}

// New creates a sync engine. cacheStore may be nil to disable snapshot
// caching.
func New(client CatalogClient, repo catalog.Repository, images *ImageResolver, cacheStore *cache.TTLCache, cfg Config) *Engine {
	return &Engine{
		client:    client,
		repo:      repo,
		images:    images,
		cache:     cacheStore,
		sanitizer: bluemonday.UGCPolicy(),
		cfg:       cfg.withDefaults(),
	}
}

// runState is the mutable state of one run. The snapshot and remap are
// read-only after setup; the collectors behind mu are shared by item tasks.
type runState struct {
	snapshot        *square.Snapshot
	remap           map[string]string
	categoryNames   map[string]string // square category id -> display name
	defaultCategory *catalog.Category

	mu     sync.Mutex
	seen   []string
	synced int
	errors []ItemError
}

func (r *runState) recordSeen(squareID string) {
	r.mu.Lock()
	r.seen = append(r.seen, squareID)
	r.mu.Unlock()
}

func (r *runState) recordSynced() {
	r.mu.Lock()
	r.synced++
	r.mu.Unlock()
}

func (r *runState) recordError(obj square.CatalogObject, err error) {
	name := ""
	if obj.ItemData != nil {
		name = obj.ItemData.Name
	}
	r.mu.Lock()
	r.errors = append(r.errors, ItemError{SquareID: obj.ID, Name: name, Error: err.Error()})
	r.mu.Unlock()
}

// store wraps a storage operation with the bounded storage retry executor.
func (e *Engine) store(ctx context.Context, op retry.Operation) error {
	return retry.Do(ctx, e.cfg.StorageAttempts, retry.Storage(e.cfg.StorageRetryBase), op)
}

// Run executes one full catalog sync. Only a default-category failure or an
// exhausted catalog search aborts the run; everything else degrades to a
// partial-success summary.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	// Init: the fallback category must exist before any item is processed.
	defaultCat, err := e.ensureCategory(ctx, "", e.cfg.DefaultCategory)
	if err != nil {
		return nil, fmt.Errorf("sync: ensure default category: %w", err)
	}

	snap, err := e.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	run := &runState{
		snapshot:        snap,
		remap:           DetectDuplicates(snap),
		categoryNames:   categoryNames(snap),
		defaultCategory: defaultCat,
	}

	items := snap.Items()
	e.processBatches(ctx, items, run)

	// The archive pass only sees IDs collected by completed item tasks, so it
	// runs strictly after every batch has drained.
	var archived int64
	cutoff := time.Now().Add(-e.cfg.StaleAfter)
	err = e.store(ctx, func() error {
		var archiveErr error
		archived, archiveErr = e.repo.ArchiveStale(ctx, run.seen, cutoff)
		return archiveErr
	})
	if err != nil {
		log.Printf("sync: archive pass failed: %v", err)
	} else if archived > 0 {
		log.Printf("sync: archived %d stale products", archived)
	}

	summary := &Summary{
		Synced:      run.synced,
		Total:       len(items),
		Archived:    archived,
		Errors:      run.errors,
		SuccessRate: successRate(run.synced, len(items)),
		Duration:    time.Since(start).Round(time.Millisecond).String(),
	}
	log.Printf("sync: run complete: %d/%d items synced, %d errors, %d archived in %s",
		summary.Synced, summary.Total, len(summary.Errors), summary.Archived, summary.Duration)
	return summary, nil
}

func (e *Engine) fetchSnapshot(ctx context.Context) (*square.Snapshot, error) {
	if e.cache == nil {
		return e.client.SearchCatalog(ctx)
	}
	key := cache.Key("catalog.search", "items,images,categories")
	v, err := e.cache.GetOrCompute(key, e.cfg.CacheTTL, func() (interface{}, error) {
		return e.client.SearchCatalog(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*square.Snapshot), nil
}

// processBatches partitions items into fixed-size chunks and bounds the
// number of simultaneous item tasks within each chunk. The small delays keep
// the effective call rate within Square's limits on top of the per-call rate
// limiter.
func (e *Engine) processBatches(ctx context.Context, items []square.CatalogObject, run *runState) {
	for chunkStart := 0; chunkStart < len(items); chunkStart += e.cfg.BatchSize {
		chunkEnd := chunkStart + e.cfg.BatchSize
		if chunkEnd > len(items) {
			chunkEnd = len(items)
		}
		chunk := items[chunkStart:chunkEnd]

		for groupStart := 0; groupStart < len(chunk); groupStart += e.cfg.Concurrency {
			groupEnd := groupStart + e.cfg.Concurrency
			if groupEnd > len(chunk) {
				groupEnd = len(chunk)
			}

			var wg sync.WaitGroup
			for _, obj := range chunk[groupStart:groupEnd] {
				wg.Add(1)
				go func(obj square.CatalogObject) {
					defer wg.Done()
					// The item exists upstream whether or not we manage to
					// map it, so it is never an archive candidate this run.
					run.recordSeen(obj.ID)
					if err := e.processItem(ctx, obj, run); err != nil {
						e.logItemFailure(obj, err)
						run.recordError(obj, err)
						return
					}
					run.recordSynced()
				}(obj)
			}
			wg.Wait()

			if groupEnd < len(chunk) {
				time.Sleep(e.cfg.GroupDelay)
			}
		}

		if chunkEnd < len(items) {
			time.Sleep(e.cfg.BatchDelay)
		}
	}
}

func (e *Engine) logItemFailure(obj square.CatalogObject, err error) {
	name, category, hasNutrition := "", "", false
	if obj.ItemData != nil {
		name = obj.ItemData.Name
		if ids := obj.CategoryIDs(); len(ids) > 0 {
			category = ids[0]
		}
		hasNutrition = obj.ItemData.FoodAndBeverageDetails != nil
	}
	log.Printf("sync: item %s (%q) failed [category=%s nutrition=%v]: %v",
		obj.ID, name, category, hasNutrition, err)
}

func categoryNames(snap *square.Snapshot) map[string]string {
	names := make(map[string]string)
	for _, cat := range snap.Categories() {
		if cat.CategoryData != nil {
			names[cat.ID] = cat.CategoryData.Name
		}
	}
	return names
}

func successRate(synced, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(synced) / float64(total)
}
