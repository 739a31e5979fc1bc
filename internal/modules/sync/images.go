package sync

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amasijo/dulceria-backend/internal/modules/square"
)

// CatalogFetcher is the slice of the Square client the image resolver needs.
type CatalogFetcher interface {
	RetrieveCatalogObject(ctx context.Context, id string) (*square.CatalogObject, error)
}

// Default knobs for image resolution.
const (
	defaultImageBatchSize = 4
	defaultImagePause     = 200 * time.Millisecond
	defaultProbeTimeout   = 5 * time.Second
)

// Catalog file URLs are served from per-environment storage buckets; an image
// uploaded in one environment can 404 in the other. The variants are the host
// fragments swapped during fallback probing.
var defaultHostVariants = []string{"square-catalog-sandbox", "square-catalog-production"}

// ImageResolver resolves Square image references to verified-reachable URLs.
// Resolution of each reference is independent: an unreachable image is
// dropped, never an error.
type ImageResolver struct {
	client       CatalogFetcher
	probe        *http.Client
	batchSize    int
	pause        time.Duration
	hostVariants []string
}

// ImageResolverConfig holds the resolver knobs; zero values use defaults.
type ImageResolverConfig struct {
	BatchSize    int
	Pause        time.Duration
	ProbeTimeout time.Duration
	HostVariants []string
}

// NewImageResolver creates an image resolver around the given catalog client.
func NewImageResolver(client CatalogFetcher, cfg ImageResolverConfig) *ImageResolver {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaultImageBatchSize
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	} else if cfg.Pause == 0 {
		cfg.Pause = defaultImagePause
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if len(cfg.HostVariants) == 0 {
		cfg.HostVariants = defaultHostVariants
	}
	return &ImageResolver{
		client:       client,
		probe:        &http.Client{Timeout: cfg.ProbeTimeout},
		batchSize:    cfg.BatchSize,
		pause:        cfg.Pause,
		hostVariants: cfg.HostVariants,
	}
}

// Resolve maps image references to reachable URLs, preserving input order.
// References are processed in small concurrent batches with a short pause in
// between so the probe target is not hammered. The result holds only verified
// URLs and is empty, not an error, when nothing is reachable.
func (r *ImageResolver) Resolve(ctx context.Context, ids []string, snap *square.Snapshot) []string {
	if len(ids) == 0 {
		return nil
	}
	resolved := make([]string, len(ids))

	for start := 0; start < len(ids); start += r.batchSize {
		end := start + r.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				if url, ok := r.resolveOne(ctx, id, snap); ok {
					resolved[i] = url
				}
			}(i, ids[i])
		}
		wg.Wait()
		if end < len(ids) && r.pause > 0 {
			time.Sleep(r.pause)
		}
	}

	urls := make([]string, 0, len(ids))
	for _, u := range resolved {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func (r *ImageResolver) resolveOne(ctx context.Context, id string, snap *square.Snapshot) (string, bool) {
	raw, ok := snap.RelatedImageURL(id)
	if !ok {
		obj, err := r.client.RetrieveCatalogObject(ctx, id)
		if err != nil {
			log.Printf("sync: image %s lookup failed: %v", id, err)
			return "", false
		}
		if obj.ImageData == nil || obj.ImageData.URL == "" {
			log.Printf("sync: image %s has no URL", id)
			return "", false
		}
		raw = obj.ImageData.URL
	}

	if !r.isStoredFileURL(raw) {
		return raw, true
	}
	for _, candidate := range r.candidates(raw) {
		if r.reachable(ctx, candidate) {
			return candidate, true
		}
	}
	log.Printf("sync: image %s unreachable in every storage variant, dropping", id)
	return "", false
}

func (r *ImageResolver) isStoredFileURL(raw string) bool {
	for _, v := range r.hostVariants {
		if strings.Contains(raw, v) {
			return true
		}
	}
	return false
}

// candidates returns the probe order for a stored-file URL: the URL as given,
// then the same URL rebuilt against each alternate storage variant.
func (r *ImageResolver) candidates(raw string) []string {
	current := ""
	for _, v := range r.hostVariants {
		if strings.Contains(raw, v) {
			current = v
			break
		}
	}
	if current == "" {
		return []string{raw}
	}
	urls := []string{raw}
	for _, v := range r.hostVariants {
		if v != current {
			urls = append(urls, strings.Replace(raw, current, v, 1))
		}
	}
	return urls
}

func (r *ImageResolver) reachable(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := r.probe.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}
