package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/amasijo/dulceria-backend/internal/retry"
)

// APIError is a non-2xx response from the Square API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("square: API error %d", e.StatusCode)
	}
	return fmt.Sprintf("square: API error %d: %s", e.StatusCode, e.Detail)
}

// Config holds the knobs for constructing a Client. Zero values fall back to
// production defaults; tests substitute a zero-interval limiter and a local
// base URL.
type Config struct {
	BaseURL     string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	Limiter     *Limiter
	MaxAttempts int
	RetryBase   time.Duration
}

// Client talks to the Square API. Every call is serialised through the rate
// limiter and wrapped in the network retry executor.
type Client struct {
	baseURL     string
	token       string
	version     string
	http        *http.Client
	limiter     *Limiter
	maxAttempts int
	retryBase   time.Duration
}

// NewClient constructs a Square API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://connect.squareup.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-06-04"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(DefaultInterval)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = retry.DefaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.AccessToken,
		version:     cfg.APIVersion,
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     cfg.Limiter,
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
	}
}

// networkClassifier retries 429 with jittered exponential backoff and 5xx
// with linear backoff. Everything else, including transport failures,
// propagates immediately.
func networkClassifier(base time.Duration) retry.Classifier {
	return func(err error, attempt int) (time.Duration, bool) {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return 0, false
		}
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			jitter := time.Duration(rand.Int63n(int64(base) + 1))
			return base*(1<<attempt) + jitter, true
		case apiErr.StatusCode >= 500:
			return base * time.Duration(attempt+1), true
		}
		return 0, false
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("square: encode request: %w", err)
		}
	}

	return retry.Do(ctx, c.maxAttempts, networkClassifier(c.retryBase), func() error {
		if err := c.limiter.Throttle(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Square-Version", c.version)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

type searchCatalogRequest struct {
	ObjectTypes           []string `json:"object_types"`
	IncludeRelatedObjects bool     `json:"include_related_objects"`
	IncludeDeletedObjects bool     `json:"include_deleted_objects"`
	Cursor                string   `json:"cursor,omitempty"`
}

type searchCatalogResponse struct {
	Objects        []CatalogObject `json:"objects"`
	RelatedObjects []CatalogObject `json:"related_objects"`
	Cursor         string          `json:"cursor"`
}

// SearchCatalog fetches the full catalog snapshot: items, images and
// categories with related objects inlined, deleted objects excluded. Square
// pages large catalogs; every page goes through the limiter and retry.
func (c *Client) SearchCatalog(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	cursor := ""
	for {
		req := searchCatalogRequest{
			ObjectTypes:           []string{TypeItem, TypeImage, TypeCategory},
			IncludeRelatedObjects: true,
			IncludeDeletedObjects: false,
			Cursor:                cursor,
		}
		var resp searchCatalogResponse
		if err := c.do(ctx, http.MethodPost, "/v2/catalog/search", req, &resp); err != nil {
			return nil, fmt.Errorf("square: search catalog: %w", err)
		}
		snap.Objects = append(snap.Objects, resp.Objects...)
		snap.RelatedObjects = append(snap.RelatedObjects, resp.RelatedObjects...)
		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}
	log.Printf("square: catalog snapshot fetched (%d objects, %d related)", len(snap.Objects), len(snap.RelatedObjects))
	return snap, nil
}

type retrieveObjectResponse struct {
	Object         *CatalogObject  `json:"object"`
	RelatedObjects []CatalogObject `json:"related_objects"`
}

// RetrieveCatalogObject fetches a single catalog object by ID. Used as the
// fallback lookup when an image is missing from a snapshot's related objects.
func (c *Client) RetrieveCatalogObject(ctx context.Context, id string) (*CatalogObject, error) {
	var resp retrieveObjectResponse
	if err := c.do(ctx, http.MethodGet, "/v2/catalog/object/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("square: retrieve catalog object %s: %w", id, err)
	}
	if resp.Object == nil {
		return nil, fmt.Errorf("square: retrieve catalog object %s: empty response", id)
	}
	return resp.Object, nil
}

type retrieveOrderResponse struct {
	Order *Order `json:"order"`
}

// RetrieveOrder fetches full order details, used when a webhook event does not
// carry enough state on its own.
func (c *Client) RetrieveOrder(ctx context.Context, id string) (*Order, error) {
	var resp retrieveOrderResponse
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("square: retrieve order %s: %w", id, err)
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("square: retrieve order %s: empty response", id)
	}
	return resp.Order, nil
}
