package enrich

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"listing-leads/storage"
	"listing-leads/utils"
)

// ImageScoreClient fetches the opaque per-lead image-quality score from the enrichment
// service and caches it in a KVStore.
type ImageScoreClient struct {
	http     *resty.Client
	cache    storage.KVStore
	cacheTTL time.Duration
	logger   *utils.Logger
}

type scoreRequest struct {
	LeadIDs []string `json:"lead_ids"`
}

type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// NewImageScoreClient creates a client. cache may be nil.
func NewImageScoreClient(baseURL string, timeout time.Duration, retries int, cache storage.KVStore, cacheTTL time.Duration, logger *utils.Logger) *ImageScoreClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ImageScoreClient{http: client, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Scores returns the image score of every lead the service knows about. Leads without
// a score are absent from the map.
func (c *ImageScoreClient) Scores(ctx context.Context, tenantID string, leadIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(leadIDs))
	var missing []string

	for _, id := range leadIDs {
		if s, ok := c.cached(ctx, tenantID, id); ok {
			out[id] = s
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var result scoreResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("tenant", tenantID).
		SetBody(scoreRequest{LeadIDs: missing}).
		SetResult(&result).
		Post("/tenants/{tenant}/image-scores")
	if err != nil {
		return nil, fmt.Errorf("image scores: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("image scores: unexpected status %d", resp.StatusCode())
	}

	for _, id := range missing {
		s, ok := result.Scores[id]
		if !ok {
			continue
		}
		out[id] = s
		c.store(ctx, tenantID, id, s)
	}

	c.logger.Debug("[enrich] tenant %s: %d image scores (%d fetched)", tenantID, len(out), len(missing))
	return out, nil
}

func cacheKey(tenantID, leadID string) string {
	return "image-score:" + tenantID + ":" + leadID
}

func (c *ImageScoreClient) cached(ctx context.Context, tenantID, leadID string) (float64, bool) {
	if c.cache == nil {
		return 0, false
	}
	val, err := c.cache.Get(ctx, cacheKey(tenantID, leadID))
	if err != nil {
		if !errors.Is(err, storage.ErrCacheMiss) {
			c.logger.Warn("[enrich] cache read %s: %v", leadID, err)
		}
		return 0, false
	}
	s, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return s, true
}

func (c *ImageScoreClient) store(ctx context.Context, tenantID, leadID string, score float64) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(tenantID, leadID), strconv.FormatFloat(score, 'f', -1, 64), c.cacheTTL); err != nil {
		c.logger.Warn("[enrich] cache write %s: %v", leadID, err)
	}
}
