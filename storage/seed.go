package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"listing-leads/models"
)

type rawJSON struct {
	TenantID   string         `json:"tenant_id"`
	Portal     string         `json:"portal"`
	ExternalID string         `json:"external_id"`
	ScrapedAt  time.Time      `json:"scraped_at"`
	Payload    map[string]any `json:"payload"`
}

// ReadRawJSON decodes a JSON array of raw records as the scraping side exports them.
func ReadRawJSON(r io.Reader) ([]*models.RawRecord, error) {
	var docs []rawJSON
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	out := make([]*models.RawRecord, 0, len(docs))
	for i, d := range docs {
		if d.TenantID == "" || d.Portal == "" {
			return nil, fmt.Errorf("seed: record %d: tenant_id and portal are required", i)
		}
		out = append(out, &models.RawRecord{
			TenantID:   d.TenantID,
			Portal:     d.Portal,
			ExternalID: d.ExternalID,
			ScrapedAt:  d.ScrapedAt,
			Payload:    d.Payload,
		})
	}
	return out, nil
}
