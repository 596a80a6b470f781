package storage

import (
	"context"
	"errors"

	"listing-leads/models"
)

// ErrNotFound is returned by single-row reads that match nothing.
var ErrNotFound = errors.New("not found")

// RawWriter is implemented by stores that can receive raw records from the scraping side.
type RawWriter interface {
	InsertRaw(ctx context.Context, recs []*models.RawRecord) error
}

// LeadReader is the read surface the API serves from.
type LeadReader interface {
	ListLeads(ctx context.Context, tenantID string, contactableOnly bool) ([]*models.Lead, error)
	GetLead(ctx context.Context, tenantID, id string) (*models.Lead, error)
	ListGroups(ctx context.Context, tenantID string) ([]*models.DuplicateGroup, error)
	PriceHistory(ctx context.Context, tenantID string, ref models.ListingRef) ([]models.PriceObservation, error)
}

// LeadExporter writes a tenant's leads to a file for offline review.
type LeadExporter interface {
	Export(tenantID string, leads []*models.Lead) error
}
