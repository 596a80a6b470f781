package services

import (
	"testing"
	"time"

	"listing-leads/config"
	"listing-leads/models"
	"listing-leads/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func defaultRules(t *testing.T) *config.Rules {
	t.Helper()
	r, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	return r
}

var t0 = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func rawRecord(portal, id string, scraped time.Time, payload map[string]any) *models.RawRecord {
	return &models.RawRecord{
		TenantID:   "acme",
		Portal:     portal,
		ExternalID: id,
		ScrapedAt:  scraped,
		IngestedAt: scraped,
		Payload:    payload,
	}
}

func fptr(f float64) *float64 { return &f }

const longDescription = "Vendo piso reformado, muy luminoso, cerca del metro y de todos los servicios."
