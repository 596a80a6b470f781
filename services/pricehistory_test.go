package services

import (
	"testing"
	"time"

	"listing-leads/models"
)

func obsAt(price float64, at time.Time) models.PriceObservation {
	return models.PriceObservation{TenantID: "acme", Portal: "idealista", ExternalID: "A1", Price: price, ObservedAt: at}
}

func TestPriceChangePct(t *testing.T) {
	if got := PriceChangePct(180000, fptr(200000)); got == nil || *got != -10.0 {
		t.Errorf("200000 → 180000: got %v, want -10.0", got)
	}
	if got := PriceChangePct(210000, fptr(200000)); got == nil || *got != 5.0 {
		t.Errorf("200000 → 210000: got %v, want 5.0", got)
	}
	if got := PriceChangePct(100, fptr(300)); got == nil || *got != -66.7 {
		t.Errorf("rounding: got %v, want -66.7", got)
	}
	if PriceChangePct(180000, nil) != nil {
		t.Error("no previous price should give nil")
	}
}

func TestPriceSeriesSortsByTime(t *testing.T) {
	series := PriceSeries([]models.PriceObservation{
		obsAt(180000, t0.Add(48*time.Hour)),
		obsAt(200000, t0),
	})
	if len(series) != 2 {
		t.Fatalf("got %d points", len(series))
	}
	if series[0].ChangePct != nil {
		t.Errorf("first point has no change, got %v", *series[0].ChangePct)
	}
	if series[1].ChangePct == nil || *series[1].ChangePct != -10.0 {
		t.Errorf("second point: got %v, want -10.0", series[1].ChangePct)
	}
}

func TestLatestChange(t *testing.T) {
	if LatestChange([]models.PriceObservation{obsAt(200000, t0)}) != nil {
		t.Error("a single observation has no change")
	}

	pc := LatestChange([]models.PriceObservation{
		obsAt(200000, t0),
		obsAt(180000, t0.Add(24*time.Hour)),
		obsAt(180000, t0.Add(48*time.Hour)),
	})
	if pc == nil || pc.ChangePct == nil || *pc.ChangePct != -10.0 {
		t.Fatalf("re-scrape at the same price must not hide the drop, got %+v", pc)
	}
	if !pc.ObservedAt.Equal(t0.Add(24 * time.Hour)) {
		t.Errorf("ObservedAt: got %v", pc.ObservedAt)
	}
}

func TestObservationsForSkipsMissingPrice(t *testing.T) {
	obs := ObservationsFor([]*models.NormalizedListing{
		{TenantID: "acme", Portal: "idealista", ExternalID: "A1", Price: fptr(200000), ScrapedAt: t0},
		{TenantID: "acme", Portal: "idealista", ExternalID: "A2"},
	})
	if len(obs) != 1 || obs[0].ExternalID != "A1" || !obs[0].ObservedAt.Equal(t0) {
		t.Errorf("got %+v", obs)
	}
}
