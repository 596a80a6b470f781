package services

import (
	"math"
	"sort"

	"listing-leads/models"
)

// PriceChangePct returns round((current-previous)/previous*100, 1), or nil when there is no
// usable previous price.
func PriceChangePct(current float64, previous *float64) *float64 {
	if previous == nil || *previous <= 0 {
		return nil
	}
	pct := math.Round((current-*previous) / *previous * 1000) / 10
	return &pct
}

// PriceSeries orders one listing's observations by time and derives the change at each step.
func PriceSeries(obs []models.PriceObservation) []models.PriceChange {
	sorted := make([]models.PriceObservation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	out := make([]models.PriceChange, 0, len(sorted))
	var prev *float64
	for _, o := range sorted {
		pc := models.PriceChange{
			Portal:     o.Portal,
			ExternalID: o.ExternalID,
			Current:    o.Price,
			Previous:   prev,
			ChangePct:  PriceChangePct(o.Price, prev),
			ObservedAt: o.ObservedAt,
		}
		out = append(out, pc)
		p := o.Price
		prev = &p
	}
	return out
}

// LatestChange returns the most recent observation whose price differs from the one before it.
// Re-scrapes at an unchanged price do not erase an earlier drop. Nil when the price never moved.
func LatestChange(obs []models.PriceObservation) *models.PriceChange {
	series := PriceSeries(obs)
	for i := len(series) - 1; i >= 0; i-- {
		pc := series[i]
		if pc.ChangePct != nil && *pc.ChangePct != 0 {
			return &pc
		}
	}
	return nil
}

// ObservationsFor turns ingested listings into price observations, skipping listings without a price.
func ObservationsFor(listings []*models.NormalizedListing) []models.PriceObservation {
	out := make([]models.PriceObservation, 0, len(listings))
	for _, l := range listings {
		if l.Price == nil || *l.Price <= 0 {
			continue
		}
		out = append(out, models.PriceObservation{
			TenantID:   l.TenantID,
			Portal:     l.Portal,
			ExternalID: l.ExternalID,
			Price:      *l.Price,
			ObservedAt: l.ScrapedAt,
		})
	}
	return out
}
