package services

import (
	"math"
	"time"

	"listing-leads/config"
	"listing-leads/models"
)

// ScoreInput is everything the scorer looks at for one lead.
type ScoreInput struct {
	Listing     *models.NormalizedListing
	Verdict     models.SellerVerdict
	FirstSeen   time.Time
	AsOf        time.Time
	PriceChange *models.PriceChange
	ImageScore  *float64
}

// ScoreBreakdown keeps every component so operators can see why a lead ranks where it does.
type ScoreBreakdown struct {
	TimeOnMarket float64
	Phone        float64
	LowPhotos    float64
	PriceTier    float64
	PriorityZone float64
	Particular   float64
	PriceDrop    float64
	Image        float64
}

// Total sums the components. No ceiling is applied.
func (b ScoreBreakdown) Total() float64 {
	sum := b.TimeOnMarket + b.Phone + b.LowPhotos + b.PriceTier +
		b.PriorityZone + b.Particular + b.PriceDrop + b.Image
	return round2(sum)
}

// Scorer computes the composite lead score from tenant-resolved weights.
type Scorer struct {
	rules         config.ScoringRules
	priorityZones map[string]struct{}
}

// NewScorer creates a Scorer. Price tiers must already be sorted by Max.
func NewScorer(rules config.ScoringRules) *Scorer {
	s := &Scorer{rules: rules, priorityZones: make(map[string]struct{})}
	for _, z := range rules.PriorityZones {
		s.priorityZones[fold(z)] = struct{}{}
	}
	return s
}

// Score returns the breakdown for one lead.
func (s *Scorer) Score(in ScoreInput) ScoreBreakdown {
	var b ScoreBreakdown
	l := in.Listing

	b.TimeOnMarket = s.timeOnMarket(in)

	if l.Phone != "" {
		b.Phone = s.rules.PhoneBonus
	}
	if l.PhotoCount < s.rules.LowPhotoThreshold {
		b.LowPhotos = s.rules.LowPhotoBonus
	}
	if l.Price != nil {
		b.PriceTier = s.PriceTierBonus(*l.Price)
	}
	if _, ok := s.priorityZones[fold(l.Zone)]; ok {
		b.PriorityZone = s.rules.PriorityZoneBonus
	}
	if in.Verdict.EsParticular && in.Verdict.Confident {
		b.Particular = s.rules.ParticularBonus
	}
	if s.recentDrop(in) {
		b.PriceDrop = s.rules.PriceDropBonus
	}
	if in.ImageScore != nil {
		b.Image = *in.ImageScore * s.rules.ImageWeight
	}
	return b
}

// PriceTierBonus returns the bonus of the cheapest tier the price fits in.
func (s *Scorer) PriceTierBonus(price float64) float64 {
	for _, t := range s.rules.PriceTiers {
		if price <= t.Max {
			return t.Bonus
		}
	}
	return 0
}

// recentDrop reports a negative change observed within the drop window before AsOf.
func (s *Scorer) recentDrop(in ScoreInput) bool {
	pc := in.PriceChange
	if pc == nil || pc.ChangePct == nil || *pc.ChangePct >= 0 {
		return false
	}
	if s.rules.PriceDropWindowDays <= 0 {
		return true
	}
	window := time.Duration(s.rules.PriceDropWindowDays * 24 * float64(time.Hour))
	return in.AsOf.Sub(pc.ObservedAt) <= window
}

// timeOnMarket grows with days since the earlier of publish date and first capture, up to the cap.
func (s *Scorer) timeOnMarket(in ScoreInput) float64 {
	start := in.FirstSeen
	if p := in.Listing.PublishedAt; p != nil && (start.IsZero() || p.Before(start)) {
		start = *p
	}
	if start.IsZero() || !in.AsOf.After(start) {
		return 0
	}
	days := math.Floor(in.AsOf.Sub(start).Hours() / 24)
	return math.Min(days*s.rules.TimePerDay, s.rules.TimeCap)
}
