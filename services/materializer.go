package services

import (
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"listing-leads/models"
)

// DefaultEstado is the workflow state a lead starts in.
const DefaultEstado = "nuevo"

// MergeOutcome says what MergeLead decided.
type MergeOutcome int

const (
	MergeInserted MergeOutcome = iota
	MergeUpdated
	MergeUnchanged
)

// NewLeadFromCandidate builds the incoming lead for a collapsed candidate. Workflow fields
// are left empty; MergeLead decides their value.
func NewLeadFromCandidate(lc *LeadCandidate, score float64) *models.Lead {
	l := lc.Winner.Listing
	v := lc.Winner.Verdict
	return &models.Lead{
		TenantID:      l.TenantID,
		UniqueKey:     lc.Key,
		Portal:        l.Portal,
		ExternalID:    l.ExternalID,
		URL:           l.URL,
		Title:         l.Title,
		Description:   l.Description,
		Location:      l.Location,
		Zone:          l.Zone,
		PropertyType:  l.PropertyType,
		SellerName:    l.SellerName,
		Phone:         l.Phone,
		Email:         l.Email,
		Price:         l.Price,
		Area:          l.Area,
		PricePerArea:  l.PricePerArea,
		Rooms:         l.Rooms,
		Baths:         l.Baths,
		PhotoCount:    l.PhotoCount,
		PublishedAt:   l.PublishedAt,
		EsParticular:  v.EsParticular,
		PermiteInmo:   v.PermiteInmobiliarias,
		SellerReason:  v.Reason,
		Score:         score,
		FirstSeenAt:   lc.FirstSeen,
		LastScrapedAt: l.ScrapedAt,
		Sources:       lc.Sources,
	}
}

// MergeLead applies the materialization policy. On insert the workflow fields get their
// defaults; on update the workflow fields, id and creation time always come from existing.
// Listing attributes, score and sources are refreshed unless incoming is older than what
// is stored. UpdatedAt only moves when something observable changed.
func MergeLead(existing, incoming *models.Lead, now time.Time) (*models.Lead, MergeOutcome) {
	if existing == nil {
		out := *incoming
		if out.ID == "" {
			out.ID = uuid.NewString()
		}
		out.Workflow = models.Workflow{Estado: DefaultEstado}
		out.CreatedAt = now
		out.UpdatedAt = now
		return &out, MergeInserted
	}

	var out models.Lead
	if incoming.LastScrapedAt.Before(existing.LastScrapedAt) {
		out = *existing
	} else {
		out = *incoming
	}

	out.ID = existing.ID
	out.TenantID = existing.TenantID
	out.UniqueKey = existing.UniqueKey
	out.Workflow = existing.Workflow
	out.CreatedAt = existing.CreatedAt
	out.UpdatedAt = existing.UpdatedAt
	if !existing.FirstSeenAt.IsZero() && existing.FirstSeenAt.Before(incoming.FirstSeenAt) {
		out.FirstSeenAt = existing.FirstSeenAt
	} else {
		out.FirstSeenAt = incoming.FirstSeenAt
	}
	out.Sources = MergeSources(existing.Sources, incoming.Sources)

	if sameListing(existing, &out) {
		return existing, MergeUnchanged
	}
	out.UpdatedAt = now
	return &out, MergeUpdated
}

// MergeSources unions two source lists, keeping the latest sighting per portal listing.
func MergeSources(a, b []models.LeadSource) []models.LeadSource {
	byRef := make(map[models.ListingRef]models.LeadSource, len(a)+len(b))
	for _, list := range [][]models.LeadSource{a, b} {
		for _, s := range list {
			ref := models.ListingRef{Portal: s.Portal, ExternalID: s.ExternalID}
			if cur, ok := byRef[ref]; !ok || s.LastSeenAt.After(cur.LastSeenAt) {
				byRef[ref] = s
			}
		}
	}
	out := make([]models.LeadSource, 0, len(byRef))
	for _, s := range byRef {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Portal != out[j].Portal {
			return out[i].Portal < out[j].Portal
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out
}

// sameListing compares everything the pipeline owns, ignoring bookkeeping timestamps.
func sameListing(a, b *models.Lead) bool {
	x, y := *a, *b
	for _, l := range []*models.Lead{&x, &y} {
		l.UpdatedAt = time.Time{}
		l.CreatedAt = time.Time{}
		l.FirstSeenAt = storedTime(l.FirstSeenAt)
		l.LastScrapedAt = storedTime(l.LastScrapedAt)
		if l.PublishedAt != nil {
			p := storedTime(*l.PublishedAt)
			l.PublishedAt = &p
		}
		srcs := make([]models.LeadSource, len(l.Sources))
		for i, s := range l.Sources {
			s.LastSeenAt = storedTime(s.LastSeenAt)
			srcs[i] = s
		}
		l.Sources = srcs
	}
	return reflect.DeepEqual(x, y)
}

// storedTime matches the precision and zone a timestamp has after a database round trip.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
