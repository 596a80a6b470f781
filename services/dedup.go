package services

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"listing-leads/models"
)

// Candidate is a classified listing that passed every gate.
type Candidate struct {
	Listing *models.NormalizedListing
	Verdict models.SellerVerdict
}

// LeadCandidate is the within-source collapse of all candidates sharing a unique key.
type LeadCandidate struct {
	Key       string
	Winner    Candidate
	Sources   []models.LeadSource
	FirstSeen time.Time
}

// LeadUniqueKey is the normalized phone when present, otherwise a hash of the listing URL.
func LeadUniqueKey(l *models.NormalizedListing) string {
	if l.Phone != "" {
		return l.Phone
	}
	return URLKey(l.URL)
}

// URLKey hashes a listing URL into a stable key.
func URLKey(url string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// newer reports whether a should win over b: most recent scrape first, then later creation order.
func newer(a, b *models.NormalizedListing) bool {
	if !a.ScrapedAt.Equal(b.ScrapedAt) {
		return a.ScrapedAt.After(b.ScrapedAt)
	}
	return a.Seq > b.Seq
}

// DedupWithinSource collapses candidates into one LeadCandidate per unique key, ordered by key.
func DedupWithinSource(cands []Candidate) []*LeadCandidate {
	byKey := make(map[string]*LeadCandidate)
	sources := make(map[string]map[string]models.LeadSource)

	for _, c := range cands {
		key := LeadUniqueKey(c.Listing)
		lc, ok := byKey[key]
		if !ok {
			lc = &LeadCandidate{Key: key, Winner: c, FirstSeen: c.Listing.ScrapedAt}
			byKey[key] = lc
			sources[key] = make(map[string]models.LeadSource)
		} else {
			if newer(c.Listing, lc.Winner.Listing) {
				lc.Winner = c
			}
			if c.Listing.ScrapedAt.Before(lc.FirstSeen) {
				lc.FirstSeen = c.Listing.ScrapedAt
			}
		}

		ref := c.Listing.Portal + "/" + c.Listing.ExternalID
		if s, seen := sources[key][ref]; !seen || c.Listing.ScrapedAt.After(s.LastSeenAt) {
			sources[key][ref] = models.LeadSource{
				Portal:     c.Listing.Portal,
				ExternalID: c.Listing.ExternalID,
				URL:        c.Listing.URL,
				LastSeenAt: c.Listing.ScrapedAt,
			}
		}
	}

	out := make([]*LeadCandidate, 0, len(byKey))
	for key, lc := range byKey {
		lc.Sources = sortedSources(sources[key])
		out = append(out, lc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func sortedSources(m map[string]models.LeadSource) []models.LeadSource {
	out := make([]models.LeadSource, 0, len(m))
	for _, s := range m {
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
