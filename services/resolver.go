package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"listing-leads/config"
	"listing-leads/models"
	"listing-leads/utils"
)

// sighting is one portal listing of a lead; the resolver groups sightings, not leads,
// because a single lead keyed by phone can already span several portals.
type sighting struct {
	lead   *models.Lead
	portal string
	extID  string
}

// EntityResolver groups leads from different portals that describe the same property.
type EntityResolver struct {
	rules  config.ResolverRules
	logger *utils.Logger
}

// NewEntityResolver creates a resolver for the tenant's resolved rules.
func NewEntityResolver(rules config.ResolverRules, logger *utils.Logger) *EntityResolver {
	return &EntityResolver{rules: rules, logger: logger}
}

// Resolve recomputes all duplicate groups for one tenant's leads.
//
// Stage A joins sightings sharing a normalized phone. Stage B joins sightings of phoneless
// leads sharing a (location, price bucket, area bucket) key. In "transitive" mode Stage B
// also covers phoned leads, so a bucket match can bridge two phone groups. Only groups
// spanning more than one portal are returned, ordered by group id.
func (r *EntityResolver) Resolve(tenantID string, leads []*models.Lead) []*models.DuplicateGroup {
	var sightings []sighting
	for _, l := range leads {
		if l.TenantID != tenantID {
			continue
		}
		if len(l.Sources) == 0 {
			sightings = append(sightings, sighting{lead: l, portal: l.Portal, extID: l.ExternalID})
			continue
		}
		for _, s := range l.Sources {
			sightings = append(sightings, sighting{lead: l, portal: s.Portal, extID: s.ExternalID})
		}
	}

	ds := newDisjointSet(len(sightings))
	byLead := make(map[string]int)
	phoneMatched := make([]bool, len(sightings))

	for i, s := range sightings {
		if first, ok := byLead[s.lead.ID]; ok {
			ds.union(first, i)
		} else {
			byLead[s.lead.ID] = i
		}
	}

	byPhone := make(map[string][]int)
	for i, s := range sightings {
		if s.lead.Phone != "" {
			byPhone[s.lead.Phone] = append(byPhone[s.lead.Phone], i)
		}
	}
	for _, idx := range byPhone {
		if len(idx) < 2 {
			continue
		}
		for _, i := range idx {
			ds.union(idx[0], i)
			phoneMatched[i] = true
		}
	}

	transitive := r.rules.Mode == config.ResolverTransitive
	byBucket := make(map[string][]int)
	for i, s := range sightings {
		if s.lead.Phone != "" && !transitive {
			continue
		}
		if key, ok := r.BucketKey(s.lead); ok {
			byBucket[key] = append(byBucket[key], i)
		}
	}
	for _, idx := range byBucket {
		for _, i := range idx[1:] {
			ds.union(idx[0], i)
		}
	}

	components := make(map[int][]int)
	for i := range sightings {
		root := ds.find(i)
		components[root] = append(components[root], i)
	}

	var groups []*models.DuplicateGroup
	for _, members := range components {
		g := buildGroup(tenantID, sightings, members, phoneMatched)
		if g.PortalCount > 1 {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })

	if r.logger != nil {
		r.logger.Info("[resolver] tenant %s: %d leads, %d sightings, %d cross-portal groups (mode %s)",
			tenantID, len(leads), len(sightings), len(groups), r.rules.Mode)
	}
	return groups
}

// BucketKey returns the fuzzy match key for a lead, or false when location, price or area are missing.
func (r *EntityResolver) BucketKey(l *models.Lead) (string, bool) {
	loc := strings.ToLower(normaliseText(l.Location))
	if loc == "" || l.Price == nil || l.Area == nil || *l.Price <= 0 || *l.Area <= 0 {
		return "", false
	}
	pb := bucket(*l.Price, r.rules.PriceBucketPct, r.rules.PriceBucketFloor)
	ab := bucket(*l.Area, r.rules.AreaBucketPct, r.rules.AreaBucketFloor)
	return fmt.Sprintf("%s|%s|%d|%d", l.TenantID, loc, pb, ab), true
}

// bucket indexes value into bands of width max(pct*lower edge, floor). Below floor/pct the
// bands are linear with width floor; above it they grow geometrically by (1+pct), so each band
// spans roughly pct of its own value and the two ranges share no index.
func bucket(value, pct, floor float64) int64 {
	knee := floor / pct
	if value < knee {
		return int64(math.Floor(value / floor))
	}
	linear := int64(math.Ceil(knee/floor - 1e-9))
	return linear + int64(math.Floor(math.Log(value/knee)/math.Log1p(pct)))
}

func buildGroup(tenantID string, sightings []sighting, members []int, phoneMatched []bool) *models.DuplicateGroup {
	g := &models.DuplicateGroup{TenantID: tenantID, MatchType: models.MatchLocation}

	leadSeen := make(map[string]struct{})
	portalSeen := make(map[string]struct{})
	var anchor *models.Lead

	for _, i := range members {
		s := sightings[i]
		if phoneMatched[i] {
			g.MatchType = models.MatchPhone
		}
		g.Members = append(g.Members, models.GroupMember{LeadID: s.lead.ID, Portal: s.portal, ExternalID: s.extID})
		if _, ok := leadSeen[s.lead.ID]; !ok {
			leadSeen[s.lead.ID] = struct{}{}
			g.LeadIDs = append(g.LeadIDs, s.lead.ID)
		}
		if _, ok := portalSeen[s.portal]; !ok {
			portalSeen[s.portal] = struct{}{}
			g.Portals = append(g.Portals, s.portal)
		}
		if anchor == nil || earlier(s.lead.UpdatedAt, s.lead.ID, anchor.UpdatedAt, anchor.ID) {
			anchor = s.lead
		}
	}

	sort.Strings(g.LeadIDs)
	sort.Strings(g.Portals)
	sort.Slice(g.Members, func(i, j int) bool {
		a, b := g.Members[i], g.Members[j]
		if a.Portal != b.Portal {
			return a.Portal < b.Portal
		}
		if a.ExternalID != b.ExternalID {
			return a.ExternalID < b.ExternalID
		}
		return a.LeadID < b.LeadID
	})

	g.GroupID = anchor.ID
	g.MemberCount = len(g.Members)
	g.PortalCount = len(g.Portals)
	return g
}

func earlier(t1 time.Time, id1 string, t2 time.Time, id2 string) bool {
	if !t1.Equal(t2) {
		return t1.Before(t2)
	}
	return id1 < id2
}

// disjointSet is a union-find with path compression.
type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

func (d *disjointSet) find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

func (d *disjointSet) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}
}
