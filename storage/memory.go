package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"listing-leads/models"
)

// MemoryStore keeps everything in process. It backs dry runs and tests and behaves like
// PostgresStore: each write method is all-or-nothing and callers get copies.
type MemoryStore struct {
	mu         sync.RWMutex
	seq        int64
	raws       map[string][]*models.RawRecord
	watermarks map[string]time.Time
	leads      map[string]map[string]*models.Lead
	prices     map[string]map[models.ListingRef][]models.PriceObservation
	groups     map[string][]*models.DuplicateGroup
	discards   map[string][]models.Discard
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		raws:       make(map[string][]*models.RawRecord),
		watermarks: make(map[string]time.Time),
		leads:      make(map[string]map[string]*models.Lead),
		prices:     make(map[string]map[models.ListingRef][]models.PriceObservation),
		groups:     make(map[string][]*models.DuplicateGroup),
		discards:   make(map[string][]models.Discard),
		now:        time.Now,
	}
}

// InsertRaw appends raw records, assigning Seq and, when missing, IngestedAt.
func (m *MemoryStore) InsertRaw(_ context.Context, recs []*models.RawRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		cp := *r
		m.seq++
		cp.Seq = m.seq
		if cp.IngestedAt.IsZero() {
			cp.IngestedAt = m.now()
		}
		m.raws[cp.TenantID] = append(m.raws[cp.TenantID], &cp)
	}
	return nil
}

func (m *MemoryStore) Watermark(_ context.Context, tenantID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watermarks[tenantID], nil
}

func (m *MemoryStore) RawSince(_ context.Context, tenantID string, since time.Time) ([]*models.RawRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.RawRecord
	for _, r := range m.raws[tenantID] {
		if r.IngestedAt.After(since) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].IngestedAt.Before(out[j].IngestedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// AppendPrices ignores observations already recorded for the same listing and instant.
func (m *MemoryStore) AppendPrices(_ context.Context, obs []models.PriceObservation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, o := range obs {
		byRef, ok := m.prices[o.TenantID]
		if !ok {
			byRef = make(map[models.ListingRef][]models.PriceObservation)
			m.prices[o.TenantID] = byRef
		}
		ref := models.ListingRef{Portal: o.Portal, ExternalID: o.ExternalID}
		dup := false
		for _, cur := range byRef[ref] {
			if cur.ObservedAt.Equal(o.ObservedAt) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		byRef[ref] = append(byRef[ref], o)
		added++
	}
	return added, nil
}

func (m *MemoryStore) PriceHistories(_ context.Context, tenantID string, refs []models.ListingRef) (map[models.ListingRef][]models.PriceObservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.ListingRef][]models.PriceObservation, len(refs))
	for _, ref := range refs {
		if obs := m.priceHistory(tenantID, ref); len(obs) > 0 {
			out[ref] = obs
		}
	}
	return out, nil
}

func (m *MemoryStore) PriceHistory(_ context.Context, tenantID string, ref models.ListingRef) ([]models.PriceObservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.priceHistory(tenantID, ref), nil
}

func (m *MemoryStore) priceHistory(tenantID string, ref models.ListingRef) []models.PriceObservation {
	obs := append([]models.PriceObservation(nil), m.prices[tenantID][ref]...)
	sort.Slice(obs, func(i, j int) bool { return obs[i].ObservedAt.Before(obs[j].ObservedAt) })
	return obs
}

func (m *MemoryStore) LeadsByKeys(_ context.Context, tenantID string, keys []string) (map[string]*models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*models.Lead, len(keys))
	for _, k := range keys {
		if l, ok := m.leads[tenantID][k]; ok {
			out[k] = cloneLead(l)
		}
	}
	return out, nil
}

// Materialize applies the batch atomically and advances the watermark with it.
func (m *MemoryStore) Materialize(_ context.Context, batch *models.MaterializeBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.leads[batch.TenantID]
	if !ok {
		byKey = make(map[string]*models.Lead)
		m.leads[batch.TenantID] = byKey
	}
	for _, l := range batch.Upserts {
		byKey[l.UniqueKey] = cloneLead(l)
	}
	m.recordDiscards(batch.TenantID, batch.Discards)
	if batch.Watermark.After(m.watermarks[batch.TenantID]) {
		m.watermarks[batch.TenantID] = batch.Watermark
	}
	return nil
}

func (m *MemoryStore) AllLeads(_ context.Context, tenantID string) ([]*models.Lead, error) {
	return m.ListLeads(context.Background(), tenantID, false)
}

// ListLeads returns a tenant's leads ordered by score, best first.
func (m *MemoryStore) ListLeads(_ context.Context, tenantID string, contactableOnly bool) ([]*models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Lead
	for _, l := range m.leads[tenantID] {
		if contactableOnly && !l.Contactable() {
			continue
		}
		out = append(out, cloneLead(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetLead(_ context.Context, tenantID, id string) (*models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.leads[tenantID] {
		if l.ID == id {
			return cloneLead(l), nil
		}
	}
	return nil, ErrNotFound
}

// ReplaceGroups swaps the tenant's groups in one step.
func (m *MemoryStore) ReplaceGroups(_ context.Context, tenantID string, groups []*models.DuplicateGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*models.DuplicateGroup, len(groups))
	for i, g := range groups {
		c := *g
		cp[i] = &c
	}
	m.groups[tenantID] = cp
	return nil
}

func (m *MemoryStore) ListGroups(_ context.Context, tenantID string) ([]*models.DuplicateGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.DuplicateGroup, len(m.groups[tenantID]))
	for i, g := range m.groups[tenantID] {
		c := *g
		out[i] = &c
	}
	return out, nil
}

// recordDiscards upserts on (portal, external_id, scraped_at) like the listing_discards table.
func (m *MemoryStore) recordDiscards(tenantID string, discards []models.Discard) {
	existing := m.discards[tenantID]
	for _, d := range discards {
		replaced := false
		for i, cur := range existing {
			if cur.Portal == d.Portal && cur.ExternalID == d.ExternalID && cur.ScrapedAt.Equal(d.ScrapedAt) {
				existing[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, d)
		}
	}
	m.discards[tenantID] = existing
}

// Discards returns what was recorded for a tenant, oldest first.
func (m *MemoryStore) Discards(tenantID string) []models.Discard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Discard(nil), m.discards[tenantID]...)
}

// UpdateWorkflow mimics a CRM edit.
func (m *MemoryStore) UpdateWorkflow(tenantID, id string, wf models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads[tenantID] {
		if l.ID == id {
			l.Workflow = wf
			return nil
		}
	}
	return ErrNotFound
}

func cloneLead(l *models.Lead) *models.Lead {
	cp := *l
	cp.Sources = append([]models.LeadSource(nil), l.Sources...)
	return &cp
}
