package services

import (
	"testing"
	"time"

	"listing-leads/models"
)

func incomingLead(price float64, scraped time.Time, sources ...models.LeadSource) *models.Lead {
	return &models.Lead{
		TenantID: "acme", UniqueKey: "666111222", Portal: "fotocasa", ExternalID: "F1",
		Title: "Piso", Price: fptr(price), EsParticular: true, PermiteInmo: true, Score: 40,
		FirstSeenAt: scraped, LastScrapedAt: scraped, Sources: sources,
	}
}

func TestMergeLeadInsert(t *testing.T) {
	now := t0.Add(time.Hour)
	in := incomingLead(250000, t0, src("fotocasa", "F1"))
	in.Workflow = models.Workflow{Estado: "ganado"}

	got, outcome := MergeLead(nil, in, now)
	if outcome != MergeInserted {
		t.Fatalf("outcome: got %v", outcome)
	}
	if got.ID == "" {
		t.Error("inserted lead needs an id")
	}
	if got.Workflow.Estado != DefaultEstado {
		t.Errorf("Estado: got %q, want %q", got.Workflow.Estado, DefaultEstado)
	}
	if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Errorf("timestamps: created %v updated %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestMergeLeadPreservesWorkflow(t *testing.T) {
	created := t0.Add(-24 * time.Hour)
	existing := incomingLead(250000, t0, src("idealista", "A1"))
	existing.ID = "lead-1"
	existing.CreatedAt, existing.UpdatedAt = created, created
	existing.FirstSeenAt = t0.Add(-48 * time.Hour)
	existing.Workflow = models.Workflow{Estado: "contactado", AssignedTo: "agent-7", Notes: "call back"}

	now := t0.Add(72 * time.Hour)
	in := incomingLead(230000, t0.Add(48*time.Hour), src("fotocasa", "F1"))

	got, outcome := MergeLead(existing, in, now)
	if outcome != MergeUpdated {
		t.Fatalf("outcome: got %v", outcome)
	}
	if got.ID != "lead-1" || got.Workflow != existing.Workflow {
		t.Errorf("id/workflow must be kept, got %s %+v", got.ID, got.Workflow)
	}
	if *got.Price != 230000 {
		t.Errorf("Price: got %v, want refreshed value", *got.Price)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(now) {
		t.Errorf("timestamps: created %v updated %v", got.CreatedAt, got.UpdatedAt)
	}
	if !got.FirstSeenAt.Equal(existing.FirstSeenAt) {
		t.Errorf("FirstSeenAt should keep the earliest sighting, got %v", got.FirstSeenAt)
	}
	if len(got.Sources) != 2 {
		t.Errorf("sources should be unioned, got %+v", got.Sources)
	}
}

func TestMergeLeadUnchanged(t *testing.T) {
	existing, _ := MergeLead(nil, incomingLead(250000, t0, src("fotocasa", "F1")), t0)
	existing.Workflow.Estado = "descartado"

	again := incomingLead(250000, t0, src("fotocasa", "F1"))
	got, outcome := MergeLead(existing, again, t0.Add(time.Hour))
	if outcome != MergeUnchanged {
		t.Fatalf("outcome: got %v", outcome)
	}
	if got != existing || !got.UpdatedAt.Equal(t0) {
		t.Error("an unchanged lead keeps its UpdatedAt")
	}
}

func TestMergeLeadIgnoresStaleAttributes(t *testing.T) {
	existing, _ := MergeLead(nil, incomingLead(230000, t0.Add(48*time.Hour), src("fotocasa", "F1")), t0)

	stale := incomingLead(250000, t0, src("idealista", "A1"))
	got, outcome := MergeLead(existing, stale, t0.Add(96*time.Hour))
	if outcome != MergeUpdated {
		t.Fatalf("new source still updates the lead, got %v", outcome)
	}
	if *got.Price != 230000 {
		t.Errorf("older scrape must not overwrite attributes, got price %v", *got.Price)
	}
	if !got.FirstSeenAt.Equal(t0) || len(got.Sources) != 2 {
		t.Errorf("got first seen %v, sources %+v", got.FirstSeenAt, got.Sources)
	}
}

func TestMergeSourcesKeepsLatest(t *testing.T) {
	a := []models.LeadSource{{Portal: "idealista", ExternalID: "A1", LastSeenAt: t0}}
	b := []models.LeadSource{
		{Portal: "idealista", ExternalID: "A1", LastSeenAt: t0.Add(time.Hour)},
		{Portal: "fotocasa", ExternalID: "F1", LastSeenAt: t0},
	}
	got := MergeSources(a, b)
	if len(got) != 2 || got[0].Portal != "fotocasa" {
		t.Fatalf("got %+v", got)
	}
	if !got[1].LastSeenAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("LastSeenAt: got %v", got[1].LastSeenAt)
	}
}

func TestMergeLeadUnchangedAfterStoreRoundTrip(t *testing.T) {
	ing := NewIngestor(defaultRules(t))
	classifier := NewSellerClassifier(defaultRules(t).Seller)
	rec := rawRecord("milanuncios", "M7", t0, map[string]any{
		"url": "https://milanuncios.test/M7", "description": longDescription, "price": 199999.995, "area": 85.555,
	})
	incoming := func() *models.Lead {
		l, err := ing.Ingest(rec)
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		lc := DedupWithinSource([]Candidate{{Listing: l, Verdict: classifier.Classify(l)}})[0]
		return NewLeadFromCandidate(lc, 10)
	}

	existing, _ := MergeLead(nil, incoming(), t0)
	// what NUMERIC(_, 2) columns hand back
	existing.Price, existing.Area = fptr(200000), fptr(85.56)

	if _, outcome := MergeLead(existing, incoming(), t0.Add(time.Hour)); outcome != MergeUnchanged {
		t.Errorf("replaying the same raw record after a store round trip: got %v, want unchanged", outcome)
	}
}
