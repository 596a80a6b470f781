package models

import "time"

// RawRecord holds one scraped observation exactly as the scraping side stored it.
// Payload is best-effort: field names drift across scraper versions.
type RawRecord struct {
	Seq        int64
	TenantID   string
	Portal     string
	ExternalID string
	ScrapedAt  time.Time
	IngestedAt time.Time
	Payload    map[string]any
}

// NormalizedListing is the canonical per-portal view of a RawRecord.
// It is recomputed from the raw payload on every run and never stored on its own.
type NormalizedListing struct {
	TenantID     string
	Portal       string
	ExternalID   string
	URL          string
	Title        string
	Description  string
	Location     string
	Zone         string
	PropertyType string
	SellerName   string
	Phone        string
	Email        string
	Price        *float64
	Area         *float64
	PricePerArea *float64
	Rooms        *int
	Baths        *int
	PhotoCount   int
	PublishedAt  *time.Time
	ScrapedAt    time.Time

	// UpstreamParticular is the portal's own seller classification, when it ships one.
	UpstreamParticular *bool

	Seq int64
}

// SellerVerdict is the Seller Classifier output.
type SellerVerdict struct {
	EsParticular         bool
	PermiteInmobiliarias bool
	Reason               string

	// Confident is set when an authoritative upstream signal confirmed a private seller.
	Confident bool
}

// Contactable reports whether outreach to this seller is allowed.
func (v SellerVerdict) Contactable() bool {
	return v.EsParticular && v.PermiteInmobiliarias
}

// Workflow fields owned by the CRM. The pipeline sets them once on insert.
type Workflow struct {
	Estado     string
	AssignedTo string
	Notes      string
}

// Lead is the deduplicated, contactable sales opportunity.
type Lead struct {
	ID            string
	TenantID      string
	UniqueKey     string
	Portal        string
	ExternalID    string
	URL           string
	Title         string
	Description   string
	Location      string
	Zone          string
	PropertyType  string
	SellerName    string
	Phone         string
	Email         string
	Price         *float64
	Area          *float64
	PricePerArea  *float64
	Rooms         *int
	Baths         *int
	PhotoCount    int
	PublishedAt   *time.Time
	EsParticular  bool
	PermiteInmo   bool
	SellerReason  string
	Score         float64
	FirstSeenAt   time.Time
	LastScrapedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Workflow Workflow
	Sources  []LeadSource
}

// Contactable mirrors SellerVerdict.Contactable for a materialized lead.
func (l *Lead) Contactable() bool {
	return l.EsParticular && l.PermiteInmo
}

// LeadSource is one portal listing that contributed to a Lead.
type LeadSource struct {
	Portal     string
	ExternalID string
	URL        string
	LastSeenAt time.Time
}

// MatchType tells which resolver stage produced a DuplicateGroup.
type MatchType string

const (
	MatchPhone    MatchType = "phone"
	MatchLocation MatchType = "location"
)

// GroupMember is one listing sighting inside a DuplicateGroup.
type GroupMember struct {
	LeadID     string
	Portal     string
	ExternalID string
}

// DuplicateGroup clusters listings judged to be the same property across portals.
type DuplicateGroup struct {
	TenantID    string
	GroupID     string
	MatchType   MatchType
	LeadIDs     []string
	Members     []GroupMember
	MemberCount int
	PortalCount int
	Portals     []string
}

// PriceObservation is one append-only price sighting.
type PriceObservation struct {
	TenantID   string
	Portal     string
	ExternalID string
	Price      float64
	ObservedAt time.Time
}

// PriceChange is the most recent period-over-period change for a listing.
type PriceChange struct {
	Portal     string
	ExternalID string
	Current    float64
	Previous   *float64
	ChangePct  *float64
	ObservedAt time.Time
}

// DropKind separates hard failures from filtering decisions.
type DropKind string

const (
	DropHardFailure DropKind = "hard_failure"
	DropFiltered    DropKind = "filtered"
)

// Discard records why a raw record never became (part of) a Lead.
type Discard struct {
	TenantID   string
	Portal     string
	ExternalID string
	Kind       DropKind
	Reason     string
	Detail     string
	ScrapedAt  time.Time
}

// ListingRef identifies one portal listing within a tenant.
type ListingRef struct {
	Portal     string
	ExternalID string
}

// MaterializeBatch is everything one run commits to the Lead table in a single transaction.
type MaterializeBatch struct {
	TenantID  string
	Upserts   []*Lead
	Discards  []Discard
	Watermark time.Time
}
