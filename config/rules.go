package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rule validation errors.
var (
	ErrUnknownPrecedence  = errors.New("seller.precedence must be 'upstream' or 'keywords'")
	ErrUnknownResolver    = errors.New("resolver.mode must be 'staged' or 'transitive'")
	ErrInvalidRefPattern  = errors.New("seller.ref_code_pattern does not compile")
	ErrInvalidBucketWidth = errors.New("resolver bucket percentages and floors must be positive")
	ErrNoPriceTiers       = errors.New("scoring.price_tiers must not be empty")
	ErrTierNotMonotonic   = errors.New("scoring.price_tiers bonus must not grow with price")
)

// Seller precedence rules.
const (
	PrecedenceUpstream = "upstream"
	PrecedenceKeywords = "keywords"
)

// Resolver modes.
const (
	ResolverStaged     = "staged"
	ResolverTransitive = "transitive"
)

// Rules is the versioned classification and scoring configuration.
type Rules struct {
	Version       string                 `yaml:"version"`
	DefaultFields map[string][]string    `yaml:"default_fields"`
	Portals       map[string]PortalRules `yaml:"portals"`
	Zones         []ZoneRule             `yaml:"zones"`
	PropertyTypes []TypeRule             `yaml:"property_types"`
	Seller        SellerRules            `yaml:"seller"`
	Validation    ValidationRules        `yaml:"validation"`
	Scoring       ScoringRules           `yaml:"scoring"`
	Resolver      ResolverRules          `yaml:"resolver"`
	Tenants       map[string]TenantRules `yaml:"tenants"`
}

// PortalRules holds one portal's field fallback chains and trust flags.
// Chains listed here are tried before DefaultFields for the same logical field.
type PortalRules struct {
	Fields        map[string][]string `yaml:"fields"`
	PhoneReliable bool                `yaml:"phone_reliable"`
}

// ZoneRule maps substrings of free-text locations to a zone name.
type ZoneRule struct {
	Name  string   `yaml:"name"`
	Match []string `yaml:"match"`
}

// TypeRule maps keywords (synonyms) to one canonical property type.
type TypeRule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

type SellerRules struct {
	Precedence           string   `yaml:"precedence"`
	AgencyTerms          []string `yaml:"agency_terms"`
	RejectionPhrases     []string `yaml:"rejection_phrases"`
	RefCodePattern       string   `yaml:"ref_code_pattern"`
	MinDescriptionLength int      `yaml:"min_description_length"`
}

type ValidationRules struct {
	MinPrice       float64 `yaml:"min_price"`
	MinPhoneLength int     `yaml:"min_phone_length"`
}

// PriceTier awards Bonus to listings priced at or below Max.
type PriceTier struct {
	Max   float64 `yaml:"max"`
	Bonus float64 `yaml:"bonus"`
}

// ScoringRules weights the lead score. PriceDropWindowDays limits the price-drop bonus to
// drops observed that recently; 0 means no limit.
type ScoringRules struct {
	TimePerDay          float64     `yaml:"time_per_day"`
	TimeCap             float64     `yaml:"time_cap"`
	PhoneBonus          float64     `yaml:"phone_bonus"`
	LowPhotoBonus       float64     `yaml:"low_photo_bonus"`
	LowPhotoThreshold   int         `yaml:"low_photo_threshold"`
	PriceTiers          []PriceTier `yaml:"price_tiers"`
	PriorityZoneBonus   float64     `yaml:"priority_zone_bonus"`
	PriorityZones       []string    `yaml:"priority_zones"`
	ParticularBonus     float64     `yaml:"particular_bonus"`
	PriceDropBonus      float64     `yaml:"price_drop_bonus"`
	PriceDropWindowDays float64     `yaml:"price_drop_window_days"`
	ImageWeight         float64     `yaml:"image_weight"`
}

type ResolverRules struct {
	Mode             string  `yaml:"mode"`
	PriceBucketPct   float64 `yaml:"price_bucket_pct"`
	PriceBucketFloor float64 `yaml:"price_bucket_floor"`
	AreaBucketPct    float64 `yaml:"area_bucket_pct"`
	AreaBucketFloor  float64 `yaml:"area_bucket_floor"`
}

// TenantRules overrides parts of the shared rules for one tenant.
type TenantRules struct {
	Zones         []ZoneRule         `yaml:"zones"`
	PriorityZones []string           `yaml:"priority_zones"`
	MinPrice      *float64           `yaml:"min_price"`
	Weights       map[string]float64 `yaml:"weights"`
}

// DefaultRules returns the rules shipped with the binary.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads rules from path, or the embedded defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) (*Rules, error) {
	r := &Rules{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("rules: decode: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rules for values the pipeline cannot work with.
func (r *Rules) Validate() error {
	switch r.Seller.Precedence {
	case "":
		r.Seller.Precedence = PrecedenceUpstream
	case PrecedenceUpstream, PrecedenceKeywords:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownPrecedence, r.Seller.Precedence)
	}

	switch r.Resolver.Mode {
	case "":
		r.Resolver.Mode = ResolverStaged
	case ResolverStaged, ResolverTransitive:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownResolver, r.Resolver.Mode)
	}

	if r.Seller.RefCodePattern != "" {
		if _, err := regexp.Compile(r.Seller.RefCodePattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRefPattern, err)
		}
	}

	rv := r.Resolver
	if rv.PriceBucketPct <= 0 || rv.PriceBucketFloor <= 0 || rv.AreaBucketPct <= 0 || rv.AreaBucketFloor <= 0 {
		return ErrInvalidBucketWidth
	}

	if len(r.Scoring.PriceTiers) == 0 {
		return ErrNoPriceTiers
	}
	tiers := r.Scoring.PriceTiers
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Max < tiers[j].Max })
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Bonus > tiers[i-1].Bonus {
			return fmt.Errorf("%w: tier <= %.0f", ErrTierNotMonotonic, tiers[i].Max)
		}
	}

	if r.Validation.MinPhoneLength <= 0 {
		r.Validation.MinPhoneLength = 9
	}
	return nil
}

// ForTenant returns a copy of the rules with the tenant's overrides applied.
func (r *Rules) ForTenant(tenantID string) *Rules {
	out := *r
	t, ok := r.Tenants[tenantID]
	if !ok {
		return &out
	}

	if len(t.Zones) > 0 {
		zones := make([]ZoneRule, 0, len(t.Zones)+len(r.Zones))
		zones = append(zones, t.Zones...)
		zones = append(zones, r.Zones...)
		out.Zones = zones
	}
	if t.PriorityZones != nil {
		out.Scoring.PriorityZones = t.PriorityZones
	}
	if t.MinPrice != nil {
		out.Validation.MinPrice = *t.MinPrice
	}
	for name, w := range t.Weights {
		switch name {
		case "time_per_day":
			out.Scoring.TimePerDay = w
		case "time_cap":
			out.Scoring.TimeCap = w
		case "phone":
			out.Scoring.PhoneBonus = w
		case "low_photos":
			out.Scoring.LowPhotoBonus = w
		case "priority_zone":
			out.Scoring.PriorityZoneBonus = w
		case "particular":
			out.Scoring.ParticularBonus = w
		case "price_drop":
			out.Scoring.PriceDropBonus = w
		case "price_drop_window_days":
			out.Scoring.PriceDropWindowDays = w
		case "image":
			out.Scoring.ImageWeight = w
		}
	}
	return &out
}

// FieldChain returns the ordered candidate keys for a logical field on a portal.
func (r *Rules) FieldChain(portal, field string) []string {
	var chain []string
	if p, ok := r.Portals[portal]; ok {
		chain = append(chain, p.Fields[field]...)
	}
	return append(chain, r.DefaultFields[field]...)
}

// PhoneReliable reports whether the portal's phone numbers can gate validation.
func (r *Rules) PhoneReliable(portal string) bool {
	return r.Portals[portal].PhoneReliable
}
