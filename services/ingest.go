package services

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"listing-leads/config"
	"listing-leads/models"
)

// Drop reasons. Hard failures are records that cannot be coerced; the rest are filtering decisions.
var (
	ErrEmptyPayload       = errors.New("empty_payload")
	ErrMissingExternalID  = errors.New("missing_external_id")
	ErrMissingURL         = errors.New("missing_url")
	ErrUnparseablePrice   = errors.New("unparseable_price")
	ErrPriceBelowMin      = errors.New("price_below_min")
	ErrPhoneTooShort      = errors.New("phone_too_short")
	ErrProfessionalSeller = errors.New("professional_seller")
	ErrRejectsAgencies    = errors.New("rejects_agencies")
)

// OtherLabel is the fallback zone and property type.
const OtherLabel = "Other"

// DropError carries why a raw record was not turned into a lead candidate.
type DropError struct {
	Kind   models.DropKind
	Err    error
	Detail string
}

func (e *DropError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Kind, e.Err, e.Detail)
}

func (e *DropError) Unwrap() error { return e.Err }

// Reason returns the stable reason code.
func (e *DropError) Reason() string { return e.Err.Error() }

func hardFailure(err error, detail string) *DropError {
	return &DropError{Kind: models.DropHardFailure, Err: err, Detail: detail}
}

func filtered(err error, detail string) *DropError {
	return &DropError{Kind: models.DropFiltered, Err: err, Detail: detail}
}

// Ingestor turns RawRecords into NormalizedListings using per-portal field mappings.
type Ingestor struct {
	rules *config.Rules
	zones []zoneMatcher
	types []typeMatcher
}

type zoneMatcher struct {
	name    string
	needles []string
}

type typeMatcher struct {
	label    string
	keywords []string
}

// NewIngestor creates an Ingestor for one tenant's resolved rules.
func NewIngestor(rules *config.Rules) *Ingestor {
	ing := &Ingestor{rules: rules}
	for _, z := range rules.Zones {
		zm := zoneMatcher{name: z.Name}
		for _, m := range z.Match {
			if f := fold(m); f != "" {
				zm.needles = append(zm.needles, f)
			}
		}
		ing.zones = append(ing.zones, zm)
	}
	for _, t := range rules.PropertyTypes {
		tm := typeMatcher{label: t.Label}
		for _, k := range t.Keywords {
			if f := fold(k); f != "" {
				tm.keywords = append(tm.keywords, f)
			}
		}
		ing.types = append(ing.types, tm)
	}
	return ing
}

// Ingest normalizes one raw record. A *DropError is returned when the record is rejected.
func (i *Ingestor) Ingest(rec *models.RawRecord) (*models.NormalizedListing, error) {
	if len(rec.Payload) == 0 {
		return nil, hardFailure(ErrEmptyPayload, "")
	}
	externalID := strings.TrimSpace(rec.ExternalID)
	if externalID == "" {
		return nil, hardFailure(ErrMissingExternalID, "")
	}

	url := i.str(rec, "url")
	if url == "" {
		return nil, hardFailure(ErrMissingURL, "")
	}

	rawPrice, hasPrice := firstValue(rec.Payload, i.rules.FieldChain(rec.Portal, "price"))
	price := parseNumber(rawPrice)
	if !hasPrice || price == nil {
		return nil, hardFailure(ErrUnparseablePrice, asString(rawPrice))
	}

	l := &models.NormalizedListing{
		TenantID:    rec.TenantID,
		Portal:      rec.Portal,
		ExternalID:  externalID,
		URL:         url,
		Title:       plainText(i.str(rec, "title")),
		Description: plainText(i.str(rec, "description")),
		Location:    normaliseText(i.str(rec, "location")),
		SellerName:  normaliseText(i.str(rec, "seller_name")),
		Email:       strings.ToLower(i.str(rec, "email")),
		Price:       roundedPtr(price),
		Area:        roundedPtr(i.num(rec, "area")),
		Rooms:       i.integer(rec, "rooms"),
		Baths:       i.integer(rec, "baths"),
		ScrapedAt:   rec.ScrapedAt,
		Seq:         rec.Seq,
	}

	if v, ok := firstValue(rec.Payload, i.rules.FieldChain(rec.Portal, "published_at")); ok {
		l.PublishedAt = parseTime(v)
	}
	if v, ok := firstValue(rec.Payload, i.rules.FieldChain(rec.Portal, "seller_type")); ok {
		l.UpstreamParticular = upstreamParticular(v)
	}
	l.PhotoCount = i.photoCount(rec)
	l.Zone = i.classifyZone(l.Location, i.str(rec, "zone_label"))
	l.PropertyType = i.classifyType(l.Title, l.URL)
	l.PricePerArea = pricePerArea(l.Price, l.Area)

	if *l.Price < i.rules.Validation.MinPrice {
		return nil, filtered(ErrPriceBelowMin, fmt.Sprintf("price %.0f < %.0f", *l.Price, i.rules.Validation.MinPrice))
	}

	phone := NormalizePhone(i.str(rec, "phone"))
	if len(phone) < i.rules.Validation.MinPhoneLength {
		if i.rules.PhoneReliable(rec.Portal) {
			return nil, filtered(ErrPhoneTooShort, fmt.Sprintf("phone %q", phone))
		}
		phone = ""
	}
	l.Phone = phone

	return l, nil
}

func (i *Ingestor) str(rec *models.RawRecord, field string) string {
	v, ok := firstValue(rec.Payload, i.rules.FieldChain(rec.Portal, field))
	if !ok {
		return ""
	}
	return asString(v)
}

// num tries each candidate key until one parses, so a renamed key holding junk does not hide a good one.
func (i *Ingestor) num(rec *models.RawRecord, field string) *float64 {
	for _, key := range i.rules.FieldChain(rec.Portal, field) {
		if v, ok := lookup(rec.Payload, key); ok {
			if f := parseNumber(v); f != nil {
				return f
			}
		}
	}
	return nil
}

func (i *Ingestor) integer(rec *models.RawRecord, field string) *int {
	f := i.num(rec, field)
	if f == nil {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}

func (i *Ingestor) photoCount(rec *models.RawRecord) int {
	if v, ok := firstValue(rec.Payload, i.rules.FieldChain(rec.Portal, "photos")); ok {
		if n, ok := countPhotos(v); ok {
			return n
		}
	}
	if n := i.integer(rec, "photo_count"); n != nil && *n > 0 {
		return *n
	}
	return 0
}

// classifyZone does an ordered substring match against the gazetteer; the first zone wins.
func (i *Ingestor) classifyZone(location, label string) string {
	folded := fold(location)
	if folded != "" {
		for _, z := range i.zones {
			for _, needle := range z.needles {
				if strings.Contains(folded, needle) {
					return z.name
				}
			}
		}
	}
	if label = normaliseText(label); label != "" {
		return label
	}
	return OtherLabel
}

// classifyType matches synonyms on the title first, then on the URL.
func (i *Ingestor) classifyType(title, url string) string {
	for _, text := range []string{fold(title), strings.ToLower(url)} {
		if text == "" {
			continue
		}
		for _, t := range i.types {
			for _, kw := range t.keywords {
				if strings.Contains(text, kw) {
					return t.label
				}
			}
		}
	}
	return OtherLabel
}

func pricePerArea(price, area *float64) *float64 {
	if price == nil || area == nil || *area <= 0 {
		return nil
	}
	v := round2(*price / *area)
	return &v
}

// NormalizePhone strips country-code variants, separators and leading zeros.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for idx, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && idx == 0:
			b.WriteRune(r)
		}
	}
	s := b.String()

	switch {
	case strings.HasPrefix(s, "+34"):
		s = s[3:]
	case strings.HasPrefix(s, "0034"):
		s = s[4:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case len(s) == 11 && strings.HasPrefix(s, "34"):
		s = s[2:]
	}
	return strings.TrimLeft(s, "0")
}
