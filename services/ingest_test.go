package services

import (
	"errors"
	"testing"

	"listing-leads/models"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+34 666 12 34 56", "666123456"},
		{"0034666123456", "666123456"},
		{"(666) 123-456", "666123456"},
		{"0666123456", "666123456"},
		{"34666123456", "666123456"},
		{"", ""},
		{"llamar", ""},
	}

	for _, tt := range tests {
		if got := NormalizePhone(tt.raw); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseNumberString(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"250.000 €", fptr(250000)},
		{"1.200,50", fptr(1200.5)},
		{"1,234,567", fptr(1234567)},
		{"95,5 m²", fptr(95.5)},
		{"12.5", fptr(12.5)},
		{"€ 180000", fptr(180000)},
		{"consultar", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := parseNumberString(tt.raw)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("parseNumberString(%q) = %v; want nil", tt.raw, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("parseNumberString(%q) = %v; want %v", tt.raw, got, *tt.want)
		}
	}
}

func TestIngestIdealista(t *testing.T) {
	ing := NewIngestor(defaultRules(t))
	rec := rawRecord("idealista", " A1 ", t0, map[string]any{
		"url":         "https://www.idealista.com/inmueble/A1/",
		"title":       "Piso luminoso con terraza",
		"description": "<p>Vendo piso<br>reformado</p><script>track()</script>",
		"priceInfo":   map[string]any{"price": map[string]any{"amount": 250000.0}},
		"size":        "80 m²",
		"rooms":       "3",
		"phone":       "+34 666 12 34 56",
		"address":     "Carrer de Verdi, Gràcia",
		"photos":      []any{"a.jpg", "b.jpg", "c.jpg"},
		"contactInfo": map[string]any{"userType": "private"},
		"date":        "2026-08-20",
	})

	l, err := ing.Ingest(rec)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if l.ExternalID != "A1" {
		t.Errorf("ExternalID: got %q", l.ExternalID)
	}
	if l.Phone != "666123456" {
		t.Errorf("Phone: got %q", l.Phone)
	}
	if l.Zone != "Gracia" {
		t.Errorf("Zone: got %q, want Gracia", l.Zone)
	}
	if l.PropertyType != "Piso" {
		t.Errorf("PropertyType: got %q, want Piso", l.PropertyType)
	}
	if l.Description != "Vendo piso reformado" {
		t.Errorf("Description: got %q", l.Description)
	}
	if l.Price == nil || *l.Price != 250000 {
		t.Errorf("Price: got %v", l.Price)
	}
	if l.PricePerArea == nil || *l.PricePerArea != 3125 {
		t.Errorf("PricePerArea: got %v, want 3125", l.PricePerArea)
	}
	if l.Rooms == nil || *l.Rooms != 3 {
		t.Errorf("Rooms: got %v", l.Rooms)
	}
	if l.PhotoCount != 3 {
		t.Errorf("PhotoCount: got %d", l.PhotoCount)
	}
	if l.UpstreamParticular == nil || !*l.UpstreamParticular {
		t.Errorf("UpstreamParticular: got %v, want true", l.UpstreamParticular)
	}
	if l.PublishedAt == nil || l.PublishedAt.Day() != 20 {
		t.Errorf("PublishedAt: got %v", l.PublishedAt)
	}
}

func TestIngestZoneAndTypeFallbacks(t *testing.T) {
	ing := NewIngestor(defaultRules(t))

	labelled, err := ing.Ingest(rawRecord("milanuncios", "M1", t0, map[string]any{
		"url": "https://milanuncios.test/apartment-type-1/M1", "price": 120000,
		"location": "Badalona", "zone": "Centre  Badalona",
	}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if labelled.Zone != "Centre Badalona" {
		t.Errorf("Zone: got %q, want the portal label", labelled.Zone)
	}
	if labelled.PropertyType != "Piso" {
		t.Errorf("PropertyType: got %q, want Piso from URL", labelled.PropertyType)
	}

	bare, err := ing.Ingest(rawRecord("milanuncios", "M2", t0, map[string]any{
		"url": "https://milanuncios.test/M2", "price": 120000, "title": "Oportunidad",
	}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if bare.Zone != OtherLabel || bare.PropertyType != OtherLabel {
		t.Errorf("got zone %q type %q; want %q for both", bare.Zone, bare.PropertyType, OtherLabel)
	}
}

func TestIngestDrops(t *testing.T) {
	ing := NewIngestor(defaultRules(t))
	url := "https://portal.test/x"

	tests := []struct {
		name    string
		rec     *models.RawRecord
		kind    models.DropKind
		wantErr error
	}{
		{"empty payload", rawRecord("idealista", "1", t0, nil), models.DropHardFailure, ErrEmptyPayload},
		{"missing id", rawRecord("idealista", " ", t0, map[string]any{"url": url}), models.DropHardFailure, ErrMissingExternalID},
		{"missing url", rawRecord("idealista", "1", t0, map[string]any{"price": 1e5}), models.DropHardFailure, ErrMissingURL},
		{"missing price", rawRecord("idealista", "1", t0, map[string]any{"url": url}), models.DropHardFailure, ErrUnparseablePrice},
		{"text price", rawRecord("pisos", "1", t0, map[string]any{"url": url, "price": "a consultar"}), models.DropHardFailure, ErrUnparseablePrice},
		{"rental", rawRecord("fotocasa", "1", t0, map[string]any{"url": url, "price": "950 €/mes", "phone": "666123456"}), models.DropFiltered, ErrPriceBelowMin},
		{"short phone", rawRecord("fotocasa", "1", t0, map[string]any{"url": url, "price": 1e5, "phone": "12345"}), models.DropFiltered, ErrPhoneTooShort},
		{"no phone", rawRecord("idealista", "1", t0, map[string]any{"url": url, "price": 1e5}), models.DropFiltered, ErrPhoneTooShort},
	}

	for _, tt := range tests {
		_, err := ing.Ingest(tt.rec)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.wantErr)
			continue
		}
		var drop *DropError
		if !errors.As(err, &drop) || drop.Kind != tt.kind {
			t.Errorf("%s: got kind %v, want %v", tt.name, drop, tt.kind)
		}
	}
}

func TestIngestUnreliablePortalClearsShortPhone(t *testing.T) {
	ing := NewIngestor(defaultRules(t))
	l, err := ing.Ingest(rawRecord("milanuncios", "M1", t0, map[string]any{
		"url": "https://milanuncios.test/M1", "price": 1e5, "phone": "12345",
	}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if l.Phone != "" {
		t.Errorf("Phone: got %q, want empty", l.Phone)
	}
}

func TestRound2MatchesStoredPrecision(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{85.555, 85.56},
		{85.554, 85.55},
		{1.005, 1.01},
		{-2.345, -2.35},
		{3125, 3125},
		{0.1 + 0.2, 0.3},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestIngestRoundsPriceAndArea(t *testing.T) {
	ing := NewIngestor(defaultRules(t))
	rec := rawRecord("idealista", "A9", t0, map[string]any{
		"url": "https://idealista.test/A9", "price": 250000.125, "area": 85.555, "phone": "666111222",
	})

	l, err := ing.Ingest(rec)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if *l.Price != 250000.13 || *l.Area != 85.56 {
		t.Errorf("got price %v area %v; want 250000.13 / 85.56", *l.Price, *l.Area)
	}
}
