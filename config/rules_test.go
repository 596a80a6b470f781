package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesAreValid(t *testing.T) {
	r, err := DefaultRules()
	require.NoError(t, err)

	assert.Equal(t, PrecedenceUpstream, r.Seller.Precedence)
	assert.Equal(t, ResolverStaged, r.Resolver.Mode)
	assert.NotEmpty(t, r.Zones)
	assert.True(t, r.PhoneReliable("idealista"))
	assert.False(t, r.PhoneReliable("milanuncios"))
	assert.False(t, r.PhoneReliable("unknown-portal"))

	for i := 1; i < len(r.Scoring.PriceTiers); i++ {
		assert.Less(t, r.Scoring.PriceTiers[i-1].Max, r.Scoring.PriceTiers[i].Max)
	}
}

func TestFieldChainPortalFirst(t *testing.T) {
	r, err := DefaultRules()
	require.NoError(t, err)

	chain := r.FieldChain("idealista", "price")
	require.NotEmpty(t, chain)
	assert.Equal(t, "priceInfo.price.amount", chain[0])
	assert.Contains(t, chain, "price")

	assert.Equal(t, r.DefaultFields["price"], r.FieldChain("pisos", "price"))
}

func TestForTenantOverrides(t *testing.T) {
	doc := `
zones:
  - {name: Centro, match: [centro]}
seller: {precedence: keywords}
resolver: {price_bucket_pct: 0.1, price_bucket_floor: 5000, area_bucket_pct: 0.05, area_bucket_floor: 5}
scoring:
  phone_bonus: 15
  price_tiers: [{max: 300000, bonus: 10}, {max: 100000, bonus: 20}]
tenants:
  acme:
    zones: [{name: Marina Alta, match: [denia, javea]}]
    priority_zones: [Marina Alta]
    min_price: 50000
    weights: {phone: 40}
`
	r, err := ParseRules([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 100000.0, r.Scoring.PriceTiers[0].Max, "tiers are sorted by max")

	acme := r.ForTenant("acme")
	require.Len(t, acme.Zones, 2)
	assert.Equal(t, "Marina Alta", acme.Zones[0].Name)
	assert.Equal(t, []string{"Marina Alta"}, acme.Scoring.PriorityZones)
	assert.Equal(t, 50000.0, acme.Validation.MinPrice)
	assert.Equal(t, 40.0, acme.Scoring.PhoneBonus)

	other := r.ForTenant("globex")
	assert.Len(t, other.Zones, 1)
	assert.Equal(t, 15.0, other.Scoring.PhoneBonus)
	assert.Len(t, r.Zones, 1, "overrides must not leak into the shared rules")
}

func TestParseRulesValidation(t *testing.T) {
	base := "resolver: {price_bucket_pct: 0.1, price_bucket_floor: 1, area_bucket_pct: 0.1, area_bucket_floor: 1}\nscoring: {price_tiers: [{max: 1, bonus: 1}]}\n"

	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"bad precedence", base + "seller: {precedence: coinflip}", ErrUnknownPrecedence},
		{"bad resolver", "resolver: {mode: fuzzy, price_bucket_pct: 0.1, price_bucket_floor: 1, area_bucket_pct: 0.1, area_bucket_floor: 1}\nscoring: {price_tiers: [{max: 1, bonus: 1}]}", ErrUnknownResolver},
		{"bad regex", base + "seller: {ref_code_pattern: '('}", ErrInvalidRefPattern},
		{"zero floor", "resolver: {price_bucket_pct: 0.1, price_bucket_floor: 0, area_bucket_pct: 0.1, area_bucket_floor: 1}\nscoring: {price_tiers: [{max: 1, bonus: 1}]}", ErrInvalidBucketWidth},
		{"no tiers", "resolver: {price_bucket_pct: 0.1, price_bucket_floor: 1, area_bucket_pct: 0.1, area_bucket_floor: 1}", ErrNoPriceTiers},
		{"expensive tier pays more", "resolver: {price_bucket_pct: 0.1, price_bucket_floor: 1, area_bucket_pct: 0.1, area_bucket_floor: 1}\nscoring: {price_tiers: [{max: 100000, bonus: 5}, {max: 300000, bonus: 20}]}", ErrTierNotMonotonic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := "version: test\nresolver: {mode: transitive, price_bucket_pct: 0.1, price_bucket_floor: 1, area_bucket_pct: 0.1, area_bucket_floor: 1}\nscoring: {price_tiers: [{max: 1, bonus: 1}]}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "test", r.Version)
	assert.Equal(t, ResolverTransitive, r.Resolver.Mode)
	assert.Equal(t, 9, r.Validation.MinPhoneLength)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
