package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-leads/models"
	"listing-leads/storage"
	"listing-leads/utils"
)

func seededServer(t *testing.T) http.Handler {
	t.Helper()
	store := storage.NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	price := 190000.0

	require.NoError(t, store.Materialize(ctx, &models.MaterializeBatch{
		TenantID: "acme",
		Upserts: []*models.Lead{
			{ID: "l1", TenantID: "acme", UniqueKey: "666123456", Title: "Piso Gracia", Price: &price,
				EsParticular: true, PermiteInmo: true, Score: 55, Workflow: models.Workflow{Estado: "nuevo"},
				Sources: []models.LeadSource{{Portal: "idealista", ExternalID: "A1"}}},
			{ID: "l2", TenantID: "acme", UniqueKey: "abc", Title: "Agencia", Score: 80},
		},
		Watermark: at,
	}))
	_, err := store.AppendPrices(ctx, []models.PriceObservation{
		{TenantID: "acme", Portal: "idealista", ExternalID: "A1", Price: 200000, ObservedAt: at},
		{TenantID: "acme", Portal: "idealista", ExternalID: "A1", Price: 180000, ObservedAt: at.Add(24 * time.Hour)},
	})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceGroups(ctx, "acme", []*models.DuplicateGroup{{
		TenantID: "acme", GroupID: "l1", MatchType: models.MatchPhone, LeadIDs: []string{"l1"},
		Portals: []string{"fotocasa", "idealista"}, MemberCount: 2, PortalCount: 2,
	}}))

	return NewServer(store, utils.NewNopLogger()).Router()
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestListLeads(t *testing.T) {
	h := seededServer(t)

	rec, body := get(t, h, "/tenants/acme/leads")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])

	rec, body = get(t, h, "/tenants/acme/leads?contactable=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])
	lead := body["leads"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "l1", lead["id"])
	assert.Equal(t, "nuevo", lead["estado"])
}

func TestGetLead(t *testing.T) {
	h := seededServer(t)

	rec, body := get(t, h, "/tenants/acme/leads/l1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Piso Gracia", body["title"])

	rec, _ = get(t, h, "/tenants/acme/leads/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = get(t, h, "/tenants/other/leads/l1")
	assert.Equal(t, http.StatusNotFound, rec.Code, "leads never leak across tenants")
}

func TestDuplicateGroups(t *testing.T) {
	h := seededServer(t)
	rec, body := get(t, h, "/tenants/acme/duplicate-groups")
	assert.Equal(t, http.StatusOK, rec.Code)
	groups := body["groups"].([]interface{})
	require.Len(t, groups, 1)
	g := groups[0].(map[string]interface{})
	assert.Equal(t, "phone", g["match_type"])
	assert.EqualValues(t, 2, g["portal_count"])
}

func TestPriceHistory(t *testing.T) {
	h := seededServer(t)
	rec, body := get(t, h, "/tenants/acme/listings/idealista/A1/prices")
	assert.Equal(t, http.StatusOK, rec.Code)
	obs := body["observations"].([]interface{})
	require.Len(t, obs, 2)
	assert.Nil(t, obs[0].(map[string]interface{})["change_pct"])
	assert.EqualValues(t, -10.0, obs[1].(map[string]interface{})["change_pct"])
}

func TestExportLeads(t *testing.T) {
	h := seededServer(t)
	rec, _ := get(t, h, "/tenants/acme/leads.xlsx")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leads-acme.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestHealth(t *testing.T) {
	rec, body := get(t, seededServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
