package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-leads/models"
)

func TestMemoryStore_RawSinceRespectsWatermark(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.InsertRaw(ctx, []*models.RawRecord{
		{TenantID: "t1", Portal: "idealista", ExternalID: "B", IngestedAt: t0.Add(2 * time.Hour)},
		{TenantID: "t1", Portal: "idealista", ExternalID: "A", IngestedAt: t0.Add(time.Hour)},
		{TenantID: "t2", Portal: "idealista", ExternalID: "C", IngestedAt: t0.Add(time.Hour)},
	}))

	all, err := m.RawSince(ctx, "t1", time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].ExternalID)

	later, err := m.RawSince(ctx, "t1", t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "B", later[0].ExternalID)
}

func TestMemoryStore_AppendPricesIgnoresReplays(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	obs := []models.PriceObservation{{TenantID: "t1", Portal: "p", ExternalID: "1", Price: 100, ObservedAt: at}}

	n, err := m.AppendPrices(ctx, obs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = m.AppendPrices(ctx, obs)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_MaterializeReturnsCopies(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	wm := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	lead := &models.Lead{ID: "l1", TenantID: "t1", UniqueKey: "k1", EsParticular: true, PermiteInmo: true,
		Sources: []models.LeadSource{{Portal: "p", ExternalID: "1"}}}
	require.NoError(t, m.Materialize(ctx, &models.MaterializeBatch{TenantID: "t1", Upserts: []*models.Lead{lead}, Watermark: wm}))

	lead.Sources[0].ExternalID = "mutated"
	got, err := m.GetLead(ctx, "t1", "l1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.Sources[0].ExternalID)

	got.Title = "changed"
	again, _ := m.GetLead(ctx, "t1", "l1")
	assert.Empty(t, again.Title)

	w, _ := m.Watermark(ctx, "t1")
	assert.True(t, w.Equal(wm))

	_, err = m.GetLead(ctx, "t1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_WatermarkNeverMovesBack(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	late := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Materialize(ctx, &models.MaterializeBatch{TenantID: "t1", Watermark: late}))
	require.NoError(t, m.Materialize(ctx, &models.MaterializeBatch{TenantID: "t1", Watermark: late.Add(-time.Hour)}))

	w, _ := m.Watermark(ctx, "t1")
	assert.True(t, w.Equal(late))
}

func TestMemoryStore_DiscardsUpsertOnReplay(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	batch := &models.MaterializeBatch{TenantID: "t1", Discards: []models.Discard{
		{TenantID: "t1", Portal: "pisos", ExternalID: "P1", Kind: models.DropHardFailure, Reason: "unparseable_price", ScrapedAt: at},
		{TenantID: "t1", Portal: "pisos", ExternalID: "P1", Kind: models.DropHardFailure, Reason: "unparseable_price", ScrapedAt: at.Add(time.Hour)},
	}}

	require.NoError(t, m.Materialize(ctx, batch))
	require.NoError(t, m.Materialize(ctx, batch))
	assert.Len(t, m.Discards("t1"), 2, "a full rebuild must not duplicate the audit rows")

	batch.Discards[0].Reason = "missing_url"
	require.NoError(t, m.Materialize(ctx, &models.MaterializeBatch{TenantID: "t1", Discards: batch.Discards[:1]}))
	got := m.Discards("t1")
	require.Len(t, got, 2)
	assert.Equal(t, "missing_url", got[0].Reason)
}
