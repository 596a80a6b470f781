package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"listing-leads/config"
	"listing-leads/models"
	"listing-leads/utils"
)

// LeadStore is the shared data store the pipeline reads raw records from and materializes into.
type LeadStore interface {
	Watermark(ctx context.Context, tenantID string) (time.Time, error)
	RawSince(ctx context.Context, tenantID string, since time.Time) ([]*models.RawRecord, error)
	AppendPrices(ctx context.Context, obs []models.PriceObservation) (int, error)
	PriceHistories(ctx context.Context, tenantID string, refs []models.ListingRef) (map[models.ListingRef][]models.PriceObservation, error)
	LeadsByKeys(ctx context.Context, tenantID string, keys []string) (map[string]*models.Lead, error)
	Materialize(ctx context.Context, batch *models.MaterializeBatch) error
	AllLeads(ctx context.Context, tenantID string) ([]*models.Lead, error)
	ReplaceGroups(ctx context.Context, tenantID string, groups []*models.DuplicateGroup) error
}

// TenantLocker guarantees a single writer per tenant.
type TenantLocker interface {
	Lock(ctx context.Context, tenantID string) (unlock func(), err error)
}

// ImageScorer looks up the opaque image-quality enrichment by lead id.
type ImageScorer interface {
	Scores(ctx context.Context, tenantID string, leadIDs []string) (map[string]float64, error)
}

// DiscardSink receives dropped records after a successful commit.
type DiscardSink interface {
	WriteDiscards(discards []models.Discard) error
}

// Pipeline runs ingestion → classification → dedup → scoring → materialization → resolution for a tenant.
type Pipeline struct {
	store  LeadStore
	locker TenantLocker
	images ImageScorer
	sink   DiscardSink
	rules  *config.Rules
	logger *utils.Logger
	now    func() time.Time
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

// WithImageScorer enables the image-quality enrichment.
func WithImageScorer(s ImageScorer) PipelineOption {
	return func(p *Pipeline) { p.images = s }
}

// WithDiscardSink writes discards to an extra audit sink.
func WithDiscardSink(s DiscardSink) PipelineOption {
	return func(p *Pipeline) { p.sink = s }
}

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline wires a pipeline around a store and a locker.
func NewPipeline(store LeadStore, locker TenantLocker, rules *config.Rules, logger *utils.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:  store,
		locker: locker,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunTenant processes raw records newer than the tenant's watermark (all of them when full is set).
// A failed run commits nothing of the failing dataset and leaves the watermark where it was.
func (p *Pipeline) RunTenant(ctx context.Context, tenantID string, full bool) (*models.RunReport, error) {
	unlock, err := p.locker.Lock(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("lock tenant %s: %w", tenantID, err)
	}
	defer unlock()

	report := models.NewRunReport(tenantID, full)
	rules := p.rules.ForTenant(tenantID)
	log := p.logger.With("tenant", tenantID)

	since, err := p.store.Watermark(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}
	if full {
		since = time.Time{}
	}
	report.WatermarkFrom = since
	report.WatermarkTo = since

	raws, err := p.store.RawSince(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("read raw records: %w", err)
	}
	report.RawRead = len(raws)
	log.Info("[pipeline] %d raw records since %s", len(raws), since.Format(time.RFC3339))

	if len(raws) > 0 {
		if err := p.materialize(ctx, tenantID, rules, raws, report); err != nil {
			return nil, err
		}
	}

	if err := p.resolve(ctx, tenantID, rules, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(report.StartedAt)
	log.Info("[pipeline] done: %d ingested, %d dropped, %d inserted, %d updated, %d unchanged, %d groups",
		report.Ingested, report.Dropped(), report.LeadsInserted, report.LeadsUpdated, report.LeadsUnchanged, report.Groups)
	return report, nil
}

func (p *Pipeline) materialize(ctx context.Context, tenantID string, rules *config.Rules, raws []*models.RawRecord, report *models.RunReport) error {
	ingestor := NewIngestor(rules)
	classifier := NewSellerClassifier(rules.Seller)
	scorer := NewScorer(rules.Scoring)

	var (
		discards  []models.Discard
		ingested  []*models.NormalizedListing
		cands     []Candidate
		watermark = report.WatermarkFrom
	)

	for _, raw := range raws {
		if raw.IngestedAt.After(watermark) {
			watermark = raw.IngestedAt
		}

		listing, err := ingestor.Ingest(raw)
		if err == nil {
			ingested = append(ingested, listing)
			verdict := classifier.Classify(listing)
			if err = classifier.Gate(verdict); err == nil {
				cands = append(cands, Candidate{Listing: listing, Verdict: verdict})
				continue
			}
		}

		var drop *DropError
		if !errors.As(err, &drop) {
			return fmt.Errorf("ingest %s/%s: %w", raw.Portal, raw.ExternalID, err)
		}
		if drop.Kind == models.DropHardFailure {
			report.HardFailures[drop.Reason()]++
		} else {
			report.Filtered[drop.Reason()]++
		}
		discards = append(discards, models.Discard{
			TenantID:   tenantID,
			Portal:     raw.Portal,
			ExternalID: raw.ExternalID,
			Kind:       drop.Kind,
			Reason:     drop.Reason(),
			Detail:     drop.Detail,
			ScrapedAt:  raw.ScrapedAt,
		})
	}
	report.Ingested = len(ingested)

	appended, err := p.store.AppendPrices(ctx, ObservationsFor(ingested))
	if err != nil {
		return fmt.Errorf("append price observations: %w", err)
	}
	report.PricesAppended = appended

	collapsed := DedupWithinSource(cands)
	keys := make([]string, 0, len(collapsed))
	refs := make([]models.ListingRef, 0, len(collapsed))
	for _, lc := range collapsed {
		keys = append(keys, lc.Key)
		refs = append(refs, models.ListingRef{Portal: lc.Winner.Listing.Portal, ExternalID: lc.Winner.Listing.ExternalID})
	}

	existing, err := p.store.LeadsByKeys(ctx, tenantID, keys)
	if err != nil {
		return fmt.Errorf("load existing leads: %w", err)
	}
	histories, err := p.store.PriceHistories(ctx, tenantID, refs)
	if err != nil {
		return fmt.Errorf("load price history: %w", err)
	}
	imageScores := p.imageScores(ctx, tenantID, existing)

	now := p.now()
	batch := &models.MaterializeBatch{TenantID: tenantID, Discards: discards, Watermark: watermark}
	for i, lc := range collapsed {
		prev := existing[lc.Key]

		firstSeen := lc.FirstSeen
		if prev != nil && !prev.FirstSeenAt.IsZero() && prev.FirstSeenAt.Before(firstSeen) {
			firstSeen = prev.FirstSeenAt
		}
		in := ScoreInput{
			Listing:     lc.Winner.Listing,
			Verdict:     lc.Winner.Verdict,
			FirstSeen:   firstSeen,
			AsOf:        lc.Winner.Listing.ScrapedAt,
			PriceChange: LatestChange(histories[refs[i]]),
		}
		if prev != nil {
			if s, ok := imageScores[prev.ID]; ok {
				in.ImageScore = &s
			}
		}

		incoming := NewLeadFromCandidate(lc, scorer.Score(in).Total())
		merged, outcome := MergeLead(prev, incoming, now)
		switch outcome {
		case MergeInserted:
			report.LeadsInserted++
		case MergeUpdated:
			report.LeadsUpdated++
		case MergeUnchanged:
			report.LeadsUnchanged++
			continue
		}
		batch.Upserts = append(batch.Upserts, merged)
	}

	if err := p.store.Materialize(ctx, batch); err != nil {
		return fmt.Errorf("materialize leads: %w", err)
	}
	report.WatermarkTo = watermark

	if p.sink != nil && len(discards) > 0 {
		if err := p.sink.WriteDiscards(discards); err != nil {
			p.logger.Warn("[pipeline] discard audit write failed for %s: %v", tenantID, err)
		}
	}
	return nil
}

// imageScores is best-effort: the enrichment is optional and its failure only costs that component.
func (p *Pipeline) imageScores(ctx context.Context, tenantID string, existing map[string]*models.Lead) map[string]float64 {
	if p.images == nil || len(existing) == 0 {
		return nil
	}
	ids := make([]string, 0, len(existing))
	for _, l := range existing {
		ids = append(ids, l.ID)
	}
	sort.Strings(ids)

	scores, err := p.images.Scores(ctx, tenantID, ids)
	if err != nil {
		p.logger.Warn("[pipeline] image scores unavailable for %s: %v", tenantID, err)
		return nil
	}
	return scores
}

func (p *Pipeline) resolve(ctx context.Context, tenantID string, rules *config.Rules, report *models.RunReport) error {
	leads, err := p.store.AllLeads(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load leads for resolution: %w", err)
	}

	groups := NewEntityResolver(rules.Resolver, p.logger).Resolve(tenantID, leads)
	if err := p.store.ReplaceGroups(ctx, tenantID, groups); err != nil {
		return fmt.Errorf("replace duplicate groups: %w", err)
	}

	report.Groups = len(groups)
	for _, g := range groups {
		if g.MatchType == models.MatchPhone {
			report.PhoneGroups++
		} else {
			report.LocationGroups++
		}
	}
	report.TopLeads = TopLeads(leads, 5)
	return nil
}

// TopLeads returns the n best contactable leads by score.
func TopLeads(leads []*models.Lead, n int) []*models.Lead {
	var out []*models.Lead
	for _, l := range leads {
		if l.Contactable() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
