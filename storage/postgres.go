package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"listing-leads/models"
	"listing-leads/utils"
)

// PostgresStore is the shared data store: raw records in, leads, prices and groups out.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, waits for it to answer, runs schema
// migrations, and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int, retry *utils.RetryConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := NewPostgresStoreFromDB(db)
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

// NewPostgresStoreFromDB wraps an existing handle without migrating.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS raw_records (
			seq          BIGSERIAL    PRIMARY KEY,
			tenant_id    TEXT         NOT NULL,
			portal       TEXT         NOT NULL,
			external_id  TEXT         NOT NULL DEFAULT '',
			scraped_at   TIMESTAMPTZ  NOT NULL,
			ingested_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			payload      JSONB        NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_raw_tenant_ingested ON raw_records(tenant_id, ingested_at);

		CREATE TABLE IF NOT EXISTS leads (
			id                    TEXT          PRIMARY KEY,
			tenant_id             TEXT          NOT NULL,
			unique_key            TEXT          NOT NULL,
			portal                TEXT          NOT NULL,
			external_id           TEXT          NOT NULL,
			url                   TEXT          NOT NULL,
			title                 TEXT          NOT NULL DEFAULT '',
			description           TEXT          NOT NULL DEFAULT '',
			location              TEXT          NOT NULL DEFAULT '',
			zone                  TEXT          NOT NULL DEFAULT '',
			property_type         TEXT          NOT NULL DEFAULT '',
			seller_name           TEXT          NOT NULL DEFAULT '',
			phone                 TEXT          NOT NULL DEFAULT '',
			email                 TEXT          NOT NULL DEFAULT '',
			price                 NUMERIC(14,2),
			area                  NUMERIC(10,2),
			price_per_area        NUMERIC(12,2),
			rooms                 INTEGER,
			baths                 INTEGER,
			photo_count           INTEGER       NOT NULL DEFAULT 0,
			published_at          TIMESTAMPTZ,
			es_particular         BOOLEAN       NOT NULL,
			permite_inmobiliarias BOOLEAN       NOT NULL,
			seller_reason         TEXT          NOT NULL DEFAULT '',
			score                 NUMERIC(8,2)  NOT NULL DEFAULT 0,
			first_seen_at         TIMESTAMPTZ   NOT NULL,
			last_scraped_at       TIMESTAMPTZ   NOT NULL,
			created_at            TIMESTAMPTZ   NOT NULL,
			updated_at            TIMESTAMPTZ   NOT NULL,
			estado                TEXT          NOT NULL DEFAULT 'nuevo',
			assigned_to           TEXT          NOT NULL DEFAULT '',
			notes                 TEXT          NOT NULL DEFAULT '',
			UNIQUE (tenant_id, unique_key)
		);
		CREATE INDEX IF NOT EXISTS idx_leads_tenant_score ON leads(tenant_id, score DESC);

		CREATE TABLE IF NOT EXISTS lead_sources (
			lead_id      TEXT         NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
			portal       TEXT         NOT NULL,
			external_id  TEXT         NOT NULL,
			url          TEXT         NOT NULL DEFAULT '',
			last_seen_at TIMESTAMPTZ  NOT NULL,
			PRIMARY KEY (lead_id, portal, external_id)
		);

		CREATE TABLE IF NOT EXISTS price_observations (
			tenant_id    TEXT          NOT NULL,
			portal       TEXT          NOT NULL,
			external_id  TEXT          NOT NULL,
			price        NUMERIC(14,2) NOT NULL,
			observed_at  TIMESTAMPTZ   NOT NULL,
			PRIMARY KEY (tenant_id, portal, external_id, observed_at)
		);

		CREATE TABLE IF NOT EXISTS listing_discards (
			tenant_id    TEXT         NOT NULL,
			portal       TEXT         NOT NULL,
			external_id  TEXT         NOT NULL,
			scraped_at   TIMESTAMPTZ  NOT NULL,
			kind         TEXT         NOT NULL,
			reason       TEXT         NOT NULL,
			detail       TEXT         NOT NULL DEFAULT '',
			recorded_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, portal, external_id, scraped_at)
		);

		CREATE TABLE IF NOT EXISTS duplicate_groups (
			tenant_id     TEXT     NOT NULL,
			group_id      TEXT     NOT NULL,
			match_type    TEXT     NOT NULL,
			lead_ids      TEXT[]   NOT NULL,
			portals       TEXT[]   NOT NULL,
			members       JSONB    NOT NULL,
			member_count  INTEGER  NOT NULL,
			portal_count  INTEGER  NOT NULL,
			PRIMARY KEY (tenant_id, group_id)
		);

		CREATE TABLE IF NOT EXISTS pipeline_watermarks (
			tenant_id    TEXT         PRIMARY KEY,
			ingested_at  TIMESTAMPTZ  NOT NULL,
			updated_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// InsertRaw batch-inserts raw records the way the scraping side would.
func (ps *PostgresStore) InsertRaw(ctx context.Context, recs []*models.RawRecord) error {
	const batchSize = 50
	for i := 0; i < len(recs); i += batchSize {
		end := i + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		if err := ps.insertRawBatch(ctx, recs[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (ps *PostgresStore) insertRawBatch(ctx context.Context, batch []*models.RawRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*5)

	for idx, r := range batch {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("postgres: encode payload %s/%s: %w", r.Portal, r.ExternalID, err)
		}
		ingested := r.IngestedAt
		if ingested.IsZero() {
			ingested = time.Now()
		}
		base := idx * 6
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5, base+6))
		valueArgs = append(valueArgs, r.TenantID, r.Portal, r.ExternalID, r.ScrapedAt, ingested, string(payload))
	}

	query := fmt.Sprintf(`
		INSERT INTO raw_records (tenant_id, portal, external_id, scraped_at, ingested_at, payload)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := ps.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert raw: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Watermark(ctx context.Context, tenantID string) (time.Time, error) {
	var wm time.Time
	err := ps.db.QueryRowContext(ctx,
		`SELECT ingested_at FROM pipeline_watermarks WHERE tenant_id = $1`, tenantID).Scan(&wm)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: watermark: %w", err)
	}
	return wm, nil
}

func (ps *PostgresStore) RawSince(ctx context.Context, tenantID string, since time.Time) ([]*models.RawRecord, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT seq, tenant_id, portal, external_id, scraped_at, ingested_at, payload
		FROM raw_records
		WHERE tenant_id = $1 AND ingested_at > $2
		ORDER BY ingested_at, seq
	`, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: raw since: %w", err)
	}
	defer rows.Close()

	var out []*models.RawRecord
	for rows.Next() {
		r := &models.RawRecord{}
		var payload []byte
		if err := rows.Scan(&r.Seq, &r.TenantID, &r.Portal, &r.ExternalID, &r.ScrapedAt, &r.IngestedAt, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan raw: %w", err)
		}
		// A payload that is not a JSON object stays empty and becomes a hard failure downstream.
		_ = json.Unmarshal(payload, &r.Payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendPrices inserts observations; re-ingesting the same record is a no-op.
func (ps *PostgresStore) AppendPrices(ctx context.Context, obs []models.PriceObservation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_observations (tenant_id, portal, external_id, price, observed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, portal, external_id, observed_at) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("postgres: prepare prices: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, o := range obs {
		res, err := stmt.ExecContext(ctx, o.TenantID, o.Portal, o.ExternalID, o.Price, o.ObservedAt)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert price %s/%s: %w", o.Portal, o.ExternalID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit prices: %w", err)
	}
	return added, nil
}

func (ps *PostgresStore) PriceHistories(ctx context.Context, tenantID string, refs []models.ListingRef) (map[models.ListingRef][]models.PriceObservation, error) {
	out := make(map[models.ListingRef][]models.PriceObservation)
	if len(refs) == 0 {
		return out, nil
	}
	portals := make([]string, len(refs))
	ids := make([]string, len(refs))
	for i, r := range refs {
		portals[i], ids[i] = r.Portal, r.ExternalID
	}

	rows, err := ps.db.QueryContext(ctx, `
		SELECT p.portal, p.external_id, p.price, p.observed_at
		FROM price_observations p
		JOIN UNNEST($2::text[], $3::text[]) AS r(portal, external_id)
		  ON p.portal = r.portal AND p.external_id = r.external_id
		WHERE p.tenant_id = $1
		ORDER BY p.portal, p.external_id, p.observed_at
	`, tenantID, pq.Array(portals), pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("postgres: price histories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o := models.PriceObservation{TenantID: tenantID}
		if err := rows.Scan(&o.Portal, &o.ExternalID, &o.Price, &o.ObservedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan price: %w", err)
		}
		ref := models.ListingRef{Portal: o.Portal, ExternalID: o.ExternalID}
		out[ref] = append(out[ref], o)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) PriceHistory(ctx context.Context, tenantID string, ref models.ListingRef) ([]models.PriceObservation, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT price, observed_at
		FROM price_observations
		WHERE tenant_id = $1 AND portal = $2 AND external_id = $3
		ORDER BY observed_at
	`, tenantID, ref.Portal, ref.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: price history: %w", err)
	}
	defer rows.Close()

	var out []models.PriceObservation
	for rows.Next() {
		o := models.PriceObservation{TenantID: tenantID, Portal: ref.Portal, ExternalID: ref.ExternalID}
		if err := rows.Scan(&o.Price, &o.ObservedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan price: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const leadColumns = `id, tenant_id, unique_key, portal, external_id, url, title, description,
	location, zone, property_type, seller_name, phone, email, price, area, price_per_area,
	rooms, baths, photo_count, published_at, es_particular, permite_inmobiliarias,
	seller_reason, score, first_seen_at, last_scraped_at, created_at, updated_at,
	estado, assigned_to, notes`

func (ps *PostgresStore) LeadsByKeys(ctx context.Context, tenantID string, keys []string) (map[string]*models.Lead, error) {
	out := make(map[string]*models.Lead)
	if len(keys) == 0 {
		return out, nil
	}
	leads, err := ps.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads
		WHERE tenant_id = $1 AND unique_key = ANY($2) ORDER BY id`, tenantID, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	for _, l := range leads {
		out[l.UniqueKey] = l
	}
	return out, nil
}

func (ps *PostgresStore) AllLeads(ctx context.Context, tenantID string) ([]*models.Lead, error) {
	return ps.ListLeads(ctx, tenantID, false)
}

// ListLeads returns a tenant's leads ordered by score, best first.
func (ps *PostgresStore) ListLeads(ctx context.Context, tenantID string, contactableOnly bool) ([]*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1`
	if contactableOnly {
		query += ` AND es_particular AND permite_inmobiliarias`
	}
	query += ` ORDER BY score DESC, id`
	return ps.queryLeads(ctx, query, tenantID)
}

func (ps *PostgresStore) GetLead(ctx context.Context, tenantID, id string) (*models.Lead, error) {
	leads, err := ps.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, ErrNotFound
	}
	return leads[0], nil
}

func (ps *PostgresStore) queryLeads(ctx context.Context, query string, args ...interface{}) ([]*models.Lead, error) {
	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	byID := make(map[string]*models.Lead)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return leads, nil
	}

	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	srcRows, err := ps.db.QueryContext(ctx, `
		SELECT lead_id, portal, external_id, url, last_seen_at
		FROM lead_sources
		WHERE lead_id = ANY($1)
		ORDER BY lead_id, portal, external_id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("postgres: query sources: %w", err)
	}
	defer srcRows.Close()

	for srcRows.Next() {
		var leadID string
		var s models.LeadSource
		if err := srcRows.Scan(&leadID, &s.Portal, &s.ExternalID, &s.URL, &s.LastSeenAt); err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		if l, ok := byID[leadID]; ok {
			l.Sources = append(l.Sources, s)
		}
	}
	return leads, srcRows.Err()
}

func scanLead(rows *sql.Rows) (*models.Lead, error) {
	l := &models.Lead{}
	var (
		price, area, ppa sql.NullFloat64
		rooms, baths     sql.NullInt64
		published        sql.NullTime
	)
	if err := rows.Scan(
		&l.ID, &l.TenantID, &l.UniqueKey, &l.Portal, &l.ExternalID, &l.URL, &l.Title, &l.Description,
		&l.Location, &l.Zone, &l.PropertyType, &l.SellerName, &l.Phone, &l.Email, &price, &area, &ppa,
		&rooms, &baths, &l.PhotoCount, &published, &l.EsParticular, &l.PermiteInmo,
		&l.SellerReason, &l.Score, &l.FirstSeenAt, &l.LastScrapedAt, &l.CreatedAt, &l.UpdatedAt,
		&l.Workflow.Estado, &l.Workflow.AssignedTo, &l.Workflow.Notes,
	); err != nil {
		return nil, fmt.Errorf("postgres: scan lead: %w", err)
	}
	l.Price = floatPtr(price)
	l.Area = floatPtr(area)
	l.PricePerArea = floatPtr(ppa)
	l.Rooms = intPtr(rooms)
	l.Baths = intPtr(baths)
	if published.Valid {
		t := published.Time
		l.PublishedAt = &t
	}
	return l, nil
}

// Materialize upserts leads, records discards and advances the watermark in one transaction.
// The conflict clause never touches the workflow columns or created_at.
func (ps *PostgresStore) Materialize(ctx context.Context, batch *models.MaterializeBatch) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	for _, l := range batch.Upserts {
		if err := upsertLead(ctx, tx, l); err != nil {
			return err
		}
	}

	for _, d := range batch.Discards {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listing_discards (tenant_id, portal, external_id, scraped_at, kind, reason, detail)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tenant_id, portal, external_id, scraped_at)
			DO UPDATE SET kind = EXCLUDED.kind, reason = EXCLUDED.reason, detail = EXCLUDED.detail
		`, d.TenantID, d.Portal, d.ExternalID, d.ScrapedAt, string(d.Kind), d.Reason, d.Detail); err != nil {
			return fmt.Errorf("postgres: record discard %s/%s: %w", d.Portal, d.ExternalID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pipeline_watermarks (tenant_id, ingested_at, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tenant_id)
		DO UPDATE SET ingested_at = GREATEST(pipeline_watermarks.ingested_at, EXCLUDED.ingested_at), updated_at = NOW()
	`, batch.TenantID, batch.Watermark); err != nil {
		return fmt.Errorf("postgres: advance watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit materialize: %w", err)
	}
	return nil
}

func upsertLead(ctx context.Context, tx *sql.Tx, l *models.Lead) error {
	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
		        $21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32)
		ON CONFLICT (tenant_id, unique_key) DO UPDATE SET
			portal = EXCLUDED.portal, external_id = EXCLUDED.external_id, url = EXCLUDED.url,
			title = EXCLUDED.title, description = EXCLUDED.description, location = EXCLUDED.location,
			zone = EXCLUDED.zone, property_type = EXCLUDED.property_type, seller_name = EXCLUDED.seller_name,
			phone = EXCLUDED.phone, email = EXCLUDED.email, price = EXCLUDED.price, area = EXCLUDED.area,
			price_per_area = EXCLUDED.price_per_area, rooms = EXCLUDED.rooms, baths = EXCLUDED.baths,
			photo_count = EXCLUDED.photo_count, published_at = EXCLUDED.published_at,
			es_particular = EXCLUDED.es_particular, permite_inmobiliarias = EXCLUDED.permite_inmobiliarias,
			seller_reason = EXCLUDED.seller_reason, score = EXCLUDED.score,
			first_seen_at = EXCLUDED.first_seen_at, last_scraped_at = EXCLUDED.last_scraped_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`,
		l.ID, l.TenantID, l.UniqueKey, l.Portal, l.ExternalID, l.URL, l.Title, l.Description,
		l.Location, l.Zone, l.PropertyType, l.SellerName, l.Phone, l.Email, l.Price, l.Area, l.PricePerArea,
		l.Rooms, l.Baths, l.PhotoCount, l.PublishedAt, l.EsParticular, l.PermiteInmo,
		l.SellerReason, l.Score, l.FirstSeenAt, l.LastScrapedAt, l.CreatedAt, l.UpdatedAt,
		l.Workflow.Estado, l.Workflow.AssignedTo, l.Workflow.Notes,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("postgres: upsert lead %s: %w", l.UniqueKey, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lead_sources WHERE lead_id = $1`, id); err != nil {
		return fmt.Errorf("postgres: clear sources %s: %w", id, err)
	}
	for _, s := range l.Sources {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lead_sources (lead_id, portal, external_id, url, last_seen_at)
			VALUES ($1, $2, $3, $4, $5)
		`, id, s.Portal, s.ExternalID, s.URL, s.LastSeenAt); err != nil {
			return fmt.Errorf("postgres: insert source %s/%s: %w", s.Portal, s.ExternalID, err)
		}
	}
	return nil
}

// ReplaceGroups swaps the tenant's duplicate groups atomically; readers never see a partial set.
func (ps *PostgresStore) ReplaceGroups(ctx context.Context, tenantID string, groups []*models.DuplicateGroup) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM duplicate_groups WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("postgres: clear groups: %w", err)
	}
	for _, g := range groups {
		members, err := json.Marshal(g.Members)
		if err != nil {
			return fmt.Errorf("postgres: encode members %s: %w", g.GroupID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO duplicate_groups (tenant_id, group_id, match_type, lead_ids, portals, members, member_count, portal_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, tenantID, g.GroupID, string(g.MatchType), pq.Array(g.LeadIDs), pq.Array(g.Portals),
			string(members), g.MemberCount, g.PortalCount); err != nil {
			return fmt.Errorf("postgres: insert group %s: %w", g.GroupID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit groups: %w", err)
	}
	return nil
}

func (ps *PostgresStore) ListGroups(ctx context.Context, tenantID string) ([]*models.DuplicateGroup, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT group_id, match_type, lead_ids, portals, members, member_count, portal_count
		FROM duplicate_groups
		WHERE tenant_id = $1
		ORDER BY group_id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list groups: %w", err)
	}
	defer rows.Close()

	var out []*models.DuplicateGroup
	for rows.Next() {
		g := &models.DuplicateGroup{TenantID: tenantID}
		var matchType string
		var members []byte
		if err := rows.Scan(&g.GroupID, &matchType, pq.Array(&g.LeadIDs), pq.Array(&g.Portals),
			&members, &g.MemberCount, &g.PortalCount); err != nil {
			return nil, fmt.Errorf("postgres: scan group: %w", err)
		}
		g.MatchType = models.MatchType(matchType)
		if err := json.Unmarshal(members, &g.Members); err != nil {
			return nil, fmt.Errorf("postgres: decode members %s: %w", g.GroupID, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}
