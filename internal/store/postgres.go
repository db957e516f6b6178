package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/db"
	"github.com/sells-group/leads-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	q       db.Querier
	tx      pgx.Tx
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, q: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests to inject pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS states (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS cities (
		id       BIGSERIAL PRIMARY KEY,
		name     TEXT NOT NULL,
		state_id BIGINT NOT NULL REFERENCES states(id) ON DELETE CASCADE,
		UNIQUE (name, state_id)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sources (
		id        BIGSERIAL PRIMARY KEY,
		name      TEXT NOT NULL UNIQUE,
		type      TEXT NOT NULL DEFAULT 'local_folder',
		root_path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS source_files (
		id               BIGSERIAL PRIMARY KEY,
		source_id        BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		path             TEXT NOT NULL,
		hash             TEXT NOT NULL DEFAULT '',
		size             BIGINT NOT NULL DEFAULT 0,
		modified_time    TIMESTAMPTZ,
		row_count        INTEGER NOT NULL DEFAULT 0,
		last_ingested_at TIMESTAMPTZ,
		category_id      BIGINT REFERENCES categories(id) ON DELETE SET NULL,
		state_id         BIGINT REFERENCES states(id) ON DELETE SET NULL,
		city_id          BIGINT REFERENCES cities(id) ON DELETE SET NULL,
		UNIQUE (source_id, path)
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id             BIGSERIAL PRIMARY KEY,
		business_name  VARCHAR(255) NOT NULL,
		website        VARCHAR(255),
		email          VARCHAR(255),
		phone          VARCHAR(100),
		address        TEXT,
		category_id    BIGINT REFERENCES categories(id) ON DELETE SET NULL,
		state_id       BIGINT REFERENCES states(id) ON DELETE SET NULL,
		city_id        BIGINT REFERENCES cities(id) ON DELETE SET NULL,
		domain         VARCHAR(255),
		quality_score  INTEGER NOT NULL DEFAULT 0,
		extra          JSONB NOT NULL DEFAULT '{}',
		source_file_id BIGINT REFERENCES source_files(id) ON DELETE SET NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_seen_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_lead_email_lower
		ON leads (lower(email)) WHERE email IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_lead_domain_city_state
		ON leads (lower(domain), city_id, state_id) WHERE domain IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS lead_cat_idx ON leads (category_id)`,
	`CREATE INDEX IF NOT EXISTS lead_state_idx ON leads (state_id)`,
	`CREATE INDEX IF NOT EXISTS lead_city_idx ON leads (city_id)`,
	`CREATE INDEX IF NOT EXISTS lead_score_idx ON leads (quality_score)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS lead_tags (
		lead_id BIGINT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
		tag_id  TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE (lead_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS saved_views (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		filters    JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// trigram indexes accelerate the free-text filter; they need pg_trgm and are
// skipped with a warning when the extension cannot be installed.
var postgresTrigramMigrations = []string{
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE INDEX IF NOT EXISTS lead_biz_trgm ON leads USING gin (business_name gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS lead_domain_trgm ON leads USING gin (domain gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS lead_email_trgm ON leads USING gin (email gin_trgm_ops)`,
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresMigrations {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "postgres: migrate")
		}
	}
	for _, stmt := range postgresTrigramMigrations {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			zap.L().Warn("postgres: trigram migration skipped", zap.Error(err))
			return nil
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// WithTx runs fn against a transaction-bound copy of the store.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	txStore := &PostgresStore{pool: s.pool, q: tx, tx: tx}
	if err := fn(txStore); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

// Reference data

func (s *PostgresStore) GetOrCreateSource(ctx context.Context, name string, typ model.SourceType, rootPath string) (*model.Source, error) {
	src := &model.Source{Name: name}
	err := s.q.QueryRow(ctx,
		`INSERT INTO sources (name, type, root_path) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, type, root_path`,
		name, string(typ), rootPath,
	).Scan(&src.ID, &src.Type, &src.RootPath)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create source %q", name)
	}
	return src, nil
}

func (s *PostgresStore) GetOrCreateState(ctx context.Context, name string) (*model.State, error) {
	st := &model.State{Name: name}
	err := s.q.QueryRow(ctx,
		`INSERT INTO states (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name,
	).Scan(&st.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create state %q", name)
	}
	return st, nil
}

func (s *PostgresStore) GetOrCreateCity(ctx context.Context, name string, stateID int64) (*model.City, error) {
	c := &model.City{Name: name, StateID: stateID}
	err := s.q.QueryRow(ctx,
		`INSERT INTO cities (name, state_id) VALUES ($1, $2)
		 ON CONFLICT (name, state_id) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name, stateID,
	).Scan(&c.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create city %q", name)
	}
	return c, nil
}

func (s *PostgresStore) GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error) {
	cat := &model.Category{Name: name}
	err := s.q.QueryRow(ctx,
		`INSERT INTO categories (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name,
	).Scan(&cat.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create category %q", name)
	}
	return cat, nil
}

// Source files

func (s *PostgresStore) GetSourceFile(ctx context.Context, sourceID int64, path string) (*model.SourceFile, error) {
	sf := &model.SourceFile{SourceID: sourceID, Path: path}
	err := s.q.QueryRow(ctx,
		`SELECT id, hash, size, COALESCE(modified_time, 'epoch'::timestamptz), row_count,
		        last_ingested_at, category_id, state_id, city_id
		 FROM source_files WHERE source_id = $1 AND path = $2`,
		sourceID, path,
	).Scan(&sf.ID, &sf.Hash, &sf.Size, &sf.ModifiedTime, &sf.RowCount,
		&sf.LastIngestedAt, &sf.CategoryID, &sf.StateID, &sf.CityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get source file %s", path)
	}
	return sf, nil
}

func (s *PostgresStore) SaveSourceFile(ctx context.Context, sf *model.SourceFile) error {
	if sf.ID == 0 {
		err := s.q.QueryRow(ctx,
			`INSERT INTO source_files (source_id, path, hash, size, modified_time, category_id, state_id, city_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			sf.SourceID, sf.Path, sf.Hash, sf.Size, sf.ModifiedTime,
			sf.CategoryID, sf.StateID, sf.CityID,
		).Scan(&sf.ID)
		return eris.Wrapf(err, "postgres: insert source file %s", sf.Path)
	}

	// Clearing last_ingested_at marks the new content as pending until
	// FinishSourceFile runs, so a failed re-ingest is retried next run.
	_, err := s.q.Exec(ctx,
		`UPDATE source_files
		 SET hash = $1, size = $2, modified_time = $3, category_id = $4, state_id = $5, city_id = $6,
		     last_ingested_at = NULL
		 WHERE id = $7`,
		sf.Hash, sf.Size, sf.ModifiedTime, sf.CategoryID, sf.StateID, sf.CityID, sf.ID,
	)
	return eris.Wrapf(err, "postgres: update source file %s", sf.Path)
}

func (s *PostgresStore) FinishSourceFile(ctx context.Context, id int64, rowCount int, at time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE source_files SET row_count = $1, last_ingested_at = $2 WHERE id = $3`,
		rowCount, at, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish source file %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("source file not found: %d", id)
	}
	return nil
}

// Leads

const leadColumns = `l.id, l.business_name, COALESCE(l.website, ''), COALESCE(l.email, ''),
	COALESCE(l.phone, ''), COALESCE(l.address, ''), l.category_id, l.state_id, l.city_id,
	COALESCE(l.domain, ''), l.quality_score, l.extra, l.source_file_id,
	l.created_at, l.updated_at, l.last_seen_at`

func (s *PostgresStore) scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var extraJSON []byte
	err := row.Scan(&l.ID, &l.BusinessName, &l.Website, &l.Email, &l.Phone, &l.Address,
		&l.CategoryID, &l.StateID, &l.CityID, &l.Domain, &l.QualityScore, &extraJSON,
		&l.SourceFileID, &l.CreatedAt, &l.UpdatedAt, &l.LastSeenAt)
	if err != nil {
		return nil, err
	}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &l.Extra); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead extra")
		}
	}
	return &l, nil
}

func (s *PostgresStore) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	lead, err := s.scanLead(s.q.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads l WHERE lower(l.email) = lower($1) LIMIT 1`,
		email,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find lead by email")
	}
	return lead, nil
}

func (s *PostgresStore) FindLeadByDomainGeo(ctx context.Context, domain string, cityID, stateID int64) (*model.Lead, error) {
	lead, err := s.scanLead(s.q.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads l
		 WHERE lower(l.domain) = lower($1) AND l.city_id = $2 AND l.state_id = $3 LIMIT 1`,
		domain, cityID, stateID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find lead by domain")
	}
	return lead, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	// Inside a file transaction the insert runs under a savepoint so a
	// uniqueness violation does not poison the surrounding transaction.
	if s.tx != nil {
		nested, err := s.tx.Begin(ctx)
		if err != nil {
			return eris.Wrap(err, "postgres: begin savepoint")
		}
		if err := insertLead(ctx, nested, lead); err != nil {
			_ = nested.Rollback(ctx)
			return err
		}
		return eris.Wrap(nested.Commit(ctx), "postgres: release savepoint")
	}
	return insertLead(ctx, s.q, lead)
}

func insertLead(ctx context.Context, q db.Querier, lead *model.Lead) error {
	extraJSON, err := json.Marshal(lead.Extra)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead extra")
	}

	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.LastSeenAt = now

	err = q.QueryRow(ctx,
		`INSERT INTO leads (business_name, website, email, phone, address, category_id,
			state_id, city_id, domain, quality_score, extra, source_file_id,
			created_at, updated_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		lead.BusinessName, nullIfEmpty(lead.Website), nullIfEmpty(lead.Email),
		nullIfEmpty(lead.Phone), nullIfEmpty(lead.Address), lead.CategoryID,
		lead.StateID, lead.CityID, nullIfEmpty(lead.Domain), lead.QualityScore,
		extraJSON, lead.SourceFileID, now, now, now,
	).Scan(&lead.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert lead")
	}
	return nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	now := time.Now().UTC()
	lead.UpdatedAt = now
	lead.LastSeenAt = now

	tag, err := s.q.Exec(ctx,
		`UPDATE leads SET business_name = $1, website = $2, email = $3, phone = $4,
			address = $5, category_id = $6, state_id = $7, city_id = $8, domain = $9,
			quality_score = $10, source_file_id = $11, updated_at = $12, last_seen_at = $13
		 WHERE id = $14`,
		lead.BusinessName, nullIfEmpty(lead.Website), nullIfEmpty(lead.Email),
		nullIfEmpty(lead.Phone), nullIfEmpty(lead.Address), lead.CategoryID,
		lead.StateID, lead.CityID, nullIfEmpty(lead.Domain), lead.QualityScore,
		lead.SourceFileID, now, now, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %d", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %d", lead.ID)
	}
	return nil
}

// Query layer

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) (*LeadPage, error) {
	filter.Clamp()

	where, args := buildLeadWhere(filter)

	var total int64
	countQuery := `SELECT count(*) FROM leads l` + where
	if err := s.q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: count leads")
	}

	query := `SELECT ` + leadColumns + `,
		COALESCE(cat.name, ''), COALESCE(st.name, ''), COALESCE(ci.name, '')
		FROM leads l
		LEFT JOIN categories cat ON cat.id = l.category_id
		LEFT JOIN states st ON st.id = l.state_id
		LEFT JOIN cities ci ON ci.id = l.city_id` +
		where +
		` ORDER BY ` + leadSortColumn(filter.Sort) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var extraJSON []byte
		if err := rows.Scan(&l.ID, &l.BusinessName, &l.Website, &l.Email, &l.Phone,
			&l.Address, &l.CategoryID, &l.StateID, &l.CityID, &l.Domain, &l.QualityScore,
			&extraJSON, &l.SourceFileID, &l.CreatedAt, &l.UpdatedAt, &l.LastSeenAt,
			&l.CategoryName, &l.StateName, &l.CityName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		if len(extraJSON) > 0 {
			if err := json.Unmarshal(extraJSON, &l.Extra); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal lead extra")
			}
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list leads iterate")
	}

	return &LeadPage{Leads: leads, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *PostgresStore) ExportLeads(ctx context.Context, filter LeadFilter, limit int) ([]model.Lead, error) {
	filter.Clamp()
	if limit <= 0 || limit > ExportLimit {
		limit = ExportLimit
	}
	filter.Page = 1
	filter.PageSize = limit
	// Reuse the list path; Clamp bounds PageSize, so query directly.
	where, args := buildLeadWhere(filter)
	query := `SELECT ` + leadColumns + `,
		COALESCE(cat.name, ''), COALESCE(st.name, ''), COALESCE(ci.name, '')
		FROM leads l
		LEFT JOIN categories cat ON cat.id = l.category_id
		LEFT JOIN states st ON st.id = l.state_id
		LEFT JOIN cities ci ON ci.id = l.city_id` +
		where +
		` ORDER BY ` + leadSortColumn(filter.Sort) +
		fmt.Sprintf(` LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: export leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var extraJSON []byte
		if err := rows.Scan(&l.ID, &l.BusinessName, &l.Website, &l.Email, &l.Phone,
			&l.Address, &l.CategoryID, &l.StateID, &l.CityID, &l.Domain, &l.QualityScore,
			&extraJSON, &l.SourceFileID, &l.CreatedAt, &l.UpdatedAt, &l.LastSeenAt,
			&l.CategoryName, &l.StateName, &l.CityName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: export leads iterate")
}

func buildLeadWhere(filter LeadFilter) (string, []any) {
	where := ` WHERE true`
	var args []any
	argIdx := 1

	if filter.Query != "" {
		where += fmt.Sprintf(` AND (l.business_name ILIKE $%d OR l.domain ILIKE $%d OR l.email ILIKE $%d)`, argIdx, argIdx, argIdx)
		args = append(args, "%"+filter.Query+"%")
		argIdx++
	}
	if filter.StateID != 0 {
		where += fmt.Sprintf(` AND l.state_id = $%d`, argIdx)
		args = append(args, filter.StateID)
		argIdx++
	}
	if filter.CityID != 0 {
		where += fmt.Sprintf(` AND l.city_id = $%d`, argIdx)
		args = append(args, filter.CityID)
		argIdx++
	}
	if filter.CategoryID != 0 {
		where += fmt.Sprintf(` AND l.category_id = $%d`, argIdx)
		args = append(args, filter.CategoryID)
		argIdx++
	}
	if filter.HasEmail {
		where += ` AND l.email IS NOT NULL AND l.email <> ''`
	}
	if filter.HasWebsite {
		where += ` AND l.website IS NOT NULL AND l.website <> ''`
	}
	return where, args
}

func leadSortColumn(sort string) string {
	switch sort {
	case SortScore:
		return "l.quality_score"
	case SortState:
		return "st.name"
	case SortCity:
		return "ci.name"
	default:
		return "l.business_name"
	}
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := s.q.QueryRow(ctx, `SELECT count(*) FROM leads`).Scan(&stats.TotalLeads); err != nil {
		return nil, eris.Wrap(err, "postgres: count leads")
	}
	if err := s.q.QueryRow(ctx,
		`SELECT count(*) FROM leads WHERE email IS NOT NULL AND email <> ''`,
	).Scan(&stats.LeadsWithEmail); err != nil {
		return nil, eris.Wrap(err, "postgres: count leads with email")
	}

	rows, err := s.q.Query(ctx,
		`SELECT c.name, count(l.id) AS n
		 FROM categories c JOIN leads l ON l.category_id = c.id
		 GROUP BY c.name ORDER BY n DESC LIMIT 10`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top categories")
	}
	defer rows.Close()

	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Name, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category count")
		}
		stats.TopCategories = append(stats.TopCategories, cc)
	}
	return &stats, eris.Wrap(rows.Err(), "postgres: top categories iterate")
}

func (s *PostgresStore) ListStates(ctx context.Context) ([]model.State, error) {
	rows, err := s.q.Query(ctx, `SELECT id, name FROM states ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list states")
	}
	defer rows.Close()

	var states []model.State
	for rows.Next() {
		var st model.State
		if err := rows.Scan(&st.ID, &st.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan state")
		}
		states = append(states, st)
	}
	return states, eris.Wrap(rows.Err(), "postgres: list states iterate")
}

func (s *PostgresStore) ListCities(ctx context.Context, stateID int64, limit int) ([]model.City, error) {
	query := `SELECT id, name, state_id FROM cities`
	var args []any
	if stateID != 0 {
		query += ` WHERE state_id = $1`
		args = append(args, stateID)
	}
	query += ` ORDER BY name`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cities")
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name, &c.StateID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan city")
		}
		cities = append(cities, c)
	}
	return cities, eris.Wrap(rows.Err(), "postgres: list cities iterate")
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.q.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list categories")
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category")
		}
		cats = append(cats, c)
	}
	return cats, eris.Wrap(rows.Err(), "postgres: list categories iterate")
}

// Saved views and tags

func (s *PostgresStore) CreateSavedView(ctx context.Context, name string, filters map[string]string) (*model.SavedView, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal saved view filters")
	}

	_, err = s.q.Exec(ctx,
		`INSERT INTO saved_views (id, name, filters, created_at) VALUES ($1, $2, $3, $4)`,
		id, name, filtersJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert saved view")
	}

	return &model.SavedView{ID: id, Name: name, Filters: filters, CreatedAt: now}, nil
}

func (s *PostgresStore) ListSavedViews(ctx context.Context, limit int) ([]model.SavedView, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.q.Query(ctx,
		`SELECT id, name, filters, created_at FROM saved_views ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list saved views")
	}
	defer rows.Close()

	var views []model.SavedView
	for rows.Next() {
		var v model.SavedView
		var filtersJSON []byte
		if err := rows.Scan(&v.ID, &v.Name, &filtersJSON, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan saved view")
		}
		if err := json.Unmarshal(filtersJSON, &v.Filters); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal saved view filters")
		}
		views = append(views, v)
	}
	return views, eris.Wrap(rows.Err(), "postgres: list saved views iterate")
}

func (s *PostgresStore) GetOrCreateTag(ctx context.Context, name string) (*model.Tag, error) {
	tag := &model.Tag{Name: name}
	err := s.q.QueryRow(ctx,
		`INSERT INTO tags (id, name) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		uuid.New().String(), name,
	).Scan(&tag.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create tag %q", name)
	}
	return tag, nil
}

func (s *PostgresStore) TagLead(ctx context.Context, leadID int64, tagID string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO lead_tags (lead_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		leadID, tagID,
	)
	return eris.Wrapf(err, "postgres: tag lead %d", leadID)
}

func (s *PostgresStore) UntagLead(ctx context.Context, leadID int64, tagName string) error {
	_, err := s.q.Exec(ctx,
		`DELETE FROM lead_tags USING tags
		 WHERE lead_tags.tag_id = tags.id AND lead_tags.lead_id = $1 AND tags.name = $2`,
		leadID, tagName,
	)
	return eris.Wrapf(err, "postgres: untag lead %d", leadID)
}

func (s *PostgresStore) ListLeadTags(ctx context.Context, leadID int64) ([]model.Tag, error) {
	rows, err := s.q.Query(ctx,
		`SELECT t.id, t.name FROM tags t
		 JOIN lead_tags lt ON lt.tag_id = t.id
		 WHERE lt.lead_id = $1 ORDER BY t.name`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list tags for lead %d", leadID)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tag")
		}
		tags = append(tags, t)
	}
	return tags, eris.Wrap(rows.Err(), "postgres: list tags iterate")
}

// nullIfEmpty maps "" to NULL so the partial unique indexes on email and
// domain never compare empty strings.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
