package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leads-cli/internal/model"
)

// sqlQuerier is the query surface shared by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// runs and integration tests; semantics match the Postgres backend.
type SQLiteStore struct {
	db *sql.DB
	q  sqlQuerier
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// A single connection keeps the pragmas in effect for every statement
	// and serializes concurrent writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS states (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS cities (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT NOT NULL,
	state_id INTEGER NOT NULL REFERENCES states(id) ON DELETE CASCADE,
	UNIQUE (name, state_id)
);

CREATE TABLE IF NOT EXISTS categories (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS sources (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL UNIQUE,
	type      TEXT NOT NULL DEFAULT 'local_folder',
	root_path TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS source_files (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id        INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	path             TEXT NOT NULL,
	hash             TEXT NOT NULL DEFAULT '',
	size             INTEGER NOT NULL DEFAULT 0,
	modified_time    DATETIME,
	row_count        INTEGER NOT NULL DEFAULT 0,
	last_ingested_at DATETIME,
	category_id      INTEGER REFERENCES categories(id) ON DELETE SET NULL,
	state_id         INTEGER REFERENCES states(id) ON DELETE SET NULL,
	city_id          INTEGER REFERENCES cities(id) ON DELETE SET NULL,
	UNIQUE (source_id, path)
);

CREATE TABLE IF NOT EXISTS leads (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	business_name  TEXT NOT NULL,
	website        TEXT,
	email          TEXT,
	phone          TEXT,
	address        TEXT,
	category_id    INTEGER REFERENCES categories(id) ON DELETE SET NULL,
	state_id       INTEGER REFERENCES states(id) ON DELETE SET NULL,
	city_id        INTEGER REFERENCES cities(id) ON DELETE SET NULL,
	domain         TEXT,
	quality_score  INTEGER NOT NULL DEFAULT 0,
	extra          TEXT NOT NULL DEFAULT '{}',
	source_file_id INTEGER REFERENCES source_files(id) ON DELETE SET NULL,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL,
	last_seen_at   DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_lead_email_lower
	ON leads (lower(email)) WHERE email IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uniq_lead_domain_city_state
	ON leads (lower(domain), city_id, state_id) WHERE domain IS NOT NULL;
CREATE INDEX IF NOT EXISTS lead_cat_idx ON leads (category_id);
CREATE INDEX IF NOT EXISTS lead_state_idx ON leads (state_id);
CREATE INDEX IF NOT EXISTS lead_city_idx ON leads (city_id);
CREATE INDEX IF NOT EXISTS lead_score_idx ON leads (quality_score);

CREATE TABLE IF NOT EXISTS tags (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS lead_tags (
	lead_id INTEGER NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	tag_id  TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	UNIQUE (lead_id, tag_id)
);

CREATE TABLE IF NOT EXISTS saved_views (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	filters    TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn against a transaction-bound copy of the store. SQLite does
// not poison a transaction on constraint errors, so no savepoint is needed
// around lead creation.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	txStore := &SQLiteStore{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// Reference data

func (s *SQLiteStore) GetOrCreateSource(ctx context.Context, name string, typ model.SourceType, rootPath string) (*model.Source, error) {
	src := &model.Source{Name: name}
	var typStr string
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO sources (name, type, root_path) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET name = excluded.name
		 RETURNING id, type, root_path`,
		name, string(typ), rootPath,
	).Scan(&src.ID, &typStr, &src.RootPath)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get or create source %q", name)
	}
	src.Type = model.SourceType(typStr)
	return src, nil
}

func (s *SQLiteStore) GetOrCreateState(ctx context.Context, name string) (*model.State, error) {
	st := &model.State{Name: name}
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO states (name) VALUES (?)
		 ON CONFLICT (name) DO UPDATE SET name = excluded.name
		 RETURNING id`,
		name,
	).Scan(&st.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get or create state %q", name)
	}
	return st, nil
}

func (s *SQLiteStore) GetOrCreateCity(ctx context.Context, name string, stateID int64) (*model.City, error) {
	c := &model.City{Name: name, StateID: stateID}
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO cities (name, state_id) VALUES (?, ?)
		 ON CONFLICT (name, state_id) DO UPDATE SET name = excluded.name
		 RETURNING id`,
		name, stateID,
	).Scan(&c.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get or create city %q", name)
	}
	return c, nil
}

func (s *SQLiteStore) GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error) {
	cat := &model.Category{Name: name}
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO categories (name) VALUES (?)
		 ON CONFLICT (name) DO UPDATE SET name = excluded.name
		 RETURNING id`,
		name,
	).Scan(&cat.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get or create category %q", name)
	}
	return cat, nil
}

// Source files

func (s *SQLiteStore) GetSourceFile(ctx context.Context, sourceID int64, path string) (*model.SourceFile, error) {
	sf := &model.SourceFile{SourceID: sourceID, Path: path}
	var modified sql.NullTime
	var lastIngested sql.NullTime
	err := s.q.QueryRowContext(ctx,
		`SELECT id, hash, size, modified_time, row_count, last_ingested_at,
		        category_id, state_id, city_id
		 FROM source_files WHERE source_id = ? AND path = ?`,
		sourceID, path,
	).Scan(&sf.ID, &sf.Hash, &sf.Size, &modified, &sf.RowCount, &lastIngested,
		&sf.CategoryID, &sf.StateID, &sf.CityID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get source file %s", path)
	}
	if modified.Valid {
		sf.ModifiedTime = modified.Time
	}
	if lastIngested.Valid {
		t := lastIngested.Time
		sf.LastIngestedAt = &t
	}
	return sf, nil
}

func (s *SQLiteStore) SaveSourceFile(ctx context.Context, sf *model.SourceFile) error {
	if sf.ID == 0 {
		err := s.q.QueryRowContext(ctx,
			`INSERT INTO source_files (source_id, path, hash, size, modified_time, category_id, state_id, city_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 RETURNING id`,
			sf.SourceID, sf.Path, sf.Hash, sf.Size, sf.ModifiedTime,
			sf.CategoryID, sf.StateID, sf.CityID,
		).Scan(&sf.ID)
		return eris.Wrapf(err, "sqlite: insert source file %s", sf.Path)
	}

	// Clearing last_ingested_at marks the new content as pending until
	// FinishSourceFile runs, so a failed re-ingest is retried next run.
	_, err := s.q.ExecContext(ctx,
		`UPDATE source_files
		 SET hash = ?, size = ?, modified_time = ?, category_id = ?, state_id = ?, city_id = ?,
		     last_ingested_at = NULL
		 WHERE id = ?`,
		sf.Hash, sf.Size, sf.ModifiedTime, sf.CategoryID, sf.StateID, sf.CityID, sf.ID,
	)
	return eris.Wrapf(err, "sqlite: update source file %s", sf.Path)
}

func (s *SQLiteStore) FinishSourceFile(ctx context.Context, id int64, rowCount int, at time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE source_files SET row_count = ?, last_ingested_at = ? WHERE id = ?`,
		rowCount, at, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish source file %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("source file not found: %d", id)
	}
	return nil
}

// Leads

const sqliteLeadColumns = `l.id, l.business_name, COALESCE(l.website, ''), COALESCE(l.email, ''),
	COALESCE(l.phone, ''), COALESCE(l.address, ''), l.category_id, l.state_id, l.city_id,
	COALESCE(l.domain, ''), l.quality_score, l.extra, l.source_file_id,
	l.created_at, l.updated_at, l.last_seen_at`

func sqliteScanLead(row interface{ Scan(...any) error }) (*model.Lead, error) {
	var l model.Lead
	var extraJSON string
	err := row.Scan(&l.ID, &l.BusinessName, &l.Website, &l.Email, &l.Phone, &l.Address,
		&l.CategoryID, &l.StateID, &l.CityID, &l.Domain, &l.QualityScore, &extraJSON,
		&l.SourceFileID, &l.CreatedAt, &l.UpdatedAt, &l.LastSeenAt)
	if err != nil {
		return nil, err
	}
	if extraJSON != "" {
		if err := json.Unmarshal([]byte(extraJSON), &l.Extra); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lead extra")
		}
	}
	return &l, nil
}

func (s *SQLiteStore) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	lead, err := sqliteScanLead(s.q.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads l WHERE lower(l.email) = lower(?) LIMIT 1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find lead by email")
	}
	return lead, nil
}

func (s *SQLiteStore) FindLeadByDomainGeo(ctx context.Context, domain string, cityID, stateID int64) (*model.Lead, error) {
	lead, err := sqliteScanLead(s.q.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads l
		 WHERE lower(l.domain) = lower(?) AND l.city_id = ? AND l.state_id = ? LIMIT 1`,
		domain, cityID, stateID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find lead by domain")
	}
	return lead, nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	extraJSON, err := json.Marshal(lead.Extra)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead extra")
	}

	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.LastSeenAt = now

	err = s.q.QueryRowContext(ctx,
		`INSERT INTO leads (business_name, website, email, phone, address, category_id,
			state_id, city_id, domain, quality_score, extra, source_file_id,
			created_at, updated_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		lead.BusinessName, nullIfEmpty(lead.Website), nullIfEmpty(lead.Email),
		nullIfEmpty(lead.Phone), nullIfEmpty(lead.Address), lead.CategoryID,
		lead.StateID, lead.CityID, nullIfEmpty(lead.Domain), lead.QualityScore,
		string(extraJSON), lead.SourceFileID, now, now, now,
	).Scan(&lead.ID)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert lead")
	}
	return nil
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	now := time.Now().UTC()
	lead.UpdatedAt = now
	lead.LastSeenAt = now

	res, err := s.q.ExecContext(ctx,
		`UPDATE leads SET business_name = ?, website = ?, email = ?, phone = ?,
			address = ?, category_id = ?, state_id = ?, city_id = ?, domain = ?,
			quality_score = ?, source_file_id = ?, updated_at = ?, last_seen_at = ?
		 WHERE id = ?`,
		lead.BusinessName, nullIfEmpty(lead.Website), nullIfEmpty(lead.Email),
		nullIfEmpty(lead.Phone), nullIfEmpty(lead.Address), lead.CategoryID,
		lead.StateID, lead.CityID, nullIfEmpty(lead.Domain), lead.QualityScore,
		lead.SourceFileID, now, now, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %d", lead.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("lead not found: %d", lead.ID)
	}
	return nil
}

// Query layer

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) (*LeadPage, error) {
	filter.Clamp()

	where, args := sqliteBuildLeadWhere(filter)

	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM leads l`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads")
	}

	query := `SELECT ` + sqliteLeadColumns + `,
		COALESCE(cat.name, ''), COALESCE(st.name, ''), COALESCE(ci.name, '')
		FROM leads l
		LEFT JOIN categories cat ON cat.id = l.category_id
		LEFT JOIN states st ON st.id = l.state_id
		LEFT JOIN cities ci ON ci.id = l.city_id` +
		where +
		` ORDER BY ` + leadSortColumn(filter.Sort) + ` LIMIT ? OFFSET ?`
	listArgs := append(append([]any{}, args...), filter.PageSize, (filter.Page-1)*filter.PageSize)

	leads, err := s.queryLeads(ctx, query, listArgs)
	if err != nil {
		return nil, err
	}

	return &LeadPage{Leads: leads, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *SQLiteStore) ExportLeads(ctx context.Context, filter LeadFilter, limit int) ([]model.Lead, error) {
	filter.Clamp()
	if limit <= 0 || limit > ExportLimit {
		limit = ExportLimit
	}

	where, args := sqliteBuildLeadWhere(filter)
	query := `SELECT ` + sqliteLeadColumns + `,
		COALESCE(cat.name, ''), COALESCE(st.name, ''), COALESCE(ci.name, '')
		FROM leads l
		LEFT JOIN categories cat ON cat.id = l.category_id
		LEFT JOIN states st ON st.id = l.state_id
		LEFT JOIN cities ci ON ci.id = l.city_id` +
		where +
		` ORDER BY ` + leadSortColumn(filter.Sort) + ` LIMIT ?`
	args = append(args, limit)

	return s.queryLeads(ctx, query, args)
}

func (s *SQLiteStore) queryLeads(ctx context.Context, query string, args []any) ([]model.Lead, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var extraJSON string
		if err := rows.Scan(&l.ID, &l.BusinessName, &l.Website, &l.Email, &l.Phone,
			&l.Address, &l.CategoryID, &l.StateID, &l.CityID, &l.Domain, &l.QualityScore,
			&extraJSON, &l.SourceFileID, &l.CreatedAt, &l.UpdatedAt, &l.LastSeenAt,
			&l.CategoryName, &l.StateName, &l.CityName); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		if extraJSON != "" {
			if err := json.Unmarshal([]byte(extraJSON), &l.Extra); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal lead extra")
			}
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: query leads iterate")
}

func sqliteBuildLeadWhere(filter LeadFilter) (string, []any) {
	where := ` WHERE 1=1`
	var args []any

	if filter.Query != "" {
		// SQLite LIKE is case-insensitive for ASCII.
		where += ` AND (l.business_name LIKE ? OR l.domain LIKE ? OR l.email LIKE ?)`
		pat := "%" + filter.Query + "%"
		args = append(args, pat, pat, pat)
	}
	if filter.StateID != 0 {
		where += ` AND l.state_id = ?`
		args = append(args, filter.StateID)
	}
	if filter.CityID != 0 {
		where += ` AND l.city_id = ?`
		args = append(args, filter.CityID)
	}
	if filter.CategoryID != 0 {
		where += ` AND l.category_id = ?`
		args = append(args, filter.CategoryID)
	}
	if filter.HasEmail {
		where += ` AND l.email IS NOT NULL AND l.email <> ''`
	}
	if filter.HasWebsite {
		where += ` AND l.website IS NOT NULL AND l.website <> ''`
	}
	return where, args
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM leads`).Scan(&stats.TotalLeads); err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads")
	}
	if err := s.q.QueryRowContext(ctx,
		`SELECT count(*) FROM leads WHERE email IS NOT NULL AND email <> ''`,
	).Scan(&stats.LeadsWithEmail); err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads with email")
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT c.name, count(l.id) AS n
		 FROM categories c JOIN leads l ON l.category_id = c.id
		 GROUP BY c.name ORDER BY n DESC LIMIT 10`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top categories")
	}
	defer rows.Close()

	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Name, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category count")
		}
		stats.TopCategories = append(stats.TopCategories, cc)
	}
	return &stats, eris.Wrap(rows.Err(), "sqlite: top categories iterate")
}

func (s *SQLiteStore) ListStates(ctx context.Context) ([]model.State, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name FROM states ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list states")
	}
	defer rows.Close()

	var states []model.State
	for rows.Next() {
		var st model.State
		if err := rows.Scan(&st.ID, &st.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state")
		}
		states = append(states, st)
	}
	return states, eris.Wrap(rows.Err(), "sqlite: list states iterate")
}

func (s *SQLiteStore) ListCities(ctx context.Context, stateID int64, limit int) ([]model.City, error) {
	query := `SELECT id, name, state_id FROM cities`
	var args []any
	if stateID != 0 {
		query += ` WHERE state_id = ?`
		args = append(args, stateID)
	}
	query += ` ORDER BY name`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cities")
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name, &c.StateID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city")
		}
		cities = append(cities, c)
	}
	return cities, eris.Wrap(rows.Err(), "sqlite: list cities iterate")
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list categories")
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category")
		}
		cats = append(cats, c)
	}
	return cats, eris.Wrap(rows.Err(), "sqlite: list categories iterate")
}

// Saved views and tags

func (s *SQLiteStore) CreateSavedView(ctx context.Context, name string, filters map[string]string) (*model.SavedView, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal saved view filters")
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO saved_views (id, name, filters, created_at) VALUES (?, ?, ?, ?)`,
		id, name, string(filtersJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert saved view")
	}

	return &model.SavedView{ID: id, Name: name, Filters: filters, CreatedAt: now}, nil
}

func (s *SQLiteStore) ListSavedViews(ctx context.Context, limit int) ([]model.SavedView, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, filters, created_at FROM saved_views ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list saved views")
	}
	defer rows.Close()

	var views []model.SavedView
	for rows.Next() {
		var v model.SavedView
		var filtersJSON string
		if err := rows.Scan(&v.ID, &v.Name, &filtersJSON, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan saved view")
		}
		if err := json.Unmarshal([]byte(filtersJSON), &v.Filters); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal saved view filters")
		}
		views = append(views, v)
	}
	return views, eris.Wrap(rows.Err(), "sqlite: list saved views iterate")
}

func (s *SQLiteStore) GetOrCreateTag(ctx context.Context, name string) (*model.Tag, error) {
	tag := &model.Tag{Name: name}
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO tags (id, name) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET name = excluded.name
		 RETURNING id`,
		uuid.New().String(), name,
	).Scan(&tag.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get or create tag %q", name)
	}
	return tag, nil
}

func (s *SQLiteStore) TagLead(ctx context.Context, leadID int64, tagID string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO lead_tags (lead_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		leadID, tagID,
	)
	return eris.Wrapf(err, "sqlite: tag lead %d", leadID)
}

func (s *SQLiteStore) UntagLead(ctx context.Context, leadID int64, tagName string) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM lead_tags WHERE lead_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`,
		leadID, tagName,
	)
	return eris.Wrapf(err, "sqlite: untag lead %d", leadID)
}

func (s *SQLiteStore) ListLeadTags(ctx context.Context, leadID int64) ([]model.Tag, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT t.id, t.name FROM tags t
		 JOIN lead_tags lt ON lt.tag_id = t.id
		 WHERE lt.lead_id = ? ORDER BY t.name`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list tags for lead %d", leadID)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tag")
		}
		tags = append(tags, t)
	}
	return tags, eris.Wrap(rows.Err(), "sqlite: list tags iterate")
}
