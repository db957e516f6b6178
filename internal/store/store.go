// Package store persists leads and their reference data. Two backends are
// provided: Postgres via pgx for production and SQLite via modernc for
// local runs and tests.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/leads-cli/internal/model"
)

// Lead list sort keys. Unrecognized values fall back to SortName.
const (
	SortName  = "business_name"
	SortScore = "quality_score"
	SortState = "state_name"
	SortCity  = "city_name"
)

// Page size bounds for lead listing.
const (
	DefaultPageSize = 50
	MinPageSize     = 10
	MaxPageSize     = 200
)

// ExportLimit caps the number of rows a CSV export may emit.
const ExportLimit = 10000

// LeadFilter specifies criteria for listing and exporting leads.
// Zero id values mean "no restriction".
type LeadFilter struct {
	Query      string `json:"q,omitempty"`
	StateID    int64  `json:"state,omitempty"`
	CityID     int64  `json:"city,omitempty"`
	CategoryID int64  `json:"category,omitempty"`
	HasEmail   bool   `json:"has_email,omitempty"`
	HasWebsite bool   `json:"has_website,omitempty"`
	Sort       string `json:"sort,omitempty"`
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
}

// Clamp normalizes pagination and sort to their documented bounds.
func (f *LeadFilter) Clamp() {
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize < MinPageSize {
		f.PageSize = MinPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch f.Sort {
	case SortName, SortScore, SortState, SortCity:
	default:
		f.Sort = SortName
	}
}

// LeadPage is one page of a filtered lead listing.
type LeadPage struct {
	Leads    []model.Lead `json:"leads"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// CategoryCount pairs a category with its lead count.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Stats summarizes the lead corpus.
type Stats struct {
	TotalLeads     int64           `json:"total_leads"`
	LeadsWithEmail int64           `json:"leads_with_email"`
	TopCategories  []CategoryCount `json:"top_categories"`
}

// Store defines the persistence interface for the ingestion pipeline and
// the query layer.
type Store interface {
	// Reference data, find-or-created under unique constraints so that
	// concurrent callers converge on one row.
	GetOrCreateSource(ctx context.Context, name string, typ model.SourceType, rootPath string) (*model.Source, error)
	GetOrCreateState(ctx context.Context, name string) (*model.State, error)
	GetOrCreateCity(ctx context.Context, name string, stateID int64) (*model.City, error)
	GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error)

	// Source files. GetSourceFile returns nil when the (source, path) pair
	// is unknown. SaveSourceFile inserts when ID is zero, else updates the
	// stored metadata in place and clears last_ingested_at; only
	// FinishSourceFile marks the content as ingested.
	GetSourceFile(ctx context.Context, sourceID int64, path string) (*model.SourceFile, error)
	SaveSourceFile(ctx context.Context, sf *model.SourceFile) error
	FinishSourceFile(ctx context.Context, id int64, rowCount int, at time.Time) error

	// Leads. The Find methods return nil when no match exists. CreateLead
	// surfaces uniqueness violations as conflict-classifiable errors, see
	// IsConflict.
	FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	FindLeadByDomainGeo(ctx context.Context, domain string, cityID, stateID int64) (*model.Lead, error)
	CreateLead(ctx context.Context, lead *model.Lead) error
	UpdateLead(ctx context.Context, lead *model.Lead) error

	// WithTx runs fn against a transaction-bound store. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Query layer.
	ListLeads(ctx context.Context, filter LeadFilter) (*LeadPage, error)
	ExportLeads(ctx context.Context, filter LeadFilter, limit int) ([]model.Lead, error)
	Stats(ctx context.Context) (*Stats, error)
	ListStates(ctx context.Context) ([]model.State, error)
	ListCities(ctx context.Context, stateID int64, limit int) ([]model.City, error)
	ListCategories(ctx context.Context) ([]model.Category, error)

	// Saved views and tags (curation surface, not touched by ingestion).
	CreateSavedView(ctx context.Context, name string, filters map[string]string) (*model.SavedView, error)
	ListSavedViews(ctx context.Context, limit int) ([]model.SavedView, error)
	GetOrCreateTag(ctx context.Context, name string) (*model.Tag, error)
	TagLead(ctx context.Context, leadID int64, tagID string) error
	UntagLead(ctx context.Context, leadID int64, tagName string) error
	ListLeadTags(ctx context.Context, leadID int64) ([]model.Tag, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsConflict reports whether err is a uniqueness violation from either
// backend. The resolver uses this to switch from create to lookup-and-merge.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// modernc sqlite reports constraint violations by message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
