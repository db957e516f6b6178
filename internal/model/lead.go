// Package model defines the persisted entities of the leads database.
package model

import "time"

// State is a reference row created on demand during ingestion.
type State struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// City belongs to exactly one State; uniqueness is (name, state).
type City struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	StateID int64  `json:"state_id"`
}

// Category is derived from a source file's directory segment.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SourceType identifies where a Source's files come from.
type SourceType string

const (
	SourceLocalFolder SourceType = "local_folder"
	SourceRemote      SourceType = "remote"
)

// Source is a named ingestion origin. One row per distinct name.
type Source struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Type     SourceType `json:"type"`
	RootPath string     `json:"root_path"`
}

// SourceFile tracks one ingested file per (source, path) pair. The stored
// hash is the change detector: re-ingestion with an identical hash is a no-op.
type SourceFile struct {
	ID             int64      `json:"id"`
	SourceID       int64      `json:"source_id"`
	Path           string     `json:"path"`
	Hash           string     `json:"hash"`
	Size           int64      `json:"size"`
	ModifiedTime   time.Time  `json:"modified_time"`
	RowCount       int        `json:"row_count"`
	LastIngestedAt *time.Time `json:"last_ingested_at,omitempty"`
	CategoryID     *int64     `json:"category_id,omitempty"`
	StateID        *int64     `json:"state_id,omitempty"`
	CityID         *int64     `json:"city_id,omitempty"`
}

// Extra is the open-ended bag of original row columns not consumed by
// canonical field extraction. Persisted as JSON.
type Extra map[string]string

// Lead is the resolved business record. Rows are created once and thereafter
// only merged into: fields are filled when previously empty, the score only
// rises, and the source_file pointer advances to the latest touching file.
type Lead struct {
	ID           int64     `json:"id"`
	BusinessName string    `json:"business_name"`
	Website      string    `json:"website,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CategoryID   *int64    `json:"category_id,omitempty"`
	StateID      *int64    `json:"state_id,omitempty"`
	CityID       *int64    `json:"city_id,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	QualityScore int       `json:"quality_score"`
	Extra        Extra     `json:"extra,omitempty"`
	SourceFileID *int64    `json:"source_file_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`

	// Denormalized names, populated by list queries for rendering/export.
	CategoryName string `json:"category_name,omitempty"`
	StateName    string `json:"state_name,omitempty"`
	CityName     string `json:"city_name,omitempty"`
}

// Tag labels leads for downstream curation; not populated by ingestion.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SavedView is a named snapshot of list filter parameters.
type SavedView struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Filters   map[string]string `json:"filters"`
	CreatedAt time.Time         `json:"created_at"`
}
