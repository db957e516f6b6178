// Package ingest walks a directory of lead files and loads them into the
// store: unchanged files are skipped by content hash, rows are normalized
// and scored, and each row is resolved against existing leads by layered
// identity matching.
package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leads-cli/internal/extract"
	"github.com/sells-group/leads-cli/internal/fingerprint"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/normalize"
	"github.com/sells-group/leads-cli/internal/pathmeta"
	"github.com/sells-group/leads-cli/internal/scorer"
	"github.com/sells-group/leads-cli/internal/store"
)

// Options configures one ingestion run.
type Options struct {
	Root        string
	SourceName  string
	SourceType  model.SourceType
	Glob        string
	Limit       int
	Concurrency int
	Rules       normalize.Rules
}

// RunStats summarizes what a run did.
type RunStats struct {
	FilesSeen     int `json:"files_seen"`
	FilesSkipped  int `json:"files_skipped"`
	FilesIngested int `json:"files_ingested"`
	FilesFailed   int `json:"files_failed"`
	RowsRead      int `json:"rows_read"`
	LeadsCreated  int `json:"leads_created"`
	LeadsMerged   int `json:"leads_merged"`
	RowErrors     int `json:"row_errors"`
}

type fileStats struct {
	rows    int
	created int
	merged  int
	errors  int
}

// Runner executes ingestion runs against a store.
type Runner struct {
	store store.Store
	opts  Options
	norm  *normalize.Normalizer

	mu    sync.Mutex
	stats RunStats
}

// NewRunner creates a Runner. Zero Concurrency means one file at a time.
func NewRunner(st store.Store, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.SourceType == "" {
		opts.SourceType = model.SourceLocalFolder
	}
	return &Runner{
		store: st,
		opts:  opts,
		norm:  normalize.New(opts.Rules),
	}
}

// Run discovers files under the root and ingests each one. A file that fails
// is logged and counted; the run continues with the remaining files.
func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	source, err := r.store.GetOrCreateSource(ctx, r.opts.SourceName, r.opts.SourceType, r.opts.Root)
	if err != nil {
		return RunStats{}, eris.Wrap(err, "ingest: resolve source")
	}

	files, err := Discover(r.opts.Root, ParsePatterns(r.opts.Glob), r.opts.Limit)
	if err != nil {
		return RunStats{}, err
	}

	r.mu.Lock()
	r.stats = RunStats{FilesSeen: len(files)}
	r.mu.Unlock()

	zap.L().Info("ingest: starting run",
		zap.String("root", r.opts.Root),
		zap.String("source", source.Name),
		zap.Int("files", len(files)),
		zap.Int("concurrency", r.opts.Concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.ingestFile(gctx, source, path); err != nil {
				zap.L().Error("ingest: file failed",
					zap.String("path", path),
					zap.Error(err))
				r.mu.Lock()
				r.stats.FilesFailed++
				r.mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r.snapshot(), err
	}

	stats := r.snapshot()
	zap.L().Info("ingest: run complete",
		zap.Int("ingested", stats.FilesIngested),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("failed", stats.FilesFailed),
		zap.Int("rows", stats.RowsRead),
		zap.Int("created", stats.LeadsCreated),
		zap.Int("merged", stats.LeadsMerged),
		zap.Int("row_errors", stats.RowErrors))
	return stats, nil
}

func (r *Runner) snapshot() RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ingestFile processes one file end to end. Row insertion runs inside a
// single transaction so a partially processed file never commits.
func (r *Runner) ingestFile(ctx context.Context, source *model.Source, path string) error {
	rel, err := filepath.Rel(r.opts.Root, path)
	if err != nil {
		rel = path
	}

	fp, err := fingerprint.Compute(path)
	if err != nil {
		return err
	}

	sf, err := r.store.GetSourceFile(ctx, source.ID, rel)
	if err != nil {
		return err
	}
	if sf != nil && sf.LastIngestedAt != nil && sf.Hash == fp.Hash {
		zap.L().Debug("ingest: unchanged, skipping", zap.String("path", rel))
		r.mu.Lock()
		r.stats.FilesSkipped++
		r.mu.Unlock()
		return nil
	}
	if sf == nil {
		sf = &model.SourceFile{SourceID: source.ID, Path: rel}
	}
	sf.Hash = fp.Hash
	sf.Size = fp.Size
	sf.ModifiedTime = fp.ModTime
	sf.LastIngestedAt = nil

	defaults := normalize.Defaults{Category: pathmeta.Category(r.opts.Root, path)}
	defaults.City, defaults.State = pathmeta.CityState(filepath.Base(path))

	if defaults.Category != "" {
		cat, err := r.store.GetOrCreateCategory(ctx, defaults.Category)
		if err != nil {
			return err
		}
		sf.CategoryID = &cat.ID
	}
	if defaults.State != "" {
		st, err := r.store.GetOrCreateState(ctx, defaults.State)
		if err != nil {
			return err
		}
		sf.StateID = &st.ID
		if defaults.City != "" {
			ct, err := r.store.GetOrCreateCity(ctx, defaults.City, st.ID)
			if err != nil {
				return err
			}
			sf.CityID = &ct.ID
		}
	}

	if err := r.store.SaveSourceFile(ctx, sf); err != nil {
		return err
	}

	ext := extract.ForPath(path)
	if ext == nil {
		zap.L().Warn("ingest: unsupported format", zap.String("path", rel))
		if err := r.store.FinishSourceFile(ctx, sf.ID, 0, time.Now().UTC()); err != nil {
			return err
		}
		r.mu.Lock()
		r.stats.FilesSkipped++
		r.mu.Unlock()
		return nil
	}

	var fs fileStats
	err = r.store.WithTx(ctx, func(tx store.Store) error {
		refs := newRefCache()
		rows, errs := ext.Rows(ctx)
		for row := range rows {
			fs.rows++
			n := r.norm.Row(row, defaults)
			outcome, err := resolveRow(ctx, tx, refs, n, scorer.Score(n), sf)
			if err != nil {
				zap.L().Warn("ingest: row failed",
					zap.String("path", rel),
					zap.Int("row", fs.rows),
					zap.Error(err))
				fs.errors++
				continue
			}
			switch outcome {
			case OutcomeCreated:
				fs.created++
			case OutcomeMerged:
				fs.merged++
			}
		}
		if err := <-errs; err != nil {
			return err
		}
		return tx.FinishSourceFile(ctx, sf.ID, fs.rows, time.Now().UTC())
	})
	if err != nil {
		return err
	}

	zap.L().Info("ingest: file done",
		zap.String("path", rel),
		zap.Int("rows", fs.rows),
		zap.Int("created", fs.created),
		zap.Int("merged", fs.merged),
		zap.Int("row_errors", fs.errors))

	r.mu.Lock()
	r.stats.FilesIngested++
	r.stats.RowsRead += fs.rows
	r.stats.LeadsCreated += fs.created
	r.stats.LeadsMerged += fs.merged
	r.stats.RowErrors += fs.errors
	r.mu.Unlock()
	return nil
}
