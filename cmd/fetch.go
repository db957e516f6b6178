package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/ingest"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/normalize"
)

var (
	fetchSource string
	fetchKeep   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a remote lead archive and ingest its contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rawURL := args[0]

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		f, err := fetcher.ForURL(rawURL, fetcher.HTTPOptions{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		}, fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return err
		}

		workDir, err := os.MkdirTemp(cfg.Fetch.TempDir, "fetch-*")
		if err != nil {
			return err
		}
		if !fetchKeep {
			defer fetcher.Cleanup(workDir)
		}

		local := filepath.Join(workDir, filepath.Base(rawURL))
		n, err := f.DownloadToFile(ctx, rawURL, local)
		if err != nil {
			return err
		}
		zap.L().Info("fetch: downloaded", zap.String("url", rawURL), zap.Int64("bytes", n))

		root := workDir
		if fetcher.IsArchive(local) {
			extractDir := filepath.Join(workDir, "extracted")
			files, err := fetcher.ExtractArchive(local, extractDir)
			if err != nil {
				return err
			}
			zap.L().Info("fetch: extracted", zap.Int("files", len(files)))
			root = fetcher.CollapseSingleDir(extractDir)
		}

		source := fetchSource
		if source == "" {
			source = rawURL
		}

		stats, err := ingest.NewRunner(st, ingest.Options{
			Root:        root,
			SourceName:  source,
			SourceType:  model.SourceRemote,
			Concurrency: cfg.Ingest.Concurrency,
			Rules:       normalize.DefaultRules(),
		}).Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("files: %d seen, %d ingested, %d skipped, %d failed\n",
			stats.FilesSeen, stats.FilesIngested, stats.FilesSkipped, stats.FilesFailed)
		fmt.Printf("rows: %d read, %d leads created, %d merged, %d errors\n",
			stats.RowsRead, stats.LeadsCreated, stats.LeadsMerged, stats.RowErrors)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSource, "source", "", "source name (default: the URL)")
	fetchCmd.Flags().BoolVar(&fetchKeep, "keep", false, "keep the downloaded files after ingestion")
	rootCmd.AddCommand(fetchCmd)
}
