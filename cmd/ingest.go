package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leads-cli/internal/ingest"
	"github.com/sells-group/leads-cli/internal/normalize"
)

var (
	ingestRoot        string
	ingestSource      string
	ingestGlob        string
	ingestLimit       int
	ingestConcurrency int
	ingestRules       string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Walk a lead directory and load new or changed files into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rules := normalize.DefaultRules()
		rulesPath := ingestRules
		if rulesPath == "" {
			rulesPath = cfg.Ingest.RulesPath
		}
		if rulesPath != "" {
			rules, err = normalize.LoadRules(rulesPath)
			if err != nil {
				return err
			}
		}

		opts := ingest.Options{
			Root:        ingestRoot,
			SourceName:  ingestSource,
			Glob:        ingestGlob,
			Limit:       ingestLimit,
			Concurrency: ingestConcurrency,
			Rules:       rules,
		}
		if opts.Root == "" {
			opts.Root = cfg.Ingest.Root
		}
		if opts.SourceName == "" {
			opts.SourceName = cfg.Ingest.SourceName
		}
		if opts.Glob == "" {
			opts.Glob = cfg.Ingest.Glob
		}
		if opts.Concurrency == 0 {
			opts.Concurrency = cfg.Ingest.Concurrency
		}

		stats, err := ingest.NewRunner(st, opts).Run(ctx)
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
	ingestCmd.Flags().StringVar(&ingestRoot, "root", "", "directory to walk (default from config)")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source name (default from config)")
	ingestCmd.Flags().StringVar(&ingestGlob, "glob", "", "comma-separated file patterns, or 'all'")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "stop after N files (0 = no limit)")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "files processed in parallel")
	ingestCmd.Flags().StringVar(&ingestRules, "rules", "", "YAML file overriding column mapping rules")
	rootCmd.AddCommand(ingestCmd)
}
