package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a summary of the lead corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("total leads:      %d\n", stats.TotalLeads)
		fmt.Printf("leads with email: %d\n", stats.LeadsWithEmail)
		if len(stats.TopCategories) > 0 {
			fmt.Println("top categories:")
			for _, c := range stats.TopCategories {
				fmt.Printf("  %-40s %d\n", c.Name, c.Count)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
