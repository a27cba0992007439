package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yourusername/ytfetch-go/internal/infrastructure"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		repo, err := infrastructure.NewSQLiteDownloadRepository(cfg.Download.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer repo.Close()

		filters := make(map[string]interface{})
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			filters["status"] = status
		}

		downloads, err := repo.FindAll(filters)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tSIZE\tCREATED")
		for _, d := range downloads {
			title := d.Title
			if title == "" {
				title = d.URL
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(d.ID, 8),
				truncate(title, 40),
				d.Status,
				humanize.Bytes(uint64(d.BytesTotal)),
				d.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		repo, err := infrastructure.NewSQLiteDownloadRepository(cfg.Download.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer repo.Close()

		stats, err := repo.GetStats()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Total:\t%d\n", stats.Total)
		fmt.Fprintf(w, "Queued:\t%d\n", stats.Queued)
		fmt.Fprintf(w, "Processing:\t%d\n", stats.Processing)
		fmt.Fprintf(w, "Completed:\t%d\n", stats.Completed)
		fmt.Fprintf(w, "Failed:\t%d\n", stats.Failed)
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().String("status", "", "Filter by status (queued, processing, completed, failed)")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
