/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: history.go
Description: History and log maintenance commands. history lists recorded queries with a
per-operation summary and can prune old rows. logs shows log file statistics and the event
counts found in them.
*/

package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/kleascm/droidquery/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	historySince time.Duration
	historyLimit int
	historyPrune time.Duration
	logsRotate   bool
)

func init() {
	HistoryCmd.Flags().DurationVar(&historySince, "since", 24*time.Hour, "Show queries recorded within this window")
	HistoryCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of queries to list (0 for all)")
	HistoryCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete rows older than this before listing")

	LogsCmd.Flags().BoolVar(&logsRotate, "rotate", false, "Rotate and clean up log files first")
}

// HistoryCmd lists stored queries
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded queries and a per-operation summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *Session) error {
			if s.Repo == nil {
				return fmt.Errorf("history store is not available")
			}

			if historyPrune > 0 {
				deleted, err := s.Repo.DeleteBefore(time.Now().Add(-historyPrune))
				if err != nil {
					return err
				}
				s.Log.WithField("rows", deleted).Info("Pruned history")
			}

			since := time.Now().Add(-historySince)
			records, err := s.Repo.QueriesSince(since, historyLimit)
			if err != nil {
				return err
			}
			summary, err := s.Repo.OpSummarySince(since)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tOP\tPACKAGE\tRESULT\tMS")
			for _, r := range records {
				result := r.Result
				if r.Error != "" {
					result = "error: " + r.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.Timestamp.Format("01-02 15:04:05"), r.Op, r.Package, result, r.DurationMs)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "OP\tCALLS\tFAILURES\tAVG MS")
			for _, op := range summary {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\n", op.Op, op.Calls, op.Failures, op.AvgDurationMs)
			}
			return w.Flush()
		})
	},
}

// LogsCmd reports on the log directory
var LogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show log file statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		dir := cfg.Log.OutputDir
		if dir == "" {
			return fmt.Errorf("no log directory configured (set --log-dir or log.output_dir)")
		}

		lm := logging.NewLogManager(dir, cfg.Log.MaxFiles, cfg.Log.MaxSize, cfg.Log.Compress)
		if logsRotate {
			if err := lm.RotateLogs(); err != nil {
				return err
			}
			if err := lm.CleanupOldLogs(); err != nil {
				return err
			}
		}

		stats, err := lm.GetLogStats()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Log directory: %s\n", dir)
		fmt.Fprintf(out, "Files: %d (%d compressed), %d bytes\n", stats.TotalFiles, stats.CompressedFiles, stats.TotalSize)
		if stats.TotalFiles > 0 {
			fmt.Fprintf(out, "Oldest: %s\nNewest: %s\n", stats.OldestFile.Format(time.RFC3339), stats.NewestFile.Format(time.RFC3339))
		}

		analysis, err := logging.NewLogAnalyzer(dir).AnalyzeLogs()
		if err != nil {
			return err
		}
		fmt.Fprint(out, analysis.GetLogSummary())
		return nil
	},
}
