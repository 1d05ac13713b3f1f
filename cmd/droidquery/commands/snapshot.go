/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: snapshot.go
Description: Snapshot and report commands. A snapshot captures the device and app state
through the lenient queries and is written as JSON, age-encrypted when a recipient is
configured. A report renders a snapshot with the stored history as HTML.
*/

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/kleascm/droidquery/pkg/inventory"
	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/kleascm/droidquery/pkg/reporting"
	"github.com/kleascm/droidquery/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	snapshotLabels bool
	reportSnapshot string
	reportSince    time.Duration
	reportOutput   string
)

func init() {
	SnapshotCmd.Flags().BoolVar(&snapshotLabels, "labels", false, "Resolve the label of every installed package")
	SnapshotCmd.Flags().String("recipient", "", "age X25519 recipient to encrypt the snapshot to")
	SnapshotCmd.Flags().String("export-dir", "", "Directory for snapshot files")
	viper.BindPFlag("export.recipient", SnapshotCmd.Flags().Lookup("recipient"))
	viper.BindPFlag("export.dir", SnapshotCmd.Flags().Lookup("export-dir"))

	ReportCmd.Flags().StringVar(&reportSnapshot, "snapshot", "", "Render this snapshot file instead of collecting a new one")
	ReportCmd.Flags().DurationVar(&reportSince, "since", 24*time.Hour, "History window shown in the report")
	ReportCmd.Flags().StringVar(&reportOutput, "output-dir", "./reports", "Output directory for reports")
}

func (s *Session) collect(ctx context.Context, labels bool) *inventory.Snapshot {
	var device inventory.DeviceInfoSource
	if s.Controller != nil {
		device = s.Controller
	}
	collector := inventory.NewCollector(s.Query, device, s.errorSink(), inventory.CollectorConfig{
		Labels:      labels,
		Concurrency: s.Config.Export.Concurrency,
	}, s.Log)
	snapshot := collector.Collect(ctx, s.Caller)
	if snapshot.Device == nil && s.Replay != nil {
		snapshot.Device = s.Replay.Device
	}
	return snapshot
}

// SnapshotCmd writes a snapshot file
var SnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture device and app state into a snapshot file",
	Long: `Capture device properties, the selected app's package, state and launcher, the
foreground activity, running processes, storage and browser presence and the installed
packages. Failing queries are listed in the snapshot instead of aborting it. Snapshots can
be replayed offline with --replay.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			snapshot := s.collect(ctx, snapshotLabels)

			meta, err := utils.WriteSnapshot(s.Config.Export.Dir, snapshot, s.Config.Export.Recipient)
			if err != nil {
				return err
			}
			s.Logger.LogSnapshot(snapshot.ID, meta.Path, len(snapshot.Packages), meta.Encrypted)
			for _, e := range snapshot.Errors {
				fmt.Fprintf(s.out, "warning: %s: %s\n", e.Op, e.Error)
			}
			fmt.Fprintln(s.out, meta.Path)
			return nil
		})
	},
}

// ReportCmd writes an HTML report
var ReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render an HTML report of a snapshot and the stored history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, reportSnapshot == "", func(ctx context.Context, s *Session) error {
			var snapshot *inventory.Snapshot
			var err error
			if reportSnapshot != "" {
				snapshot, err = readReplay(reportSnapshot, viper.GetString("identity"))
				if err != nil {
					return err
				}
			} else {
				snapshot = s.collect(ctx, false)
			}

			data := &reporting.ReportData{Snapshot: snapshot, Version: cmd.Root().Version}
			pkg := ""
			if snapshot.Caller != nil {
				pkg = snapshot.Caller.PackageName
			}
			since := time.Now().Add(-reportSince)
			if s.Repo != nil {
				if data.Ops, err = s.Repo.OpSummarySince(since); err != nil {
					return err
				}
				if data.Errors, err = s.Repo.ErrorsSince(since); err != nil {
					return err
				}
				if pkg != "" {
					if data.Samples, err = s.Repo.SamplesFor(pkg, since); err != nil {
						return err
					}
				}
			}
			if s.Controller != nil && reportSnapshot == "" && pkg != "" {
				crashes, err := mobile.RecentCrashes(ctx, s.Controller, pkg)
				if err != nil {
					s.Log.WithError(err).Warn("Could not read crash log")
				}
				data.Crashes = crashes
			}

			path, err := reporting.NewReportGenerator(reportOutput, s.Log).GenerateReport(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(s.out, path)
			return nil
		})
	},
}
