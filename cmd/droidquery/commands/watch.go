/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: watch.go
Description: Watch command. Polls the app's foreground/background state until interrupted,
printing each state change and storing samples, errors and crashes in the history database.
*/

package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/kleascm/droidquery/pkg/monitoring"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchDuration time.Duration

func init() {
	WatchCmd.Flags().Duration("interval", 0, "Polling interval (default from config, 2s)")
	WatchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	viper.BindPFlag("watch.interval", WatchCmd.Flags().Lookup("interval"))
}

// WatchCmd watches the app's state
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the selected app move between foreground and background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			if err := s.needCaller(); err != nil {
				return err
			}
			if watchDuration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, watchDuration)
				defer cancel()
			}

			var sampleStore monitoring.SampleStore
			if s.Repo != nil {
				sampleStore = s.Repo
			}
			var crashes monitoring.CrashSource
			if s.Config.Watch.CheckCrashes && s.Controller != nil {
				crashes = func(ctx context.Context, pkg string) ([]mobile.CrashEntry, error) {
					return mobile.RecentCrashes(ctx, s.Controller, pkg)
				}
			}

			watcher := monitoring.NewWatcher(monitoring.WatcherConfig{
				Interval: s.Config.Watch.Interval,
			}, s.Query, s.Caller, sampleStore, crashes, s.Log)
			watcher.OnTransition = func(t monitoring.Transition) {
				s.Logger.LogTransition(t.Package, t.From, t.To)
				fmt.Fprintf(s.out, "%s %s -> %s\n", t.At.Format("15:04:05"), stateName(t.From), t.To)
			}

			err := watcher.Start(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		})
	},
}

func stateName(state string) string {
	if state == "" {
		return "start"
	}
	return state
}
