/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: device.go
Description: Device commands: list attached devices, show device properties and read recent
crashes from the crash log buffer.
*/

package commands

import (
	"context"
	"fmt"

	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/spf13/cobra"
)

// DevicesCmd lists attached devices
var DevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached Android devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *Session) error {
			if err := s.requireDevice("devices"); err != nil {
				return err
			}
			devices, err := s.Controller.Devices(ctx)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(s.out, "No devices attached")
				return nil
			}
			for _, d := range devices {
				fmt.Fprintf(s.out, "%-24s %-14s %s\n", d.Serial, d.State, d.Model)
			}
			return nil
		})
	},
}

// InfoCmd prints device properties
var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device model, release and ABI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			if s.Replay != nil {
				return s.Print(s.Replay.Device)
			}
			info, err := s.Controller.GetDeviceInfo(ctx)
			if err != nil {
				return err
			}
			return s.Print(info)
		})
	},
}

var crashesAll bool

func init() {
	CrashesCmd.Flags().BoolVar(&crashesAll, "all", false, "Show crashes of every package")
}

// CrashesCmd prints recent crashes of the app
var CrashesCmd = &cobra.Command{
	Use:   "crashes",
	Short: "Show recent crashes and ANRs of the selected app",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			if err := s.requireDevice("crashes"); err != nil {
				return err
			}
			pkg := ""
			if !crashesAll {
				if err := s.needCaller(); err != nil {
					return err
				}
				pkg = s.Caller.PackageName
			}
			entries, err := mobile.RecentCrashes(ctx, s.Controller, pkg)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(s.out, "No crashes found")
				return nil
			}
			return s.Print(entries)
		})
	},
}
