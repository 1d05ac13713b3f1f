/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: query.go
Description: Commands for the app information queries. Each command runs the strict query, or
the lenient facade when lenient mode is on, and records the outcome in the history database.
*/

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/spf13/cobra"
)

// ProcessNamedCmd checks the name of the caller's process
var ProcessNamedCmd = &cobra.Command{
	Use:   "process-named <name>",
	Short: "Check whether the selected process has the given name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			return s.Run("IsCurrentProcessNamed", s.callerPackage(), func() (interface{}, error) {
				if s.Lenient != nil {
					return s.Lenient.IsCurrentProcessNamed(ctx, s.Caller, args[0]), nil
				}
				return s.Query.IsCurrentProcessNamed(ctx, s.Caller, args[0])
			})
		})
	},
}

// backgroundState is what the background command prints
type backgroundState struct {
	Package      string `json:"package"`
	InBackground bool   `json:"in_background"`
	Cached       bool   `json:"cached"`
}

// BackgroundCmd reports the foreground/background state of the app
var BackgroundCmd = &cobra.Command{
	Use:   "background",
	Short: "Report whether the app is in the background",
	Long: `Report whether another app's activity is on top (in_background) and whether the
app's process carries the cached/background importance (cached).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			if err := s.needCaller(); err != nil {
				return err
			}
			state := backgroundState{Package: s.Caller.PackageName}
			if err := s.Run("IsApplicationInBackground", state.Package, func() (interface{}, error) {
				var err error
				if s.Lenient != nil {
					state.InBackground = s.Lenient.IsApplicationInBackground(ctx, s.Caller)
				} else {
					state.InBackground, err = s.Query.IsApplicationInBackground(ctx, s.Caller)
				}
				return nil, err
			}); err != nil {
				return err
			}
			if err := s.Run("IsBackground", state.Package, func() (interface{}, error) {
				var err error
				if s.Lenient != nil {
					state.Cached = s.Lenient.IsBackground(ctx, s.Caller)
				} else {
					state.Cached, err = s.Query.IsBackground(ctx, s.Caller)
				}
				return nil, err
			}); err != nil {
				return err
			}
			return s.Print(state)
		})
	},
}

// MetaDataCmd reads a manifest meta-data value
var MetaDataCmd = &cobra.Command{
	Use:   "metadata <application|activity|service|receiver> <key>",
	Short: "Read a meta-data value from the app manifest",
	Long: `Read a <meta-data> value of the application or of the component selected with
--component. Activity lookups need the activity to be alive.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := appinfo.ParseComponentKind(args[0])
		return withSession(cmd, false, func(ctx context.Context, s *Session) error {
			return s.Run("MetaData", s.callerPackage(), func() (interface{}, error) {
				if s.Lenient != nil {
					return s.Lenient.MetaData(ctx, s.Caller, kind, args[1]), nil
				}
				return s.Query.MetaData(ctx, s.Caller, kind, args[1])
			})
		})
	},
}

// PackageCmd prints a package descriptor
var PackageCmd = &cobra.Command{
	Use:   "package [name]",
	Short: "Show the package descriptor of an app (the selected app by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			target := name
			if target == "" {
				target = s.callerPackage()
			}
			return s.Run("PackageInfo", target, func() (interface{}, error) {
				return s.packageInfo(ctx, name)
			})
		})
	},
}

// packageInfo returns an untyped nil when no record is available so nothing is printed
func (s *Session) packageInfo(ctx context.Context, name string) (interface{}, error) {
	var record *appinfo.PackageRecord
	var err error
	if s.Lenient != nil {
		record = s.Lenient.PackageInfo(ctx, s.Caller, name)
	} else {
		record, err = s.Query.PackageInfo(ctx, s.Caller, name)
	}
	if record == nil {
		return nil, err
	}
	return record, err
}

// AppNameCmd prints the application label
var AppNameCmd = &cobra.Command{
	Use:   "app-name",
	Short: "Print the application label of the selected app",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			return s.Run("AppName", s.callerPackage(), func() (interface{}, error) {
				if s.Lenient != nil {
					return s.Lenient.AppName(ctx, s.Caller), nil
				}
				return s.Query.AppName(ctx, s.Caller)
			})
		})
	},
}

// PackageNameCmd prints the package name read back from the package descriptor
var PackageNameCmd = &cobra.Command{
	Use:   "package-name",
	Short: "Print the package name of the selected app as the device reports it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			return s.Run("PackageName", s.callerPackage(), func() (interface{}, error) {
				if s.Lenient != nil {
					return s.Lenient.PackageName(ctx, s.Caller), nil
				}
				return s.Query.PackageName(ctx, s.Caller)
			})
		})
	},
}

// PackagesCmd lists installed packages
var PackagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List installed packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			start := time.Now()
			var packages []string
			var err error
			if s.Lenient != nil {
				packages = s.Lenient.InstalledPackages(ctx)
			} else {
				packages, err = s.Query.InstalledPackages(ctx)
			}
			s.Record("InstalledPackages", "", fmt.Sprintf("%d packages", len(packages)), err, time.Since(start))
			if err != nil {
				return err
			}
			return s.Print(packages)
		})
	},
}

// StorageCmd reports the external storage state
var StorageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Report whether external storage is mounted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			return s.Run("IsStorageMounted", "", func() (interface{}, error) {
				if s.Lenient != nil {
					return s.Lenient.IsStorageMounted(ctx), nil
				}
				return s.Query.IsStorageMounted(ctx)
			})
		})
	},
}

// LauncherCmd resolves the launcher activity of a package
var LauncherCmd = &cobra.Command{
	Use:   "launcher [package]",
	Short: "Resolve the launcher activity of a package (the selected app by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			return s.Run("Launcher", name, func() (interface{}, error) {
				var info *appinfo.ResolveInfo
				var err error
				if s.Lenient != nil {
					info = s.Lenient.Launcher(ctx, s.Caller, name)
				} else {
					info, err = s.Query.Launcher(ctx, s.Caller, name)
				}
				if info == nil {
					return nil, err
				}
				return info.Activity.ShortString(), err
			})
		})
	},
}

// OpenCmd launches an app
var OpenCmd = &cobra.Command{
	Use:   "open <package>",
	Short: "Launch a package's launcher activity in a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			return s.Run("OpenApp", args[0], func() (interface{}, error) {
				if s.Lenient != nil {
					s.Lenient.OpenApp(ctx, s.Caller, args[0])
					return nil, nil
				}
				return nil, s.Query.OpenApp(ctx, s.Caller, args[0])
			})
		})
	},
}

// FrontCmd brings the app's task to the front
var FrontCmd = &cobra.Command{
	Use:   "front",
	Short: "Bring the selected app's task to the front",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			return s.Run("MoveTaskToFront", s.callerPackage(), func() (interface{}, error) {
				if s.Lenient != nil {
					s.Lenient.MoveTaskToFront(ctx, s.Caller)
					return nil, nil
				}
				return nil, s.Query.MoveTaskToFront(ctx, s.Caller)
			})
		})
	},
}

// DebuggableCmd reports FLAG_DEBUGGABLE
var DebuggableCmd = &cobra.Command{
	Use:   "debuggable",
	Short: "Report whether the selected app is debuggable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			return s.Run("IsDebuggable", s.callerPackage(), func() (interface{}, error) {
				if s.Lenient != nil {
					return s.Lenient.IsDebuggable(ctx, s.Caller), nil
				}
				return s.Query.IsDebuggable(ctx, s.Caller)
			})
		})
	},
}
