/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line interface for droidquery. Answers questions about installed Android
apps and their runtime state over adb, watches an app's foreground/background state, and
captures device snapshots that can be replayed offline.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kleascm/droidquery/cmd/droidquery/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration
	configFile string
	logLevel   string
	jsonLogs   bool
	logDir     string
	lenient    bool

	// Device
	adbPath    string
	serial     string
	adbTimeout time.Duration

	// Caller
	callerPackage   string
	callerPID       int
	callerComponent string
	finishing       bool
	destroyed       bool

	// History and replay
	dbPath       string
	replayFile   string
	identityFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "droidquery",
		Short: "droidquery - query Android app and device state over adb",
		Long: `droidquery answers questions about the apps installed on an Android device: package
metadata, labels, launcher activities, debuggability, whether an app is in the foreground and
which processes are running. Queries run on behalf of a caller app selected with --package.
Every query is recorded in a local history database, and snapshots of the device can be
captured and replayed later without a device.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Use JSON log format")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Log output directory (empty logs to stderr only)")
	rootCmd.PersistentFlags().BoolVar(&lenient, "lenient", false, "Return defaults instead of failing queries and record the errors")

	rootCmd.PersistentFlags().StringVar(&adbPath, "adb", "", "Path to the adb binary (default: search PATH)")
	rootCmd.PersistentFlags().StringVarP(&serial, "serial", "s", "", "Device serial (default: the only connected device)")
	rootCmd.PersistentFlags().DurationVar(&adbTimeout, "timeout", 15*time.Second, "Timeout for each adb command")

	rootCmd.PersistentFlags().StringVarP(&callerPackage, "package", "p", "", "Package of the app queries run for")
	rootCmd.PersistentFlags().IntVar(&callerPID, "pid", 0, "Process id of the app (default: looked up on the device)")
	rootCmd.PersistentFlags().StringVar(&callerComponent, "component", "", "Current activity of the app as pkg/cls")
	rootCmd.PersistentFlags().BoolVar(&finishing, "finishing", false, "The --component activity is finishing")
	rootCmd.PersistentFlags().BoolVar(&destroyed, "destroyed", false, "The --component activity is destroyed")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "History database path")
	rootCmd.PersistentFlags().StringVar(&replayFile, "replay", "", "Answer queries from a snapshot file instead of a device")
	rootCmd.PersistentFlags().StringVar(&identityFile, "identity", "", "age identity file for encrypted snapshots")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("json_logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	viper.BindPFlag("log.output_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("lenient", rootCmd.PersistentFlags().Lookup("lenient"))
	viper.BindPFlag("adb.path", rootCmd.PersistentFlags().Lookup("adb"))
	viper.BindPFlag("adb.serial", rootCmd.PersistentFlags().Lookup("serial"))
	viper.BindPFlag("adb.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("caller.package", rootCmd.PersistentFlags().Lookup("package"))
	viper.BindPFlag("caller.pid", rootCmd.PersistentFlags().Lookup("pid"))
	viper.BindPFlag("caller.component", rootCmd.PersistentFlags().Lookup("component"))
	viper.BindPFlag("caller.finishing", rootCmd.PersistentFlags().Lookup("finishing"))
	viper.BindPFlag("caller.destroyed", rootCmd.PersistentFlags().Lookup("destroyed"))
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("replay", rootCmd.PersistentFlags().Lookup("replay"))
	viper.BindPFlag("identity", rootCmd.PersistentFlags().Lookup("identity"))

	// App queries
	rootCmd.AddCommand(commands.AppNameCmd)
	rootCmd.AddCommand(commands.PackageNameCmd)
	rootCmd.AddCommand(commands.PackageCmd)
	rootCmd.AddCommand(commands.MetaDataCmd)
	rootCmd.AddCommand(commands.PackagesCmd)
	rootCmd.AddCommand(commands.LauncherCmd)
	rootCmd.AddCommand(commands.OpenCmd)
	rootCmd.AddCommand(commands.DebuggableCmd)
	rootCmd.AddCommand(commands.BackgroundCmd)
	rootCmd.AddCommand(commands.ProcessNamedCmd)
	rootCmd.AddCommand(commands.FrontCmd)
	rootCmd.AddCommand(commands.StorageCmd)
	rootCmd.AddCommand(commands.BrowserCmd)

	// Device
	rootCmd.AddCommand(commands.DevicesCmd)
	rootCmd.AddCommand(commands.InfoCmd)
	rootCmd.AddCommand(commands.CrashesCmd)
	rootCmd.AddCommand(commands.WatchCmd)

	// Snapshots, reports and history
	rootCmd.AddCommand(commands.SnapshotCmd)
	rootCmd.AddCommand(commands.ReportCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.LogsCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
