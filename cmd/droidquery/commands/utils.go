/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared setup for the droidquery commands. Loads configuration, builds the logger,
the device registry (adb or a replayed snapshot), the history store and the caller identity,
and records and prints the outcome of each query.
*/

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/kleascm/droidquery/pkg/config"
	"github.com/kleascm/droidquery/pkg/inventory"
	"github.com/kleascm/droidquery/pkg/logging"
	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/kleascm/droidquery/pkg/store"
	"github.com/kleascm/droidquery/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LoadConfig merges defaults, the config file, the environment and the bound flags
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if viper.GetBool("json_logs") {
		cfg.Log.Format = logging.LogFormatJSON
	}
	return cfg, nil
}

// SessionOptions selects where a session reads device state from
type SessionOptions struct {
	// Replay reads a snapshot file instead of talking to a device
	Replay string
	// Identity is the age identity file for encrypted snapshots
	Identity string
	// NeedDevice selects the only online device when no serial is configured
	NeedDevice bool
	Out        io.Writer
}

// Session holds everything a command needs for one run
type Session struct {
	Config *config.Config
	Logger *logging.Logger
	Log    *logrus.Logger

	// Controller is nil when replaying a snapshot
	Controller *mobile.AndroidDeviceController
	Replay     *inventory.Snapshot
	Query      *appinfo.Query
	// Lenient is set when lenient mode is configured
	Lenient *appinfo.Lenient
	// Repo is nil when the history database cannot be opened
	Repo   *store.Repository
	Caller *appinfo.Caller

	db  *store.DB
	out io.Writer
}

// OpenSession builds a session from cfg
func OpenSession(ctx context.Context, cfg *config.Config, opts SessionOptions) (*Session, error) {
	logger, err := logging.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	s := &Session{
		Config: cfg,
		Logger: logger,
		Log:    logger.GetLogger(),
		out:    opts.Out,
	}
	if s.out == nil {
		s.out = os.Stdout
	}

	var registry appinfo.Registry
	device := "replay"
	if opts.Replay != "" {
		snapshot, err := readReplay(opts.Replay, opts.Identity)
		if err != nil {
			logger.Close()
			return nil, err
		}
		s.Replay = snapshot
		registry = snapshot.Registry()
		if snapshot.Device != nil {
			device = snapshot.Device.Serial
		}
	} else {
		s.Controller = mobile.NewAndroidDeviceController(mobile.ControllerConfig{
			ADBPath:   cfg.ADB.Path,
			Serial:    cfg.ADB.Serial,
			Timeout:   cfg.ADB.Timeout,
			Logger:    s.Log,
			OnCommand: logger.LogCommand,
		})
		if opts.NeedDevice {
			if err := s.Controller.AutoSelect(ctx); err != nil {
				logger.Close()
				return nil, err
			}
		}
		device = s.Controller.Serial()
		registry = mobile.NewAndroidRegistry(s.Controller, mobile.RegistryConfig{
			Analyzer:     mobile.NewAPKAnalyzer(cfg.ADB.AaptPath, nil),
			ManifestPath: cfg.ADB.Manifest,
			WorkDir:      cfg.ADB.WorkDir,
			Logger:       s.Log,
		})
	}

	s.openStore(device)

	s.Query = appinfo.NewQuery(registry, s.Log)
	if cfg.Lenient {
		s.Lenient = appinfo.NewLenient(s.Query, s.errorSink())
	}

	caller, err := s.resolveCaller(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Caller = caller
	return s, nil
}

func readReplay(path, identityFile string) (*inventory.Snapshot, error) {
	if identityFile == "" {
		return utils.ReadSnapshot(path)
	}
	identities, err := utils.LoadIdentities(identityFile)
	if err != nil {
		return nil, err
	}
	return utils.ReadSnapshot(path, identities...)
}

// openStore opens the history database. Failure only disables history.
func (s *Session) openStore(device string) {
	db, err := store.Connect(s.Config.Store.Path)
	if err == nil {
		err = db.Initialize()
		if err != nil {
			db.Close()
		}
	}
	if err != nil {
		s.Log.WithError(err).Warn("History database unavailable")
		return
	}
	s.db = db
	s.Repo = store.NewRepository(db, device, s.Log)
}

// resolveCaller builds the caller from config, falling back to the replayed snapshot's caller
func (s *Session) resolveCaller(ctx context.Context) (*appinfo.Caller, error) {
	cc := s.Config.Caller
	if cc.Package == "" {
		if s.Replay != nil {
			return s.Replay.Caller, nil
		}
		return nil, nil
	}

	caller := &appinfo.Caller{
		PackageName: cc.Package,
		PID:         cc.PID,
		Finishing:   cc.Finishing,
		Destroyed:   cc.Destroyed,
	}
	if cc.Component != "" {
		component, ok := appinfo.ParseComponentName(cc.Component)
		if !ok {
			return nil, fmt.Errorf("invalid component %q, expected pkg/cls", cc.Component)
		}
		caller.Component = component
	}
	if caller.PID == 0 && s.Controller != nil {
		resolved, err := s.Controller.ResolveCaller(ctx, caller.PackageName, 0)
		if err != nil {
			return nil, err
		}
		caller.PID = resolved.PID
	}
	return caller, nil
}

// Close releases the database and the log file
func (s *Session) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.Log.WithError(err).Warn("Failed to close database")
		}
	}
	return s.Logger.Close()
}

func (s *Session) callerPackage() string {
	if s.Caller == nil {
		return ""
	}
	return s.Caller.PackageName
}

// Run executes one query, records it and prints its result
func (s *Session) Run(op, packageName string, fn func() (interface{}, error)) error {
	start := time.Now()
	result, err := fn()
	s.Record(op, packageName, result, err, time.Since(start))
	if err != nil {
		return err
	}
	return s.Print(result)
}

// Record logs a query outcome and stores it in the history database
func (s *Session) Record(op, packageName string, result interface{}, err error, duration time.Duration) {
	s.Logger.LogQuery(op, packageName, duration, err)
	if s.Repo == nil {
		return
	}
	if dbErr := s.Repo.RecordQuery(op, packageName, resultString(result), err, duration); dbErr != nil {
		s.Log.WithError(dbErr).Warn("Failed to record query")
	}
}

func resultString(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, int, int64:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// Print writes plain values as text and everything else as indented JSON
func (s *Session) Print(result interface{}) error {
	switch v := result.(type) {
	case nil:
		return nil
	case string, bool, int, int64:
		_, err := fmt.Fprintln(s.out, v)
		return err
	case []string:
		for _, line := range v {
			if _, err := fmt.Fprintln(s.out, line); err != nil {
				return err
			}
		}
		return nil
	default:
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// needCaller rejects commands that act on the caller when none is configured
func (s *Session) needCaller() error {
	if s.Caller == nil {
		return fmt.Errorf("no app selected, use --package")
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withSession loads the configuration, opens a session and runs fn with it
func withSession(cmd *cobra.Command, needDevice bool, fn func(ctx context.Context, s *Session) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	s, err := OpenSession(ctx, cfg, SessionOptions{
		Replay:     viper.GetString("replay"),
		Identity:   viper.GetString("identity"),
		NeedDevice: needDevice && viper.GetString("replay") == "",
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// requireDevice rejects commands that cannot run against a replayed snapshot
func (s *Session) requireDevice(name string) error {
	if s.Controller == nil {
		return fmt.Errorf("%s needs a device and cannot run on a replayed snapshot", name)
	}
	return nil
}

// errorSink returns the history repository as an error sink, or nil without one
func (s *Session) errorSink() appinfo.ErrorSink {
	if s.Repo == nil {
		return nil
	}
	return s.Repo
}
