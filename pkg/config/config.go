/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: Configuration for droidquery. Values come from defaults, an optional config file,
DROIDQUERY_* environment variables and bound command-line flags, merged by viper and
decoded into Config.
*/

package config

import (
	"fmt"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/kleascm/droidquery/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "DROIDQUERY"

// Config is the full droidquery configuration
type Config struct {
	ADB     ADBConfig            `mapstructure:"adb"`
	Caller  CallerConfig         `mapstructure:"caller"`
	Lenient bool                 `mapstructure:"lenient"`
	Log     logging.LoggerConfig `mapstructure:"log"`
	Store   StoreConfig          `mapstructure:"store"`
	Watch   WatchConfig          `mapstructure:"watch"`
	Browser BrowserConfig        `mapstructure:"browser"`
	Export  ExportConfig         `mapstructure:"export"`
}

// ADBConfig selects the adb binary and the device
type ADBConfig struct {
	Path     string        `mapstructure:"path"`
	Serial   string        `mapstructure:"serial"`
	Timeout  time.Duration `mapstructure:"timeout"`
	AaptPath string        `mapstructure:"aapt_path"`
	Manifest string        `mapstructure:"manifest"` // decoded AndroidManifest.xml, read instead of pulling the APK
	WorkDir  string        `mapstructure:"work_dir"`
}

// CallerConfig identifies the app queries run on behalf of
type CallerConfig struct {
	Package   string `mapstructure:"package"`
	PID       int    `mapstructure:"pid"`
	Component string `mapstructure:"component"`
	// Finishing and Destroyed describe the Component activity; activity meta-data reads need both false
	Finishing bool `mapstructure:"finishing"`
	Destroyed bool `mapstructure:"destroyed"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type WatchConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	CheckCrashes bool          `mapstructure:"check_crashes"`
}

// BrowserConfig drives the DevTools probe
type BrowserConfig struct {
	Port    int           `mapstructure:"port"`
	Socket  string        `mapstructure:"socket"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExportConfig controls snapshot files
type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	Recipient   string `mapstructure:"recipient"` // age X25519 public key, empty writes plain JSON
	Concurrency int    `mapstructure:"concurrency"`
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("adb.path", "")
	v.SetDefault("adb.serial", "")
	v.SetDefault("adb.timeout", "15s")
	v.SetDefault("adb.aapt_path", "aapt")
	v.SetDefault("adb.manifest", "")
	v.SetDefault("adb.work_dir", "")

	v.SetDefault("caller.package", "")
	v.SetDefault("caller.pid", 0)
	v.SetDefault("caller.component", "")
	v.SetDefault("caller.finishing", false)
	v.SetDefault("caller.destroyed", false)
	v.SetDefault("lenient", false)

	v.SetDefault("log.level", string(logging.LogLevelInfo))
	v.SetDefault("log.format", string(logging.LogFormatCustom))
	v.SetDefault("log.output_dir", "")
	v.SetDefault("log.max_files", 10)
	v.SetDefault("log.max_size", 20*1024*1024)
	v.SetDefault("log.timestamp", true)
	v.SetDefault("log.caller", false)
	v.SetDefault("log.colors", true)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.quiet", false)

	v.SetDefault("store.path", "droidquery.db")

	v.SetDefault("watch.interval", "2s")
	v.SetDefault("watch.check_crashes", true)

	v.SetDefault("browser.port", 9222)
	v.SetDefault("browser.socket", "chrome_devtools_remote")
	v.SetDefault("browser.timeout", "20s")

	v.SetDefault("export.dir", "./snapshots")
	v.SetDefault("export.recipient", "")
	v.SetDefault("export.concurrency", 4)
}

// Load merges defaults, the optional config file at path and the environment into a Config
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		// defaults always validate
		panic(err)
	}
	return cfg
}

// Validate rejects values that would fail later at run time
func (c *Config) Validate() error {
	if c.ADB.Timeout <= 0 {
		return fmt.Errorf("adb.timeout must be positive")
	}
	if c.Caller.PID < 0 {
		return fmt.Errorf("caller.pid must not be negative")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive")
	}
	if c.Browser.Port <= 0 || c.Browser.Port > 65535 {
		return fmt.Errorf("browser.port out of range: %d", c.Browser.Port)
	}
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("browser.timeout must be positive")
	}
	if c.Export.Concurrency <= 0 {
		return fmt.Errorf("export.concurrency must be positive")
	}
	if c.Export.Recipient != "" {
		if err := ValidateRecipient(c.Export.Recipient); err != nil {
			return err
		}
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// ValidateRecipient checks an age X25519 public key
func ValidateRecipient(key string) error {
	if !strings.HasPrefix(key, "age1") {
		return fmt.Errorf("age recipient must start with 'age1'")
	}
	if _, err := age.ParseX25519Recipient(key); err != nil {
		return fmt.Errorf("invalid age recipient: %w", err)
	}
	return nil
}
