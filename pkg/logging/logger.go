/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logger.go
Description: Logging for droidquery. Wraps logrus with timestamped log files, selectable
text/JSON/custom formats and domain helpers for query results, adb commands, process state
transitions and snapshot exports. Console output goes to stderr so command results on stdout
stay machine readable.
*/

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warn"
	LogLevelError   LogLevel = "error"
)

// LogFormat represents the logging format
type LogFormat string

const (
	LogFormatJSON   LogFormat = "json"
	LogFormatText   LogFormat = "text"
	LogFormatCustom LogFormat = "custom"
)

// FilePrefix names every log file written by the logger
const FilePrefix = "droidquery"

// LoggerConfig holds the configuration for the logger
type LoggerConfig struct {
	Level     LogLevel  `json:"level" mapstructure:"level"`
	Format    LogFormat `json:"format" mapstructure:"format"`
	OutputDir string    `json:"output_dir" mapstructure:"output_dir"` // empty disables file output
	MaxFiles  int       `json:"max_files" mapstructure:"max_files"`
	MaxSize   int64     `json:"max_size" mapstructure:"max_size"` // in bytes
	Timestamp bool      `json:"timestamp" mapstructure:"timestamp"`
	Caller    bool      `json:"caller" mapstructure:"caller"`
	Colors    bool      `json:"colors" mapstructure:"colors"`
	Compress  bool      `json:"compress" mapstructure:"compress"`
	Quiet     bool      `json:"quiet" mapstructure:"quiet"` // no console output
}

// DefaultLoggerConfig logs info and above to stderr only
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatCustom,
		MaxFiles:  10,
		MaxSize:   20 * 1024 * 1024,
		Timestamp: true,
		Colors:    true,
	}
}

// Validate checks the LoggerConfig for invalid or missing values.
func (c *LoggerConfig) Validate() error {
	if c.OutputDir != "" {
		if c.MaxFiles <= 0 {
			return fmt.Errorf("max_files must be positive")
		}
		if c.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive")
		}
	}
	switch c.Format {
	case LogFormatJSON, LogFormatText, LogFormatCustom:
	default:
		return fmt.Errorf("unsupported log format: %s", c.Format)
	}
	switch c.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("unsupported log level: %s", c.Level)
	}
	return nil
}

// Logger owns a logrus logger and its log file
type Logger struct {
	config    *LoggerConfig
	logger    *logrus.Logger
	console   io.Writer
	startTime time.Time

	mu         sync.Mutex
	fileHandle *os.File
	filePath   string
	manager    *LogManager
}

// NewLogger creates a new logger instance. A nil config uses DefaultLoggerConfig.
func NewLogger(config *LoggerConfig) (*Logger, error) {
	return newLogger(config, os.Stderr)
}

func newLogger(config *LoggerConfig, console io.Writer) (*Logger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &Logger{
		config:    config,
		logger:    logrus.New(),
		console:   console,
		startTime: time.Now(),
	}
	if config.Quiet {
		l.console = io.Discard
	}
	if config.OutputDir != "" {
		l.manager = NewLogManager(config.OutputDir, config.MaxFiles, config.MaxSize, config.Compress)
	}

	if err := l.setup(); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	return l, nil
}

func (l *Logger) setup() error {
	level, err := logrus.ParseLevel(string(l.config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.logger.SetLevel(level)
	l.logger.SetReportCaller(l.config.Caller)

	if err := l.setFormatter(); err != nil {
		return err
	}
	return l.setupFileOutput()
}

func (l *Logger) setFormatter() error {
	prettyCaller := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch l.config.Format {
	case LogFormatJSON:
		l.logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: prettyCaller,
		})
	case LogFormatText:
		l.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    l.config.Timestamp,
			TimestampFormat:  time.RFC3339,
			DisableColors:    !l.config.Colors,
			CallerPrettyfier: prettyCaller,
		})
	case LogFormatCustom:
		l.logger.SetFormatter(&QueryFormatter{CustomFormatter: CustomFormatter{
			Timestamp: l.config.Timestamp,
			Caller:    l.config.Caller,
			Colors:    l.config.Colors,
		}})
	default:
		return fmt.Errorf("unsupported log format: %s", l.config.Format)
	}
	return nil
}

// setupFileOutput opens a new timestamped log file next to the console writer
func (l *Logger) setupFileOutput() error {
	if l.config.OutputDir == "" {
		l.logger.SetOutput(l.console)
		return nil
	}

	if err := os.MkdirAll(l.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05.000")
	path := filepath.Join(l.config.OutputDir, fmt.Sprintf("%s_%s.log", FilePrefix, timestamp))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.fileHandle = file
	l.filePath = path
	l.logger.SetOutput(io.MultiWriter(l.console, file))

	l.logger.WithFields(logrus.Fields{
		"log_file": path,
		"level":    l.config.Level,
		"format":   l.config.Format,
	}).Debug("Logging initialized")
	return nil
}

// Rotate starts a new log file once the current one reaches MaxSize
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle == nil {
		return nil
	}
	stat, err := l.fileHandle.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < l.config.MaxSize {
		return nil
	}

	l.fileHandle.Close()
	if err := l.setupFileOutput(); err != nil {
		return err
	}
	return l.manager.RotateLogs()
}

// FilePath returns the current log file, empty when logging to the console only
func (l *Logger) FilePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filePath
}

// LogQuery records the outcome of one query operation
func (l *Logger) LogQuery(op, packageName string, duration time.Duration, err error) {
	entry := l.logger.WithFields(logrus.Fields{
		"op":       op,
		"package":  packageName,
		"duration": duration,
	})
	if err != nil {
		entry.WithError(err).Warn("Query failed")
		return
	}
	entry.Debug("Query completed")
}

// LogCommand records an adb invocation
func (l *Logger) LogCommand(command string, duration time.Duration, err error) {
	entry := l.logger.WithFields(logrus.Fields{
		"command":  command,
		"duration": duration,
	})
	if err != nil {
		entry.WithError(err).Debug("adb command failed")
		return
	}
	entry.Debug("adb command")
}

// LogTransition records a change of foreground/background state
func (l *Logger) LogTransition(packageName, from, to string) {
	l.logger.WithFields(logrus.Fields{
		"package": packageName,
		"from":    from,
		"to":      to,
	}).Info("State changed")
}

// LogSnapshot records a written snapshot
func (l *Logger) LogSnapshot(id, path string, packages int, encrypted bool) {
	l.logger.WithFields(logrus.Fields{
		"snapshot_id": id,
		"path":        path,
		"packages":    packages,
		"encrypted":   encrypted,
		"uptime":      time.Since(l.startTime),
	}).Info("Snapshot written")
}

// Close closes the log file and applies the retention policy
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		l.fileHandle.Close()
		l.fileHandle = nil
	}
	if l.manager != nil {
		if err := l.manager.CleanupOldLogs(); err != nil {
			return fmt.Errorf("failed to cleanup log files: %w", err)
		}
	}
	return nil
}

// GetLogger returns the underlying logrus logger
func (l *Logger) GetLogger() *logrus.Logger {
	return l.logger
}
