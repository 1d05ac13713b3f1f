/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Log file management for droidquery: size based rotation with optional gzip
compression, retention cleanup, file statistics and a line analyzer that counts queries,
failures, state transitions and snapshots.
*/

package logging

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogManager applies rotation and retention to a log directory
type LogManager struct {
	logDir   string
	maxFiles int
	maxSize  int64
	compress bool
}

func NewLogManager(logDir string, maxFiles int, maxSize int64, compress bool) *LogManager {
	return &LogManager{
		logDir:   logDir,
		maxFiles: maxFiles,
		maxSize:  maxSize,
		compress: compress,
	}
}

func (lm *LogManager) glob(suffix string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(lm.logDir, FilePrefix+"_*.log"+suffix))
	if err != nil {
		return nil, fmt.Errorf("failed to glob log files: %w", err)
	}
	return files, nil
}

// RotateLogs renames log files that exceed the size limit
func (lm *LogManager) RotateLogs() error {
	files, err := lm.glob("")
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := lm.rotateFile(file); err != nil {
			return fmt.Errorf("failed to rotate file %s: %w", file, err)
		}
	}
	return nil
}

func (lm *LogManager) rotateFile(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if stat.Size() < lm.maxSize {
		return nil
	}

	rotated := fmt.Sprintf("%s.%s", path, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.Rename(path, rotated); err != nil {
		return err
	}
	if lm.compress {
		return compressFile(rotated)
	}
	return nil
}

// compressFile gzips path and removes the original
func compressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	compressed, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer compressed.Close()

	gz := gzip.NewWriter(compressed)
	if _, err := io.Copy(gz, source); err != nil {
		gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// CleanupOldLogs keeps the newest maxFiles files
func (lm *LogManager) CleanupOldLogs() error {
	files, err := lm.glob("*")
	if err != nil {
		return err
	}
	if len(files) <= lm.maxFiles {
		return nil
	}

	modTimes := make(map[string]time.Time, len(files))
	for _, f := range files {
		if stat, err := os.Stat(f); err == nil {
			modTimes[f] = stat.ModTime()
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return modTimes[files[i]].Before(modTimes[files[j]])
	})

	for _, f := range files[:len(files)-lm.maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove file %s: %w", f, err)
		}
	}
	return nil
}

// GetLogStats returns statistics about log files
func (lm *LogManager) GetLogStats() (*LogStats, error) {
	files, err := lm.glob("*")
	if err != nil {
		return nil, err
	}

	stats := &LogStats{TotalFiles: len(files)}
	for _, file := range files {
		stat, err := os.Stat(file)
		if err != nil {
			continue
		}
		stats.TotalSize += stat.Size()
		if stats.OldestFile.IsZero() || stat.ModTime().Before(stats.OldestFile) {
			stats.OldestFile = stat.ModTime()
		}
		if stat.ModTime().After(stats.NewestFile) {
			stats.NewestFile = stat.ModTime()
		}
		if strings.HasSuffix(file, ".gz") {
			stats.CompressedFiles++
		} else {
			stats.UncompressedFiles++
		}
	}
	return stats, nil
}

// LogStats holds statistics about log files
type LogStats struct {
	TotalFiles        int       `json:"total_files"`
	TotalSize         int64     `json:"total_size"`
	CompressedFiles   int       `json:"compressed_files"`
	UncompressedFiles int       `json:"uncompressed_files"`
	OldestFile        time.Time `json:"oldest_file"`
	NewestFile        time.Time `json:"newest_file"`
}

// LogAnalyzer counts events in uncompressed log files
type LogAnalyzer struct {
	logDir string
}

func NewLogAnalyzer(logDir string) *LogAnalyzer {
	return &LogAnalyzer{logDir: logDir}
}

// AnalyzeLogs scans every log file in the directory
func (la *LogAnalyzer) AnalyzeLogs() (*LogAnalysis, error) {
	files, err := filepath.Glob(filepath.Join(la.logDir, FilePrefix+"_*.log"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob log files: %w", err)
	}

	analysis := &LogAnalysis{LogFiles: len(files)}
	for _, file := range files {
		if err := la.analyzeFile(file, analysis); err != nil {
			return nil, fmt.Errorf("failed to analyze file %s: %w", file, err)
		}
	}
	return analysis, nil
}

func (la *LogAnalyzer) analyzeFile(path string, analysis *LogAnalysis) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		analysis.analyzeLine(scanner.Text())
	}
	return scanner.Err()
}

func (a *LogAnalysis) analyzeLine(line string) {
	a.TotalLines++

	switch {
	case strings.Contains(line, "ERROR"), strings.Contains(line, `"level":"error"`):
		a.ErrorCount++
	case strings.Contains(line, "WARN"), strings.Contains(line, `"level":"warning"`):
		a.WarningCount++
	}

	switch {
	case strings.Contains(line, "Query failed"):
		a.QueryFailures++
	case strings.Contains(line, "Query completed"):
		a.QueryCount++
	case strings.Contains(line, "adb command"):
		a.CommandCount++
	case strings.Contains(line, "State changed"):
		a.TransitionCount++
	case strings.Contains(line, "Snapshot written"):
		a.SnapshotCount++
	}
}

// LogAnalysis holds the results of log analysis
type LogAnalysis struct {
	LogFiles        int   `json:"log_files"`
	TotalLines      int64 `json:"total_lines"`
	WarningCount    int64 `json:"warning_count"`
	ErrorCount      int64 `json:"error_count"`
	QueryCount      int64 `json:"query_count"`
	QueryFailures   int64 `json:"query_failures"`
	CommandCount    int64 `json:"command_count"`
	TransitionCount int64 `json:"transition_count"`
	SnapshotCount   int64 `json:"snapshot_count"`
}

// GetLogSummary returns a printable summary
func (a *LogAnalysis) GetLogSummary() string {
	return fmt.Sprintf(
		"Log Analysis Summary:\n"+
			"  Files: %d\n"+
			"  Total Lines: %d\n"+
			"  Warnings: %d\n"+
			"  Errors: %d\n"+
			"  Queries: %d (%d failed)\n"+
			"  adb Commands: %d\n"+
			"  State Changes: %d\n"+
			"  Snapshots: %d",
		a.LogFiles, a.TotalLines, a.WarningCount, a.ErrorCount,
		a.QueryCount+a.QueryFailures, a.QueryFailures, a.CommandCount,
		a.TransitionCount, a.SnapshotCount,
	)
}
