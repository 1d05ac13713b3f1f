/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: crash_log.go
Description: Reads the logcat crash buffer and groups FATAL EXCEPTION and ANR reports by
package, so a watcher can explain why a process disappeared.
*/

package mobile

import (
	"bufio"
	"context"
	"regexp"
	"strings"
	"time"
)

// Crash types
const (
	CrashFatal = "crash"
	CrashANR   = "anr"
)

// CrashEntry is one crash report found in logcat
type CrashEntry struct {
	Package    string    `json:"package"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	StackTrace []string  `json:"stack_trace"`
}

var (
	crashStartRE = regexp.MustCompile(`FATAL EXCEPTION|ANR in `)
	crashTimeRE  = regexp.MustCompile(`^(\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`)
	// threadtime prefix: date time pid tid level tag:
	logcatPrefixRE = regexp.MustCompile(`^\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}\s+\d+\s+\d+\s+\w\s+[^:]*:\s?`)
)

// RecentCrashes dumps the crash buffer and returns the reports that mention packageName
func RecentCrashes(ctx context.Context, shell Shell, packageName string) ([]CrashEntry, error) {
	output, err := shell.Shell(ctx, "logcat", "-d", "-v", "threadtime", "-b", "crash")
	if err != nil {
		return nil, err
	}
	return ParseCrashLog(output, packageName, time.Now().Year()), nil
}

// ParseCrashLog groups threadtime logcat lines into crash reports. Logcat omits the year,
// so timestamps are placed in year.
func ParseCrashLog(output, packageName string, year int) []CrashEntry {
	var entries []CrashEntry
	var current *CrashEntry
	flush := func() {
		if current != nil && (packageName == "" || current.Package == packageName) {
			entries = append(entries, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		body := logcatPrefixRE.ReplaceAllString(line, "")

		if crashStartRE.MatchString(body) {
			flush()
			current = &CrashEntry{Type: CrashFatal}
			if strings.Contains(body, "ANR in ") {
				current.Type = CrashANR
				current.Package = firstField(body[strings.Index(body, "ANR in ")+len("ANR in "):])
				current.Message = strings.TrimSpace(body)
			}
			if m := crashTimeRE.FindStringSubmatch(line); m != nil {
				if ts, err := time.ParseInLocation("01-02 15:04:05.000", m[1], time.Local); err == nil {
					current.Timestamp = ts.AddDate(year-ts.Year(), 0, 0)
				}
			}
			continue
		}
		if current == nil {
			continue
		}

		trimmed := strings.TrimSpace(body)
		switch {
		case strings.HasPrefix(trimmed, "Process: "):
			// Process: com.app, PID: 12345
			current.Package = strings.TrimSuffix(firstField(strings.TrimPrefix(trimmed, "Process: ")), ",")
		case strings.HasPrefix(trimmed, "at "), strings.HasPrefix(trimmed, "Caused by: "):
			current.StackTrace = append(current.StackTrace, trimmed)
		case current.Message == "" && trimmed != "":
			current.Message = trimmed
		}
	}
	flush()
	return entries
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
