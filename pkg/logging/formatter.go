/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: formatter.go
Description: Console formatters for droidquery. CustomFormatter prints timestamp, level,
caller, message and sorted fields with optional ANSI colors. QueryFormatter adds a short tag
for query, adb, state and snapshot messages.
*/

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CustomFormatter provides readable single-line output
type CustomFormatter struct {
	Timestamp bool
	Caller    bool
	Colors    bool
}

// Format formats a log entry
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return f.format(entry, ""), nil
}

func (f *CustomFormatter) format(entry *logrus.Entry, tag string) []byte {
	var output strings.Builder

	if f.Timestamp {
		f.write(&output, 36, entry.Time.Format("2006-01-02 15:04:05.000"))
	}
	f.write(&output, f.getLevelColor(entry.Level), strings.ToUpper(entry.Level.String()))
	if tag != "" {
		f.write(&output, 35, "["+tag+"]")
	}
	if f.Caller && entry.HasCaller() {
		f.write(&output, 33, fmt.Sprintf("[%s:%d]", entry.Caller.File, entry.Caller.Line))
	}

	output.WriteString(entry.Message)
	if len(entry.Data) > 0 {
		output.WriteString(" ")
		output.WriteString(f.formatFields(entry.Data))
	}
	output.WriteString("\n")
	return []byte(output.String())
}

func (f *CustomFormatter) write(b *strings.Builder, color int, s string) {
	if f.Colors {
		fmt.Fprintf(b, "\033[%dm%s\033[0m ", color, s)
		return
	}
	b.WriteString(s)
	b.WriteString(" ")
}

// getLevelColor returns the ANSI color code for a log level
func (f *CustomFormatter) getLevelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return 37
	case logrus.InfoLevel:
		return 32
	case logrus.WarnLevel:
		return 33
	case logrus.ErrorLevel:
		return 31
	default:
		return 35
	}
}

// formatFields renders fields in key order
func (f *CustomFormatter) formatFields(fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := f.formatValue(fields[key])
		if f.Colors {
			parts = append(parts, fmt.Sprintf("\033[34m%s\033[0m=\033[32m%s\033[0m", key, value))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", key, value))
		}
	}
	return strings.Join(parts, " ")
}

func (f *CustomFormatter) formatValue(value interface{}) string {
	switch v := value.(type) {
	case time.Duration:
		return v.Round(time.Microsecond).String()
	case time.Time:
		return v.Format("15:04:05.000")
	case error:
		return fmt.Sprintf("%q", v.Error())
	case string:
		if len(v) > 80 {
			return v[:80] + "..."
		}
		if strings.ContainsAny(v, " \t") {
			return fmt.Sprintf("%q", v)
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// QueryFormatter tags droidquery events
type QueryFormatter struct {
	CustomFormatter
}

// Format formats a log entry with its event tag
func (f *QueryFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return f.format(entry, EventTag(entry)), nil
}

// EventTag classifies an entry by the fields it carries
func EventTag(entry *logrus.Entry) string {
	switch {
	case hasField(entry, "op"):
		return "QUERY"
	case hasField(entry, "command"):
		return "ADB"
	case hasField(entry, "from") && hasField(entry, "to"):
		return "STATE"
	case hasField(entry, "snapshot_id"):
		return "SNAPSHOT"
	default:
		return ""
	}
}

func hasField(entry *logrus.Entry, key string) bool {
	_, ok := entry.Data[key]
	return ok
}
