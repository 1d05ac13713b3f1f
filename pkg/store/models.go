/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: models.go
Description: Database models for droidquery history: query results, watcher state samples and
errors swallowed by the lenient facade or raised while polling.
*/

package store

import (
	"time"

	"gorm.io/gorm"
)

// QueryRecord is one executed query
type QueryRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	SessionID  string         `gorm:"not null;index" json:"session_id"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp"`
	Device     string         `gorm:"index" json:"device"`
	Op         string         `gorm:"not null;index" json:"op"`
	Package    string         `gorm:"index" json:"package"`
	Result     string         `json:"result"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// StateSample is one watcher poll of a package
type StateSample struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SessionID    string         `gorm:"not null;index" json:"session_id"`
	Timestamp    time.Time      `gorm:"not null;index" json:"timestamp"`
	Device       string         `gorm:"index" json:"device"`
	Package      string         `gorm:"not null;index" json:"package"`
	InBackground bool           `gorm:"not null;default:false" json:"in_background"`
	Cached       bool           `gorm:"not null;default:false" json:"cached"`
	Running      bool           `gorm:"not null;default:false" json:"running"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// State names the sample for display
func (s StateSample) State() string {
	switch {
	case !s.Running:
		return "stopped"
	case s.Cached:
		return "cached"
	case s.InBackground:
		return "background"
	default:
		return "foreground"
	}
}

// ErrorLog is an error that did not reach a caller
type ErrorLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SessionID string         `gorm:"index" json:"session_id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Op        string         `gorm:"index" json:"op"`
	ErrorMsg  string         `gorm:"not null" json:"error_msg"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// OpSummary aggregates QueryRecords per operation
type OpSummary struct {
	Op            string  `json:"op"`
	Calls         int64   `json:"calls"`
	Failures      int64   `json:"failures"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}
