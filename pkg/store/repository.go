/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: repository.go
Description: Repository stores and reads droidquery history. Each repository carries a session
id so rows written by one CLI run or watch loop can be grouped. It also serves as the error
sink of the lenient facade.
*/

package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository handles all database operations for one session
type Repository struct {
	db        *DB
	sessionID string
	device    string
	logger    logrus.FieldLogger
}

var _ appinfo.ErrorSink = (*Repository)(nil)

// NewRepository starts a new session on db for device
func NewRepository(db *DB, device string, logger logrus.FieldLogger) *Repository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Repository{
		db:        db,
		sessionID: uuid.NewString(),
		device:    device,
		logger:    logger,
	}
}

func (r *Repository) SessionID() string {
	return r.sessionID
}

// RecordQuery inserts the outcome of one query
func (r *Repository) RecordQuery(op, packageName, result string, queryErr error, duration time.Duration) error {
	record := &QueryRecord{
		SessionID:  r.sessionID,
		Timestamp:  time.Now(),
		Device:     r.device,
		Op:         op,
		Package:    packageName,
		Result:     result,
		DurationMs: duration.Milliseconds(),
	}
	if queryErr != nil {
		record.Error = queryErr.Error()
	}
	if err := r.db.Create(record).Error; err != nil {
		return errors.Wrap(err, "failed to insert query record")
	}
	return nil
}

// RecordSample inserts a watcher sample, filling session and device
func (r *Repository) RecordSample(sample *StateSample) error {
	sample.SessionID = r.sessionID
	sample.Device = r.device
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	if err := r.db.Create(sample).Error; err != nil {
		return errors.Wrap(err, "failed to insert state sample")
	}
	return nil
}

// CreateErrorLog inserts an error row
func (r *Repository) CreateErrorLog(op string, err error) error {
	row := &ErrorLog{
		SessionID: r.sessionID,
		Timestamp: time.Now(),
		Op:        op,
		ErrorMsg:  err.Error(),
	}
	if result := r.db.Create(row); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// RecordError implements appinfo.ErrorSink. Storage failures are logged only.
func (r *Repository) RecordError(op string, err error) {
	if err == nil {
		return
	}
	if storeErr := r.CreateErrorLog(op, err); storeErr != nil {
		r.logger.WithError(storeErr).WithField("op", op).Warn("Could not persist error")
	}
}

// QueriesSince lists query records since a time, newest first, up to limit rows (0 = all)
func (r *Repository) QueriesSince(since time.Time, limit int) ([]QueryRecord, error) {
	var records []QueryRecord
	tx := r.db.Where("timestamp >= ?", since).Order("timestamp DESC, id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query records")
	}
	return records, nil
}

// SamplesFor lists the samples of a package in time order
func (r *Repository) SamplesFor(packageName string, since time.Time) ([]StateSample, error) {
	var samples []StateSample
	err := r.db.Where("package = ? AND timestamp >= ?", packageName, since).
		Order("timestamp ASC, id ASC").
		Find(&samples).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query state samples")
	}
	return samples, nil
}

// ErrorsSince lists error rows since a time, newest first
func (r *Repository) ErrorsSince(since time.Time) ([]ErrorLog, error) {
	var rows []ErrorLog
	if err := r.db.Where("timestamp >= ?", since).Order("timestamp DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query error logs")
	}
	return rows, nil
}

// OpSummarySince aggregates calls, failures and mean duration per operation
func (r *Repository) OpSummarySince(since time.Time) ([]OpSummary, error) {
	var summaries []OpSummary
	result := r.db.Model(&QueryRecord{}).
		Select("op, COUNT(*) as calls, SUM(CASE WHEN error <> '' THEN 1 ELSE 0 END) as failures, AVG(duration_ms) as avg_duration_ms").
		Where("timestamp >= ?", since).
		Group("op").
		Order("calls DESC, op ASC").
		Scan(&summaries)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to summarize queries")
	}
	return summaries, nil
}

// LatestSample returns the newest sample of a package, nil when none exists
func (r *Repository) LatestSample(packageName string) (*StateSample, error) {
	var sample StateSample
	result := r.db.Where("package = ?", packageName).Order("timestamp DESC, id DESC").First(&sample)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest sample")
	}
	return &sample, nil
}

// DeleteBefore soft deletes history older than before and returns the rows affected
func (r *Repository) DeleteBefore(before time.Time) (int64, error) {
	var total int64
	for _, model := range []interface{}{&QueryRecord{}, &StateSample{}, &ErrorLog{}} {
		result := r.db.Where("timestamp < ?", before).Delete(model)
		if result.Error != nil {
			return total, errors.Wrap(result.Error, "failed to delete old history")
		}
		total += result.RowsAffected
	}
	return total, nil
}
