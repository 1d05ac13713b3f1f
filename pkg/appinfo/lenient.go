/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lenient.go
Description: Safe-default facade over Query. Failures collapse to false, "" or nil exactly as
the classic Android helpers behave, but each swallowed error is logged and handed to an
ErrorSink instead of vanishing.
*/

package appinfo

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ErrorSink receives errors swallowed by the lenient facade
type ErrorSink interface {
	RecordError(op string, err error)
}

// ErrorSinkFunc adapts a function to ErrorSink
type ErrorSinkFunc func(op string, err error)

// RecordError calls f
func (f ErrorSinkFunc) RecordError(op string, err error) {
	f(op, err)
}

// Lenient exposes the query operations with default values in place of errors
type Lenient struct {
	query  *Query
	sink   ErrorSink
	logger logrus.FieldLogger
}

// NewLenient wraps query. sink may be nil.
func NewLenient(query *Query, sink ErrorSink) *Lenient {
	return &Lenient{
		query:  query,
		sink:   sink,
		logger: query.logger,
	}
}

// Query returns the strict query underneath
func (l *Lenient) Query() *Query {
	return l.query
}

func (l *Lenient) swallow(op string, err error) {
	if err == nil {
		return
	}
	l.logger.WithFields(logrus.Fields{
		"op":    op,
		"error": err.Error(),
	}).Warn("Query failed, using default")
	if l.sink != nil {
		l.sink.RecordError(op, err)
	}
}

// IsCurrentProcessNamed returns false on any failure, including a nil caller
func (l *Lenient) IsCurrentProcessNamed(ctx context.Context, caller *Caller, processName string) bool {
	ok, err := l.query.IsCurrentProcessNamed(ctx, caller, processName)
	l.swallow("IsCurrentProcessNamed", err)
	return ok
}

// IsApplicationInBackground returns false on any failure
func (l *Lenient) IsApplicationInBackground(ctx context.Context, caller *Caller) bool {
	ok, err := l.query.IsApplicationInBackground(ctx, caller)
	l.swallow("IsApplicationInBackground", err)
	return ok
}

// IsBackground returns false on any failure
func (l *Lenient) IsBackground(ctx context.Context, caller *Caller) bool {
	ok, err := l.query.IsBackground(ctx, caller)
	l.swallow("IsBackground", err)
	return ok
}

// MetaData returns "" for unknown kinds, missing keys and failed lookups
func (l *Lenient) MetaData(ctx context.Context, caller *Caller, kind ComponentKind, key string) string {
	value, err := l.query.MetaData(ctx, caller, kind, key)
	l.swallow("MetaData", err)
	return value
}

// PackageInfo returns nil on failure
func (l *Lenient) PackageInfo(ctx context.Context, caller *Caller, packageName string) *PackageRecord {
	record, err := l.query.PackageInfo(ctx, caller, packageName)
	l.swallow("PackageInfo", err)
	return record
}

// AppName returns "" when the package descriptor is unavailable
func (l *Lenient) AppName(ctx context.Context, caller *Caller) string {
	name, err := l.query.AppName(ctx, caller)
	l.swallow("AppName", err)
	return name
}

// PackageName returns "" when the package descriptor is unavailable
func (l *Lenient) PackageName(ctx context.Context, caller *Caller) string {
	name, err := l.query.PackageName(ctx, caller)
	l.swallow("PackageName", err)
	return name
}

// IsStorageMounted returns false on failure
func (l *Lenient) IsStorageMounted(ctx context.Context) bool {
	ok, err := l.query.IsStorageMounted(ctx)
	l.swallow("IsStorageMounted", err)
	return ok
}

// Launcher returns nil when nothing resolves
func (l *Lenient) Launcher(ctx context.Context, caller *Caller, packageName string) *ResolveInfo {
	info, err := l.query.Launcher(ctx, caller, packageName)
	l.swallow("Launcher", err)
	return info
}

// OpenApp does nothing when the launcher cannot be resolved
func (l *Lenient) OpenApp(ctx context.Context, caller *Caller, packageName string) {
	l.swallow("OpenApp", l.query.OpenApp(ctx, caller, packageName))
}

// HasBrowser returns false on failure
func (l *Lenient) HasBrowser(ctx context.Context) bool {
	ok, err := l.query.HasBrowser(ctx)
	l.swallow("HasBrowser", err)
	return ok
}

// MoveTaskToFront ignores failures
func (l *Lenient) MoveTaskToFront(ctx context.Context, caller *Caller) {
	l.swallow("MoveTaskToFront", l.query.MoveTaskToFront(ctx, caller))
}

// IsDebuggable returns false when the application descriptor is unavailable
func (l *Lenient) IsDebuggable(ctx context.Context, caller *Caller) bool {
	ok, err := l.query.IsDebuggable(ctx, caller)
	l.swallow("IsDebuggable", err)
	return ok
}

// InstalledPackages returns nil on failure
func (l *Lenient) InstalledPackages(ctx context.Context) []string {
	packages, err := l.query.InstalledPackages(ctx)
	l.swallow("InstalledPackages", err)
	return packages
}
