/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: query.go
Description: AppInfoQuery operations. Each call re-queries the registry, holds no state of its
own and reports failures as *QueryError values. Process naming, foreground/background
heuristics, manifest meta-data, package descriptors, storage state, launcher resolution,
app launching, browser presence, task reordering and the debuggable flag all live here.
*/

package appinfo

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// BrowserProbeURL is the data URI used to detect a web browser
const BrowserProbeURL = "http://"

// Query answers questions about processes and packages on one device
type Query struct {
	registry Registry
	logger   logrus.FieldLogger
}

// NewQuery creates a query over registry. A nil logger falls back to the logrus standard logger.
func NewQuery(registry Registry, logger logrus.FieldLogger) *Query {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Query{
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the underlying registry
func (q *Query) Registry() Registry {
	return q.registry
}

// IsCurrentProcessNamed reports whether the running process with the caller's PID is named processName.
// Empty names compare equal, so an unnamed record matches "".
func (q *Query) IsCurrentProcessNamed(ctx context.Context, caller *Caller, processName string) (bool, error) {
	const op = "IsCurrentProcessNamed"
	if caller == nil {
		return false, opError(op, ErrNoCaller)
	}

	processes, err := q.registry.RunningProcesses(ctx)
	if err != nil {
		return false, opError(op, err)
	}
	for _, p := range processes {
		if p.PID == caller.PID && p.Name == processName {
			return true, nil
		}
	}
	return false, nil
}

// IsApplicationInBackground reports whether the top activity of the foreground task belongs to
// another package. With no resumed task it reports false.
func (q *Query) IsApplicationInBackground(ctx context.Context, caller *Caller) (bool, error) {
	const op = "IsApplicationInBackground"
	if caller == nil {
		return false, opError(op, ErrNoCaller)
	}

	top, err := q.registry.TopActivity(ctx)
	if err != nil {
		return false, opError(op, err)
	}
	if top.IsZero() {
		return false, nil
	}

	q.logger.WithFields(logrus.Fields{
		"top_package": top.Package,
		"package":     caller.PackageName,
	}).Debug("Resolved top activity")

	return top.Package != caller.PackageName, nil
}

// IsBackground reports whether a process named after the caller's package carries the background importance
func (q *Query) IsBackground(ctx context.Context, caller *Caller) (bool, error) {
	const op = "IsBackground"
	if caller == nil {
		return false, opError(op, ErrNoCaller)
	}

	processes, err := q.registry.RunningProcesses(ctx)
	if err != nil {
		return false, opError(op, err)
	}
	for _, p := range processes {
		if p.Name == caller.PackageName && p.Importance == ImportanceBackground {
			return true, nil
		}
	}
	return false, nil
}

// MetaData reads key from the meta-data of the given component kind.
// Application reads the caller's application, Service and Receiver read caller.Component,
// Activity reads caller.Component only while the activity is neither finishing nor destroyed.
func (q *Query) MetaData(ctx context.Context, caller *Caller, kind ComponentKind, key string) (string, error) {
	const op = "MetaData"
	if caller == nil {
		return "", opError(op, ErrNoCaller)
	}

	var component ComponentName
	switch kind {
	case KindApplication:
		component = ComponentName{Package: caller.PackageName}
	case KindService, KindReceiver:
		component = caller.Component
	case KindActivity:
		if caller.Finishing || caller.Destroyed {
			return "", opError(op, errors.Join(ErrNotFound, errors.New("activity is not active")))
		}
		component = caller.Component
	default:
		return "", opError(op, ErrUnknownComponentKind)
	}
	if kind != KindApplication && component.IsZero() {
		return "", opError(op, errors.Join(ErrNotFound, errors.New("caller has no "+kind.String()+" component")))
	}

	values, err := q.registry.ComponentMetaData(ctx, kind, component)
	if err != nil {
		return "", opError(op, err)
	}

	value := values[key]
	if value == "" {
		return "", opError(op, errors.Join(ErrNotFound, errors.New("meta-data "+key)))
	}
	return value, nil
}

// PackageInfo returns the descriptor of packageName, or of the caller's own package when empty
func (q *Query) PackageInfo(ctx context.Context, caller *Caller, packageName string) (*PackageRecord, error) {
	const op = "PackageInfo"
	if strings.TrimSpace(packageName) == "" {
		if caller == nil {
			return nil, opError(op, ErrNoCaller)
		}
		packageName = caller.PackageName
	}

	record, err := q.registry.Package(ctx, packageName)
	if err != nil {
		return nil, opError(op, err)
	}
	if record == nil {
		return nil, opError(op, ErrNotFound)
	}
	return record, nil
}

// OwnPackageInfo returns the descriptor of the caller's own package
func (q *Query) OwnPackageInfo(ctx context.Context, caller *Caller) (*PackageRecord, error) {
	return q.PackageInfo(ctx, caller, "")
}

// AppName returns the application label of the caller's package
func (q *Query) AppName(ctx context.Context, caller *Caller) (string, error) {
	const op = "AppName"
	record, err := q.OwnPackageInfo(ctx, caller)
	if err != nil {
		return "", opError(op, err)
	}
	if record.ApplicationInfo.Label == "" {
		return "", opError(op, errors.Join(ErrNotFound, errors.New("application label")))
	}
	return record.ApplicationInfo.Label, nil
}

// PackageName returns the package name of the caller's package descriptor
func (q *Query) PackageName(ctx context.Context, caller *Caller) (string, error) {
	const op = "PackageName"
	record, err := q.OwnPackageInfo(ctx, caller)
	if err != nil {
		return "", opError(op, err)
	}
	return record.PackageName, nil
}

// IsStorageMounted reports whether the primary external storage is mounted
func (q *Query) IsStorageMounted(ctx context.Context) (bool, error) {
	state, err := q.registry.ExternalStorageState(ctx)
	if err != nil {
		return false, opError("IsStorageMounted", err)
	}
	return state == StorageMounted, nil
}

// Launcher resolves the MAIN/LAUNCHER activity of packageName (the caller's package when empty).
// The first match wins; no match returns ErrNoLauncher.
func (q *Query) Launcher(ctx context.Context, caller *Caller, packageName string) (*ResolveInfo, error) {
	const op = "Launcher"
	record, err := q.PackageInfo(ctx, caller, packageName)
	if err != nil {
		return nil, opError(op, err)
	}

	intent := &Intent{Action: ActionMain, Package: record.PackageName}
	intent.AddCategory(CategoryLauncher)

	matches, err := q.registry.QueryActivities(ctx, intent)
	if err != nil {
		return nil, opError(op, err)
	}
	if len(matches) == 0 {
		return nil, opError(op, ErrNoLauncher)
	}

	first := matches[0]
	return &first, nil
}

// OpenApp launches packageName's launcher activity in a new task
func (q *Query) OpenApp(ctx context.Context, caller *Caller, packageName string) error {
	const op = "OpenApp"
	launcher, err := q.Launcher(ctx, caller, packageName)
	if err != nil {
		return opError(op, err)
	}

	intent := &Intent{
		Action:    ActionMain,
		Component: launcher.Activity,
		Flags:     FlagActivityNewTask,
	}
	intent.AddCategory(CategoryLauncher)

	q.logger.WithField("component", launcher.Activity.String()).Info("Opening app")
	if err := q.registry.StartActivity(ctx, intent); err != nil {
		return opError(op, err)
	}
	return nil
}

// HasBrowser reports whether any activity handles a browsable http:// VIEW intent
func (q *Query) HasBrowser(ctx context.Context) (bool, error) {
	matches, err := q.browsers(ctx)
	if err != nil {
		return false, opError("HasBrowser", err)
	}
	return len(matches) > 0, nil
}

// Browsers lists the activities HasBrowser counts
func (q *Query) Browsers(ctx context.Context) ([]ResolveInfo, error) {
	matches, err := q.browsers(ctx)
	if err != nil {
		return nil, opError("Browsers", err)
	}
	return matches, nil
}

func (q *Query) browsers(ctx context.Context) ([]ResolveInfo, error) {
	intent := &Intent{Action: ActionView, Data: BrowserProbeURL}
	intent.AddCategory(CategoryBrowsable)
	return q.registry.QueryActivities(ctx, intent)
}

// MoveTaskToFront brings the task of every process named after the caller's package to the front
func (q *Query) MoveTaskToFront(ctx context.Context, caller *Caller) error {
	const op = "MoveTaskToFront"
	if caller == nil {
		return opError(op, ErrNoCaller)
	}

	processes, err := q.registry.RunningProcesses(ctx)
	if err != nil {
		return opError(op, err)
	}

	var errs []error
	for _, p := range processes {
		if p.Name != caller.PackageName {
			continue
		}
		q.logger.WithField("pid", p.PID).Debug("Moving task to front")
		if err := q.registry.MoveTaskToFront(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return opError(op, errors.Join(errs...))
	}
	return nil
}

// IsDebuggable reports whether the caller's application has FLAG_DEBUGGABLE set
func (q *Query) IsDebuggable(ctx context.Context, caller *Caller) (bool, error) {
	record, err := q.OwnPackageInfo(ctx, caller)
	if err != nil {
		return false, opError("IsDebuggable", err)
	}
	return record.ApplicationInfo.Flags.Has(FlagDebuggable), nil
}

// InstalledPackages lists installed package names
func (q *Query) InstalledPackages(ctx context.Context) ([]string, error) {
	packages, err := q.registry.InstalledPackages(ctx)
	if err != nil {
		return nil, opError("InstalledPackages", err)
	}
	return packages, nil
}
