/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: collector.go
Description: Collector gathers a Snapshot through the lenient query facade, so a failing query
leaves its field at the default and is listed in Snapshot.Errors instead of aborting collection.
*/

package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// DeviceInfoSource reads device properties
type DeviceInfoSource interface {
	GetDeviceInfo(ctx context.Context) (*mobile.DeviceInfo, error)
}

// CollectorConfig tunes collection
type CollectorConfig struct {
	// Labels resolves the label of every installed package, one package query each
	Labels      bool `json:"labels"`
	Concurrency int  `json:"concurrency"`
}

// Collector builds snapshots of one device
type Collector struct {
	query  *appinfo.Query
	device DeviceInfoSource
	sink   appinfo.ErrorSink
	config CollectorConfig
	logger logrus.FieldLogger
}

// NewCollector creates a collector. device and sink may be nil.
func NewCollector(query *appinfo.Query, device DeviceInfoSource, sink appinfo.ErrorSink, config CollectorConfig, logger logrus.FieldLogger) *Collector {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{
		query:  query,
		device: device,
		sink:   sink,
		config: config,
		logger: logger,
	}
}

// snapshotSink adds errors to the snapshot and passes them on
type snapshotSink struct {
	mu       sync.Mutex
	snapshot *Snapshot
	next     appinfo.ErrorSink
}

func (s *snapshotSink) RecordError(op string, err error) {
	s.mu.Lock()
	s.snapshot.Errors = append(s.snapshot.Errors, SnapshotError{Op: op, Error: err.Error()})
	s.mu.Unlock()
	if s.next != nil {
		s.next.RecordError(op, err)
	}
}

// Collect captures the device state. caller may be nil, in which case only device-wide fields are filled.
func (c *Collector) Collect(ctx context.Context, caller *appinfo.Caller) *Snapshot {
	start := time.Now()
	snapshot := &Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: start,
		Caller:    caller,
	}
	sink := &snapshotSink{snapshot: snapshot, next: c.sink}
	lenient := appinfo.NewLenient(c.query, sink)
	registry := c.query.Registry()

	if c.device != nil {
		info, err := c.device.GetDeviceInfo(ctx)
		if err != nil {
			sink.RecordError("DeviceInfo", err)
		}
		snapshot.Device = info
	}

	if caller != nil {
		snapshot.Package = lenient.PackageInfo(ctx, caller, "")
		snapshot.AppName = lenient.AppName(ctx, caller)
		snapshot.Debuggable = lenient.IsDebuggable(ctx, caller)
		snapshot.InBackground = lenient.IsApplicationInBackground(ctx, caller)
		snapshot.Cached = lenient.IsBackground(ctx, caller)
		snapshot.Launcher = lenient.Launcher(ctx, caller, "")
	}

	top, err := registry.TopActivity(ctx)
	if err != nil {
		sink.RecordError("TopActivity", err)
	}
	snapshot.Foreground = top

	processes, err := registry.RunningProcesses(ctx)
	if err != nil {
		sink.RecordError("RunningProcesses", err)
	}
	snapshot.Processes = processes

	snapshot.StorageMounted = lenient.IsStorageMounted(ctx)
	snapshot.HasBrowser = lenient.HasBrowser(ctx)
	if snapshot.HasBrowser {
		browsers, err := c.query.Browsers(ctx)
		if err != nil {
			sink.RecordError("Browsers", err)
		}
		snapshot.Browsers = browsers
	}

	snapshot.Packages = c.packages(ctx, lenient)

	c.logger.WithFields(logrus.Fields{
		"snapshot_id": snapshot.ID,
		"packages":    len(snapshot.Packages),
		"errors":      len(snapshot.Errors),
		"duration":    time.Since(start),
	}).Debug("Snapshot collected")
	return snapshot
}

func (c *Collector) packages(ctx context.Context, lenient *appinfo.Lenient) []PackageEntry {
	names := lenient.InstalledPackages(ctx)
	entries := make([]PackageEntry, len(names))
	for i, name := range names {
		entries[i].Name = name
	}
	if !c.config.Labels {
		return entries
	}

	p := pool.New().WithMaxGoroutines(c.config.Concurrency)
	for i := range entries {
		entry := &entries[i]
		p.Go(func() {
			if record := lenient.PackageInfo(ctx, nil, entry.Name); record != nil {
				entry.Label = record.ApplicationInfo.Label
			}
		})
	}
	p.Wait()
	return entries
}
