/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: watcher.go
Description: Watcher polls the foreground/background state of one app at a fixed interval.
Every poll becomes a StateSample, state changes are reported as transitions, and when the
app's process disappears the crash buffer is checked for a matching crash. Poll failures are
stored and logged, and polling continues.
*/

package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/kleascm/droidquery/pkg/store"
	"github.com/sirupsen/logrus"
)

// SampleStore persists watcher output
type SampleStore interface {
	RecordSample(sample *store.StateSample) error
	CreateErrorLog(op string, err error) error
}

// CrashSource returns recent crashes of a package
type CrashSource func(ctx context.Context, packageName string) ([]mobile.CrashEntry, error)

// Transition is a change of observed state
type Transition struct {
	Package string    `json:"package"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

// WatcherConfig tunes the polling loop
type WatcherConfig struct {
	Interval    time.Duration `json:"interval"`
	HistorySize int           `json:"history_size"`
}

// Watcher samples an app's state until stopped
type Watcher struct {
	config  WatcherConfig
	query   *appinfo.Query
	caller  *appinfo.Caller
	store   SampleStore
	crashes CrashSource
	logger  logrus.FieldLogger

	// OnTransition is called from the polling goroutine for every state change
	OnTransition func(Transition)

	mu        sync.RWMutex
	running   bool
	stopChan  chan struct{}
	stopOnce  sync.Once
	startedAt time.Time
	last      string
	history   []store.StateSample
	seen      map[string]bool
}

// NewWatcher watches caller's package. sampleStore and crashes may be nil.
func NewWatcher(config WatcherConfig, query *appinfo.Query, caller *appinfo.Caller, sampleStore SampleStore, crashes CrashSource, logger logrus.FieldLogger) *Watcher {
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}
	if config.HistorySize <= 0 {
		config.HistorySize = 256
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Watcher{
		config:    config,
		query:     query,
		caller:    caller,
		store:     sampleStore,
		crashes:   crashes,
		logger:    logger,
		stopChan:  make(chan struct{}),
		startedAt: time.Now(),
		seen:      make(map[string]bool),
	}
}

// Start polls until ctx is done or Stop is called. It returns ctx.Err() on cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	if w.caller == nil {
		w.mu.Unlock()
		return appinfo.ErrNoCaller
	}
	w.running = true
	w.startedAt = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.logger.WithFields(logrus.Fields{
		"package":  w.caller.PackageName,
		"interval": w.config.Interval,
	}).Info("Watching app state")

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopChan:
			return nil
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Poll takes one sample. A sample is recorded only when every query succeeded.
func (w *Watcher) Poll(ctx context.Context) (*store.StateSample, error) {
	sample, err := w.sample(ctx)
	if err != nil {
		w.storeError("poll", err)
		return nil, err
	}

	if w.store != nil {
		if err := w.store.RecordSample(sample); err != nil {
			w.logger.WithError(err).Warn("Could not store sample")
		}
	}

	w.mu.Lock()
	w.history = append(w.history, *sample)
	if len(w.history) > w.config.HistorySize {
		w.history = w.history[len(w.history)-w.config.HistorySize:]
	}
	from := w.last
	w.last = sample.State()
	w.mu.Unlock()

	if from != sample.State() {
		w.transition(ctx, from, sample)
	}
	return sample, nil
}

func (w *Watcher) sample(ctx context.Context) (*store.StateSample, error) {
	processes, err := w.query.Registry().RunningProcesses(ctx)
	if err != nil {
		return nil, err
	}
	running := false
	for _, p := range processes {
		if p.Name == w.caller.PackageName {
			running = true
			break
		}
	}

	inBackground, err := w.query.IsApplicationInBackground(ctx, w.caller)
	if err != nil {
		return nil, err
	}
	cached, err := w.query.IsBackground(ctx, w.caller)
	if err != nil {
		return nil, err
	}

	return &store.StateSample{
		Timestamp:    time.Now(),
		Package:      w.caller.PackageName,
		InBackground: inBackground,
		Cached:       cached,
		Running:      running,
	}, nil
}

func (w *Watcher) transition(ctx context.Context, from string, sample *store.StateSample) {
	t := Transition{
		Package: sample.Package,
		From:    from,
		To:      sample.State(),
		At:      sample.Timestamp,
	}
	if w.OnTransition != nil {
		w.OnTransition(t)
	} else {
		w.logger.WithFields(logrus.Fields{
			"package": t.Package,
			"from":    t.From,
			"to":      t.To,
		}).Info("State changed")
	}

	if from != "" && t.To == "stopped" {
		w.checkCrashes(ctx)
	}
}

// checkCrashes stores crashes of the package that happened while watching
func (w *Watcher) checkCrashes(ctx context.Context) {
	if w.crashes == nil {
		return
	}
	entries, err := w.crashes(ctx, w.caller.PackageName)
	if err != nil {
		w.storeError("crashes", err)
		return
	}

	w.mu.RLock()
	since := w.startedAt.Add(-w.config.Interval)
	w.mu.RUnlock()

	for _, e := range entries {
		key := e.Timestamp.String() + e.Message
		if e.Timestamp.Before(since) || w.seen[key] {
			continue
		}
		w.seen[key] = true
		w.logger.WithFields(logrus.Fields{
			"package": e.Package,
			"type":    e.Type,
		}).Warn(e.Message)
		w.storeError("crash", fmt.Errorf("%s in %s: %s", e.Type, e.Package, e.Message))
	}
}

func (w *Watcher) storeError(op string, err error) {
	w.logger.WithError(err).WithField("op", op).Warn("Watcher error")
	if w.store == nil {
		return
	}
	if dbErr := w.store.CreateErrorLog(op, err); dbErr != nil {
		w.logger.WithError(dbErr).Warn("Failed to store error in database")
	}
}

// History returns the retained samples, oldest first
func (w *Watcher) History() []store.StateSample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]store.StateSample, len(w.history))
	copy(out, w.history)
	return out
}

// State returns the last observed state, empty before the first successful poll
func (w *Watcher) State() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}
