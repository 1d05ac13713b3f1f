/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: watcher_test.go
Description: Tests for the app state watcher over an in-memory registry.
*/

package monitoring_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/kleascm/droidquery/pkg/monitoring"
	"github.com/kleascm/droidquery/pkg/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	samples []store.StateSample
	errors  map[string][]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{errors: make(map[string][]string)}
}

func (s *memoryStore) RecordSample(sample *store.StateSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, *sample)
	return nil
}

func (s *memoryStore) CreateErrorLog(op string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[op] = append(s.errors[op], err.Error())
	return nil
}

func newWatcher(reg *appinfo.MemoryRegistry, st *memoryStore, crashes monitoring.CrashSource) *monitoring.Watcher {
	logger, _ := test.NewNullLogger()
	q := appinfo.NewQuery(reg, logger)
	caller := &appinfo.Caller{PackageName: "com.app", PID: 5}
	return monitoring.NewWatcher(monitoring.WatcherConfig{Interval: 10 * time.Millisecond, HistorySize: 3}, q, caller, st, crashes, logger)
}

func TestWatcherTransitions(t *testing.T) {
	ctx := context.Background()
	reg := appinfo.NewMemoryRegistry()
	reg.Processes = []appinfo.ProcessRecord{{PID: 5, Name: "com.app", Importance: appinfo.ImportanceForeground}}
	reg.Top = appinfo.ComponentName{Package: "com.app", Class: "com.app.Main"}

	st := newMemoryStore()
	crashCalls := 0
	crashes := func(ctx context.Context, pkg string) ([]mobile.CrashEntry, error) {
		crashCalls++
		return []mobile.CrashEntry{
			{Package: pkg, Type: mobile.CrashFatal, Timestamp: time.Now(), Message: "java.lang.RuntimeException: boom"},
			{Package: pkg, Type: mobile.CrashFatal, Timestamp: time.Now().Add(-time.Hour), Message: "old"},
		}, nil
	}
	w := newWatcher(reg, st, crashes)

	var transitions []monitoring.Transition
	w.OnTransition = func(tr monitoring.Transition) { transitions = append(transitions, tr) }

	_, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "foreground", w.State())

	// Same state produces no transition
	_, err = w.Poll(ctx)
	require.NoError(t, err)

	reg.Top = appinfo.ComponentName{Package: "com.other"}
	_, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "background", w.State())

	reg.Processes[0].Importance = appinfo.ImportanceBackground
	_, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cached", w.State())

	reg.Processes = nil
	sample, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, sample.Running)

	require.Len(t, transitions, 4)
	assert.Equal(t, "", transitions[0].From)
	assert.Equal(t, "cached", transitions[3].From)
	assert.Equal(t, "stopped", transitions[3].To)

	assert.Equal(t, 1, crashCalls)
	require.Len(t, st.errors["crash"], 1, "crashes from before the watch are ignored")
	assert.Contains(t, st.errors["crash"][0], "boom")

	assert.Len(t, st.samples, 5)
	assert.Len(t, w.History(), 3, "history is bounded")
}

func TestWatcherStoresPollErrors(t *testing.T) {
	reg := appinfo.NewMemoryRegistry()
	reg.Errors["RunningProcesses"] = errors.New("device offline")
	st := newMemoryStore()
	w := newWatcher(reg, st, nil)

	_, err := w.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"device offline"}, st.errors["poll"])
	assert.Empty(t, st.samples)
	assert.Equal(t, "", w.State())
}

func TestWatcherStartStop(t *testing.T) {
	reg := appinfo.NewMemoryRegistry()
	reg.Processes = []appinfo.ProcessRecord{{PID: 5, Name: "com.app"}}
	w := newWatcher(reg, newMemoryStore(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := w.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, w.IsRunning())
	assert.NotEmpty(t, w.History())

	stopped := newWatcher(reg, newMemoryStore(), nil)
	stopped.Stop()
	assert.NoError(t, stopped.Start(context.Background()))
	assert.NotEmpty(t, stopped.History(), "the initial poll runs before the stop is seen")
}

func TestWatcherNeedsCaller(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := appinfo.NewQuery(appinfo.NewMemoryRegistry(), logger)
	w := monitoring.NewWatcher(monitoring.WatcherConfig{}, q, nil, nil, nil, logger)
	assert.ErrorIs(t, w.Start(context.Background()), appinfo.ErrNoCaller)
}
