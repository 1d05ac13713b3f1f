/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: memory.go
Description: In-memory Registry. Holds a fixed device state (processes, top activity, packages,
intent filters, storage state) and records the actions requested of it. Used for offline
replays of captured snapshots and as the fake device in tests.
*/

package appinfo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// IntentFilter is the subset of an <intent-filter> that resolution matches on
type IntentFilter struct {
	Actions    []string `json:"actions"`
	Categories []string `json:"categories,omitempty"`
	Schemes    []string `json:"schemes,omitempty"`
}

// IntentHandler is an activity together with one of its filters
type IntentHandler struct {
	Activity ComponentName `json:"activity"`
	Filter   IntentFilter  `json:"filter"`
}

// Matches reports whether the handler accepts intent
func (h IntentHandler) Matches(intent *Intent) bool {
	if intent.Package != "" && intent.Package != h.Activity.Package {
		return false
	}
	if !intent.Component.IsZero() && intent.Component != h.Activity {
		return false
	}
	if intent.Action != "" && !contains(h.Filter.Actions, intent.Action) {
		return false
	}
	for _, c := range intent.Categories {
		if !contains(h.Filter.Categories, c) {
			return false
		}
	}
	if intent.Data != "" {
		scheme, _, ok := strings.Cut(intent.Data, ":")
		if !ok || !contains(h.Filter.Schemes, scheme) {
			return false
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// MemoryRegistry is a Registry backed by plain values
type MemoryRegistry struct {
	mu sync.Mutex

	Processes    []ProcessRecord
	Top          ComponentName
	Packages     map[string]*PackageRecord
	MetaData     map[string]map[string]string // keyed by kind + ":" + component
	Handlers     []IntentHandler
	StorageState string

	// Errors forces a registry method (by name) to fail
	Errors map[string]error

	Started []Intent
	Moved   []ProcessRecord
}

// NewMemoryRegistry creates an empty registry with mounted storage
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		Packages:     make(map[string]*PackageRecord),
		MetaData:     make(map[string]map[string]string),
		Errors:       make(map[string]error),
		StorageState: StorageMounted,
	}
}

// AddPackage registers record and its application meta-data
func (m *MemoryRegistry) AddPackage(record *PackageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Packages[record.PackageName] = record
	if len(record.ApplicationInfo.MetaData) > 0 {
		m.MetaData[metaDataKey(KindApplication, ComponentName{Package: record.PackageName})] = record.ApplicationInfo.MetaData
	}
}

// SetComponentMetaData sets the meta-data bundle of a component
func (m *MemoryRegistry) SetComponentMetaData(kind ComponentKind, component ComponentName, values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MetaData[metaDataKey(kind, component)] = values
}

func metaDataKey(kind ComponentKind, component ComponentName) string {
	if kind == KindApplication {
		return kind.String() + ":" + component.Package
	}
	return kind.String() + ":" + component.String()
}

func (m *MemoryRegistry) fail(method string) error {
	if err, ok := m.Errors[method]; ok {
		return err
	}
	return nil
}

// RunningProcesses returns a copy of Processes
func (m *MemoryRegistry) RunningProcesses(ctx context.Context) ([]ProcessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RunningProcesses"); err != nil {
		return nil, err
	}
	out := make([]ProcessRecord, len(m.Processes))
	copy(out, m.Processes)
	return out, nil
}

// TopActivity returns Top
func (m *MemoryRegistry) TopActivity(ctx context.Context) (ComponentName, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("TopActivity"); err != nil {
		return ComponentName{}, err
	}
	return m.Top, nil
}

// Package returns the registered package or ErrNotFound
func (m *MemoryRegistry) Package(ctx context.Context, packageName string) (*PackageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Package"); err != nil {
		return nil, err
	}
	record, ok := m.Packages[packageName]
	if !ok {
		return nil, fmt.Errorf("package %s: %w", packageName, ErrNotFound)
	}
	return record, nil
}

// ComponentMetaData returns the bundle of the component or ErrNotFound
func (m *MemoryRegistry) ComponentMetaData(ctx context.Context, kind ComponentKind, component ComponentName) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ComponentMetaData"); err != nil {
		return nil, err
	}
	values, ok := m.MetaData[metaDataKey(kind, component)]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, component, ErrNotFound)
	}
	return values, nil
}

// InstalledPackages returns the registered package names in order
func (m *MemoryRegistry) InstalledPackages(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InstalledPackages"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.Packages))
	for name := range m.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// QueryActivities returns the handlers matching intent in registration order
func (m *MemoryRegistry) QueryActivities(ctx context.Context, intent *Intent) ([]ResolveInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("QueryActivities"); err != nil {
		return nil, err
	}
	var matches []ResolveInfo
	for _, h := range m.Handlers {
		if h.Matches(intent) {
			matches = append(matches, ResolveInfo{Activity: h.Activity})
		}
	}
	return matches, nil
}

// StartActivity records intent and makes its component the top activity
func (m *MemoryRegistry) StartActivity(ctx context.Context, intent *Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("StartActivity"); err != nil {
		return err
	}
	m.Started = append(m.Started, *intent)
	if !intent.Component.IsZero() {
		m.Top = intent.Component
	}
	return nil
}

// MoveTaskToFront records process
func (m *MemoryRegistry) MoveTaskToFront(ctx context.Context, process ProcessRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MoveTaskToFront"); err != nil {
		return err
	}
	m.Moved = append(m.Moved, process)
	return nil
}

// ExternalStorageState returns StorageState
func (m *MemoryRegistry) ExternalStorageState(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ExternalStorageState"); err != nil {
		return "", err
	}
	return m.StorageState, nil
}
