/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: registry.go
Description: Interfaces over the platform process/package registry. The ADB backend in
pkg/mobile implements them against a real device, MemoryRegistry serves them from memory.
*/

package appinfo

import "context"

// ProcessSource lists running processes
type ProcessSource interface {
	RunningProcesses(ctx context.Context) ([]ProcessRecord, error)
}

// TaskSource reports the activity on top of the foreground task.
// A zero ComponentName means no task is resumed.
type TaskSource interface {
	TopActivity(ctx context.Context) (ComponentName, error)
}

// PackageSource reads installed package descriptors and manifest meta-data
type PackageSource interface {
	Package(ctx context.Context, packageName string) (*PackageRecord, error)
	ComponentMetaData(ctx context.Context, kind ComponentKind, component ComponentName) (map[string]string, error)
	InstalledPackages(ctx context.Context) ([]string, error)
}

// IntentResolver resolves intents to matching activities
type IntentResolver interface {
	QueryActivities(ctx context.Context, intent *Intent) ([]ResolveInfo, error)
}

// ActivityStarter performs the two action requests
type ActivityStarter interface {
	StartActivity(ctx context.Context, intent *Intent) error
	MoveTaskToFront(ctx context.Context, process ProcessRecord) error
}

// StorageSource reports the external storage state ("mounted", "unmounted", ...)
type StorageSource interface {
	ExternalStorageState(ctx context.Context) (string, error)
}

// Registry is everything the query layer reads from or asks of the platform
type Registry interface {
	ProcessSource
	TaskSource
	PackageSource
	IntentResolver
	ActivityStarter
	StorageSource
}

// StorageMounted is Environment.MEDIA_MOUNTED
const StorageMounted = "mounted"

// StorageUnmounted is Environment.MEDIA_UNMOUNTED
const StorageUnmounted = "unmounted"
