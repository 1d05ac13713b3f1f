/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: query_test.go
Description: Tests for the strict query operations against an in-memory registry. Covers
process naming, both background heuristics, meta-data dispatch, package defaults, launcher
resolution, app launching, browser detection, task reordering and the debuggable flag.
*/

package appinfo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice() *appinfo.MemoryRegistry {
	reg := appinfo.NewMemoryRegistry()
	reg.Processes = []appinfo.ProcessRecord{
		{PID: 5, Name: "com.app", Importance: appinfo.ImportanceForeground},
		{PID: 9, Name: "com.other", Importance: appinfo.ImportanceBackground},
	}
	reg.AddPackage(&appinfo.PackageRecord{
		PackageName: "com.app",
		VersionName: "1.2.0",
		VersionCode: 12,
		ApplicationInfo: appinfo.ApplicationInfo{
			Label:    "App",
			Flags:    appinfo.FlagDebuggable | appinfo.FlagHasCode,
			MetaData: map[string]string{"channel": "beta", "empty": ""},
		},
	})
	reg.AddPackage(&appinfo.PackageRecord{
		PackageName: "com.other",
		ApplicationInfo: appinfo.ApplicationInfo{
			Flags: appinfo.FlagHasCode,
		},
	})
	reg.Handlers = []appinfo.IntentHandler{
		{
			Activity: appinfo.ComponentName{Package: "com.app", Class: "com.app.MainActivity"},
			Filter: appinfo.IntentFilter{
				Actions:    []string{appinfo.ActionMain},
				Categories: []string{appinfo.CategoryLauncher},
			},
		},
		{
			Activity: appinfo.ComponentName{Package: "com.app", Class: "com.app.AliasActivity"},
			Filter: appinfo.IntentFilter{
				Actions:    []string{appinfo.ActionMain},
				Categories: []string{appinfo.CategoryLauncher},
			},
		},
	}
	return reg
}

func newQuery(reg appinfo.Registry) *appinfo.Query {
	logger, _ := test.NewNullLogger()
	return appinfo.NewQuery(reg, logger)
}

func TestIsCurrentProcessNamed(t *testing.T) {
	ctx := context.Background()
	q := newQuery(newDevice())
	caller := &appinfo.Caller{PackageName: "com.app", PID: 5}

	named, err := q.IsCurrentProcessNamed(ctx, caller, "com.app")
	require.NoError(t, err)
	assert.True(t, named)

	named, err = q.IsCurrentProcessNamed(ctx, caller, "other")
	require.NoError(t, err)
	assert.False(t, named)

	// Another process carries the name but not our PID
	named, err = q.IsCurrentProcessNamed(ctx, caller, "com.other")
	require.NoError(t, err)
	assert.False(t, named)
}

func TestIsCurrentProcessNamedNilCaller(t *testing.T) {
	q := newQuery(newDevice())

	for _, name := range []string{"", "com.app", "other"} {
		named, err := q.IsCurrentProcessNamed(context.Background(), nil, name)
		assert.False(t, named)
		assert.ErrorIs(t, err, appinfo.ErrNoCaller)
	}
}

func TestIsCurrentProcessNamedEmptyList(t *testing.T) {
	reg := appinfo.NewMemoryRegistry()
	q := newQuery(reg)

	named, err := q.IsCurrentProcessNamed(context.Background(), &appinfo.Caller{PID: 5}, "")
	require.NoError(t, err)
	assert.False(t, named)
}

func TestIsCurrentProcessNamedEmptyNames(t *testing.T) {
	reg := appinfo.NewMemoryRegistry()
	reg.Processes = []appinfo.ProcessRecord{{PID: 7}}
	q := newQuery(reg)

	named, err := q.IsCurrentProcessNamed(context.Background(), &appinfo.Caller{PID: 7}, "")
	require.NoError(t, err)
	assert.True(t, named, "unnamed record should match an empty name")
}

func TestIsCurrentProcessNamedRegistryFailure(t *testing.T) {
	reg := newDevice()
	reg.Errors["RunningProcesses"] = errors.New("adb: device offline")
	q := newQuery(reg)

	named, err := q.IsCurrentProcessNamed(context.Background(), &appinfo.Caller{PID: 5}, "com.app")
	assert.False(t, named)
	assert.True(t, appinfo.IsQueryFailed(err))
	assert.False(t, appinfo.IsNotFound(err))

	var qe *appinfo.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "IsCurrentProcessNamed", qe.Op)
}

func TestIsApplicationInBackground(t *testing.T) {
	ctx := context.Background()
	reg := newDevice()
	q := newQuery(reg)
	caller := &appinfo.Caller{PackageName: "com.app", PID: 5}

	// No resumed task
	bg, err := q.IsApplicationInBackground(ctx, caller)
	require.NoError(t, err)
	assert.False(t, bg)

	reg.Top = appinfo.ComponentName{Package: "com.app", Class: "com.app.MainActivity"}
	bg, err = q.IsApplicationInBackground(ctx, caller)
	require.NoError(t, err)
	assert.False(t, bg)

	reg.Top = appinfo.ComponentName{Package: "com.android.launcher3", Class: "com.android.launcher3.Launcher"}
	bg, err = q.IsApplicationInBackground(ctx, caller)
	require.NoError(t, err)
	assert.True(t, bg)
}

func TestIsBackground(t *testing.T) {
	ctx := context.Background()
	q := newQuery(newDevice())

	bg, err := q.IsBackground(ctx, &appinfo.Caller{PackageName: "com.app"})
	require.NoError(t, err)
	assert.False(t, bg)

	bg, err = q.IsBackground(ctx, &appinfo.Caller{PackageName: "com.other"})
	require.NoError(t, err)
	assert.True(t, bg)

	bg, err = q.IsBackground(ctx, &appinfo.Caller{PackageName: "com.missing"})
	require.NoError(t, err)
	assert.False(t, bg)
}

func TestMetaData(t *testing.T) {
	ctx := context.Background()
	reg := newDevice()
	service := appinfo.ComponentName{Package: "com.app", Class: "com.app.SyncService"}
	receiver := appinfo.ComponentName{Package: "com.app", Class: "com.app.BootReceiver"}
	activity := appinfo.ComponentName{Package: "com.app", Class: "com.app.MainActivity"}
	reg.SetComponentMetaData(appinfo.KindService, service, map[string]string{"interval": "60"})
	reg.SetComponentMetaData(appinfo.KindReceiver, receiver, map[string]string{"priority": "high"})
	reg.SetComponentMetaData(appinfo.KindActivity, activity, map[string]string{"theme": "dark"})
	q := newQuery(reg)

	value, err := q.MetaData(ctx, &appinfo.Caller{PackageName: "com.app"}, appinfo.KindApplication, "channel")
	require.NoError(t, err)
	assert.Equal(t, "beta", value)

	value, err = q.MetaData(ctx, &appinfo.Caller{PackageName: "com.app", Component: service}, appinfo.KindService, "interval")
	require.NoError(t, err)
	assert.Equal(t, "60", value)

	value, err = q.MetaData(ctx, &appinfo.Caller{PackageName: "com.app", Component: receiver}, appinfo.KindReceiver, "priority")
	require.NoError(t, err)
	assert.Equal(t, "high", value)

	value, err = q.MetaData(ctx, &appinfo.Caller{PackageName: "com.app", Component: activity}, appinfo.KindActivity, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", value)
}

func TestMetaDataMissing(t *testing.T) {
	ctx := context.Background()
	reg := newDevice()
	activity := appinfo.ComponentName{Package: "com.app", Class: "com.app.MainActivity"}
	reg.SetComponentMetaData(appinfo.KindActivity, activity, map[string]string{"theme": "dark"})
	q := newQuery(reg)
	caller := &appinfo.Caller{PackageName: "com.app"}

	value, err := q.MetaData(ctx, caller, appinfo.KindApplication, "missing")
	assert.Equal(t, "", value)
	assert.True(t, appinfo.IsNotFound(err))

	value, err = q.MetaData(ctx, caller, appinfo.KindApplication, "empty")
	assert.Equal(t, "", value)
	assert.True(t, appinfo.IsNotFound(err))

	value, err = q.MetaData(ctx, caller, appinfo.KindUnknown, "channel")
	assert.Equal(t, "", value)
	assert.ErrorIs(t, err, appinfo.ErrUnknownComponentKind)

	// Service without a component on the caller
	value, err = q.MetaData(ctx, caller, appinfo.KindService, "interval")
	assert.Equal(t, "", value)
	assert.True(t, appinfo.IsNotFound(err))

	finishing := &appinfo.Caller{PackageName: "com.app", Component: activity, Finishing: true}
	value, err = q.MetaData(ctx, finishing, appinfo.KindActivity, "theme")
	assert.Equal(t, "", value)
	assert.True(t, appinfo.IsNotFound(err))

	destroyed := &appinfo.Caller{PackageName: "com.app", Component: activity, Destroyed: true}
	value, err = q.MetaData(ctx, destroyed, appinfo.KindActivity, "theme")
	assert.Equal(t, "", value)
	assert.True(t, appinfo.IsNotFound(err))
}

func TestPackageInfoDefaultsToOwnPackage(t *testing.T) {
	ctx := context.Background()
	q := newQuery(newDevice())
	caller := &appinfo.Caller{PackageName: "com.app"}

	explicit, err := q.PackageInfo(ctx, caller, "")
	require.NoError(t, err)
	own, err := q.OwnPackageInfo(ctx, caller)
	require.NoError(t, err)

	assert.Equal(t, own, explicit)
	assert.Equal(t, "com.app", explicit.PackageName)
	assert.Equal(t, "1.2.0", explicit.VersionName)

	other, err := q.PackageInfo(ctx, caller, "com.other")
	require.NoError(t, err)
	assert.Equal(t, "com.other", other.PackageName)
}

func TestPackageInfoNotFound(t *testing.T) {
	ctx := context.Background()
	q := newQuery(newDevice())

	record, err := q.PackageInfo(ctx, &appinfo.Caller{PackageName: "com.app"}, "com.missing")
	assert.Nil(t, record)
	assert.True(t, appinfo.IsNotFound(err))

	record, err = q.PackageInfo(ctx, nil, "")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, appinfo.ErrNoCaller)
}

func TestAppNameAndPackageName(t *testing.T) {
	ctx := context.Background()
	q := newQuery(newDevice())

	name, err := q.AppName(ctx, &appinfo.Caller{PackageName: "com.app"})
	require.NoError(t, err)
	assert.Equal(t, "App", name)

	pkg, err := q.PackageName(ctx, &appinfo.Caller{PackageName: "com.app"})
	require.NoError(t, err)
	assert.Equal(t, "com.app", pkg)

	missing := &appinfo.Caller{PackageName: "com.missing"}
	name, err = q.AppName(ctx, missing)
	assert.Equal(t, "", name)
	assert.True(t, appinfo.IsNotFound(err))

	pkg, err = q.PackageName(ctx, missing)
	assert.Equal(t, "", pkg)
	assert.True(t, appinfo.IsNotFound(err))

	// Package without a label
	name, err = q.AppName(ctx, &appinfo.Caller{PackageName: "com.other"})
	assert.Equal(t, "", name)
	assert.True(t, appinfo.IsNotFound(err))
}

func TestIsStorageMounted(t *testing.T) {
	ctx := context.Background()
	reg := newDevice()
	q := newQuery(reg)

	mounted, err := q.IsStorageMounted(ctx)
	require.NoError(t, err)
	assert.True(t, mounted)

	reg.StorageState = "unmounted"
	mounted, err = q.IsStorageMounted(ctx)
	require.NoError(t, err)
	assert.False(t, mounted)
}

func TestLauncher(t *testing.T) {
	ctx := context.Background()
	q := newQuery(newDevice())

	info, err := q.Launcher(ctx, &appinfo.Caller{PackageName: "com.app"}, "")
	require.NoError(t, err)
	assert.Equal(t, "com.app.MainActivity", info.Activity.Class, "first match wins")

	info, err = q.Launcher(ctx, &appinfo.Caller{PackageName: "com.app"}, "com.app")
	require.NoError(t, err)
	assert.Equal(t, "com.app/com.app.MainActivity", info.Activity.String())
}

func TestLauncherNoMatch(t *testing.T) {
	ctx := context.Background()
	q := newQuery(newDevice())

	assert.NotPanics(t, func() {
		info, err := q.Launcher(ctx, &appinfo.Caller{PackageName: "com.app"}, "com.other")
		assert.Nil(t, info)
		assert.True(t, appinfo.IsNoLauncher(err))
	})

	info, err := q.Launcher(ctx, &appinfo.Caller{PackageName: "com.app"}, "com.missing")
	assert.Nil(t, info)
	assert.True(t, appinfo.IsNotFound(err))
}

func TestOpenApp(t *testing.T) {
	ctx := context.Background()
	reg := newDevice()
	q := newQuery(reg)

	require.NoError(t, q.OpenApp(ctx, &appinfo.Caller{PackageName: "com.other"}, "com.app"))
	require.Len(t, reg.Started, 1)

	started := reg.Started[0]
	assert.Equal(t, appinfo.ActionMain, started.Action)
	assert.Contains(t, started.Categories, appinfo.CategoryLauncher)
	assert.Equal(t, appinfo.FlagActivityNewTask, started.Flags&appinfo.FlagActivityNewTask)
	assert.Equal(t, "com.app/com.app.MainActivity", started.Component.String())
	assert.Equal(t, "com.app", reg.Top.Package)

	err := q.OpenApp(ctx, &appinfo.Caller{PackageName: "com.app"}, "com.other")
	assert.True(t, appinfo.IsNoLauncher(err))
	assert.Len(t, reg.Started, 1)
}

func TestHasBrowser(t *testing.T) {
	ctx := context.Background()
	reg := newDevice()
	q := newQuery(reg)

	has, err := q.HasBrowser(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	reg.Handlers = append(reg.Handlers, appinfo.IntentHandler{
		Activity: appinfo.ComponentName{Package: "com.android.chrome", Class: "com.google.android.apps.chrome.IntentDispatcher"},
		Filter: appinfo.IntentFilter{
			Actions:    []string{appinfo.ActionView},
			Categories: []string{appinfo.CategoryBrowsable, appinfo.CategoryDefault},
			Schemes:    []string{"http", "https"},
		},
	})
	has, err = q.HasBrowser(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	browsers, err := q.Browsers(ctx)
	require.NoError(t, err)
	require.Len(t, browsers, 1)
	assert.Equal(t, "com.android.chrome", browsers[0].Activity.Package)
}

func TestMoveTaskToFront(t *testing.T) {
	ctx := context.Background()
	reg := newDevice()
	reg.Processes = append(reg.Processes, appinfo.ProcessRecord{PID: 6, Name: "com.app"})
	q := newQuery(reg)

	require.NoError(t, q.MoveTaskToFront(ctx, &appinfo.Caller{PackageName: "com.app"}))
	require.Len(t, reg.Moved, 2)
	assert.Equal(t, 5, reg.Moved[0].PID)
	assert.Equal(t, 6, reg.Moved[1].PID)

	reg.Errors["MoveTaskToFront"] = errors.New("am: no task")
	err := q.MoveTaskToFront(ctx, &appinfo.Caller{PackageName: "com.app"})
	assert.True(t, appinfo.IsQueryFailed(err))

	assert.ErrorIs(t, q.MoveTaskToFront(ctx, nil), appinfo.ErrNoCaller)
}

func TestIsDebuggable(t *testing.T) {
	ctx := context.Background()
	q := newQuery(newDevice())

	debuggable, err := q.IsDebuggable(ctx, &appinfo.Caller{PackageName: "com.app"})
	require.NoError(t, err)
	assert.True(t, debuggable)

	debuggable, err = q.IsDebuggable(ctx, &appinfo.Caller{PackageName: "com.other"})
	require.NoError(t, err)
	assert.False(t, debuggable)

	debuggable, err = q.IsDebuggable(ctx, &appinfo.Caller{PackageName: "com.missing"})
	assert.False(t, debuggable)
	assert.Error(t, err)
}

func TestInstalledPackages(t *testing.T) {
	reg := newDevice()
	q := appinfo.NewQuery(reg, nil)
	assert.Same(t, reg, q.Registry())

	packages, err := q.InstalledPackages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"com.app", "com.other"}, packages)
}
