/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: commands_test.go
Description: Tests for command sessions replayed from snapshot files.
*/

package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/kleascm/droidquery/pkg/config"
	"github.com/kleascm/droidquery/pkg/inventory"
	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/kleascm/droidquery/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "history.db")
	cfg.Log.Quiet = true
	return cfg
}

func writeReplay(t *testing.T, withPackage bool) string {
	snapshot := &inventory.Snapshot{
		ID:        "0123456789abcdef",
		CreatedAt: time.Now(),
		Device:    &mobile.DeviceInfo{Serial: "emulator-5554", Model: "Pixel"},
		Caller:    &appinfo.Caller{PackageName: "com.app", PID: 42},
		Foreground: appinfo.ComponentName{
			Package: "com.other",
			Class:   "com.other.Main",
		},
		StorageMounted: true,
		Processes: []appinfo.ProcessRecord{
			{PID: 42, Name: "com.app", Importance: appinfo.ImportanceBackground},
		},
		Packages: []inventory.PackageEntry{{Name: "com.other", Label: "Other"}},
	}
	if withPackage {
		snapshot.Package = &appinfo.PackageRecord{
			PackageName:     "com.app",
			ApplicationInfo: appinfo.ApplicationInfo{Label: "App"},
		}
		snapshot.Packages = append(snapshot.Packages, inventory.PackageEntry{Name: "com.app", Label: "App"})
	}
	meta, err := utils.WriteSnapshot(t.TempDir(), snapshot, "")
	require.NoError(t, err)
	return meta.Path
}

func openReplay(t *testing.T, cfg *config.Config, path string, out *bytes.Buffer) *Session {
	s, err := OpenSession(context.Background(), cfg, SessionOptions{Replay: path, Out: out})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReplaySessionRunsQueries(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	s := openReplay(t, testConfig(t), writeReplay(t, true), &out)

	assert.Nil(t, s.Controller)
	require.NotNil(t, s.Caller)
	assert.Equal(t, "com.app", s.Caller.PackageName)
	require.NotNil(t, s.Repo)

	require.NoError(t, s.Run("AppName", s.callerPackage(), func() (interface{}, error) {
		return s.Query.AppName(ctx, s.Caller)
	}))
	require.NoError(t, s.Run("IsApplicationInBackground", s.callerPackage(), func() (interface{}, error) {
		return s.Query.IsApplicationInBackground(ctx, s.Caller)
	}))
	assert.Equal(t, "App\ntrue\n", out.String())

	err := s.Run("PackageInfo", "com.missing", func() (interface{}, error) {
		return s.Query.PackageInfo(ctx, s.Caller, "com.missing")
	})
	assert.ErrorIs(t, err, appinfo.ErrNotFound)

	records, err := s.Repo.QueriesSince(time.Now().Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "PackageInfo", records[0].Op)
	assert.NotEmpty(t, records[0].Error)
	assert.Equal(t, "true", records[1].Result)
	assert.Equal(t, "App", records[2].Result)
	assert.Equal(t, "emulator-5554", records[2].Device)
}

func TestReplaySessionLenient(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Lenient = true
	var out bytes.Buffer
	s := openReplay(t, cfg, writeReplay(t, false), &out)
	require.NotNil(t, s.Lenient)

	require.NoError(t, s.Run("AppName", s.callerPackage(), func() (interface{}, error) {
		return s.Lenient.AppName(ctx, s.Caller), nil
	}))
	assert.Equal(t, "\n", out.String())

	errs, err := s.Repo.ErrorsSince(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "AppName", errs[0].Op)
}

func TestLenientMissingPackagePrintsNothing(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Lenient = true
	var out bytes.Buffer
	s := openReplay(t, cfg, writeReplay(t, true), &out)

	require.NoError(t, s.Run("PackageInfo", "com.missing", func() (interface{}, error) {
		return s.packageInfo(ctx, "com.missing")
	}))
	assert.Empty(t, out.String())

	require.NoError(t, s.Run("PackageInfo", "com.app", func() (interface{}, error) {
		return s.packageInfo(ctx, "")
	}))
	assert.Contains(t, out.String(), `"package_name": "com.app"`)

	records, err := s.Repo.QueriesSince(time.Now().Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "", records[1].Result)
}

func TestReplayCollect(t *testing.T) {
	var out bytes.Buffer
	s := openReplay(t, testConfig(t), writeReplay(t, true), &out)

	snapshot := s.collect(context.Background(), true)
	require.NotNil(t, snapshot.Device)
	assert.Equal(t, "emulator-5554", snapshot.Device.Serial)
	assert.Equal(t, "App", snapshot.AppName)
	assert.True(t, snapshot.InBackground)
	assert.True(t, snapshot.Cached)
	assert.ElementsMatch(t, []inventory.PackageEntry{
		{Name: "com.app", Label: "App"},
		{Name: "com.other", Label: "Other"},
	}, snapshot.Packages)
}

func TestConfigCallerOverridesReplay(t *testing.T) {
	cfg := testConfig(t)
	cfg.Caller.Package = "com.other"
	cfg.Caller.Component = "com.other/.Main"
	s := openReplay(t, cfg, writeReplay(t, true), &bytes.Buffer{})
	require.NotNil(t, s.Caller)
	assert.Equal(t, "com.other", s.Caller.PackageName)
	assert.Equal(t, "com.other.Main", s.Caller.Component.Class)

	cfg = testConfig(t)
	cfg.Caller.Package = "com.app"
	cfg.Caller.Component = "com.app/.Main"
	cfg.Caller.Finishing = true
	s = openReplay(t, cfg, writeReplay(t, true), &bytes.Buffer{})
	require.NotNil(t, s.Caller)
	assert.True(t, s.Caller.Finishing)
	_, err := s.Query.MetaData(context.Background(), s.Caller, appinfo.KindActivity, "theme")
	assert.ErrorIs(t, err, appinfo.ErrNotFound)

	cfg = testConfig(t)
	cfg.Caller.Package = "com.other"
	cfg.Caller.Component = "nonsense"
	_, err = OpenSession(context.Background(), cfg, SessionOptions{Replay: writeReplay(t, true), Out: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	s := &Session{out: &out}

	require.NoError(t, s.Print([]string{"com.a", "com.b"}))
	require.NoError(t, s.Print(nil))
	require.NoError(t, s.Print(backgroundState{Package: "com.a", Cached: true}))
	assert.Equal(t, "com.a\ncom.b\n{\n  \"package\": \"com.a\",\n  \"in_background\": false,\n  \"cached\": true\n}\n", out.String())

	assert.Equal(t, "", resultString(nil))
	assert.Equal(t, "false", resultString(false))
	assert.Equal(t, `["x"]`, resultString([]string{"x"}))
}

func TestNeedCaller(t *testing.T) {
	s := &Session{}
	assert.Error(t, s.needCaller())
	assert.Error(t, s.requireDevice("watch"))
	assert.Equal(t, "", s.callerPackage())
	assert.Nil(t, s.errorSink())
}
