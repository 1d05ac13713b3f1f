/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report_test.go
Description: Tests for HTML report generation, checked by parsing the output with goquery.
*/

package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/kleascm/droidquery/pkg/inventory"
	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/kleascm/droidquery/pkg/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *inventory.Snapshot {
	return &inventory.Snapshot{
		ID:        "0f8c2a34-5b1e-4c1d-9a51-2f0e6a1b7c3d",
		CreatedAt: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
		Device:    &mobile.DeviceInfo{Serial: "emulator-5554", Model: "Pixel 8", SDK: 34},
		Caller:    &appinfo.Caller{PackageName: "com.app", PID: 5},
		AppName:   "App <beta>",
		Foreground: appinfo.ComponentName{
			Package: "com.app",
			Class:   "com.app.MainActivity",
		},
		StorageMounted: true,
		Processes: []appinfo.ProcessRecord{
			{PID: 5, Name: "com.app", Importance: appinfo.ImportanceForeground},
			{PID: 9, Name: "system_server", Importance: appinfo.ImportanceService},
		},
		Packages: []inventory.PackageEntry{{Name: "com.app", Label: "App"}},
		Errors:   []inventory.SnapshotError{{Op: "HasBrowser", Error: "query failed: cmd: not found"}},
	}
}

func loadReport(t *testing.T, path string) *goquery.Document {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func TestGenerateReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	logger, _ := test.NewNullLogger()
	rg := NewReportGenerator(dir, logger)

	data := &ReportData{
		Snapshot: sampleSnapshot(),
		Samples: []store.StateSample{
			{Running: true},
			{Running: true, InBackground: true},
			{Running: true, InBackground: true},
			{},
		},
		Ops: []store.OpSummary{{Op: "AppName", Calls: 3, Failures: 1, AvgDurationMs: 12.5}},
		Crashes: []mobile.CrashEntry{{
			Package:    "com.app",
			Type:       mobile.CrashFatal,
			Timestamp:  time.Date(2026, 10, 18, 9, 29, 0, 0, time.UTC),
			Message:    "java.lang.IllegalStateException: boom",
			StackTrace: []string{"at com.app.Main.onCreate(Main.java:10)"},
		}},
	}

	path, err := rg.GenerateReport(data)
	require.NoError(t, err)
	assert.Equal(t, "report_2026-10-18_09-30-00_0f8c2a34.html", filepath.Base(path))

	doc := loadReport(t, path)
	assert.Equal(t, "App <beta> - droidquery report", doc.Find("title").Text())
	assert.Equal(t, "com.app", doc.Find("#app-package").Text())
	assert.Equal(t, 3, doc.Find("#processes tr").Length(), "header plus one row per process")
	assert.Contains(t, doc.Find("#processes").Text(), "foreground")
	assert.Equal(t, 1, doc.Find("#snapshot-errors tr.error").Length())
	assert.Contains(t, doc.Find("#ops").Text(), "12.5 ms")
	assert.Contains(t, doc.Find("#crashes pre").Text(), "Main.java:10")
	assert.Zero(t, doc.Find("#errors").Length())
	assert.Contains(t, doc.Find(".stat-card").Eq(2).Text(), "com.app/.MainActivity")

	script := doc.Find("script").Last().Text()
	assert.True(t, strings.Contains(script, `"labels":["background","foreground","stopped"]`), script)
	assert.Contains(t, script, `"data":[2,1,1]`)

	assert.Equal(t, map[string]int{"foreground": 1, "background": 2, "stopped": 1}, data.States)
}

func TestGenerateReportNeedsSnapshot(t *testing.T) {
	rg := NewReportGenerator(t.TempDir(), nil)
	_, err := rg.GenerateReport(&ReportData{})
	assert.Error(t, err)
}
