/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: repository_test.go
Description: Tests for the history repository against a temporary SQLite database.
*/

package store_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kleascm/droidquery/pkg/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *store.Repository {
	db, err := store.Connect(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	return store.NewRepository(db, "emulator-5554", logger)
}

func TestRecordQueryAndSummary(t *testing.T) {
	repo := newTestRepository(t)
	since := time.Now().Add(-time.Minute)

	require.NoError(t, repo.RecordQuery("AppName", "com.app", "App", nil, 20*time.Millisecond))
	require.NoError(t, repo.RecordQuery("AppName", "com.app", "", errors.New("not found"), 40*time.Millisecond))
	require.NoError(t, repo.RecordQuery("IsDebuggable", "com.app", "true", nil, 10*time.Millisecond))

	records, err := repo.QueriesSince(since, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "IsDebuggable", records[0].Op, "newest first")
	assert.Equal(t, repo.SessionID(), records[0].SessionID)
	assert.Equal(t, "emulator-5554", records[0].Device)

	limited, err := repo.QueriesSince(since, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	summaries, err := repo.OpSummarySince(since)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "AppName", summaries[0].Op)
	assert.Equal(t, int64(2), summaries[0].Calls)
	assert.Equal(t, int64(1), summaries[0].Failures)
	assert.InDelta(t, 30.0, summaries[0].AvgDurationMs, 0.001)
}

func TestSamples(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Now().Add(-10 * time.Second)

	latest, err := repo.LatestSample("com.app")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.RecordSample(&store.StateSample{Timestamp: base, Package: "com.app", Running: true}))
	require.NoError(t, repo.RecordSample(&store.StateSample{Timestamp: base.Add(time.Second), Package: "com.app", Running: true, InBackground: true}))
	require.NoError(t, repo.RecordSample(&store.StateSample{Timestamp: base.Add(2 * time.Second), Package: "com.other"}))

	samples, err := repo.SamplesFor("com.app", base.Add(-time.Second))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "foreground", samples[0].State())
	assert.Equal(t, "background", samples[1].State())

	latest, err = repo.LatestSample("com.app")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.InBackground)
}

func TestRecordErrorImplementsSink(t *testing.T) {
	repo := newTestRepository(t)

	repo.RecordError("MetaData", errors.New("boom"))
	repo.RecordError("Ignored", nil)

	rows, err := repo.ErrorsSince(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "MetaData", rows[0].Op)
	assert.Equal(t, "boom", rows[0].ErrorMsg)
}

func TestDeleteBefore(t *testing.T) {
	repo := newTestRepository(t)
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, repo.RecordSample(&store.StateSample{Timestamp: old, Package: "com.app"}))
	require.NoError(t, repo.RecordSample(&store.StateSample{Package: "com.app"}))
	require.NoError(t, repo.RecordQuery("PackageName", "com.app", "com.app", nil, 0))

	n, err := repo.DeleteBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	samples, err := repo.SamplesFor("com.app", time.Time{})
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestSessionsAreDistinct(t *testing.T) {
	a := newTestRepository(t)
	b := newTestRepository(t)
	assert.NotEqual(t, a.SessionID(), b.SessionID())
	assert.Len(t, a.SessionID(), 36)
}
