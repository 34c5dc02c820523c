// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package jobstest contains the tests every jobs.DB implementation must pass.
package jobstest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storj.io/abundance/jobs"
	"storj.io/common/testcontext"
)

// RunTests runs common jobs.DB tests. Every test uses its own job ids so
// that db may be shared.
func RunTests(t *testing.T, db jobs.DB) {
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, db) })
	t.Run("InsertCounts", func(t *testing.T) { testInsertCounts(t, db) })
	t.Run("Filter", func(t *testing.T) { testFilter(t, db) })
	t.Run("Columns", func(t *testing.T) { testColumns(t, db) })
	t.Run("Swap", func(t *testing.T) { testSwap(t, db) })
	t.Run("Ranges", func(t *testing.T) { testRanges(t, db) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, db) })
	t.Run("ReinsertAfterDelete", func(t *testing.T) { testReinsertAfterDelete(t, db) })
	t.Run("LCA", func(t *testing.T) { testLCA(t, db) })
}

// Rows returns a fixed set of rows with distinct qualities.
func Rows() []jobs.Row {
	return []jobs.Row{
		{MD5: "a1", Abundance: 10, ExpAvg: -30, IdentAvg: 95, LenAvg: 40, Seek: 0, Length: 100},
		{MD5: "b2", Abundance: 4, ExpAvg: -3, IdentAvg: 70, LenAvg: 20, Seek: 100, Length: 50},
		{MD5: "c3", Abundance: 1, ExpAvg: -10, IdentAvg: 60, LenAvg: 90, Seek: 500, Length: 25},
		{MD5: "d4", Abundance: 7, ExpAvg: -12, IdentAvg: 99, LenAvg: 15, Seek: 0, Length: 0},
	}
}

func collect(ctx context.Context, t *testing.T, db jobs.DB, job int64, opts jobs.IterateOptions) []jobs.Row {
	var rows []jobs.Row
	err := db.IterateRows(ctx, job, opts, func(ctx context.Context, row jobs.Row) error {
		rows = append(rows, row)
		return nil
	})
	require.NoError(t, err)
	return rows
}

func md5sOf(rows []jobs.Row) []string {
	var md5s []string
	for _, row := range rows {
		md5s = append(md5s, row.MD5)
	}
	return md5s
}

func testLifecycle(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const job = 101

	state, err := jobs.StateOf(ctx, db, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StateAbsent, state)

	info, err := db.Info(ctx, job)
	require.NoError(t, err)
	require.Nil(t, info)

	_, ok, err := jobs.LastUpdated(ctx, db, job)
	require.NoError(t, err)
	require.False(t, ok)

	before := time.Now().Add(-time.Minute)
	require.NoError(t, db.InsertInfo(ctx, job))

	has, err := jobs.HasJob(ctx, db, job)
	require.NoError(t, err)
	require.True(t, has)

	state, err = jobs.StateOf(ctx, db, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StateUnloaded, state)

	_, err = db.InsertRows(ctx, job, Rows()[:1])
	require.NoError(t, err)

	state, err = jobs.StateOf(ctx, db, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StateLoading, state)

	require.NoError(t, db.SetLoaded(ctx, job, true))

	loaded, err := jobs.IsLoaded(ctx, db, job)
	require.NoError(t, err)
	require.True(t, loaded)

	state, err = jobs.StateOf(ctx, db, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StateLoaded, state)

	updated, ok, err := jobs.LastUpdated(ctx, db, job)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, updated.After(before))

	info, err = db.Info(ctx, job)
	require.NoError(t, err)
	require.EqualValues(t, 1, info.MD5Count)

	require.NoError(t, db.UpdateCounts(ctx, job, 5, 3, true))
	info, err = db.Info(ctx, job)
	require.NoError(t, err)
	require.EqualValues(t, 5, info.MD5Count)
	require.EqualValues(t, 3, info.LCACount)
	require.True(t, info.Loaded)
}

func testInsertCounts(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const job = 102
	rows := Rows()

	require.NoError(t, db.SetLoaded(ctx, job, true))

	count, err := db.InsertRows(ctx, job, rows[:2])
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, err = db.InsertRows(ctx, job, rows[2:])
	require.NoError(t, err)
	require.EqualValues(t, 4, count)

	info, err := db.Info(ctx, job)
	require.NoError(t, err)
	require.EqualValues(t, 4, info.MD5Count)
	require.False(t, info.Loaded, "inserting rows must clear the loaded flag")

	total, err := db.RowCount(ctx, job, jobs.TableMD5, 0)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)

	limited, err := db.RowCount(ctx, job, jobs.TableMD5, 2)
	require.NoError(t, err)
	require.EqualValues(t, 2, limited)

	md5s, err := jobs.MD5s(ctx, db, job)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a1", "b2", "c3", "d4"}, md5s)
}

func testFilter(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const job = 103
	_, err := db.InsertRows(ctx, job, Rows())
	require.NoError(t, err)

	for _, tt := range []struct {
		filter jobs.Filter
		md5s   []string
	}{
		{jobs.Filter{}, []string{"a1", "b2", "c3", "d4"}},
		{jobs.Filter{EValue: 10}, []string{"a1", "c3", "d4"}},
		{jobs.Filter{Identity: 95}, []string{"a1", "d4"}},
		{jobs.Filter{Length: 40}, []string{"a1", "c3"}},
		{jobs.Filter{EValue: 5, Identity: 90, Length: 20}, []string{"a1"}},
		{jobs.Filter{EValue: 100}, nil},
	} {
		rows := collect(ctx, t, db, job, jobs.IterateOptions{Filter: tt.filter})
		require.ElementsMatch(t, tt.md5s, md5sOf(rows), "%+v", tt.filter)
		for _, row := range rows {
			require.True(t, tt.filter.Match(row))
		}
	}
}

func testColumns(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const job = 104
	_, err := db.InsertRows(ctx, job, Rows()[:1])
	require.NoError(t, err)

	rows := collect(ctx, t, db, job, jobs.IterateOptions{Columns: []jobs.Column{jobs.ColumnMD5, jobs.ColumnAbundance}})
	require.Equal(t, []jobs.Row{{MD5: "a1", Abundance: 10}}, rows)

	rows = collect(ctx, t, db, job, jobs.IterateOptions{})
	require.Equal(t, Rows()[:1], rows)
}

func testSwap(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const job = 105
	_, err := db.InsertRows(ctx, job, Rows()[:1])
	require.NoError(t, err)

	rows := collect(ctx, t, db, job, jobs.IterateOptions{Swap: true})
	require.Len(t, rows, 1)
	require.Equal(t, 40.0, rows[0].IdentAvg)
	require.Equal(t, 95.0, rows[0].LenAvg)

	// filtering applies to the stored columns
	rows = collect(ctx, t, db, job, jobs.IterateOptions{Swap: true, Filter: jobs.Filter{Identity: 90}})
	require.Len(t, rows, 1)
}

func testRanges(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const job = 106
	_, err := db.InsertRows(ctx, job, Rows())
	require.NoError(t, err)

	r, ok, err := db.RangeFor(ctx, job, "b2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, jobs.Range{Seek: 100, Length: 50}, r)

	_, ok, err = db.RangeFor(ctx, job, "d4")
	require.NoError(t, err)
	require.False(t, ok, "zero length range")

	_, ok, err = db.RangeFor(ctx, job, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	ranges, err := db.Ranges(ctx, job, []string{"c3", "a1", "b2", "d4"}, jobs.Filter{})
	require.NoError(t, err)
	require.Equal(t, []jobs.Range{{Seek: 0, Length: 150}, {Seek: 500, Length: 25}}, ranges)

	ranges, err = db.Ranges(ctx, job, nil, jobs.Filter{EValue: 10})
	require.NoError(t, err)
	require.Equal(t, []jobs.Range{{Seek: 0, Length: 100}, {Seek: 500, Length: 25}}, ranges)
}

func testDelete(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const job = 107

	// absent jobs are ignored
	require.NoError(t, db.DeleteJob(ctx, job))
	has, err := jobs.HasJob(ctx, db, job)
	require.NoError(t, err)
	require.False(t, has)

	_, err = db.InsertRows(ctx, job, Rows())
	require.NoError(t, err)
	_, err = db.InsertLCARows(ctx, job, LCARows())
	require.NoError(t, err)
	require.NoError(t, db.UpdateCounts(ctx, job, 4, 2, true))

	before, err := db.Info(ctx, job)
	require.NoError(t, err)

	require.NoError(t, db.DeleteJob(ctx, job))
	require.NoError(t, db.DeleteJob(ctx, job))

	after, err := db.Info(ctx, job)
	require.NoError(t, err)
	require.NotNil(t, after, "state record is kept")
	require.False(t, after.Loaded)
	require.Equal(t, before.MD5Count, after.MD5Count, "counts are left stale")
	require.Equal(t, before.LCACount, after.LCACount)
	require.True(t, before.UpdatedOn.Equal(after.UpdatedOn))

	for _, table := range []jobs.Table{jobs.TableMD5, jobs.TableLCA} {
		count, err := db.RowCount(ctx, job, table, 0)
		require.NoError(t, err)
		require.Zero(t, count)
	}

	state, err := jobs.StateOf(ctx, db, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StateUnloaded, state)
}

func testReinsertAfterDelete(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	requireState := func(job int64, expected jobs.State) {
		state, err := jobs.StateOf(ctx, db, job)
		require.NoError(t, err)
		require.Equal(t, expected, state)
	}

	load := func(job int64) {
		_, err := db.InsertRows(ctx, job, Rows())
		require.NoError(t, err)
		require.NoError(t, db.UpdateCounts(ctx, job, 4, 0, true))
		requireState(job, jobs.StateLoaded)

		require.NoError(t, db.DeleteJob(ctx, job))
		requireState(job, jobs.StateUnloaded)
	}

	t.Run("Reset", func(t *testing.T) {
		const job = 109
		load(job)

		// reloading starts from a fresh state record
		require.NoError(t, db.InsertInfo(ctx, job))
		requireState(job, jobs.StateUnloaded)

		count, err := db.InsertRows(ctx, job, Rows()[:2])
		require.NoError(t, err)
		require.EqualValues(t, 2, count)
		requireState(job, jobs.StateLoading)

		info, err := db.Info(ctx, job)
		require.NoError(t, err)
		require.EqualValues(t, 2, info.MD5Count)
		require.Zero(t, info.LCACount)

		rows, err := db.RowCount(ctx, job, jobs.TableMD5, 0)
		require.NoError(t, err)
		require.EqualValues(t, 2, rows)

		require.NoError(t, db.SetLoaded(ctx, job, true))
		requireState(job, jobs.StateLoaded)
	})

	t.Run("WithoutReset", func(t *testing.T) {
		const job = 110
		load(job)

		// inserts build on the stored counts, which a delete leaves stale
		count, err := db.InsertRows(ctx, job, Rows()[:2])
		require.NoError(t, err)
		require.EqualValues(t, 6, count)
		requireState(job, jobs.StateLoading)

		rows, err := db.RowCount(ctx, job, jobs.TableMD5, 0)
		require.NoError(t, err)
		require.EqualValues(t, 2, rows)
	})
}

// LCARows returns a fixed set of consensus taxon rows.
func LCARows() []jobs.LCARow {
	return []jobs.LCARow{
		{LCA: "Bacteria;Proteobacteria", Abundance: 12, ExpAvg: -20, IdentAvg: 80, LenAvg: 33, MD5s: 3, Level: 1},
		{LCA: "Bacteria", Abundance: 5, ExpAvg: -8, IdentAvg: 66, LenAvg: 21, MD5s: 2, Level: 0},
	}
}

func testLCA(t *testing.T, db jobs.DB) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const job = 108

	count, err := db.InsertLCARows(ctx, job, LCARows())
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	info, err := db.Info(ctx, job)
	require.NoError(t, err)
	require.EqualValues(t, 2, info.LCACount)
	require.Zero(t, info.MD5Count)

	var rows []jobs.LCARow
	err = db.IterateLCARows(ctx, job, func(ctx context.Context, row jobs.LCARow) error {
		rows = append(rows, row)
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, LCARows(), rows)
}
