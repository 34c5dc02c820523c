// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testjobs implements an in-memory jobs.DB.
package testjobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"storj.io/abundance/jobs"
)

// DB is an in-memory jobs.DB.
type DB struct {
	mu    sync.Mutex
	now   func() time.Time
	infos map[int64]jobs.Info
	md5s  map[int64]map[string]jobs.Row
	lcas  map[int64]map[string]jobs.LCARow

	// CallCount counts calls per method name.
	CallCount map[string]int
}

var _ jobs.DB = (*DB)(nil)

// New creates an empty store.
func New() *DB {
	return &DB{
		now:       time.Now,
		infos:     map[int64]jobs.Info{},
		md5s:      map[int64]map[string]jobs.Row{},
		lcas:      map[int64]map[string]jobs.LCARow{},
		CallCount: map[string]int{},
	}
}

// SetNow allows tests to have the store act as if the current time is whatever they want.
func (db *DB) SetNow(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

func (db *DB) called(name string) {
	db.CallCount[name]++
}

// Info implements jobs.DB.
func (db *DB) Info(ctx context.Context, job int64) (*jobs.Info, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("Info")

	info, ok := db.infos[job]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// InsertInfo implements jobs.DB.
func (db *DB) InsertInfo(ctx context.Context, job int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("InsertInfo")

	db.infos[job] = jobs.Info{Job: job, UpdatedOn: db.now()}
	return nil
}

// SetLoaded implements jobs.DB.
func (db *DB) SetLoaded(ctx context.Context, job int64, loaded bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("SetLoaded")

	info := db.infos[job]
	info.Job = job
	info.Loaded = loaded
	info.UpdatedOn = db.now()
	db.infos[job] = info
	return nil
}

// UpdateCounts implements jobs.DB.
func (db *DB) UpdateCounts(ctx context.Context, job int64, md5s, lcas int64, loaded bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("UpdateCounts")

	db.infos[job] = jobs.Info{Job: job, MD5Count: md5s, LCACount: lcas, Loaded: loaded, UpdatedOn: db.now()}
	return nil
}

// InsertRows implements jobs.DB.
func (db *DB) InsertRows(ctx context.Context, job int64, rows []jobs.Row) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("InsertRows")

	for _, row := range rows {
		if row.MD5 == "" {
			return 0, jobs.Error.New("row without md5")
		}
	}

	table, ok := db.md5s[job]
	if !ok {
		table = map[string]jobs.Row{}
		db.md5s[job] = table
	}
	for _, row := range rows {
		table[row.MD5] = row
	}

	info := db.infos[job]
	info.Job = job
	info.MD5Count += int64(len(rows))
	info.Loaded = false
	info.UpdatedOn = db.now()
	db.infos[job] = info
	return info.MD5Count, nil
}

// InsertLCARows implements jobs.DB.
func (db *DB) InsertLCARows(ctx context.Context, job int64, rows []jobs.LCARow) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("InsertLCARows")

	for _, row := range rows {
		if row.LCA == "" {
			return 0, jobs.Error.New("row without lca")
		}
	}

	table, ok := db.lcas[job]
	if !ok {
		table = map[string]jobs.LCARow{}
		db.lcas[job] = table
	}
	for _, row := range rows {
		table[row.LCA] = row
	}

	info := db.infos[job]
	info.Job = job
	info.LCACount += int64(len(rows))
	info.Loaded = false
	info.UpdatedOn = db.now()
	db.infos[job] = info
	return info.LCACount, nil
}

// rows returns a snapshot of the md5 rows of job ordered by hash.
func (db *DB) rows(job int64) []jobs.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows := make([]jobs.Row, 0, len(db.md5s[job]))
	for _, row := range db.md5s[job] {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, k int) bool { return rows[i].MD5 < rows[k].MD5 })
	return rows
}

// IterateRows implements jobs.DB.
func (db *DB) IterateRows(ctx context.Context, job int64, opts jobs.IterateOptions, fn func(context.Context, jobs.Row) error) error {
	db.mu.Lock()
	db.called("IterateRows")
	db.mu.Unlock()

	for _, row := range db.rows(job) {
		if !opts.Filter.Match(row) {
			continue
		}
		row, err := jobs.Project(row, opts.ColumnList())
		if err != nil {
			return err
		}
		if opts.Swap {
			row = row.Swapped()
		}
		if err := fn(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// IterateLCARows implements jobs.DB.
func (db *DB) IterateLCARows(ctx context.Context, job int64, fn func(context.Context, jobs.LCARow) error) error {
	db.mu.Lock()
	db.called("IterateLCARows")
	rows := make([]jobs.LCARow, 0, len(db.lcas[job]))
	for _, row := range db.lcas[job] {
		rows = append(rows, row)
	}
	db.mu.Unlock()

	sort.Slice(rows, func(i, k int) bool { return rows[i].LCA < rows[k].LCA })
	for _, row := range rows {
		if err := fn(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// RangeFor implements jobs.DB.
func (db *DB) RangeFor(ctx context.Context, job int64, md5 string) (jobs.Range, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("RangeFor")

	row, ok := db.md5s[job][md5]
	if !ok || row.Length == 0 {
		return jobs.Range{}, false, nil
	}
	return jobs.Range{Seek: row.Seek, Length: row.Length}, true, nil
}

// Ranges implements jobs.DB.
func (db *DB) Ranges(ctx context.Context, job int64, md5s []string, filter jobs.Filter) ([]jobs.Range, error) {
	db.mu.Lock()
	db.called("Ranges")
	db.mu.Unlock()

	var ranges []jobs.Range
	if len(md5s) > 0 {
		db.mu.Lock()
		for _, md5 := range md5s {
			if row, ok := db.md5s[job][md5]; ok {
				ranges = append(ranges, jobs.Range{Seek: row.Seek, Length: row.Length})
			}
		}
		db.mu.Unlock()
		return jobs.MergeRanges(ranges), nil
	}

	for _, row := range db.rows(job) {
		if filter.Match(row) {
			ranges = append(ranges, jobs.Range{Seek: row.Seek, Length: row.Length})
		}
	}
	return jobs.MergeRanges(ranges), nil
}

// RowCount implements jobs.DB.
func (db *DB) RowCount(ctx context.Context, job int64, table jobs.Table, limit int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("RowCount")

	var count int64
	switch table {
	case jobs.TableMD5:
		count = int64(len(db.md5s[job]))
	case jobs.TableLCA:
		count = int64(len(db.lcas[job]))
	default:
		_, err := table.Name()
		return 0, err
	}
	if limit > 0 && count > limit {
		count = limit
	}
	return count, nil
}

// DeleteJob implements jobs.DB.
func (db *DB) DeleteJob(ctx context.Context, job int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.called("DeleteJob")

	info, ok := db.infos[job]
	if !ok {
		return nil
	}
	info.Loaded = false
	db.infos[job] = info
	delete(db.md5s, job)
	delete(db.lcas, job)
	return nil
}
