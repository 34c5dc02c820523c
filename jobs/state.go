// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package jobs

import (
	"context"
	"time"
)

// State is the load state of a job.
type State int

const (
	// StateAbsent means the job has no state record.
	StateAbsent State = iota
	// StateLoading means rows are present but the job is not marked loaded.
	StateLoading
	// StateLoaded means the rows are complete.
	StateLoaded
	// StateUnloaded means the job has a state record but no rows, either
	// because it was deleted or because no batch has landed yet.
	StateUnloaded
)

// String implements fmt.Stringer.
func (state State) String() string {
	switch state {
	case StateAbsent:
		return "absent"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloaded:
		return "unloaded"
	default:
		return "invalid"
	}
}

// StateOf returns the load state of job.
func StateOf(ctx context.Context, db DB, job int64) (_ State, err error) {
	defer mon.Task()(&ctx, job)(&err)

	info, err := db.Info(ctx, job)
	if err != nil {
		return StateAbsent, err
	}
	switch {
	case info == nil:
		return StateAbsent, nil
	case info.Loaded:
		return StateLoaded, nil
	}

	for _, table := range []Table{TableMD5, TableLCA} {
		count, err := db.RowCount(ctx, job, table, 1)
		if err != nil {
			return StateAbsent, err
		}
		if count > 0 {
			return StateLoading, nil
		}
	}
	return StateUnloaded, nil
}

// HasJob returns true when job has a state record.
func HasJob(ctx context.Context, db DB, job int64) (bool, error) {
	info, err := db.Info(ctx, job)
	return info != nil, err
}

// IsLoaded returns true when job is marked loaded.
func IsLoaded(ctx context.Context, db DB, job int64) (bool, error) {
	info, err := db.Info(ctx, job)
	return info != nil && info.Loaded, err
}

// LastUpdated returns when the state record of job last changed; ok is
// false for an absent job.
func LastUpdated(ctx context.Context, db DB, job int64) (_ time.Time, ok bool, _ error) {
	info, err := db.Info(ctx, job)
	if err != nil || info == nil {
		return time.Time{}, false, err
	}
	return info.UpdatedOn, true, nil
}

// MD5s returns every content hash of job.
func MD5s(ctx context.Context, db DB, job int64) (_ []string, err error) {
	defer mon.Task()(&ctx, job)(&err)

	var md5s []string
	err = db.IterateRows(ctx, job, IterateOptions{Columns: []Column{ColumnMD5}}, func(ctx context.Context, row Row) error {
		md5s = append(md5s, row.MD5)
		return nil
	})
	return md5s, err
}
