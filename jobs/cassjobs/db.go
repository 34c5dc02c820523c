// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cassjobs implements jobs.DB on a wide-column cluster.
package cassjobs

import (
	"context"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/jobs"
	"storj.io/abundance/private/cassconn"
)

var mon = monkit.Package()

// Config contains configurable values for the job keyspace.
type Config struct {
	Keyspace string `help:"keyspace holding the per job tables" default:"mgrast_abundance"`
}

// DB implements jobs.DB for one reference version.
type DB struct {
	log     *zap.Logger
	session *gocql.Session
	version int
	now     func() time.Time
}

var _ jobs.DB = (*DB)(nil)

// Open returns the job tables of version, using a session from pool.
func Open(ctx context.Context, log *zap.Logger, pool *cassconn.Pool, config Config, version int) (_ *DB, err error) {
	defer mon.Task()(&ctx)(&err)

	session, err := pool.Session(ctx, config.Keyspace)
	if err != nil {
		return nil, jobs.Error.Wrap(err)
	}
	return &DB{
		log:     log,
		session: session,
		version: version,
		now:     time.Now,
	}, nil
}

// Info implements jobs.DB.
func (db *DB) Info(ctx context.Context, job int64) (_ *jobs.Info, err error) {
	defer mon.Task()(&ctx, job)(&err)

	info := jobs.Info{Job: job}
	err = db.session.Query(`
		SELECT md5s, lcas, loaded, updated_on FROM job_info
		WHERE version = ? AND job = ?`, db.version, job).
		WithContext(ctx).
		Scan(&info.MD5Count, &info.LCACount, &info.Loaded, &info.UpdatedOn)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		return nil, jobs.Error.Wrap(err)
	}
	return &info, nil
}

// InsertInfo implements jobs.DB.
func (db *DB) InsertInfo(ctx context.Context, job int64) (err error) {
	defer mon.Task()(&ctx, job)(&err)

	err = db.session.Query(insertInfo, db.version, job, int64(0), int64(0), false, db.now()).WithContext(ctx).Exec()
	return jobs.Error.Wrap(err)
}

// SetLoaded implements jobs.DB.
func (db *DB) SetLoaded(ctx context.Context, job int64, loaded bool) (err error) {
	defer mon.Task()(&ctx, job)(&err)

	err = db.session.Query(`
		UPDATE job_info SET loaded = ?, updated_on = ?
		WHERE version = ? AND job = ?`, loaded, db.now(), db.version, job).WithContext(ctx).Exec()
	return jobs.Error.Wrap(err)
}

// UpdateCounts implements jobs.DB.
func (db *DB) UpdateCounts(ctx context.Context, job int64, md5s, lcas int64, loaded bool) (err error) {
	defer mon.Task()(&ctx, job)(&err)

	err = db.session.Query(insertInfo, db.version, job, md5s, lcas, loaded, db.now()).WithContext(ctx).Exec()
	return jobs.Error.Wrap(err)
}

const insertInfo = `
	INSERT INTO job_info (version, job, md5s, lcas, loaded, updated_on)
	VALUES (?, ?, ?, ?, ?, ?)`

// counts returns the current counts of job, zero when absent.
func (db *DB) counts(ctx context.Context, job int64) (md5s, lcas int64, err error) {
	info, err := db.Info(ctx, job)
	if err != nil || info == nil {
		return 0, 0, err
	}
	return info.MD5Count, info.LCACount, nil
}

// newBatch returns a logged batch at quorum.
func (db *DB) newBatch(ctx context.Context) *gocql.Batch {
	batch := db.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.SetConsistency(gocql.Quorum)
	return batch
}

// InsertRows implements jobs.DB.
func (db *DB) InsertRows(ctx context.Context, job int64, rows []jobs.Row) (_ int64, err error) {
	defer mon.Task()(&ctx, job)(&err)

	md5s, lcas, err := db.counts(ctx, job)
	if err != nil {
		return 0, err
	}

	batch := db.newBatch(ctx)
	for _, row := range rows {
		if row.MD5 == "" {
			return 0, jobs.Error.New("row without md5")
		}
		batch.Query(`
			INSERT INTO job_md5s (version, job, md5, abundance, exp_avg, ident_avg, len_avg, seek, length)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			db.version, job, row.MD5, row.Abundance, row.ExpAvg, row.IdentAvg, row.LenAvg, row.Seek, row.Length)
	}

	md5s += int64(len(rows))
	batch.Query(insertInfo, db.version, job, md5s, lcas, false, db.now())

	if err := db.session.ExecuteBatch(batch); err != nil {
		return 0, jobs.Error.Wrap(err)
	}
	return md5s, nil
}

// InsertLCARows implements jobs.DB.
func (db *DB) InsertLCARows(ctx context.Context, job int64, rows []jobs.LCARow) (_ int64, err error) {
	defer mon.Task()(&ctx, job)(&err)

	md5s, lcas, err := db.counts(ctx, job)
	if err != nil {
		return 0, err
	}

	batch := db.newBatch(ctx)
	for _, row := range rows {
		if row.LCA == "" {
			return 0, jobs.Error.New("row without lca")
		}
		batch.Query(`
			INSERT INTO job_lcas (version, job, lca, abundance, exp_avg, ident_avg, len_avg, md5s, level)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			db.version, job, row.LCA, row.Abundance, row.ExpAvg, row.IdentAvg, row.LenAvg, row.MD5s, row.Level)
	}

	lcas += int64(len(rows))
	batch.Query(insertInfo, db.version, job, md5s, lcas, false, db.now())

	if err := db.session.ExecuteBatch(batch); err != nil {
		return 0, jobs.Error.Wrap(err)
	}
	return lcas, nil
}

// where appends filter conditions to a partition restricted statement.
func where(stmt string, args []interface{}, filter jobs.Filter) (string, []interface{}) {
	conditions := filter.Conditions()
	for _, condition := range conditions {
		stmt += " AND " + string(condition.Column) + " " + condition.Operator + " ?"
		args = append(args, condition.Value)
	}
	if len(conditions) > 0 {
		stmt += " ALLOW FILTERING"
	}
	return stmt, args
}

// IterateRows implements jobs.DB.
func (db *DB) IterateRows(ctx context.Context, job int64, opts jobs.IterateOptions, fn func(context.Context, jobs.Row) error) (err error) {
	defer mon.Task()(&ctx, job)(&err)

	columns := opts.ColumnList()
	names := make([]string, len(columns))
	var row jobs.Row
	dest := make([]interface{}, len(columns))
	for i, column := range columns {
		names[i] = string(column)
		dest[i], err = jobs.Field(&row, column)
		if err != nil {
			return err
		}
	}

	stmt, args := where(
		"SELECT "+strings.Join(names, ", ")+" FROM job_md5s WHERE version = ? AND job = ?",
		[]interface{}{db.version, job}, opts.Filter)

	iter := db.session.Query(stmt, args...).WithContext(ctx).Iter()
	for iter.Scan(dest...) {
		out := row
		if opts.Swap {
			out = out.Swapped()
		}
		if err := fn(ctx, out); err != nil {
			return errs.Combine(err, jobs.Error.Wrap(iter.Close()))
		}
		row = jobs.Row{}
	}
	return jobs.Error.Wrap(iter.Close())
}

// IterateLCARows implements jobs.DB.
func (db *DB) IterateLCARows(ctx context.Context, job int64, fn func(context.Context, jobs.LCARow) error) (err error) {
	defer mon.Task()(&ctx, job)(&err)

	iter := db.session.Query(`
		SELECT lca, abundance, exp_avg, ident_avg, len_avg, md5s, level FROM job_lcas
		WHERE version = ? AND job = ?`, db.version, job).WithContext(ctx).Iter()

	var row jobs.LCARow
	for iter.Scan(&row.LCA, &row.Abundance, &row.ExpAvg, &row.IdentAvg, &row.LenAvg, &row.MD5s, &row.Level) {
		if err := fn(ctx, row); err != nil {
			return errs.Combine(err, jobs.Error.Wrap(iter.Close()))
		}
	}
	return jobs.Error.Wrap(iter.Close())
}

// RangeFor implements jobs.DB.
func (db *DB) RangeFor(ctx context.Context, job int64, md5 string) (_ jobs.Range, ok bool, err error) {
	defer mon.Task()(&ctx, job)(&err)

	var r jobs.Range
	err = db.session.Query(`
		SELECT seek, length FROM job_md5s
		WHERE version = ? AND job = ? AND md5 = ?`, db.version, job, md5).
		WithContext(ctx).
		Scan(&r.Seek, &r.Length)
	if err != nil {
		if err == gocql.ErrNotFound {
			return jobs.Range{}, false, nil
		}
		return jobs.Range{}, false, jobs.Error.Wrap(err)
	}
	if r.Length == 0 {
		return jobs.Range{}, false, nil
	}
	return r, true, nil
}

// Ranges implements jobs.DB.
func (db *DB) Ranges(ctx context.Context, job int64, md5s []string, filter jobs.Filter) (_ []jobs.Range, err error) {
	defer mon.Task()(&ctx, job)(&err)

	stmt := "SELECT seek, length FROM job_md5s WHERE version = ? AND job = ?"
	args := []interface{}{db.version, job}
	if len(md5s) > 0 {
		stmt += " AND md5 IN ?"
		args = append(args, md5s)
	} else {
		stmt, args = where(stmt, args, filter)
	}

	var ranges []jobs.Range
	var r jobs.Range
	iter := db.session.Query(stmt, args...).WithContext(ctx).Iter()
	for iter.Scan(&r.Seek, &r.Length) {
		ranges = append(ranges, r)
	}
	if err := iter.Close(); err != nil {
		return nil, jobs.Error.Wrap(err)
	}
	return jobs.MergeRanges(ranges), nil
}

// RowCount implements jobs.DB.
func (db *DB) RowCount(ctx context.Context, job int64, table jobs.Table, limit int64) (_ int64, err error) {
	defer mon.Task()(&ctx, job)(&err)

	name, err := table.Name()
	if err != nil {
		return 0, err
	}

	var count int64
	if limit <= 0 {
		err = db.session.Query("SELECT count(*) FROM "+name+" WHERE version = ? AND job = ?", db.version, job).
			WithContext(ctx).
			Scan(&count)
		return count, jobs.Error.Wrap(err)
	}

	iter := db.session.Query("SELECT job FROM "+name+" WHERE version = ? AND job = ? LIMIT ?", db.version, job, int(limit)).
		WithContext(ctx).
		Iter()
	var ignored int64
	for iter.Scan(&ignored) {
		count++
	}
	return count, jobs.Error.Wrap(iter.Close())
}

// DeleteJob implements jobs.DB.
func (db *DB) DeleteJob(ctx context.Context, job int64) (err error) {
	defer mon.Task()(&ctx, job)(&err)

	info, err := db.Info(ctx, job)
	if err != nil || info == nil {
		return err
	}

	batch := db.newBatch(ctx)
	batch.Query(`UPDATE job_info SET loaded = false WHERE version = ? AND job = ?`, db.version, job)
	batch.Query(`DELETE FROM job_md5s WHERE version = ? AND job = ?`, db.version, job)
	batch.Query(`DELETE FROM job_lcas WHERE version = ? AND job = ?`, db.version, job)

	if err := db.session.ExecuteBatch(batch); err != nil {
		return jobs.Error.Wrap(err)
	}
	db.log.Debug("deleted job rows", zap.Int64("job", job), zap.Int("version", db.version))
	return nil
}
