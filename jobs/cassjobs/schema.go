// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package cassjobs

import (
	"context"

	"go.uber.org/zap"

	"storj.io/abundance/jobs"
)

// Schema lists the statements creating the job tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS job_info (
		version int,
		job int,
		md5s bigint,
		lcas bigint,
		loaded boolean,
		updated_on timestamp,
		PRIMARY KEY ((version, job))
	)`,
	`CREATE TABLE IF NOT EXISTS job_md5s (
		version int,
		job int,
		md5 text,
		abundance bigint,
		exp_avg double,
		ident_avg double,
		len_avg double,
		seek bigint,
		length bigint,
		PRIMARY KEY ((version, job), md5)
	)`,
	`CREATE TABLE IF NOT EXISTS job_lcas (
		version int,
		job int,
		lca text,
		abundance bigint,
		exp_avg double,
		ident_avg double,
		len_avg double,
		md5s bigint,
		level int,
		PRIMARY KEY ((version, job), lca)
	)`,
}

// Migrate creates the job tables when they do not exist.
func (db *DB) Migrate(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, stmt := range Schema {
		if err := db.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return jobs.Error.Wrap(err)
		}
	}
	db.log.Info("job tables migrated", zap.Int("tables", len(Schema)))
	return nil
}
