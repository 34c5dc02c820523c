// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package testjobs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/abundance/jobs"
	"storj.io/abundance/jobs/jobstest"
	"storj.io/abundance/jobs/testjobs"
	"storj.io/common/testcontext"
)

func TestSuite(t *testing.T) {
	jobstest.RunTests(t, testjobs.New())
}

func TestInsertIsAtomic(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	db := testjobs.New()
	rows := jobstest.Rows()
	rows[2].MD5 = ""

	_, err := db.InsertRows(ctx, 1, rows)
	require.Error(t, err)

	count, err := db.RowCount(ctx, 1, jobs.TableMD5, 0)
	require.NoError(t, err)
	require.Zero(t, count)

	has, err := jobs.HasJob(ctx, db, 1)
	require.NoError(t, err)
	require.False(t, has)
}
