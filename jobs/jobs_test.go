// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package jobs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storj.io/abundance/jobs"
)

func TestMergeRanges(t *testing.T) {
	for _, tt := range []struct {
		name string
		in   []jobs.Range
		out  []jobs.Range
	}{
		{"empty", nil, []jobs.Range{}},
		{"zero length", []jobs.Range{{Seek: 5, Length: 0}}, []jobs.Range{}},
		{"adjacent", []jobs.Range{{Seek: 10, Length: 5}, {Seek: 0, Length: 10}, {Seek: 15, Length: 1}}, []jobs.Range{{Seek: 0, Length: 16}}},
		{"gap", []jobs.Range{{Seek: 20, Length: 5}, {Seek: 0, Length: 10}}, []jobs.Range{{Seek: 0, Length: 10}, {Seek: 20, Length: 5}}},
		{"zero length between", []jobs.Range{{Seek: 0, Length: 10}, {Seek: 10, Length: 0}, {Seek: 10, Length: 2}}, []jobs.Range{{Seek: 0, Length: 12}}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, jobs.MergeRanges(tt.in))
		})
	}
}

func TestFilterMatch(t *testing.T) {
	row := jobs.Row{ExpAvg: -10, IdentAvg: 80, LenAvg: 30}

	assert.True(t, jobs.Filter{}.Match(row))
	assert.True(t, jobs.Filter{}.IsZero())
	assert.True(t, jobs.Filter{EValue: 10}.Match(row))
	assert.False(t, jobs.Filter{EValue: 11}.Match(row))
	assert.True(t, jobs.Filter{Identity: 80}.Match(row))
	assert.False(t, jobs.Filter{Identity: 81}.Match(row))
	assert.True(t, jobs.Filter{Length: 30}.Match(row))
	assert.False(t, jobs.Filter{Length: 31}.Match(row))
	assert.False(t, jobs.Filter{EValue: 5, Identity: 90}.Match(row))

	conditions := jobs.Filter{EValue: 5, Length: 20}.Conditions()
	require.Len(t, conditions, 2)
	assert.Equal(t, jobs.Condition{Column: jobs.ColumnExpAvg, Operator: "<=", Value: -5}, conditions[0])
	assert.Equal(t, jobs.Condition{Column: jobs.ColumnLenAvg, Operator: ">=", Value: 20}, conditions[1])
}

func TestProject(t *testing.T) {
	row := jobs.Row{MD5: "x", Abundance: 3, ExpAvg: -1, IdentAvg: 2, LenAvg: 3, Seek: 4, Length: 5}

	projected, err := jobs.Project(row, []jobs.Column{jobs.ColumnSeek, jobs.ColumnLength})
	require.NoError(t, err)
	assert.Equal(t, jobs.Row{Seek: 4, Length: 5}, projected)

	_, err = jobs.Project(row, []jobs.Column{"bogus"})
	require.Error(t, err)
	assert.True(t, jobs.Error.Has(err))

	assert.Equal(t, jobs.Row{MD5: "x", IdentAvg: 3, LenAvg: 2}, jobs.Row{MD5: "x", IdentAvg: 2, LenAvg: 3}.Swapped())
}

func TestTableName(t *testing.T) {
	name, err := jobs.TableMD5.Name()
	require.NoError(t, err)
	assert.Equal(t, "job_md5s", name)

	name, err = jobs.TableLCA.Name()
	require.NoError(t, err)
	assert.Equal(t, "job_lcas", name)

	_, err = jobs.Table("x").Name()
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", jobs.StateAbsent.String())
	assert.Equal(t, "loading", jobs.StateLoading.String())
	assert.Equal(t, "loaded", jobs.StateLoaded.String())
	assert.Equal(t, "unloaded", jobs.StateUnloaded.String())
}
