// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package jobs defines access to the per-job abundance tables.
//
// Every job has one Info row describing its load state and two row tables:
// one row per content hash (Row) and one row per consensus taxon (LCARow).
// All tables are partitioned by reference version and job id.
package jobs

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	// Error is the error class for this package.
	Error = errs.Class("jobs")

	mon = monkit.Package()
)

// Row is the abundance of one content hash within a job.
type Row struct {
	MD5       string
	Abundance int64
	// ExpAvg is the mean e-value exponent, stored negated so that better
	// hits are smaller.
	ExpAvg   float64
	IdentAvg float64
	LenAvg   float64
	// Seek and Length locate the hash in the job's raw alignment file.
	Seek   int64
	Length int64
}

// Swapped returns the row with identity and length exchanged.
func (row Row) Swapped() Row {
	row.IdentAvg, row.LenAvg = row.LenAvg, row.IdentAvg
	return row
}

// LCARow is the abundance of one consensus taxon within a job.
type LCARow struct {
	LCA       string
	Abundance int64
	ExpAvg    float64
	IdentAvg  float64
	LenAvg    float64
	// MD5s is the number of hashes that contributed to the taxon.
	MD5s int64
	// Level is the taxonomic depth, 0 for domain through 7 for strain.
	Level int
}

// Info is the state record of a job.
type Info struct {
	Job       int64
	MD5Count  int64
	LCACount  int64
	Loaded    bool
	UpdatedOn time.Time
}

// Table names one of the job row tables.
type Table string

const (
	// TableMD5 holds one Row per content hash.
	TableMD5 = Table("md5")
	// TableLCA holds one LCARow per consensus taxon.
	TableLCA = Table("lca")
)

// Name returns the name of the table in the store.
func (table Table) Name() (string, error) {
	switch table {
	case TableMD5:
		return "job_md5s", nil
	case TableLCA:
		return "job_lcas", nil
	default:
		return "", Error.New("unknown table %q", string(table))
	}
}

// Column names a Row column.
type Column string

// Row columns.
const (
	ColumnMD5       = Column("md5")
	ColumnAbundance = Column("abundance")
	ColumnExpAvg    = Column("exp_avg")
	ColumnIdentAvg  = Column("ident_avg")
	ColumnLenAvg    = Column("len_avg")
	ColumnSeek      = Column("seek")
	ColumnLength    = Column("length")
)

// AllColumns lists every Row column.
var AllColumns = []Column{ColumnMD5, ColumnAbundance, ColumnExpAvg, ColumnIdentAvg, ColumnLenAvg, ColumnSeek, ColumnLength}

// Field returns a pointer to the field of row holding column.
func Field(row *Row, column Column) (interface{}, error) {
	switch column {
	case ColumnMD5:
		return &row.MD5, nil
	case ColumnAbundance:
		return &row.Abundance, nil
	case ColumnExpAvg:
		return &row.ExpAvg, nil
	case ColumnIdentAvg:
		return &row.IdentAvg, nil
	case ColumnLenAvg:
		return &row.LenAvg, nil
	case ColumnSeek:
		return &row.Seek, nil
	case ColumnLength:
		return &row.Length, nil
	default:
		return nil, Error.New("unknown column %q", string(column))
	}
}

// Project returns a copy of row with only columns set.
func Project(row Row, columns []Column) (Row, error) {
	var projected Row
	for _, column := range columns {
		from, err := Field(&row, column)
		if err != nil {
			return Row{}, err
		}
		to, _ := Field(&projected, column)
		switch to := to.(type) {
		case *string:
			*to = *from.(*string)
		case *int64:
			*to = *from.(*int64)
		case *float64:
			*to = *from.(*float64)
		}
	}
	return projected, nil
}

// IterateOptions selects the rows and columns returned by IterateRows.
type IterateOptions struct {
	// Columns to read; empty reads every column.
	Columns []Column
	Filter  Filter
	// Swap exchanges identity and length in the returned rows. Some jobs
	// were loaded with those two columns in the wrong order.
	Swap bool
}

// ColumnList returns the selected columns.
func (opts IterateOptions) ColumnList() []Column {
	if len(opts.Columns) == 0 {
		return AllColumns
	}
	return opts.Columns
}

// DB is access to the job tables of one reference version.
//
// Inserts and deletes are atomic within a single call; there is no
// transaction spanning calls.
type DB interface {
	// Info returns the state record of job, or nil when the job is absent.
	Info(ctx context.Context, job int64) (*Info, error)
	// InsertInfo creates the state record with zero counts and loaded=false.
	InsertInfo(ctx context.Context, job int64) error
	// SetLoaded changes the loaded flag, keeping the counts.
	SetLoaded(ctx context.Context, job int64, loaded bool) error
	// UpdateCounts replaces the counts and loaded flag.
	UpdateCounts(ctx context.Context, job int64, md5s, lcas int64, loaded bool) error

	// InsertRows inserts rows and bumps the md5 count in one atomic batch,
	// returning the new md5 count. The job is marked not loaded.
	InsertRows(ctx context.Context, job int64, rows []Row) (int64, error)
	// InsertLCARows inserts rows and bumps the lca count in one atomic batch,
	// returning the new lca count. The job is marked not loaded.
	InsertLCARows(ctx context.Context, job int64, rows []LCARow) (int64, error)

	// IterateRows calls fn for every row matching opts.
	IterateRows(ctx context.Context, job int64, opts IterateOptions, fn func(context.Context, Row) error) error
	// IterateLCARows calls fn for every consensus taxon row.
	IterateLCARows(ctx context.Context, job int64, fn func(context.Context, LCARow) error) error

	// RangeFor returns the byte range of one hash; ok is false when the hash
	// is absent or its range is empty.
	RangeFor(ctx context.Context, job int64, md5 string) (_ Range, ok bool, _ error)
	// Ranges returns the merged byte ranges of the given hashes or, when
	// md5s is empty, of every row matching filter.
	Ranges(ctx context.Context, job int64, md5s []string, filter Filter) ([]Range, error)
	// RowCount counts the rows of table, stopping at limit when limit > 0.
	RowCount(ctx context.Context, job int64, table Table, limit int64) (int64, error)

	// DeleteJob marks the job not loaded and deletes all of its rows in one
	// atomic batch. The state record is kept. Deleting an absent job does nothing.
	DeleteJob(ctx context.Context, job int64) error
}
