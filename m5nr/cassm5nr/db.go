// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cassm5nr implements m5nr.DB on a wide-column cluster.
package cassm5nr

import (
	"context"
	"strconv"

	"github.com/gocql/gocql"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/m5nr"
	"storj.io/abundance/private/cassconn"
)

var mon = monkit.Package()

// DB implements m5nr.DB on the keyspace of one reference version.
type DB struct {
	log     *zap.Logger
	session *gocql.Session
}

var _ m5nr.DB = (*DB)(nil)

// Open returns the reference tables of config.Version, using a session from pool.
func Open(ctx context.Context, log *zap.Logger, pool *cassconn.Pool, config m5nr.Config) (_ *DB, err error) {
	defer mon.Task()(&ctx)(&err)

	return OpenKeyspace(ctx, log, pool, config.Keyspace())
}

// OpenKeyspace returns the reference tables in keyspace.
func OpenKeyspace(ctx context.Context, log *zap.Logger, pool *cassconn.Pool, keyspace string) (_ *DB, err error) {
	defer mon.Task()(&ctx)(&err)

	session, err := pool.Session(ctx, keyspace)
	if err != nil {
		return nil, m5nr.Error.Wrap(err)
	}
	return &DB{log: log, session: session}, nil
}

const (
	recordColumns = `md5, source, is_protein, single, lca, accession, function, organism`
	indexColumns  = `md5, source, is_protein, single, accession, function, organism`
)

// IterateRecordsByMD5 implements m5nr.DB.
func (db *DB) IterateRecordsByMD5(ctx context.Context, md5s []string, opts m5nr.LookupOptions, fn func(context.Context, m5nr.Record) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.Index {
		return db.iterate(ctx, "SELECT "+indexColumns+" FROM midx_annotation WHERE md5 IN ?", md5s, opts.Source, false, scanIndex, fn)
	}
	return db.iterate(ctx, "SELECT "+recordColumns+" FROM md5_annotation WHERE md5 IN ?", md5s, opts.Source, false, scanRecord, fn)
}

// IterateRecordsByID implements m5nr.DB.
func (db *DB) IterateRecordsByID(ctx context.Context, ids []int64, opts m5nr.LookupOptions, fn func(context.Context, m5nr.Record) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.Index {
		return db.iterate(ctx, "SELECT id, "+indexColumns+" FROM index_annotation WHERE id IN ?", ids, opts.Source, true, scanIndex, fn)
	}
	return db.iterate(ctx, "SELECT id, "+recordColumns+" FROM id_annotation WHERE id IN ?", ids, opts.Source, true, scanRecord, fn)
}

type scanner func(iter *gocql.Iter, record *m5nr.Record, withID bool) bool

func (db *DB) iterate(ctx context.Context, stmt string, keys interface{}, source string, withID bool, scan scanner, fn func(context.Context, m5nr.Record) error) error {
	args := []interface{}{keys}
	if source != "" {
		stmt += " AND source = ?"
		args = append(args, source)
	}

	iter := db.session.Query(stmt, args...).WithContext(ctx).Iter()
	for {
		var record m5nr.Record
		if !scan(iter, &record, withID) {
			break
		}
		if err := fn(ctx, record); err != nil {
			return errs.Combine(err, m5nr.Error.Wrap(iter.Close()))
		}
	}
	return m5nr.Error.Wrap(iter.Close())
}

func scanRecord(iter *gocql.Iter, record *m5nr.Record, withID bool) bool {
	dest := []interface{}{&record.MD5, &record.Source, &record.IsProtein, &record.Single, &record.LCA, &record.Accession, &record.Function, &record.Organism}
	if withID {
		dest = append([]interface{}{&record.ID}, dest...)
	}
	return iter.Scan(dest...)
}

// scanIndex reads a condensed record, formatting the numeric identifiers.
func scanIndex(iter *gocql.Iter, record *m5nr.Record, withID bool) bool {
	var single int64
	var functions, organisms []int64
	dest := []interface{}{&record.MD5, &record.Source, &record.IsProtein, &single, &record.Accession, &functions, &organisms}
	if withID {
		dest = append([]interface{}{&record.ID}, dest...)
	}
	if !iter.Scan(dest...) {
		return false
	}
	if single != 0 {
		record.Single = strconv.FormatInt(single, 10)
	}
	record.Function = formatIDs(functions)
	record.Organism = formatIDs(organisms)
	return true
}

func formatIDs(ids []int64) []string {
	if len(ids) == 0 {
		return nil
	}
	formatted := make([]string, len(ids))
	for i, id := range ids {
		formatted[i] = strconv.FormatInt(id, 10)
	}
	return formatted
}

// TaxonomyHierarchy implements m5nr.DB.
func (db *DB) TaxonomyHierarchy(ctx context.Context) (_ map[string][]string, err error) {
	defer mon.Task()(&ctx)(&err)

	hierarchy := map[string][]string{}
	iter := db.session.Query(`
		SELECT name, tax_domain, tax_phylum, tax_class, tax_order, tax_family, tax_genus, tax_species
		FROM organisms_ncbi`).WithContext(ctx).Iter()

	var name string
	levels := make([]string, len(m5nr.TaxonomyLevels))
	dest := []interface{}{&name}
	for i := range levels {
		dest = append(dest, &levels[i])
	}
	for iter.Scan(dest...) {
		hierarchy[name] = append([]string(nil), levels...)
	}
	if err := iter.Close(); err != nil {
		return nil, m5nr.Error.Wrap(err)
	}
	return hierarchy, nil
}

// OntologyHierarchy implements m5nr.DB.
func (db *DB) OntologyHierarchy(ctx context.Context, source string) (_ map[string]map[string][]string, err error) {
	defer mon.Task()(&ctx)(&err)

	stmt := `SELECT source, name, level1, level2, level3, level4 FROM ontologies`
	var args []interface{}
	if source != "" {
		stmt += ` WHERE source = ?`
		args = append(args, source)
	}

	hierarchy := map[string]map[string][]string{}
	iter := db.session.Query(stmt, args...).WithContext(ctx).Iter()

	var src, name string
	levels := make([]string, len(m5nr.OntologyLevels))
	for iter.Scan(&src, &name, &levels[0], &levels[1], &levels[2], &levels[3]) {
		if hierarchy[src] == nil {
			hierarchy[src] = map[string][]string{}
		}
		hierarchy[src][name] = append([]string(nil), levels...)
	}
	if err := iter.Close(); err != nil {
		return nil, m5nr.Error.Wrap(err)
	}
	return hierarchy, nil
}

// IterateLevel implements m5nr.DB.
func (db *DB) IterateLevel(ctx context.Context, kind m5nr.Kind, level, source string, fn func(leaf, ancestor string) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	depth, err := kind.Depth(level)
	if err != nil {
		return err
	}

	var iter *gocql.Iter
	switch kind {
	case m5nr.Organism:
		column := "tax_" + m5nr.TaxonomyLevels[depth]
		iter = db.session.Query(`SELECT name, ` + column + ` FROM ` + column).WithContext(ctx).Iter()
	case m5nr.Ontology:
		column := m5nr.OntologyLevels[depth]
		iter = db.session.Query(`SELECT name, `+column+` FROM ont_`+column+` WHERE source = ?`, source).WithContext(ctx).Iter()
	}

	var leaf, ancestor string
	for iter.Scan(&leaf, &ancestor) {
		if err := fn(leaf, ancestor); err != nil {
			return errs.Combine(err, m5nr.Error.Wrap(iter.Close()))
		}
	}
	return m5nr.Error.Wrap(iter.Close())
}
