// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testm5nr implements an in-memory m5nr.DB.
package testm5nr

import (
	"context"
	"sort"
	"sync"

	"storj.io/abundance/m5nr"
)

// DB is an in-memory m5nr.DB.
type DB struct {
	mu sync.Mutex

	records map[string][]m5nr.Record
	index   map[string][]m5nr.Record
	byID    map[int64][]m5nr.Record

	organisms map[string][]string
	ontology  map[string]map[string][]string

	lookups [][]string
}

var _ m5nr.DB = (*DB)(nil)

// New creates an empty reference store.
func New() *DB {
	return &DB{
		records:   map[string][]m5nr.Record{},
		index:     map[string][]m5nr.Record{},
		byID:      map[int64][]m5nr.Record{},
		organisms: map[string][]string{},
		ontology:  map[string]map[string][]string{},
	}
}

// AddRecord adds a record to the annotation tables. Records with a non-zero
// ID are also reachable by id.
func (db *DB) AddRecord(record m5nr.Record) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.records[record.MD5] = append(db.records[record.MD5], record)
	if record.ID != 0 {
		db.byID[record.ID] = append(db.byID[record.ID], record)
	}
}

// AddIndexRecord adds a record to the condensed index tables.
func (db *DB) AddIndexRecord(record m5nr.Record) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.index[record.MD5] = append(db.index[record.MD5], record)
}

// AddOrganism adds an organism with its ancestors, domain through species.
func (db *DB) AddOrganism(name string, ancestors ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.organisms[name] = ancestors
}

// AddAccession adds an ontology accession with its ancestors, level1 through level4.
func (db *DB) AddAccession(source, accession string, ancestors ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.ontology[source] == nil {
		db.ontology[source] = map[string][]string{}
	}
	db.ontology[source][accession] = ancestors
}

// Lookups returns the hash lists of every record lookup so far.
func (db *DB) Lookups() [][]string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([][]string(nil), db.lookups...)
}

func matching(records []m5nr.Record, source string) []m5nr.Record {
	var found []m5nr.Record
	for _, record := range records {
		if source == "" || record.Source == source {
			found = append(found, record)
		}
	}
	sort.SliceStable(found, func(i, k int) bool { return found[i].Source < found[k].Source })
	return found
}

// IterateRecordsByMD5 implements m5nr.DB.
func (db *DB) IterateRecordsByMD5(ctx context.Context, md5s []string, opts m5nr.LookupOptions, fn func(context.Context, m5nr.Record) error) error {
	db.mu.Lock()
	db.lookups = append(db.lookups, append([]string(nil), md5s...))
	table := db.records
	if opts.Index {
		table = db.index
	}
	var found []m5nr.Record
	for _, md5 := range md5s {
		found = append(found, matching(table[md5], opts.Source)...)
	}
	db.mu.Unlock()

	for _, record := range found {
		if err := fn(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// IterateRecordsByID implements m5nr.DB.
func (db *DB) IterateRecordsByID(ctx context.Context, ids []int64, opts m5nr.LookupOptions, fn func(context.Context, m5nr.Record) error) error {
	db.mu.Lock()
	var found []m5nr.Record
	for _, id := range ids {
		found = append(found, matching(db.byID[id], opts.Source)...)
	}
	db.mu.Unlock()

	for _, record := range found {
		if err := fn(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// TaxonomyHierarchy implements m5nr.DB.
func (db *DB) TaxonomyHierarchy(ctx context.Context) (map[string][]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	hierarchy := make(map[string][]string, len(db.organisms))
	for name, ancestors := range db.organisms {
		hierarchy[name] = append([]string(nil), ancestors...)
	}
	return hierarchy, nil
}

// OntologyHierarchy implements m5nr.DB.
func (db *DB) OntologyHierarchy(ctx context.Context, source string) (map[string]map[string][]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	hierarchy := map[string]map[string][]string{}
	for src, accessions := range db.ontology {
		if source != "" && src != source {
			continue
		}
		hierarchy[src] = map[string][]string{}
		for accession, ancestors := range accessions {
			hierarchy[src][accession] = append([]string(nil), ancestors...)
		}
	}
	return hierarchy, nil
}

// IterateLevel implements m5nr.DB.
func (db *DB) IterateLevel(ctx context.Context, kind m5nr.Kind, level, source string, fn func(leaf, ancestor string) error) error {
	depth, err := kind.Depth(level)
	if err != nil {
		return err
	}

	db.mu.Lock()
	var leaves map[string][]string
	switch kind {
	case m5nr.Organism:
		leaves = db.organisms
	case m5nr.Ontology:
		leaves = db.ontology[source]
	}
	type pair struct{ leaf, ancestor string }
	var pairs []pair
	for leaf, ancestors := range leaves {
		if depth < len(ancestors) {
			pairs = append(pairs, pair{leaf, ancestors[depth]})
		}
	}
	db.mu.Unlock()

	sort.Slice(pairs, func(i, k int) bool { return pairs[i].leaf < pairs[k].leaf })
	for _, p := range pairs {
		if err := fn(p.leaf, p.ancestor); err != nil {
			return err
		}
	}
	return nil
}
