// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package cassm5nr

import (
	"context"
	"fmt"

	"storj.io/abundance/m5nr"
)

const compaction = ` WITH compaction = { 'class': 'LeveledCompactionStrategy' }`

// Schema returns the statements creating the reference tables.
func Schema() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS md5_annotation (
			md5 text, source text, is_protein boolean, single text,
			lca list<text>, accession list<text>, function list<text>, organism list<text>,
			PRIMARY KEY (md5, source))` + compaction,
		`CREATE TABLE IF NOT EXISTS midx_annotation (
			md5 text, source text, is_protein boolean, single int,
			accession list<text>, function list<int>, organism list<int>,
			PRIMARY KEY (md5, source))` + compaction,
		`CREATE TABLE IF NOT EXISTS id_annotation (
			id int, source text, md5 text, is_protein boolean, single text,
			lca list<text>, accession list<text>, function list<text>, organism list<text>,
			PRIMARY KEY (id, source))` + compaction,
		`CREATE TABLE IF NOT EXISTS index_annotation (
			id int, source text, md5 text, is_protein boolean, single int,
			accession list<text>, function list<int>, organism list<int>,
			PRIMARY KEY (id, source))` + compaction,
		`CREATE TABLE IF NOT EXISTS ontologies (
			source text, name text, level1 text, level2 text, level3 text, level4 text,
			PRIMARY KEY (source, name))` + compaction,
		`CREATE TABLE IF NOT EXISTS organisms_ncbi (
			name text, tax_domain text, tax_phylum text, tax_class text, tax_order text,
			tax_family text, tax_genus text, tax_species text, ncbi_tax_id int,
			PRIMARY KEY (name))` + compaction,
	}
	for _, level := range m5nr.OntologyLevels {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ont_%[1]s (
			source text, %[1]s text, name text,
			PRIMARY KEY (source, %[1]s, name))`, level)+compaction)
	}
	for _, level := range m5nr.TaxonomyLevels {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tax_%[1]s (
			tax_%[1]s text, name text,
			PRIMARY KEY (tax_%[1]s, name))`, level)+compaction)
	}
	return stmts
}

// Migrate creates the reference tables when they do not exist. Loading the
// reference itself belongs to the ingestion tooling.
func (db *DB) Migrate(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, stmt := range Schema() {
		if err := db.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return m5nr.Error.Wrap(err)
		}
	}
	return nil
}
