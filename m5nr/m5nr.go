// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package m5nr reads the versioned reference annotation store.
//
// The store maps content hashes to their organism, function and ontology
// annotations, and holds the taxonomy and ontology hierarchies used to roll
// leaf labels up to coarser reporting levels.
package m5nr

import (
	"context"
	"fmt"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	// Error is the error class for this package.
	Error = errs.Class("m5nr")

	mon = monkit.Package()
)

// Config contains configurable values for the reference store.
type Config struct {
	Version    int    `help:"reference store version" default:"1"`
	Ontologies string `help:"comma separated list of sources whose accessions are ontology identifiers" default:"Subsystems,NOG,COG,KO"`
}

// Keyspace returns the keyspace holding reference version.
func (config Config) Keyspace() string {
	return fmt.Sprintf("m5nr_v%d", config.Version)
}

// OntologySources returns the configured ontology sources.
func (config Config) OntologySources() []string {
	var sources []string
	for _, source := range strings.Split(config.Ontologies, ",") {
		if source = strings.TrimSpace(source); source != "" {
			sources = append(sources, source)
		}
	}
	return sources
}

// Record is the annotation of one content hash in one source.
//
// Records read from the condensed index tables carry numeric identifiers,
// formatted as decimal strings, in place of organism and function names.
type Record struct {
	MD5       string
	ID        int64
	Source    string
	IsProtein bool
	// Single is the best organism hit.
	Single    string
	LCA       []string
	Accession []string
	Function  []string
	Organism  []string
}

// LookupOptions restricts a record lookup.
type LookupOptions struct {
	// Source restricts records to one annotation source when set.
	Source string
	// Index reads the condensed index tables.
	Index bool
}

// Kind is the kind of a hierarchy.
type Kind string

const (
	// Organism is the taxonomy.
	Organism = Kind("organism")
	// Ontology is a functional ontology.
	Ontology = Kind("ontology")
)

// TaxonomyLevels are the levels of the taxonomy, from the root.
var TaxonomyLevels = []string{"domain", "phylum", "class", "order", "family", "genus", "species"}

// LCALevels are the depths of a consensus taxon; strain is only ever
// reached through a consensus.
var LCALevels = []string{"domain", "phylum", "class", "order", "family", "genus", "species", "strain"}

// OntologyLevels are the levels of an ontology, from the root.
var OntologyLevels = []string{"level1", "level2", "level3", "level4"}

// Levels returns the levels of kind.
func (kind Kind) Levels() []string {
	switch kind {
	case Organism:
		return TaxonomyLevels
	case Ontology:
		return OntologyLevels
	default:
		return nil
	}
}

// Depth returns the index of level in the hierarchy of kind.
func (kind Kind) Depth(level string) (int, error) {
	level = strings.ToLower(level)
	for i, candidate := range kind.Levels() {
		if candidate == level {
			return i, nil
		}
	}
	return 0, Error.New("invalid %s level %q", string(kind), level)
}

// LCADepth returns the consensus depth of level, 0 for domain through 7 for strain.
func LCADepth(level string) (int, error) {
	level = strings.ToLower(level)
	for i, candidate := range LCALevels {
		if candidate == level {
			return i, nil
		}
	}
	return 0, Error.New("invalid lca level %q", level)
}

// DB is access to the tables of one reference version.
type DB interface {
	// IterateRecordsByMD5 calls fn for every record of the given hashes.
	IterateRecordsByMD5(ctx context.Context, md5s []string, opts LookupOptions, fn func(context.Context, Record) error) error
	// IterateRecordsByID calls fn for every record of the given numeric ids.
	IterateRecordsByID(ctx context.Context, ids []int64, opts LookupOptions, fn func(context.Context, Record) error) error

	// TaxonomyHierarchy maps every organism to its ancestors, domain through species.
	TaxonomyHierarchy(ctx context.Context) (map[string][]string, error)
	// OntologyHierarchy maps source to accession to its ancestors, level1
	// through level4. An empty source returns every source.
	OntologyHierarchy(ctx context.Context, source string) (map[string]map[string][]string, error)

	// IterateLevel calls fn with every leaf and its ancestor at level.
	// Ontology levels are scanned within source.
	IterateLevel(ctx context.Context, kind Kind, level, source string, fn func(leaf, ancestor string) error) error
}
