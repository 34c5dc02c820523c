// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package m5nr

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// GroupingMap maps a leaf label to its ancestor at one level.
type GroupingMap map[string]string

// FilterList is a sorted set of leaf labels.
type FilterList []string

// Set returns the labels as a set.
func (list FilterList) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, leaf := range list {
		set[leaf] = struct{}{}
	}
	return set
}

// Hierarchy builds lookup tables from the reference hierarchies.
type Hierarchy interface {
	TaxonomyHierarchy(ctx context.Context) (map[string][]string, error)
	OntologyHierarchy(ctx context.Context, source string) (map[string]map[string][]string, error)
	// GroupingMap maps every leaf of kind to its ancestor at level.
	GroupingMap(ctx context.Context, kind Kind, level, source string) (GroupingMap, error)
	// LeavesByLevel returns the leaves whose ancestor at level contains
	// substring, ignoring case. An empty substring returns every leaf.
	LeavesByLevel(ctx context.Context, kind Kind, level, source, substring string) (FilterList, error)
}

// Reader is everything the aggregation needs from the reference store.
type Reader interface {
	Hierarchy
	// RecordsByHash calls fn for every record of the given hashes.
	RecordsByHash(ctx context.Context, md5s []string, opts LookupOptions, fn func(context.Context, Record) error) error
}

// Service answers reference queries from a DB.
//
// architecture: Service
type Service struct {
	log    *zap.Logger
	db     DB
	config Config
}

var _ Reader = (*Service)(nil)

// NewService creates a reference service.
func NewService(log *zap.Logger, db DB, config Config) *Service {
	return &Service{
		log:    log,
		db:     db,
		config: config,
	}
}

// Config returns the service configuration.
func (service *Service) Config() Config { return service.config }

// RecordsByHash implements Reader.
func (service *Service) RecordsByHash(ctx context.Context, md5s []string, opts LookupOptions, fn func(context.Context, Record) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	if len(md5s) == 0 {
		return nil
	}
	return service.db.IterateRecordsByMD5(ctx, md5s, opts, fn)
}

// RecordsByID calls fn for every record of the given numeric ids.
func (service *Service) RecordsByID(ctx context.Context, ids []int64, opts LookupOptions, fn func(context.Context, Record) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	if len(ids) == 0 {
		return nil
	}
	return service.db.IterateRecordsByID(ctx, ids, opts, fn)
}

// TaxonomyHierarchy implements Hierarchy.
func (service *Service) TaxonomyHierarchy(ctx context.Context) (_ map[string][]string, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.TaxonomyHierarchy(ctx)
}

// OntologyHierarchy implements Hierarchy.
func (service *Service) OntologyHierarchy(ctx context.Context, source string) (_ map[string]map[string][]string, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.OntologyHierarchy(ctx, source)
}

// GroupingMap implements Hierarchy.
func (service *Service) GroupingMap(ctx context.Context, kind Kind, level, source string) (_ GroupingMap, err error) {
	defer mon.Task()(&ctx)(&err)

	level, err = service.checkLevel(kind, level, source)
	if err != nil {
		return nil, err
	}

	grouping := GroupingMap{}
	err = service.db.IterateLevel(ctx, kind, level, source, func(leaf, ancestor string) error {
		grouping[leaf] = ancestor
		return nil
	})
	if err != nil {
		return nil, err
	}
	service.log.Debug("grouping map loaded",
		zap.String("kind", string(kind)), zap.String("level", level), zap.Int("leaves", len(grouping)))
	return grouping, nil
}

// LeavesByLevel implements Hierarchy.
func (service *Service) LeavesByLevel(ctx context.Context, kind Kind, level, source, substring string) (_ FilterList, err error) {
	defer mon.Task()(&ctx)(&err)

	level, err = service.checkLevel(kind, level, source)
	if err != nil {
		return nil, err
	}

	match := strings.ToLower(substring)
	leaves := map[string]struct{}{}
	err = service.db.IterateLevel(ctx, kind, level, source, func(leaf, ancestor string) error {
		if match == "" || strings.Contains(strings.ToLower(ancestor), match) {
			leaves[leaf] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	list := make(FilterList, 0, len(leaves))
	for leaf := range leaves {
		list = append(list, leaf)
	}
	sort.Strings(list)
	return list, nil
}

// IsOntology returns whether source is one of the configured ontology sources.
func (service *Service) IsOntology(source string) bool {
	return IsOntologySource(service.config.OntologySources(), source)
}

// IsOntologySource returns whether source is in sources.
func IsOntologySource(sources []string, source string) bool {
	for _, candidate := range sources {
		if candidate == source {
			return true
		}
	}
	return false
}

func (service *Service) checkLevel(kind Kind, level, source string) (string, error) {
	level = strings.ToLower(level)
	if _, err := kind.Depth(level); err != nil {
		return "", err
	}
	if kind == Ontology && source == "" {
		return "", Error.New("ontology level %q requires a source", level)
	}
	return level, nil
}
