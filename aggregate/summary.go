// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr"
)

// skipDomain matches organisms that are not counted at domain level.
var skipDomain = regexp.MustCompile(`^(?:other|unknown|unclassified)`)

// SummaryRequest selects the totals of a summary.
type SummaryRequest struct {
	Job int64
	// Levels are the taxonomy levels organisms are totaled at.
	Levels    []string
	Functions bool
	Ontology  bool
	Swap      bool
}

// Summary holds the abundance totals of one job.
type Summary struct {
	Job     int64 `json:"job"`
	Queried int64 `json:"total"`
	// Organisms maps level to taxon to abundance.
	Organisms map[string]map[string]int64 `json:"organism,omitempty"`
	// Functions maps function name to abundance.
	Functions map[string]int64 `json:"function,omitempty"`
	// Ontologies maps source to level1 category to abundance.
	Ontologies map[string]map[string]int64 `json:"ontology,omitempty"`
}

// Summarize totals the abundance of job by organism, function and top
// level ontology category.
func (engine *Engine) Summarize(ctx context.Context, req SummaryRequest) (_ *Summary, err error) {
	defer mon.Task()(&ctx, req.Job)(&err)

	summary := &Summary{Job: req.Job}

	type level struct {
		name  string
		depth int
	}
	var levels []level
	for _, name := range req.Levels {
		depth, err := m5nr.Organism.Depth(name)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level{name: m5nr.TaxonomyLevels[depth], depth: depth})
	}

	// ancestors returns the ancestors of an organism indexed like levels
	var ancestors func(organism string) ([]string, bool)
	switch {
	case len(levels) == 1:
		grouping, err := engine.reference.GroupingMap(ctx, m5nr.Organism, levels[0].name, "")
		if err != nil {
			return nil, err
		}
		ancestors = func(organism string) ([]string, bool) {
			group, ok := grouping[organism]
			return []string{group}, ok
		}
	case len(levels) > 1:
		hierarchy, err := engine.reference.TaxonomyHierarchy(ctx)
		if err != nil {
			return nil, err
		}
		ancestors = func(organism string) ([]string, bool) {
			all, ok := hierarchy[organism]
			if !ok {
				return nil, false
			}
			selected := make([]string, len(levels))
			for i, level := range levels {
				if level.depth < len(all) {
					selected[i] = all[level.depth]
				}
			}
			return selected, true
		}
	}
	if len(levels) > 0 {
		summary.Organisms = map[string]map[string]int64{}
		for _, level := range levels {
			summary.Organisms[level.name] = map[string]int64{}
		}
	}

	var ontology map[string]map[string][]string
	if req.Ontology {
		ontology, err = engine.reference.OntologyHierarchy(ctx, "")
		if err != nil {
			return nil, err
		}
		summary.Ontologies = map[string]map[string]int64{}
	}
	if req.Functions {
		summary.Functions = map[string]int64{}
	}

	s := engine.newStream(nil)
	opts := jobs.IterateOptions{Columns: []jobs.Column{jobs.ColumnMD5, jobs.ColumnAbundance}, Swap: req.Swap}

	err = s.join(ctx, req.Job, opts, m5nr.LookupOptions{}, nil, func(ctx context.Context, row jobs.Row, records []m5nr.Record) error {
		for _, record := range records {
			if req.Functions {
				for _, function := range record.Function {
					summary.Functions[function] += row.Abundance
				}
			}

			if accessions, ok := ontology[record.Source]; ok && len(record.Accession) > 0 {
				for _, accession := range record.Accession {
					if path, ok := accessions[accession]; ok && len(path) > 0 {
						if summary.Ontologies[record.Source] == nil {
							summary.Ontologies[record.Source] = map[string]int64{}
						}
						summary.Ontologies[record.Source][path[0]] += row.Abundance
					}
				}
			}

			if ancestors == nil {
				continue
			}
			for _, organism := range record.Organism {
				groups, ok := ancestors(organism)
				if !ok {
					continue
				}
				skip := skipDomain.MatchString(organism)
				for i, level := range levels {
					if level.depth == 0 && skip {
						continue
					}
					summary.Organisms[level.name][groups[i]] += row.Abundance
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary.Queried = s.queried
	engine.log.Info("summarized", zap.Int64("job", req.Job), zap.Int64("queried", s.queried), zap.Int64("found", s.found))
	return summary, nil
}
