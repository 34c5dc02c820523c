// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate

import (
	"context"
	"math"
	"strings"

	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr"
)

// cell accumulates the contributions to one matrix cell.
type cell struct {
	count int64
	sum   float64
}

// mean returns the rounded mean of the cell, 0 without contributions.
func (c cell) mean() float64 {
	if c.count == 0 {
		return 0
	}
	return math.Round(c.sum/float64(c.count)*1000) / 1000
}

// grid is a matrix whose rows are discovered while streaming.
type grid struct {
	columns int
	labels  []string
	index   map[string]int
	cells   [][]cell
}

func newGrid(columns int) *grid {
	return &grid{
		columns: columns,
		index:   map[string]int{},
	}
}

// add adds value to the cell of label in column, creating the row on first sight.
func (g *grid) add(label string, column int, value float64) {
	row, ok := g.index[label]
	if !ok {
		row = len(g.labels)
		g.index[label] = row
		g.labels = append(g.labels, label)
		g.cells = append(g.cells, make([]cell, g.columns))
	}
	g.cells[row][column].count++
	g.cells[row][column].sum += value
}

// finalize returns the cell sums, or the cell means when averaged.
func (g *grid) finalize(averaged bool) [][]float64 {
	data := make([][]float64, len(g.cells))
	for i, row := range g.cells {
		data[i] = make([]float64, len(row))
		for k, c := range row {
			if averaged {
				data[i][k] = c.mean()
			} else {
				data[i][k] = c.sum
			}
		}
	}
	return data
}

// labeler derives the group labels of a hash from its records.
type labeler func(records []m5nr.Record) []string

// isUnknownLCA reports whether a consensus name carries no information.
func isUnknownLCA(name string) bool {
	return name == "" || name == "-" || strings.HasPrefix(strings.ToLower(name), "unknown")
}

// labeler returns the label derivation of req.
func (engine *Engine) labeler(ctx context.Context, req *MatrixRequest) (labeler, error) {
	var grouping m5nr.GroupingMap
	mapped := func(label string) (string, bool) {
		if grouping == nil {
			return label, true
		}
		group, ok := grouping[label]
		return group, ok
	}

	switch req.Type {
	case FunctionMatrix:
		return func(records []m5nr.Record) []string {
			var labels []string
			for _, record := range records {
				labels = append(labels, record.Function...)
			}
			return labels
		}, nil

	case OntologyMatrix:
		if req.GroupLevel != "" {
			var err error
			grouping, err = engine.reference.GroupingMap(ctx, m5nr.Ontology, req.GroupLevel, req.Source)
			if err != nil {
				return nil, err
			}
		}
		return func(records []m5nr.Record) []string {
			var labels []string
			for _, record := range records {
				for _, accession := range record.Accession {
					if label, ok := mapped(accession); ok {
						labels = append(labels, label)
					}
				}
			}
			return labels
		}, nil

	case OrganismMatrix:
	default:
		return nil, Error.New("invalid matrix type %q", string(req.Type))
	}

	switch req.HitType {
	case LCAHit:
		depth := len(m5nr.LCALevels) - 1
		if req.GroupLevel != "" {
			var err error
			depth, err = m5nr.LCADepth(req.GroupLevel)
			if err != nil {
				return nil, err
			}
		}
		return func(records []m5nr.Record) []string {
			var labels []string
			for _, record := range records {
				if depth < len(record.LCA) && !isUnknownLCA(record.LCA[depth]) {
					labels = append(labels, record.LCA[depth])
				}
			}
			return labels
		}, nil

	case AllHits, SingleHit:
		if req.GroupLevel != "" {
			var err error
			grouping, err = engine.reference.GroupingMap(ctx, m5nr.Organism, req.GroupLevel, "")
			if err != nil {
				return nil, err
			}
		}
		single := req.HitType == SingleHit
		return func(records []m5nr.Record) []string {
			var labels []string
			for _, record := range records {
				organisms := record.Organism
				if single {
					organisms = nil
					if record.Single != "" {
						organisms = []string{record.Single}
					}
				}
				for _, organism := range organisms {
					if label, ok := mapped(organism); ok {
						labels = append(labels, label)
					}
				}
			}
			return labels
		}, nil

	default:
		return nil, Error.New("invalid hit type %q", string(req.HitType))
	}
}

// admitter returns the filtering pass of req, nil without a filter.
func (engine *Engine) admitter(ctx context.Context, req *MatrixRequest) (admitFunc, error) {
	if req.Filter == nil {
		return nil, nil
	}
	filter := *req.Filter
	if filter.Source == "" {
		filter.Source = req.Source
	}

	leaves, err := engine.reference.LeavesByLevel(ctx, filter.Kind, filter.Level, filter.Source, filter.Substring)
	if err != nil {
		return nil, err
	}
	allowed := leaves.Set()

	labels := func(record m5nr.Record) []string {
		if filter.Kind == m5nr.Ontology {
			return record.Accession
		}
		return record.Organism
	}

	return func(ctx context.Context, md5s []string) ([]string, error) {
		admitted := map[string]bool{}
		mon.Counter("reference_joins").Inc(1)
		err := engine.reference.RecordsByHash(ctx, md5s, m5nr.LookupOptions{Source: filter.Source}, func(ctx context.Context, record m5nr.Record) error {
			for _, label := range labels(record) {
				if _, ok := allowed[label]; ok {
					admitted[record.MD5] = true
					return nil
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		var kept []string
		for _, md5 := range md5s {
			if admitted[md5] {
				kept = append(kept, md5)
			}
		}
		return kept, nil
	}, nil
}

func (engine *Engine) matrix(ctx context.Context, s *stream, req *MatrixRequest) (_ *BIOM, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(req.Jobs) == 0 {
		return nil, Error.New("matrix without jobs")
	}
	resultType := req.ResultType
	if resultType == "" {
		resultType = Abundance
	}
	if _, err := resultType.value(jobs.Row{}); err != nil {
		return nil, err
	}

	label, err := engine.labeler(ctx, req)
	if err != nil {
		return nil, err
	}
	admit, err := engine.admitter(ctx, req)
	if err != nil {
		return nil, err
	}

	matrix := newBIOM(req.ID, req.Source, req.SourceType, engine.now())
	matrix.URL = req.URL
	matrix.Type = "Function table"
	if req.Type == OrganismMatrix {
		matrix.Type = "Taxon table"
	}
	matrix.MatrixElementType = "float"
	if !resultType.averaged() {
		matrix.MatrixElementType = "int"
	}
	matrix.MatrixElementValue = string(resultType)

	g := newGrid(len(req.Jobs))
	lookup := m5nr.LookupOptions{Source: req.Source}

	for column, job := range req.Jobs {
		matrix.Columns = append(matrix.Columns, BIOMColumn{ID: job.ID, Metadata: job.Metadata})

		opts := jobs.IterateOptions{Filter: req.Cutoffs, Swap: job.Swap}
		err := s.join(ctx, job.Job, opts, lookup, admit, func(ctx context.Context, row jobs.Row, records []m5nr.Record) error {
			value, err := resultType.value(row)
			if err != nil {
				return err
			}
			seen := map[string]bool{}
			for _, name := range label(records) {
				if seen[name] {
					continue
				}
				seen[name] = true
				g.add(name, column, value)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if err := s.finish(ctx); err != nil {
		return nil, err
	}

	for _, name := range g.labels {
		matrix.Rows = append(matrix.Rows, BIOMRow{ID: name, Metadata: req.RowMetadata[name]})
	}
	matrix.Data = g.finalize(resultType.averaged())
	matrix.Shape = [2]int{len(matrix.Rows), len(matrix.Columns)}
	return matrix, nil
}
