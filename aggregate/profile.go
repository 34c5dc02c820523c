// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate

import (
	"context"
	"encoding/json"
	"time"

	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr"
)

// FlatProfileColumns are the columns of a flat profile.
var FlatProfileColumns = []string{"md5sum", "abundance", "e-value", "percent identity", "alignment length", "organisms", "functions"}

// FlatProfile has one row per annotated hash of a job.
type FlatProfile struct {
	ID         string    `json:"id"`
	Created    time.Time `json:"created"`
	Version    int       `json:"version"`
	Source     string    `json:"source"`
	SourceType string    `json:"source_type"`
	Columns    []string  `json:"columns"`
	Condensed  string    `json:"condensed"`
	RowTotal   int       `json:"row_total"`
	Data       []FlatRow `json:"data"`
}

// FlatRow is one row of a flat profile.
type FlatRow struct {
	MD5       string
	Abundance int64
	EValue    float64
	Identity  float64
	Length    float64
	// Organisms has the best hit first.
	Organisms []string
	// Functions holds accessions for ontology sources and function names otherwise.
	Functions []string
}

// MarshalJSON encodes the row as an array in FlatProfileColumns order.
func (row FlatRow) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{row.MD5, row.Abundance, row.EValue, row.Identity, row.Length, row.Organisms, row.Functions})
}

// annotate copies the annotation of record into row.
func (engine *Engine) annotate(row *FlatRow, record m5nr.Record) {
	if len(record.Organism) > 0 {
		row.Organisms = promote(record.Organism, record.Single)
	}
	switch {
	case engine.isOntology(record.Source) && len(record.Accession) > 0:
		row.Functions = record.Accession
	case len(record.Function) > 0:
		row.Functions = record.Function
	}
}

// promote returns organisms with single moved to the front.
func promote(organisms []string, single string) []string {
	promoted := make([]string, 0, len(organisms)+1)
	if single != "" {
		promoted = append(promoted, single)
	}
	for _, organism := range organisms {
		if organism != single {
			promoted = append(promoted, organism)
		}
	}
	return promoted
}

func (engine *Engine) flatProfile(ctx context.Context, s *stream, req *FlatProfileRequest) (_ *FlatProfile, err error) {
	defer mon.Task()(&ctx, req.Job)(&err)

	profile := &FlatProfile{
		ID:         req.ID,
		Created:    engine.now(),
		Version:    engine.version,
		Source:     req.Source,
		SourceType: req.SourceType,
		Columns:    FlatProfileColumns,
		Condensed:  "false",
		Data:       []FlatRow{},
	}
	if req.Condensed {
		profile.Condensed = "true"
	}

	opts := jobs.IterateOptions{
		Columns: []jobs.Column{jobs.ColumnMD5, jobs.ColumnAbundance, jobs.ColumnExpAvg, jobs.ColumnIdentAvg, jobs.ColumnLenAvg},
		Swap:    req.Swap,
	}
	lookup := m5nr.LookupOptions{Source: req.Source, Index: req.Condensed}

	err = s.join(ctx, req.Job, opts, lookup, nil, func(ctx context.Context, row jobs.Row, records []m5nr.Record) error {
		flat := FlatRow{
			MD5:       row.MD5,
			Abundance: row.Abundance,
			EValue:    row.ExpAvg,
			Identity:  row.IdentAvg,
			Length:    row.LenAvg,
		}
		for _, record := range records {
			engine.annotate(&flat, record)
		}
		profile.Data = append(profile.Data, flat)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx); err != nil {
		return nil, err
	}

	profile.RowTotal = len(profile.Data)
	return profile, nil
}

// BIOMProfileColumns are the columns of a BIOM profile.
var BIOMProfileColumns = []string{"abundance", "e-value", "percent identity", "alignment length"}

func (engine *Engine) biomProfile(ctx context.Context, s *stream, req *BIOMProfileRequest) (_ *BIOM, err error) {
	defer mon.Task()(&ctx, req.Job)(&err)

	profile := newBIOM(req.ID, req.Source, req.SourceType, engine.now())
	profile.Type = "Feature table"
	profile.MatrixElementType = "float"
	for _, column := range BIOMProfileColumns {
		profile.Columns = append(profile.Columns, BIOMColumn{ID: column})
	}

	opts := jobs.IterateOptions{
		Columns: []jobs.Column{jobs.ColumnMD5, jobs.ColumnAbundance, jobs.ColumnExpAvg, jobs.ColumnIdentAvg, jobs.ColumnLenAvg},
		Swap:    req.Swap,
	}
	lookup := m5nr.LookupOptions{Source: req.Source}

	err = s.join(ctx, req.Job, opts, lookup, nil, func(ctx context.Context, row jobs.Row, records []m5nr.Record) error {
		var metadata map[string]interface{}
		for _, record := range records {
			metadata = map[string]interface{}{"function": record.Function}
			if engine.isOntology(record.Source) {
				metadata["ontology"] = record.Accession
				continue
			}
			metadata["single"] = record.Single
			metadata["organism"] = record.Organism
			if len(record.Accession) > 0 {
				metadata["accession"] = record.Accession
			}
		}
		profile.Rows = append(profile.Rows, BIOMRow{ID: row.MD5, Metadata: metadata})
		profile.Data = append(profile.Data, []float64{float64(row.Abundance), row.ExpAvg, row.IdentAvg, row.LenAvg})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx); err != nil {
		return nil, err
	}

	profile.Shape = [2]int{len(profile.Rows), len(profile.Columns)}
	return profile, nil
}

// LCAProfileColumns are the columns of a consensus taxon profile.
var LCAProfileColumns = []string{"lca", "abundance", "e-value", "percent identity", "alignment length", "md5s", "level"}

// LCAProfile has one row per consensus taxon of a job.
type LCAProfile struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Version  int       `json:"version"`
	Source   string    `json:"source"`
	Columns  []string  `json:"columns"`
	RowTotal int       `json:"row_total"`
	Data     []LCARow  `json:"data"`
}

// LCARow is one row of a consensus taxon profile.
type LCARow jobs.LCARow

// MarshalJSON encodes the row as an array in LCAProfileColumns order.
func (row LCARow) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{row.LCA, row.Abundance, row.ExpAvg, row.IdentAvg, row.LenAvg, row.MD5s, row.Level})
}

// lcaProfile reads the consensus rows directly; there is nothing to join.
func (engine *Engine) lcaProfile(ctx context.Context, s *stream, req *LCAProfileRequest) (_ *LCAProfile, err error) {
	defer mon.Task()(&ctx, req.Job)(&err)

	profile := &LCAProfile{
		ID:      req.ID,
		Created: engine.now(),
		Version: engine.version,
		Source:  LCASource,
		Columns: LCAProfileColumns,
		Data:    []LCARow{},
	}

	err = engine.jobs.IterateLCARows(ctx, req.Job, func(ctx context.Context, row jobs.LCARow) error {
		profile.Data = append(profile.Data, LCARow(row))
		s.queried++
		s.found++
		return s.observe(ctx)
	})
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx); err != nil {
		return nil, err
	}

	profile.RowTotal = len(profile.Data)
	return profile, nil
}
