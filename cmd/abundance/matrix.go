// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/aggregate"
	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr"
	"storj.io/common/process"
)

// MatrixConfig configures the matrix command.
type MatrixConfig struct {
	Config
	NodeConfig

	ID         string `help:"identifier of the matrix, also its file name" default:"matrix"`
	URL        string `help:"url reported in the matrix" default:""`
	Node       string `help:"blob store node receiving the matrix, empty writes it to the output directory" default:""`
	Source     string `help:"annotation source of the matrix" default:"RefSeq"`
	SourceType string `help:"type of the annotation source, reported in the result" default:"protein"`

	Type       string `help:"what the rows are, organism, function or ontology" default:"organism"`
	HitType    string `help:"organisms counted per hash, all, single or lca" default:"all"`
	GroupLevel string `help:"hierarchy level rows are grouped at, empty keeps leaves" default:""`
	ResultType string `help:"cell value, abundance, evalue, identity or length" default:"abundance"`

	EValue   int `help:"keep rows whose e-value exponent is at most minus this" default:"0"`
	Identity int `help:"keep rows with at least this percent identity" default:"0"`
	Length   int `help:"keep rows with at least this alignment length" default:"0"`

	Filter       string `help:"keep hashes with a leaf whose ancestor contains this text" default:""`
	FilterKind   string `help:"hierarchy of the filter, organism or ontology" default:"organism"`
	FilterLevel  string `help:"hierarchy level the filter text is matched at" default:""`
	FilterSource string `help:"annotation source of the filter, defaults to the matrix source" default:""`

	RowMetadata string `help:"YAML file mapping row labels to row metadata" default:""`
	Swap        bool   `help:"read jobs whose identity and length columns were loaded swapped" default:"false"`
}

func (config MatrixConfig) request(args []jobArg) (*aggregate.MatrixRequest, error) {
	req := &aggregate.MatrixRequest{
		ID:         config.ID,
		URL:        config.URL,
		Source:     config.Source,
		SourceType: config.SourceType,
		Type:       aggregate.MatrixType(config.Type),
		HitType:    aggregate.HitType(config.HitType),
		GroupLevel: config.GroupLevel,
		ResultType: aggregate.ResultType(config.ResultType),
		Cutoffs: jobs.Filter{
			EValue:   config.EValue,
			Identity: config.Identity,
			Length:   config.Length,
		},
	}
	for _, arg := range args {
		req.Jobs = append(req.Jobs, aggregate.MatrixJob{ID: arg.ID, Job: arg.Job, Swap: config.Swap})
	}

	if config.Filter != "" {
		if config.FilterLevel == "" {
			return nil, errs.New("--filter requires --filter-level")
		}
		req.Filter = &aggregate.LabelFilter{
			Kind:      m5nr.Kind(config.FilterKind),
			Level:     config.FilterLevel,
			Source:    config.FilterSource,
			Substring: config.Filter,
		}
	}

	if err := readYAML(config.RowMetadata, &req.RowMetadata); err != nil {
		return nil, err
	}
	return req, nil
}

func cmdMatrix(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	jobArgs, err := parseJobArgs(args)
	if err != nil {
		return err
	}
	req, err := matrixCfg.request(jobArgs)
	if err != nil {
		return err
	}
	node, err := matrixCfg.node(matrixCfg.Node)
	if err != nil {
		return err
	}

	p, err := openEngine(ctx, log, matrixCfg.Config)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	report, err := p.engine.Run(ctx, node, req)
	if err != nil {
		return err
	}
	return matrixCfg.save(p, node, report)
}
