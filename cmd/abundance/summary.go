// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/aggregate"
	"storj.io/common/process"
)

// SummaryConfig configures the summary command.
type SummaryConfig struct {
	Config

	Levels    string `help:"comma separated taxonomy levels organisms are totaled at" default:"domain"`
	Functions bool   `help:"total by function" default:"true"`
	Ontology  bool   `help:"total by top level ontology category" default:"true"`
	Swap      bool   `help:"read a job whose identity and length columns were loaded swapped" default:"false"`
}

func (config SummaryConfig) levels() []string {
	var levels []string
	for _, level := range strings.Split(config.Levels, ",") {
		if level = strings.TrimSpace(level); level != "" {
			levels = append(levels, level)
		}
	}
	return levels
}

func cmdSummary(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	jobs, err := parseJobs(args)
	if err != nil {
		return err
	}

	p, err := openEngine(ctx, log, summaryCfg.Config)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	summary, err := p.engine.Summarize(ctx, aggregate.SummaryRequest{
		Job:       jobs[0],
		Levels:    summaryCfg.levels(),
		Functions: summaryCfg.Functions,
		Ontology:  summaryCfg.Ontology,
		Swap:      summaryCfg.Swap,
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return errs.Wrap(encoder.Encode(summary))
}
