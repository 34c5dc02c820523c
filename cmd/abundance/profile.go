// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/abundance/aggregate"
	"storj.io/common/process"
)

// ProfileConfig configures the profile command.
type ProfileConfig struct {
	Config
	NodeConfig

	Source     string `help:"annotation source of the profile" default:"RefSeq"`
	SourceType string `help:"type of the annotation source, reported in the result" default:"protein"`
	Format     string `help:"profile format, mgrast, biom or lca" default:"mgrast"`
	Condensed  bool   `help:"report numeric reference ids instead of names" default:"false"`
	Swap       bool   `help:"read jobs whose identity and length columns were loaded swapped" default:"false"`
	Workers    int    `help:"number of jobs profiled at the same time" default:"4"`
}

func (config ProfileConfig) request(job jobArg) (aggregate.Request, error) {
	switch config.Format {
	case "mgrast":
		return &aggregate.FlatProfileRequest{
			ID:         job.ID,
			Job:        job.Job,
			Source:     config.Source,
			SourceType: config.SourceType,
			Condensed:  config.Condensed,
			Swap:       config.Swap,
		}, nil
	case "biom":
		return &aggregate.BIOMProfileRequest{
			ID:         job.ID,
			Job:        job.Job,
			Source:     config.Source,
			SourceType: config.SourceType,
			Swap:       config.Swap,
		}, nil
	case "lca":
		return &aggregate.LCAProfileRequest{ID: job.ID, Job: job.Job}, nil
	default:
		return nil, errs.New("invalid profile format %q", config.Format)
	}
}

func cmdProfile(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	jobs, err := parseJobArgs(args)
	if err != nil {
		return err
	}

	p, err := openEngine(ctx, log, profileCfg.Config)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	group, ctx := errgroup.WithContext(ctx)
	if profileCfg.Workers > 0 {
		group.SetLimit(profileCfg.Workers)
	}
	for _, job := range jobs {
		job := job
		group.Go(func() error {
			req, err := profileCfg.request(job)
			if err != nil {
				return err
			}
			node, err := profileCfg.node(job.Node)
			if err != nil {
				return err
			}
			report, err := p.engine.Run(ctx, node, req)
			if err != nil {
				return err
			}
			return profileCfg.save(p, node, report)
		})
	}
	return group.Wait()
}
