// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr/cassm5nr"
	"storj.io/abundance/private/prompt"
	"storj.io/common/process"
)

// StatusConfig configures the jobs status command.
type StatusConfig struct {
	Config

	Limit int64 `help:"stop counting rows of a job after this many, 0 counts all" default:"0"`
}

// DeleteConfig configures the jobs delete command.
type DeleteConfig struct {
	Config

	Yes bool `help:"delete without asking for confirmation" default:"false"`
}

// RangesConfig configures the jobs ranges command.
type RangesConfig struct {
	Config

	EValue   int `help:"keep rows whose e-value exponent is at most minus this" default:"0"`
	Identity int `help:"keep rows with at least this percent identity" default:"0"`
	Length   int `help:"keep rows with at least this alignment length" default:"0"`
}

// MigrateConfig configures the jobs migrate command.
type MigrateConfig struct {
	Config

	WithReference bool `help:"also create the reference tables of the configured version" default:"false"`
}

func cmdJobsStatus(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	ids, err := parseJobs(args)
	if err != nil {
		return err
	}

	p, err := openJobs(ctx, zap.L(), statusCfg.Config)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSTATE\tMD5S\tLCAS\tROWS\tUPDATED")
	for _, job := range ids {
		state, err := jobs.StateOf(ctx, p.jobs, job)
		if err != nil {
			return err
		}
		info, err := p.jobs.Info(ctx, job)
		if err != nil {
			return err
		}
		if info == nil {
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t-\n", job, state)
			continue
		}
		rows, err := p.jobs.RowCount(ctx, job, jobs.TableMD5, statusCfg.Limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\n", job, state, info.MD5Count, info.LCACount, rows, info.UpdatedOn.Format(time.RFC3339))
	}
	return errs.Wrap(w.Flush())
}

func cmdJobsDelete(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	ids, err := parseJobs(args)
	if err != nil {
		return err
	}

	p, err := openJobs(ctx, log, deleteCfg.Config)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	for _, job := range ids {
		if !deleteCfg.Yes {
			ok, err := prompt.Confirm(os.Stdin, cmd.OutOrStdout(), fmt.Sprintf("delete the rows of job %d?", job))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		if err := p.jobs.DeleteJob(ctx, job); err != nil {
			return err
		}
		log.Info("job deleted", zap.Int64("job", job))
	}
	return nil
}

func cmdJobsRanges(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	ids, err := parseJobs(args[:1])
	if err != nil {
		return err
	}

	p, err := openJobs(ctx, zap.L(), rangesCfg.Config)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	var ranges []jobs.Range
	if len(args) == 2 {
		r, ok, err := p.jobs.RangeFor(ctx, ids[0], args[1])
		if err != nil {
			return err
		}
		if ok {
			ranges = append(ranges, r)
		}
	} else {
		filter := jobs.Filter{EValue: rangesCfg.EValue, Identity: rangesCfg.Identity, Length: rangesCfg.Length}
		ranges, err = p.jobs.Ranges(ctx, ids[0], args[1:], filter)
		if err != nil {
			return err
		}
	}

	for _, r := range ranges {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", r.Seek, r.Length)
	}
	return nil
}

func cmdJobsMD5s(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	ids, err := parseJobs(args)
	if err != nil {
		return err
	}

	p, err := openJobs(ctx, zap.L(), md5sCfg)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	md5s, err := jobs.MD5s(ctx, p.jobs, ids[0])
	if err != nil {
		return err
	}
	for _, md5 := range md5s {
		fmt.Fprintln(cmd.OutOrStdout(), md5)
	}
	return nil
}

func cmdJobsMigrate(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	p, err := openJobs(ctx, log, migrateCfg.Config)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	if err := p.jobs.Migrate(ctx); err != nil {
		return err
	}
	if !migrateCfg.WithReference {
		return nil
	}

	reference, err := cassm5nr.Open(ctx, log.Named("m5nr"), p.pool, migrateCfg.Config.Reference)
	if err != nil {
		return err
	}
	return reference.Migrate(ctx)
}
