// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storj.io/abundance/aggregate"
	"storj.io/abundance/blobstore"
	"storj.io/abundance/jobs/cassjobs"
	"storj.io/abundance/m5nr"
	"storj.io/abundance/m5nr/m5nrcache"
	"storj.io/abundance/private/audit"
	"storj.io/abundance/private/cassconn"
	"storj.io/common/cfgstruct"
	"storj.io/common/fpath"
	"storj.io/common/process"
)

// Config is the configuration shared by every command.
type Config struct {
	Cassandra cassconn.Config
	Audit     audit.Config
	Reference m5nr.Config
	Jobs      cassjobs.Config
	Cache     m5nrcache.Config
	Blobs     blobstore.Config
	Aggregate aggregate.Config
}

var (
	rootCmd = &cobra.Command{
		Use:   "abundance",
		Short: "Abundance profiles and matrices of annotated jobs",
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}
	profileCmd = &cobra.Command{
		Use:   "profile JOB[:ID[:NODE]]...",
		Short: "Build the profile of one or more jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdProfile,
	}
	matrixCmd = &cobra.Command{
		Use:   "matrix JOB[:ID]...",
		Short: "Build a BIOM matrix with one column per job",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdMatrix,
	}
	summaryCmd = &cobra.Command{
		Use:   "summary JOB",
		Short: "Print the abundance totals of a job",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdSummary,
	}
	jobsCmd = &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and maintain the job tables",
	}
	jobsStatusCmd = &cobra.Command{
		Use:   "status JOB...",
		Short: "Print the load state of jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdJobsStatus,
	}
	jobsDeleteCmd = &cobra.Command{
		Use:   "delete JOB...",
		Short: "Delete the rows of jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdJobsDelete,
	}
	jobsRangesCmd = &cobra.Command{
		Use:   "ranges JOB [MD5...]",
		Short: "Print the merged sequence file ranges of a job",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdJobsRanges,
	}
	jobsMD5sCmd = &cobra.Command{
		Use:   "md5s JOB",
		Short: "Print the hashes of a job",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdJobsMD5s,
	}
	jobsMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the job tables, and optionally the reference tables",
		Args:  cobra.NoArgs,
		RunE:  cmdJobsMigrate,
	}

	confDir string

	setupCfg   Config
	profileCfg ProfileConfig
	matrixCfg  MatrixConfig
	summaryCfg SummaryConfig
	statusCfg  StatusConfig
	deleteCfg  DeleteConfig
	rangesCfg  RangesConfig
	md5sCfg    Config
	migrateCfg MigrateConfig
)

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	setupDir, err := filepath.Abs(confDir)
	if err != nil {
		return err
	}

	valid, _ := fpath.IsValidSetupDir(setupDir)
	if !valid {
		return fmt.Errorf("abundance configuration already exists (%v)", setupDir)
	}

	err = os.MkdirAll(setupDir, 0700)
	if err != nil {
		return err
	}

	return process.SaveConfig(cmd, filepath.Join(setupDir, "config.yaml"))
}

func init() {
	defaultConfDir := fpath.ApplicationDir("mgrast", "abundance")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for abundance configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(matrixCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
	jobsCmd.AddCommand(jobsRangesCmd)
	jobsCmd.AddCommand(jobsMD5sCmd)
	jobsCmd.AddCommand(jobsMigrateCmd)

	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
	process.Bind(profileCmd, &profileCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(matrixCmd, &matrixCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(summaryCmd, &summaryCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(jobsStatusCmd, &statusCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(jobsDeleteCmd, &deleteCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(jobsRangesCmd, &rangesCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(jobsMD5sCmd, &md5sCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(jobsMigrateCmd, &migrateCfg, defaults, cfgstruct.ConfDir(confDir))
}

func main() {
	logger, _, _ := process.NewLogger("abundance")
	zap.ReplaceGlobals(logger)

	process.Exec(rootCmd)
}
