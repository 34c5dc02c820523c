// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/errs"
	"gopkg.in/yaml.v3"

	"storj.io/abundance/aggregate"
)

// jobArg is a job named on the command line as JOB[:ID[:NODE]].
type jobArg struct {
	Job  int64
	ID   string
	Node string
}

func parseJobArg(arg string) (jobArg, error) {
	parts := strings.SplitN(arg, ":", 3)
	job, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return jobArg{}, errs.New("invalid job %q", parts[0])
	}

	parsed := jobArg{Job: job, ID: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		parsed.ID = parts[1]
	}
	if len(parts) > 2 {
		parsed.Node = parts[2]
	}
	return parsed, nil
}

func parseJobArgs(args []string) ([]jobArg, error) {
	parsed := make([]jobArg, 0, len(args))
	for _, arg := range args {
		job, err := parseJobArg(arg)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, job)
	}
	return parsed, nil
}

func parseJobs(args []string) ([]int64, error) {
	jobs := make([]int64, 0, len(args))
	for _, arg := range args {
		job, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, errs.New("invalid job %q", arg)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// readYAML decodes the YAML (or JSON) document at path into v. An empty
// path leaves v untouched.
func readYAML(path string, v interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errs.New("invalid %s: %v", path, err)
	}
	return nil
}

// NodeConfig selects the blob store node receiving a result.
type NodeConfig struct {
	Attributes      string `help:"YAML or JSON file with the current attributes of the node" default:""`
	FinalAttributes string `help:"YAML or JSON file with the attributes the node gets once the result is complete" default:""`
	Output          string `help:"directory results are written to when they are not uploaded" default:"."`
}

// node returns the node id with the attributes of config, nil without an id.
func (config NodeConfig) node(id string) (*aggregate.Node, error) {
	if id == "" {
		return nil, nil
	}
	node := &aggregate.Node{ID: id}
	if err := readYAML(config.Attributes, &node.Attributes); err != nil {
		return nil, err
	}
	if err := readYAML(config.FinalAttributes, &node.Final); err != nil {
		return nil, err
	}
	return node, nil
}

// save writes the result of report to the output directory unless it was
// uploaded to node.
func (config NodeConfig) save(p *peer, node *aggregate.Node, report *aggregate.Report) error {
	if report.Failed {
		return errs.New("%s: %v", report.FileName, report.Cause)
	}
	if node != nil && p.blobs != nil {
		return nil
	}

	data, err := json.Marshal(report.Result)
	if err != nil {
		return errs.Wrap(err)
	}
	return errs.Wrap(os.WriteFile(filepath.Join(config.Output, report.FileName), data, 0644))
}
