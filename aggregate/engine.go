// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package aggregate joins job abundance rows with the reference store and
// produces profiles, matrices and summaries.
//
// Rows are streamed from the job tables in fixed size chunks and every
// chunk is resolved against the reference store with a single lookup, so
// memory use is bounded by the chunk size and the size of the result.
package aggregate

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/blobstore"
	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr"
)

var (
	// Error is the error class for this package.
	Error = errs.Class("aggregate")

	mon = monkit.Package()
)

const (
	// ErrorFileName is the name of the error artifact.
	ErrorFileName = "error"
	// ErrorExpiration is how long a node holding an error artifact is kept.
	ErrorExpiration = 24 * time.Hour
	// ErrorStatus is the status reported in every error artifact.
	ErrorStatus = 500
)

// Config contains configurable values for the aggregation engine.
type Config struct {
	ChunkSize        int           `help:"number of job rows resolved against the reference store at once" default:"500"`
	ProgressInterval time.Duration `help:"minimum time between two progress snapshots of a node" default:"5m0s"`
}

// Node is the blob store node receiving a result.
type Node struct {
	ID string
	// Attributes is the current attribute document of the node. Progress
	// snapshots are written into its "progress" entry.
	Attributes map[string]interface{}
	// Final, when set, replaces the attributes once the result is
	// complete, extended with the row and hash totals.
	Final map[string]interface{}
}

// Report describes the outcome of a run.
type Report struct {
	FileName string
	// Result is the built result, nil when the run failed.
	Result  interface{}
	Rows    int
	Queried int64
	Found   int64

	Failed bool
	Cause  error
}

// ErrorArtifact is stored in place of a result when building it failed.
type ErrorArtifact struct {
	Error  string `json:"ERROR"`
	Status int    `json:"STATUS"`
}

// Engine builds aggregation results.
//
// architecture: Service
type Engine struct {
	log       *zap.Logger
	jobs      jobs.DB
	reference m5nr.Reader
	blobs     blobstore.Store
	config    Config

	version    int
	ontologies []string

	diagnostic io.Writer
	now        func() time.Time
}

// NewEngine creates an engine. blobs may be nil, in which case results are
// only returned and error artifacts are written to the diagnostic writer.
func NewEngine(log *zap.Logger, jobsDB jobs.DB, reference m5nr.Reader, blobs blobstore.Store, config Config, m5nrConfig m5nr.Config) *Engine {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 500
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = 5 * time.Minute
	}
	return &Engine{
		log:        log,
		jobs:       jobsDB,
		reference:  reference,
		blobs:      blobs,
		config:     config,
		version:    m5nrConfig.Version,
		ontologies: m5nrConfig.OntologySources(),
		diagnostic: os.Stderr,
		now:        time.Now,
	}
}

// SetNow allows tests to have the engine act as if the current time is whatever they want.
func (engine *Engine) SetNow(now func() time.Time) {
	engine.now = now
}

// SetDiagnostic changes where error artifacts are written when there is no blob store.
func (engine *Engine) SetDiagnostic(w io.Writer) {
	engine.diagnostic = w
}

// isOntology returns whether source holds ontology accessions.
func (engine *Engine) isOntology(source string) bool {
	return m5nr.IsOntologySource(engine.ontologies, source)
}

// Run builds the result of req and stores it in node.
//
// A failure while building or storing the result replaces the result with
// an error artifact and is reported through Report.Failed and Report.Cause.
// An error is returned only when the error artifact itself cannot be stored.
func (engine *Engine) Run(ctx context.Context, node *Node, req Request) (report *Report, err error) {
	defer mon.Task()(&ctx)(&err)

	report = &Report{FileName: req.FileName(engine.version)}
	log := engine.log.With(zap.String("request", req.describe()))
	if node != nil {
		log = log.With(zap.String("node", node.ID))
	}
	log.Info("building", zap.Int("chunk", engine.config.ChunkSize))

	stream := engine.newStream(node)

	var result interface{}
	switch req := req.(type) {
	case *FlatProfileRequest:
		result, err = engine.flatProfile(ctx, stream, req)
	case *BIOMProfileRequest:
		result, err = engine.biomProfile(ctx, stream, req)
	case *LCAProfileRequest:
		result, err = engine.lcaProfile(ctx, stream, req)
	case *MatrixRequest:
		result, err = engine.matrix(ctx, stream, req)
	default:
		err = Error.New("unsupported request %T", req)
	}
	report.Queried, report.Found = stream.queried, stream.found
	if err != nil {
		return engine.fail(ctx, log, node, report, "unable to build "+req.describe(), err)
	}
	report.Rows = rowCount(result)

	// the node is only completed once its result is stored
	if engine.blobs != nil && node != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return engine.fail(ctx, log, node, report, "unable to encode "+req.describe(), err)
		}
		if err := engine.blobs.Upload(ctx, node.ID, report.FileName, data); err != nil {
			return engine.fail(ctx, log, node, report, "unable to store "+report.FileName, err)
		}
	}

	if err := engine.complete(ctx, node, report); err != nil {
		return engine.fail(ctx, log, node, report, "unable to update node "+node.ID, err)
	}

	report.Result = result
	log.Info("built",
		zap.Int("rows", report.Rows),
		zap.Int64("queried", report.Queried),
		zap.Int64("found", report.Found))
	return report, nil
}

// complete writes the final attributes of node.
func (engine *Engine) complete(ctx context.Context, node *Node, report *Report) error {
	if engine.blobs == nil || node == nil || node.Final == nil {
		return nil
	}

	attrs := blobstore.Attributes(node.Final).Clone()
	attrs["row_total"] = report.Rows
	attrs["md5_queried"] = report.Queried
	attrs["md5_found"] = report.Found

	if err := engine.blobs.SetAttributes(ctx, node.ID, attrs); err != nil {
		return err
	}
	if err := engine.blobs.SetExpiration(ctx, node.ID, 0); err != nil {
		return err
	}
	if status, _ := attrs["status"].(string); status == "public" {
		if err := engine.blobs.SetPublic(ctx, node.ID); err != nil {
			return err
		}
	}
	node.Attributes = attrs
	return nil
}

// fail replaces the result of node with an error artifact.
func (engine *Engine) fail(ctx context.Context, log *zap.Logger, node *Node, report *Report, message string, cause error) (*Report, error) {
	report.Failed = true
	report.Cause = cause
	report.Result = nil
	log.Error(message, zap.Error(cause))

	data, err := json.Marshal(ErrorArtifact{Error: message, Status: ErrorStatus})
	if err != nil {
		return report, Error.Wrap(err)
	}

	if engine.blobs == nil || node == nil {
		_, err := engine.diagnostic.Write(append(data, '\n'))
		return report, Error.Wrap(err)
	}

	report.FileName = ErrorFileName
	return report, Error.Wrap(errs.Combine(
		engine.blobs.Upload(ctx, node.ID, ErrorFileName, data),
		engine.blobs.SetExpiration(ctx, node.ID, ErrorExpiration),
	))
}

func rowCount(result interface{}) int {
	switch result := result.(type) {
	case *FlatProfile:
		return result.RowTotal
	case *LCAProfile:
		return result.RowTotal
	case *BIOM:
		return result.Shape[0]
	default:
		return 0
	}
}
