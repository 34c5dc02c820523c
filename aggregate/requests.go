// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate

import (
	"fmt"

	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr"
)

// Request selects the result built by Engine.Run. It is implemented by
// *FlatProfileRequest, *BIOMProfileRequest, *LCAProfileRequest and
// *MatrixRequest.
type Request interface {
	// FileName returns the name the result is stored under.
	FileName(version int) string

	describe() string
}

// profileFileName returns the name of a single job profile.
func profileFileName(id, source string, version int, format string) string {
	return fmt.Sprintf("%s_%s_v%d.%s", id, source, version, format)
}

// FlatProfileRequest builds one row per annotated hash of a job.
type FlatProfileRequest struct {
	// ID is the public identifier of the job, used in the result.
	ID         string
	Job        int64
	Source     string
	SourceType string
	// Condensed reads the index tables, reporting numeric identifiers
	// instead of names.
	Condensed bool
	Swap      bool
}

// FileName implements Request.
func (req *FlatProfileRequest) FileName(version int) string {
	return profileFileName(req.ID, req.Source, version, "mgrast")
}

func (req *FlatProfileRequest) describe() string { return "mgrast profile" }

// BIOMProfileRequest builds a BIOM table with one row per annotated hash of a job.
type BIOMProfileRequest struct {
	ID         string
	Job        int64
	Source     string
	SourceType string
	Swap       bool
}

// FileName implements Request.
func (req *BIOMProfileRequest) FileName(version int) string {
	return profileFileName(req.ID, req.Source, version, "biom")
}

func (req *BIOMProfileRequest) describe() string { return "BIOM profile" }

// LCAProfileRequest builds one row per consensus taxon of a job.
type LCAProfileRequest struct {
	ID  string
	Job int64
}

// FileName implements Request.
func (req *LCAProfileRequest) FileName(version int) string {
	return profileFileName(req.ID, LCASource, version, "mgrast")
}

func (req *LCAProfileRequest) describe() string { return "LCA profile" }

// LCASource is the source name of consensus taxon profiles.
const LCASource = "LCA"

// MatrixType selects what the rows of a matrix are.
type MatrixType string

// Matrix types.
const (
	OrganismMatrix = MatrixType("organism")
	FunctionMatrix = MatrixType("function")
	OntologyMatrix = MatrixType("ontology")
)

// HitType selects which organisms of a hash are counted.
type HitType string

// Hit types.
const (
	// AllHits counts every organism of a hash.
	AllHits = HitType("all")
	// SingleHit counts only the best organism of a hash.
	SingleHit = HitType("single")
	// LCAHit counts the consensus taxon of a hash.
	LCAHit = HitType("lca")
)

// ResultType selects the value of matrix cells.
type ResultType string

// Result types.
const (
	Abundance = ResultType("abundance")
	EValue    = ResultType("evalue")
	Identity  = ResultType("identity")
	Length    = ResultType("length")
)

// value returns the contribution of row to a cell.
func (result ResultType) value(row jobs.Row) (float64, error) {
	switch result {
	case Abundance:
		return float64(row.Abundance), nil
	case EValue:
		return row.ExpAvg, nil
	case Identity:
		return row.IdentAvg, nil
	case Length:
		return row.LenAvg, nil
	default:
		return 0, Error.New("invalid result type %q", string(result))
	}
}

// averaged returns whether cells of result are means.
func (result ResultType) averaged() bool { return result != Abundance }

// MatrixJob is one column of a matrix.
type MatrixJob struct {
	// ID is the public identifier of the job, used as the column id.
	ID       string
	Job      int64
	Swap     bool
	Metadata map[string]interface{}
}

// LabelFilter restricts a matrix to hashes with at least one leaf whose
// ancestor at Level contains Substring.
type LabelFilter struct {
	Kind  m5nr.Kind
	Level string
	// Source is the annotation source of the filtering lookup; ontology
	// filters also scan their hierarchy within it.
	Source    string
	Substring string
}

// MatrixRequest builds a BIOM table with one row per group and one column per job.
type MatrixRequest struct {
	ID         string
	URL        string
	Jobs       []MatrixJob
	Source     string
	SourceType string

	Type       MatrixType
	HitType    HitType
	GroupLevel string
	ResultType ResultType

	Cutoffs jobs.Filter
	Filter  *LabelFilter
	// RowMetadata is attached to the rows whose label matches a key.
	RowMetadata map[string]map[string]interface{}
}

// FileName implements Request.
func (req *MatrixRequest) FileName(version int) string {
	return req.ID + ".biom"
}

func (req *MatrixRequest) describe() string { return "BIOM matrix" }
