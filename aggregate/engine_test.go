// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/abundance/aggregate"
	"storj.io/abundance/blobstore/blobtest"
	"storj.io/abundance/jobs"
	"storj.io/abundance/jobs/testjobs"
	"storj.io/abundance/m5nr"
	"storj.io/abundance/m5nr/testm5nr"
	"storj.io/common/testcontext"
)

type fixture struct {
	jobs      *testjobs.DB
	reference *testm5nr.DB
	blobs     *blobtest.Store
	engine    *aggregate.Engine
}

func newFixture(t *testing.T, ctx *testcontext.Context, config aggregate.Config) *fixture {
	f := &fixture{
		jobs:      testjobs.New(),
		reference: testm5nr.New(),
		blobs:     blobtest.New(),
	}

	f.reference.AddOrganism("Escherichia coli", "Bacteria", "Proteobacteria", "Gammaproteobacteria", "Enterobacterales", "Enterobacteriaceae", "Escherichia", "Escherichia coli")
	f.reference.AddOrganism("Bacillus subtilis", "Bacteria", "Firmicutes", "Bacilli", "Bacillales", "Bacillaceae", "Bacillus", "Bacillus subtilis")
	f.reference.AddOrganism("unclassified sequences", "unclassified", "unclassified", "unclassified", "unclassified", "unclassified", "unclassified", "unclassified sequences")
	f.reference.AddAccession("KO", "K00001", "Metabolism", "Carbohydrate metabolism", "Glycolysis", "alcohol dehydrogenase")
	f.reference.AddAccession("KO", "K00002", "Genetic Information Processing", "Translation", "Ribosome", "ribosomal protein")

	f.reference.AddRecord(m5nr.Record{
		MD5: "h1", Source: "RefSeq",
		Organism: []string{"Escherichia coli"}, Single: "Escherichia coli",
		Function: []string{"alcohol dehydrogenase"},
		LCA:      []string{"Bacteria", "Proteobacteria", "Gammaproteobacteria", "Enterobacterales", "Enterobacteriaceae", "Escherichia", "Escherichia coli", "-"},
	})
	f.reference.AddRecord(m5nr.Record{MD5: "h1", Source: "KO", Accession: []string{"K00001"}, Function: []string{"alcohol dehydrogenase"}})
	f.reference.AddRecord(m5nr.Record{
		MD5: "h2", Source: "RefSeq",
		Organism: []string{"Bacillus subtilis"}, Single: "Bacillus subtilis",
		Function: []string{"ribosomal protein"},
		LCA:      []string{"Bacteria", "Firmicutes", "Bacilli", "Bacillales", "Bacillaceae", "Bacillus", "Bacillus subtilis", "Bacillus subtilis 168"},
	})
	f.reference.AddRecord(m5nr.Record{MD5: "h2", Source: "KO", Accession: []string{"K00002"}, Function: []string{"ribosomal protein"}})

	_, err := f.jobs.InsertRows(ctx, 42, []jobs.Row{
		{MD5: "h1", Abundance: 5, ExpAvg: -20, IdentAvg: 95, LenAvg: 60},
		{MD5: "h2", Abundance: 2, ExpAvg: -8, IdentAvg: 70, LenAvg: 30},
		{MD5: "h3", Abundance: 9, ExpAvg: -30, IdentAvg: 99, LenAvg: 90},
	})
	require.NoError(t, err)

	m5nrConfig := m5nr.Config{Version: 1, Ontologies: "Subsystems,NOG,COG,KO"}
	service := m5nr.NewService(zaptest.NewLogger(t), f.reference, m5nrConfig)
	f.engine = aggregate.NewEngine(zaptest.NewLogger(t), f.jobs, service, f.blobs, config, m5nrConfig)
	return f
}

func domainMatrix(jobIDs ...int64) *aggregate.MatrixRequest {
	req := &aggregate.MatrixRequest{
		ID:         "matrix",
		Source:     "RefSeq",
		Type:       aggregate.OrganismMatrix,
		HitType:    aggregate.AllHits,
		GroupLevel: "domain",
		ResultType: aggregate.Abundance,
	}
	for _, job := range jobIDs {
		req.Jobs = append(req.Jobs, aggregate.MatrixJob{ID: fmt.Sprintf("mgm%d", job), Job: job})
	}
	return req
}

func TestMatrixGroupsByDomain(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})

	report, err := f.engine.Run(ctx, &aggregate.Node{ID: "n1"}, domainMatrix(42))
	require.NoError(t, err)
	require.False(t, report.Failed)
	require.Equal(t, "matrix.biom", report.FileName)
	require.EqualValues(t, 3, report.Queried)
	require.EqualValues(t, 2, report.Found)
	require.Equal(t, 1, report.Rows)

	matrix := report.Result.(*aggregate.BIOM)
	require.Equal(t, "Taxon table", matrix.Type)
	require.Equal(t, "int", matrix.MatrixElementType)
	require.Equal(t, [2]int{1, 1}, matrix.Shape)
	require.Equal(t, "Bacteria", matrix.Rows[0].ID)
	require.Equal(t, "mgm42", matrix.Columns[0].ID)
	require.Equal(t, [][]float64{{7}}, matrix.Data)

	data, ok := f.blobs.File("n1", "matrix.biom")
	require.True(t, ok)
	var stored aggregate.BIOM
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Equal(t, matrix.Data, stored.Data)
}

func TestMatrixLabelFilter(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})

	req := domainMatrix(42)
	req.Filter = &aggregate.LabelFilter{Kind: m5nr.Organism, Level: "species", Substring: "COLI"}

	report, err := f.engine.Run(ctx, nil, req)
	require.NoError(t, err)
	matrix := report.Result.(*aggregate.BIOM)
	require.Equal(t, [][]float64{{5}}, matrix.Data)
}

func TestMatrixColumnsAndCutoffs(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})

	_, err := f.jobs.InsertRows(ctx, 43, []jobs.Row{
		{MD5: "h2", Abundance: 4, ExpAvg: -10, IdentAvg: 90, LenAvg: 50},
	})
	require.NoError(t, err)

	req := domainMatrix(42, 43)
	req.GroupLevel = "phylum"
	req.Cutoffs = jobs.Filter{Identity: 80}
	req.RowMetadata = map[string]map[string]interface{}{
		"Firmicutes": {"color": "blue"},
	}

	report, err := f.engine.Run(ctx, nil, req)
	require.NoError(t, err)
	matrix := report.Result.(*aggregate.BIOM)

	// h2 of job 42 is below the identity cutoff
	require.Equal(t, []string{"mgm42", "mgm43"}, []string{matrix.Columns[0].ID, matrix.Columns[1].ID})
	require.Len(t, matrix.Rows, 2)
	require.Equal(t, "Proteobacteria", matrix.Rows[0].ID)
	require.Nil(t, matrix.Rows[0].Metadata)
	require.Equal(t, "Firmicutes", matrix.Rows[1].ID)
	require.Equal(t, "blue", matrix.Rows[1].Metadata["color"])
	require.Equal(t, [][]float64{{5, 0}, {0, 4}}, matrix.Data)
	require.EqualValues(t, 3, report.Queried)
	require.EqualValues(t, 2, report.Found)
}

func TestMatrixAveragedValues(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})

	req := domainMatrix(42)
	req.ResultType = aggregate.Identity

	report, err := f.engine.Run(ctx, nil, req)
	require.NoError(t, err)
	matrix := report.Result.(*aggregate.BIOM)
	require.Equal(t, "float", matrix.MatrixElementType)
	require.Equal(t, [][]float64{{82.5}}, matrix.Data)
}

func TestMatrixLabels(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})

	t.Run("Function", func(t *testing.T) {
		req := domainMatrix(42)
		req.Type, req.GroupLevel = aggregate.FunctionMatrix, ""

		report, err := f.engine.Run(ctx, nil, req)
		require.NoError(t, err)
		matrix := report.Result.(*aggregate.BIOM)
		require.Equal(t, "Function table", matrix.Type)
		require.Equal(t, "alcohol dehydrogenase", matrix.Rows[0].ID)
		require.Equal(t, "ribosomal protein", matrix.Rows[1].ID)
		require.Equal(t, [][]float64{{5}, {2}}, matrix.Data)
	})

	t.Run("Ontology", func(t *testing.T) {
		req := domainMatrix(42)
		req.Source, req.Type, req.GroupLevel = "KO", aggregate.OntologyMatrix, "level1"

		report, err := f.engine.Run(ctx, nil, req)
		require.NoError(t, err)
		matrix := report.Result.(*aggregate.BIOM)
		require.Equal(t, "Metabolism", matrix.Rows[0].ID)
		require.Equal(t, "Genetic Information Processing", matrix.Rows[1].ID)
		require.Equal(t, [][]float64{{5}, {2}}, matrix.Data)
	})

	t.Run("LCA", func(t *testing.T) {
		req := domainMatrix(42)
		req.HitType, req.GroupLevel = aggregate.LCAHit, "strain"

		report, err := f.engine.Run(ctx, nil, req)
		require.NoError(t, err)
		matrix := report.Result.(*aggregate.BIOM)
		// the consensus of h1 stops above strain
		require.Len(t, matrix.Rows, 1)
		require.Equal(t, "Bacillus subtilis 168", matrix.Rows[0].ID)
		require.Equal(t, [][]float64{{2}}, matrix.Data)
	})

	t.Run("Single", func(t *testing.T) {
		req := domainMatrix(42)
		req.HitType, req.GroupLevel = aggregate.SingleHit, "genus"

		report, err := f.engine.Run(ctx, nil, req)
		require.NoError(t, err)
		matrix := report.Result.(*aggregate.BIOM)
		require.Equal(t, "Escherichia", matrix.Rows[0].ID)
		require.Equal(t, "Bacillus", matrix.Rows[1].ID)
	})
}

func TestChunkedJoins(t *testing.T) {
	ctx := testcontext.New(t)

	var results [][][]float64
	for _, size := range []int{1, 2, 3, 500} {
		f := newFixture(t, ctx, aggregate.Config{ChunkSize: size})

		var rows []jobs.Row
		for i := 0; i < 7; i++ {
			md5 := "h1"
			if i%2 == 1 {
				md5 = "h2"
			}
			rows = append(rows, jobs.Row{MD5: fmt.Sprintf("%s-%d", md5, i), Abundance: int64(i + 1)})
			f.reference.AddRecord(m5nr.Record{
				MD5: fmt.Sprintf("%s-%d", md5, i), Source: "RefSeq",
				Organism: []string{map[string]string{"h1": "Escherichia coli", "h2": "Bacillus subtilis"}[md5]},
			})
		}
		_, err := f.jobs.InsertRows(ctx, 7, rows)
		require.NoError(t, err)

		req := domainMatrix(7)
		req.GroupLevel = "phylum"
		report, err := f.engine.Run(ctx, nil, req)
		require.NoError(t, err)
		require.EqualValues(t, 7, report.Queried)
		require.EqualValues(t, 7, report.Found)

		lookups := f.reference.Lookups()
		require.Len(t, lookups, (7+size-1)/size, "chunk size %d", size)
		for _, lookup := range lookups {
			require.LessOrEqual(t, len(lookup), size)
		}
		results = append(results, report.Result.(*aggregate.BIOM).Data)
	}

	for _, result := range results[1:] {
		require.Equal(t, results[0], result)
	}
	require.Equal(t, [][]float64{{16}, {12}}, results[0])
}

func TestProgressSnapshots(t *testing.T) {
	ctx := testcontext.New(t)

	progress := func(f *fixture) []map[string]interface{} {
		var snapshots []map[string]interface{}
		for _, call := range f.blobs.CallsTo("SetAttributes") {
			if p, ok := call.Attrs["progress"].(map[string]interface{}); ok {
				snapshots = append(snapshots, p)
			}
		}
		return snapshots
	}

	t.Run("Short", func(t *testing.T) {
		f := newFixture(t, ctx, aggregate.Config{ProgressInterval: time.Minute})
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		f.engine.SetNow(func() time.Time { return start })

		_, err := f.engine.Run(ctx, &aggregate.Node{ID: "n1"}, domainMatrix(42))
		require.NoError(t, err)

		snapshots := progress(f)
		require.Len(t, snapshots, 1)
		require.EqualValues(t, 3, snapshots[0]["queried"])
		require.EqualValues(t, 2, snapshots[0]["found"])
	})

	t.Run("Long", func(t *testing.T) {
		f := newFixture(t, ctx, aggregate.Config{ChunkSize: 1, ProgressInterval: time.Minute})
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		f.engine.SetNow(func() time.Time {
			now = now.Add(time.Minute)
			return now
		})

		node := &aggregate.Node{ID: "n1", Attributes: map[string]interface{}{"owner": "me"}}
		_, err := f.engine.Run(ctx, node, domainMatrix(42))
		require.NoError(t, err)

		snapshots := progress(f)
		// one snapshot per chunk and the final one
		require.Len(t, snapshots, 4)
		require.EqualValues(t, 1, snapshots[0]["queried"])
		require.EqualValues(t, 1, snapshots[0]["found"])
		require.EqualValues(t, 2, snapshots[1]["queried"])
		require.EqualValues(t, 2, snapshots[1]["found"])
		final := snapshots[len(snapshots)-1]
		require.EqualValues(t, 3, final["queried"])
		require.EqualValues(t, 2, final["found"])
		require.Equal(t, "me", f.blobs.Attributes("n1")["owner"])

		require.Equal(t, map[string]interface{}{"owner": "me"}, node.Attributes)
	})

	t.Run("DefaultInterval", func(t *testing.T) {
		f := newFixture(t, ctx, aggregate.Config{ChunkSize: 1})
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		f.engine.SetNow(func() time.Time { return start })

		_, err := f.engine.Run(ctx, &aggregate.Node{ID: "n1"}, domainMatrix(42))
		require.NoError(t, err)
		require.Len(t, progress(f), 1)
	})
}

func TestCompletion(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})

	node := &aggregate.Node{
		ID:    "n1",
		Final: map[string]interface{}{"status": "public", "id": "mgm42"},
	}
	report, err := f.engine.Run(ctx, node, domainMatrix(42))
	require.NoError(t, err)
	require.False(t, report.Failed)

	attrs := f.blobs.Attributes("n1")
	require.Equal(t, "mgm42", attrs["id"])
	require.EqualValues(t, 1, attrs["row_total"])
	require.EqualValues(t, 3, attrs["md5_queried"])
	require.EqualValues(t, 2, attrs["md5_found"])
	require.NotContains(t, attrs, "progress")
	require.Zero(t, f.blobs.Expiration("n1"))
	require.True(t, f.blobs.IsPublic("n1"))

	// the final attributes of the request are not modified
	require.NotContains(t, node.Final, "row_total")

	t.Run("Private", func(t *testing.T) {
		node := &aggregate.Node{ID: "n2", Final: map[string]interface{}{"status": "private"}}
		_, err := f.engine.Run(ctx, node, domainMatrix(42))
		require.NoError(t, err)
		require.False(t, f.blobs.IsPublic("n2"))
	})
}

func TestErrorArtifact(t *testing.T) {
	ctx := testcontext.New(t)

	t.Run("BuildFailure", func(t *testing.T) {
		f := newFixture(t, ctx, aggregate.Config{})

		report, err := f.engine.Run(ctx, &aggregate.Node{ID: "n1"}, &aggregate.MatrixRequest{ID: "empty"})
		require.NoError(t, err)
		require.True(t, report.Failed)
		require.Error(t, report.Cause)
		require.Nil(t, report.Result)
		require.Equal(t, aggregate.ErrorFileName, report.FileName)

		data, ok := f.blobs.File("n1", aggregate.ErrorFileName)
		require.True(t, ok)
		var artifact aggregate.ErrorArtifact
		require.NoError(t, json.Unmarshal(data, &artifact))
		require.Equal(t, aggregate.ErrorArtifact{Error: "unable to build BIOM matrix", Status: 500}, artifact)
		require.Equal(t, aggregate.ErrorExpiration, f.blobs.Expiration("n1"))
		require.NotContains(t, f.blobs.Files("n1"), "empty.biom")
	})

	t.Run("UploadFailure", func(t *testing.T) {
		f := newFixture(t, ctx, aggregate.Config{})
		f.blobs.Fail = func(method, node, name string) error {
			if method == "Upload" && name != aggregate.ErrorFileName {
				return errors.New("disk full")
			}
			return nil
		}

		node := &aggregate.Node{ID: "n1", Final: map[string]interface{}{"status": "public"}}
		report, err := f.engine.Run(ctx, node, domainMatrix(42))
		require.NoError(t, err)
		require.True(t, report.Failed)
		require.Equal(t, []string{aggregate.ErrorFileName}, f.blobs.Files("n1"))

		data, _ := f.blobs.File("n1", aggregate.ErrorFileName)
		require.JSONEq(t, `{"ERROR":"unable to store matrix.biom","STATUS":500}`, string(data))

		// a failed node is never completed
		require.NotContains(t, f.blobs.Attributes("n1"), "row_total")
		require.NotContains(t, f.blobs.Attributes("n1"), "md5_found")
		require.False(t, f.blobs.IsPublic("n1"))
		require.Equal(t, aggregate.ErrorExpiration, f.blobs.Expiration("n1"))
	})

	t.Run("ArtifactFailure", func(t *testing.T) {
		f := newFixture(t, ctx, aggregate.Config{})
		f.blobs.Fail = func(method, node, name string) error {
			if method == "Upload" {
				return errors.New("offline")
			}
			return nil
		}

		report, err := f.engine.Run(ctx, &aggregate.Node{ID: "n1"}, domainMatrix(42))
		require.Error(t, err)
		require.True(t, report.Failed)
	})

	t.Run("Diagnostic", func(t *testing.T) {
		f := newFixture(t, ctx, aggregate.Config{})
		var diagnostic bytes.Buffer
		f.engine.SetDiagnostic(&diagnostic)

		report, err := f.engine.Run(ctx, nil, &aggregate.MatrixRequest{ID: "empty"})
		require.NoError(t, err)
		require.True(t, report.Failed)
		require.JSONEq(t, `{"ERROR":"unable to build BIOM matrix","STATUS":500}`, diagnostic.String())
		require.Empty(t, f.blobs.Calls())
	})
}
