// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/abundance/aggregate"
	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr"
	"storj.io/common/testcontext"
)

func TestFlatProfile(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})
	f.reference.AddRecord(m5nr.Record{
		MD5: "h3", Source: "RefSeq",
		Organism: []string{"Shigella flexneri", "Escherichia coli"}, Single: "Escherichia coli",
		Function: []string{"kinase"},
	})

	req := &aggregate.FlatProfileRequest{ID: "mgm42.3", Job: 42, Source: "RefSeq", SourceType: "protein"}
	report, err := f.engine.Run(ctx, &aggregate.Node{ID: "n1"}, req)
	require.NoError(t, err)
	require.Equal(t, "mgm42.3_RefSeq_v1.mgrast", report.FileName)

	profile := report.Result.(*aggregate.FlatProfile)
	require.Equal(t, 3, profile.RowTotal)
	require.Equal(t, "false", profile.Condensed)
	require.Equal(t, []string{"h1", "h2", "h3"}, []string{profile.Data[0].MD5, profile.Data[1].MD5, profile.Data[2].MD5})
	require.Equal(t, []string{"Escherichia coli", "Shigella flexneri"}, profile.Data[2].Organisms)

	data, ok := f.blobs.File("n1", report.FileName)
	require.True(t, ok)
	var stored struct {
		Columns []string          `json:"columns"`
		Data    []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Equal(t, aggregate.FlatProfileColumns, stored.Columns)
	require.JSONEq(t, `["h1",5,-20,95,60,["Escherichia coli"],["alcohol dehydrogenase"]]`, string(stored.Data[0]))

	t.Run("Ontology", func(t *testing.T) {
		req := &aggregate.FlatProfileRequest{ID: "mgm42.3", Job: 42, Source: "KO"}
		report, err := f.engine.Run(ctx, nil, req)
		require.NoError(t, err)
		profile := report.Result.(*aggregate.FlatProfile)
		require.Equal(t, 2, profile.RowTotal)
		require.Equal(t, []string{"K00001"}, profile.Data[0].Functions)
		require.Nil(t, profile.Data[0].Organisms)
	})

	t.Run("Condensed", func(t *testing.T) {
		f.reference.AddIndexRecord(m5nr.Record{MD5: "h2", Source: "RefSeq", Organism: []string{"17"}, Function: []string{"4"}})

		req := &aggregate.FlatProfileRequest{ID: "mgm42.3", Job: 42, Source: "RefSeq", Condensed: true}
		report, err := f.engine.Run(ctx, nil, req)
		require.NoError(t, err)
		profile := report.Result.(*aggregate.FlatProfile)
		require.Equal(t, "true", profile.Condensed)
		require.Equal(t, 1, profile.RowTotal)
		require.Equal(t, []string{"17"}, profile.Data[0].Organisms)
	})
}

func TestBIOMProfile(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})

	req := &aggregate.BIOMProfileRequest{ID: "mgm42.3", Job: 42, Source: "RefSeq"}
	report, err := f.engine.Run(ctx, nil, req)
	require.NoError(t, err)
	require.Equal(t, "mgm42.3_RefSeq_v1.biom", report.FileName)

	profile := report.Result.(*aggregate.BIOM)
	require.Equal(t, [2]int{2, 4}, profile.Shape)
	require.Equal(t, "h1", profile.Rows[0].ID)
	require.Equal(t, "Escherichia coli", profile.Rows[0].Metadata["single"])
	require.Equal(t, []float64{5, -20, 95, 60}, profile.Data[0])

	t.Run("Ontology", func(t *testing.T) {
		req := &aggregate.BIOMProfileRequest{ID: "mgm42.3", Job: 42, Source: "KO"}
		report, err := f.engine.Run(ctx, nil, req)
		require.NoError(t, err)
		profile := report.Result.(*aggregate.BIOM)
		require.Equal(t, []string{"K00001"}, profile.Rows[0].Metadata["ontology"])
		require.NotContains(t, profile.Rows[0].Metadata, "organism")
	})
}

func TestLCAProfile(t *testing.T) {
	ctx := testcontext.New(t)
	f := newFixture(t, ctx, aggregate.Config{})

	_, err := f.jobs.InsertLCARows(ctx, 42, []jobs.LCARow{
		{LCA: "Bacteria;Firmicutes", Abundance: 3, ExpAvg: -10, IdentAvg: 80, LenAvg: 40, MD5s: 2, Level: 2},
	})
	require.NoError(t, err)

	report, err := f.engine.Run(ctx, nil, &aggregate.LCAProfileRequest{ID: "mgm42.3", Job: 42})
	require.NoError(t, err)
	require.Equal(t, "mgm42.3_LCA_v1.mgrast", report.FileName)
	require.EqualValues(t, 1, report.Queried)
	require.EqualValues(t, 1, report.Found)

	profile := report.Result.(*aggregate.LCAProfile)
	require.Equal(t, 1, profile.RowTotal)
	data, err := json.Marshal(profile.Data[0])
	require.NoError(t, err)
	require.JSONEq(t, `["Bacteria;Firmicutes",3,-10,80,40,2,2]`, string(data))

	// the reference store is never consulted
	require.Empty(t, f.reference.Lookups())
}
