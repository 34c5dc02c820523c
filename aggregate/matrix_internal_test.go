// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCellMean(t *testing.T) {
	require.Equal(t, 3.0, cell{count: 3, sum: 9}.mean())
	require.Equal(t, 0.0, cell{}.mean())
	require.Equal(t, 0.333, cell{count: 3, sum: 1}.mean())
}

func TestGrid(t *testing.T) {
	g := newGrid(2)
	g.add("b", 0, 1)
	g.add("a", 1, 4)
	g.add("b", 0, 3)
	g.add("b", 1, 2)

	require.Equal(t, []string{"b", "a"}, g.labels)
	require.Equal(t, [][]float64{{4, 2}, {0, 4}}, g.finalize(false))
	require.Equal(t, [][]float64{{2, 2}, {0, 4}}, g.finalize(true))
}

func TestIsUnknownLCA(t *testing.T) {
	for _, name := range []string{"", "-", "unknown", "Unknown Bacteria"} {
		require.True(t, isUnknownLCA(name), name)
	}
	require.False(t, isUnknownLCA("Bacteria"))
}

func TestPromote(t *testing.T) {
	require.Equal(t, []string{"b", "a", "c"}, promote([]string{"a", "b", "c"}, "b"))
	require.Equal(t, []string{"a"}, promote([]string{"a"}, ""))
}

func TestRequestFileNames(t *testing.T) {
	require.Equal(t, "mgm1_SEED_v2.mgrast", (&FlatProfileRequest{ID: "mgm1", Source: "SEED"}).FileName(2))
	require.Equal(t, "mgm1_SEED_v2.biom", (&BIOMProfileRequest{ID: "mgm1", Source: "SEED"}).FileName(2))
	require.Equal(t, "mgm1_LCA_v2.mgrast", (&LCAProfileRequest{ID: "mgm1"}).FileName(2))
	require.Equal(t, "m.biom", (&MatrixRequest{ID: "m"}).FileName(2))
}
