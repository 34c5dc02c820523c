// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package m5nrcache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/abundance/m5nr"
	"storj.io/abundance/m5nr/m5nrcache"
	"storj.io/abundance/m5nr/testm5nr"
	"storj.io/common/testcontext"
)

// countingReader counts grouping map loads.
type countingReader struct {
	m5nr.Reader

	mu    sync.Mutex
	loads int
}

func (reader *countingReader) GroupingMap(ctx context.Context, kind m5nr.Kind, level, source string) (m5nr.GroupingMap, error) {
	reader.mu.Lock()
	reader.loads++
	reader.mu.Unlock()
	return reader.Reader.GroupingMap(ctx, kind, level, source)
}

func (reader *countingReader) Loads() int {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	return reader.loads
}

func newReader(t *testing.T) *countingReader {
	db := testm5nr.New()
	db.AddOrganism("Escherichia coli", "Bacteria", "Proteobacteria", "Gammaproteobacteria", "Enterobacterales", "Enterobacteriaceae", "Escherichia", "Escherichia coli")
	db.AddOrganism("Homo sapiens", "Eukaryota", "Chordata", "Mammalia", "Primates", "Hominidae", "Homo", "Homo sapiens")
	db.AddRecord(m5nr.Record{MD5: "h1", Source: "RefSeq", Organism: []string{"Escherichia coli"}})
	return &countingReader{Reader: m5nr.NewService(zaptest.NewLogger(t), db, m5nr.Config{Version: 1})}
}

func TestCache(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	server := miniredis.RunT(t)
	reader := newReader(t)

	cache, err := m5nrcache.Open(ctx, zaptest.NewLogger(t), reader, m5nrcache.Config{
		Address: "redis://" + server.Addr() + "?db=0",
		TTL:     time.Hour,
	}, 1)
	require.NoError(t, err)
	defer ctx.Check(cache.Close)

	expected := m5nr.GroupingMap{"Escherichia coli": "Bacteria", "Homo sapiens": "Eukaryota"}

	for i := 0; i < 3; i++ {
		grouping, err := cache.GroupingMap(ctx, m5nr.Organism, "domain", "")
		require.NoError(t, err)
		require.Equal(t, expected, grouping)
	}
	require.Equal(t, 1, reader.Loads())

	key := "m5nr:v1:map:organism:domain:"
	require.True(t, server.Exists(key))
	require.Equal(t, time.Hour, server.TTL(key))

	server.FastForward(2 * time.Hour)
	require.False(t, server.Exists(key))

	_, err = cache.GroupingMap(ctx, m5nr.Organism, "domain", "")
	require.NoError(t, err)
	require.Equal(t, 2, reader.Loads())
}

func TestCacheOtherTables(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	cache := m5nrcache.New(zaptest.NewLogger(t), newReader(t), client, 2, time.Minute)
	defer ctx.Check(cache.Close)

	leaves, err := cache.LeavesByLevel(ctx, m5nr.Organism, "species", "", "coli")
	require.NoError(t, err)
	require.Equal(t, m5nr.FilterList{"Escherichia coli"}, leaves)
	require.True(t, server.Exists("m5nr:v2:leaves:organism:species::coli"))

	upper, err := cache.LeavesByLevel(ctx, m5nr.Organism, "species", "", "COLI")
	require.NoError(t, err)
	require.Equal(t, leaves, upper)
	require.False(t, server.Exists("m5nr:v2:leaves:organism:species::COLI"))
	require.Len(t, server.Keys(), 1)

	taxonomy, err := cache.TaxonomyHierarchy(ctx)
	require.NoError(t, err)
	require.Len(t, taxonomy, 2)

	// served from redis
	taxonomy, err = cache.TaxonomyHierarchy(ctx)
	require.NoError(t, err)
	require.Equal(t, "Homo", taxonomy["Homo sapiens"][5])

	var found []string
	err = cache.RecordsByHash(ctx, []string{"h1"}, m5nr.LookupOptions{}, func(ctx context.Context, record m5nr.Record) error {
		found = append(found, record.MD5)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"h1"}, found)
}

func TestCacheUnavailable(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	reader := newReader(t)
	cache := m5nrcache.New(zaptest.NewLogger(t), reader, client, 1, time.Minute)
	defer func() { _ = cache.Close() }()

	server.Close()

	// a broken cache falls back to the store
	grouping, err := cache.GroupingMap(ctx, m5nr.Organism, "domain", "")
	require.NoError(t, err)
	require.Len(t, grouping, 2)
	require.Equal(t, 1, reader.Loads())
}

func TestOpenInvalidAddress(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	_, err := m5nrcache.Open(ctx, zaptest.NewLogger(t), newReader(t), m5nrcache.Config{Address: "http://localhost"}, 1)
	require.Error(t, err)
	require.True(t, m5nrcache.Error.Has(err))
}
