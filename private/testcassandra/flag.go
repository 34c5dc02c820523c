// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testcassandra gives tests access to a real cluster when one is configured.
package testcassandra

import (
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"storj.io/abundance/private/cassconn"
	"storj.io/common/testcontext"
)

// We need to define this in a separate package due to https://golang.org/issue/23910.

// Hosts is the comma separated list of test cluster contact points.
var Hosts = flag.String("cassandra-test-hosts", os.Getenv("STORJ_TEST_CASSANDRA"), "Cassandra test cluster contact points")

// DefaultHosts is expected to work with a local single node cluster.
const DefaultHosts = "127.0.0.1"

// Run opens a pool to the test cluster and calls test with a keyspace name
// unique to this test. The test is skipped when no cluster is configured.
func Run(t *testing.T, test func(ctx *testcontext.Context, t *testing.T, pool *cassconn.Pool, keyspace string)) {
	if *Hosts == "" {
		t.Skipf("cassandra flag missing, example:\n-cassandra-test-hosts=%s", DefaultHosts)
	}

	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	pool := cassconn.NewPool(zaptest.NewLogger(t), cassconn.Config{
		Hosts:       *Hosts,
		Timeout:     30 * time.Second,
		Consistency: "one",
	}, nil, "test")
	defer ctx.Check(pool.Close)

	keyspace := fmt.Sprintf("test_%d", time.Now().UnixNano())

	system, err := pool.Session(ctx, "system")
	if err != nil {
		t.Fatal(err)
	}
	err = system.Query(fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = { 'class': 'SimpleStrategy', 'replication_factor': '1' }`, keyspace)).WithContext(ctx).Exec()
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		err := system.Query("DROP KEYSPACE IF EXISTS " + keyspace).WithContext(ctx).Exec()
		if err != nil {
			t.Log(err)
		}
	}()

	test(ctx, t, pool, keyspace)
}
