// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cassconn owns the connections to the wide-column cluster.
package cassconn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/private/audit"
)

var (
	// Error is the error class for this package.
	Error = errs.Class("cassconn")

	mon = monkit.Package()
)

// Config contains configurable values for the cluster connection.
type Config struct {
	Hosts       string        `help:"comma separated list of cluster contact points" default:"127.0.0.1"`
	Timeout     time.Duration `help:"client side timeout of a single statement" default:"5m0s"`
	Consistency string        `help:"default consistency level of reads and writes" default:"quorum"`
	Retries     int           `help:"number of times a failed statement is retried by the driver" default:"3"`
}

// HostList returns the configured contact points.
func (config Config) HostList() []string {
	var hosts []string
	for _, host := range strings.Split(config.Hosts, ",") {
		if host = strings.TrimSpace(host); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// Pool lazily opens at most one session per keyspace and keeps it until Close.
//
// A Pool is safe for concurrent use, and sessions returned from it may be
// shared between workers.
type Pool struct {
	log      *zap.Logger
	config   Config
	observer *observer

	dial func(cluster *gocql.ClusterConfig) (*gocql.Session, error)

	mu       sync.Mutex
	sessions map[string]*gocql.Session
}

// NewPool creates a pool. No connection is made until the first Session call.
func NewPool(log *zap.Logger, config Config, publisher audit.Publisher, host string) *Pool {
	if publisher == nil {
		publisher = audit.Nop{}
	}
	return &Pool{
		log:    log,
		config: config,
		observer: &observer{
			publisher: publisher,
			host:      host,
		},
		dial: func(cluster *gocql.ClusterConfig) (*gocql.Session, error) {
			return cluster.CreateSession()
		},
		sessions: make(map[string]*gocql.Session),
	}
}

// Session returns the session bound to keyspace, connecting on first use.
// Calling it again for the same keyspace returns the same session.
func (pool *Pool) Session(ctx context.Context, keyspace string) (_ *gocql.Session, err error) {
	defer mon.Task()(&ctx, keyspace)(&err)

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if session, ok := pool.sessions[keyspace]; ok {
		return session, nil
	}

	cluster, err := pool.cluster(keyspace)
	if err != nil {
		return nil, err
	}

	session, err := pool.dial(cluster)
	if err != nil {
		return nil, Error.New("unable to connect to keyspace %q: %w", keyspace, err)
	}

	pool.log.Debug("connected", zap.String("keyspace", keyspace), zap.Strings("hosts", cluster.Hosts))
	pool.sessions[keyspace] = session
	return session, nil
}

func (pool *Pool) cluster(keyspace string) (*gocql.ClusterConfig, error) {
	hosts := pool.config.HostList()
	if len(hosts) == 0 {
		return nil, Error.New("no cluster hosts configured")
	}

	consistency, err := gocql.ParseConsistencyWrapper(pool.config.Consistency)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = consistency
	if pool.config.Timeout > 0 {
		cluster.Timeout = pool.config.Timeout
	}
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: pool.config.Retries}
	cluster.QueryObserver = pool.observer
	cluster.BatchObserver = pool.observer
	return cluster, nil
}

// Close closes every open session. A later Session call reconnects.
func (pool *Pool) Close() error {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	for keyspace, session := range pool.sessions {
		if session != nil {
			session.Close()
		}
		delete(pool.sessions, keyspace)
	}
	return nil
}
