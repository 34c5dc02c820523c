// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/aggregate"
	"storj.io/abundance/blobstore"
	"storj.io/abundance/jobs/cassjobs"
	"storj.io/abundance/m5nr"
	"storj.io/abundance/m5nr/cassm5nr"
	"storj.io/abundance/m5nr/m5nrcache"
	"storj.io/abundance/private/audit"
	"storj.io/abundance/private/cassconn"
)

// peer holds the connections of one command invocation.
type peer struct {
	log       *zap.Logger
	publisher audit.Publisher
	pool      *cassconn.Pool

	jobs      *cassjobs.DB
	m5nr      *cassm5nr.DB
	cache     *m5nrcache.Cache
	reference m5nr.Reader
	blobs     blobstore.Store
	engine    *aggregate.Engine
}

// openJobs connects to the job tables only.
func openJobs(ctx context.Context, log *zap.Logger, config Config) (_ *peer, err error) {
	p := &peer{log: log}
	defer func() {
		if err != nil {
			err = errs.Combine(err, p.Close())
		}
	}()

	p.publisher, err = audit.Open(log.Named("audit"), config.Audit)
	if err != nil {
		return nil, err
	}
	p.pool = cassconn.NewPool(log.Named("cassandra"), config.Cassandra, p.publisher, config.Audit.HostName())

	p.jobs, err = cassjobs.Open(ctx, log.Named("jobs"), p.pool, config.Jobs, config.Reference.Version)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// openEngine connects to every store the aggregation engine needs.
func openEngine(ctx context.Context, log *zap.Logger, config Config) (_ *peer, err error) {
	p, err := openJobs(ctx, log, config)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, p.Close())
		}
	}()

	p.m5nr, err = cassm5nr.Open(ctx, log.Named("m5nr"), p.pool, config.Reference)
	if err != nil {
		return nil, err
	}
	p.reference = m5nr.NewService(log.Named("reference"), p.m5nr, config.Reference)

	if config.Cache.Address != "" {
		p.cache, err = m5nrcache.Open(ctx, log.Named("cache"), p.reference, config.Cache, config.Reference.Version)
		if err != nil {
			return nil, err
		}
		p.reference = p.cache
	}

	p.blobs, err = blobstore.Open(ctx, log, config.Blobs)
	if err != nil {
		return nil, err
	}

	p.engine = aggregate.NewEngine(log.Named("aggregate"), p.jobs, p.reference, p.blobs, config.Aggregate, config.Reference)
	return p, nil
}

// Close releases every connection of the peer.
func (p *peer) Close() error {
	var group errs.Group
	if p.blobs != nil {
		group.Add(p.blobs.Close())
	}
	if p.cache != nil {
		group.Add(p.cache.Close())
	}
	if p.pool != nil {
		group.Add(p.pool.Close())
	}
	if p.publisher != nil {
		group.Add(p.publisher.Close())
	}
	return group.Err()
}
