// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storj.io/abundance/blobstore"
	"storj.io/abundance/jobs"
	"storj.io/abundance/m5nr"
)

// stream pulls job rows in chunks, resolves every chunk against the
// reference store and hands the annotated rows to a fold function. The
// counters of a stream span every job it joins.
type stream struct {
	engine *Engine
	node   *Node

	queried int64
	found   int64

	interval time.Duration
	last     time.Time
}

func (engine *Engine) newStream(node *Node) *stream {
	return &stream{
		engine:   engine,
		node:     node,
		interval: engine.config.ProgressInterval,
		last:     engine.now(),
	}
}

// admitFunc reduces the hashes of a chunk to the ones that should be joined.
type admitFunc func(ctx context.Context, md5s []string) ([]string, error)

// foldFunc consumes one row together with its reference records.
type foldFunc func(ctx context.Context, row jobs.Row, records []m5nr.Record) error

// join streams the rows of job. Rows without any reference record are
// counted as queried but never folded.
func (s *stream) join(ctx context.Context, job int64, opts jobs.IterateOptions, lookup m5nr.LookupOptions, admit admitFunc, fold foldFunc) (err error) {
	defer mon.Task()(&ctx, job)(&err)

	size := s.engine.config.ChunkSize
	mon.IntVal("chunk_size").Observe(int64(size))

	chunk := make([]jobs.Row, 0, size)
	flush := func(ctx context.Context) error {
		defer func() { chunk = chunk[:0] }()
		return s.flush(ctx, chunk, lookup, admit, fold)
	}

	err = s.engine.jobs.IterateRows(ctx, job, opts, func(ctx context.Context, row jobs.Row) error {
		chunk = append(chunk, row)
		s.queried++
		if len(chunk) < size {
			return nil
		}
		if err := flush(ctx); err != nil {
			return err
		}
		return s.observe(ctx)
	})
	if err != nil {
		return err
	}
	if len(chunk) > 0 {
		return flush(ctx)
	}
	return nil
}

// flush resolves one chunk.
func (s *stream) flush(ctx context.Context, chunk []jobs.Row, lookup m5nr.LookupOptions, admit admitFunc, fold foldFunc) error {
	md5s := make([]string, len(chunk))
	for i, row := range chunk {
		md5s[i] = row.MD5
	}

	if admit != nil {
		var err error
		md5s, err = admit(ctx, md5s)
		if err != nil {
			return err
		}
		if len(md5s) == 0 {
			return nil
		}
	}

	records := map[string][]m5nr.Record{}
	mon.Counter("reference_joins").Inc(1)
	err := s.engine.reference.RecordsByHash(ctx, md5s, lookup, func(ctx context.Context, record m5nr.Record) error {
		records[record.MD5] = append(records[record.MD5], record)
		return nil
	})
	if err != nil {
		return err
	}

	for _, row := range chunk {
		found := records[row.MD5]
		if len(found) == 0 {
			continue
		}
		// a hash is folded once even when the job lists it twice
		delete(records, row.MD5)
		s.found++
		if err := fold(ctx, row, found); err != nil {
			return err
		}
	}
	return nil
}

// observe writes a progress snapshot when the interval has passed since
// the previous one. It is only called between chunks, so that the counters
// cover the same rows.
func (s *stream) observe(ctx context.Context) error {
	now := s.engine.now()
	if now.Sub(s.last) < s.interval {
		return nil
	}
	s.last = now
	return s.snapshot(ctx)
}

// finish writes the final progress snapshot.
func (s *stream) finish(ctx context.Context) error {
	s.last = s.engine.now()
	return s.snapshot(ctx)
}

func (s *stream) snapshot(ctx context.Context) error {
	if s.engine.blobs == nil || s.node == nil {
		return nil
	}
	mon.Counter("progress_snapshots").Inc(1)

	attrs := blobstore.Attributes(s.node.Attributes).Clone()
	attrs["progress"] = map[string]interface{}{
		"queried": s.queried,
		"found":   s.found,
	}
	s.engine.log.Debug("progress",
		zap.String("node", s.node.ID), zap.Int64("queried", s.queried), zap.Int64("found", s.found))
	return s.engine.blobs.SetAttributes(ctx, s.node.ID, attrs)
}
