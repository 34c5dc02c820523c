// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package cassconn

import (
	"context"
	"strings"

	"github.com/gocql/gocql"

	"storj.io/abundance/private/audit"
)

// observer forwards every statement the driver executes to the audit channel.
type observer struct {
	publisher audit.Publisher
	host      string
}

// ObserveQuery implements gocql.QueryObserver.
func (observer *observer) ObserveQuery(ctx context.Context, query gocql.ObservedQuery) {
	if query.Attempt > 0 {
		return
	}
	observer.publisher.Publish(ctx, audit.NewEvent(
		query.Start,
		audit.StatementKind(query.Statement),
		query.Statement,
		query.Rows,
		observer.host,
	))
}

// ObserveBatch implements gocql.BatchObserver.
func (observer *observer) ObserveBatch(ctx context.Context, batch gocql.ObservedBatch) {
	if batch.Attempt > 0 {
		return
	}
	observer.publisher.Publish(ctx, audit.NewEvent(
		batch.Start,
		"batch",
		strings.Join(batch.Statements, "; "),
		len(batch.Statements),
		observer.host,
	))
}
