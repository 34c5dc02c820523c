// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package audit publishes a truncated record of every executed store
// statement to a message queue.
//
// Publishing is fire-and-forget: a failing or slow queue never fails or
// delays the statement that is being audited.
package audit

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the error class for this package.
	Error = errs.Class("audit")

	mon = monkit.Package()
)

// StatementLimit is the maximum number of statement characters included in an Event.
const StatementLimit = 100

// Config contains configurable values for the audit channel.
type Config struct {
	URL   string `help:"AMQP url of the query audit channel, empty disables auditing" default:""`
	Queue string `help:"queue name the audit events are published to" default:"cassandra.queries"`
	Host  string `help:"host name reported with audit events, defaults to the machine hostname" default:""`
}

// Event is one audited statement.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Statement string    `json:"statement"`
	BulkCount int       `json:"bulk_count"`
	Host      string    `json:"host"`
}

// NewEvent creates an event for statement, truncating it to StatementLimit characters.
func NewEvent(at time.Time, kind, statement string, bulk int, host string) Event {
	return Event{
		Timestamp: at,
		Type:      kind,
		Statement: Truncate(statement),
		BulkCount: bulk,
		Host:      host,
	}
}

// Truncate shortens statement to at most StatementLimit characters.
func Truncate(statement string) string {
	statement = strings.TrimSpace(statement)
	runes := []rune(statement)
	if len(runes) <= StatementLimit {
		return statement
	}
	return string(runes[:StatementLimit])
}

// StatementKind returns the lowercased leading keyword of a statement,
// e.g. "select" or "insert".
func StatementKind(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

// Publisher publishes audit events. Implementations never return errors
// to the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// Open returns the publisher described by config. An empty URL disables
// auditing and returns a publisher that drops every event.
func Open(log *zap.Logger, config Config) (Publisher, error) {
	if config.URL == "" {
		return Nop{}, nil
	}
	return OpenAMQP(log, config)
}

// HostName returns the configured host or, when empty, the machine hostname.
func (config Config) HostName() string {
	if config.Host != "" {
		return config.Host
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// Nop is a publisher that drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) {}

// Close implements Publisher.
func (Nop) Close() error { return nil }
