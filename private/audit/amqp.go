// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/streadway/amqp"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// pendingLimit is how many events may wait for the queue before new ones are dropped.
const pendingLimit = 1024

// AMQP publishes audit events to an AMQP queue from a background goroutine.
type AMQP struct {
	log   *zap.Logger
	queue string

	conn    *amqp.Connection
	channel *amqp.Channel

	mu      sync.RWMutex
	closed  bool
	pending chan Event
	done    chan struct{}
	once    sync.Once
}

// OpenAMQP connects to the queue described by config and starts publishing.
func OpenAMQP(log *zap.Logger, config Config) (*AMQP, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, conn.Close()))
	}

	_, err = channel.QueueDeclare(config.Queue, true, false, false, false, nil)
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, channel.Close(), conn.Close()))
	}

	publisher := &AMQP{
		log:     log,
		queue:   config.Queue,
		conn:    conn,
		channel: channel,
		pending: make(chan Event, pendingLimit),
		done:    make(chan struct{}),
	}
	go publisher.run()
	return publisher, nil
}

// Publish queues event for publishing. When the queue is full or the
// publisher is closed the event is dropped.
func (publisher *AMQP) Publish(ctx context.Context, event Event) {
	publisher.mu.RLock()
	defer publisher.mu.RUnlock()

	if publisher.closed {
		mon.Counter("audit_dropped").Inc(1)
		return
	}
	select {
	case publisher.pending <- event:
	default:
		mon.Counter("audit_dropped").Inc(1)
	}
}

func (publisher *AMQP) run() {
	defer close(publisher.done)
	for event := range publisher.pending {
		body, err := json.Marshal(event)
		if err != nil {
			publisher.log.Debug("unable to encode audit event", zap.Error(err))
			continue
		}
		err = publisher.channel.Publish("", publisher.queue, false, false, amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   event.Timestamp,
			Type:        event.Type,
			Body:        body,
		})
		if err != nil {
			mon.Counter("audit_failed").Inc(1)
			publisher.log.Debug("unable to publish audit event", zap.Error(err))
		}
	}
}

// Close flushes queued events and closes the connection.
func (publisher *AMQP) Close() (err error) {
	publisher.once.Do(func() {
		publisher.stop()
		err = Error.Wrap(errs.Combine(publisher.channel.Close(), publisher.conn.Close()))
	})
	return err
}

// stop stops accepting events and waits until the queued ones are published.
func (publisher *AMQP) stop() {
	publisher.mu.Lock()
	if !publisher.closed {
		publisher.closed = true
		close(publisher.pending)
	}
	publisher.mu.Unlock()

	<-publisher.done
}
