// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package blobstore defines where aggregation results are stored.
//
// Results are written under a node: a named container holding files, a JSON
// attribute document, an optional expiration and an access list.
package blobstore

import (
	"context"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/abundance/blobstore/s3store"
	"storj.io/abundance/blobstore/shock"
)

// Error is the error class for this package.
var Error = errs.Class("blobstore")

// Attributes is the attribute document of a node.
type Attributes map[string]interface{}

// Clone returns a shallow copy of attrs.
func (attrs Attributes) Clone() Attributes {
	clone := make(Attributes, len(attrs))
	for key, value := range attrs {
		clone[key] = value
	}
	return clone
}

// Store stores files and metadata under nodes.
type Store interface {
	// Upload stores data as the file name of node.
	Upload(ctx context.Context, node, name string, data []byte) error
	// SetAttributes replaces the attribute document of node.
	SetAttributes(ctx context.Context, node string, attrs map[string]interface{}) error
	// SetExpiration makes node expire after ttl; zero removes the expiration.
	SetExpiration(ctx context.Context, node string, ttl time.Duration) error
	// SetPublic grants public read access to node.
	SetPublic(ctx context.Context, node string) error
	// Close releases the resources of the store.
	Close() error
}

// Config contains configurable values for the blob store.
type Config struct {
	Backend string `help:"blob store backend, shock or s3, empty disables result uploads" default:"shock"`

	Shock shock.Config
	S3    s3store.Config
}

// Open returns the store selected by config.Backend, or nil when uploads are disabled.
func Open(ctx context.Context, log *zap.Logger, config Config) (Store, error) {
	switch config.Backend {
	case "":
		return nil, nil
	case "shock":
		return shock.New(log.Named("shock"), config.Shock, nil), nil
	case "s3":
		store, err := s3store.Open(ctx, log.Named("s3"), config.S3)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return store, nil
	default:
		return nil, Error.New("unknown backend %q", config.Backend)
	}
}
