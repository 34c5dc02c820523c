// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package s3store keeps nodes in an S3 compatible bucket.
//
// A node is a key prefix. Its files are stored as objects under the prefix
// and its attributes, expiration and access are kept in a manifest object
// next to them.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the error class for this package.
	Error = errs.Class("s3store")

	mon = monkit.Package()
)

// ManifestName is the name of the manifest object of every node.
const ManifestName = "node.json"

// Config contains configurable values for the S3 store.
type Config struct {
	Endpoint  string `help:"S3 endpoint as host:port" default:""`
	Bucket    string `help:"bucket holding result nodes" default:"abundance"`
	AccessKey string `help:"S3 access key" default:""`
	SecretKey string `help:"S3 secret key" default:""`
	Secure    bool   `help:"use https to reach the endpoint" default:"true"`
}

// Manifest describes a node.
type Manifest struct {
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty"`
	Public     bool                   `json:"public"`
}

// Store keeps nodes in a bucket.
type Store struct {
	log    *zap.Logger
	client *minio.Client
	bucket string
	now    func() time.Time
}

// Open connects to the endpoint and verifies that the bucket exists.
func Open(ctx context.Context, log *zap.Logger, config Config) (_ *Store, err error) {
	defer mon.Task()(&ctx)(&err)

	if config.Endpoint == "" {
		return nil, Error.New("no endpoint configured")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.Secure,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !exists {
		return nil, Error.New("bucket %q does not exist", config.Bucket)
	}

	return &Store{
		log:    log,
		client: client,
		bucket: config.Bucket,
		now:    time.Now,
	}, nil
}

// SetNow allows tests to have the store act as if the current time is whatever they want.
func (store *Store) SetNow(now func() time.Time) {
	store.now = now
}

// ObjectKey returns the key of file name of node.
func ObjectKey(node, name string) string {
	return path.Join(node, path.Base("/"+name))
}

// ContentType returns the content type stored with file name.
func ContentType(name string) string {
	switch path.Ext(name) {
	case ".json", ".biom", ".mgrast", ".summary":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Upload stores data as the file name of node.
func (store *Store) Upload(ctx context.Context, node, name string, data []byte) (err error) {
	defer mon.Task()(&ctx, node, name)(&err)

	_, err = store.client.PutObject(ctx, store.bucket, ObjectKey(node, name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: ContentType(name)})
	return Error.Wrap(err)
}

// SetAttributes replaces the attribute document of node.
func (store *Store) SetAttributes(ctx context.Context, node string, attrs map[string]interface{}) (err error) {
	defer mon.Task()(&ctx, node)(&err)

	return store.update(ctx, node, func(manifest *Manifest) {
		manifest.Attributes = attrs
	})
}

// SetExpiration makes node expire after ttl; zero removes the expiration.
func (store *Store) SetExpiration(ctx context.Context, node string, ttl time.Duration) (err error) {
	defer mon.Task()(&ctx, node)(&err)

	return store.update(ctx, node, func(manifest *Manifest) {
		if ttl <= 0 {
			manifest.ExpiresAt = nil
			return
		}
		expires := store.now().Add(ttl).UTC()
		manifest.ExpiresAt = &expires
	})
}

// SetPublic grants public read access to node.
func (store *Store) SetPublic(ctx context.Context, node string) (err error) {
	defer mon.Task()(&ctx, node)(&err)

	return store.update(ctx, node, func(manifest *Manifest) {
		manifest.Public = true
	})
}

// Manifest returns the manifest of node; a node without one has an empty manifest.
func (store *Store) Manifest(ctx context.Context, node string) (_ Manifest, err error) {
	defer mon.Task()(&ctx, node)(&err)

	var manifest Manifest
	object, err := store.client.GetObject(ctx, store.bucket, ObjectKey(node, ManifestName), minio.GetObjectOptions{})
	if err != nil {
		return manifest, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(object.Close())) }()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return manifest, nil
		}
		return manifest, Error.Wrap(err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, Error.Wrap(err)
	}
	return manifest, nil
}

// update rewrites the manifest of node. Concurrent updates of the same node
// are not serialized; the engine updates a node from one goroutine only.
func (store *Store) update(ctx context.Context, node string, change func(*Manifest)) error {
	manifest, err := store.Manifest(ctx, node)
	if err != nil {
		return err
	}
	change(&manifest)

	data, err := json.Marshal(manifest)
	if err != nil {
		return Error.Wrap(err)
	}
	_, err = store.client.PutObject(ctx, store.bucket, ObjectKey(node, ManifestName), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return Error.Wrap(err)
}

// Close implements blobstore.Store.
func (store *Store) Close() error { return nil }
