// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package blobstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/abundance/blobstore"
	"storj.io/abundance/blobstore/blobtest"
	"storj.io/abundance/blobstore/s3store"
	"storj.io/abundance/blobstore/shock"
	"storj.io/common/testcontext"
)

var (
	_ blobstore.Store = (*shock.Client)(nil)
	_ blobstore.Store = (*s3store.Store)(nil)
	_ blobstore.Store = (*blobtest.Store)(nil)
)

func TestOpen(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	log := zaptest.NewLogger(t)

	store, err := blobstore.Open(ctx, log, blobstore.Config{})
	require.NoError(t, err)
	require.Nil(t, store)

	store, err = blobstore.Open(ctx, log, blobstore.Config{Backend: "shock", Shock: shock.Config{URL: "http://localhost"}})
	require.NoError(t, err)
	require.IsType(t, &shock.Client{}, store)
	require.NoError(t, store.Close())

	_, err = blobstore.Open(ctx, log, blobstore.Config{Backend: "s3"})
	require.Error(t, err)

	_, err = blobstore.Open(ctx, log, blobstore.Config{Backend: "ftp"})
	require.Error(t, err)
	require.True(t, blobstore.Error.Has(err))
}

func TestAttributesClone(t *testing.T) {
	attrs := blobstore.Attributes{"status": "private"}
	clone := attrs.Clone()
	clone["status"] = "public"
	require.Equal(t, "private", attrs["status"])
}
