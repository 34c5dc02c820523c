// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package shock_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/abundance/blobstore/shock"
	"storj.io/abundance/private/httpmock"
	"storj.io/common/testcontext"
)

const server = "http://shock.test"

func newClient(t *testing.T) (*shock.Client, *httpmock.Transport) {
	httpClient, transport := httpmock.NewClient()
	transport.SetFallback(httpmock.Response{StatusCode: http.StatusOK, Body: `{"status":200}`})
	return shock.New(zaptest.NewLogger(t), shock.Config{
		URL:    server + "/",
		Bearer: "mgrast",
		Token:  "secret",
	}, httpClient), transport
}

// parts reads the multipart form of a recorded request.
func parts(t *testing.T, req httpmock.Request) map[string]string {
	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	found := map[string]string{}
	reader := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		key := part.FormName()
		if part.FileName() != "" {
			key += ":" + part.FileName()
		}
		found[key] = string(data)
	}
	return found
}

func TestUpload(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client, transport := newClient(t)
	require.NoError(t, client.Upload(ctx, "node-1", "mgm1_RefSeq_v1.biom", []byte(`{"id":"mgm1"}`)))

	requests := transport.Requests()
	require.Len(t, requests, 1)
	require.Equal(t, http.MethodPut, requests[0].Method)
	require.Equal(t, server+"/node/node-1", requests[0].URL)
	require.Equal(t, "mgrast secret", requests[0].Header.Get("Authorization"))
	require.Equal(t, map[string]string{"upload:mgm1_RefSeq_v1.biom": `{"id":"mgm1"}`}, parts(t, requests[0]))
}

func TestSetAttributes(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client, transport := newClient(t)
	require.NoError(t, client.SetAttributes(ctx, "node-1", map[string]interface{}{"row_total": 3}))

	form := parts(t, transport.Requests()[0])
	var attrs map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(form["attributes:attributes.json"]), &attrs))
	require.Equal(t, map[string]interface{}{"row_total": 3.0}, attrs)
}

func TestSetExpiration(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client, transport := newClient(t)
	require.NoError(t, client.SetExpiration(ctx, "node-1", 24*time.Hour))
	require.NoError(t, client.SetExpiration(ctx, "node-1", 0))

	requests := transport.Requests()
	require.Len(t, requests, 2)
	require.Equal(t, map[string]string{"expiration": "1D"}, parts(t, requests[0]))
	require.Equal(t, map[string]string{"remove_expiration": "true"}, parts(t, requests[1]))
}

func TestSetPublic(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client, transport := newClient(t)
	require.NoError(t, client.SetPublic(ctx, "node-1"))

	requests := transport.Requests()
	require.Len(t, requests, 1)
	require.Equal(t, server+"/node/node-1/acl/public_read", requests[0].URL)
}

func TestErrorReply(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client, transport := newClient(t)
	transport.AddResponse(http.MethodPut, server+"/node/node-2", httpmock.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"status":401,"error":["invalid token"]}`,
	})

	err := client.Upload(ctx, "node-2", "x", nil)
	require.Error(t, err)
	require.True(t, shock.Error.Has(err))
	require.Contains(t, err.Error(), "invalid token")

	// unauthenticated clients send no authorization
	httpClient, transport := httpmock.NewClient()
	transport.SetFallback(httpmock.Response{StatusCode: http.StatusOK})
	anonymous := shock.New(zaptest.NewLogger(t), shock.Config{URL: server}, httpClient)
	require.NoError(t, anonymous.SetPublic(ctx, "node-3"))
	require.Empty(t, transport.Requests()[0].Header.Get("Authorization"))
}

func TestFormatExpiration(t *testing.T) {
	require.Equal(t, "1D", shock.FormatExpiration(24*time.Hour))
	require.Equal(t, "3D", shock.FormatExpiration(72*time.Hour))
	require.Equal(t, "5H", shock.FormatExpiration(5*time.Hour))
	require.Equal(t, "90M", shock.FormatExpiration(90*time.Minute))
	require.Equal(t, "2M", shock.FormatExpiration(61*time.Second))
}
