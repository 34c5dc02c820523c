// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package shock is a client of the Shock node store HTTP API.
package shock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the error class for this package.
	Error = errs.Class("shock")

	mon = monkit.Package()
)

// Config contains configurable values for the Shock client.
type Config struct {
	URL     string        `help:"url of the Shock server" default:"http://shock.metagenomics.anl.gov"`
	Bearer  string        `help:"authorization scheme sent with the token" default:"mgrast"`
	Token   string        `help:"authorization token, empty sends no authorization" default:""`
	Timeout time.Duration `help:"timeout of a single request" default:"5m0s"`
}

// Client talks to a Shock server.
type Client struct {
	log    *zap.Logger
	config Config
	http   *http.Client
}

// New creates a client. A nil httpClient uses a client with config.Timeout.
func New(log *zap.Logger, config Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{
		log:    log,
		config: config,
		http:   httpClient,
	}
}

// Upload stores data as the file of node.
func (client *Client) Upload(ctx context.Context, node, name string, data []byte) (err error) {
	defer mon.Task()(&ctx, node, name)(&err)

	return client.putMultipart(ctx, node, func(form *multipart.Writer) error {
		part, err := form.CreateFormFile("upload", name)
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	})
}

// SetAttributes replaces the attribute document of node.
func (client *Client) SetAttributes(ctx context.Context, node string, attrs map[string]interface{}) (err error) {
	defer mon.Task()(&ctx, node)(&err)

	data, err := json.Marshal(attrs)
	if err != nil {
		return Error.Wrap(err)
	}
	return client.putMultipart(ctx, node, func(form *multipart.Writer) error {
		part, err := form.CreateFormFile("attributes", "attributes.json")
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	})
}

// SetExpiration makes node expire after ttl; zero removes the expiration.
func (client *Client) SetExpiration(ctx context.Context, node string, ttl time.Duration) (err error) {
	defer mon.Task()(&ctx, node)(&err)

	return client.putMultipart(ctx, node, func(form *multipart.Writer) error {
		if ttl <= 0 {
			return form.WriteField("remove_expiration", "true")
		}
		return form.WriteField("expiration", FormatExpiration(ttl))
	})
}

// SetPublic grants public read access to node.
func (client *Client) SetPublic(ctx context.Context, node string) (err error) {
	defer mon.Task()(&ctx, node)(&err)

	return client.do(ctx, http.MethodPut, "/node/"+url.PathEscape(node)+"/acl/public_read", "", nil)
}

// Close implements blobstore.Store.
func (client *Client) Close() error {
	client.http.CloseIdleConnections()
	return nil
}

// FormatExpiration formats ttl the way Shock expects, in whole days,
// hours or minutes.
func FormatExpiration(ttl time.Duration) string {
	switch {
	case ttl%(24*time.Hour) == 0:
		return fmt.Sprintf("%dD", ttl/(24*time.Hour))
	case ttl%time.Hour == 0:
		return fmt.Sprintf("%dH", ttl/time.Hour)
	default:
		minutes := (ttl + time.Minute - 1) / time.Minute
		return fmt.Sprintf("%dM", minutes)
	}
}

func (client *Client) putMultipart(ctx context.Context, node string, write func(*multipart.Writer) error) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := write(form); err != nil {
		return Error.Wrap(err)
	}
	if err := form.Close(); err != nil {
		return Error.Wrap(err)
	}
	return client.do(ctx, http.MethodPut, "/node/"+url.PathEscape(node), form.FormDataContentType(), &body)
}

// response is the envelope of every Shock reply.
type response struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  []string        `json:"error"`
}

func (client *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (err error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(client.config.URL, "/")+path, body)
	if err != nil {
		return Error.Wrap(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if client.config.Token != "" {
		req.Header.Set("Authorization", client.config.Bearer+" "+client.config.Token)
	}

	resp, err := client.http.Do(req)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(resp.Body.Close())) }()

	client.log.Debug("request", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var reply response
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if json.Unmarshal(data, &reply) == nil && len(reply.Error) > 0 {
		return Error.New("%s %s: %d: %s", method, path, resp.StatusCode, strings.Join(reply.Error, "; "))
	}
	return Error.New("%s %s: %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
}
