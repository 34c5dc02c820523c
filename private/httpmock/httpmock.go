// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package httpmock provides an http.RoundTripper that replays canned
// responses and records every request it receives.
package httpmock

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Response represents a mocked HTTP response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Request is a recorded request with its body read.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Transport is a custom HTTP transport for handling mocked responses.
type Transport struct {
	mutex     sync.Mutex
	responses map[string][]Response
	fallback  *Response
	requests  []Request
}

// NewTransport creates a new instance of Transport.
func NewTransport() *Transport {
	return &Transport{
		responses: make(map[string][]Response),
	}
}

// AddResponse registers a response for a given method and URL.
// Multiple responses for the same request will be returned in sequence.
func (t *Transport) AddResponse(method, url string, response Response) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	key := method + " " + url
	t.responses[key] = append(t.responses[key], response)
}

// SetFallback sets the response returned when no registered response
// matches. Without a fallback unmatched requests get 404.
func (t *Transport) SetFallback(response Response) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.fallback = &response
}

// Requests returns every request received so far.
func (t *Transport) Requests() []Request {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]Request(nil), t.requests...)
}

// RoundTrip implements the http.RoundTripper interface.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.requests = append(t.requests, Request{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	key := req.Method + " " + req.URL.String()
	response := Response{StatusCode: http.StatusNotFound, Body: "Not Found"}
	if responses := t.responses[key]; len(responses) > 0 {
		response = responses[0]
		t.responses[key] = responses[1:]
	} else if t.fallback != nil {
		response = *t.fallback
	}

	headers := make(http.Header)
	for key, value := range response.Headers {
		headers.Set(key, value)
	}

	return &http.Response{
		StatusCode: response.StatusCode,
		Header:     headers,
		Body:       io.NopCloser(strings.NewReader(response.Body)),
		Request:    req,
	}, nil
}

// NewClient creates an *http.Client configured to use the Transport.
func NewClient() (*http.Client, *Transport) {
	transport := NewTransport()
	client := &http.Client{Transport: transport}
	return client, transport
}
