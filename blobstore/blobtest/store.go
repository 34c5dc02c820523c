// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package blobtest implements an in-memory blob store that records every call.
package blobtest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/zeebo/errs"
)

// Error is the error class of injected failures.
var Error = errs.Class("blobtest")

// Call is one recorded store call.
type Call struct {
	Method string
	Node   string
	Name   string
	Data   []byte
	Attrs  map[string]interface{}
	TTL    time.Duration
}

// Store is an in-memory blob store.
type Store struct {
	mu sync.Mutex

	calls []Call
	files map[string]map[string][]byte
	attrs map[string]map[string]interface{}
	ttls  map[string]time.Duration
	open  map[string]bool

	// Fail returns the error of the next call to method, nil for success.
	Fail func(method, node, name string) error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		files: map[string]map[string][]byte{},
		attrs: map[string]map[string]interface{}{},
		ttls:  map[string]time.Duration{},
		open:  map[string]bool{},
	}
}

func (store *Store) record(call Call) error {
	store.calls = append(store.calls, call)
	if store.Fail != nil {
		return store.Fail(call.Method, call.Node, call.Name)
	}
	return nil
}

// Upload implements blobstore.Store.
func (store *Store) Upload(ctx context.Context, node, name string, data []byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	data = append([]byte(nil), data...)
	if err := store.record(Call{Method: "Upload", Node: node, Name: name, Data: data}); err != nil {
		return err
	}
	if store.files[node] == nil {
		store.files[node] = map[string][]byte{}
	}
	store.files[node][name] = data
	return nil
}

// SetAttributes implements blobstore.Store. The attributes are copied
// through JSON, the way a remote store would see them.
func (store *Store) SetAttributes(ctx context.Context, node string, attrs map[string]interface{}) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return Error.Wrap(err)
	}
	var copied map[string]interface{}
	if err := json.Unmarshal(data, &copied); err != nil {
		return Error.Wrap(err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.record(Call{Method: "SetAttributes", Node: node, Attrs: copied}); err != nil {
		return err
	}
	store.attrs[node] = copied
	return nil
}

// SetExpiration implements blobstore.Store.
func (store *Store) SetExpiration(ctx context.Context, node string, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.record(Call{Method: "SetExpiration", Node: node, TTL: ttl}); err != nil {
		return err
	}
	if ttl <= 0 {
		delete(store.ttls, node)
		return nil
	}
	store.ttls[node] = ttl
	return nil
}

// SetPublic implements blobstore.Store.
func (store *Store) SetPublic(ctx context.Context, node string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.record(Call{Method: "SetPublic", Node: node}); err != nil {
		return err
	}
	store.open[node] = true
	return nil
}

// Close implements blobstore.Store.
func (store *Store) Close() error { return nil }

// Calls returns every call so far.
func (store *Store) Calls() []Call {
	store.mu.Lock()
	defer store.mu.Unlock()
	return append([]Call(nil), store.calls...)
}

// CallsTo returns the calls of method.
func (store *Store) CallsTo(method string) []Call {
	var calls []Call
	for _, call := range store.Calls() {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// File returns the stored file name of node.
func (store *Store) File(node, name string) ([]byte, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	data, ok := store.files[node][name]
	return data, ok
}

// Files returns the names of the files of node.
func (store *Store) Files(node string) []string {
	store.mu.Lock()
	defer store.mu.Unlock()
	var names []string
	for name := range store.files[node] {
		names = append(names, name)
	}
	return names
}

// Attributes returns the current attributes of node.
func (store *Store) Attributes(node string) map[string]interface{} {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.attrs[node]
}

// Expiration returns the expiration of node, zero when it has none.
func (store *Store) Expiration(node string) time.Duration {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.ttls[node]
}

// IsPublic returns whether node was made public.
func (store *Store) IsPublic(node string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.open[node]
}
