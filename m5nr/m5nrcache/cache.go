// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package m5nrcache keeps reference hierarchy tables in redis.
//
// Every hierarchy table is a full scan of the reference store, so tables
// are cached for a configurable time and concurrent loads of the same table
// are collapsed into one.
package m5nrcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storj.io/abundance/m5nr"
)

var (
	// Error is the error class for this package.
	Error = errs.Class("m5nrcache")

	mon = monkit.Package()
)

// Config contains configurable values for the hierarchy cache.
type Config struct {
	Address string        `help:"redis url of the hierarchy cache, e.g. redis://127.0.0.1:6379?db=0, empty disables caching" default:""`
	TTL     time.Duration `help:"how long cached hierarchy tables are kept" default:"24h0m0s"`
}

// Cache wraps a reference reader, caching its hierarchy tables.
type Cache struct {
	log    *zap.Logger
	reader m5nr.Reader
	client *redis.Client
	prefix string
	ttl    time.Duration

	group singleflight.Group
}

var _ m5nr.Reader = (*Cache)(nil)

// Open connects to the redis server in config.Address and verifies the connection.
func Open(ctx context.Context, log *zap.Logger, reader m5nr.Reader, config Config, version int) (_ *Cache, err error) {
	defer mon.Task()(&ctx)(&err)

	options, err := parseAddress(config.Address)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errs.Combine(Error.New("ping failed: %w", err), client.Close())
	}
	return New(log, reader, client, version, config.TTL), nil
}

func parseAddress(address string) (*redis.Options, error) {
	redisurl, err := url.Parse(address)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if redisurl.Scheme != "redis" {
		return nil, Error.New("not a redis:// formatted address")
	}

	q := redisurl.Query()
	db := 0
	if value := q.Get("db"); value != "" {
		db, err = strconv.Atoi(value)
		if err != nil {
			return nil, Error.Wrap(err)
		}
	}
	return &redis.Options{
		Addr:     redisurl.Host,
		Password: q.Get("password"),
		DB:       db,
	}, nil
}

// New creates a cache using client. Keys are scoped to the reference version.
func New(log *zap.Logger, reader m5nr.Reader, client *redis.Client, version int, ttl time.Duration) *Cache {
	return &Cache{
		log:    log,
		reader: reader,
		client: client,
		prefix: fmt.Sprintf("m5nr:v%d:", version),
		ttl:    ttl,
	}
}

// Close closes the redis client.
func (cache *Cache) Close() error {
	return Error.Wrap(cache.client.Close())
}

// RecordsByHash implements m5nr.Reader. Records are never cached.
func (cache *Cache) RecordsByHash(ctx context.Context, md5s []string, opts m5nr.LookupOptions, fn func(context.Context, m5nr.Record) error) error {
	return cache.reader.RecordsByHash(ctx, md5s, opts, fn)
}

// TaxonomyHierarchy implements m5nr.Hierarchy.
func (cache *Cache) TaxonomyHierarchy(ctx context.Context) (_ map[string][]string, err error) {
	defer mon.Task()(&ctx)(&err)
	return cached(ctx, cache, "taxonomy", func(ctx context.Context) (map[string][]string, error) {
		return cache.reader.TaxonomyHierarchy(ctx)
	})
}

// OntologyHierarchy implements m5nr.Hierarchy.
func (cache *Cache) OntologyHierarchy(ctx context.Context, source string) (_ map[string]map[string][]string, err error) {
	defer mon.Task()(&ctx)(&err)
	return cached(ctx, cache, "ontology:"+source, func(ctx context.Context) (map[string]map[string][]string, error) {
		return cache.reader.OntologyHierarchy(ctx, source)
	})
}

// GroupingMap implements m5nr.Hierarchy.
func (cache *Cache) GroupingMap(ctx context.Context, kind m5nr.Kind, level, source string) (_ m5nr.GroupingMap, err error) {
	defer mon.Task()(&ctx)(&err)
	key := fmt.Sprintf("map:%s:%s:%s", kind, level, source)
	return cached(ctx, cache, key, func(ctx context.Context) (m5nr.GroupingMap, error) {
		return cache.reader.GroupingMap(ctx, kind, level, source)
	})
}

// LeavesByLevel implements m5nr.Hierarchy.
func (cache *Cache) LeavesByLevel(ctx context.Context, kind m5nr.Kind, level, source, substring string) (_ m5nr.FilterList, err error) {
	defer mon.Task()(&ctx)(&err)
	// matching ignores case, so the key does too
	key := fmt.Sprintf("leaves:%s:%s:%s:%s", kind, level, source, strings.ToLower(substring))
	return cached(ctx, cache, key, func(ctx context.Context) (m5nr.FilterList, error) {
		return cache.reader.LeavesByLevel(ctx, kind, level, source, substring)
	})
}

// cached returns the value stored under key, loading and storing it on a
// miss. Redis failures fall back to loading from the store.
func cached[T any](ctx context.Context, cache *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	key = cache.prefix + key

	var value T
	data, err := cache.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &value); err == nil {
			mon.Counter("cache_hit").Inc(1)
			return value, nil
		}
		cache.log.Warn("discarding corrupt cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		cache.log.Warn("cache unavailable", zap.String("key", key), zap.Error(err))
	}
	mon.Counter("cache_miss").Inc(1)

	loaded, err, _ := cache.group.Do(key, func() (interface{}, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return value, Error.Wrap(err)
		}
		if err := cache.client.Set(ctx, key, data, cache.ttl).Err(); err != nil {
			cache.log.Warn("unable to store cache entry", zap.String("key", key), zap.Error(err))
		}
		return value, nil
	})
	if err != nil {
		return value, err
	}
	return loaded.(T), nil
}
