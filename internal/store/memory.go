package store

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/grid"
)

// CachedStore keeps recently served payloads in memory in front of another
// store. Past snapshots never change, so entries are only dropped when the
// underlying artifact is replaced or deleted.
type CachedStore struct {
	forecast.Store
	payloads *lru.Cache[string, []byte]
}

// NewCachedStore wraps inner with an LRU of at most size payloads.
func NewCachedStore(inner forecast.Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create payload cache: %w", err)
	}
	return &CachedStore{Store: inner, payloads: cache}, nil
}

// ReadServable returns the cached payload for st, loading it on a miss.
// Callers must not modify the returned slice.
func (c *CachedStore) ReadServable(st grid.Stamp) ([]byte, error) {
	key := st.String()
	if data, ok := c.payloads.Get(key); ok {
		return data, nil
	}
	data, err := c.Store.ReadServable(st)
	if err != nil {
		return nil, err
	}
	c.payloads.Add(key, data)
	return data, nil
}

func (c *CachedStore) ConvertRawToServable(ctx context.Context, st grid.Stamp, conv forecast.Converter) error {
	err := c.Store.ConvertRawToServable(ctx, st, conv)
	c.payloads.Remove(st.String())
	return err
}

func (c *CachedStore) DeleteOlderThan(now time.Time, maxAge time.Duration) ([]grid.Stamp, error) {
	deleted, err := c.Store.DeleteOlderThan(now, maxAge)
	for _, st := range deleted {
		c.payloads.Remove(st.String())
	}
	return deleted, err
}

// Len reports how many payloads are cached.
func (c *CachedStore) Len() int {
	return c.payloads.Len()
}
