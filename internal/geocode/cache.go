package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/i474232898/sunny-forecast/internal/observability"
	"github.com/i474232898/sunny-forecast/internal/weather"
)

// CachedGeocoder wraps a Geocoder with in-memory LRU caches and records
// request and cache metrics.
type CachedGeocoder struct {
	inner   Geocoder
	metrics *observability.Metrics
	search  *lruCache[Place]
	reverse *lruCache[string]
}

// NewCachedGeocoder creates a cache decorator around a geocoder. A
// maxEntries of 0 disables caching but keeps the metrics.
func NewCachedGeocoder(inner Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		metrics: metrics,
		search:  newLRUCache[Place](maxEntries),
		reverse: newLRUCache[string](maxEntries),
	}
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) (Place, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if place, ok := c.search.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("search", "hit").Inc()
		return place, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("search", "miss").Inc()

	place, err := c.inner.Search(ctx, query)
	c.observe("search", err)
	if err != nil {
		return place, err
	}
	c.search.put(key, place)
	return place, nil
}

func (c *CachedGeocoder) Reverse(ctx context.Context, at weather.Coordinates) (string, error) {
	key := fmt.Sprintf("%.6f,%.6f", at.Lat, at.Lon)
	if name, ok := c.reverse.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		return name, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	name, err := c.inner.Reverse(ctx, at)
	c.observe("reverse", err)
	if err != nil {
		return name, err
	}
	// Only cache non-empty results so misses can be retried.
	if name != "" {
		c.reverse.put(key, name)
	}
	return name, nil
}

func (c *CachedGeocoder) observe(method string, err error) {
	outcome := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "notfound"
	case err != nil:
		outcome = "error"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
