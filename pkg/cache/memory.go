package cache

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/akande-ai/akande/pkg/models"
)

// Memory is an in-process LRU store. It satisfies Admin and loses its
// contents on Close.
type Memory struct {
	opts Options

	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // front = most recently accessed
	closed bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:  opts.WithDefaults(),
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", false, IOError("get", ErrClosed)
	}
	now := m.opts.Now()
	elem, ok := m.items[key]
	if !ok {
		m.misses.Add(1)
		return "", false, nil
	}
	e := elem.Value.(*models.CacheEntry)
	if m.opts.Expired(e.UpdatedAt, now) {
		m.misses.Add(1)
		return "", false, nil
	}
	e.AccessedAt = now
	e.Hits++
	m.order.MoveToFront(elem)
	m.hits.Add(1)
	return e.Value, true, nil
}

func (m *Memory) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return IOError("put", ErrClosed)
	}
	now := m.opts.Now()
	if elem, ok := m.items[key]; ok {
		e := elem.Value.(*models.CacheEntry)
		e.Value = value
		e.UpdatedAt = now
		e.AccessedAt = now
		m.order.MoveToFront(elem)
		return nil
	}
	m.items[key] = m.order.PushFront(&models.CacheEntry{
		Key:        key,
		Value:      value,
		CreatedAt:  now,
		UpdatedAt:  now,
		AccessedAt: now,
	})
	m.evict()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return IOError("delete", ErrClosed)
	}
	if elem, ok := m.items[key]; ok {
		m.order.Remove(elem)
		delete(m.items, key)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return IOError("clear", ErrClosed)
	}
	m.items = make(map[string]*list.Element)
	m.order.Init()
	return nil
}

func (m *Memory) Prune(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, IOError("prune", ErrClosed)
	}
	now := m.opts.Now()
	var n int64
	for key, elem := range m.items {
		if m.opts.Expired(elem.Value.(*models.CacheEntry).UpdatedAt, now) {
			m.order.Remove(elem)
			delete(m.items, key)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Stats(_ context.Context) (models.CacheStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return models.CacheStats{}, IOError("stats", ErrClosed)
	}
	var size int64
	for _, elem := range m.items {
		e := elem.Value.(*models.CacheEntry)
		size += int64(len(e.Key) + len(e.Value))
	}
	return models.CacheStats{
		Entries:   int64(len(m.items)),
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
		SizeBytes: size,
	}, nil
}

func (m *Memory) Entries(ctx context.Context, fn func(models.CacheEntry) error) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return IOError("entries", ErrClosed)
	}
	entries := make([]models.CacheEntry, 0, len(m.items))
	for _, elem := range m.items {
		entries = append(entries, *elem.Value.(*models.CacheEntry))
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Restore(_ context.Context, entry models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return IOError("restore", ErrClosed)
	}
	if elem, ok := m.items[entry.Key]; ok {
		m.order.Remove(elem)
	}
	e := entry
	// Keep the list ordered by access time so eviction stays LRU.
	var mark *list.Element
	for elem := m.order.Front(); elem != nil; elem = elem.Next() {
		if !elem.Value.(*models.CacheEntry).AccessedAt.After(e.AccessedAt) {
			mark = elem
			break
		}
	}
	if mark != nil {
		m.items[e.Key] = m.order.InsertBefore(&e, mark)
	} else {
		m.items[e.Key] = m.order.PushBack(&e)
	}
	m.evict()
	return nil
}

// Close drops all entries. Further calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.items = nil
	m.order.Init()
	return nil
}

// evict removes least recently accessed entries beyond the cap. Caller holds mu.
func (m *Memory) evict() {
	if m.opts.MaxEntries <= 0 {
		return
	}
	for len(m.items) > m.opts.MaxEntries {
		oldest := m.order.Back()
		if oldest == nil {
			return
		}
		e := m.order.Remove(oldest).(*models.CacheEntry)
		delete(m.items, e.Key)
		m.evictions.Add(1)
		m.opts.Logger.Debug("cache evict", "key", e.Key)
	}
}

var _ Admin = (*Memory)(nil)
