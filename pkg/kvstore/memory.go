package kvstore

import (
	"context"
	"path"
	"sync"
	"time"
)

// Memory is an in-process Store used by unit tests and local development.
// Expiry is passive, checked on access, matching the backend's behavior.
// The Down flag simulates a backend outage.
type Memory struct {
	mu     sync.Mutex
	values map[string]*memoryEntry
	lists  map[string]*memoryList
	down   bool

	// Clock can be overridden in tests to control expiry.
	Clock func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

type memoryList struct {
	items     []string
	expiresAt time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]*memoryEntry),
		lists:  make(map[string]*memoryList),
		Clock:  time.Now,
	}
}

// SetDown toggles the simulated outage.
func (m *Memory) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *Memory) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.down
}

func (m *Memory) Close() error { return nil }

func (m *Memory) check() error {
	if m.down {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) expired(at time.Time) bool {
	return !at.IsZero() && m.Clock().After(at)
}

func (m *Memory) liveEntry(key string) (*memoryEntry, bool) {
	e, ok := m.values[key]
	if !ok {
		return nil, false
	}
	if m.expired(e.expiresAt) {
		delete(m.values, key)
		return nil, false
	}
	return e, true
}

func (m *Memory) liveList(key string) (*memoryList, bool) {
	l, ok := m.lists[key]
	if !ok {
		return nil, false
	}
	if m.expired(l.expiresAt) {
		delete(m.lists, key)
		return nil, false
	}
	return l, true
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return "", false, err
	}
	e, ok := m.liveEntry(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.values[key] = &memoryEntry{value: value}
	return nil
}

func (m *Memory) SetEx(_ context.Context, key string, ttl time.Duration, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.values[key] = &memoryEntry{value: value, expiresAt: m.Clock().Add(ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	var n int64
	for _, key := range keys {
		if _, ok := m.liveEntry(key); ok {
			delete(m.values, key)
			n++
		}
		if _, ok := m.liveList(key); ok {
			delete(m.lists, key)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	var keys []string
	for key := range m.values {
		if _, ok := m.liveEntry(key); !ok {
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	for key := range m.lists {
		if _, ok := m.liveList(key); !ok {
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	if e, ok := m.liveEntry(key); ok {
		if e.expiresAt.IsZero() {
			return TTLNone, nil
		}
		return e.expiresAt.Sub(m.Clock()), nil
	}
	if l, ok := m.liveList(key); ok {
		if l.expiresAt.IsZero() {
			return TTLNone, nil
		}
		return l.expiresAt.Sub(m.Clock()), nil
	}
	return TTLMissing, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return false, err
	}
	if e, ok := m.liveEntry(key); ok {
		e.expiresAt = m.Clock().Add(ttl)
		return true, nil
	}
	if l, ok := m.liveList(key); ok {
		l.expiresAt = m.Clock().Add(ttl)
		return true, nil
	}
	return false, nil
}

func (m *Memory) ExpireNX(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return false, err
	}
	if e, ok := m.liveEntry(key); ok {
		if !e.expiresAt.IsZero() {
			return false, nil
		}
		e.expiresAt = m.Clock().Add(ttl)
		return true, nil
	}
	if l, ok := m.liveList(key); ok {
		if !l.expiresAt.IsZero() {
			return false, nil
		}
		l.expiresAt = m.Clock().Add(ttl)
		return true, nil
	}
	return false, nil
}

func (m *Memory) LPush(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	l, ok := m.liveList(key)
	if !ok {
		l = &memoryList{}
		m.lists[key] = l
	}
	// LPUSH prepends values one at a time.
	for _, v := range values {
		l.items = append([]string{v}, l.items...)
	}
	return nil
}

func (m *Memory) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	l, ok := m.liveList(key)
	if !ok {
		return nil
	}
	n := int64(len(l.items))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		delete(m.lists, key)
		return nil
	}
	l.items = l.items[start : stop+1]
	return nil
}

func (m *Memory) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	l, ok := m.liveList(key)
	if !ok {
		return nil, nil
	}
	n := int64(len(l.items))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l.items[start:stop+1])
	return out, nil
}

func (m *Memory) LPushCapped(_ context.Context, key string, keep int64, ttl time.Duration, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	l, ok := m.liveList(key)
	if !ok {
		l = &memoryList{}
		m.lists[key] = l
	}
	for _, v := range values {
		l.items = append([]string{v}, l.items...)
	}
	if int64(len(l.items)) > keep {
		l.items = l.items[:keep]
	}
	if l.expiresAt.IsZero() {
		l.expiresAt = m.Clock().Add(ttl)
	}
	return nil
}

func (m *Memory) LLen(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	l, ok := m.liveList(key)
	if !ok {
		return 0, nil
	}
	return int64(len(l.items)), nil
}

func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	var current string
	var found bool
	if e, ok := m.liveEntry(key); ok {
		current, found = e.value, true
	}
	next, ttl, err := fn(current, found)
	if err != nil {
		return err
	}
	entry := &memoryEntry{value: next}
	if ttl > 0 {
		entry.expiresAt = m.Clock().Add(ttl)
	}
	m.values[key] = entry
	return nil
}

func (m *Memory) Info(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	return map[string]string{
		"redis_version":     "in-memory",
		"connected_clients": "1",
	}, nil
}
