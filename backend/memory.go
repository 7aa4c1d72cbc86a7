package backend

import (
	"context"
	"sync"
	"time"
)

type memoryValue struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// Memory is the in-process fallback backend. It is not shared across
// instances: records created here during a distributed-backend outage are
// only valid on the instance that created them. TTL bookkeeping is manual,
// checked on every read with lazy deletion.
type Memory struct {
	mu     sync.Mutex
	values map[string]memoryValue
	sets   map[string]*memorySet
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]memoryValue),
		sets:   make(map[string]*memorySet),
		now:    time.Now,
	}
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := memoryValue{data: append([]byte(nil), value...)}
	if ttl > 0 {
		v.expiresAt = m.now().Add(ttl)
	}
	m.values[key] = v
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	if m.expired(v.expiresAt) {
		delete(m.values, key)
		return nil, false, nil
	}
	return append([]byte(nil), v.data...), true, nil
}

// Replace rewrites key only if it exists, keeping the stored expiry.
func (m *Memory) Replace(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok || m.expired(v.expiresAt) {
		delete(m.values, key)
		return false, nil
	}
	v.data = append([]byte(nil), value...)
	m.values[key] = v
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	delete(m.sets, key)
	return nil
}

func (m *Memory) AddToSet(_ context.Context, set, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.liveSet(set)
	if s == nil {
		s = &memorySet{members: make(map[string]struct{})}
		m.sets[set] = s
	}
	s.members[member] = struct{}{}
	return nil
}

func (m *Memory) RemoveFromSet(_ context.Context, set, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.liveSet(set); s != nil {
		delete(s.members, member)
		if len(s.members) == 0 {
			delete(m.sets, set)
		}
	}
	return nil
}

func (m *Memory) SetMembers(_ context.Context, set string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.liveSet(set)
	if s == nil {
		return []string{}, nil
	}
	members := make([]string, 0, len(s.members))
	for member := range s.members {
		members = append(members, member)
	}
	return members, nil
}

func (m *Memory) ExpireSet(_ context.Context, set string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.liveSet(set); s != nil {
		s.expiresAt = m.now().Add(ttl)
	}
	return nil
}

// liveSet returns the set or nil, pruning it first if expired.
// Callers must hold mu.
func (m *Memory) liveSet(set string) *memorySet {
	s, ok := m.sets[set]
	if !ok {
		return nil
	}
	if m.expired(s.expiresAt) {
		delete(m.sets, set)
		return nil
	}
	return s
}

func (m *Memory) expired(at time.Time) bool {
	return !at.IsZero() && !m.now().Before(at)
}
