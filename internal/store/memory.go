package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used by tests and single-node
// development mode. Transforms run under the store lock, which trivially
// satisfies the no-lost-updates contract.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage

	subMu  sync.Mutex
	subs   map[int]*memorySub
	nextID int
}

type memorySub struct {
	prefix string
	ch     chan Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]json.RawMessage),
		subs: make(map[int]*memorySub),
	}
}

func (s *MemoryStore) Read(ctx context.Context, path string, dest interface{}) error {
	s.mu.RLock()
	raw, ok := s.data[path]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (s *MemoryStore) Write(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[path] = raw
	s.mu.Unlock()
	s.notify(Event{Path: path, Value: raw})
	return nil
}

func (s *MemoryStore) MultiWrite(ctx context.Context, writes map[string]interface{}) error {
	// Marshal everything up front so a bad value can't leave a partial batch.
	encoded := make(map[string]json.RawMessage, len(writes))
	for path, value := range writes {
		if value == nil {
			encoded[path] = nil
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		encoded[path] = raw
	}

	s.mu.Lock()
	for path, raw := range encoded {
		if raw == nil {
			delete(s.data, path)
		} else {
			s.data[path] = raw
		}
	}
	s.mu.Unlock()

	for path, raw := range encoded {
		s.notify(Event{Path: path, Value: raw})
	}
	return nil
}

func (s *MemoryStore) AtomicTransform(ctx context.Context, path string, fn TransformFunc) error {
	s.mu.Lock()
	current := s.data[path]
	next, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		if err == ErrAbortTransform {
			return nil
		}
		return err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.data[path] = raw
	s.mu.Unlock()

	s.notify(Event{Path: path, Value: raw})
	return nil
}

func (s *MemoryStore) ReadPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	s.mu.RLock()
	for path, raw := range s.data {
		if strings.HasPrefix(path, prefix) {
			out[path] = raw
		}
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, prefix string) (<-chan Event, func()) {
	sub := &memorySub{prefix: prefix, ch: make(chan Event, 256)}

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(sub.ch)
		})
	}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return sub.ch, cancel
}

func (s *MemoryStore) notify(evt Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		if !strings.HasPrefix(evt.Path, sub.prefix) {
			continue
		}
		// Best-effort: a subscriber that stopped draining loses events
		// rather than blocking writers.
		select {
		case sub.ch <- evt:
		default:
		}
	}
}
