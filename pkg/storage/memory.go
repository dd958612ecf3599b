package storage

import "sync"

// MemoryStore keeps values in process memory. Nothing survives a restart;
// it backs the "memory" driver and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Increment(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if raw, ok := s.data[key]; ok {
		v, err := decodeInt64(key, raw)
		if err != nil {
			return 0, err
		}
		current = v
	}
	current++
	s.data[key] = encodeInt64(current)
	return current, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
