package session

import "sync"

// Store is a session-local key/value store. Application code uses it to
// keep per-conversation state without threading variables through call
// chains. Reading a missing key yields nil, never an error.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]any)}
}

// Get retrieves a value. Returns nil if the key is absent.
func (s *Store) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key]
}

// Set stores a value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes a key. Removing an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Has reports whether a key is present.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns the stored keys in unspecified order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// GetString retrieves a string value. Returns "" if the key is absent
// or holds a different type.
func (s *Store) GetString(key string) string {
	if v, ok := s.Get(key).(string); ok {
		return v
	}
	return ""
}

// GetInt retrieves an int value. Returns 0 if the key is absent or
// holds a different type.
func (s *Store) GetInt(key string) int {
	if v, ok := s.Get(key).(int); ok {
		return v
	}
	return 0
}

// GetBool retrieves a bool value. Returns false if the key is absent or
// holds a different type.
func (s *Store) GetBool(key string) bool {
	if v, ok := s.Get(key).(bool); ok {
		return v
	}
	return false
}
