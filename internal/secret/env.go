package secret

import (
	"os"
	"strings"
	"sync"
)

// EnvPrefix is prepended to the upper-cased key to form the variable name.
const EnvPrefix = "GRID_SECRET_"

// EnvStore reads secrets from GRID_SECRET_<KEY> variables. Values set at
// runtime (e.g. a password passed to create_connection) live in memory
// and shadow the environment until deleted.
type EnvStore struct {
	mu      sync.RWMutex
	values  map[string][]byte
	deleted map[string]bool
}

// NewEnvStore creates an empty EnvStore.
func NewEnvStore() *EnvStore {
	return &EnvStore{values: map[string][]byte{}, deleted: map[string]bool{}}
}

// EnvKey is the variable name a key is read from. Dashes and colons
// become underscores.
func EnvKey(key string) string {
	r := strings.NewReplacer("-", "_", ":", "_", ".", "_")
	return EnvPrefix + strings.ToUpper(r.Replace(key))
}

func (s *EnvStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	delete(s.deleted, key)
	return nil
}

func (s *EnvStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	if s.deleted[key] {
		return []byte{}, nil
	}
	return []byte(os.Getenv(EnvKey(key))), nil
}

func (s *EnvStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.deleted[key] = true
	return nil
}

var _ SecretStore = (*EnvStore)(nil)
