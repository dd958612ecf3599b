package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key has never been written
var ErrNotFound = errors.New("key not found")

// Well-known keys
const (
	KeySessionCount     = "session_count"
	KeyLastReviewPrompt = "last_review_prompt"
	KeyDeviceID         = "device_id"
	KeyEventQueue       = "event_queue"
)

// Store defines the durable key-value storage the SDK persists through.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error

	// Utility
	Close() error
}

// Open returns the store backend named by driver rooted at dataDir
func Open(driver, dataDir string) (Store, error) {
	switch driver {
	case "bolt", "":
		return NewBoltStore(dataDir)
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dataDir, "feelback.sqlite"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// GetInt64 reads a counter. A missing key reads as zero.
func GetInt64(s Store, key string) (int64, error) {
	data, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeInt64(key, data)
}

// PutInt64 writes a counter
func PutInt64(s Store, key string, v int64) error {
	return s.Put(key, encodeInt64(v))
}

// counters are stored as 8-byte big-endian values
func encodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeInt64(key string, data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("malformed counter %s: %d bytes", key, len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// Incrementer is implemented by stores that can increment atomically in one transaction
type Incrementer interface {
	Increment(key string) (int64, error)
}

// Increment adds one to a counter and returns the new value
func Increment(s Store, key string) (int64, error) {
	if inc, ok := s.(Incrementer); ok {
		return inc.Increment(key)
	}
	v, err := GetInt64(s, key)
	if err != nil {
		return 0, err
	}
	v++
	return v, PutInt64(s, key, v)
}
