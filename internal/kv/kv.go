// Package kv defines the durable key-value contract this core builds on:
// point lookup, point write, and prefix-range scan over opaque string keys.
// The point write is the unit of atomicity; read-modify-write sequences are
// last-writer-wins.
package kv

import "fmt"

// Entry is one key/value pair returned by a prefix scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is the narrow contract consumed by the repositories. Keys are opaque
// strings; callers own the naming scheme and must keep it injective.
type Store interface {
	// Get returns the value for key, with ok=false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Set writes the value for key, overwriting any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// GetByPrefix returns all entries whose key starts with prefix, in key order.
	GetByPrefix(prefix string) ([]Entry, error)
	// Scan returns up to limit entries with key > cursor under prefix, in key
	// order, plus the cursor for the next page ("" when exhausted). A zero or
	// negative limit applies a default page size.
	Scan(prefix, cursor string, limit int) ([]Entry, string, error)
}

// DefaultScanLimit is the page size applied when Scan is called without one.
const DefaultScanLimit = 200

// EnsureOnce runs fn only if key is absent, then persists the marker fn
// returns under key. It returns true when fn ran. The presence check happens
// before the side effect and the marker is written after it, so a crashed or
// failed run re-executes fn on the next invocation rather than losing the
// effect.
func EnsureOnce(s Store, key string, fn func() (marker []byte, err error)) (bool, error) {
	_, ok, err := s.Get(key)
	if err != nil {
		return false, fmt.Errorf("check marker %s: %w", key, err)
	}
	if ok {
		return false, nil
	}
	marker, err := fn()
	if err != nil {
		return false, err
	}
	if err := s.Set(key, marker); err != nil {
		return true, fmt.Errorf("write marker %s: %w", key, err)
	}
	return true, nil
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, or "" when no upper bound exists.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
