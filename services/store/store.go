// Package store is the key/value persistence used for device, subscription and
// campaign records.
//
// Keys are listed in ascending order and paginated with an opaque cursor (the last
// key of the previous page), so a listing can be resumed and stays stable while
// other keys are written or deleted concurrently. Backends make no consistency
// promise between a write and a concurrent listing.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// DefaultListLimit is used when List is called with a non positive limit.
const DefaultListLimit = 1000

// Store is a key/value store with prefix listing.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is a no-op when the key does not exist.
	Delete(ctx context.Context, key string) error
	// List returns up to limit keys starting with prefix and strictly greater than cursor.
	List(ctx context.Context, prefix string, cursor string, limit int) (*ListResult, error)
	Close() error
}

// ListResult is one page of keys.
type ListResult struct {
	Keys []string
	// Cursor resumes the listing after the last returned key. Empty when Complete.
	Cursor   string
	Complete bool
}

func checkCursor(prefix string, cursor string) error {
	if cursor != "" && !strings.HasPrefix(cursor, prefix) {
		return fmt.Errorf("store: cursor %q does not match prefix %q", cursor, prefix)
	}
	return nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// page builds a ListResult from up to limit+1 ascending keys.
func page(keys []string, limit int) *ListResult {
	if len(keys) > limit {
		keys = keys[:limit]
		return &ListResult{Keys: keys, Cursor: keys[len(keys)-1]}
	}
	return &ListResult{Keys: keys, Complete: true}
}

// prefixEnd returns the smallest key greater than every key starting with prefix,
// or "" when there is none.
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
