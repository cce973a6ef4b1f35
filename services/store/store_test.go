package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	badgerStore, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "kv.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	gormStore, err := NewGormStore(db)
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"badger": badgerStore,
		"gorm":   gormStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "user:missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "user:a", []byte(`{"deviceId":"a"}`)))
			v, err := s.Get(ctx, "user:a")
			require.NoError(t, err)
			assert.Equal(t, `{"deviceId":"a"}`, string(v))

			require.NoError(t, s.Put(ctx, "user:a", []byte(`{"deviceId":"a","installed":true}`)))
			v, err = s.Get(ctx, "user:a")
			require.NoError(t, err)
			assert.Equal(t, `{"deviceId":"a","installed":true}`, string(v))

			require.NoError(t, s.Delete(ctx, "user:a"))
			_, err = s.Get(ctx, "user:a")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting twice is fine.
			assert.NoError(t, s.Delete(ctx, "user:a"))
		})
	}
}

func TestStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 2500; i++ {
				require.NoError(t, s.Put(ctx, fmt.Sprintf("sub:%05d", i), []byte("{}")))
			}
			// Keys outside the prefix must not leak into the listing.
			require.NoError(t, s.Put(ctx, "user:00001", []byte("{}")))
			require.NoError(t, s.Put(ctx, "lastCampaign", []byte("{}")))
			require.NoError(t, s.Put(ctx, "sub;", []byte("{}")))

			seen := make(map[string]bool)
			pages := 0
			cursor := ""
			for {
				res, err := s.List(ctx, "sub:", cursor, 1000)
				require.NoError(t, err)
				pages++
				for _, k := range res.Keys {
					assert.False(t, seen[k], "duplicate key %s", k)
					seen[k] = true
				}
				if res.Complete {
					assert.Empty(t, res.Cursor)
					break
				}
				assert.Len(t, res.Keys, 1000)
				cursor = res.Cursor
				require.Less(t, pages, 10)
			}

			assert.Equal(t, 3, pages)
			assert.Len(t, seen, 2500)
			assert.True(t, seen["sub:00000"])
			assert.True(t, seen["sub:02499"])
		})
	}
}

func TestStore_ListOrdered(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"user:c", "user:a", "user:b"} {
				require.NoError(t, s.Put(ctx, k, []byte("{}")))
			}

			res, err := s.List(ctx, "user:", "", 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"user:a", "user:b"}, res.Keys)
			assert.False(t, res.Complete)
			assert.Equal(t, "user:b", res.Cursor)

			res, err = s.List(ctx, "user:", res.Cursor, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"user:c"}, res.Keys)
			assert.True(t, res.Complete)
		})
	}
}

func TestStore_ListExactPageBoundary(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 4; i++ {
				require.NoError(t, s.Put(ctx, fmt.Sprintf("sub:%d", i), []byte("{}")))
			}

			res, err := s.List(ctx, "sub:", "", 4)
			require.NoError(t, err)
			assert.Len(t, res.Keys, 4)
			assert.True(t, res.Complete)
		})
	}
}

func TestStore_ListEmptyAndDefaults(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			res, err := s.List(ctx, "sub:", "", 0)
			require.NoError(t, err)
			assert.Empty(t, res.Keys)
			assert.True(t, res.Complete)

			_, err = s.List(ctx, "sub:", "user:x", 10)
			assert.Error(t, err)
		})
	}
}

func TestStore_ListSurvivesDeleteOfCursorKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"sub:1", "sub:2", "sub:3", "sub:4"} {
				require.NoError(t, s.Put(ctx, k, []byte("{}")))
			}

			res, err := s.List(ctx, "sub:", "", 2)
			require.NoError(t, err)
			require.Equal(t, []string{"sub:1", "sub:2"}, res.Keys)

			// Pruning the page being processed must not disturb the next page.
			require.NoError(t, s.Delete(ctx, "sub:2"))

			res, err = s.List(ctx, "sub:", res.Cursor, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"sub:3", "sub:4"}, res.Keys)
			assert.True(t, res.Complete)
		})
	}
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, "sub;", prefixEnd("sub:"))
	assert.Equal(t, "user;", prefixEnd("user:"))
	assert.Equal(t, "b", prefixEnd("a\xff"))
	assert.Equal(t, "", prefixEnd(""))
	assert.Equal(t, "", prefixEnd("\xff\xff"))
}

func TestKeyOrdering(t *testing.T) {
	assert.Equal(t, `entry_key COLLATE "C"`, keyOrdering("postgres"))
	assert.Equal(t, "entry_key", keyOrdering("sqlite"))
	assert.Equal(t, "entry_key", keyOrdering("mysql"))

	s, err := Open("sqlite", filepath.Join(t.TempDir(), "order.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "entry_key", s.(*GormStore).keyExpr)
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	assert.IsType(t, &GormStore{}, s)
	s.Close()

	_, err = Open("cassandra", "")
	assert.Error(t, err)
}
