package imagestore

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/imagesprite/internal/domain"
	"github.com/lewtec/imagesprite/internal/keyscheme"
)

func value(seed byte) []byte {
	return bytes.Repeat([]byte{seed}, domain.ImageSize)
}

// setupStore creates a writable store holding n images whose bytes all equal
// their id modulo 256.
func setupStore(t *testing.T, n int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(context.Background(), path, Options{Writable: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if n > 0 {
		txn, err := s.BeginWrite(context.Background())
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			require.NoError(t, txn.Put(context.Background(), keyscheme.MustEncode(i), value(byte(i))))
		}
		require.NoError(t, txn.Commit())
	}
	return s, path
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, path := setupStore(t, 3)
	assert.Equal(t, path, s.Path())

	t.Run("reads committed values", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			got, err := s.Get(ctx, keyscheme.MustEncode(i))
			require.NoError(t, err)
			assert.Equal(t, value(byte(i)), got)
		}
	})

	t.Run("missing keys are not found", func(t *testing.T) {
		_, err := s.Get(ctx, keyscheme.MustEncode(3))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("put overwrites", func(t *testing.T) {
		txn, err := s.BeginWrite(ctx)
		require.NoError(t, err)
		require.NoError(t, txn.Put(ctx, keyscheme.MustEncode(1), value(9)))
		require.NoError(t, txn.Commit())

		got, err := s.Get(ctx, keyscheme.MustEncode(1))
		require.NoError(t, err)
		assert.Equal(t, value(9), got)
	})

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_Abort(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t, 0)

	txn, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, txn.Put(ctx, keyscheme.MustEncode(i), value(1)))
	}
	require.NoError(t, txn.Abort())

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	t.Run("finished transactions reject use", func(t *testing.T) {
		assert.ErrorIs(t, txn.Put(ctx, "00000000", value(1)), domain.ErrTxDone)
		assert.ErrorIs(t, txn.Commit(), domain.ErrTxDone)
		assert.ErrorIs(t, txn.Abort(), domain.ErrTxDone)
	})

	t.Run("write lock is released", func(t *testing.T) {
		txn, err := s.BeginWrite(ctx)
		require.NoError(t, err)
		require.NoError(t, txn.Abort())
	})
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t, 0)

	txn, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	for _, id := range []int{10, 2, 100, 1, 0} {
		require.NoError(t, txn.Put(ctx, keyscheme.MustEncode(id), value(0)))
	}
	require.NoError(t, txn.Commit())

	var keys []string
	require.NoError(t, s.Keys(ctx, func(key string) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"00000000", "00000001", "00000002", "00000010", "00000100"}, keys)
}

func TestStore_CapacityExceeded(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "small.db")
	s, err := Open(ctx, path, Options{Writable: true, MaxSize: 16 * 4096})
	require.NoError(t, err)
	defer s.Close()

	txn, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	for i := 0; i < 100 && err == nil; i++ {
		err = txn.Put(ctx, keyscheme.MustEncode(i), value(byte(i)))
	}
	if err == nil {
		err = txn.Commit()
	} else {
		txn.Abort()
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestStore_ReadOnly(t *testing.T) {
	ctx := context.Background()
	s, path := setupStore(t, 2)
	require.NoError(t, s.Close())

	ro, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.BeginWrite(ctx)
	assert.ErrorIs(t, err, domain.ErrReadOnly)

	got, err := ro.Get(ctx, keyscheme.MustEncode(1))
	require.NoError(t, err)
	assert.Equal(t, value(1), got)

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(ctx, filepath.Join(t.TempDir(), "nope.db"), Options{})
		assert.Error(t, err)
	})
}

func TestStore_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	s, path := setupStore(t, 5)
	require.NoError(t, s.Close())

	var handles []*Store
	for i := 0; i < 2; i++ {
		h, err := Open(ctx, path, Options{})
		require.NoError(t, err)
		defer h.Close()
		handles = append(handles, h)
	}

	results := make([][]byte, 16)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := handles[i%2].Get(ctx, keyscheme.MustEncode(4))
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, value(4), r)
	}
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t, 1)
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "00000000")
	assert.ErrorIs(t, err, domain.ErrClosed)
	_, err = s.Len(ctx)
	assert.ErrorIs(t, err, domain.ErrClosed)
	_, err = s.BeginWrite(ctx)
	assert.ErrorIs(t, err, domain.ErrClosed)
	assert.ErrorIs(t, s.Close(), domain.ErrClosed)
}

func TestStore_Manifest(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t, 0)

	_, err := s.Manifest(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	want := &domain.IngestManifest{
		Batches: []domain.IngestBatch{
			{Name: "data_batch_1.bin", FirstID: 0, Count: 10000},
			{Name: "data_batch_2.bin", FirstID: 10000, Count: 10000},
		},
		Total:      20000,
		IngestedAt: time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC),
	}
	txn, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.PutManifest(ctx, want))
	require.NoError(t, txn.Commit())

	got, err := s.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Batches, got.Batches)
	assert.Equal(t, want.Total, got.Total)
	assert.True(t, want.IngestedAt.Equal(got.IngestedAt))
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ok, err := Exists(ctx, filepath.Join(dir, "missing.db"))
	require.NoError(t, err)
	assert.False(t, ok)

	empty, emptyPath := setupStore(t, 0)
	require.NoError(t, empty.Close())
	ok, err = Exists(ctx, emptyPath)
	require.NoError(t, err)
	assert.False(t, ok)

	full, fullPath := setupStore(t, 1)
	require.NoError(t, full.Close())
	ok, err = Exists(ctx, fullPath)
	require.NoError(t, err)
	assert.True(t, ok)
}
