package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokex/infra/store"
)

func TestNextIsMonotonic(t *testing.T) {
	s := New(10)
	assert.Equal(t, uint64(11), s.Peek())
	assert.Equal(t, uint64(11), s.Next())
	assert.Equal(t, uint64(11), s.Current())

	var wg sync.WaitGroup
	seen := make(chan uint64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- s.Next()
		}()
	}
	wg.Wait()
	close(seen)

	uniq := map[uint64]bool{}
	for v := range seen {
		uniq[v] = true
	}
	assert.Len(t, uniq, 100)
	assert.Equal(t, uint64(111), s.Current())

	s.Reset(3)
	assert.Equal(t, uint64(4), s.Next())
}

func TestMarkPersistsWithTransaction(t *testing.T) {
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.View(func(tx *store.Tx) error {
		seq, err := Load(tx)
		require.NoError(t, err)
		assert.Zero(t, seq)
		return nil
	}))

	require.NoError(t, st.Update(context.Background(), func(tx *store.Tx) error {
		return Stage(tx, 77)
	}))

	require.NoError(t, st.View(func(tx *store.Tx) error {
		seq, err := Load(tx)
		require.NoError(t, err)
		assert.Equal(t, uint64(77), seq)
		return nil
	}))
}
