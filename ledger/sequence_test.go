package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/ledger/store"
)

func TestNextNumber_StartsAtOneAndPeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	seq := ledger.NewSequenceAllocator(store.NewMemory())

	peek, err := seq.PeekNumber(ctx, userA, companyA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), peek)

	n, err := seq.NextNumber(ctx, userA, companyA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	peek, err = seq.PeekNumber(ctx, userA, companyA)
	require.NoError(t, err)
	assert.Equal(t, int64(2), peek)
}

func TestNextNumber_RequiresKey(t *testing.T) {
	seq := ledger.NewSequenceAllocator(store.NewMemory())

	_, err := seq.NextNumber(context.Background(), "", companyA)

	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestNextNumber_ConcurrentCallsNeverCollide(t *testing.T) {
	ctx := context.Background()
	seq := ledger.NewSequenceAllocator(store.NewMemory())

	const workers = 50
	results := make(chan int64, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n, err := seq.NextNumber(ctx, userA, companyA)
			assert.NoError(t, err)
			results <- n
		}()
		go func() {
			defer wg.Done()
			_, err := seq.NextNumber(ctx, userA, companyB)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for n := range results {
		assert.False(t, seen[n], "duplicate number %d", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)

	// Independent keys each issued exactly their own range.
	next, err := seq.PeekNumber(ctx, userA, companyB)
	require.NoError(t, err)
	assert.Equal(t, int64(workers+1), next)
}
