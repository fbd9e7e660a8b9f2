package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/store"
)

func newTestAllocator(t *testing.T, key, text string) *Allocator {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.SetStock(context.Background(), key, text))
	return NewAllocator(st)
}

func TestAllocator_Allocate_FIFO(t *testing.T) {
	a := newTestAllocator(t, "prod-1", "key-A\nkey-B\nkey-C")
	ctx := context.Background()

	lines, err := a.Allocate(ctx, "prod-1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-A"}, lines)

	lines, err = a.Allocate(ctx, "prod-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-B", "key-C"}, lines)

	remaining, err := a.Remaining(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestAllocator_Allocate_AllOrNothing(t *testing.T) {
	a := newTestAllocator(t, "prod-1", "key-A\nkey-B")
	ctx := context.Background()

	_, err := a.Allocate(ctx, "prod-1", 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// The failed request consumed nothing.
	remaining, err := a.Remaining(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestAllocator_Allocate_EmptyKey(t *testing.T) {
	a := NewAllocator(store.NewMemoryStore())

	_, err := a.Allocate(context.Background(), "never-stocked", 1)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAllocator_Allocate_InvalidQuantity(t *testing.T) {
	a := newTestAllocator(t, "prod-1", "key-A")

	_, err := a.Allocate(context.Background(), "prod-1", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = a.Allocate(context.Background(), "prod-1", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAllocator_Allocate_SkipsBlankLines(t *testing.T) {
	a := newTestAllocator(t, "prod-1", "key-A\r\n\r\n  \nkey-B\n\n")
	ctx := context.Background()

	lines, err := a.Allocate(ctx, "prod-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-A", "key-B"}, lines)
}

func TestAllocator_Allocate_Concurrent(t *testing.T) {
	const n = 50
	text := ""
	for i := 0; i < n; i++ {
		text += fmt.Sprintf("key-%03d\n", i)
	}
	a := newTestAllocator(t, "prod-1", text)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lines, err := a.Allocate(ctx, "prod-1", 1)
			if assert.NoError(t, err) {
				results <- lines[0]
			}
		}()
	}
	wg.Wait()
	close(results)

	// Every line handed out exactly once, nothing left over.
	seen := make(map[string]bool)
	for line := range results {
		assert.False(t, seen[line], "line %s allocated twice", line)
		seen[line] = true
	}
	assert.Len(t, seen, n)

	remaining, err := a.Remaining(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// One more request must fail.
	_, err = a.Allocate(ctx, "prod-1", 1)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAllocator_Restore(t *testing.T) {
	a := newTestAllocator(t, "prod-1", "key-A\nkey-B\nkey-C")
	ctx := context.Background()

	taken, err := a.Allocate(ctx, "prod-1", 2)
	require.NoError(t, err)

	require.NoError(t, a.Restore(ctx, "prod-1", taken))

	// Restored lines come back at the front, preserving FIFO order.
	lines, err := a.Allocate(ctx, "prod-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-A", "key-B", "key-C"}, lines)
}

func TestAllocator_Replace(t *testing.T) {
	a := newTestAllocator(t, "prod-1", "old-A\nold-B")
	ctx := context.Background()

	require.NoError(t, a.Replace(ctx, "prod-1", "new-A\n\nnew-B\nnew-C\n"))

	remaining, err := a.Remaining(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	lines, err := a.Allocate(ctx, "prod-1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"new-A"}, lines)
}

func TestAllocator_IndependentKeys(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.SetStock(ctx, "prod-1", "a1"))
	require.NoError(t, st.SetStock(ctx, "var-2", "b1\nb2"))
	a := NewAllocator(st)

	lines, err := a.Allocate(ctx, "var-2", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, lines)

	remaining, err := a.Remaining(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}
