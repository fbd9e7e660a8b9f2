package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/store"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/syncx"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Allocator pops lines of digital inventory from per-key stock text.
// Allocation is FIFO (first line in the text is handed out first) and
// all-or-nothing: a request that cannot be fully satisfied consumes
// nothing.
type Allocator struct {
	stock store.StockStore

	// locks guards one critical section per product/variant key, so
	// allocations for different keys never block each other.
	locks *syncx.KeyMutex
}

func NewAllocator(stock store.StockStore) *Allocator {
	return &Allocator{
		stock: stock,
		locks: syncx.NewKeyMutex(),
	}
}

// Allocate removes the first count non-blank lines from the stock text
// for key and returns them. Read and rewrite happen inside one critical
// section per key: two concurrent allocations can never observe the
// same line.
func (a *Allocator) Allocate(ctx context.Context, key string, count int) ([]string, error) {
	if count <= 0 {
		return nil, ErrInvalidQuantity
	}

	a.locks.Lock(key)
	defer a.locks.Unlock(key)

	text, err := a.stock.GetStock(ctx, key)
	if err != nil {
		return nil, err
	}

	lines := splitLines(text)
	if len(lines) < count {
		return nil, ErrInsufficientStock
	}

	taken := lines[:count]
	remaining := lines[count:]

	if err := a.stock.SetStock(ctx, key, strings.Join(remaining, "\n")); err != nil {
		return nil, err
	}
	return taken, nil
}

// Restore puts lines back at the front of a key's stock text. Used to
// undo earlier allocations when a later item of the same order runs out
// of stock, keeping fulfillment all-or-nothing per order.
func (a *Allocator) Restore(ctx context.Context, key string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	a.locks.Lock(key)
	defer a.locks.Unlock(key)

	text, err := a.stock.GetStock(ctx, key)
	if err != nil {
		return err
	}
	merged := append(append([]string(nil), lines...), splitLines(text)...)
	return a.stock.SetStock(ctx, key, strings.Join(merged, "\n"))
}

// Remaining reports how many lines are left for a key.
func (a *Allocator) Remaining(ctx context.Context, key string) (int, error) {
	a.locks.Lock(key)
	defer a.locks.Unlock(key)

	text, err := a.stock.GetStock(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(splitLines(text)), nil
}

// Replace swaps the whole stock text for a key (operator upload).
func (a *Allocator) Replace(ctx context.Context, key, text string) error {
	a.locks.Lock(key)
	defer a.locks.Unlock(key)

	return a.stock.SetStock(ctx, key, strings.Join(splitLines(text), "\n"))
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}
