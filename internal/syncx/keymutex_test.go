package syncx

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================
// KeyMutex
// ============================================================

func TestKeyMutex_MutualExclusionPerKey(t *testing.T) {
	km := NewKeyMutex()
	var a, b int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		counter := &a
		key := "a"
		if i%2 == 0 {
			counter = &b
			key = "b"
		}
		wg.Add(1)
		go func(key string, counter *int) {
			defer wg.Done()
			km.Lock(key)
			defer km.Unlock(key)
			*counter++
		}(key, counter)
	}
	wg.Wait()

	assert.Equal(t, 25, a)
	assert.Equal(t, 25, b)
}

func TestKeyMutex_DropsIdleEntries(t *testing.T) {
	km := NewKeyMutex()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			km.Lock(key)
			km.Unlock(key)
		}(i)
	}
	wg.Wait()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries, "no entries should survive after all holders release")
}

func TestKeyMutex_UnlockWithoutLockPanics(t *testing.T) {
	km := NewKeyMutex()
	assert.Panics(t, func() { km.Unlock("never-locked") })
}
