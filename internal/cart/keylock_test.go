package cart

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	l := newKeyLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock("account:1")
			counter++
			l.Unlock("account:1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyLock_DropsIdleEntries(t *testing.T) {
	l := newKeyLock()

	l.Lock("a")
	l.Unlock("a")
	l.Lock("b")
	l.Unlock("b")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}

func TestKeyLock_PairDoesNotDeadlock(t *testing.T) {
	l := newKeyLock()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.LockPair("anonymous:x", "account:y")
			l.UnlockPair("anonymous:x", "account:y")
		}()
		go func() {
			defer wg.Done()
			// reversed order must still be safe
			l.LockPair("account:y", "anonymous:x")
			l.UnlockPair("account:y", "anonymous:x")
		}()
	}
	wg.Wait()
}

func TestKeyLock_SamePairKey(t *testing.T) {
	l := newKeyLock()
	l.LockPair("a", "a")
	l.UnlockPair("a", "a")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}
