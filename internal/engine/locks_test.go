package engine

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("card-1")
			defer unlock()

			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 critical sections, got %d", counter)
	}
	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.entries) != 0 {
		t.Errorf("entries map must be empty after all unlocks, has %d", len(km.entries))
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("card-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("card-b")
		unlockB()
		close(done)
	}()

	// card-b must not wait on card-a's lock.
	<-done
}

func TestKeyedMutexReleasesEntry(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.Lock("card-1")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.entries) != 0 {
		t.Errorf("expected entry to be dropped after final unlock, have %d", len(km.entries))
	}
}
