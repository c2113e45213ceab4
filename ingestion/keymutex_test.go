package ingestion

import (
	"fmt"
	"sync"
	"testing"
)

func TestKeyMutexSerializesSameKey(t *testing.T) {
	km := newKeyMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("shared")
			counter++
			km.Unlock("shared")
		}()
	}
	wg.Wait()

	if counter != 200 {
		t.Errorf("counter = %d, want 200", counter)
	}
}

func TestKeyMutexDistinctKeysIndependent(t *testing.T) {
	km := newKeyMutex()

	// Holding one key must not block another
	km.Lock("a")
	done := make(chan struct{})
	go func() {
		km.Lock("b")
		km.Unlock("b")
		close(done)
	}()
	<-done
	km.Unlock("a")
}

func TestKeyMutexReleasesIdleEntries(t *testing.T) {
	km := newKeyMutex()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%7)
			km.Lock(key)
			km.Unlock(key)
		}(i)
	}
	wg.Wait()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Errorf("%d lock entries leaked", len(km.locks))
	}
}
