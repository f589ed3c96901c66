package migration

import (
	"sync"
	"testing"
)

func TestLocksMutualExclusion(t *testing.T) {
	locks := newNamespaceLocks()
	if !locks.tryAcquire("library") {
		t.Fatal("first acquire must succeed")
	}
	if locks.tryAcquire("library") {
		t.Fatal("second acquire on a held namespace must fail")
	}
	locks.release("library")
	if !locks.tryAcquire("library") {
		t.Fatal("acquire after release must succeed")
	}
}

func TestLocksDistinctNamespaces(t *testing.T) {
	locks := newNamespaceLocks()
	if !locks.tryAcquire("a") || !locks.tryAcquire("b") {
		t.Fatal("distinct namespaces must not contend")
	}
}

func TestLocksConcurrentAcquire(t *testing.T) {
	locks := newNamespaceLocks()
	const attempts = 64

	var wg sync.WaitGroup
	won := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if locks.tryAcquire("library") {
				won <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(won)

	count := 0
	for range won {
		count++
	}
	if count != 1 {
		t.Errorf("exactly one goroutine must win the lock, got %d", count)
	}
}
