package workspace

import (
	"sync"
	"testing"
	"time"
)

func TestLockerSerializesSameID(t *testing.T) {
	t.Parallel()

	locker := NewLocker()
	var active, maxActive int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locker.Lock("ws-1")
			defer locker.Unlock("ws-1")

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("turns for one workspace overlapped: max concurrency %d", maxActive)
	}
}

func TestLockerIndependentIDs(t *testing.T) {
	t.Parallel()

	locker := NewLocker()
	locker.Lock("ws-1")
	defer locker.Unlock("ws-1")

	done := make(chan struct{})
	go func() {
		locker.Lock("ws-2")
		locker.Unlock("ws-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different workspace blocked")
	}
}
