package service

import (
	"sync"
	"testing"
)

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		counter [3]int
	)
	for i := 0; i < 50; i++ {
		for _, key := range []int64{1, 2} {
			wg.Add(1)
			go func(key int64) {
				defer wg.Done()
				unlock := k.lock(key)
				defer unlock()
				// Guarded only by the keyed lock.
				v := counter[key]
				counter[key] = v + 1
			}(key)
		}
	}
	wg.Wait()
	if counter[1] != 50 || counter[2] != 50 {
		t.Errorf("counters = %v, want 50 each", counter[1:])
	}
	if n := k.size(); n != 0 {
		t.Errorf("entries left after all unlocks: %d", n)
	}
}
