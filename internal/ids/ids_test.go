package ids

import (
	"sort"
	"sync"
	"testing"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	const n = 1000
	got := make([]string, 0, n)
	for i := 0; i < n; i++ {
		got = append(got, New())
	}

	seen := make(map[string]bool, n)
	for _, id := range got {
		if len(id) != 26 {
			t.Fatalf("unexpected id length %d for %q", len(id), id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if !sort.StringsAreSorted(got) {
		t.Fatalf("ids generated in sequence must sort lexicographically")
	}
}

func TestNewConcurrent(t *testing.T) {
	const workers, per = 8, 100
	var mu sync.Mutex
	seen := make(map[string]bool, workers*per)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				id := New()
				mu.Lock()
				if seen[id] {
					mu.Unlock()
					t.Errorf("duplicate id %q", id)
					return
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
