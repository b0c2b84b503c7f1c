package engine

import (
	"fmt"
	"sync"
	"testing"
)

func TestVerdictCache_KeepsLastN(t *testing.T) {
	for _, n := range []int{1, 3, 10} {
		for _, k := range []int{0, 1, 5} {
			t.Run(fmt.Sprintf("N=%d/k=%d", n, k), func(t *testing.T) {
				c := NewVerdictCache(n)
				for i := 0; i < n+k; i++ {
					c.Put(fmt.Sprintf("q%d", i))
				}
				if c.Len() != n {
					t.Fatalf("expected %d keys, got %d", n, c.Len())
				}

				keys := c.Keys()
				for i, key := range keys {
					want := fmt.Sprintf("q%d", n+k-1-i)
					if key != want {
						t.Errorf("position %d: expected %s, got %s", i, want, key)
					}
				}
				for i := 0; i < k; i++ {
					if c.Lookup(fmt.Sprintf("q%d", i)) {
						t.Errorf("q%d should have been evicted", i)
					}
				}

				// The (k+1)-th inserted string is the oldest survivor.
				oldest := fmt.Sprintf("q%d", k)
				if !c.Lookup(oldest) {
					t.Fatalf("%s should be a hit", oldest)
				}
				if got := c.Keys()[0]; got != oldest {
					t.Errorf("hit should promote %s to MRU, got %s", oldest, got)
				}
			})
		}
	}
}

func TestVerdictCache_PromotedKeySurvivesEviction(t *testing.T) {
	c := NewVerdictCache(2)
	c.Put("a")
	c.Put("b")
	c.Lookup("a")
	c.Put("c")

	if !c.Lookup("a") {
		t.Error("a was promoted and should survive")
	}
	if c.Lookup("b") {
		t.Error("b was least recently used and should be evicted")
	}
}

func TestVerdictCache_RePutDoesNotDuplicate(t *testing.T) {
	c := NewVerdictCache(3)
	c.Put("a")
	c.Put("b")
	c.Put("a")
	if c.Len() != 2 {
		t.Errorf("expected 2 keys, got %d", c.Len())
	}
	if got := c.Keys()[0]; got != "a" {
		t.Errorf("re-put should promote, got %s first", got)
	}
}

func TestVerdictCache_NonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -5} {
		if got := NewVerdictCache(capacity).Capacity(); got != DefaultCacheCapacity {
			t.Errorf("capacity %d: expected default %d, got %d", capacity, DefaultCacheCapacity, got)
		}
	}
}

func TestVerdictCache_Concurrent(t *testing.T) {
	c := NewVerdictCache(16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("q%d", (g*31+i)%40)
				if !c.Lookup(key) {
					c.Put(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Fatalf("capacity exceeded: %d", c.Len())
	}
	if len(c.Keys()) != c.Len() {
		t.Errorf("Keys() = %d entries, Len() = %d", len(c.Keys()), c.Len())
	}
}

func BenchmarkVerdictCache_LookupHit(b *testing.B) {
	c := NewVerdictCache(100)
	for i := 0; i < 100; i++ {
		c.Put(fmt.Sprintf("SELECT * FROM t WHERE id = %d", i))
	}
	key := "SELECT * FROM t WHERE id = 50"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Lookup(key)
	}
}
