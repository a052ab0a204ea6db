package rid

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormat(t *testing.T) {
	for _, tag := range []string{"user", "steps", "heart_rate", "goal", "conversation"} {
		id := New(tag)
		rx := regexp.MustCompile(`^` + tag + `\.\.[a-z0-9]{12,}$`)
		assert.Regexp(t, rx, id)
	}
}

func TestNewUniqueness(t *testing.T) {
	const n = 100000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := New("steps")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate identifier after %d draws: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewConcurrent(t *testing.T) {
	const perG, goroutines = 1000, 8
	var mu sync.Mutex
	seen := make(map[string]struct{}, perG*goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perG)
			for i := 0; i < perG; i++ {
				local = append(local, New("user"))
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, perG*goroutines)
}

func TestNewSuffixDistribution(t *testing.T) {
	// Every alphabet character should appear at roughly the same rate.
	// A byte-modulo mapping would favor the first 256%36 characters by
	// a third, which lands far outside the 10% tolerance here.
	const draws = 20000
	counts := make(map[rune]int, len(alphabet))
	for i := 0; i < draws; i++ {
		_, suffix, ok := Parse(New("steps"))
		require.True(t, ok)
		for _, r := range suffix {
			counts[r]++
		}
	}

	mean := float64(draws*SuffixLength) / float64(len(alphabet))
	for _, r := range alphabet {
		got := float64(counts[r])
		assert.InDelta(t, mean, got, mean*0.10, "character %q drawn %v times, want ~%v", string(r), got, mean)
	}
}

func TestNewEmptyTagPanics(t *testing.T) {
	assert.Panics(t, func() { New("") })
}

func TestParse(t *testing.T) {
	id := New("weight")
	tag, suffix, ok := Parse(id)
	require.True(t, ok)
	assert.Equal(t, "weight", tag)
	assert.Len(t, suffix, SuffixLength)

	for _, bad := range []string{"", "user", "user.abc", "..abcdefghijkl", "user..short", "user..UPPERCASE!!"} {
		_, _, ok := Parse(bad)
		assert.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestIs(t *testing.T) {
	id := New("user")
	assert.True(t, Is(id, "user"))
	assert.False(t, Is(id, "goal"))
	assert.False(t, Is("junk", "user"))
}
