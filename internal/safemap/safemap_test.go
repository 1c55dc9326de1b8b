package safemap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeMap(t *testing.T) {
	m := NewSafeMap[string, int]()

	m.Set("a", 1)
	m.Set("b", 2)

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, m.Len())

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestSafeMap_SnapshotIsACopy(t *testing.T) {
	m := NewSafeMap[string, int]()
	m.Set("a", 1)

	snapshot := m.Snapshot()
	m.Set("b", 2)
	snapshot["c"] = 3

	assert.Len(t, snapshot, 2)
	_, ok := m.Get("c")
	assert.False(t, ok)
}

func TestSafeMap_ConcurrentAccess(t *testing.T) {
	m := NewSafeMap[int, int]()
	wg := sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set(i, i)
			_, _ = m.Get(i)
			_ = m.Snapshot()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
}
