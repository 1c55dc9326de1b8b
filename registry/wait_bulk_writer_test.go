package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlush(t *testing.T) {
	c := make(chan []waitSample, 1)
	sample := waitSample{
		key:  "dummy-lock",
		wait: time.Millisecond * 100,
	}

	w := newWaitBulkWriter(time.Millisecond, func(data []waitSample) error {
		c <- data
		return nil
	})
	defer w.close()

	assert.True(t, w.write(sample))

	data := <-c
	assert.Equal(t, sample, data[0])
}

func TestClose_ShouldFlushPendingSamples(t *testing.T) {
	var mu sync.Mutex
	flushed := make([]waitSample, 0)
	w := newWaitBulkWriter(0, func(data []waitSample) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, data...)
		return nil
	})

	for i := 0; i < 10; i++ {
		w.write(waitSample{key: "a", wait: time.Duration(i)})
	}
	w.close()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, flushed, 10)
	assert.True(t, w.closed)
	assert.Len(t, w.buf, 0)
}

func TestWrite_ShouldRejectAfterClose(t *testing.T) {
	w := newWaitBulkWriter(time.Millisecond, func(data []waitSample) error {
		return nil
	})

	w.close()
	w.close()

	assert.False(t, w.write(waitSample{key: "a"}))
}
