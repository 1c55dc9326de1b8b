package registry

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const waitBufferSize = 1024

type waitSample struct {
	key  string
	wait time.Duration
}

type flushFunc func(data []waitSample) error

// waitBulkWriter batches wait samples and hands them to flushFunc on every
// tick and once more on close.
type waitBulkWriter struct {
	ticker    *time.Ticker
	tickerCh  <-chan time.Time
	buf       []waitSample
	data      chan waitSample
	closeLock *sync.Mutex
	closed    bool
	quit      chan struct{}
	done      chan struct{}
	flushFunc flushFunc
}

func newWaitBulkWriter(flushInterval time.Duration, flush flushFunc) *waitBulkWriter {
	bw := &waitBulkWriter{
		buf:       make([]waitSample, 0),
		data:      make(chan waitSample, waitBufferSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		flushFunc: flush,
		tickerCh:  make(chan time.Time),
		closeLock: &sync.Mutex{},
	}

	if flushInterval > 0 {
		bw.ticker = time.NewTicker(flushInterval)
		bw.tickerCh = bw.ticker.C
	}

	go bw.processor()

	return bw
}

func (b *waitBulkWriter) processor() {
	defer close(b.done)
	for {
		select {
		case d := <-b.data:
			b.buf = append(b.buf, d)
		case <-b.tickerCh:
			b.flush()
		case <-b.quit:
			b.drain()
			b.flush()
			return
		}
	}
}

func (b *waitBulkWriter) drain() {
	for {
		select {
		case d := <-b.data:
			b.buf = append(b.buf, d)
		default:
			return
		}
	}
}

// write never blocks the acquiring goroutine; samples are dropped when the
// buffer is full or the writer is closed.
func (b *waitBulkWriter) write(data waitSample) bool {
	b.closeLock.Lock()
	defer b.closeLock.Unlock()

	if b.closed {
		return false
	}

	select {
	case b.data <- data:
		return true
	default:
		log.WithField("key", data.key).Debug("wait sample dropped, buffer is full")
		return false
	}
}

func (b *waitBulkWriter) flush() {
	if len(b.buf) == 0 {
		return
	}

	if err := b.flushFunc(b.buf); err != nil {
		log.WithError(err).Error("error while flushing wait samples")
	}

	b.buf = []waitSample{}
}

// close stops the writer and returns after the final flush.
func (b *waitBulkWriter) close() {
	b.closeLock.Lock()
	if b.closed {
		b.closeLock.Unlock()
		log.Error("closing a closed wait bulk writer")
		return
	}
	b.closed = true
	close(b.quit)
	b.closeLock.Unlock()

	if b.ticker != nil {
		b.ticker.Stop()
	}
	<-b.done
}
