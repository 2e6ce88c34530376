package capture

import (
	"errors"
	"sync"
)

// DefaultMaxBufferBytes bounds each stream buffer when the caller does not
// supply a limit.
const DefaultMaxBufferBytes = 16 * 1024 * 1024

// ErrBufferLimit is reported once a stream exceeds its byte budget. The run
// is aborted at that point; a runaway process must not grow memory without
// bound.
var ErrBufferLimit = errors.New("capture: output buffer limit exceeded")

// streamBuffer accumulates one stream's output up to a hard cap. Unlike a
// tail buffer it never drops data silently: crossing the cap fails the write,
// which the runner turns into a fatal overflow for the whole run.
type streamBuffer struct {
	maxBytes int64

	mu       sync.Mutex
	contents []byte
	total    int64
	overflow bool
}

func newStreamBuffer(maxBytes int64) *streamBuffer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBufferBytes
	}
	return &streamBuffer{maxBytes: maxBytes}
}

func (b *streamBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	if b.overflow {
		return 0, ErrBufferLimit
	}
	if b.total > b.maxBytes {
		b.overflow = true
		room := b.maxBytes - int64(len(b.contents))
		if room > 0 {
			b.contents = append(b.contents, p[:room]...)
		}
		return 0, ErrBufferLimit
	}
	b.contents = append(b.contents, p...)
	return len(p), nil
}

func (b *streamBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(b.contents))
	copy(cp, b.contents)
	return cp
}

func (b *streamBuffer) String() string {
	return string(b.Bytes())
}

func (b *streamBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}

func (b *streamBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
