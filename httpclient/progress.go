package httpclient

import (
	"fmt"
	"io"
	"sync"
)

// Progress is one upload progress notification.
type Progress struct {
	// Loaded is the number of body bytes handed to the transport so far.
	Loaded int64

	// Total is the body size, or -1 when it cannot be known.
	Total int64

	// Percent is Loaded/Total*100 in [0,100]. Meaningless when
	// LengthComputable is false.
	Percent float64

	// LengthComputable is false when the total size is unknown or zero.
	LengthComputable bool
}

// Unknown reports whether this notification carries no percentage.
func (p Progress) Unknown() bool {
	return !p.LengthComputable
}

func (p Progress) String() string {
	if p.Unknown() {
		return fmt.Sprintf("%d bytes (total unknown)", p.Loaded)
	}
	return fmt.Sprintf("%.2f%% (%d/%d bytes)", p.Percent, p.Loaded, p.Total)
}

// ProgressSink receives upload progress for a single call.
//
// OnProgress is invoked zero or more times, always before the call settles.
// It runs on the transport's write path, so slow sinks slow the upload.
type ProgressSink interface {
	OnProgress(Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Progress)

// OnProgress calls f(p).
func (f ProgressFunc) OnProgress(p Progress) { f(p) }

// progressTracker delivers progress to a sink until it is closed.
// close() returns only after any in-flight delivery has finished, so no
// notification can be observed after the call settles.
type progressTracker struct {
	mu     sync.Mutex
	sink   ProgressSink
	total  int64
	loaded int64
	closed bool
}

func newProgressTracker(sink ProgressSink, total int64) *progressTracker {
	return &progressTracker{sink: sink, total: total}
}

func (t *progressTracker) advance(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.loaded += int64(n)
	t.sink.OnProgress(t.snapshot())
}

// restart resets the count before the body is sent again.
func (t *progressTracker) restart() {
	t.mu.Lock()
	t.loaded = 0
	t.mu.Unlock()
}

func (t *progressTracker) snapshot() Progress {
	p := Progress{Loaded: t.loaded, Total: t.total}
	if t.total <= 0 {
		return p
	}

	p.LengthComputable = true
	p.Percent = float64(t.loaded) / float64(t.total) * 100
	if p.Percent > 100 {
		p.Percent = 100
	}
	return p
}

func (t *progressTracker) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// progressReader counts bytes read from the request body.
// It must not implement io.WriterTo, or io.Copy would skip the count.
type progressReader struct {
	r       io.Reader
	tracker *progressTracker
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.tracker.advance(n)
	}
	return n, err
}
