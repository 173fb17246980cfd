package sources

import (
	"errors"
	"io"
	"log/slog"

	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

// defaultChunkSize is used when the engine does not say how much it wants.
const defaultChunkSize = 4096

// feeder runs one adapter-owned goroutine that answers the source element's
// need-data requests. The engine's callback only signals; all reading
// happens on the feeder goroutine so the engine is never blocked on
// adapter I/O.
type feeder struct {
	src    pipeline.SourceElement
	read   func(p []byte) (int, error)
	fail   func(err error)
	need   chan int
	stopCh chan struct{}
	doneCh chan struct{}
}

// newFeeder wires the need-data callback and starts the goroutine.
// read is called only from the feeder goroutine: io.EOF makes the feeder
// signal end-of-stream and park until the next need-data request, while any
// other error is handed to fail so the adapter can report it instead of
// faking a clean end of stream.
func newFeeder(src pipeline.SourceElement, read func(p []byte) (int, error), fail func(err error)) *feeder {
	f := &feeder{
		src:    src,
		read:   read,
		fail:   fail,
		need:   make(chan int, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	src.OnNeedData(f.requestData)
	go f.run()
	return f
}

// requestData runs on an engine goroutine. Coalescing repeated requests into
// the buffered channel keeps it non-blocking.
func (f *feeder) requestData(n int) {
	select {
	case f.need <- n:
	case <-f.stopCh:
	default:
	}
}

func (f *feeder) run() {
	defer close(f.doneCh)
	buf := make([]byte, defaultChunkSize)
	for {
		var n int
		select {
		case <-f.stopCh:
			return
		case n = <-f.need:
		}
		if n <= 0 || n > len(buf) {
			n = len(buf)
		}

		read, err := f.read(buf[:n])
		if read > 0 {
			if pushErr := f.src.Push(buf[:read]); pushErr != nil {
				slog.Debug("source feeder: push rejected, stopping", "err", pushErr)
				return
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			f.src.EndOfStream()
		default:
			slog.Warn("source feeder: read failed", "err", err)
			f.fail(err)
		}
	}
}

// stop terminates the goroutine and detaches the callback. Idempotent.
func (f *feeder) stop() {
	select {
	case <-f.stopCh:
		return
	default:
	}
	f.src.OnNeedData(nil)
	close(f.stopCh)
	<-f.doneCh
}
