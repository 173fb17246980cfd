package beepengine

import (
	"errors"
	"io"
	"math"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
)

// Byte queue watermarks: need-data is signalled when the buffered compressed
// data falls under lowWater, enough-data once it reaches highWater.
const (
	lowWater  = 16 * 1024
	highWater = 256 * 1024
)

var errQueueClosed = errors.New("beepengine: source removed from pipeline")

// byteQueue is the source element: adapters push compressed bytes in, the
// decoder reads them out. Read blocks until data arrives or the stream ends.
type byteQueue struct {
	name string

	mu         sync.Mutex
	cond       *sync.Cond
	buf        []byte
	eos        bool
	closed     bool
	needData   func(n int)
	enoughData func()
}

func newByteQueue(name string) *byteQueue {
	q := &byteQueue{name: name}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *byteQueue) Name() string { return q.name }

func (q *byteQueue) Push(data []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errQueueClosed
	}
	q.buf = append(q.buf, data...)
	full := len(q.buf) >= highWater
	enough := q.enoughData
	q.mu.Unlock()
	q.cond.Broadcast()
	if full && enough != nil {
		enough()
	}
	return nil
}

func (q *byteQueue) EndOfStream() {
	q.mu.Lock()
	q.eos = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *byteQueue) OnNeedData(fn func(n int)) {
	q.mu.Lock()
	q.needData = fn
	q.mu.Unlock()
}

func (q *byteQueue) OnEnoughData(fn func()) {
	q.mu.Lock()
	q.enoughData = fn
	q.mu.Unlock()
}

// Read implements io.Reader for the decoder side.
func (q *byteQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	q.maybeRequestLocked()
	for len(q.buf) == 0 && !q.eos && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		q.mu.Unlock()
		return 0, errQueueClosed
	}
	if len(q.buf) == 0 {
		q.mu.Unlock()
		return 0, io.EOF
	}
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	q.maybeRequestLocked()
	q.mu.Unlock()
	return n, nil
}

// maybeRequestLocked asks the adapter for more data when running low.
// The callback contract is non-blocking, so calling under the lock is fine.
func (q *byteQueue) maybeRequestLocked() {
	if q.needData != nil && !q.eos && !q.closed && len(q.buf) < lowWater {
		q.needData(highWater - len(q.buf))
	}
}

// Close satisfies the decoders' io.ReadCloser input. The queue stays usable:
// beep decoders close their input when the streamer is closed, but the
// pipeline may restart on the same queue for the next playlist segment.
func (q *byteQueue) Close() error { return nil }

// kick prompts an initial need-data round before decoding starts.
func (q *byteQueue) kick() {
	q.mu.Lock()
	q.maybeRequestLocked()
	q.mu.Unlock()
}

// resetStream clears the end-of-stream mark so a new segment can flow after
// a NULL → PLAYING cycle. Buffered bytes are kept: they already belong to
// the next segment.
func (q *byteQueue) resetStream() {
	q.mu.Lock()
	q.eos = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// shutdown permanently invalidates the queue.
func (q *byteQueue) shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// decoderElement carries the decode configuration and the pad-added hook;
// the actual decoding happens in the pipeline's preroll.
type decoderElement struct {
	name string

	mu           sync.Mutex
	useBuffering bool
	padAdded     func()
}

func (d *decoderElement) Name() string { return d.name }

func (d *decoderElement) UseBuffering() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.useBuffering
}

func (d *decoderElement) SetUseBuffering(b bool) {
	d.mu.Lock()
	d.useBuffering = b
	d.mu.Unlock()
}

func (d *decoderElement) OnPadAdded(fn func()) {
	d.mu.Lock()
	d.padAdded = fn
	d.mu.Unlock()
}

func (d *decoderElement) firePadAdded() {
	d.mu.Lock()
	fn := d.padAdded
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// converterElement resamples decoded audio to the speaker rate.
type converterElement struct {
	quality int
	rate    beep.SampleRate
}

func (c *converterElement) Name() string { return "converter" }

func (c *converterElement) wrap(format beep.Format, s beep.Streamer) beep.Streamer {
	if format.SampleRate == c.rate {
		return s
	}
	return beep.Resample(c.quality, format.SampleRate, c.rate, s)
}

// volumeElement maps the engine's linear [0, 1] volume onto the exponential
// gain of effects.Volume. Zero volume and mute are both rendered as silence.
type volumeElement struct {
	mu     sync.Mutex
	linear float64
	mute   bool
	fx     *effects.Volume // live chain node, nil while not playing
}

func (v *volumeElement) Name() string { return "volume" }

func (v *volumeElement) SetVolume(vol float64) {
	v.mu.Lock()
	v.linear = vol
	fx := v.fx
	linear, mute := v.linear, v.mute
	v.mu.Unlock()
	if fx != nil {
		applyVolume(fx, linear, mute)
	}
}

func (v *volumeElement) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.linear
}

func (v *volumeElement) SetMute(m bool) {
	v.mu.Lock()
	v.mute = m
	fx := v.fx
	linear, mute := v.linear, v.mute
	v.mu.Unlock()
	if fx != nil {
		applyVolume(fx, linear, mute)
	}
}

func (v *volumeElement) Muted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mute
}

// wrap builds the live effects node for a new chain.
func (v *volumeElement) wrap(s beep.Streamer) *effects.Volume {
	v.mu.Lock()
	defer v.mu.Unlock()
	fx := &effects.Volume{
		Streamer: s,
		Base:     2,
	}
	v.fx = fx
	silent := v.mute || v.linear <= 0
	fx.Silent = silent
	if !silent {
		fx.Volume = math.Log2(v.linear)
	}
	return fx
}

// detach drops the live node when the chain is torn down.
func (v *volumeElement) detach() {
	v.mu.Lock()
	v.fx = nil
	v.mu.Unlock()
}

// applyVolume updates a live node under the speaker lock.
func applyVolume(fx *effects.Volume, linear float64, mute bool) {
	speaker.Lock()
	silent := mute || linear <= 0
	fx.Silent = silent
	if !silent {
		fx.Volume = math.Log2(linear)
	}
	speaker.Unlock()
}

// sinkElement represents the speaker output. The speaker device is global in
// beep, so it is initialized once per process.
type sinkElement struct {
	rate beep.SampleRate
}

func (s *sinkElement) Name() string { return "audio_sink" }

var speakerOnce sync.Once

func (s *sinkElement) ensureInit(bufLen int) error {
	var err error
	speakerOnce.Do(func() {
		err = speaker.Init(s.rate, bufLen)
	})
	return err
}
