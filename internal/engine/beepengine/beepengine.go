// Package beepengine implements the pipeline engine over faiface/beep with
// speaker (oto) output. One pipeline decodes mp3, ogg/vorbis, or wav from
// the source element's byte queue and renders it through
// resample → volume → speaker.
package beepengine

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"

	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

const (
	defaultSampleRate = beep.SampleRate(44100)
	speakerBufLen     = 100 * time.Millisecond
	resampleQuality   = 4
)

// Engine is the beep-backed pipeline.Engine.
type Engine struct {
	rate beep.SampleRate
}

// New creates an engine rendering at the default sample rate.
func New() *Engine {
	return &Engine{rate: defaultSampleRate}
}

func (e *Engine) NewPipeline(name string) (pipeline.Pipeline, error) {
	return &Pipeline{
		name:    name,
		eng:     e,
		cur:     pipeline.StateNull,
		pend:    pipeline.StateVoidPending,
		bus:     pipeline.NewBus(),
		members: make(map[string]pipeline.Element),
	}, nil
}

func (e *Engine) NewConverter() (pipeline.Element, error) {
	return &converterElement{quality: resampleQuality, rate: e.rate}, nil
}

func (e *Engine) NewVolume() (pipeline.VolumeElement, error) {
	return &volumeElement{linear: 1.0}, nil
}

func (e *Engine) NewSink() (pipeline.Element, error) {
	return &sinkElement{rate: e.rate}, nil
}

func (e *Engine) NewSource(name string) (pipeline.SourceElement, error) {
	return newByteQueue(name), nil
}

func (e *Engine) NewDecoder(name string) (pipeline.DecoderElement, error) {
	return &decoderElement{name: name}, nil
}

// Pipeline renders one chain at a time. All methods are called from the
// player's dispatcher goroutine; the preroll goroutine and speaker callbacks
// synchronize through mu and generation counting.
type Pipeline struct {
	name string
	eng  *Engine
	bus  *pipeline.Bus

	mu      sync.Mutex
	members map[string]pipeline.Element
	src     *byteQueue
	dec     *decoderElement
	conv    *converterElement
	vol     *volumeElement
	sink    *sinkElement

	cur  pipeline.State
	pend pipeline.State

	// generation invalidates preroll goroutines and speaker callbacks that
	// outlive a NULL transition.
	generation int
	prerolling bool
	target     pipeline.State
	streamer   beep.StreamSeekCloser
	format     beep.Format
	ctrl       *beep.Ctrl
	chainLive  bool

	released bool
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) Add(elements ...pipeline.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range elements {
		if _, ok := p.members[el.Name()]; ok {
			return fmt.Errorf("beepengine: element %q already in pipeline", el.Name())
		}
		p.members[el.Name()] = el
		switch v := el.(type) {
		case *byteQueue:
			p.src = v
		case *decoderElement:
			p.dec = v
		case *converterElement:
			p.conv = v
		case *volumeElement:
			p.vol = v
		case *sinkElement:
			p.sink = v
		}
	}
	return nil
}

func (p *Pipeline) Remove(elements ...pipeline.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range elements {
		if _, ok := p.members[el.Name()]; !ok {
			return fmt.Errorf("beepengine: element %q not in pipeline", el.Name())
		}
		delete(p.members, el.Name())
		switch v := el.(type) {
		case *byteQueue:
			v.shutdown()
			p.src = nil
		case *decoderElement:
			p.dec = nil
		}
	}
	return nil
}

// Link is bookkeeping: the chain is assembled at preroll from the element
// handles, and the decoder output only flows after the pad-added hook (which
// performs the decoder → converter link) has returned.
func (p *Pipeline) Link(elements ...pipeline.Element) error {
	return nil
}

func (p *Pipeline) SetState(s pipeline.State) pipeline.StateChangeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return pipeline.StateChangeFailure
	}
	switch s {
	case pipeline.StateNull:
		p.stopLocked()
		return pipeline.StateChangeSuccess

	case pipeline.StatePaused:
		if p.chainLive {
			p.setPausedLocked(true)
			return pipeline.StateChangeSuccess
		}
		if p.prerolling {
			// Retarget the in-flight preroll.
			p.pend = pipeline.StatePaused
			p.target = pipeline.StatePaused
			return pipeline.StateChangeAsync
		}
		return p.startLocked(pipeline.StatePaused)

	case pipeline.StatePlaying:
		if p.chainLive {
			p.setPausedLocked(false)
			return pipeline.StateChangeSuccess
		}
		if p.prerolling {
			p.pend = pipeline.StatePlaying
			p.target = pipeline.StatePlaying
			return pipeline.StateChangeAsync
		}
		return p.startLocked(pipeline.StatePlaying)

	default:
		return pipeline.StateChangeFailure
	}
}

// stopLocked tears the live chain down synchronously. NULL never completes
// asynchronously.
func (p *Pipeline) stopLocked() {
	p.generation++
	if p.chainLive {
		speaker.Clear()
		if p.streamer != nil {
			if err := p.streamer.Close(); err != nil {
				slog.Debug("beepengine: streamer close", "err", err)
			}
		}
		p.chainLive = false
	}
	p.prerolling = false
	p.streamer = nil
	p.ctrl = nil
	if p.vol != nil {
		p.vol.detach()
	}
	if p.src != nil {
		p.src.resetStream()
	}
	old := p.cur
	p.cur = pipeline.StateNull
	p.pend = pipeline.StateVoidPending
	if old != pipeline.StateNull {
		p.emitStateChanged(pipeline.StateReady, pipeline.StateNull, pipeline.StateVoidPending)
	}
}

// startLocked launches the preroll goroutine that decodes the queue head and
// brings up the chain in the target state.
func (p *Pipeline) startLocked(target pipeline.State) pipeline.StateChangeResult {
	if p.src == nil || p.dec == nil || p.conv == nil || p.vol == nil || p.sink == nil {
		slog.Error("beepengine: start with incomplete graph")
		return pipeline.StateChangeFailure
	}
	if err := p.sink.ensureInit(p.eng.rate.N(speakerBufLen)); err != nil {
		slog.Error("beepengine: speaker init failed", "err", err)
		return pipeline.StateChangeFailure
	}
	p.pend = target
	p.target = target
	p.prerolling = true
	gen := p.generation
	go p.preroll(gen)
	return pipeline.StateChangeAsync
}

// setPausedLocked toggles the live chain.
func (p *Pipeline) setPausedLocked(paused bool) {
	old := p.cur
	speaker.Lock()
	p.ctrl.Paused = paused
	speaker.Unlock()
	if paused {
		p.cur = pipeline.StatePaused
	} else {
		p.cur = pipeline.StatePlaying
	}
	p.pend = pipeline.StateVoidPending
	p.emitStateChanged(old, p.cur, pipeline.StateVoidPending)
}

// preroll runs off the dispatcher: it blocks on the byte queue until the
// stream can be identified, fires the pad-added hook, and starts the chain.
func (p *Pipeline) preroll(gen int) {
	p.mu.Lock()
	src, dec := p.src, p.dec
	p.mu.Unlock()
	if src == nil || dec == nil {
		return
	}

	src.kick()
	streamer, format, codec, err := decode(src)
	if err != nil {
		p.mu.Lock()
		stale := gen != p.generation
		if !stale {
			p.prerolling = false
			p.pend = pipeline.StateVoidPending
		}
		p.mu.Unlock()
		if stale {
			return
		}
		slog.Error("beepengine: decode failed", "err", err)
		p.bus.Emit(pipeline.Message{
			Kind:   pipeline.MessageError,
			Origin: src.Name(),
			Err: &pipeline.EngineError{
				Domain:     pipeline.DomainStream,
				FromSource: true,
				Message:    err.Error(),
			},
		})
		return
	}

	// The decoder's output pad exists now; let the player link it before
	// any audio flows.
	dec.firePadAdded()

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		streamer.Close()
		return
	}
	target := p.target
	p.streamer = streamer
	p.format = format
	chain := p.conv.wrap(format, streamer)
	volFx := p.vol.wrap(chain)
	p.ctrl = &beep.Ctrl{Streamer: volFx, Paused: target == pipeline.StatePaused}
	p.chainLive = true
	p.prerolling = false
	ctrl := p.ctrl
	p.mu.Unlock()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() { p.onDrained(gen) })))

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.emitStateChanged(pipeline.StateNull, pipeline.StateReady, target)
	if target == pipeline.StatePlaying {
		p.cur = pipeline.StatePaused
		p.emitStateChanged(pipeline.StateReady, pipeline.StatePaused, pipeline.StatePlaying)
		p.cur = pipeline.StatePlaying
		p.pend = pipeline.StateVoidPending
		p.emitStateChanged(pipeline.StatePaused, pipeline.StatePlaying, pipeline.StateVoidPending)
	} else {
		p.cur = pipeline.StatePaused
		p.pend = pipeline.StateVoidPending
		p.emitStateChanged(pipeline.StateReady, pipeline.StatePaused, pipeline.StateVoidPending)
	}
	p.mu.Unlock()

	p.bus.Emit(pipeline.Message{
		Kind:   pipeline.MessageTag,
		Origin: dec.Name(),
		Tags: []pipeline.TagValue{
			{Key: "audio-codec", Value: codec},
			{Key: "sample-rate", Value: uint(format.SampleRate)},
			{Key: "channels", Value: format.NumChannels},
		},
	})
}

// onDrained fires on the speaker goroutine, under the speaker's own lock,
// when the chain plays out. It must not touch p.mu there: SetState(NULL)
// holds p.mu while calling speaker.Clear, which waits on the speaker lock.
func (p *Pipeline) onDrained(gen int) {
	go func() {
		p.mu.Lock()
		stale := gen != p.generation
		p.mu.Unlock()
		if stale {
			return
		}
		p.bus.Emit(pipeline.Message{
			Kind:         pipeline.MessageEOS,
			Origin:       p.name,
			FromPipeline: true,
		})
	}()
}

func (p *Pipeline) emitStateChanged(old, new, pending pipeline.State) {
	p.bus.Emit(pipeline.Message{
		Kind:         pipeline.MessageStateChanged,
		Origin:       p.name,
		FromPipeline: true,
		Old:          old,
		New:          new,
		Pending:      pending,
	})
}

func (p *Pipeline) State() (pipeline.State, pipeline.State, pipeline.StateChangeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := pipeline.StateChangeSuccess
	if p.pend != pipeline.StateVoidPending {
		res = pipeline.StateChangeAsync
	}
	return p.cur, p.pend, res
}

func (p *Pipeline) Position() (time.Duration, bool) {
	p.mu.Lock()
	live := p.chainLive
	streamer := p.streamer
	format := p.format
	p.mu.Unlock()
	if !live || streamer == nil {
		return 0, false
	}
	speaker.Lock()
	n := streamer.Position()
	speaker.Unlock()
	return format.SampleRate.D(n), true
}

// QueryBuffering is unsupported: the byte queue prerolls without buffering
// messages, like sources the player handles through the preroll transition.
func (p *Pipeline) QueryBuffering() (bool, bool) {
	return false, false
}

// QuerySeekable: the compressed queue is consumed as it arrives and cannot
// be rewound.
func (p *Pipeline) QuerySeekable() (bool, bool) {
	return false, true
}

func (p *Pipeline) Seek(offset time.Duration) bool {
	return false
}

func (p *Pipeline) Messages() <-chan pipeline.Message {
	return p.bus.C()
}

func (p *Pipeline) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.stopLocked()
	p.released = true
	p.mu.Unlock()
	p.bus.Close()
}

// decode sniffs the queue head and picks the matching beep decoder.
func decode(q *byteQueue) (beep.StreamSeekCloser, beep.Format, string, error) {
	br := bufio.NewReader(q)
	head, err := br.Peek(4)
	if err != nil {
		return nil, beep.Format{}, "", fmt.Errorf("identify stream: %w", err)
	}

	rc := readCloser{Reader: br, Closer: q}
	switch {
	case string(head) == "OggS":
		s, f, err := vorbis.Decode(rc)
		return s, f, "vorbis", err
	case string(head) == "RIFF":
		s, f, err := wav.Decode(rc)
		return s, f, "wav", err
	case string(head[:3]) == "ID3" || (head[0] == 0xFF && head[1]&0xE0 == 0xE0):
		s, f, err := mp3.Decode(rc)
		return s, f, "mp3", err
	default:
		return nil, beep.Format{}, "", fmt.Errorf("unrecognized stream header %x", head)
	}
}

// readCloser pairs the sniffing reader with the queue's closer.
type readCloser struct {
	io.Reader
	io.Closer
}

var _ pipeline.Engine = (*Engine)(nil)
var _ pipeline.Pipeline = (*Pipeline)(nil)
