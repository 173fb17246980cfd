// Package enginemock provides a scriptable in-memory Engine for tests.
// State change requests are recorded and reflected in State() but emit no
// bus traffic; tests drive bus traffic explicitly through the Emit* helpers
// so every transition is deterministic.
package enginemock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

// Engine is a mock pipeline.Engine.
type Engine struct {
	mu        sync.Mutex
	pipelines []*Pipeline

	failConverter bool
	failVolume    bool
	failSink      bool
	failSource    bool
	failDecoder   bool
}

// New creates a mock engine.
func New() *Engine {
	return &Engine{}
}

// SetFailConverter makes NewConverter fail, for init failure tests.
func (e *Engine) SetFailConverter(fail bool) { e.mu.Lock(); e.failConverter = fail; e.mu.Unlock() }

// SetFailVolume makes NewVolume fail.
func (e *Engine) SetFailVolume(fail bool) { e.mu.Lock(); e.failVolume = fail; e.mu.Unlock() }

// SetFailSink makes NewSink fail.
func (e *Engine) SetFailSink(fail bool) { e.mu.Lock(); e.failSink = fail; e.mu.Unlock() }

// SetFailSource makes NewSource fail, for adapter construction failure tests.
func (e *Engine) SetFailSource(fail bool) { e.mu.Lock(); e.failSource = fail; e.mu.Unlock() }

// SetFailDecoder makes NewDecoder fail.
func (e *Engine) SetFailDecoder(fail bool) { e.mu.Lock(); e.failDecoder = fail; e.mu.Unlock() }

func (e *Engine) NewPipeline(name string) (pipeline.Pipeline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := &Pipeline{
		name:        name,
		cur:         pipeline.StateNull,
		pend:        pipeline.StateVoidPending,
		stateResult: pipeline.StateChangeSuccess,
		bus:         pipeline.NewBus(),
		members:     make(map[string]pipeline.Element),
	}
	e.pipelines = append(e.pipelines, p)
	return p, nil
}

func (e *Engine) NewConverter() (pipeline.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failConverter {
		return nil, errors.New("enginemock: converter failure configured")
	}
	return &Element{name: "converter"}, nil
}

func (e *Engine) NewVolume() (pipeline.VolumeElement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failVolume {
		return nil, errors.New("enginemock: volume failure configured")
	}
	return &Volume{Element: Element{name: "volume"}, volume: 1.0}, nil
}

func (e *Engine) NewSink() (pipeline.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failSink {
		return nil, errors.New("enginemock: sink failure configured")
	}
	return &Element{name: "audio_sink"}, nil
}

func (e *Engine) NewSource(name string) (pipeline.SourceElement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failSource {
		return nil, errors.New("enginemock: source failure configured")
	}
	return &Source{Element: Element{name: name}}, nil
}

func (e *Engine) NewDecoder(name string) (pipeline.DecoderElement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failDecoder {
		return nil, errors.New("enginemock: decoder failure configured")
	}
	return &Decoder{Element: Element{name: name}}, nil
}

// Pipelines returns every pipeline this engine has created.
func (e *Engine) Pipelines() []*Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Pipeline, len(e.pipelines))
	copy(out, e.pipelines)
	return out
}

// Element is a plain named mock element.
type Element struct {
	name string
}

func (e *Element) Name() string { return e.name }

// Volume is a mock volume element.
type Volume struct {
	Element
	mu     sync.Mutex
	volume float64
	mute   bool
}

func (v *Volume) SetVolume(vol float64) { v.mu.Lock(); v.volume = vol; v.mu.Unlock() }
func (v *Volume) Volume() float64       { v.mu.Lock(); defer v.mu.Unlock(); return v.volume }
func (v *Volume) SetMute(m bool)        { v.mu.Lock(); v.mute = m; v.mu.Unlock() }
func (v *Volume) Muted() bool           { v.mu.Lock(); defer v.mu.Unlock(); return v.mute }

// Source is a mock source element recording pushed data.
type Source struct {
	Element
	mu         sync.Mutex
	pushed     []byte
	eos        bool
	removed    bool
	needData   func(n int)
	enoughData func()
}

func (s *Source) Push(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return errors.New("enginemock: push on removed source")
	}
	s.pushed = append(s.pushed, data...)
	return nil
}

func (s *Source) EndOfStream() {
	s.mu.Lock()
	s.eos = true
	s.mu.Unlock()
}

func (s *Source) OnNeedData(fn func(n int)) { s.mu.Lock(); s.needData = fn; s.mu.Unlock() }
func (s *Source) OnEnoughData(fn func())    { s.mu.Lock(); s.enoughData = fn; s.mu.Unlock() }

// TriggerNeedData invokes the registered need-data callback.
func (s *Source) TriggerNeedData(n int) {
	s.mu.Lock()
	fn := s.needData
	s.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Pushed returns all bytes pushed so far.
func (s *Source) Pushed() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.pushed))
	copy(out, s.pushed)
	return out
}

// EOSReceived reports whether EndOfStream was called.
func (s *Source) EOSReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eos
}

// Decoder is a mock decoder element.
type Decoder struct {
	Element
	mu           sync.Mutex
	useBuffering bool
	padAdded     func()
}

func (d *Decoder) UseBuffering() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.useBuffering
}

func (d *Decoder) SetUseBuffering(b bool) { d.mu.Lock(); d.useBuffering = b; d.mu.Unlock() }

func (d *Decoder) OnPadAdded(fn func()) { d.mu.Lock(); d.padAdded = fn; d.mu.Unlock() }

// TriggerPadAdded fires the registered pad-added hook, if any.
func (d *Decoder) TriggerPadAdded() {
	d.mu.Lock()
	fn := d.padAdded
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// PadAddedRegistered reports whether a hook is currently registered.
func (d *Decoder) PadAddedRegistered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.padAdded != nil
}

// Pipeline is a mock pipeline root. Tests drive bus traffic with the Emit*
// helpers; SetState records the request and updates the state State()
// reports (NULL at once, anything else as pending), without bus traffic.
type Pipeline struct {
	name string

	mu          sync.Mutex
	cur         pipeline.State
	pend        pipeline.State
	stateResult pipeline.StateChangeResult
	setStates   []pipeline.State
	failSet     bool

	pos   time.Duration
	posOK bool

	buffering   bool
	bufferingOK bool

	seekable   bool
	seekableOK bool

	seekOK    bool
	seekCalls []time.Duration

	links   [][]string
	members map[string]pipeline.Element

	released bool
	bus      *pipeline.Bus
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) Add(elements ...pipeline.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range elements {
		if _, ok := p.members[el.Name()]; ok {
			return fmt.Errorf("enginemock: element %q already in pipeline", el.Name())
		}
		p.members[el.Name()] = el
	}
	return nil
}

func (p *Pipeline) Remove(elements ...pipeline.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range elements {
		if _, ok := p.members[el.Name()]; !ok {
			return fmt.Errorf("enginemock: element %q not in pipeline", el.Name())
		}
		delete(p.members, el.Name())
		if src, ok := el.(*Source); ok {
			src.mu.Lock()
			src.removed = true
			src.mu.Unlock()
		}
	}
	return nil
}

func (p *Pipeline) Link(elements ...pipeline.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	link := make([]string, 0, len(elements))
	for _, el := range elements {
		link = append(link, el.Name())
	}
	p.links = append(p.links, link)
	return nil
}

// Links returns every Link call, as element name chains.
func (p *Pipeline) Links() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]string, len(p.links))
	copy(out, p.links)
	return out
}

// Member returns the named element currently in the pipeline, or nil.
func (p *Pipeline) Member(name string) pipeline.Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[name]
}

// Contains reports whether a named element is currently in the pipeline.
func (p *Pipeline) Contains(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.members[name]
	return ok
}

// SetFailSetState makes subsequent SetState calls fail.
func (p *Pipeline) SetFailSetState(fail bool) {
	p.mu.Lock()
	p.failSet = fail
	p.mu.Unlock()
}

// SetStateResult configures the result of State queries.
func (p *Pipeline) SetStateResult(r pipeline.StateChangeResult) {
	p.mu.Lock()
	p.stateResult = r
	p.mu.Unlock()
}

// SetPosition configures the play position report.
func (p *Pipeline) SetPosition(pos time.Duration, ok bool) {
	p.mu.Lock()
	p.pos = pos
	p.posOK = ok
	p.mu.Unlock()
}

// SetBuffering configures the buffering query result.
func (p *Pipeline) SetBuffering(busy, ok bool) {
	p.mu.Lock()
	p.buffering = busy
	p.bufferingOK = ok
	p.mu.Unlock()
}

// SetSeekable configures the seekable query result.
func (p *Pipeline) SetSeekable(seekable, ok bool) {
	p.mu.Lock()
	p.seekable = seekable
	p.seekableOK = ok
	p.mu.Unlock()
}

// SetSeekOK configures whether Seek succeeds.
func (p *Pipeline) SetSeekOK(ok bool) {
	p.mu.Lock()
	p.seekOK = ok
	p.mu.Unlock()
}

func (p *Pipeline) SetState(s pipeline.State) pipeline.StateChangeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSet {
		return pipeline.StateChangeFailure
	}
	p.setStates = append(p.setStates, s)
	if s == pipeline.StateNull {
		p.cur = pipeline.StateNull
		p.pend = pipeline.StateVoidPending
		return pipeline.StateChangeSuccess
	}
	p.pend = s
	return pipeline.StateChangeAsync
}

// SetStates returns every state requested through SetState, in order.
func (p *Pipeline) SetStates() []pipeline.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pipeline.State, len(p.setStates))
	copy(out, p.setStates)
	return out
}

// ForceState overrides the current and pending states without emitting bus
// traffic.
func (p *Pipeline) ForceState(cur, pend pipeline.State) {
	p.mu.Lock()
	p.cur = cur
	p.pend = pend
	p.mu.Unlock()
}

func (p *Pipeline) State() (pipeline.State, pipeline.State, pipeline.StateChangeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur, p.pend, p.stateResult
}

func (p *Pipeline) Position() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos, p.posOK
}

func (p *Pipeline) QueryBuffering() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffering, p.bufferingOK
}

func (p *Pipeline) QuerySeekable() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seekable, p.seekableOK
}

func (p *Pipeline) Seek(offset time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekCalls = append(p.seekCalls, offset)
	return p.seekOK
}

// SeekCalls returns every Seek offset requested.
func (p *Pipeline) SeekCalls() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Duration, len(p.seekCalls))
	copy(out, p.seekCalls)
	return out
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
	p.released = true
	p.mu.Unlock()
	p.bus.Close()
}

// EmitStateChanged updates the mock's state and emits the corresponding
// pipeline-origin bus message.
func (p *Pipeline) EmitStateChanged(old, new, pending pipeline.State) {
	p.mu.Lock()
	p.cur = new
	p.pend = pending
	p.mu.Unlock()
	p.bus.Emit(pipeline.Message{
		Kind:         pipeline.MessageStateChanged,
		Origin:       p.name,
		FromPipeline: true,
		Old:          old,
		New:          new,
		Pending:      pending,
	})
}

// EmitEOS emits a pipeline-origin end-of-stream message.
func (p *Pipeline) EmitEOS() {
	p.bus.Emit(pipeline.Message{
		Kind:         pipeline.MessageEOS,
		Origin:       p.name,
		FromPipeline: true,
	})
}

// EmitBuffering emits a buffering message with the given percentage.
func (p *Pipeline) EmitBuffering(percent int) {
	p.bus.Emit(pipeline.Message{
		Kind:    pipeline.MessageBuffering,
		Origin:  p.name,
		Percent: percent,
	})
}

// EmitError emits an error message.
func (p *Pipeline) EmitError(origin string, err *pipeline.EngineError) {
	p.bus.Emit(pipeline.Message{
		Kind:   pipeline.MessageError,
		Origin: origin,
		Err:    err,
	})
}

// EmitTags emits a tag message.
func (p *Pipeline) EmitTags(tags []pipeline.TagValue) {
	p.bus.Emit(pipeline.Message{
		Kind:   pipeline.MessageTag,
		Origin: p.name,
		Tags:   tags,
	})
}

var _ pipeline.Engine = (*Engine)(nil)
var _ pipeline.Pipeline = (*Pipeline)(nil)
