package pipeline

import (
	"fmt"
	"log/slog"
	"time"
)

// AudioPipeline owns the element graph. The converter, volume, and sink are
// persistent: created once here, linked converter → volume → sink, and
// released only on Release. The source and decoder are transient: attached
// per source by SetSourceElements and removed by TearDownTransient.
type AudioPipeline struct {
	engine   Engine
	pipeline Pipeline

	source  SourceElement
	decoder DecoderElement

	converter Element
	volume    VolumeElement
	sink      Element
}

// NewAudioPipeline builds the persistent half of the graph and the pipeline
// root.
func NewAudioPipeline(engine Engine) (*AudioPipeline, error) {
	converter, err := engine.NewConverter()
	if err != nil {
		return nil, fmt.Errorf("create converter: %w", err)
	}
	volume, err := engine.NewVolume()
	if err != nil {
		return nil, fmt.Errorf("create volume: %w", err)
	}
	sink, err := engine.NewSink()
	if err != nil {
		return nil, fmt.Errorf("create sink: %w", err)
	}
	pl, err := engine.NewPipeline("audio-pipeline")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	if err := pl.Add(converter, volume, sink); err != nil {
		pl.Release()
		return nil, fmt.Errorf("add persistent elements: %w", err)
	}
	if err := pl.Link(converter, volume, sink); err != nil {
		pl.Release()
		return nil, fmt.Errorf("link converter/volume/sink: %w", err)
	}
	return &AudioPipeline{
		engine:    engine,
		pipeline:  pl,
		converter: converter,
		volume:    volume,
		sink:      sink,
	}, nil
}

// SetSourceElements attaches the transient head of the graph. The decoder's
// output is linked to the converter later, when its pad appears.
func (p *AudioPipeline) SetSourceElements(src SourceElement, dec DecoderElement) error {
	if p.source != nil || p.decoder != nil {
		return fmt.Errorf("transient elements already attached")
	}
	if err := p.pipeline.Add(src, dec); err != nil {
		return fmt.Errorf("add source elements: %w", err)
	}
	if err := p.pipeline.Link(src, dec); err != nil {
		return fmt.Errorf("link source to decoder: %w", err)
	}
	p.source = src
	p.decoder = dec
	return nil
}

// LinkDecoderToConverter completes the graph once the decoder's output pad
// has appeared.
func (p *AudioPipeline) LinkDecoderToConverter() error {
	if p.decoder == nil {
		return fmt.Errorf("no decoder attached")
	}
	return p.pipeline.Link(p.decoder, p.converter)
}

// TearDownTransient stops the pipeline and removes the source and decoder.
// The decoder's pad-added hook is cleared first so a stale hook can never
// fire for a replaced source. Safe to call when nothing is attached.
func (p *AudioPipeline) TearDownTransient() {
	if p.pipeline == nil {
		return
	}
	p.pipeline.SetState(StateNull)
	if p.source != nil {
		p.source.OnNeedData(nil)
		p.source.OnEnoughData(nil)
		if err := p.pipeline.Remove(p.source); err != nil {
			slog.Warn("pipeline: remove source failed", "err", err)
		}
		p.source = nil
	}
	if p.decoder != nil {
		p.decoder.OnPadAdded(nil)
		if err := p.pipeline.Remove(p.decoder); err != nil {
			slog.Warn("pipeline: remove decoder failed", "err", err)
		}
		p.decoder = nil
	}
}

// Release tears everything down, including the persistent elements, and
// closes the bus. The facade is unusable afterwards.
func (p *AudioPipeline) Release() {
	if p.pipeline == nil {
		return
	}
	p.pipeline.SetState(StateNull)
	p.pipeline.Release()
	p.pipeline = nil
	p.source = nil
	p.decoder = nil
	p.converter = nil
	p.volume = nil
	p.sink = nil
}

// QueryBuffering asks the engine whether buffering is in progress.
func (p *AudioPipeline) QueryBuffering() (bool, bool) {
	busy, ok := p.pipeline.QueryBuffering()
	if !ok {
		slog.Debug("pipeline: buffering query unsupported")
	}
	return busy, ok
}

// QuerySeekable asks whether the current stream supports seeking.
func (p *AudioPipeline) QuerySeekable() (bool, bool) {
	seekable, ok := p.pipeline.QuerySeekable()
	if !ok {
		slog.Debug("pipeline: seeking query failed")
	}
	return seekable, ok
}

// Seek issues a flushing key-unit seek.
func (p *AudioPipeline) Seek(offset time.Duration) bool {
	return p.pipeline.Seek(offset)
}

// Pipeline returns the pipeline root.
func (p *AudioPipeline) Pipeline() Pipeline { return p.pipeline }

// Source returns the transient source element, or nil.
func (p *AudioPipeline) Source() SourceElement { return p.source }

// Decoder returns the transient decoder element, or nil.
func (p *AudioPipeline) Decoder() DecoderElement { return p.decoder }

// Converter returns the persistent converter element.
func (p *AudioPipeline) Converter() Element { return p.converter }

// Volume returns the persistent volume element.
func (p *AudioPipeline) Volume() VolumeElement { return p.volume }

// Sink returns the persistent sink element.
func (p *AudioPipeline) Sink() Element { return p.sink }

// Engine returns the engine this facade builds elements from.
func (p *AudioPipeline) Engine() Engine { return p.engine }
