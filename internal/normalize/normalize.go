// Package normalize provides a linear map between two closed numeric
// intervals, used to translate the public volume scale to and from the
// engine's volume scale.
package normalize

import "errors"

// Construction errors.
var (
	ErrEmptySourceRange = errors.New("normalize: source range is empty")
	ErrInvertedRange    = errors.New("normalize: range bounds are inverted")
)

// Normalizer maps [SourceMin, SourceMax] onto [TargetMin, TargetMax].
// It does not clamp; callers that need clamping clamp the result.
type Normalizer struct {
	sourceMin float64
	sourceMax float64
	targetMin float64
	targetMax float64
}

// New creates a Normalizer. Construction fails when the source range is a
// single point or either pair of bounds is inverted.
func New(sourceMin, sourceMax, targetMin, targetMax float64) (*Normalizer, error) {
	if sourceMin == sourceMax {
		return nil, ErrEmptySourceRange
	}
	if sourceMin > sourceMax || targetMin > targetMax {
		return nil, ErrInvertedRange
	}
	return &Normalizer{
		sourceMin: sourceMin,
		sourceMax: sourceMax,
		targetMin: targetMin,
		targetMax: targetMax,
	}, nil
}

// Normalize maps x from the source interval to the target interval.
func (n *Normalizer) Normalize(x float64) float64 {
	return n.targetMin + (x-n.sourceMin)*(n.targetMax-n.targetMin)/(n.sourceMax-n.sourceMin)
}
