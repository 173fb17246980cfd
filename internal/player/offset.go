package player

import "time"

// OffsetManager holds the pending seek target and the cached seekable flag
// for the current source. Dispatcher-goroutine only.
type OffsetManager struct {
	seekPoint time.Duration
	seekSet   bool
	seekable  bool
}

// SetSeekPoint records a pending seek target.
func (o *OffsetManager) SetSeekPoint(d time.Duration) {
	o.seekPoint = d
	o.seekSet = true
}

// SeekPoint returns the pending target; only meaningful when IsSeekPointSet.
func (o *OffsetManager) SeekPoint() time.Duration { return o.seekPoint }

// IsSeekPointSet reports whether a seek target is pending.
func (o *OffsetManager) IsSeekPointSet() bool { return o.seekSet }

// SetSeekable caches whether the current stream supports seeking.
func (o *OffsetManager) SetSeekable(seekable bool) { o.seekable = seekable }

// IsSeekable reports the cached seekable flag.
func (o *OffsetManager) IsSeekable() bool { return o.seekable }

// Clear resets both the seek point and the seekable flag.
func (o *OffsetManager) Clear() {
	*o = OffsetManager{}
}
