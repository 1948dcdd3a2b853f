package timeline

// Fragment is a raw fragment descriptor as produced by a manifest poll.
// Timing may be unresolved: live manifests can carry placeholder entries
// whose absolute times are not known yet, so Start and End are optional.
type Fragment[T any] struct {
	// Start and End are the half-open interval [Start, End) in seconds.
	// Either may be nil when the manifest did not report absolute timing.
	Start *float64
	End   *float64
	// Duration is the fragment duration in seconds, as reported by the
	// manifest. Used to derive timing when Start/End are absent.
	Duration float64
	// Sequence is the monotonically increasing per-fragment counter
	// (HLS media sequence, DASH segment number).
	Sequence int64
	// Data is the opaque application payload, typically a URL descriptor.
	Data T
}

// Segment is one accepted entry in a track's ledger.
type Segment[T any] struct {
	Start    float64
	End      float64
	Sequence int64
	Data     T
	// Filling marks a segment synthesized to bridge a detected gap
	// rather than supplied by the caller.
	Filling bool
	// AutoTime marks a segment whose timing was derived rather than
	// reported, anchored at an arbitrary zero point.
	AutoTime bool
}

// Duration returns the segment's length in seconds.
func (s Segment[T]) Duration() float64 {
	return s.End - s.Start
}
