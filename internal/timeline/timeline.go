package timeline

import (
	"math"

	"hlscap/internal/logger"
)

// Policy selects how a Timeline resolves insertion conflicts
// (overlap, gap, duplicate, reordering).
type Policy int

const (
	// PolicyGapFill is for fixed timelines with known absolute timing
	// (e.g. finite-duration media). Gaps between accepted segments are
	// bridged with synthetic filler segments so that consumers see a
	// gapless stream description.
	PolicyGapFill Policy = iota
	// PolicySequence is for live timelines addressed by a monotonically
	// increasing sequence number. Per-fragment wall-clock claims are
	// unreliable in live feeds, so timing for the next expected fragment
	// is derived from the previous segment's end instead.
	PolicySequence
	// PolicyTimeClamp is for live timelines addressed by absolute time.
	// A start touching the previous end within tolerance is clamped to
	// it; overlaps beyond tolerance are rejected.
	PolicyTimeClamp
)

const (
	gapFillTolerance   = 0.01
	timeClampTolerance = 0.1
)

// Timeline is one track's ordered, gap-aware inventory of time-stamped
// segments. It is append-only: accepted segments are never mutated or
// removed. All methods are synchronous and must be called from a single
// goroutine; the caller owns serialization.
type Timeline[T any] struct {
	trackID  string
	filepath string
	policy   Policy
	log      logger.Logger

	segments []Segment[T]
}

// New creates an empty Timeline for one track. policy is chosen per track
// kind at construction time and cannot change afterwards.
func New[T any](trackID, filepath string, policy Policy, log logger.Logger) *Timeline[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &Timeline[T]{
		trackID:  trackID,
		filepath: filepath,
		policy:   policy,
		log:      log,
	}
}

// TrackID returns the track identity, unique per playback.
func (t *Timeline[T]) TrackID() string {
	return t.trackID
}

// Filepath returns the destination path for this track. Opaque to the engine.
func (t *Timeline[T]) Filepath() string {
	return t.filepath
}

// Len returns the number of stored segments, fillers included.
func (t *Timeline[T]) Len() int {
	return len(t.segments)
}

// Segments returns the stored segments in timeline order.
// The returned slice is shared; callers must not modify it.
func (t *Timeline[T]) Segments() []Segment[T] {
	return t.segments
}

// Start returns the start of the first stored segment.
func (t *Timeline[T]) Start() (float64, bool) {
	if len(t.segments) == 0 {
		return 0, false
	}
	return t.segments[0].Start, true
}

// End returns the end of the last stored segment.
func (t *Timeline[T]) End() (float64, bool) {
	if len(t.segments) == 0 {
		return 0, false
	}
	return t.segments[len(t.segments)-1].End, true
}

// Tail returns the segments that are still relevant at the given cursor,
// i.e. those whose end lies at or after it.
func (t *Timeline[T]) Tail(cursor float64) []Segment[T] {
	for i, seg := range t.segments {
		if seg.End >= cursor {
			return t.segments[i:]
		}
	}
	return nil
}

// Range returns the segments whose start lies in [from, to), in order.
func (t *Timeline[T]) Range(from, to float64) []Segment[T] {
	var out []Segment[T]
	for _, seg := range t.segments {
		if from <= seg.Start && seg.Start < to {
			out = append(out, seg)
		}
	}
	return out
}

// AllRealTime reports whether every stored segment carries reported rather
// than derived timing. Start-alignment decisions must not be made while
// this is false.
func (t *Timeline[T]) AllRealTime() bool {
	for _, seg := range t.segments {
		if seg.AutoTime {
			return false
		}
	}
	return true
}

// FillerCount returns the number of synthesized filler segments.
func (t *Timeline[T]) FillerCount() int {
	n := 0
	for _, seg := range t.segments {
		if seg.Filling {
			n++
		}
	}
	return n
}

// Insert applies one fragment descriptor to the ledger under the
// timeline's policy. Anomalies are resolved locally: duplicates and
// out-of-order descriptors are dropped, discontinuities are logged,
// malformed descriptors are treated as not yet available.
func (t *Timeline[T]) Insert(frag Fragment[T]) {
	switch t.policy {
	case PolicySequence:
		t.insertSequence(frag)
	case PolicyTimeClamp:
		t.insertTimeClamp(frag)
	default:
		t.insertGapFill(frag)
	}
}

// InsertMany applies Insert in the given order. Order matters: each
// insertion is evaluated against the then-current last segment.
func (t *Timeline[T]) InsertMany(frags []Fragment[T]) {
	for _, frag := range frags {
		t.Insert(frag)
	}
}

func (t *Timeline[T]) insertGapFill(frag Fragment[T]) {
	if frag.Start == nil || frag.End == nil {
		t.log.Debugf("track %s: dropping fragment %d with unresolved timing", t.trackID, frag.Sequence)
		return
	}

	seg := Segment[T]{
		Start:    *frag.Start,
		End:      *frag.End,
		Sequence: frag.Sequence,
		Data:     frag.Data,
	}

	if len(t.segments) == 0 {
		t.segments = append(t.segments, seg)
		return
	}

	last := t.segments[len(t.segments)-1]
	switch {
	case last.End-seg.Start > gapFillTolerance:
		// Starts before already-claimed territory: an out-of-order or
		// duplicate insertion. Must not corrupt the ledger.
		t.log.Debugf("track %s: rejecting fragment starting at %.3f before claimed end %.3f",
			t.trackID, seg.Start, last.End)
	case math.Abs(last.End-seg.Start) <= gapFillTolerance:
		t.segments = append(t.segments, seg)
	default:
		t.log.Warnf("track %s: gap of %.3fs before fragment at %.3f, inserting filler",
			t.trackID, seg.Start-last.End, seg.Start)
		t.segments = append(t.segments,
			Segment[T]{Start: last.End, End: seg.Start, Filling: true},
			seg)
	}
}

func (t *Timeline[T]) insertSequence(frag Fragment[T]) {
	if len(t.segments) == 0 {
		t.segments = append(t.segments, t.sequenceSegment(frag, 0, true))
		return
	}

	last := t.segments[len(t.segments)-1]
	seqGap := last.Sequence - frag.Sequence
	if seqGap >= 0 {
		// Already known or older than what we have.
		return
	}

	if seqGap < -1 {
		t.log.Warnf("track %s: non-continuous media sequence %d -> %d",
			t.trackID, last.Sequence, frag.Sequence)
		t.segments = append(t.segments, t.sequenceSegment(frag, last.End, last.AutoTime))
		return
	}

	// Exactly the next expected fragment. Derived timing is more reliable
	// than per-fragment wall-clock claims in live feeds, so pin the start
	// to the previous end regardless of what the fragment reports.
	t.segments = append(t.segments, Segment[T]{
		Start:    last.End,
		End:      last.End + frag.Duration,
		Sequence: frag.Sequence,
		Data:     frag.Data,
		AutoTime: last.AutoTime,
	})
}

// sequenceSegment builds a segment for PolicySequence, preferring reported
// timing and falling back to timing derived from the given anchor.
func (t *Timeline[T]) sequenceSegment(frag Fragment[T], anchor float64, anchorAuto bool) Segment[T] {
	seg := Segment[T]{
		Sequence: frag.Sequence,
		Data:     frag.Data,
	}
	if frag.Start != nil && frag.End != nil {
		seg.Start = *frag.Start
		seg.End = *frag.End
		return seg
	}
	seg.Start = anchor
	seg.End = anchor + frag.Duration
	seg.AutoTime = anchorAuto
	return seg
}

func (t *Timeline[T]) insertTimeClamp(frag Fragment[T]) {
	if frag.Start == nil || frag.End == nil {
		t.log.Debugf("track %s: dropping fragment %d with unresolved timing", t.trackID, frag.Sequence)
		return
	}

	seg := Segment[T]{
		Start:    *frag.Start,
		End:      *frag.End,
		Sequence: frag.Sequence,
		Data:     frag.Data,
	}

	if len(t.segments) == 0 {
		t.segments = append(t.segments, seg)
		return
	}

	last := t.segments[len(t.segments)-1]
	switch {
	case last.End-timeClampTolerance > seg.Start:
		t.log.Debugf("track %s: rejecting fragment starting at %.3f before claimed end %.3f",
			t.trackID, seg.Start, last.End)
	case math.Abs(last.End-seg.Start) <= timeClampTolerance:
		seg.Start = last.End
		t.segments = append(t.segments, seg)
	default:
		t.log.Warnf("track %s: non-continuous fragment at %.3f, formats may drift out of sync",
			t.trackID, seg.Start)
		t.segments = append(t.segments, seg)
	}
}
