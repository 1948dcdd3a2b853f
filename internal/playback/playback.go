// Package playback synchronizes N timelines on one shared time axis and
// yields cross-track-aligned batches of newly available segments.
package playback

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"hlscap/internal/timeline"
)

// ErrFinished signals that the computed next boundary reached the span end.
// It is a control-flow transition, not a failure: no further batches will
// be produced and the driving loop should finalize all tracks.
var ErrFinished = errors.New("playback finished")

// Span is the time window a playback session may consume. End may be
// math.Inf(1) for open-ended live capture.
type Span struct {
	Start float64
	End   float64
}

// OpenSpan returns a span starting at start with no end bound.
func OpenSpan(start float64) Span {
	return Span{Start: start, End: math.Inf(1)}
}

// Batch pairs a track with its newly eligible segments, in timeline order.
type Batch[T any] struct {
	Track    *timeline.Timeline[T]
	Segments []timeline.Segment[T]
}

// Playback owns a set of sibling track timelines and a monotonic cursor:
// the point up to which every track has been jointly consumed. The cursor
// only advances as far as the least advanced track allows, so no track is
// ever consumed arbitrarily far ahead of a lagging sibling.
type Playback[T any] struct {
	tracks   []*timeline.Timeline[T]
	span     Span
	cursor   float64
	initial  float64
	finished bool
}

// New creates a Playback over the given timelines. The timelines are held
// by reference and must only be mutated between Seek calls, by a single
// writer each. Panics if tracks is empty or contains duplicate track IDs;
// that is a programming error, not a data-quality issue.
func New[T any](tracks []*timeline.Timeline[T], span Span) *Playback[T] {
	if len(tracks) == 0 {
		panic("playback: no tracks")
	}
	seen := make(map[string]struct{}, len(tracks))
	for _, tr := range tracks {
		if _, dup := seen[tr.TrackID()]; dup {
			panic(fmt.Sprintf("playback: duplicate track id %q", tr.TrackID()))
		}
		seen[tr.TrackID()] = struct{}{}
	}
	return &Playback[T]{
		tracks:  tracks,
		span:    span,
		cursor:  span.Start,
		initial: span.Start,
	}
}

// Tracks returns the owned timelines.
func (p *Playback[T]) Tracks() []*timeline.Timeline[T] {
	return p.tracks
}

// Track returns the timeline with the given ID. Panics if no such track
// exists: passing an unknown track ID is a programming error and must
// fail fast.
func (p *Playback[T]) Track(id string) *timeline.Timeline[T] {
	for _, tr := range p.tracks {
		if tr.TrackID() == id {
			return tr
		}
	}
	panic(fmt.Sprintf("playback: unknown track id %q", id))
}

// Cursor returns the current global sync point.
func (p *Playback[T]) Cursor() float64 {
	return p.cursor
}

// Finished reports whether the terminal state was reached.
func (p *Playback[T]) Finished() bool {
	return p.finished
}

// Seek computes the furthest point up to which every track has knowledge
// within the span, returns the per-track segments newly eligible since the
// previous call and advances the cursor. An empty result with a nil error
// is a valid steady state while waiting for new data; Seek is safe to call
// every poll round regardless of whether anything arrived. Returns
// ErrFinished once the next boundary reaches the span end.
func (p *Playback[T]) Seek() ([]Batch[T], error) {
	if p.finished {
		return nil, ErrFinished
	}

	next := p.nextCursor()
	if next >= p.span.End {
		p.finished = true
		return nil, ErrFinished
	}

	var batches []Batch[T]
	for _, tr := range p.tracks {
		segs := tr.Range(p.cursor, next)
		if len(segs) > 0 {
			batches = append(batches, Batch[T]{Track: tr, Segments: segs})
		}
	}

	p.cursor = next
	return batches, nil
}

// nextCursor returns the minimum over all tracks of how far each track's
// contiguous knowledge extends within the span, or the current cursor when
// some track has nothing relevant yet (no progress possible this round).
func (p *Playback[T]) nextCursor() float64 {
	maxima := make([]float64, 0, len(p.tracks))
	for _, tr := range p.tracks {
		tail := tr.Tail(p.cursor)
		if len(tail) == 0 {
			// A lagging track blocks all tracks. This is the pacing
			// guarantee and the system's only flow control.
			return p.cursor
		}

		window := lo.Filter(tail, func(seg timeline.Segment[T], _ int) bool {
			return seg.Start < p.span.End
		})
		if len(window) == 0 {
			// Everything this track knows lies beyond the window.
			maxima = append(maxima, p.span.End)
			continue
		}

		maxima = append(maxima, lo.Max(lo.Map(window, func(seg timeline.Segment[T], _ int) float64 {
			return seg.End
		})))
	}
	return lo.Min(maxima)
}

// TrackStart returns the earliest segment start of the given track at or
// after the initial cursor. Unknown while the track has no segments or
// still carries derived timing, so start-alignment decisions are never
// made on partial information.
func (p *Playback[T]) TrackStart(tr *timeline.Timeline[T]) (float64, bool) {
	if tr.Len() == 0 || !tr.AllRealTime() {
		return 0, false
	}
	for _, seg := range tr.Segments() {
		if seg.Start >= p.initial {
			return seg.Start, true
		}
	}
	return 0, false
}

// Start returns the earliest synchronized start across all tracks, or
// unknown if any track's start is still unknown.
func (p *Playback[T]) Start() (float64, bool) {
	starts := make([]float64, 0, len(p.tracks))
	for _, tr := range p.tracks {
		start, ok := p.TrackStart(tr)
		if !ok {
			return 0, false
		}
		starts = append(starts, start)
	}
	return lo.Min(starts), true
}

// End returns the furthest point covered by every track, or unknown if
// any track is still empty.
func (p *Playback[T]) End() (float64, bool) {
	ends := make([]float64, 0, len(p.tracks))
	for _, tr := range p.tracks {
		end, ok := tr.End()
		if !ok {
			return 0, false
		}
		ends = append(ends, end)
	}
	return lo.Min(ends), true
}
