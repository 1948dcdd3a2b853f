package playback_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlscap/internal/logger"
	"hlscap/internal/playback"
	"hlscap/internal/timeline"
)

func frag(start, end float64, seq int64) timeline.Fragment[string] {
	return timeline.Fragment[string]{
		Start:    lo.ToPtr(start),
		End:      lo.ToPtr(end),
		Duration: end - start,
		Sequence: seq,
		Data:     "frag",
	}
}

func newTrack(id string, frags ...timeline.Fragment[string]) *timeline.Timeline[string] {
	tl := timeline.New[string](id, id+".mp4", timeline.PolicyGapFill, logger.Nop())
	tl.InsertMany(frags)
	return tl
}

func TestSeekPacesAllTracks(t *testing.T) {
	audio := newTrack("audio", frag(0, 5, 0), frag(10, 15, 1))
	video := newTrack("video", frag(0, 4, 0), frag(4, 8, 1))
	pb := playback.New([]*timeline.Timeline[string]{audio, video}, playback.OpenSpan(0))

	// Audio has coverage to 15 (with a gap), video contiguously to 8:
	// the sync point is bounded by the least advanced track.
	batches, err := pb.Seek()
	require.NoError(t, err)
	assert.Equal(t, 8.0, pb.Cursor())
	require.Len(t, batches, 2)

	assert.Equal(t, "audio", batches[0].Track.TrackID())
	require.Len(t, batches[0].Segments, 2) // [0,5) and the filler [5,10)
	assert.True(t, batches[0].Segments[1].Filling)

	assert.Equal(t, "video", batches[1].Track.TrackID())
	assert.Len(t, batches[1].Segments, 2)
	for _, b := range batches {
		for _, seg := range b.Segments {
			assert.Less(t, seg.Start, 8.0)
		}
	}

	// No new data: an empty batch, cursor unchanged.
	batches, err = pb.Seek()
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.Equal(t, 8.0, pb.Cursor())

	// New video coverage releases both tracks up to 12.
	video.Insert(frag(8, 12, 2))
	batches, err = pb.Seek()
	require.NoError(t, err)
	assert.Equal(t, 12.0, pb.Cursor())
	require.Len(t, batches, 2)
	require.Len(t, batches[0].Segments, 1)
	assert.Equal(t, 10.0, batches[0].Segments[0].Start)
	require.Len(t, batches[1].Segments, 1)
	assert.Equal(t, 8.0, batches[1].Segments[0].Start)
}

func TestSeekBlockedByEmptyTrack(t *testing.T) {
	audio := newTrack("audio", frag(0, 5, 0))
	video := newTrack("video")
	pb := playback.New([]*timeline.Timeline[string]{audio, video}, playback.OpenSpan(0))

	batches, err := pb.Seek()
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.Equal(t, 0.0, pb.Cursor())
}

func TestSeekFinishesAtSpanEnd(t *testing.T) {
	audio := newTrack("audio", frag(0, 5, 0), frag(5, 10, 1))
	video := newTrack("video", frag(0, 8, 0))
	pb := playback.New([]*timeline.Timeline[string]{audio, video}, playback.Span{Start: 0, End: 8})

	_, err := pb.Seek()
	require.ErrorIs(t, err, playback.ErrFinished)
	assert.True(t, pb.Finished())

	// Terminal: stays finished.
	_, err = pb.Seek()
	assert.ErrorIs(t, err, playback.ErrFinished)
}

func TestSeekReleasesSegmentsStraddlingCursor(t *testing.T) {
	audio := newTrack("audio", frag(0, 5, 0))
	video := newTrack("video", frag(0, 4, 0), frag(4, 8, 1))
	pb := playback.New([]*timeline.Timeline[string]{audio, video}, playback.Span{Start: 0, End: 20})

	batches, err := pb.Seek()
	require.NoError(t, err)
	assert.Equal(t, 5.0, pb.Cursor())
	require.Len(t, batches, 2)
	// Video's [4,8) starts before the new cursor and is released whole.
	assert.Len(t, batches[1].Segments, 2)
}

func TestStart(t *testing.T) {
	t.Run("unknown while any track is empty", func(t *testing.T) {
		audio := newTrack("audio", frag(0, 5, 0))
		video := newTrack("video")
		pb := playback.New([]*timeline.Timeline[string]{audio, video}, playback.OpenSpan(0))

		_, ok := pb.Start()
		assert.False(t, ok)
	})

	t.Run("unknown while timing is derived", func(t *testing.T) {
		live := timeline.New[string]("live", "live.ts", timeline.PolicySequence, logger.Nop())
		live.Insert(timeline.Fragment[string]{Duration: 5, Sequence: 0})
		pb := playback.New([]*timeline.Timeline[string]{live}, playback.OpenSpan(0))

		_, ok := pb.Start()
		assert.False(t, ok)
	})

	t.Run("earliest synchronized start", func(t *testing.T) {
		audio := newTrack("audio", frag(2, 5, 0))
		video := newTrack("video", frag(3, 5, 0))
		pb := playback.New([]*timeline.Timeline[string]{audio, video}, playback.OpenSpan(0))

		start, ok := pb.Start()
		require.True(t, ok)
		assert.Equal(t, 2.0, start)

		videoStart, ok := pb.TrackStart(video)
		require.True(t, ok)
		assert.Equal(t, 3.0, videoStart)
	})
}

func TestEnd(t *testing.T) {
	audio := newTrack("audio", frag(0, 10, 0))
	video := newTrack("video", frag(0, 8, 0))
	pb := playback.New([]*timeline.Timeline[string]{audio, video}, playback.OpenSpan(0))

	end, ok := pb.End()
	require.True(t, ok)
	assert.Equal(t, 8.0, end)
}

func TestTrackLookup(t *testing.T) {
	audio := newTrack("audio", frag(0, 5, 0))
	pb := playback.New([]*timeline.Timeline[string]{audio}, playback.OpenSpan(0))

	assert.Equal(t, audio, pb.Track("audio"))
	assert.Panics(t, func() { pb.Track("nope") })
}

func TestNewRejectsBadTrackSets(t *testing.T) {
	assert.Panics(t, func() {
		playback.New[string](nil, playback.OpenSpan(0))
	})
	assert.Panics(t, func() {
		playback.New([]*timeline.Timeline[string]{
			newTrack("a"), newTrack("a"),
		}, playback.OpenSpan(0))
	})
}
