// Package capture drives a multi-track recording session: it polls each
// track's manifest, feeds new fragment descriptors into the track's
// timeline, and lets the playback decide which segments are safe to
// download across all tracks without outrunning a lagging sibling.
package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"hlscap/internal/config"
	"hlscap/internal/fetch"
	"hlscap/internal/ledger"
	"hlscap/internal/logger"
	"hlscap/internal/media"
	"hlscap/internal/playback"
	"hlscap/internal/timeline"
)

// Options configures a capture session.
type Options struct {
	// Span is the time window to consume. The zero value means an
	// open-ended capture from the start of the recording.
	Span playback.Span
	// UserAgent is sent on every manifest and fragment request.
	UserAgent string
	// PollInterval overrides the origin's suggested manifest poll pacing.
	PollInterval time.Duration
	// TestMode truncates every track's fragment production to the first
	// fragment and stops after one round.
	TestMode bool
	// Transforms maps track IDs to optional fragment byte rewriters.
	Transforms map[string]TransformFunc
}

// Session owns one multi-track capture: the playback, one manifest source
// and one file writer per track, and the per-track ledgers that keep
// repeated polls from reprocessing already-seen fragments.
type Session struct {
	id     string
	log    logger.Logger
	client *fetch.Client

	pb      *playback.Playback[media.Fragment]
	order   []string
	sources map[string]Source
	ledgers map[string]*ledger.List[timeline.Fragment[media.Fragment]]
	writers map[string]*trackWriter
	// initURLs carries the last-seen init segment URL per track, written
	// and read only by the Run goroutine.
	initURLs map[string]string

	opts      Options
	summaries []TrackSummary
}

// New assembles a session for the given tracks. Timelines, sources,
// ledgers and writers are created per track; the playback binds them to
// one shared time axis.
func New(log logger.Logger, tracks []config.Track, opts Options) (*Session, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks to capture")
	}
	if opts.Span == (playback.Span{}) {
		opts.Span = playback.OpenSpan(0)
	}

	client := fetch.NewClient(log, opts.UserAgent)
	downloader := fetch.NewDownloader(client.HTTPClient(), log, opts.UserAgent)

	s := &Session{
		id:       uuid.NewString(),
		log:      log,
		client:   client,
		sources:  make(map[string]Source, len(tracks)),
		ledgers:  make(map[string]*ledger.List[timeline.Fragment[media.Fragment]], len(tracks)),
		writers:  make(map[string]*trackWriter, len(tracks)),
		initURLs: make(map[string]string, len(tracks)),
		opts:     opts,
	}

	timelines := make([]*timeline.Timeline[media.Fragment], 0, len(tracks))
	for _, track := range tracks {
		policy, err := policyFromName(track.Policy)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", track.Id, err)
		}

		source, err := NewSource(client, track)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", track.Id, err)
		}

		tl := timeline.New[media.Fragment](track.Id, track.Output, policy, log)
		timelines = append(timelines, tl)
		s.order = append(s.order, track.Id)
		s.sources[track.Id] = source
		s.ledgers[track.Id] = ledger.New[timeline.Fragment[media.Fragment]]()
		s.writers[track.Id] = newTrackWriter(tl, downloader, log, opts.Transforms[track.Id])
	}

	s.pb = playback.New(timelines, opts.Span)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

func policyFromName(name string) (timeline.Policy, error) {
	switch name {
	case config.PolicyGapFill:
		return timeline.PolicyGapFill, nil
	case config.PolicySequence:
		return timeline.PolicySequence, nil
	case config.PolicyTimeClamp:
		return timeline.PolicyTimeClamp, nil
	default:
		return 0, fmt.Errorf("unknown insertion policy %q", name)
	}
}

type pollResult struct {
	trackID string
	poll    *Poll
	err     error
}

// pollAll fetches and parses every track's manifest concurrently and
// fans the results back in, in track order. Timeline insertion stays in
// the caller: one writer per timeline.
func (s *Session) pollAll(ctx context.Context) []pollResult {
	results := make([]pollResult, len(s.order))
	var wg sync.WaitGroup
	for i, id := range s.order {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			poll, err := s.sources[id].Poll(ctx)
			results[i] = pollResult{trackID: id, poll: poll, err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}

// Run executes the capture loop until the playback finishes, every track
// signals end-of-stream, or ctx is cancelled. Cancellation between rounds
// is treated as a user abort: the capture finalizes what it has and
// returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.log.Infof("Session %s: capturing %d track(s)", s.id, len(s.order))

	for _, id := range s.order {
		s.writers[id].start(ctx)
	}

	runErr := s.runLoop(ctx)

	for _, id := range s.order {
		s.writers[id].close()
	}
	for _, id := range s.order {
		if err := s.writers[id].wait(); err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
			runErr = fmt.Errorf("track %s: %w", id, err)
		}
	}

	s.buildSummaries()

	if errors.Is(runErr, context.Canceled) {
		s.log.Infof("Session %s: capture interrupted, finalizing", s.id)
		return nil
	}
	return runErr
}

func (s *Session) runLoop(ctx context.Context) error {
	for {
		roundStart := time.Now()

		allEnded := true
		interval := s.opts.PollInterval
		for _, result := range s.pollAll(ctx) {
			if result.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warnf("Manifest poll for track %s failed: %v", result.trackID, result.err)
				allEnded = false
				continue
			}

			fragments := result.poll.Fragments
			if s.opts.TestMode && len(fragments) > 1 {
				fragments = fragments[:1]
			}

			// The ledger makes repeated polls incremental: only
			// fragments never seen before reach the timeline.
			led := s.ledgers[result.trackID]
			led.InsertMany(lo.Map(fragments, func(f timeline.Fragment[media.Fragment], _ int) ledger.Entry[timeline.Fragment[media.Fragment]] {
				return ledger.Entry[timeline.Fragment[media.Fragment]]{
					Key:   strconv.FormatInt(f.Sequence, 10),
					Value: f,
				}
			}))
			if fresh := led.Seek(); fresh != nil {
				s.pb.Track(result.trackID).InsertMany(lo.Map(fresh, func(e ledger.Entry[timeline.Fragment[media.Fragment]], _ int) timeline.Fragment[media.Fragment] {
					return e.Value
				}))
			}

			if result.poll.InitURL != "" {
				s.initURLs[result.trackID] = result.poll.InitURL
			}
			if s.opts.PollInterval == 0 && result.poll.PollInterval > 0 {
				if interval == 0 || result.poll.PollInterval < interval {
					interval = result.poll.PollInterval
				}
			}
			if !result.poll.Ended {
				allEnded = false
			}
		}

		batches, err := s.pb.Seek()
		if errors.Is(err, playback.ErrFinished) {
			s.log.Infof("Session %s: span exhausted at cursor %.3f", s.id, s.pb.Cursor())
			return nil
		}
		for _, batch := range batches {
			id := batch.Track.TrackID()
			s.log.Debugf("Track %s: %d segment(s) released up to %.3f", id, len(batch.Segments), s.pb.Cursor())
			s.writers[id].enqueue(writeBatch{
				initURL:  s.initURLs[id],
				segments: batch.Segments,
			})
		}

		if s.opts.TestMode {
			return nil
		}
		if allEnded {
			s.log.Infof("Session %s: all tracks signaled end of stream", s.id)
			return nil
		}

		if interval <= 0 {
			interval = defaultPollInterval
		}
		sleep := interval - time.Since(roundStart)
		if sleep > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// buildSummaries snapshots per-track results once all writers are done.
func (s *Session) buildSummaries() {
	start, haveStart := s.pb.Start()

	s.summaries = make([]TrackSummary, 0, len(s.order))
	for _, id := range s.order {
		tl := s.pb.Track(id)
		w := s.writers[id]

		sum := TrackSummary{
			ID:       id,
			Output:   tl.Filepath(),
			Segments: w.segments,
			Fillers:  w.fillers,
			Bytes:    w.bytes,
		}
		sum.Start, sum.HasSpan = tl.Start()
		if end, ok := tl.End(); ok {
			sum.End = end
		}

		// Cross-track start offset, used to trim tracks that began
		// earlier than their siblings.
		if trackStart, ok := s.pb.TrackStart(tl); ok && haveStart {
			if offset := trackStart - start; math.Abs(offset) > 0.1 {
				sum.Offset = offset
				sum.HasOffset = true
			}
		}

		s.summaries = append(s.summaries, sum)
	}
}

// Summary returns the per-track results. Valid after Run has returned.
func (s *Session) Summary() []TrackSummary {
	return s.summaries
}
