package capture

import (
	"context"
	"fmt"
	"time"

	"hlscap/internal/config"
	"hlscap/internal/dash"
	"hlscap/internal/fetch"
	"hlscap/internal/hls"
	"hlscap/internal/media"
	"hlscap/internal/timeline"
)

const defaultPollInterval = 2 * time.Second

// Poll is the outcome of one manifest poll for one track.
type Poll struct {
	// Fragments are the descriptors currently advertised by the
	// manifest, in manifest order. Overlap with previous polls is
	// expected; deduplication happens downstream.
	Fragments []timeline.Fragment[media.Fragment]
	// InitURL is the track's initialization segment URL, if any.
	InitURL string
	// PollInterval is the origin's suggested delay before re-polling.
	PollInterval time.Duration
	// Ended reports that the source signaled end-of-stream.
	Ended bool
}

// Source produces fragment descriptors for one track, one manifest poll
// at a time.
type Source interface {
	Poll(ctx context.Context) (*Poll, error)
}

// NewSource builds the manifest source for a configured track.
func NewSource(client *fetch.Client, track config.Track) (Source, error) {
	switch track.Kind {
	case config.KindHLS:
		return &hlsSource{client: client, manifestURL: track.Manifest}, nil
	case config.KindDASH:
		return &dashSource{client: client, manifestURL: track.Manifest, repID: track.Representation}, nil
	default:
		return nil, fmt.Errorf("unsupported track kind %q", track.Kind)
	}
}

type hlsSource struct {
	client      *fetch.Client
	manifestURL string
}

func (s *hlsSource) Poll(ctx context.Context) (*Poll, error) {
	body, finalURL, err := s.client.Fetch(ctx, s.manifestURL)
	if err != nil {
		return nil, err
	}

	pl, err := hls.ParseMediaPlaylist(string(body), finalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse media playlist from %s: %w", finalURL, err)
	}

	return &Poll{
		Fragments:    pl.Fragments,
		InitURL:      pl.MapURI,
		PollInterval: pl.PollInterval(),
		Ended:        pl.EndList,
	}, nil
}

type dashSource struct {
	client      *fetch.Client
	manifestURL string
	repID       string
}

func (s *dashSource) Poll(ctx context.Context) (*Poll, error) {
	body, finalURL, err := s.client.Fetch(ctx, s.manifestURL)
	if err != nil {
		return nil, err
	}

	mpd, err := dash.Parse(body)
	if err != nil {
		return nil, err
	}

	period, as, rep, err := mpd.FindRepresentation(s.repID)
	if err != nil {
		return nil, err
	}

	fragments, err := dash.Fragments(finalURL, period, as, rep)
	if err != nil {
		return nil, err
	}

	initURL, err := dash.InitURL(finalURL, period, as, rep)
	if err != nil {
		return nil, err
	}

	interval := defaultPollInterval
	if mup, err := mpd.GetMinimumUpdatePeriod(); err == nil && mup > 0 {
		interval = mup
		// Don't hammer the origin even if the MPD suggests it.
		if interval < 2*time.Second {
			interval = 2 * time.Second
		}
	}

	return &Poll{
		Fragments:    fragments,
		InitURL:      initURL,
		PollInterval: interval,
		Ended:        !mpd.IsDynamic(),
	}, nil
}
