package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hlscap/internal/fetch"
	"hlscap/internal/logger"
	"hlscap/internal/media"
	"hlscap/internal/timeline"
)

// TransformFunc rewrites fragment bytes before they are appended to the
// track file. state is a per-track scratchpad owned by the session and
// handed to every call in order, for transforms that need memory across
// fragments (e.g. cue deduplication windows).
type TransformFunc func(state map[string]any, seg timeline.Segment[media.Fragment], data []byte) ([]byte, error)

// writeBatch is one synchronized batch released by the playback,
// dispatched to a track's writer.
type writeBatch struct {
	initURL  string
	segments []timeline.Segment[media.Fragment]
}

// trackWriter is the single consumer of one track's released segments:
// it downloads each fragment and appends the bytes to the track file in
// timeline order.
type trackWriter struct {
	track      *timeline.Timeline[media.Fragment]
	downloader *fetch.Downloader
	log        logger.Logger
	transform  TransformFunc

	queue chan writeBatch
	done  chan struct{}
	err   error

	state       map[string]any
	initWritten bool

	// Counters, safe to read after wait returns.
	segments int
	fillers  int
	bytes    int64
}

func newTrackWriter(track *timeline.Timeline[media.Fragment], dl *fetch.Downloader, log logger.Logger, transform TransformFunc) *trackWriter {
	return &trackWriter{
		track:      track,
		downloader: dl,
		log:        log,
		transform:  transform,
		queue:      make(chan writeBatch, 16),
		done:       make(chan struct{}),
		state:      make(map[string]any),
	}
}

func (w *trackWriter) start(ctx context.Context) {
	go w.run(ctx)
}

func (w *trackWriter) run(ctx context.Context) {
	defer close(w.done)

	if dir := filepath.Dir(w.track.Filepath()); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			w.err = fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var file *os.File
	if w.err == nil {
		var err error
		file, err = os.Create(w.track.Filepath())
		if err != nil {
			w.err = fmt.Errorf("failed to create output file: %w", err)
		} else {
			defer file.Close()
		}
	}

	// Keep draining after a failure so the dispatcher never blocks.
	for batch := range w.queue {
		if w.err != nil {
			continue
		}
		if err := w.writeBatch(ctx, file, batch); err != nil {
			w.err = err
		}
	}
}

func (w *trackWriter) writeBatch(ctx context.Context, file *os.File, batch writeBatch) error {
	if !w.initWritten && batch.initURL != "" {
		data, err := w.downloader.Download(ctx, media.Fragment{URL: batch.initURL})
		if err != nil {
			return fmt.Errorf("init segment: %w", err)
		}
		if _, err := file.Write(data); err != nil {
			return err
		}
		w.bytes += int64(len(data))
		w.initWritten = true
	}

	for _, seg := range batch.segments {
		if seg.Filling {
			// Synthetic filler bridging a gap: there is nothing to
			// fetch. Consumers learn about the hole from the summary.
			w.fillers++
			w.log.Debugf("Track %s: skipping filler segment [%.3f, %.3f)", w.track.TrackID(), seg.Start, seg.End)
			continue
		}

		data, err := w.downloader.Download(ctx, seg.Data)
		if err != nil {
			return fmt.Errorf("fragment %d: %w", seg.Sequence, err)
		}
		if w.transform != nil {
			data, err = w.transform(w.state, seg, data)
			if err != nil {
				return fmt.Errorf("transform of fragment %d: %w", seg.Sequence, err)
			}
		}
		if _, err := file.Write(data); err != nil {
			return err
		}
		w.segments++
		w.bytes += int64(len(data))
	}
	return nil
}

func (w *trackWriter) enqueue(batch writeBatch) {
	w.queue <- batch
}

// close signals that no more batches will arrive.
func (w *trackWriter) close() {
	close(w.queue)
}

// wait blocks until the writer has drained its queue and returns its
// terminal error, if any.
func (w *trackWriter) wait() error {
	<-w.done
	return w.err
}
