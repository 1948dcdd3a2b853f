// Package hls parses HLS media playlists into fragment descriptors for
// the synchronization engine. Only the tags relevant to segment timing
// and addressing are interpreted; everything else is skipped.
package hls

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hlscap/internal/media"
	"hlscap/internal/timeline"
)

// Stats summarizes what a manifest poll learned beyond the fragment list:
// whether the source signaled end-of-stream and how fast to poll again.
type Stats struct {
	TargetDuration float64
	EndList        bool
	FragmentCount  int
}

// Playlist is one parsed media playlist.
type Playlist struct {
	TargetDuration float64
	MediaSequence  int64
	EndList        bool
	// MapURI is the resolved initialization segment URL, empty if the
	// playlist carries none.
	MapURI    string
	Fragments []timeline.Fragment[media.Fragment]
}

// Stats returns the poll summary for this playlist.
func (p *Playlist) Stats() Stats {
	return Stats{
		TargetDuration: p.TargetDuration,
		EndList:        p.EndList,
		FragmentCount:  len(p.Fragments),
	}
}

// PollInterval suggests how long to wait before re-fetching the manifest.
// Per RFC 8216 the client should wait at least the target duration.
func (p *Playlist) PollInterval() time.Duration {
	if p.TargetDuration <= 0 {
		return 2 * time.Second
	}
	return time.Duration(p.TargetDuration * float64(time.Second))
}

var attrRe = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^",]+)`)

// parseAttributes splits an attribute list like URI="x",BANDWIDTH=1 into
// a map, stripping quotes.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = strings.Trim(m[2], `"`)
	}
	return attrs
}

// ParseMediaPlaylist parses an m3u8 media playlist body. Fragment URLs are
// resolved against baseURL. Fragments carry absolute timing only when the
// playlist reports EXT-X-PROGRAM-DATE-TIME; otherwise timing is left
// unresolved for the timeline to derive.
func ParseMediaPlaylist(body, baseURL string) (*Playlist, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid playlist base URL %q: %w", baseURL, err)
	}

	lines := strings.Split(body, "\n")
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "#EXTM3U") {
		return nil, fmt.Errorf("not an m3u8 playlist")
	}

	pl := &Playlist{}
	var (
		duration  float64
		haveInf   bool
		curTime   *float64
		rangeEnd  int64
		nextRange *media.ByteRange
		fragIndex int64
	)

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "#") {
			if !haveInf {
				// A URI without a preceding EXTINF is not a media
				// segment line we understand; skip it.
				continue
			}
			u, err := base.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("invalid fragment URI %q: %w", line, err)
			}

			frag := timeline.Fragment[media.Fragment]{
				Duration: duration,
				Sequence: pl.MediaSequence + fragIndex,
				Data: media.Fragment{
					URL:       u.String(),
					ByteRange: nextRange,
				},
			}
			if curTime != nil {
				start := *curTime
				end := start + duration
				frag.Start = &start
				frag.End = &end
				curTime = &end
			}
			pl.Fragments = append(pl.Fragments, frag)

			fragIndex++
			haveInf = false
			duration = 0
			nextRange = nil
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			spec := strings.TrimPrefix(line, "#EXTINF:")
			if i := strings.IndexByte(spec, ','); i >= 0 {
				spec = spec[:i]
			}
			duration, err = strconv.ParseFloat(strings.TrimSpace(spec), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid EXTINF duration: %w", err)
			}
			haveInf = true

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			v := strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")
			pl.TargetDuration, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid EXT-X-TARGETDURATION: %w", err)
			}

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			v := strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:")
			pl.MediaSequence, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid EXT-X-MEDIA-SEQUENCE: %w", err)
			}

		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
			v := strings.TrimPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:")
			ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
			if err != nil {
				// Best effort: a bad date leaves timing unresolved.
				curTime = nil
				continue
			}
			t := float64(ts.UnixNano()) / float64(time.Second)
			curTime = &t

		case strings.HasPrefix(line, "#EXT-X-BYTERANGE:"):
			v := strings.TrimPrefix(line, "#EXT-X-BYTERANGE:")
			length, offset, err := parseByteRange(v, rangeEnd)
			if err != nil {
				return nil, err
			}
			nextRange = &media.ByteRange{Start: offset, Length: length}
			rangeEnd = offset + length

		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:"))
			if uri := attrs["URI"]; uri != "" {
				u, err := base.Parse(uri)
				if err != nil {
					return nil, fmt.Errorf("invalid EXT-X-MAP URI %q: %w", uri, err)
				}
				pl.MapURI = u.String()
			}

		case line == "#EXT-X-ENDLIST":
			pl.EndList = true
		}
	}

	return pl, nil
}

// parseByteRange parses "<length>[@<offset>]". Without an explicit offset
// the range starts where the previous one ended.
func parseByteRange(s string, prevEnd int64) (length, offset int64, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), "@", 2)
	length, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid EXT-X-BYTERANGE length: %w", err)
	}
	offset = prevEnd
	if len(parts) == 2 {
		offset, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid EXT-X-BYTERANGE offset: %w", err)
		}
	}
	return length, offset, nil
}
