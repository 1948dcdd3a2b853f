package dash

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"hlscap/internal/media"
	"hlscap/internal/timeline"
)

// Fragments flattens the SegmentTimeline of the given representation into
// fragment descriptors with timing in seconds. Both $Time$ and $Number$
// template addressing are supported.
func Fragments(manifestURL string, period *Period, as *AdaptationSet, rep *Representation) ([]timeline.Fragment[media.Fragment], error) {
	template := as.SegmentTemplate
	timescale := float64(template.Timescale)
	if timescale == 0 {
		return nil, fmt.Errorf("adaptation set %s has a timescale of 0", as.ID)
	}

	base, err := segmentBase(manifestURL, period)
	if err != nil {
		return nil, err
	}

	number := template.StartNumber
	if number == 0 {
		number = 1
	}

	var fragments []timeline.Fragment[media.Fragment]
	var currentTime uint64
	for _, s := range template.Timeline.Segments {
		// If t is specified, it's an absolute start time.
		if s.T > 0 {
			currentTime = s.T
		}

		// The r attribute specifies the number of following segments
		// with the same duration, so this block holds r+1 segments.
		for i := 0; i <= s.R; i++ {
			segURL, err := expandMedia(base, template.Media, rep.ID, currentTime, number)
			if err != nil {
				return nil, err
			}

			start := float64(currentTime) / timescale
			end := float64(currentTime+s.D) / timescale
			fragments = append(fragments, timeline.Fragment[media.Fragment]{
				Start:    &start,
				End:      &end,
				Duration: float64(s.D) / timescale,
				Sequence: number,
				Data:     media.Fragment{URL: segURL},
			})

			currentTime += s.D
			number++
		}
	}

	return fragments, nil
}

// InitURL constructs the full URL for the representation's initialization
// segment, or "" when the template carries none.
func InitURL(manifestURL string, period *Period, as *AdaptationSet, rep *Representation) (string, error) {
	if as.SegmentTemplate.Initialization == "" {
		return "", nil
	}

	base, err := segmentBase(manifestURL, period)
	if err != nil {
		return "", err
	}

	initPath := strings.Replace(as.SegmentTemplate.Initialization, "$RepresentationID$", rep.ID, 1)
	u, err := base.Parse(initPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve init path: %w", err)
	}
	return u.String(), nil
}

// segmentBase resolves the Period's BaseURL against the manifest location.
func segmentBase(manifestURL string, period *Period) (*url.URL, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest URL %q: %w", manifestURL, err)
	}
	if period.BaseURL == "" {
		return base, nil
	}
	resolved, err := base.Parse(period.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve period BaseURL: %w", err)
	}
	return resolved, nil
}

func expandMedia(base *url.URL, mediaTemplate, repID string, t uint64, number int64) (string, error) {
	mediaPath := strings.Replace(mediaTemplate, "$RepresentationID$", repID, 1)
	mediaPath = strings.Replace(mediaPath, "$Time$", strconv.FormatUint(t, 10), 1)
	mediaPath = strings.Replace(mediaPath, "$Number$", strconv.FormatInt(number, 10), 1)

	u, err := base.Parse(mediaPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media path %q: %w", mediaPath, err)
	}
	return u.String(), nil
}
