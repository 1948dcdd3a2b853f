package capture

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TrackSummary is the per-track outcome of a finished capture.
type TrackSummary struct {
	ID       string
	Output   string
	Segments int
	Fillers  int
	Bytes    int64

	// Start and End bound the captured timeline; valid when HasSpan.
	Start   float64
	End     float64
	HasSpan bool

	// Offset is how far this track's synchronized start lies from the
	// earliest sibling's, when it could be determined and is large
	// enough to matter.
	Offset    float64
	HasOffset bool
}

// RenderSummary writes a per-track results table.
func RenderSummary(w io.Writer, summaries []TrackSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Track", "Output", "Segments", "Fillers", "Bytes", "Start", "End", "Offset"})

	for _, sum := range summaries {
		start, end := "-", "-"
		if sum.HasSpan {
			start = fmt.Sprintf("%.3f", sum.Start)
			end = fmt.Sprintf("%.3f", sum.End)
		}
		offset := "-"
		if sum.HasOffset {
			offset = fmt.Sprintf("%+.3f", sum.Offset)
		}
		t.AppendRow(table.Row{sum.ID, sum.Output, sum.Segments, sum.Fillers, sum.Bytes, start, end, offset})
	}

	t.Render()
}
