// Package media holds the fragment payload shared between manifest
// parsers and the download path. The synchronization engine treats it
// as opaque data.
package media

import "fmt"

// ByteRange is a half-open byte interval [Start, Start+Length) within a
// shared resource.
type ByteRange struct {
	Start  int64
	Length int64
}

// Header renders the range as an HTTP Range header value.
func (b ByteRange) Header() string {
	return fmt.Sprintf("bytes=%d-%d", b.Start, b.Start+b.Length-1)
}

// Fragment identifies the bytes of one downloadable media fragment.
type Fragment struct {
	// URL is the fully-qualified URL to fetch the fragment from.
	URL string
	// ByteRange restricts the fetch to a sub-range of the resource,
	// nil for whole-resource fragments.
	ByteRange *ByteRange
}
