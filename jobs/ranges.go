// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package jobs

import "sort"

// Range is a byte range in a job's raw alignment file.
type Range struct {
	Seek   int64
	Length int64
}

// End returns the offset just past the range.
func (r Range) End() int64 { return r.Seek + r.Length }

// MergeRanges sorts ranges by offset, drops empty ones and joins ranges
// that are directly adjacent, so that the file can be read with as few
// reads as possible.
func MergeRanges(ranges []Range) []Range {
	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Length > 0 {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, k int) bool { return sorted[i].Seek < sorted[k].Seek })

	merged := sorted[:0]
	for _, r := range sorted {
		if n := len(merged); n > 0 && merged[n-1].End() == r.Seek {
			merged[n-1].Length += r.Length
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
