package region

import "sort"

// tree answers overlap queries over a fixed set of half-open intervals
// using a sorted slice. It is built once and never modified.
type tree struct {
	intervals []Interval
	maxEnd    []int64 // maxEnd[i] = max(End) for intervals[:i+1]
}

func buildTree(intervals []Interval) *tree {
	if len(intervals) == 0 {
		return &tree{}
	}

	sorted := append([]Interval(nil), intervals...)
	for i := range sorted {
		// zero-length spans (BED insertion points) cover one base
		if sorted[i].End <= sorted[i].Start {
			sorted[i].End = sorted[i].Start + 1
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	// Prefix-max array: maxEnd[i] = max(end) for sorted[0..i]
	maxEnd := make([]int64, len(sorted))
	maxEnd[0] = sorted[0].End
	for i := 1; i < len(sorted); i++ {
		maxEnd[i] = max(maxEnd[i-1], sorted[i].End)
	}

	return &tree{intervals: sorted, maxEnd: maxEnd}
}

// overlaps reports whether any interval intersects [start, end).
func (t *tree) overlaps(start, end int64) bool {
	// Candidates all start before end.
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].Start >= end
	})

	for i := hi - 1; i >= 0; i-- {
		// No interval in 0..i reaches past start.
		if t.maxEnd[i] <= start {
			return false
		}
		if t.intervals[i].End > start {
			return true
		}
	}
	return false
}
