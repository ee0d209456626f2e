package compaction

import (
	"contextkeeper/internal/editlog"
	"contextkeeper/internal/message"
)

// CalculateImpact returns the fraction of the visible conversation's
// characters saved by the updates made to the touched messages, in [0,1].
// Visible means the first pair plus everything after r. It is 0 when the
// visible text is empty.
func CalculateImpact(messages []message.Message, log *editlog.Log, r *DeletedRange, touched map[int]bool) float64 {
	var total, saved int
	for _, i := range visibleIndices(len(messages), r) {
		for j, block := range messages[i].Content {
			tb, ok := block.(message.TextBlock)
			if !ok {
				continue
			}
			key := editlog.Key{Message: i, Block: j}
			latest, ok := log.Latest(key)
			if !ok {
				total += len(tb.Text)
				continue
			}
			total += len(latest.Text)
			if !touched[i] {
				continue
			}
			previous := tb.Text
			if prev, ok := log.Previous(key); ok {
				previous = prev.Text
			}
			saved += len(previous) - len(latest.Text)
		}
	}

	if total == 0 {
		return 0
	}
	return min(max(float64(saved)/float64(total), 0), 1)
}

// visibleIndices lists the indices kept in the view: the first pair, then
// the remainder after r.
func visibleIndices(n int, r *DeletedRange) []int {
	indices := make([]int, 0, n)
	for i := 0; i < min(RangeStart, n); i++ {
		indices = append(indices, i)
	}
	for i := r.remainderStart(); i < n; i++ {
		indices = append(indices, i)
	}
	return indices
}
