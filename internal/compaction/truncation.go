package compaction

import (
	"encoding/json"
	"fmt"

	"contextkeeper/internal/message"
)

// Strategy selects how much of the removable history CalculateRange hides.
type Strategy string

// Retention strategies.
const (
	StrategyNone    Strategy = "none"    // hide everything after the first pair
	StrategyLastTwo Strategy = "lastTwo" // keep only the last two messages
	StrategyHalf    Strategy = "half"
	StrategyQuarter Strategy = "quarter" // keep a quarter
)

// RangeStart is the first hideable index. Messages 0 and 1, the task and
// the first reply, are always kept.
const RangeStart = 2

// DeletedRange is an inclusive span of hidden message indices. Start is
// always RangeStart; End < Start means nothing is hidden.
type DeletedRange struct {
	Start int
	End   int
}

// Empty reports whether the range hides nothing. A nil range is empty.
func (r *DeletedRange) Empty() bool {
	return r == nil || r.End < r.Start
}

// remainderStart is the first index after the range, or RangeStart when
// no range is set.
func (r *DeletedRange) remainderStart() int {
	if r == nil {
		return RangeStart
	}
	return max(r.End+1, RangeStart)
}

func (r DeletedRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// MarshalJSON encodes the range as [start,end].
func (r DeletedRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Start, r.End})
}

// UnmarshalJSON decodes [start,end].
func (r *DeletedRange) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("deleted range: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("deleted range: expected 2 elements, got %d", len(pair))
	}
	r.Start, r.End = pair[0], pair[1]
	return nil
}

// CalculateRange extends current so that the share of the remaining history
// named by strategy is hidden. The returned end lands on an assistant
// message, or the range is empty.
func CalculateRange(messages []message.Message, current *DeletedRange, strategy Strategy) DeletedRange {
	startOfRemaining := current.remainderStart()
	removable := len(messages) - startOfRemaining

	var count int
	switch strategy {
	case StrategyNone:
		count = removable
	case StrategyLastTwo:
		count = removable - 2
	case StrategyHalf:
		count = removable / 4 * 2
	case StrategyQuarter:
		count = removable * 3 / 8 * 2
	}
	count = max(count, 0)

	end := startOfRemaining + count - 1
	if end >= 0 && end < len(messages) && messages[end].Role != message.RoleAssistant {
		end--
	}
	return DeletedRange{Start: RangeStart, End: end}
}
