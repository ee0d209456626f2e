package compaction

import (
	"contextkeeper/internal/editlog"
	"contextkeeper/internal/message"
)

// Render builds the effective view: the first pair, then the messages after
// r, with every edited block showing its latest update. Edited messages are
// cloned; the rest are shared with messages, which is never modified.
func Render(messages []message.Message, log *editlog.Log, r *DeletedRange) []message.Message {
	if len(messages) <= 1 {
		return messages
	}

	indices := visibleIndices(len(messages), r)
	out := make([]message.Message, len(indices))
	for pos, i := range indices {
		if !log.HasMessage(i) {
			out[pos] = messages[i]
			continue
		}
		msg := messages[i].Clone()
		for _, block := range log.Blocks(i) {
			if latest, ok := log.Latest(editlog.Key{Message: i, Block: block}); ok {
				msg.SetText(block, latest.Text)
			}
		}
		out[pos] = msg
	}
	return out
}

// Rollback discards every update newer than timestamp and reports whether
// the log changed. The caller persists the log afterwards.
func Rollback(log *editlog.Log, timestamp int64) bool {
	return log.Truncate(timestamp)
}
