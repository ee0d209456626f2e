// Package editlog holds the append-only record of rewrites applied to
// conversation content blocks.
package editlog

import (
	"errors"
	"fmt"
	"slices"
)

// EditKind classifies which detection channel produced a message's edits.
// It is a fast hint only; the updates themselves are authoritative.
type EditKind int

// Edit kinds. The numeric values are part of the on-disk format.
const (
	EditUndefined EditKind = iota
	EditNoFileRead
	EditReadTool
	EditWriteTool
	EditFileMention
)

func (k EditKind) String() string {
	switch k {
	case EditUndefined:
		return "undefined"
	case EditNoFileRead:
		return "no_file_read"
	case EditReadTool:
		return "read_tool"
	case EditWriteTool:
		return "write_tool"
	case EditFileMention:
		return "file_mention"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// UpdateText is the only update kind: replace the block's text.
const UpdateText = "text"

// Metadata tracks partial progress on blocks holding several replaceable
// payloads.
type Metadata struct {
	// Replaced lists the paths already replaced in the block.
	Replaced []string
	// Referenced lists every path the block references.
	Referenced []string
}

// Complete reports whether every referenced path has been replaced.
func (m Metadata) Complete() bool {
	return len(m.Referenced) > 0 && len(m.Replaced) == len(m.Referenced)
}

// IsZero reports whether no metadata was recorded.
func (m Metadata) IsZero() bool {
	return len(m.Replaced) == 0 && len(m.Referenced) == 0
}

func (m Metadata) clone() Metadata {
	return Metadata{Replaced: cloneStrings(m.Replaced), Referenced: cloneStrings(m.Referenced)}
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

// Update is one immutable rewrite of a content block.
type Update struct {
	Timestamp int64
	Kind      string
	Text      string
	Metadata  Metadata
}

// Key addresses one content block of one message.
type Key struct {
	Message int
	Block   int
}

// ErrOutOfOrder is returned when an update is older than the cell's latest entry.
var ErrOutOfOrder = errors.New("editlog: update older than latest entry")

// Log is the edit log. Cells are keyed by (message, block) and hold updates
// in timestamp order; the last entry of a cell is authoritative.
//
// A Log is not safe for concurrent use.
type Log struct {
	cells map[Key][]Update
	kinds map[int]EditKind
}

// New returns an empty log.
func New() *Log {
	return &Log{
		cells: make(map[Key][]Update),
		kinds: make(map[int]EditKind),
	}
}

// Append adds an update to the end of a cell. The message's kind tag is
// created as EditUndefined if absent.
func (l *Log) Append(key Key, u Update) error {
	cell := l.cells[key]
	if n := len(cell); n > 0 && u.Timestamp < cell[n-1].Timestamp {
		return fmt.Errorf("%w: cell (%d,%d) at %d, got %d",
			ErrOutOfOrder, key.Message, key.Block, cell[n-1].Timestamp, u.Timestamp)
	}
	if u.Kind == "" {
		u.Kind = UpdateText
	}
	u.Metadata = u.Metadata.clone()
	l.cells[key] = append(cell, u)
	if _, ok := l.kinds[key.Message]; !ok {
		l.kinds[key.Message] = EditUndefined
	}
	return nil
}

// SetKind tags a message with the channel that edited it.
func (l *Log) SetKind(msg int, kind EditKind) {
	l.kinds[msg] = kind
}

// Kind returns the message's tag and whether the message has an entry.
func (l *Log) Kind(msg int) (EditKind, bool) {
	k, ok := l.kinds[msg]
	return k, ok
}

// HasMessage reports whether any entry exists for the message.
func (l *Log) HasMessage(msg int) bool {
	_, ok := l.kinds[msg]
	return ok
}

// Updates returns the cell's updates, oldest first. The slice must not be modified.
func (l *Log) Updates(key Key) []Update {
	return l.cells[key]
}

// Latest returns the authoritative update for the cell.
func (l *Log) Latest(key Key) (Update, bool) {
	cell := l.cells[key]
	if len(cell) == 0 {
		return Update{}, false
	}
	return cell[len(cell)-1], true
}

// Previous returns the update before the latest one, if any.
func (l *Log) Previous(key Key) (Update, bool) {
	cell := l.cells[key]
	if len(cell) < 2 {
		return Update{}, false
	}
	return cell[len(cell)-2], true
}

// Blocks returns the block indices edited in a message, ascending.
func (l *Log) Blocks(msg int) []int {
	var blocks []int
	for k := range l.cells {
		if k.Message == msg {
			blocks = append(blocks, k.Block)
		}
	}
	slices.Sort(blocks)
	return blocks
}

// Messages returns every message index with an entry, ascending.
func (l *Log) Messages() []int {
	msgs := make([]int, 0, len(l.kinds))
	for m := range l.kinds {
		msgs = append(msgs, m)
	}
	slices.Sort(msgs)
	return msgs
}

// Len returns the number of cells.
func (l *Log) Len() int {
	return len(l.cells)
}

// Empty reports whether the log holds no entries.
func (l *Log) Empty() bool {
	return len(l.cells) == 0 && len(l.kinds) == 0
}

// Truncate discards every update newer than timestamp. Empty cells are
// removed, and so are messages left without cells. It reports whether
// anything was removed.
func (l *Log) Truncate(timestamp int64) bool {
	changed := false
	for key, cell := range l.cells {
		n := len(cell)
		for n > 0 && cell[n-1].Timestamp > timestamp {
			n--
		}
		if n == len(cell) {
			continue
		}
		changed = true
		if n == 0 {
			delete(l.cells, key)
		} else {
			l.cells[key] = cell[:n:n]
		}
	}
	if !changed {
		return false
	}

	live := make(map[int]bool, len(l.kinds))
	for key := range l.cells {
		live[key.Message] = true
	}
	for msg := range l.kinds {
		if !live[msg] {
			delete(l.kinds, msg)
		}
	}
	return true
}

// Clone returns an independent copy of the log.
func (l *Log) Clone() *Log {
	out := New()
	for k, cell := range l.cells {
		cp := make([]Update, len(cell))
		for i, u := range cell {
			cp[i] = u
			cp[i].Metadata = u.Metadata.clone()
		}
		out.cells[k] = cp
	}
	for m, kind := range l.kinds {
		out.kinds[m] = kind
	}
	return out
}
