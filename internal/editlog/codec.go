package editlog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when persisted log data cannot be decoded.
var ErrMalformed = errors.New("editlog: malformed data")

// The persisted layout is nested arrays, messages and blocks ascending:
//
//	[[messageIndex, [editKind, [[blockIndex, [update, ...]], ...]]], ...]
//
// and each update is
//
//	[timestamp, kind, [text], metadata]
//
// where metadata is [] or [[replaced...], [referenced...]].

// MarshalJSON encodes the log in its persisted layout.
func (l *Log) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(l.kinds))
	for _, msg := range l.Messages() {
		blocks := make([]any, 0)
		for _, b := range l.Blocks(msg) {
			cell := l.cells[Key{Message: msg, Block: b}]
			updates := make([]any, 0, len(cell))
			for _, u := range cell {
				updates = append(updates, encodeUpdate(u))
			}
			blocks = append(blocks, []any{b, updates})
		}
		out = append(out, []any{msg, []any{int(l.kinds[msg]), blocks}})
	}
	return json.Marshal(out)
}

func encodeUpdate(u Update) []any {
	meta := []any{}
	if !u.Metadata.IsZero() {
		meta = []any{nonNil(u.Metadata.Replaced), nonNil(u.Metadata.Referenced)}
	}
	return []any{u.Timestamp, u.Kind, []string{u.Text}, meta}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// UnmarshalJSON decodes the persisted layout, replacing the log's contents.
func (l *Log) UnmarshalJSON(data []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	fresh := New()
	for i, raw := range entries {
		var entry []json.RawMessage
		if err := decodeTuple(raw, &entry, 2); err != nil {
			return fmt.Errorf("message entry %d: %w", i, err)
		}
		var msg int
		if err := json.Unmarshal(entry[0], &msg); err != nil {
			return fmt.Errorf("%w: message index %d: %v", ErrMalformed, i, err)
		}

		var inner []json.RawMessage
		if err := decodeTuple(entry[1], &inner, 2); err != nil {
			return fmt.Errorf("message %d: %w", msg, err)
		}
		var kind int
		if err := json.Unmarshal(inner[0], &kind); err != nil {
			return fmt.Errorf("%w: message %d kind: %v", ErrMalformed, msg, err)
		}
		fresh.kinds[msg] = EditKind(kind)

		var blocks []json.RawMessage
		if err := json.Unmarshal(inner[1], &blocks); err != nil {
			return fmt.Errorf("%w: message %d blocks: %v", ErrMalformed, msg, err)
		}
		for _, rawBlock := range blocks {
			var block []json.RawMessage
			if err := decodeTuple(rawBlock, &block, 2); err != nil {
				return fmt.Errorf("message %d block: %w", msg, err)
			}
			var blockIdx int
			if err := json.Unmarshal(block[0], &blockIdx); err != nil {
				return fmt.Errorf("%w: message %d block index: %v", ErrMalformed, msg, err)
			}
			var updates []json.RawMessage
			if err := json.Unmarshal(block[1], &updates); err != nil {
				return fmt.Errorf("%w: cell (%d,%d): %v", ErrMalformed, msg, blockIdx, err)
			}
			key := Key{Message: msg, Block: blockIdx}
			for _, rawUpdate := range updates {
				u, err := decodeUpdate(rawUpdate)
				if err != nil {
					return fmt.Errorf("cell (%d,%d): %w", msg, blockIdx, err)
				}
				if err := fresh.Append(key, u); err != nil {
					return fmt.Errorf("%w: %v", ErrMalformed, err)
				}
			}
		}
		// Append defaults the tag; restore the persisted one.
		fresh.kinds[msg] = EditKind(kind)
	}

	*l = *fresh
	return nil
}

func decodeTuple(raw json.RawMessage, out *[]json.RawMessage, n int) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(*out) < n {
		return fmt.Errorf("%w: expected %d elements, got %d", ErrMalformed, n, len(*out))
	}
	return nil
}

func decodeUpdate(raw json.RawMessage) (Update, error) {
	var parts []json.RawMessage
	if err := decodeTuple(raw, &parts, 3); err != nil {
		return Update{}, err
	}

	var u Update
	if err := json.Unmarshal(parts[0], &u.Timestamp); err != nil {
		return Update{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(parts[1], &u.Kind); err != nil {
		return Update{}, fmt.Errorf("%w: kind: %v", ErrMalformed, err)
	}
	var texts []string
	if err := json.Unmarshal(parts[2], &texts); err != nil {
		return Update{}, fmt.Errorf("%w: text: %v", ErrMalformed, err)
	}
	if len(texts) > 0 {
		u.Text = texts[0]
	}

	if len(parts) > 3 {
		var meta [][]string
		if err := json.Unmarshal(parts[3], &meta); err != nil {
			return Update{}, fmt.Errorf("%w: metadata: %v", ErrMalformed, err)
		}
		if len(meta) > 0 {
			u.Metadata.Replaced = meta[0]
		}
		if len(meta) > 1 {
			u.Metadata.Referenced = meta[1]
		}
	}
	return u, nil
}
