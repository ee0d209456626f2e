package editlog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAppend(t *testing.T, l *Log, msg, block int, ts int64, text string) {
	t.Helper()
	require.NoError(t, l.Append(Key{Message: msg, Block: block}, Update{Timestamp: ts, Text: text}))
}

func TestLog_AppendAndLatest(t *testing.T) {
	l := New()
	key := Key{Message: 4, Block: 1}

	_, ok := l.Latest(key)
	assert.False(t, ok)

	mustAppend(t, l, 4, 1, 100, "first")
	mustAppend(t, l, 4, 1, 200, "second")

	latest, ok := l.Latest(key)
	require.True(t, ok)
	assert.Equal(t, "second", latest.Text)
	assert.Equal(t, UpdateText, latest.Kind)

	prev, ok := l.Previous(key)
	require.True(t, ok)
	assert.Equal(t, "first", prev.Text)

	kind, ok := l.Kind(4)
	assert.True(t, ok)
	assert.Equal(t, EditUndefined, kind)
}

func TestLog_AppendRejectsOlderTimestamp(t *testing.T) {
	l := New()
	mustAppend(t, l, 2, 1, 200, "a")

	err := l.Append(Key{Message: 2, Block: 1}, Update{Timestamp: 100, Text: "b"})
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// Equal timestamps are accepted.
	assert.NoError(t, l.Append(Key{Message: 2, Block: 1}, Update{Timestamp: 200, Text: "c"}))
	assert.Len(t, l.Updates(Key{Message: 2, Block: 1}), 2)
}

func TestLog_AppendCopiesMetadata(t *testing.T) {
	l := New()
	replaced := []string{"a.go"}
	require.NoError(t, l.Append(Key{Message: 3, Block: 1}, Update{
		Timestamp: 1,
		Text:      "x",
		Metadata:  Metadata{Replaced: replaced, Referenced: []string{"a.go", "b.go"}},
	}))
	replaced[0] = "mutated"

	latest, _ := l.Latest(Key{Message: 3, Block: 1})
	assert.Equal(t, []string{"a.go"}, latest.Metadata.Replaced)
	assert.False(t, latest.Metadata.Complete())
}

func TestLog_Truncate(t *testing.T) {
	l := New()
	mustAppend(t, l, 1, 0, 100, "notice")
	mustAppend(t, l, 4, 1, 100, "a1")
	mustAppend(t, l, 4, 1, 300, "a2")
	mustAppend(t, l, 9, 1, 300, "b1")
	l.SetKind(9, EditReadTool)

	changed := l.Truncate(200)
	assert.True(t, changed)

	latest, ok := l.Latest(Key{Message: 4, Block: 1})
	require.True(t, ok)
	assert.Equal(t, "a1", latest.Text)

	assert.False(t, l.HasMessage(9), "message with no cells left is removed")
	assert.True(t, l.HasMessage(1))
	assert.Equal(t, []int{1, 4}, l.Messages())

	assert.False(t, l.Truncate(200), "second trim at the same point is a no-op")
}

func TestLog_TruncateToZeroEmptiesLog(t *testing.T) {
	l := New()
	mustAppend(t, l, 1, 0, 10, "x")
	mustAppend(t, l, 5, 1, 20, "y")

	assert.True(t, l.Truncate(0))
	assert.True(t, l.Empty())
}

// Rolling back to t must leave the same log as never having appended anything newer than t.
func TestLog_TruncateEquivalentToNeverAppended(t *testing.T) {
	type op struct {
		msg, block int
		ts         int64
		text       string
	}
	ops := []op{
		{1, 0, 100, "n"},
		{4, 1, 100, "a"},
		{4, 1, 150, "b"},
		{6, 1, 150, "c"},
		{4, 1, 250, "d"},
		{8, 1, 300, "e"},
	}

	full := New()
	for _, o := range ops {
		mustAppend(t, full, o.msg, o.block, o.ts, o.text)
	}
	full.Truncate(150)

	partial := New()
	for _, o := range ops {
		if o.ts <= 150 {
			mustAppend(t, partial, o.msg, o.block, o.ts, o.text)
		}
	}

	assert.Equal(t, partial, full)
}

func TestLog_BlocksSorted(t *testing.T) {
	l := New()
	mustAppend(t, l, 3, 2, 1, "c")
	mustAppend(t, l, 3, 0, 1, "a")
	mustAppend(t, l, 3, 1, 1, "b")
	assert.Equal(t, []int{0, 1, 2}, l.Blocks(3))
	assert.Equal(t, 3, l.Len())
}

func TestLog_CloneIsIndependent(t *testing.T) {
	l := New()
	mustAppend(t, l, 2, 1, 1, "x")
	c := l.Clone()
	mustAppend(t, c, 2, 1, 2, "y")

	assert.Len(t, l.Updates(Key{Message: 2, Block: 1}), 1)
	assert.Len(t, c.Updates(Key{Message: 2, Block: 1}), 2)
}

func TestLog_JSONRoundTrip(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		data, err := json.Marshal(New())
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(data))

		got := New()
		require.NoError(t, json.Unmarshal(data, got))
		assert.True(t, got.Empty())
	})

	t.Run("populated", func(t *testing.T) {
		l := New()
		mustAppend(t, l, 1, 0, 100, "notice")
		mustAppend(t, l, 4, 1, 100, "dup")
		l.SetKind(4, EditReadTool)
		require.NoError(t, l.Append(Key{Message: 7, Block: 1}, Update{
			Timestamp: 200,
			Text:      "mention",
			Metadata:  Metadata{Replaced: []string{"a.go"}, Referenced: []string{"a.go", "b.go"}},
		}))
		l.SetKind(7, EditFileMention)

		data, err := json.Marshal(l)
		require.NoError(t, err)

		got := New()
		require.NoError(t, json.Unmarshal(data, got))
		assert.Equal(t, l, got)
	})
}

func TestLog_MarshalLayout(t *testing.T) {
	l := New()
	require.NoError(t, l.Append(Key{Message: 5, Block: 1}, Update{
		Timestamp: 42,
		Text:      "t",
		Metadata:  Metadata{Replaced: []string{"a"}, Referenced: []string{"a", "b"}},
	}))
	l.SetKind(5, EditFileMention)

	data, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `[[5,[4,[[1,[[42,"text",["t"],[["a"],["a","b"]]]]]]]]]`, string(data))
}

func TestLog_UnmarshalMalformed(t *testing.T) {
	inputs := []string{
		`{"not":"an array"}`,
		`[[1]]`,
		`[[1,[0,[[0,[[1,"text"]]]]]]]`,
		`[[1,[0,[[0,[[200,"text",["a"]],[100,"text",["b"]]]]]]]]`,
	}
	for _, in := range inputs {
		got := New()
		err := json.Unmarshal([]byte(in), got)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestEditKind_String(t *testing.T) {
	assert.Equal(t, "file_mention", EditFileMention.String())
	assert.Equal(t, "unknown(9)", EditKind(9).String())
}
