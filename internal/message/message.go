// Package message defines the conversation shapes the compaction engine reads.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Role identifies the author of a message.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags the variant of a content block.
type BlockType string

// Block types.
const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// Block is a single unit of message content. The concrete types are
// TextBlock and ImageBlock; only text blocks are ever rewritten.
type Block interface {
	Type() BlockType
	clone() Block
}

// TextBlock is a span of text.
type TextBlock struct {
	Text string
}

// Type implements Block.
func (TextBlock) Type() BlockType { return BlockText }

func (b TextBlock) clone() Block { return TextBlock{Text: b.Text} }

// ImageBlock carries a base64 image payload.
type ImageBlock struct {
	MediaType string
	Data      string
}

// Type implements Block.
func (ImageBlock) Type() BlockType { return BlockImage }

func (b ImageBlock) clone() Block { return ImageBlock{MediaType: b.MediaType, Data: b.Data} }

// Message is one turn of the conversation.
type Message struct {
	Role    Role
	Content []Block
}

// New builds a message made of text blocks.
func New(role Role, texts ...string) Message {
	blocks := make([]Block, 0, len(texts))
	for _, t := range texts {
		blocks = append(blocks, TextBlock{Text: t})
	}
	return Message{Role: role, Content: blocks}
}

// Text returns the text of block i, and false if the block is missing or not text.
func (m Message) Text(i int) (string, bool) {
	if i < 0 || i >= len(m.Content) {
		return "", false
	}
	tb, ok := m.Content[i].(TextBlock)
	if !ok {
		return "", false
	}
	return tb.Text, true
}

// SetText overwrites block i if it is a text block. It reports whether it did.
func (m Message) SetText(i int, text string) bool {
	if _, ok := m.Text(i); !ok {
		return false
	}
	m.Content[i] = TextBlock{Text: text}
	return true
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := Message{Role: m.Role}
	if m.Content != nil {
		out.Content = make([]Block, len(m.Content))
		for i, b := range m.Content {
			out.Content[i] = b.clone()
		}
	}
	return out
}

// wireBlock is the JSON form of a block.
type wireBlock struct {
	Type   BlockType    `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes the message in the provider content-block layout.
func (m Message) MarshalJSON() ([]byte, error) {
	blocks := make([]wireBlock, 0, len(m.Content))
	for _, b := range m.Content {
		switch v := b.(type) {
		case TextBlock:
			blocks = append(blocks, wireBlock{Type: BlockText, Text: v.Text})
		case ImageBlock:
			blocks = append(blocks, wireBlock{Type: BlockImage, Source: &imageSource{
				Type:      "base64",
				MediaType: v.MediaType,
				Data:      v.Data,
			}})
		default:
			return nil, fmt.Errorf("message: unknown block %T", b)
		}
	}
	content, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content})
}

// UnmarshalJSON decodes either a block array or a plain string as content.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return err
	}
	if wm.Role != RoleUser && wm.Role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrUnknownRole, wm.Role)
	}
	m.Role = wm.Role
	m.Content = nil

	if len(wm.Content) == 0 || string(wm.Content) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(wm.Content, &s); err == nil {
		m.Content = []Block{TextBlock{Text: s}}
		return nil
	}

	var blocks []wireBlock
	if err := json.Unmarshal(wm.Content, &blocks); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	m.Content = make([]Block, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case BlockText:
			m.Content = append(m.Content, TextBlock{Text: b.Text})
		case BlockImage:
			img := ImageBlock{}
			if b.Source != nil {
				img.MediaType = b.Source.MediaType
				img.Data = b.Source.Data
			}
			m.Content = append(m.Content, img)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownBlock, b.Type)
		}
	}
	return nil
}

// Decoding errors.
var (
	ErrUnknownRole  = errors.New("message: unknown role")
	ErrUnknownBlock = errors.New("message: unknown block type")
)
