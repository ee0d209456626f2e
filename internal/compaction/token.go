package compaction

import "contextkeeper/internal/message"

// TokenCounter estimates token counts for text and messages.
type TokenCounter struct{}

// NewTokenCounter creates a new TokenCounter.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// EstimateText estimates the token count of text at roughly three
// characters per token.
func (tc *TokenCounter) EstimateText(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 2) / 3
}

// EstimateMessages estimates the total token count of messages: text blocks
// by length, a flat cost per image, and ~4 tokens of role overhead each.
func (tc *TokenCounter) EstimateMessages(messages []message.Message) int {
	total := 0
	for _, msg := range messages {
		total += 4
		for _, block := range msg.Content {
			switch b := block.(type) {
			case message.TextBlock:
				total += tc.EstimateText(b.Text)
			case message.ImageBlock:
				total += imageTokens
			}
		}
	}
	return total
}

// imageTokens approximates one image at typical screenshot resolution.
const imageTokens = 1_000
