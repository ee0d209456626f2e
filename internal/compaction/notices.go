package compaction

import "unicode/utf8"

// Texts inserted into the effective view.
const (
	// DuplicateFileNotice replaces every copy of a file body except the latest.
	DuplicateFileNotice = "[[NOTE] This file read has been removed to save space in the context window. Refer to the latest file read for the most up to date version of this file.]"

	// TruncationNotice replaces the first assistant message once the middle
	// of the conversation is hidden.
	TruncationNotice = "[NOTE] Some previous conversation history with the user has been removed to maintain optimal context window length. The initial user task has been retained for continuity, while intermediate conversation history has been removed. Keep this in mind as you continue assisting the user. Pay special attention to the user's latest messages."

	// FirstMessageTruncatedNote is appended to a capped first user message.
	FirstMessageTruncatedNote = "\n\n[[NOTE] This message was truncated past this point to preserve context window space.]"
)

// ProcessFirstMessage caps text at maxChars, appending FirstMessageTruncatedNote
// when anything was cut. maxChars <= 0 leaves text unchanged.
func ProcessFirstMessage(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	// Do not split a UTF-8 sequence.
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + FirstMessageTruncatedNote
}

