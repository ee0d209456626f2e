package compaction

import "strings"

// ModelInfo describes the model a request is sent to.
type ModelInfo struct {
	ID       string `json:"id" yaml:"id"`
	Provider string `json:"provider" yaml:"provider"`
	// ContextWindow in tokens; zero means unknown.
	ContextWindow int `json:"context_window" yaml:"context_window"`
}

// ContextWindowInfo is the token budget derived from a ModelInfo.
type ContextWindowInfo struct {
	ContextWindow  int
	MaxAllowedSize int
}

// deepSeekWindow overrides the window reported for DeepSeek models.
const deepSeekWindow = 64_000

// ContextWindow computes the window and the usage ceiling past which the
// conversation is compacted. defaultWindow applies when model reports none.
func ContextWindow(model ModelInfo, defaultWindow int) ContextWindowInfo {
	window := model.ContextWindow
	if window <= 0 {
		window = defaultWindow
	}
	if isDeepSeek(model) {
		window = deepSeekWindow
	}

	var maxAllowed int
	switch window {
	case 64_000:
		maxAllowed = window - 27_000
	case 128_000:
		maxAllowed = window - 30_000
	case 200_000:
		maxAllowed = window - 40_000
	default:
		maxAllowed = max(window-40_000, int(float64(window)*0.8))
	}
	return ContextWindowInfo{ContextWindow: window, MaxAllowedSize: maxAllowed}
}

func isDeepSeek(model ModelInfo) bool {
	return strings.EqualFold(model.Provider, "deepseek") ||
		strings.Contains(strings.ToLower(model.ID), "deepseek")
}
