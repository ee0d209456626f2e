package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"contextkeeper/internal/compaction"
	"contextkeeper/internal/message"
)

// Session is the JSON file the commands read a conversation from.
type Session struct {
	Messages     []message.Message         `json:"messages"`
	Markers      []message.RequestMarker   `json:"markers,omitempty"`
	DeletedRange *compaction.DeletedRange  `json:"deleted_range,omitempty"`
	// PreviousRequestIndex defaults to the last api_req_started marker.
	PreviousRequestIndex *int `json:"previous_request_index,omitempty"`
}

var errNoSession = errors.New("--session is required")

// LoadSession reads a session file.
func LoadSession(path string) (*Session, error) {
	if path == "" {
		return nil, errNoSession
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the session back to path.
func (s *Session) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// PreviousIndex resolves the marker of the last completed request, -1 if none.
func (s *Session) PreviousIndex() int {
	if s.PreviousRequestIndex != nil {
		return *s.PreviousRequestIndex
	}
	for i := len(s.Markers) - 1; i >= 0; i-- {
		if s.Markers[i].Kind == message.MarkerRequestStarted {
			return i
		}
	}
	return -1
}
