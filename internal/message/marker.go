package message

// MarkerRequestStarted is the marker kind that carries a request's token usage.
const MarkerRequestStarted = "api_req_started"

// RequestMarker is the agent's record of one model request. For markers of
// kind MarkerRequestStarted, Text holds the JSON usage record once the
// request has completed.
type RequestMarker struct {
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"ts"`
}
