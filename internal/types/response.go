package types

import "time"

// SentRequest is a snapshot of what was actually transmitted
type SentRequest struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	Body        string            `json:"body,omitempty"`
}

// StreamEvent is one frame or event received on a streaming connection
type StreamEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"type"`
	Data      string    `json:"data"`
}

// RequestResponse is the normalized result of executing a request.
// StatusCode 0 means the transport failed before a response arrived.
// Values are produced by response.Builder and are not modified afterwards.
type RequestResponse struct {
	StatusCode    int               `json:"status" yaml:"status"`
	StatusMessage string            `json:"statusMessage" yaml:"statusMessage"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body          string            `json:"body" yaml:"body"`
	Size          int               `json:"size" yaml:"size"`
	Elapsed       time.Duration     `json:"elapsed" yaml:"elapsed"`
	IsStreaming   bool              `json:"isStreaming,omitempty" yaml:"isStreaming,omitempty"`
	Events        []StreamEvent     `json:"events,omitempty" yaml:"events,omitempty"`
	SentRequest   *SentRequest      `json:"sentRequest,omitempty" yaml:"sentRequest,omitempty"`
}

// IsSuccess reports whether the status code is in the 2xx range
func (r *RequestResponse) IsSuccess() bool {
	return IsSuccessStatus(r.StatusCode)
}

// IsSuccessStatus returns true if status code is 2xx
func IsSuccessStatus(status int) bool {
	return status >= 200 && status <= 299
}
