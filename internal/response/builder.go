// Package response accumulates protocol telemetry into a types.RequestResponse.
//
// A Builder is owned by the single call that created it. Build may be called
// exactly once; a second call panics because it signals a programming error.
package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/studiowebux/restflow/internal/types"
)

// Builder is a single-use accumulator for one response
type Builder struct {
	streaming bool
	start     time.Time
	stopped   time.Duration
	isStopped bool
	built     bool

	status     int
	statusText string
	headers    map[string]string
	body       string
	size       int
	events     []types.StreamEvent
	sent       *types.SentRequest

	now func() time.Time
}

// NewBuilder starts timing a non-streaming response
func NewBuilder() *Builder {
	return newBuilder(false)
}

// NewStreamingBuilder starts timing a streaming response
func NewStreamingBuilder() *Builder {
	return newBuilder(true)
}

func newBuilder(streaming bool) *Builder {
	return &Builder{
		streaming: streaming,
		start:     time.Now(),
		headers:   make(map[string]string),
		now:       time.Now,
	}
}

// WithSentRequest attaches a snapshot of what was transmitted
func (b *Builder) WithSentRequest(sent types.SentRequest) *Builder {
	sent.Headers = copyMap(sent.Headers)
	sent.QueryParams = copyMap(sent.QueryParams)
	b.sent = &sent
	return b
}

// WithOutgoingRequest derives the SentRequest from a transport request.
// url, method and body are taken as given; headers and query parameters
// come from req.
func (b *Builder) WithOutgoingRequest(req *http.Request, url, method, body string) *Builder {
	sent := types.SentRequest{
		URL:    url,
		Method: method,
		Body:   body,
	}
	if req != nil {
		sent.Headers = FlattenHeader(req.Header)
		if req.URL != nil {
			sent.QueryParams = flattenValues(req.URL.Query())
		}
	}
	return b.WithSentRequest(sent)
}

// WithResponse takes status code and status text from a transport response
func (b *Builder) WithResponse(resp *http.Response) *Builder {
	if resp == nil {
		return b
	}
	return b.WithStatus(resp.StatusCode, statusMessage(resp))
}

// WithStatus sets the status explicitly
func (b *Builder) WithStatus(code int, message string) *Builder {
	b.status = code
	b.statusText = message
	return b
}

// WithHeaders merges transport headers. Later calls add to earlier ones.
func (b *Builder) WithHeaders(h http.Header) *Builder {
	for key, value := range FlattenHeader(h) {
		b.headers[key] = value
	}
	return b
}

// WithHeaderMap merges already-flattened headers
func (b *Builder) WithHeaderMap(h map[string]string) *Builder {
	for key, value := range h {
		b.headers[key] = value
	}
	return b
}

// WithBody sets the body; size is its character length
func (b *Builder) WithBody(body string) *Builder {
	b.body = body
	b.size = utf8.RuneCountInString(body)
	return b
}

// ReadBody reads the whole of r as the body. A nil reader is a no-op.
func (b *Builder) ReadBody(r io.Reader) error {
	if r == nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	b.WithBody(string(data))
	return nil
}

// AddEvent appends a stream event. Ignored on non-streaming builders.
func (b *Builder) AddEvent(ev types.StreamEvent) *Builder {
	if !b.streaming {
		return b
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}
	b.events = append(b.events, ev)
	return b
}

// AddEventData appends a stream event stamped with the current time
func (b *Builder) AddEventData(data, eventType string) *Builder {
	return b.AddEvent(types.StreamEvent{
		Timestamp: b.now(),
		EventType: eventType,
		Data:      data,
	})
}

// EventCount returns the number of events collected so far
func (b *Builder) EventCount() int {
	return len(b.events)
}

// FinalizeStreaming serializes the collected events into the body as a
// JSON array of {timestamp, type, data} objects in arrival order
func (b *Builder) FinalizeStreaming() *Builder {
	events := b.events
	if events == nil {
		events = []types.StreamEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		// StreamEvent holds only strings and a time; Marshal cannot fail
		return b.WithBody(fmt.Sprintf("failed to serialize events: %v", err))
	}
	return b.WithBody(string(data))
}

// WithError records a transport failure: status 0, the error text as the
// status message and a diagnostic body naming the error type
func (b *Builder) WithError(err error) *Builder {
	if err == nil {
		return b
	}
	b.status = 0
	b.statusText = err.Error()
	return b.WithBody(fmt.Sprintf("%T: %s", err, err.Error()))
}

// Elapsed returns the time since the builder was created, or the
// measured duration once Build has stopped the timer
func (b *Builder) Elapsed() time.Duration {
	if b.isStopped {
		return b.stopped
	}
	return time.Since(b.start)
}

// ElapsedMilliseconds is Elapsed in whole milliseconds
func (b *Builder) ElapsedMilliseconds() int64 {
	return b.Elapsed().Milliseconds()
}

// Build stops the timer and returns the response. It panics when called twice.
func (b *Builder) Build() *types.RequestResponse {
	if b.built {
		panic("response: Build already called, builder is single-use")
	}
	b.built = true

	if !b.isStopped {
		b.stopped = time.Since(b.start)
		b.isStopped = true
	}

	resp := &types.RequestResponse{
		StatusCode:    b.status,
		StatusMessage: b.statusText,
		Headers:       copyMap(b.headers),
		Body:          b.body,
		Size:          b.size,
		Elapsed:       b.stopped,
		IsStreaming:   b.streaming,
	}
	if b.streaming {
		resp.Events = append([]types.StreamEvent{}, b.events...)
	}
	if b.sent != nil {
		sent := *b.sent
		resp.SentRequest = &sent
	}
	return resp
}

// statusMessage strips the numeric prefix net/http puts in Status
func statusMessage(resp *http.Response) string {
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if msg := strings.TrimPrefix(resp.Status, prefix); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

// FlattenHeader joins multi-valued headers with ", ". An empty header yields nil.
func FlattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func flattenValues(v map[string][]string) map[string]string {
	if len(v) == 0 {
		return nil
	}
	out := make(map[string]string, len(v))
	for key, values := range v {
		out[key] = strings.Join(values, ",")
	}
	return out
}

func copyMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
