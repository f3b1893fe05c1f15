package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/studiowebux/restflow/internal/response"
	"github.com/studiowebux/restflow/internal/types"
)

const defaultEventType = "message"

// GraphQLSSEExecutor runs GraphQL subscriptions over Server-Sent Events
type GraphQLSSEExecutor struct {
	t *Transport
}

// NewGraphQLSSEExecutor creates a GraphQL subscription executor over SSE
func NewGraphQLSSEExecutor(t *Transport) *GraphQLSSEExecutor {
	return &GraphQLSSEExecutor{t: t}
}

func (e *GraphQLSSEExecutor) Name() string { return "graphql-subscription-sse" }

func (e *GraphQLSSEExecutor) CanExecute(req *types.Request) bool {
	return req.Kind == types.KindGraphQL &&
		req.GraphQL != nil &&
		req.GraphQL.IsSubscription() &&
		req.GraphQL.SubscriptionProtocol == types.SubscriptionServerSentEvents
}

func (e *GraphQLSSEExecutor) Execute(ctx context.Context, req *types.Request) *types.RequestResponse {
	b := response.NewStreamingBuilder()
	sent := types.SentRequest{URL: req.URL, Method: types.MethodGraphQLSubscriptionSSE}

	payload, err := graphQLPayload(req.GraphQL)
	if err != nil {
		return b.WithSentRequest(sent).WithError(err).Build()
	}
	sent.Body = string(payload)

	headers, err := e.t.outgoingHeaders(ctx, req)
	sent.Headers = response.FlattenHeader(headers)
	if err != nil {
		return b.WithSentRequest(sent).WithError(err).Build()
	}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	sent.Headers = response.FlattenHeader(headers)
	b.WithSentRequest(sent)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, strings.NewReader(string(payload)))
	if err != nil {
		return b.WithError(fmt.Errorf("failed to create request: %w", err)).Build()
	}
	httpReq.Header = headers

	resp, err := e.t.client.Do(httpReq)
	if err != nil {
		return b.WithError(err).Build()
	}
	defer resp.Body.Close()

	b.WithResponse(resp).WithHeaders(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if err := b.ReadBody(resp.Body); err != nil {
			return b.WithError(err).Build()
		}
		return b.Build()
	}

	max := e.t.opts.MaxMessages
	err = parseEventStream(resp.Body, func(eventType, data string) bool {
		b.AddEventData(data, eventType)
		if eventType == "complete" {
			return false
		}
		return max <= 0 || b.EventCount() < max
	})
	if err != nil && ctx.Err() == nil {
		b.WithError(err)
		b.AddEventData(err.Error(), "error")
	}
	return b.FinalizeStreaming().Build()
}

// parseEventStream reads an SSE stream and calls emit once per event block.
// Blocks are separated by a blank line; data lines of one block are joined
// with "\n"; the event line sets the type, defaulting to "message"; comment
// lines start with ':'. emit returns false to stop reading.
func parseEventStream(r io.Reader, emit func(eventType, data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		eventType string
		data      []string
		pending   bool
	)

	dispatch := func() bool {
		if !pending {
			return true
		}
		typ := eventType
		if typ == "" {
			typ = defaultEventType
		}
		keepGoing := emit(typ, strings.Join(data, "\n"))
		eventType, data, pending = "", nil, false
		return keepGoing
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			if !dispatch() {
				return nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			eventType = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	dispatch()
	return nil
}
