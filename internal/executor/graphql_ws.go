package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/studiowebux/restflow/internal/response"
	"github.com/studiowebux/restflow/internal/types"
)

// GraphQL over WebSocket subprotocols
const (
	protocolGraphQLTransportWS = "graphql-transport-ws"
	protocolGraphQLWS          = "graphql-ws"
)

// GraphQLWebSocketExecutor runs GraphQL subscriptions over WebSocket.
// Both graphql-transport-ws and the legacy graphql-ws protocol are spoken;
// the server's choice during the handshake decides.
type GraphQLWebSocketExecutor struct {
	t *Transport
}

// NewGraphQLWebSocketExecutor creates a GraphQL subscription executor over WebSocket
func NewGraphQLWebSocketExecutor(t *Transport) *GraphQLWebSocketExecutor {
	return &GraphQLWebSocketExecutor{t: t}
}

func (e *GraphQLWebSocketExecutor) Name() string { return "graphql-subscription-ws" }

func (e *GraphQLWebSocketExecutor) CanExecute(req *types.Request) bool {
	return req.Kind == types.KindGraphQL &&
		req.GraphQL != nil &&
		req.GraphQL.IsSubscription() &&
		req.GraphQL.SubscriptionProtocol == types.SubscriptionWebSocket
}

// graphQLWSMessage is the envelope shared by both subprotocols
type graphQLWSMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (e *GraphQLWebSocketExecutor) Execute(ctx context.Context, req *types.Request) *types.RequestResponse {
	b := response.NewStreamingBuilder()
	sent := types.SentRequest{URL: req.URL, Method: types.MethodGraphQLSubscriptionWS}

	payload, err := graphQLPayload(req.GraphQL)
	if err != nil {
		return b.WithSentRequest(sent).WithError(err).Build()
	}
	sent.Body = string(payload)

	// Only the connection uses the ws scheme; the snapshot keeps the URL as configured
	target, err := webSocketURL(req.URL)
	if err != nil {
		return malformedURL(b, sent, err)
	}

	headers, err := e.t.outgoingHeaders(ctx, req)
	sent.Headers = response.FlattenHeader(headers)
	b.WithSentRequest(sent)
	if err != nil {
		return b.WithError(err).Build()
	}

	protocols := []string{protocolGraphQLTransportWS, protocolGraphQLWS}
	if req.WebSocket != nil && len(req.WebSocket.Protocols) > 0 {
		protocols = req.WebSocket.Protocols
	}

	conn, ok := e.t.dial(ctx, b, target, headers, protocols)
	if !ok {
		return b.Build()
	}
	defer conn.Close()

	legacy := conn.Subprotocol() == protocolGraphQLWS
	id := uuid.NewString()

	subscribe := graphQLWSMessage{ID: id, Type: "subscribe", Payload: payload}
	if legacy {
		subscribe.Type = "start"
	}
	subscribeFrame, err := json.Marshal(subscribe)
	if err != nil {
		return finishSession(b, conn, fmt.Errorf("failed to encode subscription: %w", err))
	}

	err = e.t.exchange(ctx, conn, func(send sendFunc) error {
		return send([]byte(`{"type":"connection_init","payload":{}}`))
	}, func(send sendFunc, _ int, data []byte) (bool, error) {
		var msg graphQLWSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			b.AddEventData(string(data), "message")
			return false, nil
		}

		switch msg.Type {
		case "connection_ack":
			return false, send(subscribeFrame)
		case "ping":
			return false, send([]byte(`{"type":"pong"}`))
		case "pong", "ka":
			return false, nil
		case "next", "data":
			b.AddEventData(string(msg.Payload), "next")
			return false, nil
		case "error":
			b.AddEventData(string(msg.Payload), "error")
			return false, nil
		case "connection_error":
			return true, fmt.Errorf("connection error: %s", msg.Payload)
		case "complete":
			b.AddEventData("", "complete")
			return true, nil
		default:
			b.AddEventData(string(data), msg.Type)
			return false, nil
		}
	})
	return finishSession(b, conn, err)
}
