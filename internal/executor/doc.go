/*
Package executor runs resolved requests over the wire.

# Overview

Each protocol shape has its own Executor:
  - RestExecutor: plain HTTP requests
  - GraphQLExecutor: GraphQL queries and mutations over HTTP POST
  - WebSocketExecutor: standard WebSocket sessions
  - GraphQLWebSocketExecutor: GraphQL subscriptions over WebSocket
  - GraphQLSSEExecutor: GraphQL subscriptions over Server-Sent Events

A Dispatcher holds the executors in a fixed order and runs the first one
whose CanExecute accepts the request. When none does, Execute returns an
*UnsupportedProtocolError, which matches types.ErrUnsupportedProtocol with
errors.Is.

# Responses

Executors never return transport errors. Connection failures, malformed URLs
and token errors are recorded in the response with status code 0 and a
diagnostic body. Streaming executors collect every event before returning a
single response whose body is the JSON list of events.

A streaming session ends when the peer closes, when no frame arrives within
Options.ReceiveTimeout, after Options.MaxMessages frames, when a GraphQL
subscription completes, or when the context is cancelled.

# Authentication

All executors apply the same rules to outgoing headers:
  - Headers listed in Request.DisabledHeaders are dropped
  - Basic auth sets "Authorization: Basic base64(user:pass)"
  - Bearer auth sets "Authorization: Bearer <token>"
  - OAuth2 fetches a client-credentials token and sends it as a bearer token

Authentication is applied after disabled headers are removed.

# TLS Configuration

Options.TLS supports a custom CA, client certificates (mTLS) and
InsecureSkipVerify for development. The same settings apply to HTTP calls
and WebSocket handshakes.

# Example Usage

	transport, err := executor.NewTransport(executor.DefaultOptions())
	if err != nil {
		return err
	}
	dispatcher := executor.NewDefaultDispatcher(transport)

	resp, err := dispatcher.Execute(ctx, req)
	if err != nil {
		return err // no executor for this request shape
	}
	fmt.Println(resp.StatusCode, executor.FormatDuration(resp.Elapsed))
*/
package executor
