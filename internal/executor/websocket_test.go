package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studiowebux/restflow/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{"chat.v1", protocolGraphQLTransportWS, protocolGraphQLWS},
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func decodeJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", raw, err)
	}
	return out
}

func decodeEvents(t *testing.T, body string) []types.StreamEvent {
	t.Helper()
	var events []types.StreamEvent
	if err := json.Unmarshal([]byte(body), &events); err != nil {
		t.Fatalf("body is not an event list %q: %v", body, err)
	}
	return events
}

// TestWebSocketExecutor_EchoSession sends the configured message and records replies
func TestWebSocketExecutor_EchoSession(t *testing.T) {
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("echo: "+string(message)))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("bye"))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer server.Close()

	req := &types.Request{
		Kind:            types.KindWebSocket,
		URL:             wsURL(server),
		Headers:         map[string]string{"X-Client": "restflow", "X-Skip": "1"},
		DisabledHeaders: []string{"X-Skip"},
		Auth:            types.Auth{Type: types.AuthBearer, Token: "ws-token"},
		WebSocket:       &types.WebSocketSpec{Message: "hello", Protocols: []string{"chat.v1"}},
	}

	resp := NewWebSocketExecutor(newTestTransport(t)).Execute(context.Background(), req)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected completed session, got %d %q", resp.StatusCode, resp.StatusMessage)
	}
	if !resp.IsStreaming {
		t.Error("expected streaming response")
	}
	if len(resp.Events) != 2 || resp.Events[0].Data != "echo: hello" || resp.Events[1].Data != "bye" {
		t.Fatalf("unexpected events %+v", resp.Events)
	}
	if events := decodeEvents(t, resp.Body); len(events) != 2 {
		t.Errorf("expected body to list 2 events, got %d", len(events))
	}

	if gotHeader.Get("Authorization") != "Bearer ws-token" {
		t.Errorf("expected bearer header on handshake, got %q", gotHeader.Get("Authorization"))
	}
	if gotHeader.Get("X-Client") != "restflow" || gotHeader.Get("X-Skip") != "" {
		t.Errorf("unexpected handshake headers %v", gotHeader)
	}
	if gotHeader.Get("Sec-Websocket-Protocol") != "chat.v1" {
		t.Errorf("expected subprotocol offer, got %q", gotHeader.Get("Sec-Websocket-Protocol"))
	}

	sent := resp.SentRequest
	if sent.Method != types.MethodWebSocket || sent.Body != "hello" || sent.URL != req.URL {
		t.Errorf("unexpected snapshot %+v", sent)
	}
}

// TestWebSocketExecutor_ReceiveTimeoutEndsSession stops after the idle timeout
func TestWebSocketExecutor_ReceiveTimeoutEndsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("only"))
		// Stay open until the client leaves
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	start := time.Now()
	resp := NewWebSocketExecutor(newTestTransport(t)).Execute(context.Background(), &types.Request{
		Kind: types.KindWebSocket,
		URL:  wsURL(server),
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected idle timeout to end session normally, got %d %q", resp.StatusCode, resp.StatusMessage)
	}
	if len(resp.Events) != 1 || resp.Events[0].Data != "only" {
		t.Errorf("unexpected events %+v", resp.Events)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("session took too long: %v", time.Since(start))
	}
}

// TestWebSocketExecutor_MaxMessages caps the number of collected frames
func TestWebSocketExecutor_MaxMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 10; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("tick")); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	transport := newTestTransport(t)
	transport.opts.MaxMessages = 3

	resp := NewWebSocketExecutor(transport).Execute(context.Background(), &types.Request{
		Kind: types.KindWebSocket,
		URL:  wsURL(server),
	})
	if len(resp.Events) != 3 {
		t.Errorf("expected 3 events, got %d", len(resp.Events))
	}
}

// TestWebSocketExecutor_Cancellation ends a quiet session when the context is cancelled
func TestWebSocketExecutor_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	transport := newTestTransport(t)
	transport.opts.ReceiveTimeout = 0

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan *types.RequestResponse, 1)
	go func() {
		done <- NewWebSocketExecutor(transport).Execute(ctx, &types.Request{Kind: types.KindWebSocket, URL: wsURL(server)})
	}()

	select {
	case resp := <-done:
		if len(resp.Events) != 0 {
			t.Errorf("expected no events, got %+v", resp.Events)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("session did not stop after cancellation")
	}
}

// TestWebSocketExecutor_CancellationDuringBusyStream stops promptly while frames keep arriving
func TestWebSocketExecutor_CancellationDuringBusyStream(t *testing.T) {
	stop := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte("tick")); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}))
	defer server.Close()
	defer close(stop)

	transport := newTestTransport(t)
	transport.opts.ReceiveTimeout = time.Minute
	transport.opts.MaxMessages = 0

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan *types.RequestResponse, 1)
	go func() {
		done <- NewWebSocketExecutor(transport).Execute(ctx, &types.Request{Kind: types.KindWebSocket, URL: wsURL(server)})
	}()

	select {
	case resp := <-done:
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected a cleanly ended session, got %d %q", resp.StatusCode, resp.StatusMessage)
		}
		if len(resp.Events) == 0 {
			t.Error("expected events received before cancellation")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("busy session did not stop after cancellation")
	}
}

// TestWebSocketExecutor_MalformedURL reports status 0 with an Error-tagged message
func TestWebSocketExecutor_MalformedURL(t *testing.T) {
	tests := []string{"://missing-scheme", "ftp://example.com/socket", "ws://"}

	for _, rawURL := range tests {
		t.Run(rawURL, func(t *testing.T) {
			resp := NewWebSocketExecutor(newTestTransport(t)).Execute(context.Background(), &types.Request{
				Kind: types.KindWebSocket,
				URL:  rawURL,
			})
			if resp.StatusCode != 0 {
				t.Errorf("expected status 0, got %d", resp.StatusCode)
			}
			if !strings.HasPrefix(resp.StatusMessage, "Error") {
				t.Errorf("expected Error-tagged message, got %q", resp.StatusMessage)
			}
			if resp.SentRequest == nil || resp.SentRequest.Method != types.MethodWebSocket {
				t.Errorf("expected WEBSOCKET snapshot, got %+v", resp.SentRequest)
			}
		})
	}
}

// TestWebSocketExecutor_HandshakeRejected records the HTTP status of a refused upgrade
func TestWebSocketExecutor_HandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	resp := NewWebSocketExecutor(newTestTransport(t)).Execute(context.Background(), &types.Request{
		Kind: types.KindWebSocket,
		URL:  wsURL(server),
	})
	if resp.StatusCode != 0 {
		t.Errorf("expected status 0, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.StatusMessage, "HTTP 403") {
		t.Errorf("expected handshake status in message, got %q", resp.StatusMessage)
	}
}

// graphQLTransportWSServer speaks graphql-transport-ws and emits two results
func graphQLTransportWSServer(t *testing.T, gotSubscribe *map[string]any, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg graphQLWSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				return
			}
			switch msg.Type {
			case "connection_init":
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection_ack"}`))
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
			case "subscribe", "start":
				mu.Lock()
				var decoded map[string]any
				_ = json.Unmarshal(data, &decoded)
				*gotSubscribe = decoded
				mu.Unlock()

				next := "next"
				if msg.Type == "start" {
					next = "data"
				}
				for i := 1; i <= 2; i++ {
					frame := `{"id":"` + msg.ID + `","type":"` + next + `","payload":{"data":{"tick":` + string(rune('0'+i)) + `}}}`
					_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
				}
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"`+msg.ID+`","type":"complete"}`))
			}
		}
	}))
}

func TestGraphQLWebSocketExecutor_TransportWS(t *testing.T) {
	var mu sync.Mutex
	var subscribe map[string]any
	server := graphQLTransportWSServer(t, &subscribe, &mu)
	defer server.Close()

	// Configured with http scheme; only the connection switches to ws
	req := &types.Request{
		Kind: types.KindGraphQL,
		URL:  server.URL + "/graphql",
		GraphQL: &types.GraphQLSpec{
			Query:                "subscription { tick }",
			Variables:            `{"room":"a"}`,
			OperationType:        types.OperationSubscription,
			SubscriptionProtocol: types.SubscriptionWebSocket,
		},
	}

	resp := NewGraphQLWebSocketExecutor(newTestTransport(t)).Execute(context.Background(), req)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected completed subscription, got %d %q %s", resp.StatusCode, resp.StatusMessage, resp.Body)
	}
	if resp.SentRequest.URL != server.URL+"/graphql" {
		t.Errorf("snapshot must keep the configured scheme, got %q", resp.SentRequest.URL)
	}
	if resp.SentRequest.Method != types.MethodGraphQLSubscriptionWS {
		t.Errorf("unexpected method tag %q", resp.SentRequest.Method)
	}

	var nexts []string
	for _, ev := range resp.Events {
		if ev.EventType == "next" {
			nexts = append(nexts, ev.Data)
		}
	}
	if len(nexts) != 2 || !strings.Contains(nexts[0], `"tick":1`) || !strings.Contains(nexts[1], `"tick":2`) {
		t.Errorf("unexpected results %v", nexts)
	}
	if last := resp.Events[len(resp.Events)-1]; last.EventType != "complete" {
		t.Errorf("expected complete as last event, got %+v", last)
	}

	mu.Lock()
	defer mu.Unlock()
	payload, _ := subscribe["payload"].(map[string]any)
	if subscribe["type"] != "subscribe" || payload["query"] != "subscription { tick }" {
		t.Errorf("unexpected subscribe frame %v", subscribe)
	}
	vars, _ := payload["variables"].(map[string]any)
	if vars["room"] != "a" {
		t.Errorf("expected variables in subscribe payload, got %v", payload)
	}
}

func TestGraphQLWebSocketExecutor_LegacyProtocol(t *testing.T) {
	var mu sync.Mutex
	var subscribe map[string]any
	server := graphQLTransportWSServer(t, &subscribe, &mu)
	defer server.Close()

	req := &types.Request{
		Kind:      types.KindGraphQL,
		URL:       wsURL(server),
		WebSocket: &types.WebSocketSpec{Protocols: []string{protocolGraphQLWS}},
		GraphQL: &types.GraphQLSpec{
			Query:                "subscription { tick }",
			OperationType:        types.OperationSubscription,
			SubscriptionProtocol: types.SubscriptionWebSocket,
		},
	}

	resp := NewGraphQLWebSocketExecutor(newTestTransport(t)).Execute(context.Background(), req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d %q", resp.StatusCode, resp.StatusMessage)
	}

	mu.Lock()
	defer mu.Unlock()
	if subscribe["type"] != "start" {
		t.Errorf("expected legacy start frame, got %v", subscribe)
	}

	count := 0
	for _, ev := range resp.Events {
		if ev.EventType == "next" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected 2 results, got %d (%+v)", count, resp.Events)
	}
}

func TestGraphQLWebSocketExecutor_MalformedURL(t *testing.T) {
	req := &types.Request{
		Kind: types.KindGraphQL,
		URL:  "mailto:someone",
		GraphQL: &types.GraphQLSpec{
			Query:                "subscription { tick }",
			OperationType:        types.OperationSubscription,
			SubscriptionProtocol: types.SubscriptionWebSocket,
		},
	}
	resp := NewGraphQLWebSocketExecutor(newTestTransport(t)).Execute(context.Background(), req)
	if resp.StatusCode != 0 || !strings.HasPrefix(resp.StatusMessage, "Error") {
		t.Errorf("expected Error-tagged status 0, got %d %q", resp.StatusCode, resp.StatusMessage)
	}
}

func TestGraphQLWebSocketExecutor_ConnectionErrorFailsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection_error","payload":{"message":"unauthorized"}}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	req := &types.Request{
		Kind: types.KindGraphQL,
		URL:  wsURL(server),
		GraphQL: &types.GraphQLSpec{
			Query:                "subscription { tick }",
			OperationType:        types.OperationSubscription,
			SubscriptionProtocol: types.SubscriptionWebSocket,
		},
	}

	resp := NewGraphQLWebSocketExecutor(newTestTransport(t)).Execute(context.Background(), req)
	if resp.StatusCode != 0 {
		t.Fatalf("expected status 0 for a rejected connection, got %d %q", resp.StatusCode, resp.StatusMessage)
	}
	if !strings.Contains(resp.StatusMessage, "unauthorized") {
		t.Errorf("expected server payload in status message, got %q", resp.StatusMessage)
	}
	if last := resp.Events[len(resp.Events)-1]; last.EventType != "error" {
		t.Errorf("expected error as last event, got %+v", last)
	}
}
