package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/restflow/internal/response"
	"github.com/studiowebux/restflow/internal/types"
)

// WebSocketExecutor opens a plain WebSocket session, sends the configured
// message and collects received frames as stream events
type WebSocketExecutor struct {
	t *Transport
}

// NewWebSocketExecutor creates a standard WebSocket executor
func NewWebSocketExecutor(t *Transport) *WebSocketExecutor {
	return &WebSocketExecutor{t: t}
}

func (e *WebSocketExecutor) Name() string { return "websocket" }

func (e *WebSocketExecutor) CanExecute(req *types.Request) bool {
	return req.Kind == types.KindWebSocket && (req.WebSocket == nil || req.WebSocket.IsStandard())
}

func (e *WebSocketExecutor) Execute(ctx context.Context, req *types.Request) *types.RequestResponse {
	b := response.NewStreamingBuilder()

	var message string
	var protocols []string
	if req.WebSocket != nil {
		message = req.WebSocket.Message
		protocols = req.WebSocket.Protocols
	}
	sent := types.SentRequest{URL: req.URL, Method: types.MethodWebSocket, Body: message}

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

	conn, ok := e.t.dial(ctx, b, target, headers, protocols)
	if !ok {
		return b.Build()
	}
	defer conn.Close()

	err = e.t.exchange(ctx, conn, func(send sendFunc) error {
		if message == "" {
			return nil
		}
		return send([]byte(message))
	}, func(_ sendFunc, messageType int, data []byte) (bool, error) {
		b.AddEventData(string(data), frameType(messageType))
		return false, nil
	})
	return finishSession(b, conn, err)
}

// sendFunc writes one text frame. Safe for concurrent use.
type sendFunc func(data []byte) error

// frameHandler sees every received frame. Returning true ends the session.
type frameHandler func(send sendFunc, messageType int, data []byte) (bool, error)

// dial opens the connection and records the handshake into b. On failure the
// error is recorded and ok is false.
func (t *Transport) dial(ctx context.Context, b *response.Builder, target string, headers http.Header, protocols []string) (*websocket.Conn, bool) {
	conn, resp, err := t.dialer(protocols).DialContext(ctx, target, headers)
	if err != nil {
		if resp != nil {
			b.WithHeaders(resp.Header)
			err = fmt.Errorf("connection failed (HTTP %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("connection failed: %w", err)
		}
		b.WithError(err)
		return nil, false
	}
	if resp != nil {
		b.WithHeaders(resp.Header)
	}
	return conn, true
}

// exchange runs one session: open writes the opening frames, then frames are
// read until the peer closes, the receive timeout passes, MaxMessages frames
// have arrived, handle asks to stop, or ctx ends
func (t *Transport) exchange(ctx context.Context, conn *websocket.Conn, open func(sendFunc) error, handle frameHandler) error {
	var writeMu sync.Mutex
	send := func(data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := open(send); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	// Unblock the reader when the context ends
	g.Go(func() error {
		select {
		case <-gctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
		return nil
	})

	g.Go(func() error {
		defer close(done)
		received := 0
		for {
			if gctx.Err() != nil {
				return nil
			}
			if t.opts.ReceiveTimeout > 0 {
				_ = conn.SetReadDeadline(time.Now().Add(t.opts.ReceiveTimeout))
			}
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if endOfSession(err) {
					return nil
				}
				return fmt.Errorf("receive failed: %w", err)
			}
			received++
			stop, err := handle(send, messageType, data)
			if err != nil {
				return err
			}
			if stop || (t.opts.MaxMessages > 0 && received >= t.opts.MaxMessages) {
				return nil
			}
		}
	})

	return g.Wait()
}

// finishSession closes conn politely and builds the streaming response.
// A completed session reports 200; a failed one reports status 0 and keeps
// the events received before the failure.
func finishSession(b *response.Builder, conn *websocket.Conn, err error) *types.RequestResponse {
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	if err != nil {
		b.WithError(err)
		b.AddEventData(err.Error(), "error")
	} else {
		b.WithStatus(http.StatusOK, http.StatusText(http.StatusOK))
	}
	return b.FinalizeStreaming().Build()
}

// malformedURL reports an unusable URL as status 0 with an Error-tagged message
func malformedURL(b *response.Builder, sent types.SentRequest, err error) *types.RequestResponse {
	return b.WithSentRequest(sent).
		WithError(err).
		WithStatus(0, "Error: "+err.Error()).
		Build()
}

// webSocketURL validates rawURL and maps http(s) schemes to ws(s)
func webSocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid WebSocket URL %q: %w", rawURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid WebSocket URL %q: unsupported scheme %q", rawURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL %q: missing host", rawURL)
	}
	return u.String(), nil
}

// endOfSession reports whether a read error is a normal way for a session to end
func endOfSession(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func frameType(messageType int) string {
	switch messageType {
	case websocket.TextMessage:
		return "message"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}
