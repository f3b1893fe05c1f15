package types

// WebSocketConnectionKind distinguishes plain WebSocket sessions from
// GraphQL subscriptions carried over WebSocket
type WebSocketConnectionKind string

const (
	ConnectionStandard            WebSocketConnectionKind = "standard"
	ConnectionGraphQLSubscription WebSocketConnectionKind = "graphql_subscription"
)

// WebSocketSpec holds the WebSocket-specific part of a Request
type WebSocketSpec struct {
	Message        string                  `json:"message,omitempty" yaml:"message,omitempty"`
	Protocols      []string                `json:"protocols,omitempty" yaml:"protocols,omitempty"`
	ConnectionKind WebSocketConnectionKind `json:"connectionKind,omitempty" yaml:"connectionKind,omitempty"`
}

// IsStandard reports whether the connection is a plain WebSocket session.
// An empty kind counts as standard.
func (s *WebSocketSpec) IsStandard() bool {
	return s.ConnectionKind == "" || s.ConnectionKind == ConnectionStandard
}

// Method tags recorded in SentRequest.Method for non-HTTP-verb protocols
const (
	MethodWebSocket              = "WEBSOCKET"
	MethodGraphQLSubscriptionWS  = "GRAPHQL_SUBSCRIPTION_WS"
	MethodGraphQLSubscriptionSSE = "GRAPHQL_SUBSCRIPTION_SSE"
)
