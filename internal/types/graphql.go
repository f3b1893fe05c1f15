package types

// GraphQLOperationType is the operation kind of a GraphQL document
type GraphQLOperationType string

const (
	OperationQuery        GraphQLOperationType = "query"
	OperationMutation     GraphQLOperationType = "mutation"
	OperationSubscription GraphQLOperationType = "subscription"
)

// SubscriptionProtocol selects the transport for GraphQL subscriptions
type SubscriptionProtocol string

const (
	SubscriptionWebSocket        SubscriptionProtocol = "websocket"
	SubscriptionServerSentEvents SubscriptionProtocol = "sse"
)

// GraphQLSpec holds the GraphQL-specific part of a Request.
// Variables is a JSON object encoded as text so it can carry placeholders.
type GraphQLSpec struct {
	Query                string               `json:"query" yaml:"query"`
	Variables            string               `json:"variables,omitempty" yaml:"variables,omitempty"`
	OperationName        string               `json:"operationName,omitempty" yaml:"operationName,omitempty"`
	OperationType        GraphQLOperationType `json:"operationType,omitempty" yaml:"operationType,omitempty"`
	SubscriptionProtocol SubscriptionProtocol `json:"subscriptionProtocol,omitempty" yaml:"subscriptionProtocol,omitempty"`
}

// IsSubscription reports whether the operation is a subscription
func (g *GraphQLSpec) IsSubscription() bool {
	return g.OperationType == OperationSubscription
}
