package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/studiowebux/restflow/internal/response"
	"github.com/studiowebux/restflow/internal/types"
)

// GraphQLExecutor runs queries and mutations as a single HTTP POST
type GraphQLExecutor struct {
	t *Transport
}

// NewGraphQLExecutor creates a GraphQL query/mutation executor
func NewGraphQLExecutor(t *Transport) *GraphQLExecutor {
	return &GraphQLExecutor{t: t}
}

func (e *GraphQLExecutor) Name() string { return "graphql" }

func (e *GraphQLExecutor) CanExecute(req *types.Request) bool {
	return req.Kind == types.KindGraphQL && req.GraphQL != nil && !req.GraphQL.IsSubscription()
}

func (e *GraphQLExecutor) Execute(ctx context.Context, req *types.Request) *types.RequestResponse {
	b := response.NewBuilder()

	payload, err := graphQLPayload(req.GraphQL)
	if err != nil {
		return b.WithSentRequest(types.SentRequest{URL: req.URL, Method: http.MethodPost}).WithError(err).Build()
	}

	headers, err := e.t.outgoingHeaders(ctx, req)
	if err != nil {
		sent := types.SentRequest{URL: req.URL, Method: http.MethodPost, Headers: response.FlattenHeader(headers), Body: string(payload)}
		return b.WithSentRequest(sent).WithError(err).Build()
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	if headers.Get("Accept") == "" {
		headers.Set("Accept", "application/json")
	}

	return e.t.roundTrip(ctx, b, http.MethodPost, req.URL, headers, string(payload))
}

// graphQLRequest is the standard GraphQL-over-HTTP request body
type graphQLRequest struct {
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	OperationName string          `json:"operationName,omitempty"`
}

// graphQLPayload encodes gql as a GraphQL request body.
// Variables must be a JSON object; empty text means no variables.
func graphQLPayload(gql *types.GraphQLSpec) ([]byte, error) {
	if gql == nil {
		return nil, fmt.Errorf("graphql request has no query")
	}

	body := graphQLRequest{
		Query:         gql.Query,
		OperationName: gql.OperationName,
	}

	if vars := strings.TrimSpace(gql.Variables); vars != "" {
		var obj map[string]any
		if err := json.Unmarshal([]byte(vars), &obj); err != nil {
			return nil, fmt.Errorf("graphql variables must be a JSON object: %w", err)
		}
		body.Variables = json.RawMessage(vars)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graphql request: %w", err)
	}
	return data, nil
}
