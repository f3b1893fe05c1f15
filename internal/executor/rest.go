package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/studiowebux/restflow/internal/response"
	"github.com/studiowebux/restflow/internal/types"
)

// RestExecutor performs plain HTTP requests
type RestExecutor struct {
	t *Transport
}

// NewRestExecutor creates a Rest executor
func NewRestExecutor(t *Transport) *RestExecutor {
	return &RestExecutor{t: t}
}

func (e *RestExecutor) Name() string { return "rest" }

func (e *RestExecutor) CanExecute(req *types.Request) bool {
	return req.Kind == types.KindRest
}

func (e *RestExecutor) Execute(ctx context.Context, req *types.Request) *types.RequestResponse {
	b := response.NewBuilder()

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := withQuery(req.URL, req.QueryParams)
	if err != nil {
		return b.WithSentRequest(types.SentRequest{URL: req.URL, Method: method}).WithError(err).Build()
	}

	body := ""
	if req.Body.Type != types.BodyNone {
		body = req.Body.Content
	}

	headers, err := e.t.outgoingHeaders(ctx, req)
	if err != nil {
		sent := types.SentRequest{URL: target, Method: method, Headers: response.FlattenHeader(headers), Body: body}
		return b.WithSentRequest(sent).WithError(err).Build()
	}
	if body != "" && headers.Get("Content-Type") == "" {
		if ct := contentType(req.Body.Type); ct != "" {
			headers.Set("Content-Type", ct)
		}
	}

	return e.t.roundTrip(ctx, b, method, target, headers, body)
}

// roundTrip sends one HTTP request and records it into b
func (t *Transport) roundTrip(ctx context.Context, b *response.Builder, method, target string, headers http.Header, body string) *types.RequestResponse {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		sent := types.SentRequest{URL: target, Method: method, Headers: response.FlattenHeader(headers), Body: body}
		return b.WithSentRequest(sent).WithError(fmt.Errorf("failed to create request: %w", err)).Build()
	}
	httpReq.Header = headers

	b.WithOutgoingRequest(httpReq, target, method, body)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return b.WithError(err).Build()
	}
	defer resp.Body.Close()

	b.WithResponse(resp).WithHeaders(resp.Header)
	if err := b.ReadBody(resp.Body); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

// withQuery appends params to rawURL. Existing query values are kept.
func withQuery(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: scheme and host are required", rawURL)
	}
	if len(params) == 0 {
		return rawURL, nil
	}

	query := u.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func contentType(bt types.BodyType) string {
	switch bt {
	case types.BodyJSON:
		return "application/json"
	case types.BodyXML:
		return "application/xml"
	case types.BodyGraphQL:
		return "application/graphql"
	case types.BodyRaw:
		return "text/plain"
	default:
		return ""
	}
}
