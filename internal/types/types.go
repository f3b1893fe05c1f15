package types

import (
	"strings"
	"time"
)

// RequestKind tags the shape of a Request
type RequestKind string

const (
	KindRest      RequestKind = "rest"
	KindGraphQL   RequestKind = "graphql"
	KindWebSocket RequestKind = "websocket"
)

// AuthType selects how credentials are attached to an outgoing request
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthOAuth2 AuthType = "oauth2"
)

// BodyType describes the encoding of a Rest request body
type BodyType string

const (
	BodyNone    BodyType = "none"
	BodyJSON    BodyType = "json"
	BodyXML     BodyType = "xml"
	BodyGraphQL BodyType = "graphql"
	BodyRaw     BodyType = "raw"
)

// Request is a stored request definition. Kind selects which of the
// shape-specific fields (Body, GraphQL, WebSocket) are meaningful.
type Request struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	CollectionID     string            `json:"collectionId,omitempty" yaml:"collectionId,omitempty"`
	Kind             RequestKind       `json:"kind" yaml:"kind"`
	Method           string            `json:"method,omitempty" yaml:"method,omitempty"`
	URL              string            `json:"url" yaml:"url"`
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	DisabledHeaders  []string          `json:"disabledHeaders,omitempty" yaml:"disabledHeaders,omitempty"`
	QueryParams      map[string]string `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
	Auth             Auth              `json:"auth,omitempty" yaml:"auth,omitempty"`
	Body             Body              `json:"body,omitempty" yaml:"body,omitempty"`
	GraphQL          *GraphQLSpec      `json:"graphql,omitempty" yaml:"graphql,omitempty"`
	WebSocket        *WebSocketSpec    `json:"websocket,omitempty" yaml:"websocket,omitempty"`
	DynamicVariables []DynamicVariable `json:"dynamicVariables,omitempty" yaml:"dynamicVariables,omitempty"`
}

// IsHeaderDisabled reports whether name is in the disabled-header set.
// Header names compare case-insensitively.
func (r *Request) IsHeaderDisabled(name string) bool {
	for _, disabled := range r.DisabledHeaders {
		if strings.EqualFold(disabled, name) {
			return true
		}
	}
	return false
}

// DisplayName returns the request name, falling back to its id
func (r *Request) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Clone returns a deep copy so callers can substitute variables
// without touching the stored definition.
func (r *Request) Clone() *Request {
	out := *r
	out.Headers = cloneMap(r.Headers)
	out.QueryParams = cloneMap(r.QueryParams)
	out.DisabledHeaders = append([]string(nil), r.DisabledHeaders...)
	out.DynamicVariables = append([]DynamicVariable(nil), r.DynamicVariables...)
	if r.Auth.OAuth2 != nil {
		oc := *r.Auth.OAuth2
		oc.Scopes = append([]string(nil), r.Auth.OAuth2.Scopes...)
		out.Auth.OAuth2 = &oc
	}
	if r.GraphQL != nil {
		g := *r.GraphQL
		out.GraphQL = &g
	}
	if r.WebSocket != nil {
		ws := *r.WebSocket
		ws.Protocols = append([]string(nil), r.WebSocket.Protocols...)
		out.WebSocket = &ws
	}
	return &out
}

// Auth holds the authentication mode and its credentials
type Auth struct {
	Type     AuthType      `json:"type,omitempty" yaml:"type,omitempty"`
	Username string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password string        `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string        `json:"token,omitempty" yaml:"token,omitempty"`
	OAuth2   *OAuth2Config `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`
}

// OAuth2Config contains client-credentials settings for AuthOAuth2
type OAuth2Config struct {
	TokenURL     string   `json:"tokenUrl" yaml:"tokenUrl"`
	ClientID     string   `json:"clientId" yaml:"clientId"`
	ClientSecret string   `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// Body is a typed Rest request body
type Body struct {
	Type    BodyType `json:"type,omitempty" yaml:"type,omitempty"`
	Content string   `json:"content,omitempty" yaml:"content,omitempty"`
}

// Environment holds static and dynamic variables for a deployment target
type Environment struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	Variables        map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	DynamicVariables []DynamicVariable `json:"dynamicVariables,omitempty" yaml:"dynamicVariables,omitempty"`
}

// Clone returns a copy with its own variable map
func (e *Environment) Clone() *Environment {
	out := *e
	out.Variables = cloneMap(e.Variables)
	out.DynamicVariables = append([]DynamicVariable(nil), e.DynamicVariables...)
	return &out
}

// Collection groups requests and carries its own variable scope
type Collection struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	ParentID         string            `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Variables        map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	DynamicVariables []DynamicVariable `json:"dynamicVariables,omitempty" yaml:"dynamicVariables,omitempty"`
}

// Clone returns a copy with its own variable map
func (c *Collection) Clone() *Collection {
	out := *c
	out.Variables = cloneMap(c.Variables)
	out.DynamicVariables = append([]DynamicVariable(nil), c.DynamicVariables...)
	return &out
}

// HistoryEntry records one execution: what was sent and what came back
type HistoryEntry struct {
	ID            int64            `json:"id,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	Name          string           `json:"name"`
	Kind          RequestKind      `json:"kind"`
	RequestID     string           `json:"requestId"`
	CollectionID  string           `json:"collectionId,omitempty"`
	EnvironmentID string           `json:"environmentId,omitempty"`
	SentRequest   *SentRequest     `json:"sentRequest,omitempty"`
	Response      *RequestResponse `json:"response"`
}

// Session represents ephemeral session state
type Session struct {
	CurrentEnvironment string `json:"currentEnvironment,omitempty"`
	HistoryEnabled     *bool  `json:"historyEnabled,omitempty"`
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
