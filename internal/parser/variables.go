package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/studiowebux/restflow/internal/types"
)

var (
	// Variable placeholder pattern: {{varName}} or {{ varName }}
	varPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)
)

// Generator produces values for dynamic variables
type Generator interface {
	GenerateValue(v types.DynamicVariable) string
	ValidateConfiguration(v types.DynamicVariable) bool
}

// VariableScope identifies where a dynamic variable was defined
type VariableScope string

const (
	ScopeRequest     VariableScope = "request"
	ScopeCollection  VariableScope = "collection"
	ScopeEnvironment VariableScope = "environment"
)

// Scope is the set of variable sources a lookup runs against.
// Environment, Collection, Request and Cache may each be nil.
type Scope struct {
	Environment *types.Environment
	Collection  *types.Collection
	Request     *types.Request

	// Cache keeps generated dynamic values so repeated references within
	// one flow run observe the same value
	Cache *ValueCache
}

// VariableResolver substitutes {{ name }} placeholders.
//
// Lookup order for a name, first match wins:
//  1. collection static variables
//  2. environment static variables
//  3. request dynamic variables
//  4. collection dynamic variables
//  5. environment dynamic variables
//
// Unmatched placeholders are left verbatim.
type VariableResolver struct {
	generator Generator
}

// NewVariableResolver creates a new variable resolver.
// generator can be nil, in which case dynamic variables never resolve.
func NewVariableResolver(generator Generator) *VariableResolver {
	return &VariableResolver{generator: generator}
}

// Resolve replaces every placeholder in input that has a value in scope
func (vr *VariableResolver) Resolve(input string, scope Scope) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return varPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if value, ok := vr.GetVariableValue(name, scope); ok {
			return value
		}
		return match
	})
}

// GetVariableValue looks name up using the same precedence as Resolve
func (vr *VariableResolver) GetVariableValue(name string, scope Scope) (string, bool) {
	if name == "" {
		return "", false
	}

	if scope.Collection != nil {
		if value, ok := scope.Collection.Variables[name]; ok {
			return value, true
		}
	}
	if scope.Environment != nil {
		if value, ok := scope.Environment.Variables[name]; ok {
			return value, true
		}
	}

	if vr.generator == nil {
		return "", false
	}

	if scope.Request != nil {
		if value, ok := vr.generate(ScopeRequest, name, scope.Request.DynamicVariables, scope.Cache); ok {
			return value, true
		}
	}
	if scope.Collection != nil {
		if value, ok := vr.generate(ScopeCollection, name, scope.Collection.DynamicVariables, scope.Cache); ok {
			return value, true
		}
	}
	if scope.Environment != nil {
		if value, ok := vr.generate(ScopeEnvironment, name, scope.Environment.DynamicVariables, scope.Cache); ok {
			return value, true
		}
	}

	return "", false
}

func (vr *VariableResolver) generate(scope VariableScope, name string, defs []types.DynamicVariable, cache *ValueCache) (string, bool) {
	for _, def := range defs {
		if def.Name != name {
			continue
		}
		if value, ok := cache.Get(scope, name); ok {
			return value, true
		}
		value := vr.generator.GenerateValue(def)
		cache.Set(scope, name, value)
		return value, true
	}
	return "", false
}

// SetVariableValue writes a static variable. The collection receives it only
// when one is given and saveToCollection is set; otherwise the environment does.
func (vr *VariableResolver) SetVariableValue(name, value string, env *types.Environment, col *types.Collection, saveToCollection bool) {
	if col != nil && saveToCollection {
		if col.Variables == nil {
			col.Variables = make(map[string]string)
		}
		col.Variables[name] = value
		return
	}
	if env == nil {
		return
	}
	if env.Variables == nil {
		env.Variables = make(map[string]string)
	}
	env.Variables[name] = value
}

// UnresolvedVariables returns the names referenced in input that have no
// static or dynamic definition in scope. Nothing is generated.
func (vr *VariableResolver) UnresolvedVariables(input string, scope Scope) []string {
	var missing []string
	for _, name := range ExtractVariableNames(input) {
		if !vr.isDefined(name, scope) {
			missing = append(missing, name)
		}
	}
	return missing
}

// MissingRequestVariables returns the names referenced anywhere in req that
// have no static or dynamic definition in scope
func (vr *VariableResolver) MissingRequestVariables(req *types.Request, scope Scope) []string {
	if scope.Request == nil {
		scope.Request = req
	}
	var missing []string
	for _, name := range ExtractRequestVariables(req) {
		if !vr.isDefined(name, scope) {
			missing = append(missing, name)
		}
	}
	return missing
}

func (vr *VariableResolver) isDefined(name string, scope Scope) bool {
	if scope.Collection != nil {
		if _, ok := scope.Collection.Variables[name]; ok {
			return true
		}
	}
	if scope.Environment != nil {
		if _, ok := scope.Environment.Variables[name]; ok {
			return true
		}
	}
	if vr.generator == nil {
		return false
	}
	var lists [][]types.DynamicVariable
	if scope.Request != nil {
		lists = append(lists, scope.Request.DynamicVariables)
	}
	if scope.Collection != nil {
		lists = append(lists, scope.Collection.DynamicVariables)
	}
	if scope.Environment != nil {
		lists = append(lists, scope.Environment.DynamicVariables)
	}
	for _, defs := range lists {
		for _, def := range defs {
			if def.Name == name {
				return true
			}
		}
	}
	return false
}

// ExtractVariableNames extracts all unique variable names from a string
// Returns variable names without the {{ }} brackets, in order of first use
func ExtractVariableNames(input string) []string {
	matches := varPattern.FindAllStringSubmatch(input, -1)
	seen := make(map[string]bool)
	var names []string
	for _, match := range matches {
		if len(match) > 1 {
			name := strings.TrimSpace(match[1])
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// ExtractRequestVariables extracts all unique variable names from a request
// Includes variables from URL, headers, query, auth, body and protocol fields
func ExtractRequestVariables(req *types.Request) []string {
	seen := make(map[string]bool)
	var names []string

	addNames := func(input string) {
		for _, name := range ExtractVariableNames(input) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	for _, field := range templatedFields(req) {
		addNames(*field)
	}
	for _, key := range sortedKeys(req.Headers) {
		addNames(req.Headers[key])
	}
	for _, key := range sortedKeys(req.QueryParams) {
		addNames(req.QueryParams[key])
	}

	return names
}

// ResolveRequest returns a working copy of req with every templated field
// resolved. The stored request is left untouched.
func (vr *VariableResolver) ResolveRequest(req *types.Request, scope Scope) *types.Request {
	if scope.Request == nil {
		scope.Request = req
	}
	// One request observes one value per dynamic variable even without a run cache
	if scope.Cache == nil {
		scope.Cache = NewValueCache()
	}

	resolved := req.Clone()
	for _, field := range templatedFields(resolved) {
		*field = vr.Resolve(*field, scope)
	}
	for key, value := range resolved.Headers {
		resolved.Headers[key] = vr.Resolve(value, scope)
	}
	for key, value := range resolved.QueryParams {
		resolved.QueryParams[key] = vr.Resolve(value, scope)
	}
	return resolved
}

// templatedFields returns pointers to the scalar fields of req that may carry
// placeholders. The GraphQL document itself is excluded: nested selection
// sets legitimately contain "}}".
func templatedFields(req *types.Request) []*string {
	fields := []*string{
		&req.URL,
		&req.Body.Content,
		&req.Auth.Username,
		&req.Auth.Password,
		&req.Auth.Token,
	}
	if req.Auth.OAuth2 != nil {
		fields = append(fields,
			&req.Auth.OAuth2.TokenURL,
			&req.Auth.OAuth2.ClientID,
			&req.Auth.OAuth2.ClientSecret,
		)
	}
	if req.GraphQL != nil {
		fields = append(fields, &req.GraphQL.Variables)
	}
	if req.WebSocket != nil {
		fields = append(fields, &req.WebSocket.Message)
	}
	return fields
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
