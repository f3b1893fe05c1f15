package workspace

import (
	"fmt"
	"sort"

	"github.com/studiowebux/restflow/internal/types"
)

// Store is an in-memory index of a loaded workspace. Lookups of unknown ids
// return errors wrapping types.ErrNotFound.
type Store struct {
	requests     map[string]*types.Request
	collections  map[string]*types.Collection
	environments map[string]*types.Environment
	flows        map[string]*types.Flow
}

func NewStore() *Store {
	return &Store{
		requests:     make(map[string]*types.Request),
		collections:  make(map[string]*types.Collection),
		environments: make(map[string]*types.Environment),
		flows:        make(map[string]*types.Flow),
	}
}

// AddRequest registers req. The kind defaults from the populated shape.
func (s *Store) AddRequest(req types.Request) error {
	if req.ID == "" {
		return fmt.Errorf("request has no id")
	}
	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("duplicate request id '%s'", req.ID)
	}
	if req.Kind == "" {
		req.Kind = inferKind(&req)
	}
	for _, dv := range req.DynamicVariables {
		if err := dv.Validate(); err != nil {
			return fmt.Errorf("request '%s': %w", req.ID, err)
		}
	}
	s.requests[req.ID] = &req
	return nil
}

func (s *Store) AddCollection(col types.Collection) error {
	if col.ID == "" {
		return fmt.Errorf("collection has no id")
	}
	if _, exists := s.collections[col.ID]; exists {
		return fmt.Errorf("duplicate collection id '%s'", col.ID)
	}
	for _, dv := range col.DynamicVariables {
		if err := dv.Validate(); err != nil {
			return fmt.Errorf("collection '%s': %w", col.ID, err)
		}
	}
	s.collections[col.ID] = &col
	return nil
}

func (s *Store) AddEnvironment(env types.Environment) error {
	if env.ID == "" {
		return fmt.Errorf("environment has no id")
	}
	if _, exists := s.environments[env.ID]; exists {
		return fmt.Errorf("duplicate environment id '%s'", env.ID)
	}
	for _, dv := range env.DynamicVariables {
		if err := dv.Validate(); err != nil {
			return fmt.Errorf("environment '%s': %w", env.ID, err)
		}
	}
	s.environments[env.ID] = &env
	return nil
}

func (s *Store) AddFlow(flow types.Flow) error {
	if flow.ID == "" {
		return fmt.Errorf("flow has no id")
	}
	if _, exists := s.flows[flow.ID]; exists {
		return fmt.Errorf("duplicate flow id '%s'", flow.ID)
	}
	if err := flow.Validate(); err != nil {
		return err
	}
	s.flows[flow.ID] = &flow
	return nil
}

func (s *Store) GetRequest(id string) (*types.Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request '%s': %w", id, types.ErrNotFound)
	}
	return req, nil
}

func (s *Store) GetCollection(id string) (*types.Collection, error) {
	col, ok := s.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection '%s': %w", id, types.ErrNotFound)
	}
	return col, nil
}

func (s *Store) GetEnvironment(id string) (*types.Environment, error) {
	env, ok := s.environments[id]
	if !ok {
		return nil, fmt.Errorf("environment '%s': %w", id, types.ErrNotFound)
	}
	return env, nil
}

func (s *Store) GetFlow(id string) (*types.Flow, error) {
	flow, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("flow '%s': %w", id, types.ErrNotFound)
	}
	return flow, nil
}

// OverlayVariables sets static variables on a loaded environment. It only
// changes the in-memory copy; files on disk are never written.
func (s *Store) OverlayVariables(environmentID string, vars map[string]string) error {
	env, err := s.GetEnvironment(environmentID)
	if err != nil {
		return err
	}
	if env.Variables == nil {
		env.Variables = make(map[string]string, len(vars))
	}
	for name, value := range vars {
		env.Variables[name] = value
	}
	return nil
}

// Requests returns all requests sorted by id
func (s *Store) Requests() []*types.Request {
	return sortedValues(s.requests)
}

// Environments returns all environments sorted by id
func (s *Store) Environments() []*types.Environment {
	return sortedValues(s.environments)
}

// Flows returns all flows sorted by id
func (s *Store) Flows() []*types.Flow {
	return sortedValues(s.flows)
}

func sortedValues[T any](m map[string]*T) []*T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func inferKind(req *types.Request) types.RequestKind {
	switch {
	case req.GraphQL != nil:
		return types.KindGraphQL
	case req.WebSocket != nil:
		return types.KindWebSocket
	default:
		return types.KindRest
	}
}
