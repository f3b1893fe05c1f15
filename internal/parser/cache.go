package parser

type cacheKey struct {
	scope VariableScope
	name  string
}

// ValueCache holds generated dynamic-variable values keyed by (scope, name).
// A cache belongs to a single flow run and is not safe for concurrent use.
// A nil *ValueCache is valid and caches nothing.
type ValueCache struct {
	values map[cacheKey]string
}

// NewValueCache creates an empty cache
func NewValueCache() *ValueCache {
	return &ValueCache{values: make(map[cacheKey]string)}
}

// Get returns the cached value for name in scope
func (c *ValueCache) Get(scope VariableScope, name string) (string, bool) {
	if c == nil {
		return "", false
	}
	value, ok := c.values[cacheKey{scope: scope, name: name}]
	return value, ok
}

// Set stores value for name in scope
func (c *ValueCache) Set(scope VariableScope, name, value string) {
	if c == nil {
		return
	}
	c.values[cacheKey{scope: scope, name: name}] = value
}

// Len returns the number of cached values
func (c *ValueCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}
