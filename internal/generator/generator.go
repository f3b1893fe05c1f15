// Package generator produces synthetic values for dynamic variables.
package generator

import (
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/studiowebux/restflow/internal/types"
)

const (
	defaultIntMin    = 0
	defaultIntMax    = 1000
	defaultMinAge    = 18
	defaultMaxAge    = 80
	defaultDateSpanY = 10
)

// Generator produces values for dynamic variables. Safe for concurrent use.
type Generator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
	now   func() time.Time
	newID func() string
}

// Option configures a Generator
type Option func(*Generator)

// WithSeed makes generated values reproducible
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.faker = gofakeit.New(seed) }
}

// WithNow overrides the clock used for date and age bounds
func WithNow(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithIDFunc overrides identifier generation
func WithIDFunc(fn func() string) Option {
	return func(g *Generator) { g.newID = fn }
}

// New creates a Generator with a randomly seeded faker
func New(opts ...Option) *Generator {
	g := &Generator{
		faker: gofakeit.New(0),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidateConfiguration returns false when the name is empty, the generator
// type is unknown, or a constraint value does not parse for its type
func (g *Generator) ValidateConfiguration(v types.DynamicVariable) bool {
	if !isKnown(v.Type) {
		return false
	}
	return v.Validate() == nil
}

// GenerateValue returns a fresh value for v. Constraints that fail to parse
// are ignored and defaults apply; unknown generator types yield "".
func (g *Generator) GenerateValue(v types.DynamicVariable) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch v.Type {
	case types.GenFirstName:
		return g.faker.FirstName()
	case types.GenLastName:
		return g.faker.LastName()
	case types.GenFullName:
		return g.faker.FirstName() + " " + g.faker.LastName()
	case types.GenEmail:
		return g.faker.Email()
	case types.GenUUID:
		return g.newID()
	case types.GenBoolean:
		return strconv.FormatBool(g.faker.Bool())
	case types.GenInteger:
		lo := intConstraint(v, types.ConstraintMinimum, defaultIntMin)
		hi := intConstraint(v, types.ConstraintMaximum, defaultIntMax)
		if lo > hi {
			lo, hi = hi, lo
		}
		return strconv.Itoa(g.faker.IntRange(lo, hi))
	case types.GenDate:
		now := g.now()
		lo := dateConstraint(v, types.ConstraintMinimum, now.AddDate(-defaultDateSpanY, 0, 0))
		hi := dateConstraint(v, types.ConstraintMaximum, now)
		return g.dateBetween(lo, hi).Format(types.DateLayout)
	case types.GenBirthDate:
		now := g.now()
		minAge := intConstraint(v, types.ConstraintMinimumAge, defaultMinAge)
		maxAge := intConstraint(v, types.ConstraintMaximumAge, defaultMaxAge)
		if minAge > maxAge {
			minAge, maxAge = maxAge, minAge
		}
		// Oldest allowed birth date is one day after turning maxAge+1
		lo := now.AddDate(-(maxAge + 1), 0, 1)
		hi := now.AddDate(-minAge, 0, 0)
		return g.dateBetween(lo, hi).Format(types.DateLayout)
	default:
		return ""
	}
}

func (g *Generator) dateBetween(lo, hi time.Time) time.Time {
	if lo.After(hi) {
		lo, hi = hi, lo
	}
	if lo.Equal(hi) {
		return lo
	}
	return g.faker.DateRange(lo, hi)
}

func intConstraint(v types.DynamicVariable, t types.ConstraintType, def int) int {
	raw, ok := v.Constraint(t)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func dateConstraint(v types.DynamicVariable, t types.ConstraintType, def time.Time) time.Time {
	raw, ok := v.Constraint(t)
	if !ok {
		return def
	}
	d, err := time.Parse(types.DateLayout, raw)
	if err != nil {
		return def
	}
	return d
}

func isKnown(t types.GeneratorType) bool {
	switch t {
	case types.GenFirstName, types.GenLastName, types.GenFullName, types.GenEmail,
		types.GenUUID, types.GenInteger, types.GenDate, types.GenBirthDate, types.GenBoolean:
		return true
	}
	return false
}
