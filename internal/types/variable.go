package types

import (
	"fmt"
	"strconv"
	"time"
)

// GeneratorType names the kind of synthetic value a DynamicVariable produces
type GeneratorType string

const (
	GenFirstName GeneratorType = "first_name"
	GenLastName  GeneratorType = "last_name"
	GenFullName  GeneratorType = "full_name"
	GenEmail     GeneratorType = "email"
	GenUUID      GeneratorType = "uuid"
	GenInteger   GeneratorType = "integer"
	GenDate      GeneratorType = "date"
	GenBirthDate GeneratorType = "birth_date"
	GenBoolean   GeneratorType = "boolean"
)

// ConstraintType names a bound applied while generating a value
type ConstraintType string

const (
	ConstraintMinimum    ConstraintType = "minimum"
	ConstraintMaximum    ConstraintType = "maximum"
	ConstraintMinimumAge ConstraintType = "minimum_age"
	ConstraintMaximumAge ConstraintType = "maximum_age"
)

// DateLayout is the layout of date constraint values and generated dates
const DateLayout = "2006-01-02"

// ConstraintRule bounds a generated value. Value is parsed according to Type
// and to the owning variable's generator type.
type ConstraintRule struct {
	Type  ConstraintType `json:"type" yaml:"type"`
	Value string         `json:"value" yaml:"value"`
}

// DynamicVariable is a named generator configuration whose value is computed on demand
type DynamicVariable struct {
	Name        string           `json:"name" yaml:"name"`
	Type        GeneratorType    `json:"type" yaml:"type"`
	Constraints []ConstraintRule `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// Constraint returns the value of the first rule of the given type
func (v DynamicVariable) Constraint(t ConstraintType) (string, bool) {
	for _, c := range v.Constraints {
		if c.Type == t {
			return c.Value, true
		}
	}
	return "", false
}

// Validate checks the variable name and that every constraint value
// parses for the declared generator type
func (v DynamicVariable) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("dynamic variable: name is empty")
	}
	for _, c := range v.Constraints {
		if err := validateConstraint(v.Type, c); err != nil {
			return fmt.Errorf("dynamic variable '%s': %w", v.Name, err)
		}
	}
	return nil
}

func validateConstraint(gen GeneratorType, c ConstraintRule) error {
	switch c.Type {
	case ConstraintMinimumAge, ConstraintMaximumAge:
		if _, err := strconv.Atoi(c.Value); err != nil {
			return fmt.Errorf("constraint %s: %q is not an integer", c.Type, c.Value)
		}
	case ConstraintMinimum, ConstraintMaximum:
		switch gen {
		case GenDate, GenBirthDate:
			if _, err := time.Parse(DateLayout, c.Value); err != nil {
				return fmt.Errorf("constraint %s: %q is not a date (%s)", c.Type, c.Value, DateLayout)
			}
		default:
			if _, err := strconv.Atoi(c.Value); err != nil {
				return fmt.Errorf("constraint %s: %q is not an integer", c.Type, c.Value)
			}
		}
	default:
		return fmt.Errorf("unknown constraint type %q", c.Type)
	}
	return nil
}
