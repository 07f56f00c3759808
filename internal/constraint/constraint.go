// Package constraint provides the membership and range checks each provider
// integration runs against its declared parameter tables before any network
// call.
package constraint

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"genix/internal/gen"
)

// String is an enumerated string parameter.
type String struct {
	Field   string
	Allowed []string
}

// Contains reports membership without constructing an error.
func (c String) Contains(v string) bool {
	for _, a := range c.Allowed {
		if a == v {
			return true
		}
	}
	return false
}

// Check returns a ValidationError naming the field and the allowed set when
// v is not a member.
func (c String) Check(v string) error {
	if c.Contains(v) {
		return nil
	}
	return gen.NewValidationError(c.Field, "%q is not supported (allowed: %s)",
		v, strings.Join(c.Allowed, ", "))
}

// Int is an enumerated integer parameter.
type Int struct {
	Field   string
	Allowed []int
}

func (c Int) Contains(v int) bool {
	for _, a := range c.Allowed {
		if a == v {
			return true
		}
	}
	return false
}

func (c Int) Check(v int) error {
	if c.Contains(v) {
		return nil
	}
	allowed := make([]string, len(c.Allowed))
	for i, a := range c.Allowed {
		allowed[i] = strconv.Itoa(a)
	}
	return gen.NewValidationError(c.Field, "%d is not supported (allowed: %s)",
		v, strings.Join(allowed, ", "))
}

// FloatRange is a bounded float parameter, inclusive on both ends.
type FloatRange struct {
	Field    string
	Min, Max float64
}

func (c FloatRange) Check(v float64) error {
	if v < c.Min || v > c.Max {
		return gen.NewValidationError(c.Field, "must be between %s and %s",
			trimFloat(c.Min), trimFloat(c.Max))
	}
	return nil
}

// IntRange is a bounded integer parameter, inclusive on both ends.
type IntRange struct {
	Field    string
	Min, Max int
}

func (c IntRange) Check(v int) error {
	if v < c.Min || v > c.Max {
		return gen.NewValidationError(c.Field, "must be between %d and %d", c.Min, c.Max)
	}
	return nil
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MaxLen checks a string length ceiling in characters, not bytes, used for
// names and prompts with a declared maximum.
func MaxLen(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return gen.NewValidationError(field, "must be at most %d characters", max)
	}
	return nil
}
