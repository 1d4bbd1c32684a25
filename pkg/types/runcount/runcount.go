// Package runcount implements the count of impairment cycles a profile
// executes, which is either a non-negative integer or the word "unbounded".
package runcount

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Unbounded is the Count of a profile that cycles until cancelled
const Unbounded = Count("unbounded")

// Count holds a number of cycles that can be either an integer or "unbounded"
type Count string

// Parse validates the given string and returns it as a Count
func Parse(value string) (Count, error) {
	if Count(value) == Unbounded {
		return Unbounded, nil
	}

	runs, err := strconv.Atoi(value)
	if err != nil {
		return Count(""), fmt.Errorf("count must be a number or %q: %q", Unbounded, value)
	}

	if runs < 0 {
		return Count(""), fmt.Errorf("count cannot be negative: %d", runs)
	}

	return Count(value), nil
}

// FromInt returns a Count from an int
func FromInt(value int) Count {
	return Count(strconv.Itoa(value))
}

// IsUnbounded returns true if the Count never ends
func (c Count) IsUnbounded() bool {
	return c == Unbounded
}

// Value returns the Count as an int.
// It panics if the Count is unbounded or was not built by Parse or FromInt.
func (c Count) Value() int {
	runs, err := strconv.Atoi(string(c))
	if err != nil {
		panic(fmt.Errorf("invalid count value %q", string(c)))
	}

	return runs
}

// Reached indicates if the given number of completed cycles satisfies the
// Count. It is never satisfied for an unbounded Count.
func (c Count) Reached(completed int) bool {
	if c.IsUnbounded() {
		return false
	}

	return completed >= c.Value()
}

// Str returns the value of the Count as a string
func (c Count) Str() string {
	return string(c)
}

// UnmarshalYAML decodes a Count from either an integer or a string scalar
func (c *Count) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := Parse(node.Value)
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}
