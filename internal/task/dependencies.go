package task

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DependencySet is an ordered, duplicate-free set of prerequisite task ids.
// Its boundary form is a comma-joined string ("a,b"); order is kept for
// display only and has no bearing on validity.
type DependencySet []string

// ParseDependencies parses the comma-joined form. Ids are trimmed, empty
// entries dropped, and duplicates collapsed keeping the first occurrence.
func ParseDependencies(s string) DependencySet {
	return NewDependencySet(strings.Split(s, ",")...)
}

// NewDependencySet builds a set from ids, trimming and de-duplicating them.
func NewDependencySet(ids ...string) DependencySet {
	var out DependencySet
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// String returns the comma-joined form.
func (d DependencySet) String() string {
	return strings.Join(d, ",")
}

// Contains reports whether id is in the set.
func (d DependencySet) Contains(id string) bool {
	for _, dep := range d {
		if dep == id {
			return true
		}
	}
	return false
}

// Without returns a copy of the set with id removed.
func (d DependencySet) Without(id string) DependencySet {
	var out DependencySet
	for _, dep := range d {
		if dep != id {
			out = append(out, dep)
		}
	}
	return out
}

// Equal reports whether both sets hold the same ids, ignoring order.
func (d DependencySet) Equal(other DependencySet) bool {
	if len(d) != len(other) {
		return false
	}
	for _, id := range d {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (d DependencySet) Clone() DependencySet {
	if d == nil {
		return nil
	}
	return append(DependencySet(nil), d...)
}

// MarshalJSON always emits the comma-joined string.
func (d DependencySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts the comma-joined string, an array of ids, or null.
func (d *DependencySet) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*d = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("dependencies: %w", err)
		}
		*d = NewDependencySet(ids...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("dependencies must be a string or list of ids: %w", err)
	}
	*d = ParseDependencies(s)
	return nil
}

// MarshalYAML emits the comma-joined string.
func (d DependencySet) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a scalar string or a sequence of ids.
func (d *DependencySet) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ids []string
	if err := unmarshal(&ids); err == nil {
		*d = NewDependencySet(ids...)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("dependencies must be a string or list of ids: %w", err)
	}
	*d = ParseDependencies(s)
	return nil
}
