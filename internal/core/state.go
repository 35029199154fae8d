package core

import "sort"

// State is the data shared between the Actions of one Behaviour invocation.
// A fresh State is created for every event; it is owned by that chain alone
// and is not safe for concurrent use.
type State struct {
	values map[string]any
}

// NewState returns an empty State.
func NewState() *State {
	return &State{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (s *State) GetString(key string) (string, bool) {
	v, ok := s.values[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Set stores value under key, replacing any earlier value.
func (s *State) Set(key string, value any) {
	s.values[key] = value
}

// Delete removes key.
func (s *State) Delete(key string) {
	delete(s.values, key)
}

// Len returns the number of keys.
func (s *State) Len() int {
	return len(s.values)
}

// Keys returns the keys in sorted order.
func (s *State) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the stored values, for templates and logging.
func (s *State) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
