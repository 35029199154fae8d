package core

import (
	"reflect"
	"sort"
)

// TypeSet is a static set of event types declared by a component.
//
// It is a pre-filter only. A declared interface type accepts every event that
// implements it, which is how a component accepts "subtypes" of what it
// declares: platform events embed a generic event struct and satisfy its
// interface.
type TypeSet struct {
	types map[reflect.Type]struct{}
}

// TypeOf returns the reflect.Type of T. For interface types it returns the
// interface itself, not the dynamic type of a value.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Types builds a TypeSet from the given types. Nil entries are ignored.
func Types(types ...reflect.Type) TypeSet {
	s := TypeSet{types: make(map[reflect.Type]struct{}, len(types))}
	for _, t := range types {
		if t != nil {
			s.types[t] = struct{}{}
		}
	}
	return s
}

// Len returns the number of declared types.
func (s TypeSet) Len() int {
	return len(s.types)
}

// Contains reports whether t was declared, without subtype matching.
func (s TypeSet) Contains(t reflect.Type) bool {
	_, ok := s.types[t]
	return ok
}

// Union returns a new set with the types of s and every other set.
func (s TypeSet) Union(others ...TypeSet) TypeSet {
	out := Types(s.Types()...)
	for _, o := range others {
		for t := range o.types {
			out.types[t] = struct{}{}
		}
	}
	return out
}

// Types returns the declared types ordered by their string form.
func (s TypeSet) Types() []reflect.Type {
	out := make([]reflect.Type, 0, len(s.types))
	for t := range s.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Accepts reports whether v's concrete type is one of the declared types, a
// pointer to one, or implements a declared interface type.
func (s TypeSet) Accepts(v any) bool {
	if v == nil || len(s.types) == 0 {
		return false
	}
	return s.AcceptsType(reflect.TypeOf(v))
}

// AcceptsType is Accepts for a type known without an instance.
func (s TypeSet) AcceptsType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if s.Contains(t) {
		return true
	}
	if t.Kind() == reflect.Pointer && s.Contains(t.Elem()) {
		return true
	}
	for declared := range s.types {
		if declared.Kind() == reflect.Interface && t.Implements(declared) {
			return true
		}
	}
	return false
}

// As returns v as a T when v is a T or a non-nil *T, the two forms a
// TypeSet declaring T accepts.
func As[T any](v any) (T, bool) {
	switch e := v.(type) {
	case T:
		return e, true
	case *T:
		if e != nil {
			return *e, true
		}
	}
	var zero T
	return zero, false
}

// Overlaps reports whether any type in other would be accepted by s. Used to
// check that an Action's declared outputs have somewhere to go.
func (s TypeSet) Overlaps(other TypeSet) bool {
	for t := range other.types {
		if s.AcceptsType(t) {
			return true
		}
		// A declared interface in other may be satisfied by a concrete type in s.
		if t.Kind() == reflect.Interface {
			for mine := range s.types {
				if mine.Implements(t) {
					return true
				}
			}
		}
	}
	return false
}

// String lists the declared types.
func (s TypeSet) String() string {
	out := "{"
	for i, t := range s.Types() {
		if i > 0 {
			out += ", "
		}
		out += t.String()
	}
	return out + "}"
}
