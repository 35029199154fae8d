package core

import (
	"fmt"
	"reflect"
)

// ComponentKind enumerates the meta-types of component a bot is built from.
// Template and DataSource are reserved and have no interface yet.
type ComponentKind string

const (
	KindBehaviour  ComponentKind = "Behaviour"
	KindTrigger    ComponentKind = "Trigger"
	KindCondition  ComponentKind = "Condition"
	KindAction     ComponentKind = "Action"
	KindIOConfig   ComponentKind = "IOConfig"
	KindTemplate   ComponentKind = "Template"
	KindDataSource ComponentKind = "DataSource"
)

var kinds = []ComponentKind{
	KindBehaviour,
	KindTrigger,
	KindCondition,
	KindAction,
	KindIOConfig,
	KindTemplate,
	KindDataSource,
}

var kindInterfaces = map[ComponentKind]reflect.Type{
	KindBehaviour: TypeOf[Behaviour](),
	KindTrigger:   TypeOf[Trigger](),
	KindCondition: TypeOf[Condition](),
	KindAction:    TypeOf[Action](),
	KindIOConfig:  TypeOf[IOConfig](),
}

// Values lists every ComponentKind in declaration order.
func Values() []ComponentKind {
	out := make([]ComponentKind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseComponentKind converts s to a ComponentKind.
func ParseComponentKind(s string) (ComponentKind, error) {
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &InvalidValueError{Value: s}
}

func (k ComponentKind) String() string {
	return string(k)
}

// Interface maps kind to the interface components of that kind implement.
// Template, DataSource and unknown values return an *InvalidValueError.
func Interface(kind ComponentKind) (reflect.Type, error) {
	if t, ok := kindInterfaces[kind]; ok {
		return t, nil
	}
	return nil, &InvalidValueError{Value: string(kind)}
}

// Implements checks that t implements the interface for kind.
func Implements(kind ComponentKind, t reflect.Type) error {
	iface, err := Interface(kind)
	if err != nil {
		return err
	}
	if t == nil || !t.Implements(iface) {
		return fmt.Errorf("%v does not implement %s", t, iface)
	}
	return nil
}

// CheckComponent checks that value implements the interface for kind.
func CheckComponent(kind ComponentKind, value Component) error {
	return Implements(kind, reflect.TypeOf(value))
}

// KindsOf lists the interface-backed kinds value implements.
func KindsOf(value Component) []ComponentKind {
	t := reflect.TypeOf(value)
	if t == nil {
		return nil
	}
	var out []ComponentKind
	for _, k := range kinds {
		if iface, ok := kindInterfaces[k]; ok && t.Implements(iface) {
			out = append(out, k)
		}
	}
	return out
}
