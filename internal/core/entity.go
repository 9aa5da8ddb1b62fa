package core

import "fmt"

// EntityKind is the closed set of entity kinds.
type EntityKind string

const (
	FileKind      EntityKind = "File"
	ClassKind     EntityKind = "Class"
	InterfaceKind EntityKind = "Interface"
	MethodKind    EntityKind = "Method"
	FunctionKind  EntityKind = "Function"
	FieldKind     EntityKind = "Field"
	VariableKind  EntityKind = "Variable"
)

var entityKinds = []EntityKind{FileKind, ClassKind, InterfaceKind, MethodKind, FunctionKind, FieldKind, VariableKind}

// ParseEntityKind converts a stored name to an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	for _, k := range entityKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Entity is a named program element. StartRow and EndRow are zero-based and
// inclusive.
type Entity struct {
	Id        EntityId
	ParentId  *EntityId
	Name      string
	Kind      EntityKind
	ContentId ContentId
	StartRow  int
	EndRow    int
}

// Contains reports whether row falls inside the entity's row range.
func (e *Entity) Contains(row int) bool {
	return row >= e.StartRow && row <= e.EndRow
}
