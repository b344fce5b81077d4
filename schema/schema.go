// Package schema describes the attributes of the examples a reader yields:
// one named, typed, shaped tensor per attribute. A reader infers its schema
// from the first instance of the first epoch and every subsequent batch must
// decode to the same attributes.
package schema

import (
	"fmt"
	"strings"

	"gorgonia.org/tensor"
)

// Attribute is one named tensor slot of an example. The leading dimension of
// Shape is the batch dimension.
type Attribute struct {
	Name  string
	Dtype tensor.Dtype
	Shape tensor.Shape
}

func (a Attribute) String() string {
	return fmt.Sprintf("%s:%v%v", a.Name, a.Dtype, a.Shape)
}

// Equal reports whether two attributes have the same name, dtype and shape.
func (a Attribute) Equal(other Attribute) bool {
	return a.Name == other.Name && a.Dtype == other.Dtype && a.Shape.Eq(other.Shape)
}

// Schema is the ordered attribute list of a reader's examples.
type Schema struct {
	Attributes []Attribute
}

// New creates a schema over the given attributes.
func New(attributes ...Attribute) *Schema {
	return &Schema{Attributes: attributes}
}

// Equal reports whether both schemas have the same attributes in the same
// order.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Attributes) != len(other.Attributes) {
		return false
	}
	for i, a := range s.Attributes {
		if !a.Equal(other.Attributes[i]) {
			return false
		}
	}
	return true
}

// Accepts reports whether a batch with the given attributes conforms to the
// schema. It is Equal relaxed on the batch dimension: the final batch of an
// epoch may be shorter than the schema's batch size but never longer.
func (s *Schema) Accepts(attributes []Attribute) bool {
	if len(attributes) != len(s.Attributes) {
		return false
	}
	for i, got := range attributes {
		want := s.Attributes[i]
		if got.Name != want.Name || got.Dtype != want.Dtype {
			return false
		}
		if len(got.Shape) != len(want.Shape) {
			return false
		}
		for d, size := range got.Shape {
			if d == 0 {
				if size > want.Shape[0] {
					return false
				}
				continue
			}
			if size != want.Shape[d] {
				return false
			}
		}
	}
	return true
}

func (s *Schema) String() string {
	if s == nil {
		return "schema()"
	}
	parts := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		parts[i] = a.String()
	}
	return "schema(" + strings.Join(parts, ", ") + ")"
}
