// Package state implements the tree-structured loop state.
//
// A State is an ordered tree of named fields; each field holds either a leaf
// tensor or a nested sub-state. States flatten to a deterministic leaf list
// and reassemble from one, and two states can be compared structurally (field
// names, nesting, leaf shapes and dtypes) independent of their values.
//
// States are treated as immutable values: operations return new states and
// leaves are shared copy-on-write, so snapshotting a state is cheap.
package state

import (
	"strings"

	"github.com/scanrev-ml/scanrev/internal/tensor"
)

// Field is a single named entry of a State: either a leaf tensor or a nested
// sub-state, never both.
type Field struct {
	Name string
	Leaf *tensor.RawTensor
	Sub  *State
}

// State is an ordered tree of named fields.
// Field order is insertion order and is part of the structure.
type State struct {
	fields []Field
}

// New creates an empty state.
func New() *State {
	return &State{}
}

// Set appends a leaf field and returns the state for chaining.
// Panics if the name is already taken.
func (s *State) Set(name string, leaf *tensor.RawTensor) *State {
	s.checkFresh(name)
	s.fields = append(s.fields, Field{Name: name, Leaf: leaf})
	return s
}

// SetSub appends a nested sub-state field and returns the state for chaining.
// Panics if the name is already taken.
func (s *State) SetSub(name string, sub *State) *State {
	s.checkFresh(name)
	s.fields = append(s.fields, Field{Name: name, Sub: sub})
	return s
}

func (s *State) checkFresh(name string) {
	for _, f := range s.fields {
		if f.Name == name {
			panic("state: duplicate field name " + name)
		}
	}
}

// Get returns the leaf tensor of the named field, or nil if the field is
// missing or is a sub-state.
func (s *State) Get(name string) *tensor.RawTensor {
	for _, f := range s.fields {
		if f.Name == name {
			return f.Leaf
		}
	}
	return nil
}

// Sub returns the named sub-state, or nil if the field is missing or is a leaf.
func (s *State) Sub(name string) *State {
	for _, f := range s.fields {
		if f.Name == name {
			return f.Sub
		}
	}
	return nil
}

// Fields returns a copy of the field list.
func (s *State) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// NumLeaves returns the number of leaf tensors in the tree.
func (s *State) NumLeaves() int {
	n := 0
	for _, f := range s.fields {
		if f.Sub != nil {
			n += f.Sub.NumLeaves()
		} else {
			n++
		}
	}
	return n
}

// Leaves returns the leaf tensors in depth-first field order.
// The order is deterministic and the same for structurally equal states.
func (s *State) Leaves() []*tensor.RawTensor {
	leaves := make([]*tensor.RawTensor, 0, len(s.fields))
	return s.appendLeaves(leaves)
}

func (s *State) appendLeaves(leaves []*tensor.RawTensor) []*tensor.RawTensor {
	for _, f := range s.fields {
		if f.Sub != nil {
			leaves = f.Sub.appendLeaves(leaves)
		} else {
			leaves = append(leaves, f.Leaf)
		}
	}
	return leaves
}

// FromLeaves builds a state with the same structure as the template, taking
// leaf tensors from the given list in depth-first order.
// Panics if the number of leaves does not match the template structure.
func FromLeaves(template *State, leaves []*tensor.RawTensor) *State {
	out, rest := fromLeaves(template, leaves)
	if len(rest) != 0 {
		panic("state: leaf count does not match template structure")
	}
	return out
}

func fromLeaves(template *State, leaves []*tensor.RawTensor) (*State, []*tensor.RawTensor) {
	out := New()
	for _, f := range template.fields {
		if f.Sub != nil {
			var sub *State
			sub, leaves = fromLeaves(f.Sub, leaves)
			out.SetSub(f.Name, sub)
			continue
		}
		if len(leaves) == 0 {
			panic("state: leaf count does not match template structure")
		}
		out.Set(f.Name, leaves[0])
		leaves = leaves[1:]
	}
	return out, leaves
}

// Clone returns a snapshot of the state. Leaves are shared copy-on-write, so
// this is cheap; the clone behaves as an immutable copy.
func (s *State) Clone() *State {
	out := New()
	for _, f := range s.fields {
		if f.Sub != nil {
			out.SetSub(f.Name, f.Sub.Clone())
		} else {
			out.Set(f.Name, f.Leaf.Clone())
		}
	}
	return out
}

// Release drops the state's references to its leaf buffers.
// Called when a checkpoint snapshot has been consumed.
func (s *State) Release() {
	for _, f := range s.fields {
		if f.Sub != nil {
			f.Sub.Release()
		} else {
			f.Leaf.Release()
		}
	}
}

// ByteSize returns the total leaf memory in bytes.
func (s *State) ByteSize() int {
	total := 0
	for _, f := range s.fields {
		if f.Sub != nil {
			total += f.Sub.ByteSize()
		} else {
			total += f.Leaf.ByteSize()
		}
	}
	return total
}

// String returns the structure descriptor, e.g. "{v: f32(3), x: f32(3)}".
// Values are not included.
func (s *State) String() string {
	var b strings.Builder
	s.writeStructure(&b)
	return b.String()
}

func (s *State) writeStructure(b *strings.Builder) {
	b.WriteString("{")
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		if f.Sub != nil {
			f.Sub.writeStructure(b)
		} else {
			b.WriteString(dtypeShort(f.Leaf.DType()))
			b.WriteString(f.Leaf.Shape().String())
		}
	}
	b.WriteString("}")
}

func dtypeShort(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return "f32"
	case tensor.Float64:
		return "f64"
	default:
		return "?"
	}
}
