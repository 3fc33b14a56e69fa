package state

import (
	"github.com/pkg/errors"
)

// CheckSameStructure reports, with a field path, the first structural
// difference between two states: field names, order, nesting, leaf shapes, or
// leaf dtypes. Returns nil when the structures match exactly.
//
// Leaf values are never compared; structure is a property of the tree shape.
func CheckSameStructure(a, b *State) error {
	return checkSameStructure(a, b, "")
}

func checkSameStructure(a, b *State, path string) error {
	if len(a.fields) != len(b.fields) {
		return errors.Errorf("field count differs at %q: %d vs %d (%s vs %s)",
			displayPath(path), len(a.fields), len(b.fields), a, b)
	}
	for i := range a.fields {
		fa, fb := a.fields[i], b.fields[i]
		fieldPath := path + "/" + fa.Name
		if fa.Name != fb.Name {
			return errors.Errorf("field name differs at %q: %q vs %q",
				displayPath(path), fa.Name, fb.Name)
		}
		switch {
		case fa.Sub != nil && fb.Sub != nil:
			if err := checkSameStructure(fa.Sub, fb.Sub, fieldPath); err != nil {
				return err
			}
		case fa.Sub != nil || fb.Sub != nil:
			return errors.Errorf("field %q is a sub-state on one side and a leaf on the other",
				displayPath(fieldPath))
		default:
			if fa.Leaf.DType() != fb.Leaf.DType() {
				return errors.Errorf("leaf %q dtype differs: %s vs %s",
					displayPath(fieldPath), fa.Leaf.DType(), fb.Leaf.DType())
			}
			if !fa.Leaf.Shape().Equal(fb.Leaf.Shape()) {
				return errors.Errorf("leaf %q shape differs: %s vs %s",
					displayPath(fieldPath), fa.Leaf.Shape(), fb.Leaf.Shape())
			}
		}
	}
	return nil
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
