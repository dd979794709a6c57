package view

import (
	"fmt"
)

// Entity types and their fields, as understood by the resolver.
const (
	TypeBlock       = "Block"
	TypeTransaction = "Transaction"

	FieldHeight          = "height"
	FieldHash            = "hash"
	FieldParentHash      = "parent_hash"
	FieldTimestamp       = "timestamp"
	FieldProposer        = "proposer"
	FieldGasUsed         = "gas_used"
	FieldSize            = "size"
	FieldNumTransactions = "num_transactions"
	FieldTransactions    = "transactions"

	FieldBlock     = "block"
	FieldIndex     = "index"
	FieldSender    = "sender"
	FieldRecipient = "recipient"
	FieldMethod    = "method"
	FieldFee       = "fee"
	FieldSuccess   = "success"
)

// Fragment declares the fields of an entity that a view reads. Fragments
// compose: a view spreads in the fragments of its children and selects
// nested fragments for object and list fields.
type Fragment struct {
	Name       string
	On         string
	Fields     []string
	Spreads    []*Fragment
	Selections []Selection
}

// Selection is a fragment applied to a nested object or list field.
type Selection struct {
	Field    string
	Fragment *Fragment
}

// ScalarFields returns the scalar fields of the fragment and everything it
// spreads, de-duplicated, in declaration order (spreads first).
func (f *Fragment) ScalarFields() []string {
	seen := map[string]bool{}
	var out []string
	f.walk(func(frag *Fragment) {
		for _, field := range frag.Fields {
			if !seen[field] {
				seen[field] = true
				out = append(out, field)
			}
		}
	})
	return out
}

// Has reports whether the fragment, including spreads, reads field.
func (f *Fragment) Has(field string) bool {
	for _, s := range f.ScalarFields() {
		if s == field {
			return true
		}
	}
	return f.Selection(field) != nil
}

// Selection returns the fragment selected for a nested field, or nil if
// the field is not selected. When several spreads select the same field,
// the first one wins.
func (f *Fragment) Selection(field string) *Fragment {
	var found *Fragment
	f.walk(func(frag *Fragment) {
		if found != nil {
			return
		}
		for _, s := range frag.Selections {
			if s.Field == field {
				found = s.Fragment
				return
			}
		}
	})
	return found
}

func (f *Fragment) walk(visit func(*Fragment)) {
	for _, s := range f.Spreads {
		s.walk(visit)
	}
	visit(f)
}

// TypeDef describes what a resolver can supply for an entity type.
type TypeDef struct {
	// Scalars is the set of scalar field names.
	Scalars map[string]bool
	// Objects maps object/list field names to their entity type.
	Objects map[string]string
}

// Schema maps entity type names to their definitions.
type Schema map[string]TypeDef

// Validate checks that the fragment only asks for what schema provides.
func (f *Fragment) Validate(schema Schema) error {
	def, ok := schema[f.On]
	if !ok {
		return fmt.Errorf("fragment %s: unknown type %s", f.Name, f.On)
	}
	for _, field := range f.Fields {
		if !def.Scalars[field] {
			return fmt.Errorf("fragment %s: type %s has no field %s", f.Name, f.On, field)
		}
	}
	for _, s := range f.Spreads {
		if s.On != f.On {
			return fmt.Errorf("fragment %s: cannot spread %s on %s into %s", f.Name, s.Name, s.On, f.On)
		}
		if err := s.Validate(schema); err != nil {
			return err
		}
	}
	for _, s := range f.Selections {
		typ, ok := def.Objects[s.Field]
		if !ok {
			return fmt.Errorf("fragment %s: type %s has no object field %s", f.Name, f.On, s.Field)
		}
		if s.Fragment.On != typ {
			return fmt.Errorf("fragment %s: field %s is %s, not %s", f.Name, s.Field, typ, s.Fragment.On)
		}
		if err := s.Fragment.Validate(schema); err != nil {
			return err
		}
	}
	return nil
}
