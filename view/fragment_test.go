package view

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	set := func(fields ...string) map[string]bool {
		m := map[string]bool{}
		for _, f := range fields {
			m[f] = true
		}
		return m
	}
	return Schema{
		TypeBlock: {
			Scalars: set(BlockInfoFragment.Fields...),
			Objects: map[string]string{FieldTransactions: TypeTransaction},
		},
		TypeTransaction: {
			Scalars: set(TransactionTableFragment.Fields...),
		},
	}
}

func TestFullBlockInfoFragment(t *testing.T) {
	frag := FullBlockInfoFragment

	require.Equal(t, BlockInfoFragment.Fields, frag.ScalarFields())
	require.True(t, frag.Has(FieldHash))
	require.True(t, frag.Has(FieldTransactions))
	require.Same(t, TransactionTableFragment, frag.Selection(FieldTransactions))
	require.NoError(t, frag.Validate(testSchema()))
}

func TestBlockInfoFragmentSelectsNoTransactions(t *testing.T) {
	require.False(t, BlockInfoFragment.Has(FieldTransactions))
	require.Nil(t, BlockInfoFragment.Selection(FieldTransactions))
}

func TestScalarFieldsDeduplicates(t *testing.T) {
	a := &Fragment{Name: "a", On: TypeBlock, Fields: []string{FieldHeight, FieldHash}}
	b := &Fragment{Name: "b", On: TypeBlock, Fields: []string{FieldHash, FieldSize}}
	f := &Fragment{Name: "f", On: TypeBlock, Fields: []string{FieldHeight, FieldProposer}, Spreads: []*Fragment{a, b}}

	require.Equal(t, []string{FieldHeight, FieldHash, FieldSize, FieldProposer}, f.ScalarFields())
}

func TestFragmentValidate(t *testing.T) {
	schema := testSchema()
	for _, tc := range []struct {
		name string
		frag *Fragment
	}{
		{"unknown type", &Fragment{Name: "x", On: "Account"}},
		{"unknown field", &Fragment{Name: "x", On: TypeBlock, Fields: []string{"difficulty"}}},
		{"spread on other type", &Fragment{Name: "x", On: TypeBlock, Spreads: []*Fragment{TransactionTableFragment}}},
		{"unknown object field", &Fragment{Name: "x", On: TypeBlock, Selections: []Selection{{Field: "events", Fragment: TransactionTableFragment}}}},
		{"selection of wrong type", &Fragment{Name: "x", On: TypeBlock, Selections: []Selection{{Field: FieldTransactions, Fragment: BlockInfoFragment}}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.frag.Validate(schema))
		})
	}
}
