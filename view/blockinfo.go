package view

// BlockInfoFragment is the data needed by BlockInfo.
var BlockInfoFragment = &Fragment{
	Name: "BlockInfo_block",
	On:   TypeBlock,
	Fields: []string{
		FieldHeight,
		FieldHash,
		FieldParentHash,
		FieldTimestamp,
		FieldProposer,
		FieldGasUsed,
		FieldSize,
		FieldNumTransactions,
	},
}
