package view

// TransactionTableFragment is the data needed by a TransactionTable row.
var TransactionTableFragment = &Fragment{
	Name: "TransactionTable_transactions",
	On:   TypeTransaction,
	Fields: []string{
		FieldBlock,
		FieldIndex,
		FieldHash,
		FieldSender,
		FieldRecipient,
		FieldMethod,
		FieldFee,
		FieldSuccess,
	},
}
