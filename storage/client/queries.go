package client

import (
	"fmt"
	"strings"

	"github.com/oasisprotocol/blockview/types"
	"github.com/oasisprotocol/blockview/view"
)

// column maps a fragment field to a SQL expression and the destination
// it is scanned into.
type column struct {
	sql  string
	dest func(interface{}) interface{}
}

func blockCol(sql string, dest func(b *types.Block) interface{}) column {
	return column{sql, func(v interface{}) interface{} { return dest(v.(*types.Block)) }}
}

func txCol(sql string, dest func(tx *types.Transaction) interface{}) column {
	return column{sql, func(v interface{}) interface{} { return dest(v.(*types.Transaction)) }}
}

var blockFields = map[string]column{
	view.FieldHeight:          blockCol("height", func(b *types.Block) interface{} { return &b.Height }),
	view.FieldHash:            blockCol("block_hash", func(b *types.Block) interface{} { return &b.Hash }),
	view.FieldParentHash:      blockCol("parent_hash", func(b *types.Block) interface{} { return &b.ParentHash }),
	view.FieldTimestamp:       blockCol("time", func(b *types.Block) interface{} { return &b.Timestamp }),
	view.FieldProposer:        blockCol("proposer", func(b *types.Block) interface{} { return &b.Proposer }),
	view.FieldGasUsed:         blockCol("gas_used", func(b *types.Block) interface{} { return &b.GasUsed }),
	view.FieldSize:            blockCol("size", func(b *types.Block) interface{} { return &b.Size }),
	view.FieldNumTransactions: blockCol("num_txs", func(b *types.Block) interface{} { return &b.NumTransactions }),
}

var transactionFields = map[string]column{
	view.FieldBlock:     txCol("block", func(tx *types.Transaction) interface{} { return &tx.Block }),
	view.FieldIndex:     txCol("tx_index", func(tx *types.Transaction) interface{} { return &tx.Index }),
	view.FieldHash:      txCol("tx_hash", func(tx *types.Transaction) interface{} { return &tx.Hash }),
	view.FieldSender:    txCol("sender", func(tx *types.Transaction) interface{} { return &tx.Sender }),
	view.FieldRecipient: txCol("recipient", func(tx *types.Transaction) interface{} { return &tx.Recipient }),
	view.FieldMethod:    txCol("method", func(tx *types.Transaction) interface{} { return &tx.Method }),
	view.FieldFee:       txCol("fee_amount::text", func(tx *types.Transaction) interface{} { return &tx.Fee }),
	view.FieldSuccess:   txCol("success", func(tx *types.Transaction) interface{} { return &tx.Success }),
}

// Schema is what the storage client can resolve.
var Schema = view.Schema{
	view.TypeBlock: {
		Scalars: fieldSet(blockFields),
		Objects: map[string]string{view.FieldTransactions: view.TypeTransaction},
	},
	view.TypeTransaction: {
		Scalars: fieldSet(transactionFields),
	},
}

func fieldSet(cols map[string]column) map[string]bool {
	set := make(map[string]bool, len(cols))
	for f := range cols {
		set[f] = true
	}
	return set
}

// selectColumns returns the SQL expressions for the fragment's fields,
// always leading with key, and the matching scan destinations in entity.
// Fields must have been validated against Schema.
func selectColumns(frag *view.Fragment, fields map[string]column, key string, entity interface{}) ([]string, []interface{}) {
	ordered := []string{key}
	for _, f := range frag.ScalarFields() {
		if f != key {
			ordered = append(ordered, f)
		}
	}
	sqls := make([]string, 0, len(ordered))
	dests := make([]interface{}, 0, len(ordered))
	for _, f := range ordered {
		col := fields[f]
		sqls = append(sqls, col.sql)
		dests = append(dests, col.dest(entity))
	}
	return sqls, dests
}

func blockColumns(frag *view.Fragment, b *types.Block) ([]string, []interface{}) {
	return selectColumns(frag, blockFields, view.FieldHeight, b)
}

func transactionColumns(frag *view.Fragment, tx *types.Transaction) ([]string, []interface{}) {
	return selectColumns(frag, transactionFields, view.FieldIndex, tx)
}

// blockQuery selects cols of the block where lookupCol = $1.
func blockQuery(cols []string, lookupCol string) string {
	return fmt.Sprintf(`
		SELECT %s
			FROM chain.blocks
			WHERE %s = $1`,
		strings.Join(cols, ", "), lookupCol)
}

// transactionsQuery selects cols of the transactions of the block where
// lookupCol = $1, in block order.
func transactionsQuery(cols []string, lookupCol string) string {
	blockFilter := "block = $1::bigint"
	if lookupCol != "height" {
		blockFilter = fmt.Sprintf("block = (SELECT height FROM chain.blocks WHERE %s = $1)", lookupCol)
	}
	return fmt.Sprintf(`
		SELECT %s
			FROM chain.transactions
			WHERE %s
			ORDER BY tx_index`,
		strings.Join(cols, ", "), blockFilter)
}

const (
	latestHeightQuery = `
		SELECT COALESCE(MAX(height), 0)
			FROM chain.blocks`

	insertBlockQuery = `
		INSERT INTO chain.blocks (height, block_hash, parent_hash, time, proposer, gas_used, size, num_txs)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertTransactionQuery = `
		INSERT INTO chain.transactions (block, tx_index, tx_hash, sender, recipient, method, fee_amount, success)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)`
)
