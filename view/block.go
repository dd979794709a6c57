package view

import "github.com/oasisprotocol/blockview/types"

// EntityBlock is the entity name shown when a block is not found.
const EntityBlock = "Block"

// ClassEntityInfo is the CSS class of an entity detail container.
const ClassEntityInfo = "entityInfoContainer"

// FullBlockInfoFragment is the data needed by FullBlockInfo.
var FullBlockInfoFragment = &Fragment{
	Name:    "FullBlockInfo_block",
	On:      TypeBlock,
	Spreads: []*Fragment{BlockInfoFragment},
	Selections: []Selection{
		{Field: FieldTransactions, Fragment: TransactionTableFragment},
	},
}

// FullBlockInfo is the full block page: the block summary followed by its
// transactions, or an empty result if block is nil.
func FullBlockInfo(block *types.Block) Node {
	if block == nil {
		return EmptyResult{EntityName: EntityBlock}
	}
	return Container{
		Class: ClassEntityInfo,
		Children: []Node{
			BlockInfo{Block: block},
			TransactionTable{Transactions: block.Transactions},
		},
	}
}
