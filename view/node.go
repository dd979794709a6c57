// Package view composes the block explorer pages out of view nodes.
//
// A page is a tree of Nodes built by a pure function of its data. The
// data each view needs is declared up front as a Fragment, which the
// storage resolver reads to decide what to fetch.
package view

import (
	"encoding/json"

	"github.com/oasisprotocol/blockview/types"
)

// Node is a node of a view tree.
type Node interface {
	// Kind is the name of the view, used by the renderers.
	Kind() string

	isNode()
}

const (
	KindEmptyResult      = "EmptyResult"
	KindContainer        = "Container"
	KindBlockInfo        = "BlockInfo"
	KindTransactionTable = "TransactionTable"
)

// EmptyResult is the "not found" placeholder for an entity.
type EmptyResult struct {
	EntityName string
}

// Container groups child views under a CSS class.
type Container struct {
	Class    string
	Children []Node
}

// BlockInfo shows the summary fields of a block.
type BlockInfo struct {
	Block *types.Block
}

// TransactionTable lists transactions, one row each, in order.
type TransactionTable struct {
	Transactions []types.Transaction
}

func (EmptyResult) Kind() string      { return KindEmptyResult }
func (Container) Kind() string        { return KindContainer }
func (BlockInfo) Kind() string        { return KindBlockInfo }
func (TransactionTable) Kind() string { return KindTransactionTable }

func (EmptyResult) isNode()      {}
func (Container) isNode()        {}
func (BlockInfo) isNode()        {}
func (TransactionTable) isNode() {}

func (n EmptyResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind       string `json:"kind"`
		EntityName string `json:"entity_name"`
	}{n.Kind(), n.EntityName})
}

func (n Container) MarshalJSON() ([]byte, error) {
	children := n.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(struct {
		Kind     string `json:"kind"`
		Class    string `json:"class"`
		Children []Node `json:"children"`
	}{n.Kind(), n.Class, children})
}

// MarshalJSON emits the block header only; transactions belong to the
// TransactionTable next to it.
func (n BlockInfo) MarshalJSON() ([]byte, error) {
	var header *types.Block
	if n.Block != nil {
		h := *n.Block
		h.Transactions = nil
		header = &h
	}
	return json.Marshal(struct {
		Kind  string       `json:"kind"`
		Block *types.Block `json:"block"`
	}{n.Kind(), header})
}

func (n TransactionTable) MarshalJSON() ([]byte, error) {
	txs := n.Transactions
	if txs == nil {
		txs = []types.Transaction{}
	}
	return json.Marshal(struct {
		Kind         string              `json:"kind"`
		Transactions []types.Transaction `json:"transactions"`
	}{n.Kind(), txs})
}
