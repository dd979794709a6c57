// Package types defines the chain entities shown by blockview.
package types

import "time"

// Block is an indexed block. Which fields are populated depends on the
// fragment it was resolved for; Transactions is nil unless selected.
type Block struct {
	Height          int64         `json:"height" cbor:"1,keyasint"`
	Hash            string        `json:"hash,omitempty" cbor:"2,keyasint,omitempty"`
	ParentHash      string        `json:"parent_hash,omitempty" cbor:"3,keyasint,omitempty"`
	Timestamp       time.Time     `json:"timestamp,omitempty" cbor:"4,keyasint,omitempty"`
	Proposer        string        `json:"proposer,omitempty" cbor:"5,keyasint,omitempty"`
	GasUsed         uint64        `json:"gas_used,omitempty" cbor:"6,keyasint,omitempty"`
	Size            uint64        `json:"size,omitempty" cbor:"7,keyasint,omitempty"`
	NumTransactions int           `json:"num_transactions" cbor:"8,keyasint"`
	Transactions    []Transaction `json:"transactions,omitempty" cbor:"9,keyasint"`
}

// Transaction is a transaction included in a block.
type Transaction struct {
	Block     int64  `json:"block" cbor:"1,keyasint"`
	Index     int    `json:"index" cbor:"2,keyasint"`
	Hash      string `json:"hash" cbor:"3,keyasint"`
	Sender    string `json:"sender,omitempty" cbor:"4,keyasint,omitempty"`
	Recipient string `json:"recipient,omitempty" cbor:"5,keyasint,omitempty"`
	Method    string `json:"method,omitempty" cbor:"6,keyasint,omitempty"`
	// Fee in base units, as a decimal string.
	Fee     string `json:"fee,omitempty" cbor:"7,keyasint,omitempty"`
	Success bool   `json:"success" cbor:"8,keyasint"`
}
