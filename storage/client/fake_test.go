package client

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oasisprotocol/blockview/storage"
	"github.com/oasisprotocol/blockview/types"
)

// fakeStorage answers the queries in queries.go from in-memory blocks.
type fakeStorage struct {
	mu      sync.Mutex
	blocks  []types.Block
	failAll error

	queries []string
	batches []*storage.QueryBatch
}

var _ storage.TargetStorage = (*fakeStorage)(nil)

var (
	selectRe      = regexp.MustCompile(`(?s)SELECT\s+(.*?)\s+FROM`)
	blockLookupRe = regexp.MustCompile(`WHERE (\w+) = \$1`)
)

func (s *fakeStorage) record(sql string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, sql)
}

func (s *fakeStorage) count(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queries {
		if strings.Contains(q, substr) {
			n++
		}
	}
	return n
}

func (s *fakeStorage) SendBatch(ctx context.Context, batch *storage.QueryBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeStorage) findBlock(column string, value interface{}) *types.Block {
	for i := range s.blocks {
		b := &s.blocks[i]
		if (column == "height" && b.Height == value) || (column == "block_hash" && b.Hash == value) {
			return b
		}
	}
	return nil
}

func (s *fakeStorage) Query(ctx context.Context, sql string, args ...interface{}) (storage.QueryResults, error) {
	s.record(sql)
	if s.failAll != nil {
		return nil, s.failAll
	}
	cols := columnsOf(sql)
	lookup := "height"
	if strings.Contains(sql, "block_hash") {
		lookup = "block_hash"
	}

	rows := &fakeRows{}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.findBlock(lookup, args[0]); b != nil {
		for _, tx := range b.Transactions {
			row := make([]interface{}, len(cols))
			for i, c := range cols {
				row[i] = transactionValue(c, tx)
			}
			rows.rows = append(rows.rows, row)
		}
	}
	return rows, nil
}

func (s *fakeStorage) QueryRow(ctx context.Context, sql string, args ...interface{}) storage.QueryResult {
	s.record(sql)
	if s.failAll != nil {
		return fakeRow{err: s.failAll}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.Contains(sql, "MAX(height)") {
		var latest int64
		for _, b := range s.blocks {
			if b.Height > latest {
				latest = b.Height
			}
		}
		return fakeRow{values: []interface{}{latest}}
	}

	cols := columnsOf(sql)
	lookup := blockLookupRe.FindStringSubmatch(sql)[1]
	b := s.findBlock(lookup, args[0])
	if b == nil {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := make([]interface{}, len(cols))
	for i, c := range cols {
		row[i] = blockValue(c, *b)
	}
	return fakeRow{values: row}
}

func (s *fakeStorage) Close() {}

func (s *fakeStorage) Name() string { return "fake" }

func columnsOf(sql string) []string {
	cols := strings.Split(selectRe.FindStringSubmatch(sql)[1], ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func blockValue(col string, b types.Block) interface{} {
	switch col {
	case "height":
		return b.Height
	case "block_hash":
		return b.Hash
	case "parent_hash":
		return b.ParentHash
	case "time":
		return b.Timestamp
	case "proposer":
		return b.Proposer
	case "gas_used":
		return b.GasUsed
	case "size":
		return b.Size
	case "num_txs":
		return b.NumTransactions
	}
	panic("unknown block column " + col)
}

func transactionValue(col string, tx types.Transaction) interface{} {
	switch col {
	case "block":
		return tx.Block
	case "tx_index":
		return tx.Index
	case "tx_hash":
		return tx.Hash
	case "sender":
		return tx.Sender
	case "recipient":
		return tx.Recipient
	case "method":
		return tx.Method
	case "fee_amount::text":
		return tx.Fee
	case "success":
		return tx.Success
	}
	panic("unknown transaction column " + col)
}

func scanInto(values []interface{}, dest []interface{}) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

type fakeRows struct {
	rows [][]interface{}
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]interface{}, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	return scanInto(r.rows[r.pos-1], dest)
}
