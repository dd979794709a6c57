package load

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/types"
)

const blocksJSON = `[
  {"height": 1, "hash": "aa01", "timestamp": "2024-05-01T12:00:00Z", "transactions": []},
  {"height": 2, "hash": "aa02", "parent_hash": "aa01", "timestamp": "2024-05-01T12:00:06Z",
   "transactions": [
     {"hash": "tx0", "sender": "alice", "method": "transfer", "fee": "1000", "success": true},
     {"hash": "tx1", "sender": "bob", "method": "stake", "fee": "2500", "success": false}
   ]}
]`

func TestReadBlocks(t *testing.T) {
	blocks, err := ReadBlocks(strings.NewReader(blocksJSON))
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, "aa01", blocks[1].ParentHash)
	require.Len(t, blocks[1].Transactions, 2)
	require.Equal(t, int64(2), blocks[1].Transactions[1].Block)
	require.Equal(t, 1, blocks[1].Transactions[1].Index)
	require.Equal(t, "2500", blocks[1].Transactions[1].Fee)
}

func TestReadBlocksRejectsBadInput(t *testing.T) {
	for name, input := range map[string]string{
		"not json":         `{"height":`,
		"missing hash":     `[{"height": 1}]`,
		"negative height":  `[{"height": -1, "hash": "aa"}]`,
		"duplicate height": `[{"height": 1, "hash": "aa"}, {"height": 1, "hash": "bb"}]`,
	} {
		_, err := ReadBlocks(strings.NewReader(input))
		require.Error(t, err, name)
	}
}

type recordingInserter struct {
	batches [][]types.Block
	err     error
}

func (r *recordingInserter) InsertBlocks(ctx context.Context, blocks []types.Block) error {
	r.batches = append(r.batches, blocks)
	return r.err
}

func testBlocks(n int) []types.Block {
	blocks := make([]types.Block, n)
	for i := range blocks {
		blocks[i] = types.Block{Height: int64(i + 1), Hash: "aa"}
	}
	return blocks
}

func TestInsertBatches(t *testing.T) {
	db := &recordingInserter{}
	require.NoError(t, Insert(context.Background(), db, testBlocks(5), 2, log.NewDefaultLogger("load-test")))

	require.Len(t, db.batches, 3)
	require.Len(t, db.batches[0], 2)
	require.Len(t, db.batches[2], 1)
	require.Equal(t, int64(5), db.batches[2][0].Height)
}

func TestInsertStopsOnError(t *testing.T) {
	db := &recordingInserter{err: errors.New("unique violation")}
	err := Insert(context.Background(), db, testBlocks(5), 2, log.NewDefaultLogger("load-test"))
	require.Error(t, err)
	require.Len(t, db.batches, 1)
}
