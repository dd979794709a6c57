package client

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apiCommon "github.com/oasisprotocol/blockview/api/common"
	"github.com/oasisprotocol/blockview/cache/kvstore"
	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/types"
	"github.com/oasisprotocol/blockview/view"
)

func testBlocks() []types.Block {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []types.Block{
		{
			Height: 1, Hash: "aa01", Timestamp: ts, Proposer: "val1",
			Transactions: []types.Transaction{},
		},
		{
			Height: 2, Hash: "aa02", ParentHash: "aa01", Timestamp: ts.Add(6 * time.Second),
			Proposer: "val2", GasUsed: 42000, Size: 512, NumTransactions: 2,
			Transactions: []types.Transaction{
				{Block: 2, Index: 0, Hash: "tx0", Sender: "alice", Recipient: "bob", Method: "transfer", Fee: "1000", Success: true},
				{Block: 2, Index: 1, Hash: "tx1", Sender: "bob", Method: "stake", Fee: "2500", Success: false},
			},
		},
		{Height: 3, Hash: "aa03", ParentHash: "aa02", Timestamp: ts.Add(12 * time.Second)},
	}
}

func newTestClient(t *testing.T, db *fakeStorage, kv kvstore.KVStore) *StorageClient {
	c, err := NewStorageClient(db, kv, 16, log.NewDefaultLogger("storage-client-test"))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestBlockFullFragment(t *testing.T) {
	ctx := context.Background()
	db := &fakeStorage{blocks: testBlocks()}
	c := newTestClient(t, db, nil)

	block, err := c.Block(ctx, 2, view.FullBlockInfoFragment)
	require.NoError(t, err)
	require.NotNil(t, block)

	expected := testBlocks()[1]
	require.Equal(t, expected, *block)
}

func TestBlockEmptyTransactionsAreNotNil(t *testing.T) {
	db := &fakeStorage{blocks: testBlocks()}
	c := newTestClient(t, db, nil)

	block, err := c.Block(context.Background(), 1, view.FullBlockInfoFragment)
	require.NoError(t, err)
	require.NotNil(t, block.Transactions)
	require.Empty(t, block.Transactions)
}

func TestBlockMissing(t *testing.T) {
	db := &fakeStorage{blocks: testBlocks()}
	c := newTestClient(t, db, nil)

	block, err := c.Block(context.Background(), 99, view.FullBlockInfoFragment)
	require.NoError(t, err)
	require.Nil(t, block)

	// Absent blocks are not cached; the next request asks again.
	_, err = c.Block(context.Background(), 99, view.FullBlockInfoFragment)
	require.NoError(t, err)
	require.Equal(t, 2, db.count("FROM chain.blocks\n"))
}

func TestBlockSelectsOnlyFragmentColumns(t *testing.T) {
	db := &fakeStorage{blocks: testBlocks()}
	c := newTestClient(t, db, nil)

	frag := &view.Fragment{Name: "HashOnly", On: view.TypeBlock, Fields: []string{view.FieldHash}}
	block, err := c.Block(context.Background(), 2, frag)
	require.NoError(t, err)

	require.Equal(t, types.Block{Height: 2, Hash: "aa02"}, *block)
	require.Zero(t, db.count("chain.transactions"), "transactions are not selected")
	require.Equal(t, 1, db.count("SELECT height, block_hash\n"))
}

func TestBlockByHash(t *testing.T) {
	db := &fakeStorage{blocks: testBlocks()}
	c := newTestClient(t, db, nil)

	block, err := c.BlockByHash(context.Background(), "AA02", view.FullBlockInfoFragment)
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Equal(t, int64(2), block.Height)
	require.Len(t, block.Transactions, 2)
	require.Equal(t, "tx1", block.Transactions[1].Hash)

	block, err = c.BlockByHash(context.Background(), "ffff", view.FullBlockInfoFragment)
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestBlockCachesOnlyFinalBlocks(t *testing.T) {
	ctx := context.Background()
	db := &fakeStorage{blocks: testBlocks()}
	c := newTestClient(t, db, nil)

	for _, height := range []int64{2, 3} {
		_, err := c.Block(ctx, height, view.FullBlockInfoFragment)
		require.NoError(t, err)
	}
	c.blockCache.Wait()
	for _, height := range []int64{2, 3} {
		_, err := c.Block(ctx, height, view.FullBlockInfoFragment)
		require.NoError(t, err)
	}

	// Block 2 has a successor and is served from memory the second time;
	// block 3 is the tip and is read again.
	require.Equal(t, 3, db.count("FROM chain.transactions"))
	require.Equal(t, 3, db.count("FROM chain.blocks\n\t\t\tWHERE height = $1"))
}

func TestBlockKVStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	db := &fakeStorage{blocks: testBlocks()}
	path := filepath.Join(t.TempDir(), "kv")
	logger := log.NewDefaultLogger("storage-client-test")

	kv, err := kvstore.OpenKVStore(logger, path, nil)
	require.NoError(t, err)
	c, err := NewStorageClient(db, kv, 16, logger)
	require.NoError(t, err)
	first, err := c.Block(ctx, 2, view.FullBlockInfoFragment)
	require.NoError(t, err)
	c.Close()

	kv, err = kvstore.OpenKVStore(logger, path, nil)
	require.NoError(t, err)
	fresh := &fakeStorage{blocks: testBlocks()}
	c = newTestClient(t, fresh, kv)
	second, err := c.Block(ctx, 2, view.FullBlockInfoFragment)
	require.NoError(t, err)

	require.Equal(t, *first, *second)
	require.Zero(t, fresh.count("chain.transactions"))
}

func TestBlockKVStoreKeepsEmptyTransactions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv")
	logger := log.NewDefaultLogger("storage-client-test")

	kv, err := kvstore.OpenKVStore(logger, path, nil)
	require.NoError(t, err)
	c, err := NewStorageClient(&fakeStorage{blocks: testBlocks()}, kv, 16, logger)
	require.NoError(t, err)
	_, err = c.Block(ctx, 1, view.FullBlockInfoFragment)
	require.NoError(t, err)
	c.Close()

	kv, err = kvstore.OpenKVStore(logger, path, nil)
	require.NoError(t, err)
	fresh := &fakeStorage{blocks: testBlocks()}
	c = newTestClient(t, fresh, kv)
	block, err := c.Block(ctx, 1, view.FullBlockInfoFragment)
	require.NoError(t, err)

	require.NotNil(t, block.Transactions)
	require.Empty(t, block.Transactions)
	require.Zero(t, fresh.count("chain.transactions"))
}

func TestBlockRejectsUnknownFields(t *testing.T) {
	db := &fakeStorage{blocks: testBlocks()}
	c := newTestClient(t, db, nil)

	frag := &view.Fragment{Name: "Bogus", On: view.TypeBlock, Fields: []string{"state_root"}}
	_, err := c.Block(context.Background(), 2, frag)
	require.Error(t, err)

	txFrag := &view.Fragment{Name: "Tx", On: view.TypeTransaction, Fields: []string{view.FieldHash}}
	_, err = c.Block(context.Background(), 2, txFrag)
	require.Error(t, err)

	require.Empty(t, db.queries)
}

func TestStorageErrors(t *testing.T) {
	dbErr := errors.New("connection refused")
	db := &fakeStorage{blocks: testBlocks(), failAll: dbErr}
	c := newTestClient(t, db, nil)

	_, err := c.Block(context.Background(), 2, view.FullBlockInfoFragment)
	var storageErr apiCommon.ErrStorageError
	require.ErrorAs(t, err, &storageErr)
	require.ErrorIs(t, err, dbErr)

	_, err = c.LatestHeight(context.Background())
	require.ErrorAs(t, err, &storageErr)

	err = c.InsertBlocks(context.Background(), testBlocks())
	require.ErrorIs(t, err, dbErr)
}

func TestLatestHeight(t *testing.T) {
	c := newTestClient(t, &fakeStorage{}, nil)
	latest, err := c.LatestHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), latest)

	c = newTestClient(t, &fakeStorage{blocks: testBlocks()}, nil)
	latest, err = c.LatestHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), latest)
}

func TestInsertBlocks(t *testing.T) {
	db := &fakeStorage{}
	c := newTestClient(t, db, nil)

	blocks := testBlocks()
	blocks[1].Hash = "AA02"
	blocks[1].NumTransactions = 0
	require.NoError(t, c.InsertBlocks(context.Background(), blocks))

	require.Len(t, db.batches, 1)
	queued := db.batches[0].QueuedQueries
	require.Len(t, queued, 5, "three blocks and two transactions")

	require.Equal(t, insertBlockQuery, queued[1].SQL)
	require.Equal(t, "aa02", queued[1].Arguments[1])
	require.Equal(t, 2, queued[1].Arguments[7], "num_txs derived from transactions")

	require.Equal(t, insertTransactionQuery, queued[3].SQL)
	require.Equal(t, []interface{}{int64(2), 1, "tx1", "bob", "", "stake", "2500", false}, queued[3].Arguments)
}
