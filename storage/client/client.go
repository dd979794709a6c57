// Package client resolves view fragments against the indexed chain data.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	apiCommon "github.com/oasisprotocol/blockview/api/common"
	"github.com/oasisprotocol/blockview/cache/kvstore"
	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/metrics"
	"github.com/oasisprotocol/blockview/storage"
	"github.com/oasisprotocol/blockview/types"
	"github.com/oasisprotocol/blockview/view"
)

const (
	moduleName = "storage_client"

	// DefaultMaxCachedBlocks is the in-memory cache size used when none
	// is configured.
	DefaultMaxCachedBlocks = 1024

	blockCost = 1

	memoryCacheLabel = "memory"
)

// StorageClient resolves block fragments from target storage. It is safe
// for concurrent use.
type StorageClient struct {
	db storage.TargetStorage

	// Resolved blocks, keyed by fragment and lookup key. Only final
	// blocks are cached.
	blockCache *ristretto.Cache[string, *types.Block]
	// Optional on-disk cache of final blocks; nil if not configured.
	kv kvstore.KVStore

	metrics metrics.StorageMetrics
	logger  *log.Logger
}

// NewStorageClient creates a resolver over db. kv may be nil. maxBlocks
// is the in-memory cache size; 0 selects DefaultMaxCachedBlocks.
func NewStorageClient(db storage.TargetStorage, kv kvstore.KVStore, maxBlocks int64, l *log.Logger) (*StorageClient, error) {
	if maxBlocks <= 0 {
		maxBlocks = DefaultMaxCachedBlocks
	}
	blockCache, err := ristretto.NewCache(&ristretto.Config[string, *types.Block]{
		NumCounters:        10 * maxBlocks,
		MaxCost:            maxBlocks,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create block cache: %w", err)
	}
	return &StorageClient{
		db:         db,
		blockCache: blockCache,
		kv:         kv,
		metrics:    metrics.NewDefaultStorageMetrics("blockview"),
		logger:     l.WithModule(moduleName),
	}, nil
}

// Close closes the caches and the backing storage.
func (c *StorageClient) Close() {
	c.blockCache.Close()
	if c.kv != nil {
		if err := c.kv.Close(); err != nil {
			c.logger.Error("failed to close kvstore", "err", err)
		}
	}
	c.db.Close()
}

// Block resolves frag for the block at height. A block that is not
// indexed is returned as nil with no error.
func (c *StorageClient) Block(ctx context.Context, height int64, frag *view.Fragment) (*types.Block, error) {
	return c.resolve(ctx, frag, blockLookup{column: "height", value: height})
}

// BlockByHash resolves frag for the block with the given hash. A block
// that is not indexed is returned as nil with no error.
func (c *StorageClient) BlockByHash(ctx context.Context, hash string, frag *view.Fragment) (*types.Block, error) {
	return c.resolve(ctx, frag, blockLookup{column: "block_hash", value: strings.ToLower(hash)})
}

// LatestHeight returns the height of the newest indexed block, or 0 if
// nothing is indexed yet.
func (c *StorageClient) LatestHeight(ctx context.Context) (int64, error) {
	var height int64
	err := c.timed("latest_height", func() error {
		return c.db.QueryRow(ctx, latestHeightQuery).Scan(&height)
	})
	if err != nil {
		return 0, apiCommon.ErrStorageError{Err: err}
	}
	return height, nil
}

type blockLookup struct {
	column string
	value  interface{}
}

func (l blockLookup) cacheKey(frag *view.Fragment) string {
	return fmt.Sprintf("%s/%s=%v", frag.Name, l.column, l.value)
}

func (c *StorageClient) resolve(ctx context.Context, frag *view.Fragment, lookup blockLookup) (*types.Block, error) {
	if err := frag.Validate(Schema); err != nil {
		return nil, err
	}
	if frag.On != view.TypeBlock {
		return nil, fmt.Errorf("fragment %s is on %s, not %s", frag.Name, frag.On, view.TypeBlock)
	}

	key := lookup.cacheKey(frag)
	if block, ok := c.blockCache.Get(key); ok {
		c.metrics.CacheReads(memoryCacheLabel, metrics.CacheReadStatusHit).Inc()
		return block, nil
	}
	c.metrics.CacheReads(memoryCacheLabel, metrics.CacheReadStatusMiss).Inc()

	fetch := func() (*types.Block, error) {
		return c.fetchBlock(ctx, frag, lookup)
	}
	// Finality costs a query; decide it at most once per resolve.
	var final *bool
	isFinal := func(b *types.Block) bool {
		if final == nil {
			f := c.isFinal(ctx, b)
			final = &f
		}
		return *final
	}

	var block *types.Block
	var err error
	if c.kv != nil {
		block, err = kvstore.GetFinalFromCacheOrCall(c.kv, kvstore.GenerateCacheKey(key), fetch, isFinal)
	} else {
		block, err = fetch()
	}
	if err != nil || block == nil {
		return nil, err
	}
	if block.Transactions == nil && frag.Selection(view.FieldTransactions) != nil {
		block.Transactions = []types.Transaction{}
	}

	if isFinal(block) {
		c.blockCache.Set(key, block, blockCost)
	}
	return block, nil
}

// isFinal reports whether b can no longer change, i.e. it has a
// successor. On storage errors, b is treated as not final.
func (c *StorageClient) isFinal(ctx context.Context, b *types.Block) bool {
	latest, err := c.LatestHeight(ctx)
	if err != nil {
		c.logger.Warn("cannot determine block finality", "height", b.Height, "err", err)
		return false
	}
	return b.Height < latest
}

// fetchBlock reads the header columns frag needs and, if frag selects
// them, the transactions. The two queries run concurrently.
func (c *StorageClient) fetchBlock(ctx context.Context, frag *view.Fragment, lookup blockLookup) (*types.Block, error) {
	var block types.Block
	found := true
	var txs []types.Transaction

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		cols, dests := blockColumns(frag, &block)
		err := c.timed("block", func() error {
			return c.db.QueryRow(groupCtx, blockQuery(cols, lookup.column), lookup.value).Scan(dests...)
		})
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			found = false
			return nil
		case err != nil:
			return err
		}
		block.Timestamp = block.Timestamp.UTC()
		return nil
	})
	if txFrag := frag.Selection(view.FieldTransactions); txFrag != nil {
		group.Go(func() error {
			var err error
			txs, err = c.fetchTransactions(groupCtx, txFrag, lookup)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, apiCommon.ErrStorageError{Err: err}
	}
	if !found {
		return nil, nil
	}

	if frag.Selection(view.FieldTransactions) != nil {
		if txs == nil {
			txs = []types.Transaction{}
		}
		block.Transactions = txs
	}
	return &block, nil
}

func (c *StorageClient) fetchTransactions(ctx context.Context, frag *view.Fragment, lookup blockLookup) ([]types.Transaction, error) {
	var txs []types.Transaction
	err := c.timed("transactions", func() error {
		var probe types.Transaction
		cols, _ := transactionColumns(frag, &probe)
		rows, err := c.db.Query(ctx, transactionsQuery(cols, lookup.column), lookup.value)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var tx types.Transaction
			_, dests := transactionColumns(frag, &tx)
			if err := rows.Scan(dests...); err != nil {
				return err
			}
			txs = append(txs, tx)
		}
		return rows.Err()
	})
	return txs, err
}

// timed runs a database operation, recording its latency and outcome.
func (c *StorageClient) timed(operation string, op func() error) error {
	timer := c.metrics.DatabaseLatencies(c.db.Name(), operation)
	defer timer.ObserveDuration()

	err := op()
	status := "success"
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		status = "failure"
	}
	c.metrics.DatabaseOperations(c.db.Name(), operation, status).Inc()
	return err
}

// InsertBlocks writes blocks and their transactions in one atomic batch.
// Transactions are taken from block.Transactions; NumTransactions is
// derived from them when unset.
func (c *StorageClient) InsertBlocks(ctx context.Context, blocks []types.Block) error {
	batch := &storage.QueryBatch{}
	for _, b := range blocks {
		numTxs := b.NumTransactions
		if numTxs == 0 {
			numTxs = len(b.Transactions)
		}
		ts := b.Timestamp
		if ts.IsZero() {
			ts = time.Unix(0, 0)
		}
		batch.Queue(insertBlockQuery,
			b.Height, strings.ToLower(b.Hash), strings.ToLower(b.ParentHash), ts.UTC(),
			b.Proposer, int64(b.GasUsed), int64(b.Size), numTxs,
		)
		for i, tx := range b.Transactions {
			fee := tx.Fee
			if fee == "" {
				fee = "0"
			}
			batch.Queue(insertTransactionQuery,
				b.Height, i, strings.ToLower(tx.Hash), tx.Sender, tx.Recipient, tx.Method, fee, tx.Success,
			)
		}
	}
	err := c.timed("insert_blocks", func() error {
		return c.db.SendBatch(ctx, batch)
	})
	if err != nil {
		return apiCommon.ErrStorageError{Err: err}
	}
	return nil
}
