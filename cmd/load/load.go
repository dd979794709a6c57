// Package load implements the load sub-command, which inserts blocks from
// a JSON file. It exists to seed databases for development and tests.
package load

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oasisprotocol/blockview/cmd/common"
	commonIO "github.com/oasisprotocol/blockview/common"
	"github.com/oasisprotocol/blockview/log"
	storage "github.com/oasisprotocol/blockview/storage/client"
	"github.com/oasisprotocol/blockview/types"
)

const (
	moduleName = "load"

	// Blocks per database transaction.
	defaultBatchSize = 100
)

var (
	// Path to the configuration file.
	configFile string

	batchSize int

	loadCmd = &cobra.Command{
		Use:   "load <blocks.json>",
		Short: "Insert blocks from a JSON file",
		Args:  cobra.ExactArgs(1),
		Run:   runLoad,
	}
)

// BlockInserter is the part of the storage client load needs.
type BlockInserter interface {
	InsertBlocks(ctx context.Context, blocks []types.Block) error
}

var _ BlockInserter = (*storage.StorageClient)(nil)

func runLoad(cmd *cobra.Command, args []string) {
	cfg := common.LoadConfig(configFile)
	logger := common.RootLogger().WithModule(moduleName)

	if cfg.Server == nil || cfg.Server.Storage == nil {
		logger.Error("storage config not provided")
		os.Exit(1)
	}

	f, err := os.Open(args[0])
	if err != nil {
		logger.Error("cannot open blocks file", "error", err)
		os.Exit(1)
	}
	blocks, err := ReadBlocks(f)
	commonIO.CloseOrLog(f, logger)
	if err != nil {
		logger.Error("cannot parse blocks file", "path", args[0], "error", err)
		os.Exit(1)
	}

	backing, err := common.NewClient(cfg.Server.Storage, logger)
	if err != nil {
		logger.Error("cannot connect to storage", "error", err)
		os.Exit(1)
	}
	client, err := storage.NewStorageClient(backing, nil, 0, logger)
	if err != nil {
		backing.Close()
		logger.Error("cannot create storage client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := Insert(cmd.Context(), client, blocks, batchSize, logger); err != nil {
		os.Exit(1)
	}
}

// ReadBlocks parses a JSON array of blocks. Transaction block heights and
// indexes are derived from their position.
func ReadBlocks(r io.Reader) ([]types.Block, error) {
	var blocks []types.Block
	if err := json.NewDecoder(r).Decode(&blocks); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(blocks))
	for i := range blocks {
		b := &blocks[i]
		if b.Height < 0 {
			return nil, fmt.Errorf("block %d: negative height", i)
		}
		if b.Hash == "" {
			return nil, fmt.Errorf("block %d: missing hash", b.Height)
		}
		if seen[b.Height] {
			return nil, fmt.Errorf("block %d: duplicate height", b.Height)
		}
		seen[b.Height] = true
		for j := range b.Transactions {
			b.Transactions[j].Block = b.Height
			b.Transactions[j].Index = j
		}
	}
	return blocks, nil
}

// Insert writes blocks in batches of batchSize.
func Insert(ctx context.Context, db BlockInserter, blocks []types.Block, batchSize int, logger *log.Logger) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	for start := 0; start < len(blocks); start += batchSize {
		end := start + batchSize
		if end > len(blocks) {
			end = len(blocks)
		}
		if err := db.InsertBlocks(ctx, blocks[start:end]); err != nil {
			logger.Error("failed to insert blocks",
				"first_height", blocks[start].Height,
				"last_height", blocks[end-1].Height,
				"error", err,
			)
			return err
		}
		logger.Info("inserted blocks", "count", end-start, "last_height", blocks[end-1].Height)
	}
	return nil
}

// Register registers the load sub-command.
func Register(parentCmd *cobra.Command) {
	loadCmd.Flags().StringVar(&configFile, "config", "./config/local.yml", "path to the config.yml file")
	loadCmd.Flags().IntVar(&batchSize, "batch-size", defaultBatchSize, "blocks per database transaction")
	parentCmd.AddCommand(loadCmd)
}
