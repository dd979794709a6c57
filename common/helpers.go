package common

import (
	"io"

	"github.com/oasisprotocol/blockview/log"
)

// CloseOrLog closes c, logging a failure instead of returning it.
func CloseOrLog(c io.Closer, logger *log.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("close failed", "err", err)
	}
}
