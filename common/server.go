package common

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/oasisprotocol/blockview/log"
)

// shutdownGracePeriod is how long in-flight requests get to finish once
// the server is asked to stop.
const shutdownGracePeriod = 10 * time.Second

// RunServer serves until ctx is canceled or the server fails, then shuts
// the server down. A server closed because of ctx is not an error.
func RunServer(ctx context.Context, server *http.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down server", "addr", server.Addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
