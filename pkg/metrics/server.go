package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Serve exposes the collector at /metrics on addr until ctx is cancelled,
// then shuts the listener down gracefully. Intended to run in its own
// goroutine for the lifetime of a campaign.
func Serve(ctx context.Context, addr string, collector *Collector, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.WithField("address", addr).Info("serving metrics")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
