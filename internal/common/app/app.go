package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
)

// CreateContextWithShutdown returns a context that will report done when a SIGINT or SIGTERM is received.
// The ingestion run itself is not cancellable mid-flight; the signal only stops new jobs being dispatched
// so the remaining batch can still be flushed.
func CreateContextWithShutdown() *ctxlog.Context {
	ctx, cancel := ctxlog.WithCancel(ctxlog.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			ctx.Log.Infof("Received %s, stopping dispatch of new jobs", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx
}
