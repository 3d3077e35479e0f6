// oats investigation worker: hosts a single investigation inside an
// ephemeral job pod. Events stream to stdout as NDJSON; operational logs
// go to stderr.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ufflow/oats/pkg/worker"
)

func main() {
	// In-cluster pods carry no .env; local runs may. stdout belongs to
	// the event stream, so a missing file is not worth a log line.
	_ = godotenv.Load()

	// Job deletion delivers SIGTERM. Cancelling the context lets the
	// reasoning loop abort between turns and report it on the stream.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	code := worker.Run(ctx)
	stop()
	os.Exit(code)
}
