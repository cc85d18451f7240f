package bench

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/ingress"
	"github.com/SigmaX-ai/bolson/latency"
)

// RunClient benchmarks only the TCP ingress path: connect, read, fill
// buffers, report throughput. Grounded on bench.h's BenchClient /
// ClientBenchOptions.
func RunClient(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("bench client", flag.ExitOnError)
	host := fs.String("host", "localhost", "JSON source TCP server hostname")
	port := fs.Int("port", 5000, "JSON source TCP server port")
	numBuffers := fs.Int("num-buffers", 8, "number of input buffers in the pool")
	bufferCap := fs.Int("buffer-capacity", 1<<20, "capacity in bytes of each input buffer")
	duration := fs.Duration("duration", 5*time.Second, "how long to receive before reporting")
	csv := fs.Bool("csv", false, "print result as a single CSV-like line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pool := buffer.NewPool(*numBuffers, *bufferCap)
	tracker := latency.NewTracker()
	client := ingress.NewClient(ingress.Options{Host: *host, Port: *port}, pool, tracker, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// Drain filled buffers back to empty as the client fills them, since
	// this benchmark measures ingress throughput only, not conversion.
	go func() {
		for {
			b, ok := pool.TryClaimFilled()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Millisecond):
				}
				continue
			}
			pool.Release(b)
		}
	}()

	start := time.Now()
	err := client.ReceiveJSONs(ctx)
	elapsed := time.Since(start)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	received := client.Received()
	throughput := float64(received) / elapsed.Seconds()
	if *csv {
		fmt.Printf("records,elapsed_s,records_per_s\n%d,%.3f,%.1f\n", received, elapsed.Seconds(), throughput)
		return nil
	}
	logger.Info("client benchmark complete",
		"records_received", received,
		"elapsed", elapsed,
		"records_per_sec", throughput)
	return nil
}
