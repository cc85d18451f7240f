package bench

import (
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/SigmaX-ai/bolson/buffer"
)

// RunQueue benchmarks the raw buffer pool's acquire/submit/claim/release
// cycle with no parsing involved, isolating the channel-based queue's
// overhead. Grounded on bench.h's QueueBenchOptions.
func RunQueue(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("bench queue", flag.ExitOnError)
	numItems := fs.Int("m", 256, "number of items to push through the queue")
	numBuffers := fs.Int("num-buffers", 8, "number of buffers in the pool")
	csv := fs.Bool("csv", false, "print result as a single CSV-like line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pool := buffer.NewPool(*numBuffers, 4096)

	start := time.Now()
	done := make(chan struct{})
	go func() {
		for i := 0; i < *numItems; i++ {
			b, ok := pool.TryClaimFilled()
			if !ok {
				i--
				continue
			}
			pool.Release(b)
		}
		close(done)
	}()

	for i := 0; i < *numItems; i++ {
		b := pool.AcquireEmpty()
		b.Fill([]byte("{}\n"), buffer.NewSeqRange(uint64(i), uint64(i)))
		pool.SubmitFilled(b)
	}
	<-done
	elapsed := time.Since(start)

	throughput := float64(*numItems) / elapsed.Seconds()
	if *csv {
		fmt.Printf("items,elapsed_s,items_per_s\n%d,%.3f,%.1f\n", *numItems, elapsed.Seconds(), throughput)
		return nil
	}
	logger.Info("queue benchmark complete", "items", *numItems, "elapsed", elapsed, "items_per_sec", throughput)
	return nil
}
