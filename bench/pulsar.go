package bench

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/SigmaX-ai/bolson/natsclient"
)

// RunPulsar benchmarks the message-bus publish path alone, sending
// fixed-size messages and reporting throughput. Named "pulsar" after the
// original system's message bus benchmark (bench.h's PulsarBenchOptions);
// this build targets the NATS bus client instead.
func RunPulsar(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("bench pulsar", flag.ExitOnError)
	url := fs.String("bus-url", "nats://localhost:4222", "message bus connection URL")
	subject := fs.String("bus-subject", "bolson.bench", "message bus subject/topic")
	numMessages := fs.Int("num-messages", 256, "number of messages to publish")
	messageSize := fs.Int("message-size", 5*1024*1024-10*1024, "size in bytes of each message")
	csv := fs.Bool("csv", false, "print result as a single CSV-like line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := natsclient.NewClient(*url)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close(ctx)

	streamName := strings.ReplaceAll(*subject, ".", "_")
	if _, err := client.CreateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{*subject},
	}); err != nil {
		return err
	}

	payload := make([]byte, *messageSize)

	start := time.Now()
	for i := 0; i < *numMessages; i++ {
		if err := client.PublishToStream(ctx, *subject, payload); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	throughput := float64(*numMessages) / elapsed.Seconds()
	mbPerSec := float64(*numMessages * *messageSize) / elapsed.Seconds() / (1024 * 1024)
	if *csv {
		fmt.Printf("messages,elapsed_s,messages_per_s,mb_per_s\n%d,%.3f,%.1f,%.2f\n", *numMessages, elapsed.Seconds(), throughput, mbPerSec)
		return nil
	}
	logger.Info("pulsar benchmark complete",
		"messages", *numMessages, "elapsed", elapsed,
		"messages_per_sec", throughput, "mb_per_sec", mbPerSec)
	return nil
}
