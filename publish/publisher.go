// Package publish hands serialized batches to the external message bus,
// standing in for the original's Pulsar producer with a NATS JetStream
// publisher, grounded on natsclient.Client and
// original_source/src/bolson/publish/publisher.h.
package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/SigmaX-ai/bolson/convert"
	"github.com/SigmaX-ai/bolson/errors"
	"github.com/SigmaX-ai/bolson/latency"
	"github.com/SigmaX-ai/bolson/natsclient"
)

// DefaultMaxMessageSize matches BOLSON_DEFAULT_PULSAR_MAX_MSG_SIZE =
// 5*1024*1024 - 10*1024: the bus's default max message size, used as the
// serializer/resizer ceiling when the operator doesn't override it.
const DefaultMaxMessageSize = 5*1024*1024 - 10*1024

// BatchingOptions mirrors publisher.h's BatchingOptions. The fields are
// carried in Options and logged; Publisher does not apply them: each
// serialized batch is published as its own message, with no batching by
// count, size or delay.
type BatchingOptions struct {
	Enable      bool
	MaxMessages int
	MaxBytes    int
	MaxDelay    time.Duration
}

// Options configures a Publisher, matching publisher.h's Options.
type Options struct {
	URL           string
	Subject       string
	MaxMsgSize    int
	Batching      BatchingOptions
	NumProducers  int
}

// Log mirrors publisher.h's Options::Log() diagnostic dump.
func (o Options) Log(logger *slog.Logger) {
	logger.Info("publisher configuration",
		"url", o.URL, "subject", o.Subject, "max_msg_size", o.MaxMsgSize,
		"batching_enabled", o.Batching.Enable, "num_producers", o.NumProducers)
}

// Publisher is the single consumer thread dequeuing serialized batches and
// handing them to the NATS client, recording publish count and latency.
type Publisher struct {
	opts    Options
	client  *natsclient.Client
	input   <-chan convert.SerializedBatch
	tracker *latency.Tracker
	logger  *slog.Logger

	published uint64
	rows      uint64
}

// NewPublisher builds a Publisher reading from input and sending through
// client.
func NewPublisher(opts Options, client *natsclient.Client, input <-chan convert.SerializedBatch, tracker *latency.Tracker, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{opts: opts, client: client, input: input, tracker: tracker, logger: logger}
}

// Published returns the number of batches (not rows) published so far.
func (p *Publisher) Published() uint64 { return p.published }

// PublishedRows returns the total number of rows published so far.
func (p *Publisher) PublishedRows() uint64 { return p.rows }

// Run waits on input and ctx together so shutdown is observed promptly,
// hands each message to the bus client, and exits when input is closed, or
// when ctx is done and the channel is drained. Publish(producer, buffer, size) from publisher.h
// becomes a single client.PublishToStream call per message here.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case sb, ok := <-p.input:
			if !ok {
				return nil
			}
			if err := p.publishOne(ctx, sb); err != nil {
				return err
			}
		case <-ctx.Done():
			// Drain whatever is already queued before exiting, matching
			// spec.md §7's "publisher finishes its current send". These
			// publishes are not bound to the cancelled ctx.
			drainCtx := context.WithoutCancel(ctx)
			for {
				select {
				case sb, ok := <-p.input:
					if !ok {
						return nil
					}
					if err := p.publishOne(drainCtx, sb); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

func (p *Publisher) publishOne(ctx context.Context, sb convert.SerializedBatch) error {
	if err := p.client.PublishToStream(ctx, p.opts.Subject, sb.Message); err != nil {
		return errors.WrapKind(errors.KindBus, err, "Publisher", "Run", "publish serialized batch")
	}
	p.published++
	p.rows += sb.RecordSize()

	if p.tracker != nil {
		p.tracker.MarkRange(sb.SeqRange.First, sb.SeqRange.Last, latency.Published)
	}
	return nil
}
