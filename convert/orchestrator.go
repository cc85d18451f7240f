package convert

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/errors"
	"github.com/SigmaX-ai/bolson/latency"
	"github.com/SigmaX-ai/bolson/parse"
)

// PollTimeout bounds how long a worker blocks on an empty raw-JSON queue
// before re-checking the shutdown signal, matching spec.md §5's "short
// timeout so a thread blocked on an empty queue observes shutdown".
const PollTimeout = 50 * time.Millisecond

// BatchSize is B, the number of filled buffers a worker claims per
// iteration, matching spec.md §4.6 step 2a.
const BatchSize = 1

// Orchestrator spawns W parser workers; each worker loops: claim input
// buffers -> parse -> resize -> serialize -> enqueue for publish -> release
// input buffers. Aggregates per-worker statistics. Grounded on
// original_source/src/bolson/convert/converter.h.
type Orchestrator struct {
	Pool       *buffer.Pool
	Parsers    []parse.Parser
	Resizer    Resizer
	Serializer interface {
		Serialize(ResizedBatch) (SerializedBatch, error)
	}
	Output  chan<- SerializedBatch
	Tracker *latency.Tracker
	Logger  *slog.Logger
}

// Start launches one goroutine per parser worker under an errgroup so the
// first worker error cancels the shared context, which doubles as the
// cooperative shutdown signal. Start blocks until every worker exits and
// returns the aggregated Stats and the first non-nil worker error.
func (o *Orchestrator) Start(ctx context.Context) (Stats, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	statsCh := make(chan Stats, len(o.Parsers))
	g, gctx := errgroup.WithContext(ctx)

	for i, p := range o.Parsers {
		p := p
		idx := i
		g.Go(func() error {
			stats := o.runWorker(gctx, idx, p, logger)
			statsCh <- stats
			if stats.Status != nil {
				return stats.Status
			}
			return nil
		})
	}

	err := g.Wait()
	close(statsCh)

	all := make([]Stats, 0, len(o.Parsers))
	for s := range statsCh {
		all = append(all, s)
	}
	return AggrStats(all), err
}

func (o *Orchestrator) runWorker(ctx context.Context, idx int, p parse.Parser, logger *slog.Logger) Stats {
	var stats Stats
	threadStart := time.Now()
	defer func() { stats.Time.Thread = time.Since(threadStart) }()

	for {
		select {
		case <-ctx.Done():
			return stats
		default:
		}

		in, ok := o.claimWithTimeout(ctx)
		if !ok {
			if ctx.Err() != nil {
				return stats
			}
			continue
		}

		if err := o.process(p, in, &stats); err != nil {
			stats.Status = err
			logger.Error("convert worker failed", "worker", idx, "error", err)
			return stats
		}

		o.Pool.Release(in)
	}
}

// claimWithTimeout blocks on the raw-JSON queue for at most PollTimeout so
// shutdown is observed promptly, per spec.md §5. It claims directly against
// the pool's context-aware wait instead of racing a disposable goroutine: a
// goroutine blocked on ClaimFilled can't be abandoned once the timer fires,
// so it would keep waiting on the queue and silently steal the next filled
// buffer meant for this call's caller.
func (o *Orchestrator) claimWithTimeout(ctx context.Context) (*buffer.JSONBuffer, bool) {
	pollCtx, cancel := context.WithTimeout(ctx, PollTimeout)
	defer cancel()
	return o.Pool.ClaimFilledContext(pollCtx)
}

func (o *Orchestrator) process(p parse.Parser, in *buffer.JSONBuffer, stats *Stats) error {
	if o.Tracker != nil {
		o.Tracker.MarkRange(in.SeqRange().First, in.SeqRange().Last, latency.Parsed)
	}

	parseStart := time.Now()
	parsed, err := p.Parse([]*buffer.JSONBuffer{in})
	stats.Time.Parse += time.Since(parseStart)
	if err != nil {
		return errors.WrapKind(errors.KindParse, err, "Orchestrator", "process", "parse input buffer")
	}

	stats.NumJSONs += in.SeqRange().NumRows()
	stats.JSONBytes += uint64(in.Size())

	for _, pb := range parsed {
		stats.NumParsed += pb.SeqRange.NumRows()

		resizeStart := time.Now()
		resized := o.Resizer.Resize(pb)
		stats.Time.Resize += time.Since(resizeStart)
		if o.Tracker != nil {
			o.Tracker.MarkRange(pb.SeqRange.First, pb.SeqRange.Last, latency.Resized)
		}

		for _, rb := range resized {
			serStart := time.Now()
			sb, err := o.Serializer.Serialize(rb)
			stats.Time.Serialize += time.Since(serStart)
			if err != nil {
				return err
			}
			stats.NumIPC++
			stats.IPCBytes += uint64(sb.ByteSize())
			if o.Tracker != nil {
				o.Tracker.MarkRange(sb.SeqRange.First, sb.SeqRange.Last, latency.Serialized)
			}

			enqueueStart := time.Now()
			o.Output <- sb
			stats.Time.Enqueue += time.Since(enqueueStart)
		}
	}
	return nil
}
