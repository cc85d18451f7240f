package ingress

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/errors"
	"github.com/SigmaX-ai/bolson/latency"
	"github.com/SigmaX-ai/bolson/metric"
	"github.com/SigmaX-ai/bolson/pkg/retry"
)

// Options configures the TCP ingress client, grounded on
// original_source/src/bolson/cli.cpp's AddClientOptionsToCLI.
type Options struct {
	Host    string
	Port    int
	SeqBase uint64
	Retry   retry.Config
}

// DefaultOptions matches cli.cpp's --host default "localhost" and illex's
// default port.
func DefaultOptions() Options {
	return Options{Host: "localhost", Port: 5000, Retry: retry.DefaultConfig()}
}

// Client connects to a newline-delimited JSON TCP source, assigns each
// record a monotonically increasing sequence number starting at SeqBase,
// and fills JSONBuffers drawn from pool, submitting each once full or once
// the connection closes with a partial buffer. A record is never split
// across buffers.
type Client struct {
	opts    Options
	pool    *buffer.Pool
	tracker *latency.Tracker
	logger  *slog.Logger
	metrics *Metrics

	received atomic.Uint64
	nextSeq  atomic.Uint64
	conn     net.Conn
}

// NewClient builds an ingress Client. registry may be nil, in which case no
// Prometheus metrics are registered.
func NewClient(opts Options, pool *buffer.Pool, tracker *latency.Tracker, registry *metric.MetricsRegistry, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{opts: opts, pool: pool, tracker: tracker, logger: logger, metrics: newMetrics(registry)}
	c.nextSeq.Store(opts.SeqBase)
	return c
}

// Received returns the total number of JSON records received so far, used
// by the end-to-end driver's termination predicate.
func (c *Client) Received() uint64 { return c.received.Load() }

// ReceiveJSONs connects and reads newline-delimited JSON records until the
// server closes the connection or ctx is cancelled, packing records into
// JSONBuffers up to capacity and submitting each full buffer to the pool.
// Grounded on original_source/src/bolson/stream.cpp's blocking
// client.ReceiveJSONs(nullptr) call.
func (c *Client) ReceiveJSONs(ctx context.Context) error {
	addr := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))

	var conn net.Conn
	err := retry.Do(ctx, c.opts.Retry, func() error {
		d := net.Dialer{}
		dialed, dialErr := d.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			if c.metrics != nil {
				c.metrics.connectionErrs.Inc()
			}
			return errors.WrapKind(errors.KindIngress, dialErr, "Client", "ReceiveJSONs", "dial ingress source")
		}
		conn = dialed
		return nil
	})
	if err != nil {
		return err
	}
	c.conn = conn
	defer conn.Close()

	cur := c.pool.AcquireEmpty()
	curStart := c.nextSeq.Load()
	var curCount uint64

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	flush := func() {
		if curCount == 0 {
			c.pool.Release(cur)
			return
		}
		seqRange := buffer.NewSeqRange(curStart, curStart+curCount-1)
		cur.SetSeqRange(seqRange)
		if c.tracker != nil {
			c.tracker.MarkRange(seqRange.First, seqRange.Last, latency.Received)
		}
		c.pool.SubmitFilled(cur)
		if c.metrics != nil {
			c.metrics.buffersFilled.Inc()
		}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		record := make([]byte, len(line)+1)
		copy(record, line)
		record[len(line)] = '\n'

		if !cur.TryAppend(record) {
			// A record is never split across buffers: flush the current
			// buffer and start a fresh one before retrying the append.
			flush()
			if next, ok := c.pool.TryAcquireEmpty(); ok {
				cur = next
			} else {
				if c.metrics != nil {
					c.metrics.bufferFullWait.Inc()
				}
				cur = c.pool.AcquireEmpty()
			}
			curStart = c.nextSeq.Load()
			curCount = 0
			if !cur.TryAppend(record) {
				return errors.WrapKind(errors.KindIngress, errors.ErrInvalidData, "Client", "ReceiveJSONs",
					"single record exceeds buffer capacity")
			}
		}

		c.nextSeq.Add(1)
		curCount++
		c.received.Add(1)

		if c.metrics != nil {
			c.metrics.recordsReceived.Inc()
			c.metrics.bytesReceived.Add(float64(len(record)))
			c.metrics.lastActivity.Set(float64(time.Now().Unix()))
		}
	}
	if err := scanner.Err(); err != nil {
		if c.metrics != nil {
			c.metrics.connectionErrs.Inc()
		}
		flush()
		return errors.WrapKind(errors.KindIngress, err, "Client", "ReceiveJSONs", "read from ingress source")
	}

	flush()
	return nil
}
