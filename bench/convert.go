package bench

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	arrowpkg "github.com/apache/arrow-go/v18/arrow"

	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/convert"
	"github.com/SigmaX-ai/bolson/parse"
	"github.com/SigmaX-ai/bolson/pkg/worker"
)

// parseScaledInt parses an integer with an optional Ki/Mi/Gi binary
// scaling suffix, matching cli.cpp's --total-json-bytes help text.
func parseScaledInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "Ki"):
		mult = 1024
		s = strings.TrimSuffix(s, "Ki")
	case strings.HasSuffix(s, "Mi"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "Mi")
	case strings.HasSuffix(s, "Gi"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "Gi")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid scaled integer %q: %w", s, err)
	}
	return n * mult, nil
}

// convertBenchSchema is the fixed record shape generated by GenerateJSONs,
// matching bench.h's ConvertBenchOptions.schema.
func convertBenchSchema() *arrowpkg.Schema {
	return arrowpkg.NewSchema([]arrowpkg.Field{
		{Name: "voltage", Type: arrowpkg.PrimitiveTypes.Float64, Nullable: false},
	}, nil)
}

// GenerateJSONs produces numJSONs newline-delimited JSON records matching
// convertBenchSchema, returning the concatenated bytes and the size in
// bytes of the largest single record. Grounded on bench.h's GenerateJSONs.
func GenerateJSONs(numJSONs int, seed int64) (data []byte, largest int) {
	rnd := rand.New(rand.NewSource(seed))
	for i := 0; i < numJSONs; i++ {
		line := fmt.Sprintf(`{"voltage":%.6f}`+"\n", rnd.Float64()*330.0)
		if len(line) > largest {
			largest = len(line)
		}
		data = append(data, line...)
	}
	return data, largest
}

// FillBuffers copies data into bufs, splitting on JSON record boundaries so
// no record is split across two buffers, assigning contiguous sequence
// ranges starting at 0. Grounded on bench.h's FillBuffers.
func FillBuffers(bufs []*buffer.JSONBuffer, data []byte) {
	var seq uint64
	bufIdx := 0
	start := 0
	count := uint64(0)
	lastEnd := 0
	flush := func(end int) {
		if count == 0 {
			return
		}
		bufs[bufIdx].Fill(data[start:end], buffer.NewSeqRange(seq, seq+count-1))
		seq += count
		bufIdx++
		count = 0
		start = end
	}
	for i, b := range data {
		if b != '\n' {
			continue
		}
		if count > 0 && bufIdx < len(bufs)-1 && i+1-start > bufs[bufIdx].Capacity() {
			flush(lastEnd)
		}
		count++
		lastEnd = i + 1
	}
	if bufIdx < len(bufs) {
		flush(len(data))
	}
}

// RunConvert benchmarks the parse→resize→serialize path in isolation from
// ingress and publishing, optionally stopping after parsing. Grounded on
// bench.h's BenchConvert / ConvertBenchOptions.
func RunConvert(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("bench convert", flag.ExitOnError)
	totalBytesStr := fs.String("total-json-bytes", "16Mi", "total bytes of JSON to generate (accepts Ki/Mi/Gi suffixes)")
	parseOnly := fs.Bool("parse-only", false, "skip resize/serialize, measure parsing alone")
	seed := fs.Int64("seed", 0, "PRNG seed for JSON generation")
	repeats := fs.Int("repeats", 1, "number of times to repeat the benchmark")
	threads := fs.Int("threads", 4, "number of parser worker threads")
	maxRows := fs.Int64("max-rows", 1<<16, "maximum rows per serialized batch")
	maxMsgSize := fs.Int("max-msg-size", 5*1024*1024-10*1024, "maximum serialized IPC message size")
	csv := fs.Bool("csv", false, "print result as a single CSV-like line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	totalBytes, err := parseScaledInt(*totalBytesStr)
	if err != nil {
		return err
	}

	bufCap := 1 << 20
	numBuffers := (int(totalBytes) / bufCap) + 1
	allocator := buffer.NewHeapAllocator()

	for r := 0; r < *repeats; r++ {
		data, largest := GenerateJSONs(int(totalBytes)/24+1, *seed+int64(r))
		_ = largest

		bufs := make([]*buffer.JSONBuffer, numBuffers)
		for i := range bufs {
			bufs[i] = buffer.NewJSONBuffer(bufCap)
		}
		FillBuffers(bufs, data)

		parserCtx := parse.NewSoftwareContext(parse.SoftwareOptions{
			Schema:    convertBenchSchema(),
			SeqColumn: true,
			ChunkSize: 1 << 20,
		}, *threads, allocator)
		parsers := parserCtx.Parsers()

		resizer := convert.Resizer{MaxRows: *maxRows}
		serializer := convert.NewSerializer(*maxMsgSize, nil)

		start := time.Now()
		stats, err := runConvertOnce(bufs, parsers, resizer, serializer, *parseOnly, *threads)
		elapsed := time.Since(start)
		if err != nil {
			return err
		}

		if *csv {
			fmt.Printf("repeat,elapsed_s,json_bytes,ipc_bytes\n%d,%.3f,%d,%d\n", r, elapsed.Seconds(), stats.JSONBytes, stats.IPCBytes)
		} else {
			logger.Info("convert benchmark repeat complete",
				"repeat", r, "elapsed", elapsed,
				"json_bytes", stats.JSONBytes, "ipc_bytes", stats.IPCBytes)
		}
	}
	return nil
}

// runConvertOnce drives numThreads worker.Pool[int] tasks (one per worker
// index) that drain a shared channel of filled buffers, each parsing (and optionally resizing/serializing) one buffer, and
// returns the aggregated stats. Grounded on pkg/worker's generic pool,
// repurposed here from request-processing to benchmark work distribution.
func runConvertOnce(bufs []*buffer.JSONBuffer, parsers []parse.Parser, resizer convert.Resizer, serializer convert.Serializer, parseOnly bool, numThreads int) (convert.Stats, error) {
	var aggregate convert.Stats
	statsCh := make(chan convert.Stats, len(bufs))

	next := make(chan *buffer.JSONBuffer, len(bufs))
	for _, b := range bufs {
		if b.Filled() {
			next <- b
		}
	}
	close(next)

	process := func(ctx context.Context, workerIdx int) error {
		p := parsers[workerIdx%len(parsers)]
		for b := range next {
			var s convert.Stats
			parseStart := time.Now()
			batches, err := p.Parse([]*buffer.JSONBuffer{b})
			s.Time.Parse = time.Since(parseStart)
			if err != nil {
				return err
			}
			s.NumJSONs = uint64(b.SeqRange().NumRows())
			s.JSONBytes = uint64(b.Size())
			for _, pb := range batches {
				s.NumParsed++
				if parseOnly {
					continue
				}
				for _, rb := range resizer.Resize(pb) {
					sb, err := serializer.Serialize(rb)
					if err != nil {
						return err
					}
					s.NumIPC++
					s.IPCBytes += uint64(sb.ByteSize())
				}
			}
			statsCh <- s
		}
		return nil
	}

	pool := worker.NewPool[int](numThreads, numThreads, process)
	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		return aggregate, err
	}
	for i := 0; i < numThreads; i++ {
		_ = pool.Submit(i)
	}
	_ = pool.Stop(30 * time.Second)
	close(statsCh)
	for s := range statsCh {
		aggregate.Add(s)
	}
	return aggregate, nil
}
