// Package bench implements per-stage microbenchmarks for the pipeline:
// the TCP client, the parse/resize/serialize conversion path, the input
// buffer queue, and the bus publisher — each runnable in isolation from
// the others, grounded on original_source/src/bolson/bench.h.
package bench
