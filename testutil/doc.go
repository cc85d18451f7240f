// Package testutil provides mock implementations and generic test data for
// exercising the conversion pipeline without a live NATS server or TCP
// source.
//
// # Mock Implementations
//
// MockNATSClient - in-memory NATS client for testing pub/sub patterns:
//   - Thread-safe for concurrent use
//   - Stores all published messages for verification
//   - Supports subscription handlers
//   - No external NATS server required
//
// MockKVStore - in-memory key-value store, used by tests that stand in for
// a message bus's durable storage without testcontainers.
//
// # Test Data
//
// TestMessages and TestJSONObjects provide generic newline-delimited JSON
// fixtures matching the shape parse.Context expects.
//
// # Real Dependencies Preferred
//
// Use mocks only when testcontainers is impractical:
//   - Use testcontainers for NATS (real behavior) in integration tests
//   - Use MockNATSClient for fast unit tests of code that needs only
//     Publish/Subscribe; publish.Publisher takes a *natsclient.Client and
//     cannot use it
package testutil
