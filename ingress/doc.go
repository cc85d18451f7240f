// Package ingress is the TCP client that fills JSONBuffers from a
// newline-delimited JSON source, assigning each record a monotonically
// increasing sequence number. Grounded on the teacher's UDP input component
// (input/udp/udp.go in the pre-transform tree), adapted from UDP/datagram
// framing to a TCP byte stream with newline-delimited record boundaries.
package ingress
