// Package buffer holds the fixed-capacity JSON input buffers that ingress
// fills and parsers drain, the pool that lends them out, and the allocator
// abstraction backing parser output regions.
package buffer
