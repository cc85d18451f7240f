package testutil

// TestMessages is a small set of generic newline-delimited JSON records,
// one object per line, matching the shape ingress.Client and parse.Context
// expect off the wire.
var TestMessages = []string{
	`{"voltage": 1.1}`,
	`{"voltage": 2.2}`,
	`{"voltage": 3.3}`,
	`{"voltage": 4.4}`,
	`{"voltage": 5.5}`,
}

// TestJSONObjects is the decoded form of TestMessages, for tests that build
// their own encoder rather than consuming the raw strings directly.
var TestJSONObjects = []map[string]any{
	{"voltage": 1.1},
	{"voltage": 2.2},
	{"voltage": 3.3},
	{"voltage": 4.4},
	{"voltage": 5.5},
}
