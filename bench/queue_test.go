package bench

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRunQueue_CompletesWithoutError(t *testing.T) {
	err := RunQueue([]string{"-m", "32", "--num-buffers", "4"}, discardLogger())
	require.NoError(t, err)
}

func TestRunQueue_CSVMode(t *testing.T) {
	err := RunQueue([]string{"-m", "8", "--num-buffers", "2", "--csv"}, discardLogger())
	require.NoError(t, err)
}
