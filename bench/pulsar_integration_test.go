package bench_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/SigmaX-ai/bolson/bench"
)

func startNATSContainerWithJS(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
		Cmd:          []string{"-js"},
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	return container, fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestIntegration_RunPulsar_PublishesAgainstRealJetStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	container, url := startNATSContainerWithJS(ctx, t)
	defer container.Terminate(ctx)

	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	err := bench.RunPulsar([]string{
		"--bus-url", url,
		"--bus-subject", "bolson.bench.itest",
		"--num-messages", "16",
		"--message-size", "256",
		"--csv",
	}, logger)
	require.NoError(t, err)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
