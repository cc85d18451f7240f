package bench

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunClient_ReceivesFromLocalListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 5; i++ {
			_, _ = conn.Write([]byte("{\"voltage\":1.0}\n"))
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	err = RunClient([]string{
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(addr.Port),
		"--duration", "200ms",
		"--csv",
	}, discardLogger())
	require.NoError(t, err)
}
