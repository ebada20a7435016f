package zfile

import (
	"bufio"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// startEchoServer accepts one connection and echoes lines back.
func startEchoServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				if _, werr := io.WriteString(conn, line); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

func TestSocketEcho(t *testing.T) {
	addr := startEchoServer(t)

	f, err := Open(addr, "s")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Puts("hello over tcp\n"))

	line, err := f.Gets(make([]byte, 128))
	require.NoError(t, err)
	require.Equal(t, "hello over tcp", line)

	// Socket handles read and write through the same descriptor.
	require.NoError(t, f.Printf("%d %s\n", 7, "ducks"))
	line, err = f.Gets(make([]byte, 128))
	require.NoError(t, err)
	require.Equal(t, "7 ducks", line)
}

func TestSocketNeverProbesForGzip(t *testing.T) {
	// Even a stream starting with the gzip magic passes through raw on
	// a socket.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	payload := []byte{0x1f, 0x8b, 0x08, 0x00, 'r', 'a', 'w', '\n'}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write(payload)
		conn.Close()
	}()

	f, err := Open(ln.Addr().String(), "s")
	require.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.False(t, f.IsCompressed())
	require.Equal(t, payload, got)
}

func TestSocketBadAddress(t *testing.T) {
	_, err := Open("no-port-here", "s")
	require.Error(t, err)

	_, err = Open("127.0.0.1:1", "s")
	require.Error(t, err, "nothing listens on the reserved port")
}
