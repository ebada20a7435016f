package zfile

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// readRemainder reads from the current position through end of stream.
func readRemainder(t *testing.T, f *File) []byte {
	t.Helper()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestSeekUncompressed(t *testing.T) {
	payload := randomBytes(t, 10000)
	path := writeTestFile(t, payload)

	f, err := Open(path, "r")
	require.NoError(t, err)
	defer f.Close()

	for _, pos := range []int64{0, 1, 4095, 4096, 4097, 9999, 10000} {
		t.Run(fmt.Sprintf("pos%d", pos), func(t *testing.T) {
			np, err := f.Seek(pos)
			require.NoError(t, err)
			require.Equal(t, pos, np)
			require.Equal(t, pos, f.Tell())
			require.True(t, bytes.Equal(payload[pos:], readRemainder(t, f)))
		})
	}

	_, err = f.Seek(10001)
	require.ErrorIs(t, err, ErrSeekPastEnd)
}

func TestSeekCompressed(t *testing.T) {
	payload := randomBytes(t, 3*4096 + 100)
	path := filepath.Join(t.TempDir(), "data.gz")

	w, err := Open(path, "w6")
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := Open(path, "r")
	require.NoError(t, err)
	defer f.Close()

	// Forward seek replays the inflate stream up to the target.
	np, err := f.Seek(9000)
	require.NoError(t, err)
	require.Equal(t, int64(9000), np)
	require.True(t, bytes.Equal(payload[9000:], readRemainder(t, f)))

	// Backward seek restarts decompression from the top of the file.
	np, err = f.Seek(500)
	require.NoError(t, err)
	require.Equal(t, int64(500), np)
	require.True(t, bytes.Equal(payload[500:], readRemainder(t, f)))

	// Past the end of the logical stream.
	_, err = f.Seek(int64(len(payload)) + 1)
	require.ErrorIs(t, err, ErrSeekPastEnd)
}

func TestSeekInWindow(t *testing.T) {
	payload := randomBytes(t, 2000)
	path := writeTestFile(t, payload)

	f, err := Open(path, "r")
	require.NoError(t, err)
	defer f.Close()

	// Load the window, then hop around inside it.
	_, err = f.Read(make([]byte, 100))
	require.NoError(t, err)

	for _, pos := range []int64{10, 1999, 0, 500} {
		np, err := f.Seek(pos)
		require.NoError(t, err)
		require.Equal(t, pos, np)

		var b [1]byte
		_, err = f.Read(b[:])
		require.NoError(t, err)
		require.Equal(t, payload[pos], b[0])
	}
}

func TestRewind(t *testing.T) {
	payload := randomBytes(t, 9000)
	path := writeTestFile(t, payload)

	f, err := Open(path, "r")
	require.NoError(t, err)
	defer f.Close()

	// Rewind before reading anything is a pure state reset.
	require.NoError(t, f.Rewind())
	require.Equal(t, int64(0), f.Tell())

	// Read past the first buffer window, then rewind for real.
	_, err = f.Read(make([]byte, 6000))
	require.NoError(t, err)
	require.NoError(t, f.Rewind())
	require.Equal(t, int64(0), f.Tell())
	require.False(t, f.EOF())
	require.True(t, bytes.Equal(payload, readRemainder(t, f)))
}

func TestRewindCompressed(t *testing.T) {
	payload := randomBytes(t, 9000)
	path := filepath.Join(t.TempDir(), "data.gz")

	w, err := Open(path, "w4")
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := Open(path, "r")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Read(make([]byte, 7000))
	require.NoError(t, err)
	require.True(t, f.IsCompressed())

	require.NoError(t, f.Rewind())
	require.Equal(t, int64(0), f.Tell())
	require.True(t, bytes.Equal(payload, readRemainder(t, f)))
}

func TestSeekClearsEOF(t *testing.T) {
	payload := []byte("0123456789")
	path := writeTestFile(t, payload)

	f, err := Open(path, "r")
	require.NoError(t, err)
	defer f.Close()

	_, err = io.ReadAll(f)
	require.NoError(t, err)
	require.True(t, f.EOF())

	_, err = f.Seek(5)
	require.NoError(t, err)
	require.False(t, f.EOF())
	require.Equal(t, "56789", string(readRemainder(t, f)))
}

func TestTellTracksLogicalOffset(t *testing.T) {
	payload := randomBytes(t, 5000)
	path := filepath.Join(t.TempDir(), "data.gz")

	w, err := Open(path, "w9")
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), w.Tell())
	require.NoError(t, w.Close())

	f, err := Open(path, "r")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Read(make([]byte, 1234))
	require.NoError(t, err)
	require.Equal(t, int64(1234), f.Tell(), "position is in the uncompressed stream")
}
