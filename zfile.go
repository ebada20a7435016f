package zfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// bufSize is the size of the data buffer and of the compressed-side
// codec buffer. Consumers must not depend on it.
const bufSize = 4096

var (
	ErrInvalidMode      = errors.New("zfile: invalid open mode")
	ErrNotReadable      = errors.New("zfile: file not open for reading")
	ErrNotWritable      = errors.New("zfile: file not open for writing")
	ErrBadGzipHeader    = errors.New("zfile: malformed gzip header")
	ErrTruncatedGzip    = errors.New("zfile: truncated gzip stream")
	ErrChecksum         = errors.New("zfile: gzip checksum mismatch")
	ErrUnsafeTarget     = errors.New("zfile: unsafe write target")
	ErrFormatOverflow   = errors.New("zfile: formatted output exceeds 64KB")
	ErrLockNotSupported = errors.New("zfile: locking not supported on sockets")
	ErrSeekPastEnd      = errors.New("zfile: seek past end of stream")
)

// modeKind identifies what a handle was opened for. Append collapses
// into modeWrite at open time with the position at end-of-file.
type modeKind uint8

const (
	modeRead modeKind = iota
	modeWrite
	modeSocket
)

// readState tracks the decompression engine's state machine. A reader
// starts unprobed; the first fill inspects the stream for a gzip member
// header and settles on raw passthrough or inflation. A verified
// trailer returns the engine to stateUnprobed so that concatenated
// members decode transparently.
type readState uint8

const (
	stateUnprobed readState = iota
	stateRaw
	stateInflate
)

// File is a buffered handle over a file, socket, or standard stream.
// It is not safe for concurrent use.
type File struct {
	fd      *os.File
	mode    modeKind
	isStdio bool
	eof     bool
	rerr    error // latched hard read error

	// Data buffer window. ptr is the read/write cursor, end marks the
	// end of valid data (read side). bufpos is the logical offset of
	// buf[0]; loaded reports whether the window holds live data.
	buf    [bufSize]byte
	ptr    int
	end    int
	pos    int64
	bufpos int64
	loaded bool

	// Compressed-side codec buffer, shared by the probe and the
	// inflater so that leftover bytes survive member boundaries.
	cbuf   [bufSize]byte
	cpos   int
	cend   int
	rstate readState
	gzip   bool // stream began with a gzip member

	compressed bool
	dec        *decoder
	enc        *encoder

	printf []byte // Printf scratch buffer, grown on demand
}

// Open opens a file or socket.
//
// The filename is a path, or a "host:port" address for socket mode.
//
// The mode is "r" to read, "w" to write (truncating any existing file),
// "a" to append, or "s" to open a socket connection. Write mode accepts
// an optional digit from 1 to 9 enabling gzip compression of the file
// at that level; compression is not supported for append. Write and
// append modes accept an optional "m###" suffix giving the octal
// permissions used when creating the file.
//
// Socket opens resolve the host, preferring IPv6 addresses when both
// families are available, and must connect within 30 seconds.
func Open(filename, mode string) (*File, error) {
	om, err := parseOpenMode(mode)
	if err != nil {
		return nil, err
	}

	var fd *os.File
	switch om.kind {
	case modeRead:
		fd, err = os.OpenFile(filename, os.O_RDONLY, 0)

	case modeWrite:
		if om.append {
			fd, err = safeOpen(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, om.perm)
			break
		}

		// Open an existing file first so that the safe-open checks see
		// it; fall back to exclusive creation, and retry a plain open
		// once if the file reappears underneath us.
		fd, err = safeOpen(filename, os.O_WRONLY, om.perm)
		if errors.Is(err, os.ErrNotExist) {
			fd, err = safeOpen(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, om.perm)
			if errors.Is(err, os.ErrExist) {
				fd, err = safeOpen(filename, os.O_WRONLY, om.perm)
			}
		}
		if err == nil {
			if terr := fd.Truncate(0); terr != nil {
				fd.Close()
				return nil, fmt.Errorf("zfile: truncate %s: %w", filename, terr)
			}
		}

	case modeSocket:
		fd, err = dialHostPort(filename)
	}
	if err != nil {
		return nil, err
	}

	f, err := newFile(fd, om, false)
	if err != nil {
		fd.Close()
		return nil, err
	}
	return f, nil
}

// OpenFd prepares an existing file descriptor for use with this
// package. The mode grammar is the same as for Open; "s" treats the
// descriptor as a bidirectional socket. The descriptor is marked
// close-on-exec and is owned by the returned File.
func OpenFd(fd uintptr, mode string) (*File, error) {
	om, err := parseOpenMode(mode)
	if err != nil {
		return nil, err
	}

	setCloseOnExec(int(fd))

	return newFile(os.NewFile(fd, "fd"), om, false)
}

// newFile builds a File around an open descriptor.
func newFile(fd *os.File, om openMode, stdio bool) (*File, error) {
	f := &File{
		fd:      fd,
		mode:    om.kind,
		isStdio: stdio,
	}

	switch om.kind {
	case modeRead:
		f.rstate = stateUnprobed

	case modeSocket:
		// Sockets never probe for compression.
		f.rstate = stateRaw

	case modeWrite:
		if om.append {
			pos, err := fd.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, fmt.Errorf("zfile: seek to end: %w", err)
			}
			f.pos = pos
		}
		if om.level > 0 {
			enc, err := newEncoder(f, om.level)
			if err != nil {
				return nil, err
			}
			f.enc = enc
			f.compressed = true
		}
	}

	return f, nil
}

// Close flushes pending output, finalizes any active codec (writing the
// gzip trailer for compressed writers), and releases the descriptor.
// The standard-stream handles are never released; Close on them only
// flushes. The File must not be used after Close regardless of the
// returned error.
func (f *File) Close() error {
	var err error

	if f.mode == modeWrite {
		err = f.Flush()
	}

	if f.enc != nil {
		if ferr := f.enc.finish(f.pos); err == nil {
			err = ferr
		}
		f.enc = nil
	}
	if f.dec != nil {
		f.dec.fr.Close()
		f.dec = nil
	}

	if f.isStdio {
		return err
	}

	if cerr := f.fd.Close(); err == nil {
		err = cerr
	}
	return err
}

// EOF reports whether the handle has reached end of stream.
func (f *File) EOF() bool {
	return f.eof
}

// IsCompressed reports whether a gzip codec is currently active on the
// handle.
func (f *File) IsCompressed() bool {
	return f.compressed
}

// Fd returns the underlying descriptor.
func (f *File) Fd() uintptr {
	return f.fd.Fd()
}

// Tell returns the current logical position: the offset in the
// uncompressed stream, regardless of any active codec.
func (f *File) Tell() int64 {
	return f.pos
}

// Lock takes an exclusive advisory lock on the descriptor, waiting for
// it when block is true and failing immediately otherwise. Locking is
// not supported for sockets.
func (f *File) Lock(block bool) error {
	if f.mode == modeSocket {
		return ErrLockNotSupported
	}

	how := unix.LOCK_EX
	if !block {
		how |= unix.LOCK_NB
	}
	if err := unix.Flock(int(f.fd.Fd()), how); err != nil {
		return fmt.Errorf("zfile: lock: %w", err)
	}
	return nil
}

// Unlock releases the advisory lock on the descriptor.
func (f *File) Unlock() error {
	if f.mode == modeSocket {
		return ErrLockNotSupported
	}

	if err := unix.Flock(int(f.fd.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("zfile: unlock: %w", err)
	}
	return nil
}

// Standard-stream handles are created on first use and last for the
// life of the process; any caller may use them and Close on them is a
// flush-only no-op.
var stdio struct {
	sync.Mutex
	files [3]*File
}

func stdioFile(role int) *File {
	stdio.Lock()
	defer stdio.Unlock()

	if stdio.files[role] == nil {
		var fd *os.File
		om := openMode{kind: modeWrite, perm: 0o664}
		switch role {
		case 0:
			fd, om.kind = os.Stdin, modeRead
		case 1:
			fd = os.Stdout
		case 2:
			fd = os.Stderr
		}
		f, _ := newFile(fd, om, true)
		stdio.files[role] = f
	}
	return stdio.files[role]
}

// Stdin returns the handle associated with standard input.
func Stdin() *File { return stdioFile(0) }

// Stdout returns the handle associated with standard output. Output
// through it is flushed after every Puts and Printf.
func Stdout() *File { return stdioFile(1) }

// Stderr returns the handle associated with standard error.
func Stderr() *File { return stdioFile(2) }
