package zfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// connectTimeout bounds the whole socket open: resolution plus the
// connection attempts across all candidate addresses.
const connectTimeout = 30 * time.Second

// rawRead reads from the descriptor, retrying interrupted and
// temporarily-unavailable conditions. It returns 0 with a nil error at
// end of stream; any other failure is a hard error.
func (f *File) rawRead(p []byte) (int, error) {
	for {
		n, err := f.fd.Read(p)
		switch {
		case err == nil:
			return n, nil
		case err == io.EOF:
			return 0, nil
		case errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN):
			continue
		default:
			return 0, fmt.Errorf("zfile: read: %w", err)
		}
	}
}

// rawWrite writes all of p to the descriptor, retrying interrupted and
// temporarily-unavailable conditions.
func (f *File) rawWrite(p []byte) error {
	for len(p) > 0 {
		n, err := f.fd.Write(p)
		if err != nil && !errors.Is(err, unix.EINTR) && !errors.Is(err, unix.EAGAIN) {
			return fmt.Errorf("zfile: write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// transportWriter adapts the retrying writer to io.Writer for the
// compression engine's staging buffer.
type transportWriter struct{ f *File }

func (w transportWriter) Write(p []byte) (int, error) {
	if err := w.f.rawWrite(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// dialHostPort connects a TCP socket to a "host:port" address and hands
// back its descriptor as an *os.File. IPv6 addresses are preferred when
// the host resolves to both families.
func dialHostPort(address string) (*os.File, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("zfile: bad socket address %q: %w", address, err)
	}

	deadline := time.Now().Add(connectTimeout)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("zfile: resolve %s: %w", host, err)
	}

	// Try IPv6 candidates before IPv4 ones.
	ordered := make([]net.IPAddr, 0, len(addrs))
	for _, a := range addrs {
		if a.IP.To4() == nil {
			ordered = append(ordered, a)
		}
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			ordered = append(ordered, a)
		}
	}

	var conn net.Conn
	for _, a := range ordered {
		d := net.Dialer{Deadline: deadline}
		conn, err = d.Dial("tcp", net.JoinHostPort(a.IP.String(), port))
		if err == nil {
			break
		}
	}
	if conn == nil {
		return nil, fmt.Errorf("zfile: connect %s: %w", address, err)
	}

	// Detach the descriptor from the runtime poller; the handle uses
	// plain blocking I/O.
	fd, err := conn.(*net.TCPConn).File()
	conn.Close()
	if err != nil {
		return nil, fmt.Errorf("zfile: connect %s: %w", address, err)
	}
	return fd, nil
}

// safeOpen opens a path for writing and rejects targets that could be
// part of a symlink or hardlink substitution race: the open descriptor
// must be a regular-style file with a link count of exactly one, and an
// independent lstat of the path must not be a symlink and must agree
// with the descriptor on device, inode, link count, and mode. On any
// mismatch the descriptor is closed and ErrUnsafeTarget returned.
func safeOpen(name string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	var fi unix.Stat_t
	if err := unix.Fstat(int(fd.Fd()), &fi); err != nil {
		fd.Close()
		return nil, fmt.Errorf("zfile: fstat %s: %w", name, err)
	}
	if fi.Nlink != 1 || fi.Mode&unix.S_IFMT == unix.S_IFDIR {
		fd.Close()
		return nil, ErrUnsafeTarget
	}

	var li unix.Stat_t
	if err := unix.Lstat(name, &li); err != nil {
		fd.Close()
		return nil, fmt.Errorf("zfile: lstat %s: %w", name, err)
	}
	if li.Mode&unix.S_IFMT == unix.S_IFLNK ||
		fi.Dev != li.Dev || fi.Ino != li.Ino ||
		fi.Nlink != li.Nlink || fi.Mode != li.Mode {
		fd.Close()
		return nil, ErrUnsafeTarget
	}

	return fd, nil
}

// setCloseOnExec keeps a descriptor from leaking into child processes.
// Failure is not fatal.
func setCloseOnExec(fd int) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return
	}
	unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags|unix.FD_CLOEXEC)
}
