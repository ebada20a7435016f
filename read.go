package zfile

import (
	"fmt"
	"io"
)

// readable rejects read-side operations on write handles and reports
// any latched hard error.
func (f *File) readable() error {
	if f.mode != modeRead && f.mode != modeSocket {
		return ErrNotReadable
	}
	return f.rerr
}

// Read reads into p, filling it completely unless the stream ends
// first. It returns io.EOF once the stream is exhausted and the latched
// hard error after a transport or codec failure.
func (f *File) Read(p []byte) (int, error) {
	if err := f.readable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.eof {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) {
		if f.ptr >= f.end {
			n, err := f.fill()
			if err != nil || n == 0 {
				if total > 0 {
					return total, nil
				}
				if err != nil {
					return 0, err
				}
				return 0, io.EOF
			}
		}

		n := copy(p[total:], f.buf[f.ptr:f.end])
		f.ptr += n
		f.pos += int64(n)
		total += n
	}
	return total, nil
}

// GetChar reads a single byte.
func (f *File) GetChar() (byte, error) {
	if err := f.readable(); err != nil {
		return 0, err
	}
	if f.eof {
		return 0, io.EOF
	}

	if f.ptr >= f.end {
		n, err := f.fill()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
	}

	c := f.buf[f.ptr]
	f.ptr++
	f.pos++
	return c, nil
}

// PeekChar returns the next byte without consuming it.
func (f *File) PeekChar() (byte, error) {
	if err := f.readable(); err != nil {
		return 0, err
	}

	if f.ptr >= f.end {
		n, err := f.fill()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
	}
	return f.buf[f.ptr], nil
}

// GetLine reads one CR, LF, or CRLF-terminated line that may contain
// binary data into buf, preserving the terminator, and returns the
// number of bytes on the line. Two bytes of headroom are reserved so a
// CRLF pair is never split across calls. It returns (0, io.EOF) at end
// of stream.
func (f *File) GetLine(buf []byte) (int, error) {
	if err := f.readable(); err != nil {
		return 0, err
	}
	if len(buf) < 3 {
		return 0, io.ErrShortBuffer
	}

	ptr := 0
	for ptr < len(buf)-2 {
		if f.ptr >= f.end {
			n, err := f.fill()
			if err != nil {
				if ptr == 0 {
					return 0, err
				}
				break
			}
			if n == 0 {
				break
			}
		}

		ch := f.buf[f.ptr]
		f.ptr++
		f.pos++
		buf[ptr] = ch
		ptr++

		if ch == '\r' {
			// Keep the LF of a CRLF pair on this line.
			if f.ptr >= f.end {
				if n, err := f.fill(); err != nil || n == 0 {
					break
				}
			}
			if f.buf[f.ptr] == '\n' {
				buf[ptr] = '\n'
				ptr++
				f.ptr++
				f.pos++
			}
			break
		} else if ch == '\n' {
			break
		}
	}

	if ptr == 0 {
		return 0, io.EOF
	}
	return ptr, nil
}

// Gets reads one line with the CR, LF, or CRLF terminator stripped,
// using buf as the line buffer. It returns io.EOF only at end of stream
// with nothing consumed; an empty string with a nil error is a blank
// line.
func (f *File) Gets(buf []byte) (string, error) {
	if err := f.readable(); err != nil {
		return "", err
	}
	if len(buf) < 2 {
		return "", io.ErrShortBuffer
	}

	ptr := 0
	for ptr < len(buf)-1 {
		if f.ptr >= f.end {
			n, err := f.fill()
			if err != nil || n == 0 {
				if ptr == 0 {
					if err != nil {
						return "", err
					}
					return "", io.EOF
				}
				return string(buf[:ptr]), nil
			}
		}

		ch := f.buf[f.ptr]
		f.ptr++
		f.pos++

		if ch == '\r' {
			// Swallow the LF of a CRLF pair.
			if f.ptr >= f.end {
				if n, err := f.fill(); err != nil || n == 0 {
					break
				}
			}
			if f.buf[f.ptr] == '\n' {
				f.ptr++
				f.pos++
			}
			break
		} else if ch == '\n' {
			break
		}

		buf[ptr] = ch
		ptr++
	}

	return string(buf[:ptr]), nil
}

// Rewind resets the logical position to the beginning of the stream.
// If nothing past the first buffer window has been read this is a pure
// state reset; otherwise the descriptor is rewound and any active
// inflate state discarded so the next read re-probes the stream.
func (f *File) Rewind() error {
	if f.mode != modeRead {
		return ErrNotReadable
	}

	if f.bufpos == 0 && f.rerr == nil {
		f.pos = 0
		if f.loaded {
			f.ptr = 0
			f.eof = false
		}
		return nil
	}

	return f.restart()
}

// restart rewinds the descriptor and resets all buffer and codec state
// to unprobed.
func (f *File) restart() error {
	if f.dec != nil {
		f.dec.fr.Close()
		f.dec = nil
	}
	f.compressed = false

	if _, err := f.fd.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("zfile: seek: %w", err)
	}

	f.rstate = stateUnprobed
	f.cpos, f.cend = 0, 0
	f.ptr, f.end = 0, 0
	f.bufpos, f.pos = 0, 0
	f.loaded = false
	f.eof = false
	f.rerr = nil
	return nil
}

// Seek repositions the read cursor at the given logical offset. A
// target inside the current buffer window needs no I/O. On compressed
// streams an out-of-window seek restarts decompression from the top of
// the stream and replays it until the window containing the target is
// reached; there is no other way to map a logical offset to a physical
// one. Seeking past the end of the stream fails.
func (f *File) Seek(pos int64) (int64, error) {
	if f.mode != modeRead {
		return -1, ErrNotReadable
	}
	if pos < 0 {
		return -1, ErrSeekPastEnd
	}
	if pos == 0 {
		if err := f.Rewind(); err != nil {
			return -1, err
		}
		return 0, nil
	}

	// A latched hard error leaves the buffer and codec state
	// meaningless; start over from the top of the stream.
	if f.rerr != nil {
		if err := f.restart(); err != nil {
			return -1, err
		}
	}

	if f.loaded && pos >= f.bufpos && pos < f.bufpos+int64(f.end) {
		f.ptr = int(pos - f.bufpos)
		f.pos = pos
		f.eof = false
		return pos, nil
	}

	// Probe the stream first so we know whether a physical seek is
	// even meaningful.
	if !f.loaded && f.rstate == stateUnprobed {
		n, err := f.fill()
		if err != nil {
			return -1, err
		}
		if n == 0 {
			return -1, ErrSeekPastEnd
		}
		if pos < f.bufpos+int64(f.end) {
			f.ptr = int(pos - f.bufpos)
			f.pos = pos
			f.eof = false
			return pos, nil
		}
	}

	f.eof = false

	if f.gzip {
		if pos < f.bufpos {
			if err := f.restart(); err != nil {
				return -1, err
			}
		}
		for {
			n, err := f.fill()
			if err != nil {
				return -1, err
			}
			if n == 0 {
				f.eof = false
				return -1, ErrSeekPastEnd
			}
			if pos <= f.bufpos+int64(f.end) {
				break
			}
		}
		f.ptr = int(pos - f.bufpos)
		f.pos = pos
		return pos, nil
	}

	// Uncompressed: a direct physical seek, bounded by the file size.
	st, err := f.fd.Stat()
	if err != nil {
		return -1, fmt.Errorf("zfile: stat: %w", err)
	}
	if pos > st.Size() {
		return -1, ErrSeekPastEnd
	}

	np, err := f.fd.Seek(pos, io.SeekStart)
	if err != nil {
		return -1, fmt.Errorf("zfile: seek: %w", err)
	}

	f.bufpos, f.pos = np, np
	f.ptr, f.end = 0, 0
	f.loaded = false
	f.cpos, f.cend = 0, 0
	return np, nil
}
