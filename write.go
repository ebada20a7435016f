package zfile

import (
	"fmt"
)

// printfMax caps the Printf scratch buffer; a single formatted write
// larger than this fails without touching the stream.
const printfMax = 64 * 1024

// writable rejects write-side operations on read handles.
func (f *File) writable() error {
	if f.mode != modeWrite && f.mode != modeSocket {
		return ErrNotWritable
	}
	return nil
}

// Flush pushes buffered bytes through the active codec or the raw
// writer. It is valid only for write handles and is a no-op on an
// empty buffer.
func (f *File) Flush() error {
	if f.mode != modeWrite {
		return ErrNotWritable
	}
	if f.ptr == 0 {
		return nil
	}

	n := f.ptr
	f.ptr = 0

	if f.enc != nil {
		return f.enc.write(f.buf[:n])
	}
	return f.rawWrite(f.buf[:n])
}

// Write writes p, coalescing small writes into the buffer. Socket
// writes bypass buffering entirely; a write larger than the buffer is
// pushed straight through the codec or transport.
func (f *File) Write(p []byte) (int, error) {
	if err := f.writable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	if f.mode == modeSocket {
		if err := f.rawWrite(p); err != nil {
			return 0, err
		}
		f.pos += int64(len(p))
		return len(p), nil
	}

	if f.ptr+len(p) > bufSize {
		if err := f.Flush(); err != nil {
			return 0, err
		}
	}

	f.pos += int64(len(p))

	if len(p) > bufSize {
		if f.enc != nil {
			if err := f.enc.write(p); err != nil {
				return 0, err
			}
		} else if err := f.rawWrite(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	f.ptr += copy(f.buf[f.ptr:], p)
	return len(p), nil
}

// PutChar writes a single byte.
func (f *File) PutChar(c byte) error {
	if err := f.writable(); err != nil {
		return err
	}

	if f.mode == modeSocket {
		if err := f.rawWrite([]byte{c}); err != nil {
			return err
		}
		f.pos++
		return nil
	}

	if f.ptr >= bufSize {
		if err := f.Flush(); err != nil {
			return err
		}
	}

	f.buf[f.ptr] = c
	f.ptr++
	f.pos++
	return nil
}

// Puts writes a string; no newline is appended. Standard-stream
// handles are flushed afterward.
func (f *File) Puts(s string) error {
	if err := f.writable(); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}

	if f.mode == modeSocket {
		if err := f.rawWrite([]byte(s)); err != nil {
			return err
		}
		f.pos += int64(len(s))
		return nil
	}

	if f.ptr+len(s) > bufSize {
		if err := f.Flush(); err != nil {
			return err
		}
	}

	f.pos += int64(len(s))

	if len(s) > bufSize {
		if f.enc != nil {
			if err := f.enc.write([]byte(s)); err != nil {
				return err
			}
		} else if err := f.rawWrite([]byte(s)); err != nil {
			return err
		}
	} else {
		f.ptr += copy(f.buf[f.ptr:], s)
	}

	if f.isStdio {
		return f.Flush()
	}
	return nil
}

// Printf writes a formatted string through the handle. The rendering
// buffer grows on demand up to 64 KiB; a larger formatted result fails
// only this call.
func (f *File) Printf(format string, args ...any) error {
	if err := f.writable(); err != nil {
		return err
	}

	f.printf = fmt.Appendf(f.printf[:0], format, args...)
	if len(f.printf) > printfMax {
		f.printf = nil
		return ErrFormatOverflow
	}

	if f.mode == modeSocket {
		if err := f.rawWrite(f.printf); err != nil {
			return err
		}
		f.pos += int64(len(f.printf))
		return nil
	}

	if f.ptr+len(f.printf) > bufSize {
		if err := f.Flush(); err != nil {
			return err
		}
	}

	f.pos += int64(len(f.printf))

	if len(f.printf) > bufSize {
		if f.enc != nil {
			if err := f.enc.write(f.printf); err != nil {
				return err
			}
		} else if err := f.rawWrite(f.printf); err != nil {
			return err
		}
	} else {
		f.ptr += copy(f.buf[f.ptr:], f.printf)
	}

	if f.isStdio {
		return f.Flush()
	}
	return nil
}
