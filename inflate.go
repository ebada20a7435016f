package zfile

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

// Gzip member framing, bit-exact per RFC 1952: a 10-byte fixed header,
// optional sections gated by the flag byte, a raw-DEFLATE payload, and
// an 8-byte trailer holding the CRC32 and length of the uncompressed
// data, both little-endian.
const (
	gzipMagic0    = 0x1f
	gzipMagic1    = 0x8b
	gzipDeflate   = 8
	gzipHeaderLen = 10

	gzipFlagHeaderCRC = 0x02
	gzipFlagExtra     = 0x04
	gzipFlagName      = 0x08
	gzipFlagComment   = 0x10
	gzipFlagReserved  = 0xe0
)

// decoder is the decompression engine for one gzip member. It is
// constructed when the probe finds a member header and dropped once the
// trailer verifies; leftover compressed-side bytes stay in the File's
// codec buffer so the next member (or trailing raw data) is not lost.
type decoder struct {
	fr  io.ReadCloser // raw-DEFLATE inflater
	crc uint32
}

// gzSource adapts the compressed-side codec buffer to the io.Reader and
// io.ByteReader interfaces the inflater pulls from. Implementing
// io.ByteReader keeps the inflater from reading past the end of the
// member, which is what makes the trailer and any following member
// recoverable.
type gzSource struct{ f *File }

func (s gzSource) Read(p []byte) (int, error) {
	f := s.f
	if f.cpos >= f.cend {
		n, err := f.rawRead(f.cbuf[:])
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		f.cpos, f.cend = 0, n
	}
	n := copy(p, f.cbuf[f.cpos:f.cend])
	f.cpos += n
	return n, nil
}

func (s gzSource) ReadByte() (byte, error) {
	f := s.f
	if f.cpos >= f.cend {
		n, err := f.rawRead(f.cbuf[:])
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		f.cpos, f.cend = 0, n
	}
	b := f.cbuf[f.cpos]
	f.cpos++
	return b, nil
}

// cbufEnsure makes at least want contiguous bytes available in the
// codec buffer, compacting and refilling as needed, and returns how
// many are actually available; fewer than want means end of stream.
func (f *File) cbufEnsure(want int) (int, error) {
	if f.cend-f.cpos >= want {
		return f.cend - f.cpos, nil
	}

	copy(f.cbuf[:], f.cbuf[f.cpos:f.cend])
	f.cend -= f.cpos
	f.cpos = 0

	for f.cend < want {
		n, err := f.rawRead(f.cbuf[f.cend:])
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
		f.cend += n
	}
	return f.cend, nil
}

// cbufSkip discards n bytes from the compressed side.
func (f *File) cbufSkip(n int) error {
	for n > 0 {
		avail, err := f.cbufEnsure(1)
		if err != nil {
			return err
		}
		if avail == 0 {
			return ErrBadGzipHeader
		}
		if avail > n {
			avail = n
		}
		f.cpos += avail
		n -= avail
	}
	return nil
}

// cbufSkipString discards bytes through a terminating NUL.
func (f *File) cbufSkipString() error {
	for {
		if f.cpos >= f.cend {
			avail, err := f.cbufEnsure(1)
			if err != nil {
				return err
			}
			if avail == 0 {
				return ErrBadGzipHeader
			}
		}
		c := f.cbuf[f.cpos]
		f.cpos++
		if c == 0 {
			return nil
		}
	}
}

// probeGzip inspects the stream for a gzip member header. When one is
// present it consumes the header, including the optional extra-field,
// original-name, comment, and header-CRC sections, and returns true;
// truncation inside the header is a hard error. Anything that is not a
// valid header (including a stream shorter than 10 bytes) leaves the
// bytes buffered for raw passthrough and returns false.
func (f *File) probeGzip() (bool, error) {
	avail, err := f.cbufEnsure(gzipHeaderLen)
	if err != nil {
		return false, err
	}
	if avail < gzipHeaderLen {
		return false, nil
	}

	h := f.cbuf[f.cpos : f.cpos+gzipHeaderLen]
	if h[0] != gzipMagic0 || h[1] != gzipMagic1 || h[2] != gzipDeflate || h[3]&gzipFlagReserved != 0 {
		return false, nil
	}

	flags := h[3]
	f.cpos += gzipHeaderLen

	if flags&gzipFlagExtra != 0 {
		if avail, err = f.cbufEnsure(2); err != nil {
			return false, err
		}
		if avail < 2 {
			return false, ErrBadGzipHeader
		}
		n := int(binary.LittleEndian.Uint16(f.cbuf[f.cpos:]))
		f.cpos += 2
		if err = f.cbufSkip(n); err != nil {
			return false, err
		}
	}
	if flags&gzipFlagName != 0 {
		if err = f.cbufSkipString(); err != nil {
			return false, err
		}
	}
	if flags&gzipFlagComment != 0 {
		if err = f.cbufSkipString(); err != nil {
			return false, err
		}
	}
	if flags&gzipFlagHeaderCRC != 0 {
		if err = f.cbufSkip(2); err != nil {
			return false, err
		}
	}

	return true, nil
}

// verifyTrailer reads the 8-byte member trailer and checks the CRC32 of
// the inflated payload against it. The length word is consumed but not
// checked; the CRC already covers the payload.
func (f *File) verifyTrailer() error {
	var tr [8]byte
	if _, err := io.ReadFull(gzSource{f}, tr[:]); err != nil {
		return ErrTruncatedGzip
	}
	if binary.LittleEndian.Uint32(tr[:4]) != f.dec.crc {
		return ErrChecksum
	}
	return nil
}

// fill loads the next window of logical data into the buffer, driving
// the probe/raw/inflate state machine. It returns the number of bytes
// in the new window; 0 with a nil error means end of stream. Hard
// errors latch eof and are returned.
func (f *File) fill() (int, error) {
	if f.loaded {
		f.bufpos += int64(f.end)
	}
	f.loaded = true
	f.ptr, f.end = 0, 0

	for {
		switch f.rstate {
		case stateUnprobed:
			ok, err := f.probeGzip()
			if err != nil {
				return 0, f.failRead(err)
			}
			if !ok {
				f.rstate = stateRaw
				continue
			}
			f.dec = &decoder{fr: flate.NewReader(gzSource{f})}
			f.gzip = true
			f.compressed = true
			f.rstate = stateInflate

		case stateInflate:
			n, err := f.dec.fr.Read(f.buf[:])
			if n > 0 {
				f.dec.crc = crc32.Update(f.dec.crc, crc32.IEEETable, f.buf[:n])
			}
			switch {
			case err == io.EOF:
				// Member complete: verify the trailer and return to the
				// unprobed state so a concatenated member is decoded.
				if terr := f.verifyTrailer(); terr != nil {
					return 0, f.failRead(terr)
				}
				f.dec.fr.Close()
				f.dec = nil
				f.compressed = false
				f.rstate = stateUnprobed
			case err == io.ErrUnexpectedEOF:
				return 0, f.failRead(ErrTruncatedGzip)
			case err != nil:
				return 0, f.failRead(fmt.Errorf("zfile: inflate: %w", err))
			}
			if n > 0 {
				f.end = n
				return n, nil
			}

		case stateRaw:
			// Drain bytes the probe buffered before going back to the
			// transport.
			if f.cpos < f.cend {
				n := copy(f.buf[:], f.cbuf[f.cpos:f.cend])
				f.cpos += n
				f.end = n
				return n, nil
			}
			n, err := f.rawRead(f.buf[:])
			if err != nil {
				return 0, f.failRead(err)
			}
			if n == 0 {
				f.eof = true
				return 0, nil
			}
			f.end = n
			return n, nil
		}
	}
}

// failRead latches a hard read error; the handle remains usable only
// for Close.
func (f *File) failRead(err error) error {
	f.eof = true
	f.rerr = err
	return err
}
