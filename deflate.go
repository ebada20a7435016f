package zfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/klauspost/compress/flate"
)

// encoder is the compression engine for a writer opened with a gzip
// level. The raw-DEFLATE stream runs through a staging buffer that is
// flushed to the transport as it fills; nothing forces an early deflate
// flush, so the compressor is free to maximize its ratio.
type encoder struct {
	fw  *flate.Writer
	bw  *bufio.Writer
	crc uint32
}

// newEncoder emits the fixed gzip header and initializes raw deflate at
// the requested level.
func newEncoder(f *File, level int) (*encoder, error) {
	hdr := [gzipHeaderLen]byte{gzipMagic0, gzipMagic1, gzipDeflate, 0}
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(time.Now().Unix()))
	hdr[8] = 0
	hdr[9] = 0x03 // OS byte: Unix

	if err := f.rawWrite(hdr[:]); err != nil {
		return nil, err
	}

	bw := bufio.NewWriterSize(transportWriter{f}, bufSize)
	fw, err := flate.NewWriter(bw, level)
	if err != nil {
		return nil, fmt.Errorf("zfile: deflate init: %w", err)
	}

	return &encoder{fw: fw, bw: bw}, nil
}

// write feeds uncompressed bytes to the deflate stream, accumulating
// the payload CRC.
func (e *encoder) write(p []byte) error {
	e.crc = crc32.Update(e.crc, crc32.IEEETable, p)
	if _, err := e.fw.Write(p); err != nil {
		return fmt.Errorf("zfile: deflate: %w", err)
	}
	return nil
}

// finish drives the deflate stream to completion, flushes the staging
// buffer, and appends the 8-byte trailer: CRC32 of the uncompressed
// payload, then its length mod 2^32, both little-endian.
func (e *encoder) finish(length int64) error {
	if err := e.fw.Close(); err != nil {
		return fmt.Errorf("zfile: deflate: %w", err)
	}
	if err := e.bw.Flush(); err != nil {
		return err
	}

	var tr [8]byte
	binary.LittleEndian.PutUint32(tr[:4], e.crc)
	binary.LittleEndian.PutUint32(tr[4:], uint32(length))
	if _, err := e.bw.Write(tr[:]); err != nil {
		return err
	}
	return e.bw.Flush()
}
