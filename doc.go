// Package zfile provides a buffered I/O handle that unifies regular
// files, bidirectional sockets, and the process standard streams behind
// one read/write/seek/lock interface, with transparent gzip support for
// files opened for reading or writing.
//
// A File opened for reading probes the stream for a gzip member header
// and, when one is present, inflates on the fly, verifying the trailer
// CRC and decoding concatenated members back to back. A File opened for
// writing with a compression level produces a well-formed gzip stream.
// Everything else reads and writes raw bytes.
//
// # Features
//
//   - One handle type for files, sockets, and stdin/stdout/stderr
//   - Transparent gzip decompression with CRC verification
//   - Streaming gzip compression at levels 1-9
//   - Random-access Seek, including over compressed streams
//   - Binary-safe and text line readers plus a configuration-line parser
//   - TOCTOU-resistant opens for privileged writers
//   - Advisory locking
//
// # Quick Start
//
//	// Write a gzip'd file at compression level 6.
//	f, _ := zfile.Open("data.txt", "w6")
//	f.Puts("Hello, compressed world!\n")
//	f.Close()
//
//	// Read it back; decompression is transparent.
//	f, _ = zfile.Open("data.txt", "r")
//	data, _ := io.ReadAll(f)
//	f.Close()
//
// # Open Modes
//
// The mode string is "r" to read, "w" to write (truncating), "a" to
// append, or "s" to connect a socket to a "host:port" address. Write
// mode accepts an optional digit 1-9 selecting a gzip compression
// level, and write/append modes accept an optional "m###" suffix giving
// the octal permissions for created files, e.g. "w9m600".
//
// A File is not safe for concurrent use; exactly one goroutine may
// operate a given handle at a time.
package zfile
