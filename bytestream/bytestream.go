// Package bytestream provides a lazily-buffered reader over a binary
// market-data source, optionally gzip- or zstd-compressed. It is the
// lowest layer of the pipeline: stage 1 reads the daily binary feed
// through a ByteStream rather than touching os.File or compression
// readers directly. The CSV files both stages read and write go through
// csvio instead.
package bytestream

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// defaultBufSize matches the teacher's journal/decoder buffer sizing
// convention of 64KB.
const defaultBufSize = 64 * 1024

// ByteStream reads exact-sized chunks from an underlying io.Reader,
// tracking the absolute offset and the sizes of the last few reads so
// callers can build precise error messages (see itch.DecodeError).
type ByteStream struct {
	r       *bufio.Reader
	closers []io.Closer
	offset  int64
	lastN   []int
}

// Open opens path and wraps it in a ByteStream, auto-detecting gzip (by
// the ".gz" suffix) or zstd (by ".zst") compression from the file name.
// An uncompressed file is read directly.
func Open(path string) (*ByteStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bytestream: open %s: %w", path, err)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("bytestream: gzip reader for %s: %w", path, err)
		}
		return New(gz, gz, f), nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("bytestream: zstd reader for %s: %w", path, err)
		}
		rc := zr.IOReadCloser()
		return New(rc, rc, f), nil
	default:
		return New(f, f), nil
	}
}

// New wraps r in a ByteStream. closers are closed, in order, by Close;
// pass the underlying file handle (and any intermediate decompressor)
// so Close tears down the whole chain.
func New(r io.Reader, closers ...io.Closer) *ByteStream {
	return &ByteStream{
		r:       bufio.NewReaderSize(r, defaultBufSize),
		closers: closers,
	}
}

// ReadExact reads exactly n bytes, returning io.EOF only when zero bytes
// were available (a clean end of stream); a short read mid-frame is
// reported as io.ErrUnexpectedEOF via io.ReadFull.
func (bs *ByteStream) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(bs.r, buf)
	bs.offset += int64(read)
	bs.recordRead(read)
	if err != nil {
		if errors.Is(err, io.EOF) && read == 0 {
			return nil, io.EOF
		}
		return buf[:read], err
	}
	return buf, nil
}

// recordRead keeps the three most recent ReadExact or Skip sizes, for
// DecodeError's LastReadSizes.
func (bs *ByteStream) recordRead(n int) {
	const keep = 3
	bs.lastN = append(bs.lastN, n)
	if len(bs.lastN) > keep {
		bs.lastN = bs.lastN[len(bs.lastN)-keep:]
	}
}

// Offset returns the number of bytes consumed so far (post-decompression).
func (bs *ByteStream) Offset() int64 { return bs.offset }

// Skip discards n bytes from the stream without copying them anywhere,
// advancing Offset by what was actually skipped. Used by walcheckpoint's
// resume path to fast-forward past already-processed frames: ITCH
// frames are byte-aligned and self-delimiting, so a checkpointed offset
// is always a valid frame boundary to resume decoding from.
func (bs *ByteStream) Skip(n int64) error {
	discarded, err := io.CopyN(io.Discard, bs.r, n)
	bs.offset += discarded
	bs.recordRead(int(discarded))
	if err != nil {
		return fmt.Errorf("bytestream: skip %d bytes: %w", n, err)
	}
	return nil
}

// LastReadSizes returns up to the three most recent ReadExact or Skip
// sizes.
func (bs *ByteStream) LastReadSizes() []int {
	out := make([]int, len(bs.lastN))
	copy(out, bs.lastN)
	return out
}

// Close closes the underlying reader chain in order (decompressor then
// file), returning the first error encountered.
func (bs *ByteStream) Close() error {
	var firstErr error
	for _, c := range bs.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
