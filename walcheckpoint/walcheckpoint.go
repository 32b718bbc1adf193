// Package walcheckpoint lets a stage-1 shard resume near where it
// crashed instead of re-decoding a multi-hundred-megabyte file from
// byte zero. It is purely an optimization: a shard with no checkpoint
// directory configured behaves exactly as if this package did not
// exist. Adapted from the teacher's persistence.Snapshotter, generalized
// from matching-engine state to stream-grouper state.
package walcheckpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/marketdata/itchpipe/ordergroup"
	"github.com/marketdata/itchpipe/price"
)

// checkpointMagic is written at the start of every checkpoint file so
// that corrupt or foreign files are rejected quickly.
var checkpointMagic = [8]byte{'I', 'T', 'C', 'H', 'C', 'K', 0, 1}

// MatchRef locates the log entry a Broken Trade targets: which ORN, and
// which index within that OrderGroup's Log.
type MatchRef struct {
	ORN      int64
	LogIndex int
}

// Checkpoint is the full, self-contained state of a StreamGrouper at a
// single byte offset into its input stream. Tickers and Position are
// carried alongside the ORN/match tables because ticker ownership is
// itself part of a shard's live state (spec.md's "position mod size"
// rule is evaluated once per distinct ticker as R-messages are seen,
// not recomputed from the trading session that follows); without them
// a resumed shard could not tell which tickers it owns for the rest of
// the file.
type Checkpoint struct {
	Offset   int64
	Groups   map[int64]*ordergroup.OrderGroup
	Matches  map[uint64]MatchRef
	Tickers  map[string]bool
	Position int
}

// Checkpointer manages checkpoint files inside a directory.
type Checkpointer struct {
	dir string
}

// NewCheckpointer creates a Checkpointer storing files in dir, creating
// it if necessary.
func NewCheckpointer(dir string) (*Checkpointer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Checkpointer{dir: dir}, nil
}

func (c *Checkpointer) path(offset int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("checkpoint-%020d.ckpt", offset))
}

// Save serializes cp and writes it to a zstd-compressed file, atomically
// (temp file + rename), mirroring persistence.Snapshotter.Save.
func (c *Checkpointer) Save(cp Checkpoint) error {
	dst := c.path(cp.Offset)
	tmp := dst + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := writeCheckpoint(enc, cp); err != nil {
		_ = enc.Close()
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// LoadLatest finds the highest-offset checkpoint in the directory and
// deserializes it. It returns nil, nil when none exists yet.
func (c *Checkpointer) LoadLatest() (*Checkpoint, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var offsets []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "checkpoint-") || !strings.HasSuffix(name, ".ckpt") {
			continue
		}
		s := strings.TrimSuffix(strings.TrimPrefix(name, "checkpoint-"), ".ckpt")
		off, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		offsets = append(offsets, off)
	}
	if len(offsets) == 0 {
		return nil, nil
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] > offsets[j] })

	f, err := os.Open(c.path(offsets[0]))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return readCheckpoint(dec)
}

// Wire format, all integers big-endian:
//
//	8 bytes  – magic
//	8 bytes  – Offset (int64)
//	4 bytes  – Position (uint32)
//	4 bytes  – number of groups (uint32), then per group: orderGroup wire record
//	4 bytes  – number of match entries (uint32), then per entry: 8+8+4 bytes
//	4 bytes  – number of owned tickers (uint32), then per ticker: 1-byte length + bytes

func writeCheckpoint(w io.Writer, cp Checkpoint) error {
	if _, err := w.Write(checkpointMagic[:]); err != nil {
		return err
	}
	var buf8 [8]byte
	binary.BigEndian.PutUint64(buf8[:], uint64(cp.Offset))
	if _, err := w.Write(buf8[:]); err != nil {
		return err
	}

	var buf4 [4]byte
	binary.BigEndian.PutUint32(buf4[:], uint32(cp.Position))
	if _, err := w.Write(buf4[:]); err != nil {
		return err
	}

	binary.BigEndian.PutUint32(buf4[:], uint32(len(cp.Groups)))
	if _, err := w.Write(buf4[:]); err != nil {
		return err
	}
	for _, g := range cp.Groups {
		if err := writeGroup(w, g); err != nil {
			return err
		}
	}

	binary.BigEndian.PutUint32(buf4[:], uint32(len(cp.Matches)))
	if _, err := w.Write(buf4[:]); err != nil {
		return err
	}
	for matchNum, ref := range cp.Matches {
		binary.BigEndian.PutUint64(buf8[:], matchNum)
		if _, err := w.Write(buf8[:]); err != nil {
			return err
		}
		binary.BigEndian.PutUint64(buf8[:], uint64(ref.ORN))
		if _, err := w.Write(buf8[:]); err != nil {
			return err
		}
		binary.BigEndian.PutUint32(buf4[:], uint32(ref.LogIndex))
		if _, err := w.Write(buf4[:]); err != nil {
			return err
		}
	}

	binary.BigEndian.PutUint32(buf4[:], uint32(len(cp.Tickers)))
	if _, err := w.Write(buf4[:]); err != nil {
		return err
	}
	for ticker := range cp.Tickers {
		if err := writeString(w, ticker); err != nil {
			return err
		}
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("walcheckpoint: ticker %q too long", s)
	}
	if _, err := w.Write([]byte{uint8(len(s))}); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeGroup(w io.Writer, g *ordergroup.OrderGroup) error {
	var buf8 [8]byte
	var buf4 [4]byte

	if _, err := w.Write([]byte{g.Origin, g.Side}); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(buf8[:], uint64(g.ORN))
	if _, err := w.Write(buf8[:]); err != nil {
		return err
	}
	if _, err := w.Write(g.Stock[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(buf4[:], g.Shares)
	if _, err := w.Write(buf4[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(buf8[:], uint64(g.Price))
	if _, err := w.Write(buf8[:]); err != nil {
		return err
	}
	if _, err := w.Write(g.MPID[:]); err != nil {
		return err
	}

	binary.BigEndian.PutUint32(buf4[:], uint32(len(g.Log)))
	if _, err := w.Write(buf4[:]); err != nil {
		return err
	}
	for _, e := range g.Log {
		if err := writeLogEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

func writeLogEntry(w io.Writer, e ordergroup.LogEntry) error {
	var buf8 [8]byte
	var buf4 [4]byte

	kind := []byte(e.Kind)
	if len(kind) > 255 {
		return fmt.Errorf("walcheckpoint: log entry kind %q too long", e.Kind)
	}
	if _, err := w.Write([]byte{uint8(len(kind))}); err != nil {
		return err
	}
	if len(kind) > 0 {
		if _, err := w.Write(kind); err != nil {
			return err
		}
	}
	binary.BigEndian.PutUint64(buf8[:], e.Seconds)
	if _, err := w.Write(buf8[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(buf4[:], e.SharesDelta)
	if _, err := w.Write(buf4[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(buf8[:], uint64(e.Price))
	if _, err := w.Write(buf8[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(buf4[:], e.Remaining)
	_, err := w.Write(buf4[:])
	return err
}

func readCheckpoint(r io.Reader) (*Checkpoint, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading magic: %w", err)
	}
	if magic != checkpointMagic {
		return nil, fmt.Errorf("walcheckpoint: invalid checkpoint magic")
	}

	var buf8 [8]byte
	if _, err := io.ReadFull(r, buf8[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading offset: %w", err)
	}
	cp := &Checkpoint{
		Offset:  int64(binary.BigEndian.Uint64(buf8[:])),
		Groups:  make(map[int64]*ordergroup.OrderGroup),
		Matches: make(map[uint64]MatchRef),
		Tickers: make(map[string]bool),
	}

	var buf4 [4]byte
	if _, err := io.ReadFull(r, buf4[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading position: %w", err)
	}
	cp.Position = int(binary.BigEndian.Uint32(buf4[:]))

	if _, err := io.ReadFull(r, buf4[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading group count: %w", err)
	}
	groupCount := binary.BigEndian.Uint32(buf4[:])
	for i := uint32(0); i < groupCount; i++ {
		g, err := readGroup(r)
		if err != nil {
			return nil, err
		}
		cp.Groups[g.ORN] = g
	}

	if _, err := io.ReadFull(r, buf4[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading match count: %w", err)
	}
	matchCount := binary.BigEndian.Uint32(buf4[:])
	for i := uint32(0); i < matchCount; i++ {
		if _, err := io.ReadFull(r, buf8[:]); err != nil {
			return nil, fmt.Errorf("walcheckpoint: reading match number: %w", err)
		}
		matchNum := binary.BigEndian.Uint64(buf8[:])
		if _, err := io.ReadFull(r, buf8[:]); err != nil {
			return nil, fmt.Errorf("walcheckpoint: reading match orn: %w", err)
		}
		orn := int64(binary.BigEndian.Uint64(buf8[:]))
		if _, err := io.ReadFull(r, buf4[:]); err != nil {
			return nil, fmt.Errorf("walcheckpoint: reading match log index: %w", err)
		}
		cp.Matches[matchNum] = MatchRef{ORN: orn, LogIndex: int(binary.BigEndian.Uint32(buf4[:]))}
	}

	if _, err := io.ReadFull(r, buf4[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading ticker count: %w", err)
	}
	tickerCount := binary.BigEndian.Uint32(buf4[:])
	for i := uint32(0); i < tickerCount; i++ {
		ticker, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("walcheckpoint: reading ticker: %w", err)
		}
		cp.Tickers[ticker] = true
	}

	return cp, nil
}

func readString(r io.Reader) (string, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	buf := make([]byte, lenBuf[0])
	if lenBuf[0] > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
	}
	return string(buf), nil
}

func readGroup(r io.Reader) (*ordergroup.OrderGroup, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading group head: %w", err)
	}
	g := &ordergroup.OrderGroup{Origin: head[0], Side: head[1]}

	var buf8 [8]byte
	if _, err := io.ReadFull(r, buf8[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading orn: %w", err)
	}
	g.ORN = int64(binary.BigEndian.Uint64(buf8[:]))

	if _, err := io.ReadFull(r, g.Stock[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading stock: %w", err)
	}

	var buf4 [4]byte
	if _, err := io.ReadFull(r, buf4[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading shares: %w", err)
	}
	g.Shares = binary.BigEndian.Uint32(buf4[:])

	if _, err := io.ReadFull(r, buf8[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading price: %w", err)
	}
	g.Price = price.Price(binary.BigEndian.Uint64(buf8[:]))

	if _, err := io.ReadFull(r, g.MPID[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading mpid: %w", err)
	}

	if _, err := io.ReadFull(r, buf4[:]); err != nil {
		return nil, fmt.Errorf("walcheckpoint: reading log count: %w", err)
	}
	logCount := binary.BigEndian.Uint32(buf4[:])
	g.Log = make([]ordergroup.LogEntry, 0, logCount)
	for i := uint32(0); i < logCount; i++ {
		e, err := readLogEntry(r)
		if err != nil {
			return nil, err
		}
		g.Log = append(g.Log, e)
	}
	return g, nil
}

func readLogEntry(r io.Reader) (ordergroup.LogEntry, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return ordergroup.LogEntry{}, fmt.Errorf("walcheckpoint: reading kind length: %w", err)
	}
	kindBuf := make([]byte, lenBuf[0])
	if lenBuf[0] > 0 {
		if _, err := io.ReadFull(r, kindBuf); err != nil {
			return ordergroup.LogEntry{}, fmt.Errorf("walcheckpoint: reading kind: %w", err)
		}
	}

	var buf8 [8]byte
	if _, err := io.ReadFull(r, buf8[:]); err != nil {
		return ordergroup.LogEntry{}, fmt.Errorf("walcheckpoint: reading seconds: %w", err)
	}
	seconds := binary.BigEndian.Uint64(buf8[:])

	var buf4 [4]byte
	if _, err := io.ReadFull(r, buf4[:]); err != nil {
		return ordergroup.LogEntry{}, fmt.Errorf("walcheckpoint: reading delta: %w", err)
	}
	delta := binary.BigEndian.Uint32(buf4[:])

	if _, err := io.ReadFull(r, buf8[:]); err != nil {
		return ordergroup.LogEntry{}, fmt.Errorf("walcheckpoint: reading entry price: %w", err)
	}
	px := price.Price(binary.BigEndian.Uint64(buf8[:]))

	if _, err := io.ReadFull(r, buf4[:]); err != nil {
		return ordergroup.LogEntry{}, fmt.Errorf("walcheckpoint: reading remaining: %w", err)
	}
	remaining := binary.BigEndian.Uint32(buf4[:])

	return ordergroup.LogEntry{
		Kind:        string(kindBuf),
		Seconds:     seconds,
		SharesDelta: delta,
		Price:       px,
		Remaining:   remaining,
	}, nil
}
