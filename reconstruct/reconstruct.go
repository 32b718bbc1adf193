// Package reconstruct implements stage 2 of the pipeline: read one
// ticker's grouped-CSV log (see grouper, ordergroup), sort it into
// replay order, drive a book.BookState through every row, and emit the
// enriched per-message CSV the pipeline ships.
package reconstruct

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/marketdata/itchpipe/book"
	"github.com/marketdata/itchpipe/csvio"
	"github.com/marketdata/itchpipe/layout"
	"github.com/marketdata/itchpipe/price"
)

// inputHeader is the header line a grouped CSV carries (see grouper.header).
const inputHeader = "type, seconds, orn, side, shares, price, shares_remaining"

// outputHeader is the full header stage 2 writes: the input columns plus
// the derived book-state columns.
const outputHeader = inputHeader + ", current bid, current ask, spread, ask depth, bid depth, depth\n"

// flushEvery bounds how many output rows accumulate in memory between
// writes to the gzip file.
const flushEvery = 5000

// row is one parsed grouped-CSV line plus its untouched source text, so
// the output row can simply append derived columns to the original.
type row struct {
	raw       string
	kind      string
	seconds   float64
	orn       int64
	side      byte
	shares    uint32
	price     price.Price
	remaining uint32
}

// toBookRow converts a parsed grouped-CSV line into the feed-agnostic
// book.Row shape (see book.Source), the same conversion a NYSE openbook
// source would perform from its own wire format.
func (r row) toBookRow() book.Row {
	return book.Row{
		Kind:      r.kind,
		Seconds:   r.seconds,
		ORN:       r.orn,
		Side:      r.side,
		Shares:    r.shares,
		Price:     r.price,
		Remaining: r.remaining,
	}
}

func parseRow(line string) (row, error) {
	fields := strings.SplitN(line, ", ", 7)
	if len(fields) != 7 {
		return row{}, fmt.Errorf("reconstruct: malformed row %q", line)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return row{}, fmt.Errorf("reconstruct: seconds in %q: %w", line, err)
	}
	orn, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return row{}, fmt.Errorf("reconstruct: orn in %q: %w", line, err)
	}
	shares, err := strconv.ParseUint(strings.TrimSpace(fields[4]), 10, 32)
	if err != nil {
		return row{}, fmt.Errorf("reconstruct: shares in %q: %w", line, err)
	}
	px, err := price.Parse(strings.TrimSpace(fields[5]))
	if err != nil {
		return row{}, fmt.Errorf("reconstruct: price in %q: %w", line, err)
	}
	remaining, err := strconv.ParseUint(strings.TrimSpace(fields[6]), 10, 32)
	if err != nil {
		return row{}, fmt.Errorf("reconstruct: remaining in %q: %w", line, err)
	}
	side := byte(0)
	if s := strings.TrimSpace(fields[3]); len(s) > 0 {
		side = s[0]
	}
	return row{
		raw:       line,
		kind:      strings.TrimSpace(fields[0]),
		seconds:   seconds,
		orn:       orn,
		side:      side,
		shares:    uint32(shares),
		price:     px,
		remaining: uint32(remaining),
	}, nil
}

// loadAndSort reads a grouped CSV, drops its header and any 'J' rows
// (decoded upstream but never meaningful to the book), and orders rows
// by (seconds ascending, remaining descending) so that within one
// timestamp opens are replayed before deletes — otherwise a best-price
// rescan could observe a stale empty book.
func loadAndSort(path string) ([]row, error) {
	lines, err := csvio.ReadAllRows(path)
	if err != nil {
		return nil, err
	}
	rows := make([]row, 0, len(lines))
	for i, line := range lines {
		if i == 0 && strings.TrimSpace(line) == inputHeader {
			continue
		}
		if line == "" {
			continue
		}
		r, err := parseRow(line)
		if err != nil {
			return nil, err
		}
		if r.kind == "J" {
			continue
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].seconds != rows[j].seconds {
			return rows[i].seconds < rows[j].seconds
		}
		return rows[i].remaining > rows[j].remaining
	})
	return rows, nil
}

// formatBest renders a best-price column: "None" when the side has no
// resting interest, otherwise the price's 4-decimal string form.
func formatBest(p price.Price, has bool) string {
	if !has {
		return "None"
	}
	return p.String()
}

// Reconstructor replays one shard's owned tickers through stage 2.
type Reconstructor struct {
	Root string
	Date string
	Mode book.Mode

	// IOErrorRetries counts single-bounded-retries fired by this
	// reconstructor's output writers (see csvio.Writer.Retries), summed
	// across every ticker processed so far.
	IOErrorRetries int
}

// New constructs a Reconstructor rooted at root for one trading day.
func New(root, date string, mode book.Mode) *Reconstructor {
	return &Reconstructor{Root: root, Date: date, Mode: mode}
}

// ProcessTicker replays ticker's grouped CSV and writes its enriched
// stage-2 CSV. A BookInconsistencyError under book.Pedantic aborts the
// file, leaving whatever has already been flushed on disk for
// inspection; under book.Permissive, BookState itself clamps and
// continues, so ProcessTicker never sees the error in that mode.
func (r *Reconstructor) ProcessTicker(ticker string) error {
	inPath := layout.GroupedCSV(r.Root, r.Date, ticker)
	rows, err := loadAndSort(inPath)
	if err != nil {
		return fmt.Errorf("reconstruct: load %s: %w", ticker, err)
	}

	outPath := layout.ProcessedCSV(r.Root, r.Date, ticker)
	w, err := csvio.OpenWriter(outPath, true)
	if err != nil {
		return fmt.Errorf("reconstruct: open output for %s: %w", ticker, err)
	}
	defer func() { r.IOErrorRetries += w.Retries() }()
	defer w.Close()

	if err := w.WriteString(outputHeader); err != nil {
		return err
	}

	bs := book.New(ticker, r.Mode)
	since := 0
	for _, rr := range rows {
		if err := bs.Apply(rr.toBookRow().Entry()); err != nil {
			return fmt.Errorf("reconstruct: %s: %w", ticker, err)
		}

		spread, hasSpread := bs.Spread()
		out := fmt.Sprintf("%s, %s, %s, %s, %d, %d, %d\n",
			rr.raw,
			formatBest(bs.BestBid, bs.HasBestBid),
			formatBest(bs.BestAsk, bs.HasBestAsk),
			formatBest(spread, hasSpread),
			bs.AskDepth, bs.BidDepth, bs.Depth())
		if err := w.WriteString(out); err != nil {
			return fmt.Errorf("reconstruct: write %s: %w", ticker, err)
		}

		since++
		if since >= flushEvery {
			if err := w.Flush(); err != nil {
				return err
			}
			since = 0
		}
	}
	return w.Flush()
}

// ProcessTickers replays every ticker in order, stopping at the first
// error so a caller can decide whether to continue with the rest of the
// shard's assignment.
func (r *Reconstructor) ProcessTickers(tickers []string) error {
	for _, ticker := range tickers {
		if err := r.ProcessTicker(ticker); err != nil {
			return err
		}
	}
	return nil
}
