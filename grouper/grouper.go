// Package grouper implements stage 1 of the pipeline: decode one shard's
// share of a day's ITCH feed and group every order-lifecycle event by
// order reference number (ORN) into one CSV log per ticker (see
// ordergroup). It implements itch.Handler directly, so a itch.Decoder
// can drive it straight off the wire.
package grouper

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/marketdata/itchpipe/csvio"
	"github.com/marketdata/itchpipe/itch"
	"github.com/marketdata/itchpipe/layout"
	"github.com/marketdata/itchpipe/ordergroup"
	"github.com/marketdata/itchpipe/price"
	"github.com/marketdata/itchpipe/shard"
)

// header is the column row written as line 1 of every grouped-CSV file.
const header = "type, seconds, orn, side, shares, price, shares_remaining\n"

// defaultCacheMax is the number of buffered rows a ticker accumulates
// before StreamGrouper flushes it to disk.
const defaultCacheMax = 1000

// MatchRef locates the log entry a later Broken Trade message must
// revert: which ORN, and which index in that OrderGroup's Log.
type MatchRef struct {
	ORN      int64
	LogIndex int
}

// StreamGrouper implements itch.Handler, maintaining the live ORN table
// and per-ticker write caches for one shard's worth of tickers over one
// trading day.
type StreamGrouper struct {
	itch.DefaultHandler

	Date       string
	Root       string
	Assignment shard.Assignment
	CacheMax   int

	// Done becomes true once a System Event message with code 'C'
	// (end of messages) is observed; a driver loop calling Decoder.Next
	// checks it after every frame and stops reading once it is set.
	Done bool

	groups   map[int64]*ordergroup.OrderGroup
	matchNo  map[uint64]MatchRef
	tickers  map[string]bool // owned by this shard
	seen     map[string]bool // every distinct ticker observed via 'R', owned or not
	position int             // R-message encounter counter driving shard.Assignment

	hiddenCounter int64 // monotonically increasing; synthetic ORNs for 'P' trades are its negation

	cache      map[string][]string // ticker -> buffered rows not yet flushed
	cacheCount map[string]int

	// OverdeleteWarnings, UnknownRefs and DuplicateTickers count
	// recoverable anomalies rather than aborting the run; a caller
	// inspects them after the shard finishes.
	OverdeleteWarnings int
	UnknownRefs        int
	DuplicateTickers   int
	IOErrorRetries     int
}

// New constructs a StreamGrouper for one (date, shard) pair. root is the
// pipeline's data directory (see layout).
func New(date, root string, assignment shard.Assignment) *StreamGrouper {
	cacheMax := defaultCacheMax
	return &StreamGrouper{
		Date:       date,
		Root:       root,
		Assignment: assignment,
		CacheMax:   cacheMax,
		groups:     make(map[int64]*ordergroup.OrderGroup),
		matchNo:    make(map[uint64]MatchRef),
		tickers:    make(map[string]bool),
		seen:       make(map[string]bool),
		cache:      make(map[string][]string),
		cacheCount: make(map[string]int),
	}
}

func trimStock(stock [8]byte) string {
	return string(bytes.TrimRight(stock[:], " "))
}

// OnSystemEvent watches for the end-of-day marker (event code 'C'); the
// driver loop checks Done after every message to decide whether to keep
// reading.
func (g *StreamGrouper) OnSystemEvent(msg itch.SystemEventMessage) error {
	if msg.EventCode == 'C' {
		g.Done = true
	}
	return nil
}

// OnStockDirectory assigns the ticker to a shard by its R-message
// encounter position, the first time it is seen; a repeated 'R' for the
// same symbol is counted (DuplicateTickers) but otherwise ignored.
func (g *StreamGrouper) OnStockDirectory(msg itch.StockDirectoryMessage) error {
	ticker := trimStock(msg.Stock)
	position := g.position
	g.position++

	if g.seen[ticker] {
		g.DuplicateTickers++
		return nil
	}
	g.seen[ticker] = true

	if g.Assignment.OwnsPosition(position) {
		g.tickers[ticker] = true
		g.cache[ticker] = nil
		g.cacheCount[ticker] = 0
		if err := g.writeHeader(ticker); err != nil {
			return err
		}
	}
	return nil
}

func (g *StreamGrouper) writeHeader(ticker string) error {
	path := layout.GroupedCSV(g.Root, g.Date, ticker)
	w, err := csvio.OpenWriter(path, true)
	if err != nil {
		return fmt.Errorf("grouper: header for %s: %w", ticker, err)
	}
	defer func() { g.IOErrorRetries += w.Retries() }()
	defer w.Close()
	return w.WriteString(header)
}

func (g *StreamGrouper) owns(stock [8]byte) (string, bool) {
	ticker := trimStock(stock)
	return ticker, g.tickers[ticker]
}

// OnAddOrder opens a new OrderGroup for a displayed order.
func (g *StreamGrouper) OnAddOrder(msg itch.AddOrderMessage) error {
	ticker, ok := g.owns(msg.Stock)
	if !ok {
		return nil
	}
	og := ordergroup.New(ordergroup.OriginAdd, int64(msg.OrderReferenceNumber), msg.BuySellIndicator,
		msg.Stock, msg.Shares, price.FromWire(msg.Price), [4]byte{}, msg.Timestamp)
	g.groups[og.ORN] = og
	_ = ticker
	return nil
}

// OnAddOrderMPID opens a new OrderGroup attributed to a market participant.
func (g *StreamGrouper) OnAddOrderMPID(msg itch.AddOrderMPIDMessage) error {
	if _, ok := g.owns(msg.Stock); !ok {
		return nil
	}
	og := ordergroup.New(ordergroup.OriginAddMPID, int64(msg.OrderReferenceNumber), msg.BuySellIndicator,
		msg.Stock, msg.Shares, price.FromWire(msg.Price), msg.Attribution, msg.Timestamp)
	g.groups[og.ORN] = og
	return nil
}

// OnTrade handles a non-displayable ("hidden") execution: it never rests
// on the book, so its OrderGroup opens and closes in the same step under
// a synthetic negative ORN (real ORNs are always positive on the wire).
func (g *StreamGrouper) OnTrade(msg itch.TradeMessage) error {
	if _, ok := g.owns(msg.Stock); !ok {
		return nil
	}
	g.hiddenCounter++
	synthetic := -g.hiddenCounter
	og := ordergroup.New(ordergroup.OriginHidden, synthetic, msg.BuySellIndicator,
		msg.Stock, msg.Shares, price.FromWire(msg.Price), [4]byte{}, msg.Timestamp)
	g.groups[synthetic] = og
	return g.closeGroup(synthetic)
}

// OnOrderExecuted applies a (partial) fill at the resting price.
func (g *StreamGrouper) OnOrderExecuted(msg itch.OrderExecutedMessage) error {
	orn := int64(msg.OrderReferenceNumber)
	og, ok := g.groups[orn]
	if !ok {
		g.UnknownRefs++
		return nil
	}
	idx, overdelete := og.ApplyE(msg.ExecutedShares, msg.Timestamp)
	if overdelete {
		g.OverdeleteWarnings++
	}
	g.matchNo[msg.MatchNumber] = MatchRef{ORN: orn, LogIndex: idx}
	if og.Shares == 0 {
		return g.closeGroup(orn)
	}
	return nil
}

// OnOrderExecutedWithPrice applies a fill printed away from the order's
// resting price.
func (g *StreamGrouper) OnOrderExecutedWithPrice(msg itch.OrderExecutedWithPriceMessage) error {
	orn := int64(msg.OrderReferenceNumber)
	og, ok := g.groups[orn]
	if !ok {
		g.UnknownRefs++
		return nil
	}
	idx, overdelete := og.ApplyC(msg.ExecutedShares, price.FromWire(msg.ExecutionPrice), msg.Timestamp)
	if overdelete {
		g.OverdeleteWarnings++
	}
	g.matchNo[msg.MatchNumber] = MatchRef{ORN: orn, LogIndex: idx}
	if og.Shares == 0 {
		return g.closeGroup(orn)
	}
	return nil
}

// OnOrderCancel reduces outstanding shares without closing the order.
func (g *StreamGrouper) OnOrderCancel(msg itch.OrderCancelMessage) error {
	orn := int64(msg.OrderReferenceNumber)
	og, ok := g.groups[orn]
	if !ok {
		g.UnknownRefs++
		return nil
	}
	if og.ApplyX(msg.CanceledShares, msg.Timestamp) {
		g.OverdeleteWarnings++
	}
	if og.Shares == 0 {
		return g.closeGroup(orn)
	}
	return nil
}

// OnOrderDelete removes a resting order entirely and closes its group.
func (g *StreamGrouper) OnOrderDelete(msg itch.OrderDeleteMessage) error {
	orn := int64(msg.OrderReferenceNumber)
	og, ok := g.groups[orn]
	if !ok {
		g.UnknownRefs++
		return nil
	}
	og.ApplyD(msg.Timestamp)
	return g.closeGroup(orn)
}

// OnOrderReplace closes the original order's group and opens a new one
// under the new ORN, carrying over side, symbol and attribution.
func (g *StreamGrouper) OnOrderReplace(msg itch.OrderReplaceMessage) error {
	oldORN := int64(msg.OriginalOrderReferenceNumber)
	og, ok := g.groups[oldORN]
	if !ok {
		g.UnknownRefs++
		return nil
	}
	og.ApplyUClose(msg.Timestamp)

	newORN := int64(msg.NewOrderReferenceNumber)
	replacement := ordergroup.New(ordergroup.OriginReplace, newORN, og.Side, og.Stock,
		msg.Shares, price.FromWire(msg.Price), og.MPID, msg.Timestamp)
	g.groups[newORN] = replacement

	return g.closeGroup(oldORN)
}

// OnBrokenTrade reverts the log entry a prior E or C execution recorded,
// located through the match-number table built as those messages were
// applied. A match number with no table entry (the execution was never
// seen by this shard), or one whose order's group has already closed, is
// dropped rather than failing the run (UnknownRefs counts it).
func (g *StreamGrouper) OnBrokenTrade(msg itch.BrokenTradeMessage) error {
	ref, ok := g.matchNo[msg.MatchNumber]
	if !ok {
		g.UnknownRefs++
		return nil
	}
	og, ok := g.groups[ref.ORN]
	if !ok {
		g.UnknownRefs++
		return nil
	}
	og.ApplyB(ref.LogIndex, msg.Timestamp)
	return nil
}

// closeGroup renders the group's full log to CSV text, appends it to its
// ticker's write cache (flushing if the cache has reached CacheMax), and
// drops the group from the live table.
func (g *StreamGrouper) closeGroup(orn int64) error {
	og := g.groups[orn]
	delete(g.groups, orn)

	ticker := trimStock(og.Stock)
	if !g.tickers[ticker] {
		return nil
	}
	g.cache[ticker] = append(g.cache[ticker], og.CSVText())
	g.cacheCount[ticker]++

	cacheMax := g.CacheMax
	if cacheMax <= 0 {
		cacheMax = defaultCacheMax
	}
	if g.cacheCount[ticker] >= cacheMax {
		return g.Flush(ticker)
	}
	return nil
}

// Flush writes ticker's buffered rows to its grouped-CSV file and clears
// the buffer. It is a no-op if nothing is buffered.
func (g *StreamGrouper) Flush(ticker string) error {
	rows := g.cache[ticker]
	if len(rows) == 0 {
		return nil
	}
	path := layout.GroupedCSV(g.Root, g.Date, ticker)
	w, err := csvio.OpenWriter(path, false)
	if err != nil {
		return fmt.Errorf("grouper: flush %s: %w", ticker, err)
	}
	defer func() { g.IOErrorRetries += w.Retries() }()
	defer w.Close()
	for _, row := range rows {
		if err := w.WriteString(row); err != nil {
			return fmt.Errorf("grouper: write %s: %w", ticker, err)
		}
	}
	g.cache[ticker] = g.cache[ticker][:0]
	g.cacheCount[ticker] = 0
	return nil
}

// FlushAll flushes every owned ticker with buffered rows, and every
// group still open at end-of-day (the original Python's "orphan" pass):
// an order still resting when the feed ends is logged with its current
// state and never closed, since no terminal event for it exists. Open
// groups are appended in ascending ORN order so the output does not
// depend on map iteration order.
func (g *StreamGrouper) FlushAll() error {
	orns := make([]int64, 0, len(g.groups))
	for orn := range g.groups {
		orns = append(orns, orn)
	}
	sort.Slice(orns, func(i, j int) bool { return orns[i] < orns[j] })
	for _, orn := range orns {
		og := g.groups[orn]
		ticker := trimStock(og.Stock)
		if !g.tickers[ticker] {
			delete(g.groups, orn)
			continue
		}
		g.cache[ticker] = append(g.cache[ticker], og.CSVText())
		g.cacheCount[ticker]++
	}
	for ticker := range g.tickers {
		if err := g.Flush(ticker); err != nil {
			return err
		}
	}
	return nil
}

// FlushCaches drains every owned ticker's buffered-but-unflushed closed
// group rows to disk, without touching any currently open OrderGroup.
// Unlike FlushAll, this is safe to call mid-stream: a driver calls it
// right before taking a checkpoint, so a crash immediately after never
// loses output rows for groups that had already closed.
func (g *StreamGrouper) FlushCaches() error {
	for ticker := range g.tickers {
		if err := g.Flush(ticker); err != nil {
			return err
		}
	}
	return nil
}

// Tickers returns the set of tickers this shard owns, for a driver that
// needs to hand the list to stage 2. The order of the slice is not
// defined.
func (g *StreamGrouper) Tickers() []string {
	out := make([]string, 0, len(g.tickers))
	for t := range g.tickers {
		out = append(out, t)
	}
	return out
}

// Snapshot returns copies of the live state a checkpoint needs to
// resume decoding later: every open OrderGroup, the match table Broken
// Trade messages consult, the owned-ticker set, and the R-message
// position counter (see walcheckpoint). The maps are fresh copies; the
// *OrderGroup values in the groups map are the live groups, not deep
// copies.
func (g *StreamGrouper) Snapshot() (groups map[int64]*ordergroup.OrderGroup, matches map[uint64]MatchRef, tickers map[string]bool, position int) {
	groups = make(map[int64]*ordergroup.OrderGroup, len(g.groups))
	for orn, og := range g.groups {
		groups[orn] = og
	}
	matches = make(map[uint64]MatchRef, len(g.matchNo))
	for num, ref := range g.matchNo {
		matches[num] = ref
	}
	tickers = make(map[string]bool, len(g.tickers))
	for t := range g.tickers {
		tickers[t] = true
	}
	return groups, matches, tickers, g.position
}

// Restore hydrates a freshly constructed StreamGrouper from a prior
// Snapshot, so decoding can resume from the byte offset the checkpoint
// was taken at instead of replaying the file from the start. The
// caller is responsible for fast-forwarding the underlying stream to
// that same offset before feeding it to a Decoder.
func (g *StreamGrouper) Restore(groups map[int64]*ordergroup.OrderGroup, matches map[uint64]MatchRef, tickers map[string]bool, position int) {
	g.groups = groups
	g.matchNo = matches
	g.tickers = tickers
	g.seen = make(map[string]bool, len(tickers))
	for t := range tickers {
		g.seen[t] = true
		if _, ok := g.cache[t]; !ok {
			g.cache[t] = nil
			g.cacheCount[t] = 0
		}
	}
	g.position = position
}
