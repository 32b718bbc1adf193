// Package book reconstructs a per-ticker live order book — two ordered
// price→shares maps plus derived best bid/ask, spread, and depth — by
// replaying time-sorted grouped-CSV rows (see reconstruct and
// ordergroup).
package book

import (
	"fmt"

	"github.com/marketdata/itchpipe/price"
)

// Mode controls how Apply reacts to a BookInconsistencyError: a row
// that deletes a price not currently on the book, or that would drive a
// side's depth negative.
type Mode int

const (
	// Permissive clamps depth to zero, leaves the book unchanged on the
	// offending row, and continues.
	Permissive Mode = iota
	// Pedantic returns the error so the caller can abort the file.
	Pedantic
)

// BookInconsistencyError reports a replay row that could not be applied
// cleanly: either it deleted a price the book didn't have, or it would
// have driven a side's depth negative.
type BookInconsistencyError struct {
	Ticker string
	ORN    int64
	Side   byte
	Price  price.Price
	Reason string
}

func (e *BookInconsistencyError) Error() string {
	return fmt.Sprintf("book: inconsistency for %s orn=%d side=%c price=%s: %s",
		e.Ticker, e.ORN, e.Side, e.Price, e.Reason)
}

// Entry is one replay row: a decoded grouped-CSV line in the shape
// ordergroup.LogEntry produces, plus the fields needed to drive the
// book (ORN, side).
type Entry struct {
	Kind      string
	Seconds   float64
	ORN       int64
	Side      byte
	Delta     uint32
	Price     price.Price
	Remaining uint32
}

// isExecuteLike reports whether kind is one of the "remaining > 0, depth
// only" kinds (E, X, C); anything else with remaining > 0 takes the add
// path instead (A/F and the order spawned by a Replace).
func isExecuteLike(kind string) bool {
	switch kind {
	case "E", "X", "C":
		return true
	default:
		return false
	}
}

// baseKind strips the "-B" suffix a broken-trade revert leaves on a log
// entry's kind. Branch decisions key off the original event kind, not
// the fact that it was later reverted; only the textual output and the
// new "B" entry itself carry the suffix/new kind.
func baseKind(kind string) string {
	const suffix = "-B"
	if len(kind) > len(suffix) && kind[len(kind)-len(suffix):] == suffix {
		return kind[:len(kind)-len(suffix)]
	}
	return kind
}

// BookState is the live two-sided book for one ticker.
type BookState struct {
	Ticker string
	Mode   Mode

	bids *priceTree
	asks *priceTree

	BestBid, BestAsk price.Price
	HasBestBid       bool
	HasBestAsk       bool

	BidDepth, AskDepth int64
}

// New creates an empty BookState for ticker.
func New(ticker string, mode Mode) *BookState {
	return &BookState{
		Ticker: ticker,
		Mode:   mode,
		bids:   newPriceTree(true),
		asks:   newPriceTree(false),
	}
}

func (b *BookState) side(s byte) *priceTree {
	if s == 'B' {
		return b.bids
	}
	return b.asks
}

// Depth returns the combined bid and ask depth.
func (b *BookState) Depth() int64 { return b.BidDepth + b.AskDepth }

// Spread returns best_ask - best_bid, and whether both sides are
// currently populated.
func (b *BookState) Spread() (price.Price, bool) {
	if !b.HasBestBid || !b.HasBestAsk {
		return 0, false
	}
	return b.BestAsk - b.BestBid, true
}

// Apply advances the book by one replay row, per the component's core
// rule: a remaining==0 row removes a price; remaining>0 with kind
// E/X/C only touches depth; remaining>0 otherwise (A/F, and the order a
// Replace spawns) inserts or overwrites the price level.
func (b *BookState) Apply(e Entry) error {
	tree := b.side(e.Side)

	switch {
	case e.Remaining == 0:
		return b.applyRemove(tree, e)
	case isExecuteLike(baseKind(e.Kind)):
		return b.applyDepthOnly(e)
	default:
		b.applyInsert(tree, e)
		return nil
	}
}

func (b *BookState) depthPtr(side byte) *int64 {
	if side == 'B' {
		return &b.BidDepth
	}
	return &b.AskDepth
}

func (b *BookState) subtractDepth(e Entry) error {
	d := b.depthPtr(e.Side)
	*d -= int64(e.Delta)
	if *d < 0 {
		*d = 0
		if b.Mode == Pedantic {
			return &BookInconsistencyError{Ticker: b.Ticker, ORN: e.ORN, Side: e.Side, Price: e.Price, Reason: "depth went negative"}
		}
	}
	return nil
}

func (b *BookState) applyRemove(tree *priceTree, e Entry) error {
	if baseKind(e.Kind) == "P" {
		// Hidden executions never rested on the book; nothing to remove.
		return nil
	}

	wasBest := b.hasBest(e.Side) && e.Price == b.currentBest(e.Side)
	removed := tree.Remove(e.Price)
	if !removed {
		if b.Mode == Pedantic {
			return &BookInconsistencyError{Ticker: b.Ticker, ORN: e.ORN, Side: e.Side, Price: e.Price, Reason: "price not on book"}
		}
		return nil
	}

	if err := b.subtractDepth(e); err != nil {
		return err
	}

	if baseKind(e.Kind) != "C" && wasBest {
		b.recomputeBest(e.Side)
	}
	return nil
}

func (b *BookState) applyDepthOnly(e Entry) error {
	return b.subtractDepth(e)
}

func (b *BookState) applyInsert(tree *priceTree, e Entry) {
	tree.Upsert(e.Price, e.Remaining)
	d := b.depthPtr(e.Side)
	*d += int64(e.Delta)
	b.improveBest(e.Side, e.Price)
}

func (b *BookState) hasBest(side byte) bool {
	if side == 'B' {
		return b.HasBestBid
	}
	return b.HasBestAsk
}

func (b *BookState) currentBest(side byte) price.Price {
	if side == 'B' {
		return b.BestBid
	}
	return b.BestAsk
}

func (b *BookState) improveBest(side byte, p price.Price) {
	if side == 'B' {
		if !b.HasBestBid || p > b.BestBid {
			b.BestBid = p
			b.HasBestBid = true
		}
		return
	}
	if !b.HasBestAsk || p < b.BestAsk {
		b.BestAsk = p
		b.HasBestAsk = true
	}
}

func (b *BookState) recomputeBest(side byte) {
	tree := b.side(side)
	node := tree.First()
	if side == 'B' {
		if node == nil {
			b.HasBestBid = false
			return
		}
		b.BestBid = node.Price
		b.HasBestBid = true
		return
	}
	if node == nil {
		b.HasBestAsk = false
		return
	}
	b.BestAsk = node.Price
	b.HasBestAsk = true
}
