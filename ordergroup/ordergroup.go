// Package ordergroup models the lifetime history of a single resting
// ITCH order: the events that opened it, modified it, and eventually
// closed it, kept as an append-only log keyed by order reference
// number (ORN).
package ordergroup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marketdata/itchpipe/price"
)

// Origin kinds an OrderGroup can be constructed from. 'U' denotes a
// group spawned by an Order Replace at a new ORN.
const (
	OriginAdd         = 'A'
	OriginAddMPID     = 'F'
	OriginHidden      = 'P'
	OriginAuctionJ    = 'J'
	OriginReplace     = 'U'
)

// LogEntry is one event recorded against an OrderGroup. Kind normally
// holds a single ITCH letter but grows a "-B" suffix in place when a
// broken trade reverts the entry — see OrderGroup.ApplyB, the one
// mutation of a past entry this model allows.
type LogEntry struct {
	Kind        string
	Seconds     uint64 // nanoseconds since midnight
	SharesDelta uint32
	Price       price.Price
	Remaining   uint32
}

// OrderGroup is the full history of one order: how it opened, every
// execution/cancel/delete/replace that touched it, and its current
// outstanding share count.
type OrderGroup struct {
	Origin byte
	ORN    int64
	Side   byte // 'B' or 'S'; unused (zero) for J
	Stock  [8]byte
	Shares uint32 // outstanding
	Price  price.Price
	MPID   [4]byte
	Log    []LogEntry
}

// New constructs an OrderGroup from its opening message. For origin 'P'
// (hidden/non-displayed execution) the order never rests on the book,
// so the initial log entry's remaining-after is 0 even though shares is
// non-zero.
func New(origin byte, orn int64, side byte, stock [8]byte, shares uint32, px price.Price, mpid [4]byte, timestamp uint64) *OrderGroup {
	g := &OrderGroup{
		Origin: origin,
		ORN:    orn,
		Side:   side,
		Stock:  stock,
		Shares: shares,
		Price:  px,
		MPID:   mpid,
	}
	remaining := shares
	if origin == OriginHidden {
		remaining = 0
	}
	g.appendLog(string(origin), timestamp, shares, px, remaining)
	return g
}

func (g *OrderGroup) appendLog(kind string, timestamp uint64, delta uint32, px price.Price, remaining uint32) int {
	g.Log = append(g.Log, LogEntry{
		Kind:        kind,
		Seconds:     timestamp,
		SharesDelta: delta,
		Price:       px,
		Remaining:   remaining,
	})
	return len(g.Log) - 1
}

// clampOutstanding subtracts delta from g.Shares, reporting whether the
// subtraction would have gone negative (the OverdeleteWarning case). On
// overdelete the outstanding count clamps to zero rather than
// underflowing.
func (g *OrderGroup) clampOutstanding(delta uint32) (overdelete bool) {
	if delta > g.Shares {
		g.Shares = 0
		return true
	}
	g.Shares -= delta
	return false
}

// ApplyE records an Order Executed message: subtract executed shares
// from outstanding and append an E entry. It returns the new log index
// (for MatchTable bookkeeping) and whether an overdelete was clamped.
func (g *OrderGroup) ApplyE(executedShares uint32, timestamp uint64) (logIndex int, overdelete bool) {
	overdelete = g.clampOutstanding(executedShares)
	logIndex = g.appendLog("E", timestamp, executedShares, g.Price, g.Shares)
	return logIndex, overdelete
}

// ApplyC records an Order Executed With Price message: like ApplyE, but
// the log entry carries the C-supplied print price, while the group's
// resting price and outstanding-shares arithmetic are unchanged from
// ApplyE.
func (g *OrderGroup) ApplyC(executedShares uint32, printPrice price.Price, timestamp uint64) (logIndex int, overdelete bool) {
	overdelete = g.clampOutstanding(executedShares)
	logIndex = g.appendLog("C", timestamp, executedShares, printPrice, g.Shares)
	return logIndex, overdelete
}

// ApplyX records an Order Cancel (partial) message.
func (g *OrderGroup) ApplyX(cancelledShares uint32, timestamp uint64) (overdelete bool) {
	overdelete = g.clampOutstanding(cancelledShares)
	g.appendLog("X", timestamp, cancelledShares, g.Price, g.Shares)
	return overdelete
}

// ApplyD records an Order Delete message: the full outstanding quantity
// is removed and the group closes.
func (g *OrderGroup) ApplyD(timestamp uint64) {
	delta := g.Shares
	g.Shares = 0
	g.appendLog("D", timestamp, delta, g.Price, 0)
}

// ApplyUClose records the closing half of an Order Replace: the group
// closes with its full outstanding quantity logged under its old price.
// The caller is responsible for constructing the replacement OrderGroup
// at the new ORN with New(OriginReplace, ...).
func (g *OrderGroup) ApplyUClose(timestamp uint64) {
	delta := g.Shares
	g.Shares = 0
	g.appendLog("U", timestamp, delta, g.Price, 0)
}

// ApplyB records a Broken Trade: it reverts the log entry at loc
// (located via the MatchTable), adding that entry's shares back to
// outstanding and tagging the reverted entry's kind with a "-B" suffix.
func (g *OrderGroup) ApplyB(loc int, timestamp uint64) {
	reverted := &g.Log[loc]
	reverted.Kind += "-B"
	g.Shares += reverted.SharesDelta
	g.appendLog("B", timestamp, reverted.SharesDelta, reverted.Price, g.Shares)
}

// formatSeconds renders a nanosecond timestamp as seconds with 7
// decimal places, matching the grouped-CSV convention.
func formatSeconds(ns uint64) string {
	return strconv.FormatFloat(float64(ns)*1e-9, 'f', 7, 64)
}

// CSVRows renders every log entry as one output row: kind, seconds,
// orn, side, shares, price, remaining.
func (g *OrderGroup) CSVRows() []string {
	rows := make([]string, 0, len(g.Log))
	side := string(g.Side)
	for _, e := range g.Log {
		rows = append(rows, fmt.Sprintf("%s, %s, %d, %s, %d, %s, %d\n",
			e.Kind, formatSeconds(e.Seconds), g.ORN, side, e.SharesDelta, e.Price, e.Remaining))
	}
	return rows
}

// CSVText joins CSVRows into a single buffer, the unit the per-ticker
// write cache deals in.
func (g *OrderGroup) CSVText() string {
	var sb strings.Builder
	for _, row := range g.CSVRows() {
		sb.WriteString(row)
	}
	return sb.String()
}
