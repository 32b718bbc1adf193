package grouper

import (
	"os"
	"strings"
	"testing"

	"github.com/marketdata/itchpipe/itch"
	"github.com/marketdata/itchpipe/layout"
	"github.com/marketdata/itchpipe/shard"
)

func stock(sym string) [8]byte {
	var s [8]byte
	copy(s[:], sym)
	for i := len(sym); i < 8; i++ {
		s[i] = ' '
	}
	return s
}

func newTestGrouper(t *testing.T) *StreamGrouper {
	t.Helper()
	root := t.TempDir()
	a, err := shard.New(1, 0)
	if err != nil {
		t.Fatalf("shard.New: %v", err)
	}
	return New("073024", root, a)
}

func mustDirectory(t *testing.T, g *StreamGrouper, sym string) {
	t.Helper()
	if err := g.OnStockDirectory(itch.StockDirectoryMessage{Stock: stock(sym)}); err != nil {
		t.Fatalf("OnStockDirectory(%s): %v", sym, err)
	}
}

func TestOwnedTickerAccumulatesAndCloses(t *testing.T) {
	g := newTestGrouper(t)
	mustDirectory(t, g, "AAPL")

	if err := g.OnAddOrder(itch.AddOrderMessage{
		OrderReferenceNumber: 42, BuySellIndicator: 'B', Shares: 100, Stock: stock("AAPL"), Price: 1000000, Timestamp: 10,
	}); err != nil {
		t.Fatalf("OnAddOrder: %v", err)
	}
	if _, ok := g.groups[42]; !ok {
		t.Fatal("expected group for orn 42")
	}

	if err := g.OnOrderExecuted(itch.OrderExecutedMessage{
		OrderReferenceNumber: 42, ExecutedShares: 100, MatchNumber: 7, Timestamp: 20,
	}); err != nil {
		t.Fatalf("OnOrderExecuted: %v", err)
	}
	if _, ok := g.groups[42]; ok {
		t.Fatal("group should have closed on full execution")
	}
	if len(g.cache["AAPL"]) != 1 {
		t.Fatalf("expected 1 buffered row, got %d", len(g.cache["AAPL"]))
	}

	if err := g.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
}

func TestUnownedTickerIgnored(t *testing.T) {
	g := newTestGrouper(t)
	// AAPL lands on position 0, which this 1-shard assignment owns;
	// a second shard of size 2 at rank 1 never would. Simulate
	// "not owned" by skipping OnStockDirectory entirely.
	if err := g.OnAddOrder(itch.AddOrderMessage{
		OrderReferenceNumber: 1, BuySellIndicator: 'B', Shares: 10, Stock: stock("MSFT"), Price: 500000,
	}); err != nil {
		t.Fatalf("OnAddOrder: %v", err)
	}
	if len(g.groups) != 0 {
		t.Error("order for a never-announced ticker should not open a group")
	}
}

func TestHiddenTradeOpensAndClosesImmediately(t *testing.T) {
	g := newTestGrouper(t)
	mustDirectory(t, g, "AAPL")

	if err := g.OnTrade(itch.TradeMessage{
		OrderReferenceNumber: 0, BuySellIndicator: 'B', Shares: 50, Stock: stock("AAPL"), Price: 1000000, MatchNumber: 9,
	}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}
	if len(g.groups) != 0 {
		t.Error("hidden trade group should close immediately")
	}
	if len(g.cache["AAPL"]) != 1 {
		t.Fatalf("expected 1 buffered row for hidden trade, got %d", len(g.cache["AAPL"]))
	}
	if g.hiddenCounter != 1 {
		t.Errorf("hiddenCounter = %d, want 1", g.hiddenCounter)
	}
}

func TestDuplicateStockDirectoryIgnored(t *testing.T) {
	g := newTestGrouper(t)
	mustDirectory(t, g, "AAPL")
	mustDirectory(t, g, "AAPL")
	if g.DuplicateTickers != 1 {
		t.Errorf("DuplicateTickers = %d, want 1", g.DuplicateTickers)
	}
	if g.position != 2 {
		t.Errorf("position = %d, want 2 (every R message counted)", g.position)
	}
}

func TestReplaceOpensNewORNAndClosesOld(t *testing.T) {
	g := newTestGrouper(t)
	mustDirectory(t, g, "AAPL")

	if err := g.OnAddOrder(itch.AddOrderMessage{
		OrderReferenceNumber: 1, BuySellIndicator: 'B', Shares: 100, Stock: stock("AAPL"), Price: 1000000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := g.OnOrderReplace(itch.OrderReplaceMessage{
		OriginalOrderReferenceNumber: 1, NewOrderReferenceNumber: 2, Shares: 80, Price: 1010000,
	}); err != nil {
		t.Fatal(err)
	}
	if _, ok := g.groups[1]; ok {
		t.Error("old ORN should have closed")
	}
	if _, ok := g.groups[2]; !ok {
		t.Error("new ORN should be open")
	}
}

func TestBrokenTradeRevertsViaMatchTable(t *testing.T) {
	g := newTestGrouper(t)
	mustDirectory(t, g, "AAPL")

	if err := g.OnAddOrder(itch.AddOrderMessage{
		OrderReferenceNumber: 1, BuySellIndicator: 'B', Shares: 100, Stock: stock("AAPL"), Price: 1000000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := g.OnOrderExecuted(itch.OrderExecutedMessage{
		OrderReferenceNumber: 1, ExecutedShares: 40, MatchNumber: 5,
	}); err != nil {
		t.Fatal(err)
	}
	if err := g.OnBrokenTrade(itch.BrokenTradeMessage{MatchNumber: 5}); err != nil {
		t.Fatal(err)
	}
	og := g.groups[1]
	if og.Shares != 100 {
		t.Errorf("Shares after broken trade = %d, want 100", og.Shares)
	}
	if !strings.HasSuffix(og.Log[1].Kind, "-B") {
		t.Errorf("reverted entry kind = %q, want suffix -B", og.Log[1].Kind)
	}
	if og.Log[2].Kind != "B" {
		t.Errorf("new entry kind = %q, want B", og.Log[2].Kind)
	}
}

func TestSystemEventEndOfMessagesSetsDone(t *testing.T) {
	g := newTestGrouper(t)
	if err := g.OnSystemEvent(itch.SystemEventMessage{EventCode: 'O'}); err != nil {
		t.Fatal(err)
	}
	if g.Done {
		t.Fatal("Done should still be false after code O")
	}
	if err := g.OnSystemEvent(itch.SystemEventMessage{EventCode: 'C'}); err != nil {
		t.Fatal(err)
	}
	if !g.Done {
		t.Fatal("Done should be true after code C")
	}
}

func TestCacheFlushesAtThreshold(t *testing.T) {
	g := newTestGrouper(t)
	g.CacheMax = 2
	mustDirectory(t, g, "AAPL")

	for i := uint64(0); i < 2; i++ {
		orn := int64(i) + 1
		if err := g.OnAddOrder(itch.AddOrderMessage{
			OrderReferenceNumber: uint64(orn), BuySellIndicator: 'B', Shares: 10, Stock: stock("AAPL"), Price: 1000000,
		}); err != nil {
			t.Fatal(err)
		}
		if err := g.OnOrderDelete(itch.OrderDeleteMessage{OrderReferenceNumber: uint64(orn)}); err != nil {
			t.Fatal(err)
		}
	}
	if len(g.cache["AAPL"]) != 0 {
		t.Errorf("cache should have flushed at threshold, got %d buffered", len(g.cache["AAPL"]))
	}

	path := layout.GroupedCSV(g.Root, g.Date, "AAPL")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected flushed file at %s: %v", path, err)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	g := newTestGrouper(t)
	mustDirectory(t, g, "AAPL")

	if err := g.OnAddOrder(itch.AddOrderMessage{
		OrderReferenceNumber: 1, BuySellIndicator: 'B', Shares: 100, Stock: stock("AAPL"), Price: 1000000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := g.OnOrderExecuted(itch.OrderExecutedMessage{
		OrderReferenceNumber: 1, ExecutedShares: 40, MatchNumber: 5,
	}); err != nil {
		t.Fatal(err)
	}

	groups, matches, tickers, position := g.Snapshot()
	if _, ok := groups[1]; !ok {
		t.Fatal("expected group 1 in snapshot")
	}
	if _, ok := matches[5]; !ok {
		t.Fatal("expected match 5 in snapshot")
	}
	if !tickers["AAPL"] {
		t.Fatal("expected AAPL in snapshot tickers")
	}
	if position != g.position {
		t.Errorf("position = %d, want %d", position, g.position)
	}

	restored := newTestGrouper(t)
	restored.Restore(groups, matches, tickers, position)

	if err := restored.OnBrokenTrade(itch.BrokenTradeMessage{MatchNumber: 5}); err != nil {
		t.Fatalf("OnBrokenTrade after restore: %v", err)
	}
	if og := restored.groups[1]; og.Shares != 100 {
		t.Errorf("Shares after broken trade on restored grouper = %d, want 100", og.Shares)
	}
}

func TestFlushCachesLeavesOpenGroupsUntouched(t *testing.T) {
	g := newTestGrouper(t)
	mustDirectory(t, g, "AAPL")

	if err := g.OnAddOrder(itch.AddOrderMessage{
		OrderReferenceNumber: 1, BuySellIndicator: 'B', Shares: 100, Stock: stock("AAPL"), Price: 1000000,
	}); err != nil {
		t.Fatal(err)
	}

	if err := g.FlushCaches(); err != nil {
		t.Fatalf("FlushCaches: %v", err)
	}
	if _, ok := g.groups[1]; !ok {
		t.Error("FlushCaches should not touch the still-open group")
	}
}
