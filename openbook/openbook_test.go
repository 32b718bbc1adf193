package openbook

import (
	"testing"

	"github.com/marketdata/itchpipe/book"
	"github.com/marketdata/itchpipe/price"
)

func TestMemorySourceReplaysIntoBookState(t *testing.T) {
	rows := []book.Row{
		{Kind: "A", Seconds: 1, ORN: 1, Side: 'B', Shares: 100, Price: price.FromWire(100000), Remaining: 100},
		{Kind: "A", Seconds: 2, ORN: 2, Side: 'S', Shares: 50, Price: price.FromWire(100500), Remaining: 50},
	}
	src := NewMemorySource(rows)
	bs := book.New("NYSE-TEST", book.Pedantic)

	if err := book.Replay(bs, src); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !bs.HasBestBid || bs.BestBid != price.FromWire(100000) {
		t.Errorf("BestBid = %v (has=%v), want 100000", bs.BestBid, bs.HasBestBid)
	}
	if !bs.HasBestAsk || bs.BestAsk != price.FromWire(100500) {
		t.Errorf("BestAsk = %v (has=%v), want 100500", bs.BestAsk, bs.HasBestAsk)
	}
	if bs.Depth() != 150 {
		t.Errorf("Depth() = %d, want 150", bs.Depth())
	}
}

func TestMemorySourceExhausts(t *testing.T) {
	src := NewMemorySource(nil)
	_, ok, err := src.Next()
	if err != nil || ok {
		t.Errorf("Next on empty source = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}
