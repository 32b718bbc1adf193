package walcheckpoint

import (
	"testing"

	"github.com/marketdata/itchpipe/ordergroup"
	"github.com/marketdata/itchpipe/price"
)

func TestSaveLoadLatestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCheckpointer(dir)
	if err != nil {
		t.Fatalf("NewCheckpointer: %v", err)
	}

	var stock [8]byte
	copy(stock[:], "AAPL    ")
	g := ordergroup.New(ordergroup.OriginAdd, 42, 'B', stock, 100, price.FromWire(100000), [4]byte{}, 1000)
	g.ApplyE(40, 2000)

	cp := Checkpoint{
		Offset:   4096,
		Groups:   map[int64]*ordergroup.OrderGroup{42: g},
		Matches:  map[uint64]MatchRef{7: {ORN: 42, LogIndex: 1}},
		Tickers:  map[string]bool{"AAPL": true, "MSFT": true},
		Position: 17,
	}
	if err := c.Save(cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a checkpoint, got nil")
	}
	if loaded.Offset != 4096 {
		t.Errorf("Offset = %d, want 4096", loaded.Offset)
	}
	got, ok := loaded.Groups[42]
	if !ok {
		t.Fatal("expected group for orn 42")
	}
	if got.Shares != 60 {
		t.Errorf("Shares = %d, want 60", got.Shares)
	}
	if len(got.Log) != 2 {
		t.Fatalf("Log length = %d, want 2", len(got.Log))
	}
	if ref := loaded.Matches[7]; ref.ORN != 42 || ref.LogIndex != 1 {
		t.Errorf("Matches[7] = %+v, want {42 1}", ref)
	}
	if loaded.Position != 17 {
		t.Errorf("Position = %d, want 17", loaded.Position)
	}
	if !loaded.Tickers["AAPL"] || !loaded.Tickers["MSFT"] || len(loaded.Tickers) != 2 {
		t.Errorf("Tickers = %v, want {AAPL, MSFT}", loaded.Tickers)
	}
}

func TestLoadLatestNoCheckpointsReturnsNil(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCheckpointer(dir)
	if err != nil {
		t.Fatal(err)
	}
	cp, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if cp != nil {
		t.Errorf("expected nil checkpoint, got %+v", cp)
	}
}

func TestLoadLatestPicksHighestOffset(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCheckpointer(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, off := range []int64{100, 500, 300} {
		if err := c.Save(Checkpoint{Offset: off, Groups: map[int64]*ordergroup.OrderGroup{}, Matches: map[uint64]MatchRef{}}); err != nil {
			t.Fatalf("Save(%d): %v", off, err)
		}
	}
	cp, err := c.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if cp.Offset != 500 {
		t.Errorf("Offset = %d, want 500", cp.Offset)
	}
}
