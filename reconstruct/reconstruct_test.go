package reconstruct

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marketdata/itchpipe/book"
	"github.com/marketdata/itchpipe/csvio"
	"github.com/marketdata/itchpipe/layout"
)

func writeGrouped(t *testing.T, root, date, ticker string, lines []string) {
	t.Helper()
	path := layout.GroupedCSV(root, date, ticker)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	w, err := csvio.OpenWriter(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString(inputHeader + "\n"); err != nil {
		t.Fatal(err)
	}
	for _, l := range lines {
		if err := w.WriteString(l + "\n"); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestBoundaryScenariosReplay drives spec scenarios #1-#3 and #5 through
// the full grouped-CSV -> BookState -> enriched-CSV pipeline.
func TestBoundaryScenariosReplay(t *testing.T) {
	root := t.TempDir()
	date := "073024"
	ticker := "AAPL"

	writeGrouped(t, root, date, ticker, []string{
		"A, 34200.0000000, 1, B, 100, 10.0000, 100",
		"A, 34200.1000000, 2, S, 50, 10.0500, 50",
		"E, 34200.2000000, 1, B, 40, 10.0000, 60",
		"D, 34200.3000000, 1, B, 60, 10.0000, 0",
	})

	r := New(root, date, book.Pedantic)
	if err := r.ProcessTicker(ticker); err != nil {
		t.Fatalf("ProcessTicker: %v", err)
	}

	outRows, err := csvio.ReadAllRows(layout.ProcessedCSV(root, date, ticker))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(outRows) != 5 { // header + 4 rows
		t.Fatalf("got %d output rows, want 5: %v", len(outRows), outRows)
	}

	// row for frame #2 (the S add): best_bid=10.00 best_ask=10.05 spread=0.05 depth=150
	row2 := outRows[2]
	if !strings.Contains(row2, "10.0000, 10.0500, 0.0500, 50, 100, 150") {
		t.Errorf("row2 = %q, want best/spread/depths matching scenario #2", row2)
	}

	// row for frame #3 (E exec 40): bid_depth=60, best_bid still 10.00
	row3 := outRows[3]
	if !strings.Contains(row3, "10.0000, 10.0500, 0.0500, 50, 60, 110") {
		t.Errorf("row3 = %q, want depths matching scenario #3", row3)
	}

	// row for frame #5 (D deletes ORN 1): bids empty, best_bid=None, spread=None, depth=50
	row4 := outRows[4]
	if !strings.Contains(row4, "None, 10.0500, None, 50, 0, 50") {
		t.Errorf("row4 = %q, want best_bid/spread None matching scenario #5", row4)
	}
}

func TestJRowsSkipped(t *testing.T) {
	root := t.TempDir()
	date := "073024"
	ticker := "AAPL"
	writeGrouped(t, root, date, ticker, []string{
		"J, 34200.0000000, 0, B, 0, 10.0000, 0",
		"A, 34200.1000000, 1, B, 10, 9.9900, 10",
	})
	r := New(root, date, book.Pedantic)
	if err := r.ProcessTicker(ticker); err != nil {
		t.Fatalf("ProcessTicker: %v", err)
	}
	outRows, err := csvio.ReadAllRows(layout.ProcessedCSV(root, date, ticker))
	if err != nil {
		t.Fatal(err)
	}
	if len(outRows) != 2 {
		t.Fatalf("got %d rows, want 2 (header + 1 surviving row), J should be dropped: %v", len(outRows), outRows)
	}
}

func TestPedanticAbortsOnMissingPrice(t *testing.T) {
	root := t.TempDir()
	date := "073024"
	ticker := "AAPL"
	writeGrouped(t, root, date, ticker, []string{
		// Delete of an ORN/price never added.
		"D, 34200.0000000, 1, B, 100, 10.0000, 0",
	})
	r := New(root, date, book.Pedantic)
	if err := r.ProcessTicker(ticker); err == nil {
		t.Fatal("expected BookInconsistencyError to abort in Pedantic mode")
	}
}

func TestPermissiveContinuesOnMissingPrice(t *testing.T) {
	root := t.TempDir()
	date := "073024"
	ticker := "AAPL"
	writeGrouped(t, root, date, ticker, []string{
		"D, 34200.0000000, 1, B, 100, 10.0000, 0",
		"A, 34200.1000000, 2, B, 10, 9.0000, 10",
	})
	r := New(root, date, book.Permissive)
	if err := r.ProcessTicker(ticker); err != nil {
		t.Fatalf("ProcessTicker should not error in Permissive mode: %v", err)
	}
	outRows, err := csvio.ReadAllRows(layout.ProcessedCSV(root, date, ticker))
	if err != nil {
		t.Fatal(err)
	}
	if len(outRows) != 3 {
		t.Fatalf("got %d rows, want 3", len(outRows))
	}
}
