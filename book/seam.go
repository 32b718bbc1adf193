package book

import "github.com/marketdata/itchpipe/price"

// Row is the feed-agnostic replay contract every BookState consumer
// produces: the same seven columns a grouped-CSV line carries, independent of
// whether it came from ITCH or another feed format. Entry is Row's
// itch-flavored twin used internally by the replay loop; the two are
// structurally identical so a Source implementation can build Entry
// values straight from Row values with no conversion logic of its own.
type Row struct {
	Kind      string
	Seconds   float64
	ORN       int64
	Side      byte
	Shares    uint32
	Price     price.Price
	Remaining uint32
}

// Entry returns the book.Entry this Row drives BookState.Apply with.
func (r Row) Entry() Entry {
	return Entry{
		Kind:      r.Kind,
		Seconds:   r.Seconds,
		ORN:       r.ORN,
		Side:      r.Side,
		Delta:     r.Shares,
		Price:     r.Price,
		Remaining: r.Remaining,
	}
}

// Source yields replay rows one at a time. Next returns (row, true, nil)
// for each row, and (zero, false, nil) once exhausted; a non-nil error
// aborts the replay. reconstruct.ProcessTicker drives a CSV-backed
// Source; the NYSE openbook package demonstrates a second implementation
// to prove the seam is feed-agnostic, per spec.md §1's "out of
// scope... beyond the fact that it plugs into the same stage-2
// reconstructor."
type Source interface {
	Next() (Row, bool, error)
}

// Replay drives bs through every row src yields, in the order src
// produces them — the caller is responsible for presenting rows in
// (seconds ascending, remaining descending) order, as reconstruct's CSV
// loader does.
func Replay(bs *BookState, src Source) error {
	for {
		r, ok, err := src.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := bs.Apply(r.Entry()); err != nil {
			return err
		}
	}
}
