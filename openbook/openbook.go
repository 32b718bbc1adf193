// Package openbook demonstrates that book.BookState and the stage-2
// replay loop are feed-agnostic: it supplies the NYSE-flavored occupant
// of the book.Row/book.Source seam without implementing an OpenBookUltra
// wire decoder, which is genuinely out of scope (the feed's framing is
// not specified anywhere in the retrieved corpus). A real NYSE ingestion
// path would decode OpenBookUltra messages into book.Row values and feed
// them through a Source exactly like the one here.
package openbook

import (
	"github.com/marketdata/itchpipe/book"
)

// MemorySource is a synthetic, in-memory book.Source: a fixed slice of
// rows replayed in order, the shape a NYSE decoder would produce once
// one exists. Used by tests (and potentially fixture replay) to exercise
// the shared reconstruction core from something other than a
// grouped-CSV file.
type MemorySource struct {
	rows []book.Row
	pos  int
}

// NewMemorySource wraps rows as a book.Source.
func NewMemorySource(rows []book.Row) *MemorySource {
	return &MemorySource{rows: rows}
}

// Next returns the next buffered row, or (zero, false, nil) once
// exhausted.
func (s *MemorySource) Next() (book.Row, bool, error) {
	if s.pos >= len(s.rows) {
		return book.Row{}, false, nil
	}
	r := s.rows[s.pos]
	s.pos++
	return r, true, nil
}
