package itch

import (
	"io"
	"testing"

	"github.com/marketdata/itchpipe/bytestream"
)

func TestDecoderRun(t *testing.T) {
	var stream []byte
	stream = append(stream, Frame(EncodeSystemEvent(SystemEventMessage{Type: MessageTypeSystemEvent, EventCode: 'O'}))...)
	stream = append(stream, Frame(EncodeAddOrder(AddOrderMessage{Type: MessageTypeAddOrder, OrderReferenceNumber: 1, Shares: 10}))...)
	stream = append(stream, Frame(EncodeOrderDelete(OrderDeleteMessage{Type: MessageTypeOrderDelete, OrderReferenceNumber: 1}))...)

	h := &testHandler{}
	bs := bytestream.New(&sliceReader{data: stream})
	dec := NewDecoder(bs, h)

	n, err := dec.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != int64(len(stream)-3*2) {
		t.Errorf("consumed = %d, want %d", n, len(stream)-6)
	}
	if len(h.systemEvents) != 1 || len(h.addOrders) != 1 || len(h.deletes) != 1 {
		t.Errorf("dispatch mismatch: %+v", h)
	}
}

func TestDecoderTruncatedFrame(t *testing.T) {
	payload := EncodeAddOrder(AddOrderMessage{Type: MessageTypeAddOrder})
	framed := Frame(payload)
	truncated := framed[:len(framed)-5]

	h := &testHandler{}
	bs := bytestream.New(&sliceReader{data: truncated})
	dec := NewDecoder(bs, h)

	err := dec.Next()
	if err == nil {
		t.Fatal("expected error for truncated frame")
	}
	var decErr *DecodeError
	if !asDecodeError(err, &decErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
}

func asDecodeError(err error, target **DecodeError) bool {
	if de, ok := err.(*DecodeError); ok {
		*target = de
		return true
	}
	return false
}

// sliceReader is a minimal io.Reader over an in-memory byte slice, used
// so tests don't need a real file on disk.
type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
