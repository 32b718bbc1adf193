package itch

import (
	"testing"
)

type testHandler struct {
	DefaultHandler
	systemEvents []SystemEventMessage
	addOrders    []AddOrderMessage
	executed     []OrderExecutedMessage
	deletes      []OrderDeleteMessage
	unknown      []byte
}

func (h *testHandler) OnSystemEvent(msg SystemEventMessage) error {
	h.systemEvents = append(h.systemEvents, msg)
	return nil
}

func (h *testHandler) OnAddOrder(msg AddOrderMessage) error {
	h.addOrders = append(h.addOrders, msg)
	return nil
}

func (h *testHandler) OnOrderExecuted(msg OrderExecutedMessage) error {
	h.executed = append(h.executed, msg)
	return nil
}

func (h *testHandler) OnOrderDelete(msg OrderDeleteMessage) error {
	h.deletes = append(h.deletes, msg)
	return nil
}

func (h *testHandler) OnUnknownMessage(msgType byte, data []byte) error {
	h.unknown = append(h.unknown, msgType)
	return nil
}

func TestParseSystemEvent(t *testing.T) {
	h := &testHandler{}
	p := NewParser(h)

	msg := SystemEventMessage{
		Type:           MessageTypeSystemEvent,
		StockLocate:    0,
		TrackingNumber: 1,
		Timestamp:      123456789,
		EventCode:      'O',
	}
	data := EncodeSystemEvent(msg)

	n, err := p.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 12 {
		t.Errorf("consumed = %d, want 12", n)
	}
	if len(h.systemEvents) != 1 {
		t.Fatalf("got %d system events, want 1", len(h.systemEvents))
	}
	if h.systemEvents[0] != msg {
		t.Errorf("decoded = %+v, want %+v", h.systemEvents[0], msg)
	}
}

func TestParseAddOrder(t *testing.T) {
	h := &testHandler{}
	p := NewParser(h)

	msg := AddOrderMessage{
		Type:                 MessageTypeAddOrder,
		StockLocate:          7,
		TrackingNumber:       0,
		Timestamp:            987654321,
		OrderReferenceNumber: 42,
		BuySellIndicator:     'B',
		Shares:               100,
		Price:                150000,
	}
	copy(msg.Stock[:], "AAPL    ")
	data := EncodeAddOrder(msg)

	n, err := p.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 36 {
		t.Errorf("consumed = %d, want 36", n)
	}
	if len(h.addOrders) != 1 || h.addOrders[0] != msg {
		t.Errorf("decoded = %+v, want %+v", h.addOrders, msg)
	}
}

func TestParseTruncated(t *testing.T) {
	h := &testHandler{}
	p := NewParser(h)

	msg := AddOrderMessage{Type: MessageTypeAddOrder}
	data := EncodeAddOrder(msg)

	_, err := p.Parse(data[:10])
	if err != ErrInsufficientData {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestParseUnknownType(t *testing.T) {
	h := &testHandler{}
	p := NewParser(h)

	n, err := p.Parse([]byte{'Z', 1, 2, 3})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 4 {
		t.Errorf("consumed = %d, want 4", n)
	}
	if len(h.unknown) != 1 || h.unknown[0] != 'Z' {
		t.Errorf("unknown = %v, want [Z]", h.unknown)
	}
}

func TestParseAll(t *testing.T) {
	h := &testHandler{}
	p := NewParser(h)

	var stream []byte
	stream = append(stream, EncodeSystemEvent(SystemEventMessage{Type: MessageTypeSystemEvent, EventCode: 'O'})...)
	stream = append(stream, EncodeAddOrder(AddOrderMessage{Type: MessageTypeAddOrder, OrderReferenceNumber: 1})...)
	stream = append(stream, EncodeOrderDelete(OrderDeleteMessage{Type: MessageTypeOrderDelete, OrderReferenceNumber: 1})...)

	consumed, count, err := p.ParseAll(stream)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if consumed != len(stream) {
		t.Errorf("consumed = %d, want %d", consumed, len(stream))
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if len(h.systemEvents) != 1 || len(h.addOrders) != 1 || len(h.deletes) != 1 {
		t.Errorf("dispatch mismatch: %+v", h)
	}
}
