package itch

import "testing"

// TestRoundTrip encodes a representative message of several kinds (R,
// H, J, U, P, B, I) and confirms that decoding it back through Parser
// recovers identical field values.
func TestRoundTrip(t *testing.T) {
	stock := [8]byte{}
	copy(stock[:], "MSFT    ")

	t.Run("StockDirectory", func(t *testing.T) {
		want := StockDirectoryMessage{Type: MessageTypeStockDirectory, StockLocate: 3, Stock: stock, RoundLotSize: 100}
		var got StockDirectoryMessage
		h := &captureHandler{onStockDirectory: func(m StockDirectoryMessage) { got = m }}
		if _, err := NewParser(h).Parse(EncodeStockDirectory(want)); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("StockTradingAction", func(t *testing.T) {
		want := StockTradingActionMessage{Type: MessageTypeStockTradingAction, Stock: stock, TradingState: 'H', Reason: [4]byte{'T', '1', ' ', ' '}}
		var got StockTradingActionMessage
		h := &captureHandler{onStockTradingAction: func(m StockTradingActionMessage) { got = m }}
		if _, err := NewParser(h).Parse(EncodeStockTradingAction(want)); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("AuctionCollar", func(t *testing.T) {
		want := AuctionCollarMessage{
			Type: MessageTypeAuctionCollar, Stock: stock,
			AuctionCollarReferencePrice: 1000, UpperAuctionCollarPrice: 1100,
			LowerAuctionCollarPrice: 900, AuctionCollarExtension: 1,
		}
		var got AuctionCollarMessage
		h := &captureHandler{onAuctionCollar: func(m AuctionCollarMessage) { got = m }}
		if _, err := NewParser(h).Parse(EncodeAuctionCollar(want)); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("OrderReplace", func(t *testing.T) {
		want := OrderReplaceMessage{Type: MessageTypeOrderReplace, OriginalOrderReferenceNumber: 1, NewOrderReferenceNumber: 2, Shares: 50, Price: 2000}
		var got OrderReplaceMessage
		h := &captureHandler{onOrderReplace: func(m OrderReplaceMessage) { got = m }}
		if _, err := NewParser(h).Parse(EncodeOrderReplace(want)); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("Trade", func(t *testing.T) {
		want := TradeMessage{Type: MessageTypeTrade, OrderReferenceNumber: 9, BuySellIndicator: 'B', Shares: 10, Stock: stock, Price: 500, MatchNumber: 77}
		var got TradeMessage
		h := &captureHandler{onTrade: func(m TradeMessage) { got = m }}
		if _, err := NewParser(h).Parse(EncodeTrade(want)); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("BrokenTrade", func(t *testing.T) {
		want := BrokenTradeMessage{Type: MessageTypeBrokenTrade, MatchNumber: 77}
		var got BrokenTradeMessage
		h := &captureHandler{onBrokenTrade: func(m BrokenTradeMessage) { got = m }}
		if _, err := NewParser(h).Parse(EncodeBrokenTrade(want)); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("NOII", func(t *testing.T) {
		want := NOIIMessage{Type: MessageTypeNOII, PairedShares: 1000, ImbalanceShares: 200, ImbalanceDirection: 'B', Stock: stock, FarPrice: 100, NearPrice: 110, CurrentRefPrice: 105, CrossType: 'O', PriceVariationIndicator: 'L'}
		var got NOIIMessage
		h := &captureHandler{onNOII: func(m NOIIMessage) { got = m }}
		if _, err := NewParser(h).Parse(EncodeNOII(want)); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})
}

// TestFrame confirms Frame produces a length prefix a Decoder can split
// back out.
func TestFrame(t *testing.T) {
	payload := EncodeOrderDelete(OrderDeleteMessage{Type: MessageTypeOrderDelete, OrderReferenceNumber: 5})
	framed := Frame(payload)
	if len(framed) != len(payload)+2 {
		t.Fatalf("framed len = %d, want %d", len(framed), len(payload)+2)
	}
	gotLen := int(framed[0])<<8 | int(framed[1])
	if gotLen != len(payload) {
		t.Errorf("length prefix = %d, want %d", gotLen, len(payload))
	}
}

// captureHandler routes only the callbacks under test to a closure,
// leaving the rest as no-ops via DefaultHandler.
type captureHandler struct {
	DefaultHandler
	onStockDirectory     func(StockDirectoryMessage)
	onStockTradingAction func(StockTradingActionMessage)
	onAuctionCollar      func(AuctionCollarMessage)
	onOrderReplace       func(OrderReplaceMessage)
	onTrade              func(TradeMessage)
	onBrokenTrade        func(BrokenTradeMessage)
	onNOII               func(NOIIMessage)
}

func (h *captureHandler) OnStockDirectory(msg StockDirectoryMessage) error {
	if h.onStockDirectory != nil {
		h.onStockDirectory(msg)
	}
	return nil
}

func (h *captureHandler) OnStockTradingAction(msg StockTradingActionMessage) error {
	if h.onStockTradingAction != nil {
		h.onStockTradingAction(msg)
	}
	return nil
}

func (h *captureHandler) OnAuctionCollar(msg AuctionCollarMessage) error {
	if h.onAuctionCollar != nil {
		h.onAuctionCollar(msg)
	}
	return nil
}

func (h *captureHandler) OnOrderReplace(msg OrderReplaceMessage) error {
	if h.onOrderReplace != nil {
		h.onOrderReplace(msg)
	}
	return nil
}

func (h *captureHandler) OnTrade(msg TradeMessage) error {
	if h.onTrade != nil {
		h.onTrade(msg)
	}
	return nil
}

func (h *captureHandler) OnBrokenTrade(msg BrokenTradeMessage) error {
	if h.onBrokenTrade != nil {
		h.onBrokenTrade(msg)
	}
	return nil
}

func (h *captureHandler) OnNOII(msg NOIIMessage) error {
	if h.onNOII != nil {
		h.onNOII(msg)
	}
	return nil
}
