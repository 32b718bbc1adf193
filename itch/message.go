// Package itch decodes NASDAQ TotalView-ITCH 5.0 binary market-data
// messages and re-encodes them for round-trip testing. It does not
// interpret the messages itself; callers implement Handler to react to
// each kind (see the grouper package for the order-book-building
// consumer).
package itch

import (
	"errors"
	"fmt"
)

// Message kind bytes, per the ITCH 5.0 protocol specification. Every
// message kind NASDAQ defines for equities data is represented here, even
// the ones the order-book reconstruction ignores (H, Y, L, Q, I, N, V, W,
// K, J), so that a decoder failure never hides behind "unknown message".
const (
	MessageTypeSystemEvent            = 'S'
	MessageTypeStockDirectory         = 'R'
	MessageTypeStockTradingAction     = 'H'
	MessageTypeRegSHO                 = 'Y'
	MessageTypeMarketParticipantPos   = 'L'
	MessageTypeMWCBDecline            = 'V'
	MessageTypeMWCBStatus             = 'W'
	MessageTypeIPOQuoting             = 'K'
	MessageTypeAuctionCollar          = 'J'
	MessageTypeAddOrder               = 'A'
	MessageTypeAddOrderMPID           = 'F'
	MessageTypeOrderExecuted          = 'E'
	MessageTypeOrderExecutedWithPrice = 'C'
	MessageTypeOrderCancel            = 'X'
	MessageTypeOrderDelete            = 'D'
	MessageTypeOrderReplace           = 'U'
	MessageTypeTrade                  = 'P'
	MessageTypeCrossTrade             = 'Q'
	MessageTypeBrokenTrade            = 'B'
	MessageTypeNOII                   = 'I'
	MessageTypeRPII                   = 'N'
)

// Common errors.
var (
	ErrInvalidMessage     = errors.New("itch: invalid message")
	ErrUnknownMessageType = errors.New("itch: unknown message type")
	ErrInsufficientData   = errors.New("itch: insufficient data")
)

// SystemEventMessage marks a phase of the trading day (start/end of
// messages, system hours, market hours).
type SystemEventMessage struct {
	Type           byte
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64
	EventCode      byte
}

// StockDirectoryMessage announces a tradeable symbol and its listing
// attributes.
type StockDirectoryMessage struct {
	Type                        byte
	StockLocate                 uint16
	TrackingNumber              uint16
	Timestamp                   uint64
	Stock                       [8]byte
	MarketCategory              byte
	FinancialStatusIndicator    byte
	RoundLotSize                uint32
	RoundLotsOnly               byte
	IssueClassification         byte
	IssueSubType                [2]byte
	Authenticity                byte
	ShortSaleThresholdIndicator byte
	IPOFlag                     byte
	LULDReferencePriceTier      byte
	ETPFlag                     byte
	ETPLeverageFactor           uint32
	InverseIndicator            byte
}

// StockTradingActionMessage reports a halt/resume/quotation-only change.
type StockTradingActionMessage struct {
	Type           byte
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64
	Stock          [8]byte
	TradingState   byte
	Reserved       byte
	Reason         [4]byte
}

// RegSHOMessage carries a Reg SHO short-sale restriction update.
type RegSHOMessage struct {
	Type           byte
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64
	Stock          [8]byte
	RegSHOAction   byte
}

// MarketParticipantPositionMessage reports a market maker's registration
// state for a symbol.
type MarketParticipantPositionMessage struct {
	Type                   byte
	StockLocate            uint16
	TrackingNumber         uint16
	Timestamp              uint64
	MPID                   [4]byte
	Stock                  [8]byte
	PrimaryMarketMaker     byte
	MarketMakerMode        byte
	MarketParticipantState byte
}

// MWCBDeclineMessage carries the three market-wide circuit breaker
// decline levels computed at the start of the day.
type MWCBDeclineMessage struct {
	Type           byte
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64
	Level1         uint64
	Level2         uint64
	Level3         uint64
}

// MWCBStatusMessage announces that a circuit breaker level has been
// breached.
type MWCBStatusMessage struct {
	Type           byte
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64
	BreachedLevel  byte
}

// IPOQuotingMessage carries an IPO release-time/price update.
type IPOQuotingMessage struct {
	Type                byte
	StockLocate         uint16
	TrackingNumber      uint16
	Timestamp           uint64
	Stock               [8]byte
	IPOReleaseTime      uint32
	IPOReleaseQualifier byte
	IPOPrice            uint32
}

// AuctionCollarMessage reports the LULD auction collar thresholds
// computed ahead of an auction.
type AuctionCollarMessage struct {
	Type                   byte
	StockLocate            uint16
	TrackingNumber         uint16
	Timestamp              uint64
	Stock                  [8]byte
	AuctionCollarReferencePrice uint32
	UpperAuctionCollarPrice     uint32
	LowerAuctionCollarPrice     uint32
	AuctionCollarExtension      uint32
}

// AddOrderMessage opens a new displayed resting order.
type AddOrderMessage struct {
	Type                 byte
	StockLocate          uint16
	TrackingNumber       uint16
	Timestamp            uint64
	OrderReferenceNumber uint64
	BuySellIndicator     byte
	Shares               uint32
	Stock                [8]byte
	Price                uint32
}

// AddOrderMPIDMessage is an AddOrderMessage attributed to a market
// participant.
type AddOrderMPIDMessage struct {
	Type                 byte
	StockLocate          uint16
	TrackingNumber       uint16
	Timestamp            uint64
	OrderReferenceNumber uint64
	BuySellIndicator     byte
	Shares               uint32
	Stock                [8]byte
	Price                uint32
	Attribution          [4]byte
}

// OrderExecutedMessage reports a (partial) fill at the order's resting
// price.
type OrderExecutedMessage struct {
	Type                 byte
	StockLocate          uint16
	TrackingNumber       uint16
	Timestamp            uint64
	OrderReferenceNumber uint64
	ExecutedShares       uint32
	MatchNumber          uint64
}

// OrderExecutedWithPriceMessage reports a fill printed at a price other
// than the order's resting price.
type OrderExecutedWithPriceMessage struct {
	Type                 byte
	StockLocate          uint16
	TrackingNumber       uint16
	Timestamp            uint64
	OrderReferenceNumber uint64
	ExecutedShares       uint32
	MatchNumber          uint64
	Printable            byte
	ExecutionPrice       uint32
}

// OrderCancelMessage reduces the outstanding shares of a resting order
// without closing it.
type OrderCancelMessage struct {
	Type                 byte
	StockLocate          uint16
	TrackingNumber       uint16
	Timestamp            uint64
	OrderReferenceNumber uint64
	CanceledShares       uint32
}

// OrderDeleteMessage removes a resting order entirely.
type OrderDeleteMessage struct {
	Type                 byte
	StockLocate          uint16
	TrackingNumber       uint16
	Timestamp            uint64
	OrderReferenceNumber uint64
}

// OrderReplaceMessage closes an existing order and opens a new one at a
// new reference number, price and size.
type OrderReplaceMessage struct {
	Type                         byte
	StockLocate                  uint16
	TrackingNumber               uint16
	Timestamp                    uint64
	OriginalOrderReferenceNumber uint64
	NewOrderReferenceNumber      uint64
	Shares                       uint32
	Price                        uint32
}

// TradeMessage ("P" — non-displayable execution) prints a trade against
// an order that was never resting on the visible book.
type TradeMessage struct {
	Type                 byte
	StockLocate          uint16
	TrackingNumber       uint16
	Timestamp            uint64
	OrderReferenceNumber uint64
	BuySellIndicator     byte
	Shares               uint32
	Stock                [8]byte
	Price                uint32
	MatchNumber          uint64
}

// CrossTradeMessage prints the result of an opening/closing/IPO/halt
// auction; it is not a resting-book event.
type CrossTradeMessage struct {
	Type           byte
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64
	Shares         uint64
	Stock          [8]byte
	CrossPrice     uint32
	MatchNumber    uint64
	CrossType      byte
}

// BrokenTradeMessage reverses a prior E or C execution referenced by
// match number.
type BrokenTradeMessage struct {
	Type           byte
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64
	MatchNumber    uint64
}

// NOIIMessage carries the Net Order Imbalance Indicator ahead of an
// auction.
type NOIIMessage struct {
	Type                    byte
	StockLocate             uint16
	TrackingNumber          uint16
	Timestamp               uint64
	PairedShares            uint64
	ImbalanceShares         uint64
	ImbalanceDirection      byte
	Stock                   [8]byte
	FarPrice                uint32
	NearPrice               uint32
	CurrentRefPrice         uint32
	CrossType               byte
	PriceVariationIndicator byte
}

// RPIIMessage signals Retail Price Improvement interest in a symbol.
type RPIIMessage struct {
	Type           byte
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64
	Stock          [8]byte
	InterestFlag   byte
}

// Handler receives one callback per decoded message kind. A mapping from
// kind byte to Parser method drives dispatch; Handler is this decoder's
// half of that dispatch table — implementations provide the behavior,
// the Parser provides the routing.
type Handler interface {
	OnSystemEvent(msg SystemEventMessage) error
	OnStockDirectory(msg StockDirectoryMessage) error
	OnStockTradingAction(msg StockTradingActionMessage) error
	OnRegSHO(msg RegSHOMessage) error
	OnMarketParticipantPosition(msg MarketParticipantPositionMessage) error
	OnMWCBDecline(msg MWCBDeclineMessage) error
	OnMWCBStatus(msg MWCBStatusMessage) error
	OnIPOQuoting(msg IPOQuotingMessage) error
	OnAuctionCollar(msg AuctionCollarMessage) error
	OnAddOrder(msg AddOrderMessage) error
	OnAddOrderMPID(msg AddOrderMPIDMessage) error
	OnOrderExecuted(msg OrderExecutedMessage) error
	OnOrderExecutedWithPrice(msg OrderExecutedWithPriceMessage) error
	OnOrderCancel(msg OrderCancelMessage) error
	OnOrderDelete(msg OrderDeleteMessage) error
	OnOrderReplace(msg OrderReplaceMessage) error
	OnTrade(msg TradeMessage) error
	OnCrossTrade(msg CrossTradeMessage) error
	OnBrokenTrade(msg BrokenTradeMessage) error
	OnNOII(msg NOIIMessage) error
	OnRPII(msg RPIIMessage) error
	OnUnknownMessage(msgType byte, data []byte) error
}

// DefaultHandler is a no-op Handler, except that OnUnknownMessage
// returns ErrUnknownMessageType so an unrecognized kind byte surfaces as
// a DecodeError; embed it to implement only the callbacks a consumer
// cares about.
type DefaultHandler struct{}

func (h *DefaultHandler) OnSystemEvent(msg SystemEventMessage) error                             { return nil }
func (h *DefaultHandler) OnStockDirectory(msg StockDirectoryMessage) error                       { return nil }
func (h *DefaultHandler) OnStockTradingAction(msg StockTradingActionMessage) error               { return nil }
func (h *DefaultHandler) OnRegSHO(msg RegSHOMessage) error                                       { return nil }
func (h *DefaultHandler) OnMarketParticipantPosition(msg MarketParticipantPositionMessage) error { return nil }
func (h *DefaultHandler) OnMWCBDecline(msg MWCBDeclineMessage) error                             { return nil }
func (h *DefaultHandler) OnMWCBStatus(msg MWCBStatusMessage) error                               { return nil }
func (h *DefaultHandler) OnIPOQuoting(msg IPOQuotingMessage) error                               { return nil }
func (h *DefaultHandler) OnAuctionCollar(msg AuctionCollarMessage) error                         { return nil }
func (h *DefaultHandler) OnAddOrder(msg AddOrderMessage) error                                   { return nil }
func (h *DefaultHandler) OnAddOrderMPID(msg AddOrderMPIDMessage) error                           { return nil }
func (h *DefaultHandler) OnOrderExecuted(msg OrderExecutedMessage) error                         { return nil }
func (h *DefaultHandler) OnOrderExecutedWithPrice(msg OrderExecutedWithPriceMessage) error       { return nil }
func (h *DefaultHandler) OnOrderCancel(msg OrderCancelMessage) error                             { return nil }
func (h *DefaultHandler) OnOrderDelete(msg OrderDeleteMessage) error                             { return nil }
func (h *DefaultHandler) OnOrderReplace(msg OrderReplaceMessage) error                           { return nil }
func (h *DefaultHandler) OnTrade(msg TradeMessage) error                                         { return nil }
func (h *DefaultHandler) OnCrossTrade(msg CrossTradeMessage) error                               { return nil }
func (h *DefaultHandler) OnBrokenTrade(msg BrokenTradeMessage) error                             { return nil }
func (h *DefaultHandler) OnNOII(msg NOIIMessage) error                                           { return nil }
func (h *DefaultHandler) OnRPII(msg RPIIMessage) error                                           { return nil }
func (h *DefaultHandler) OnUnknownMessage(msgType byte, data []byte) error {
	return fmt.Errorf("%w: %q", ErrUnknownMessageType, msgType)
}

// String returns a human-readable form of a SystemEventMessage.
func (msg SystemEventMessage) String() string {
	return fmt.Sprintf("SystemEvent{EventCode: %c, Timestamp: %d}", msg.EventCode, msg.Timestamp)
}

// String returns a human-readable form of an AddOrderMessage.
func (msg AddOrderMessage) String() string {
	stock := string(msg.Stock[:])
	side := "BUY"
	if msg.BuySellIndicator == 'S' {
		side = "SELL"
	}
	return fmt.Sprintf("AddOrder{Ref: %d, Side: %s, Shares: %d, Stock: %s, Price: %d}",
		msg.OrderReferenceNumber, side, msg.Shares, stock, msg.Price)
}
