package itch

import "fmt"

// MessageStats counts how many messages of each kind a handler has
// seen, plus a running total. It is embedded by StatsHandler and reused
// by telemetry.RunStats for both pipeline stages.
type MessageStats struct {
	SystemEvent            int
	StockDirectory         int
	StockTradingAction     int
	RegSHO                 int
	MarketParticipantPos   int
	MWCBDecline            int
	MWCBStatus             int
	IPOQuoting             int
	AuctionCollar          int
	AddOrder               int
	AddOrderMPID           int
	OrderExecuted          int
	OrderExecutedWithPrice int
	OrderCancel            int
	OrderDelete            int
	OrderReplace           int
	Trade                  int
	CrossTrade             int
	BrokenTrade            int
	NOII                   int
	RPII                   int
	Unknown                int
	TotalMessages          int
}

// String renders the counters as a compact summary line, in the
// teacher's banner style.
func (s MessageStats) String() string {
	return fmt.Sprintf(
		"total=%d add=%d exec=%d execPx=%d cancel=%d delete=%d replace=%d trade=%d broken=%d unknown=%d",
		s.TotalMessages, s.AddOrder, s.OrderExecuted, s.OrderExecutedWithPrice,
		s.OrderCancel, s.OrderDelete, s.OrderReplace, s.Trade, s.BrokenTrade, s.Unknown,
	)
}

// StatsHandler is a Handler that only tallies MessageStats; embed it and
// override individual On* methods to add behavior without losing the
// counts.
type StatsHandler struct {
	DefaultHandler
	Stats MessageStats
}

func (h *StatsHandler) OnSystemEvent(msg SystemEventMessage) error {
	h.Stats.SystemEvent++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnStockDirectory(msg StockDirectoryMessage) error {
	h.Stats.StockDirectory++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnStockTradingAction(msg StockTradingActionMessage) error {
	h.Stats.StockTradingAction++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnRegSHO(msg RegSHOMessage) error {
	h.Stats.RegSHO++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnMarketParticipantPosition(msg MarketParticipantPositionMessage) error {
	h.Stats.MarketParticipantPos++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnMWCBDecline(msg MWCBDeclineMessage) error {
	h.Stats.MWCBDecline++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnMWCBStatus(msg MWCBStatusMessage) error {
	h.Stats.MWCBStatus++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnIPOQuoting(msg IPOQuotingMessage) error {
	h.Stats.IPOQuoting++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnAuctionCollar(msg AuctionCollarMessage) error {
	h.Stats.AuctionCollar++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnAddOrder(msg AddOrderMessage) error {
	h.Stats.AddOrder++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnAddOrderMPID(msg AddOrderMPIDMessage) error {
	h.Stats.AddOrderMPID++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnOrderExecuted(msg OrderExecutedMessage) error {
	h.Stats.OrderExecuted++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnOrderExecutedWithPrice(msg OrderExecutedWithPriceMessage) error {
	h.Stats.OrderExecutedWithPrice++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnOrderCancel(msg OrderCancelMessage) error {
	h.Stats.OrderCancel++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnOrderDelete(msg OrderDeleteMessage) error {
	h.Stats.OrderDelete++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnOrderReplace(msg OrderReplaceMessage) error {
	h.Stats.OrderReplace++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnTrade(msg TradeMessage) error {
	h.Stats.Trade++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnCrossTrade(msg CrossTradeMessage) error {
	h.Stats.CrossTrade++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnBrokenTrade(msg BrokenTradeMessage) error {
	h.Stats.BrokenTrade++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnNOII(msg NOIIMessage) error {
	h.Stats.NOII++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnRPII(msg RPIIMessage) error {
	h.Stats.RPII++
	h.Stats.TotalMessages++
	return nil
}

func (h *StatsHandler) OnUnknownMessage(msgType byte, data []byte) error {
	h.Stats.Unknown++
	h.Stats.TotalMessages++
	return nil
}
