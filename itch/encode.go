package itch

import "encoding/binary"

// putTimestamp writes a 6-byte big-endian nanosecond timestamp, the
// inverse of readUint48BE.
func putTimestamp(buf []byte, ts uint64) {
	buf[0] = byte(ts >> 40)
	buf[1] = byte(ts >> 32)
	buf[2] = byte(ts >> 24)
	buf[3] = byte(ts >> 16)
	buf[4] = byte(ts >> 8)
	buf[5] = byte(ts)
}

func putHeader(buf []byte, msgType byte, stockLocate, trackingNumber uint16, timestamp uint64) {
	buf[0] = msgType
	binary.BigEndian.PutUint16(buf[1:3], stockLocate)
	binary.BigEndian.PutUint16(buf[3:5], trackingNumber)
	putTimestamp(buf[5:11], timestamp)
}

// EncodeSystemEvent re-encodes a SystemEventMessage to its 12-byte wire
// form (no length prefix).
func EncodeSystemEvent(msg SystemEventMessage) []byte {
	buf := make([]byte, 12)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	buf[11] = msg.EventCode
	return buf
}

// EncodeStockDirectory re-encodes a StockDirectoryMessage to its 39-byte
// wire form.
func EncodeStockDirectory(msg StockDirectoryMessage) []byte {
	buf := make([]byte, 39)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	copy(buf[11:19], msg.Stock[:])
	buf[19] = msg.MarketCategory
	buf[20] = msg.FinancialStatusIndicator
	binary.BigEndian.PutUint32(buf[21:25], msg.RoundLotSize)
	buf[25] = msg.RoundLotsOnly
	buf[26] = msg.IssueClassification
	copy(buf[27:29], msg.IssueSubType[:])
	buf[29] = msg.Authenticity
	buf[30] = msg.ShortSaleThresholdIndicator
	buf[31] = msg.IPOFlag
	buf[32] = msg.LULDReferencePriceTier
	buf[33] = msg.ETPFlag
	binary.BigEndian.PutUint32(buf[34:38], msg.ETPLeverageFactor)
	buf[38] = msg.InverseIndicator
	return buf
}

// EncodeStockTradingAction re-encodes a StockTradingActionMessage to its
// 25-byte wire form.
func EncodeStockTradingAction(msg StockTradingActionMessage) []byte {
	buf := make([]byte, 25)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	copy(buf[11:19], msg.Stock[:])
	buf[19] = msg.TradingState
	buf[20] = msg.Reserved
	copy(buf[21:25], msg.Reason[:])
	return buf
}

// EncodeRegSHO re-encodes a RegSHOMessage to its 20-byte wire form.
func EncodeRegSHO(msg RegSHOMessage) []byte {
	buf := make([]byte, 20)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	copy(buf[11:19], msg.Stock[:])
	buf[19] = msg.RegSHOAction
	return buf
}

// EncodeMarketParticipantPosition re-encodes a
// MarketParticipantPositionMessage to its 26-byte wire form.
func EncodeMarketParticipantPosition(msg MarketParticipantPositionMessage) []byte {
	buf := make([]byte, 26)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	copy(buf[11:15], msg.MPID[:])
	copy(buf[15:23], msg.Stock[:])
	buf[23] = msg.PrimaryMarketMaker
	buf[24] = msg.MarketMakerMode
	buf[25] = msg.MarketParticipantState
	return buf
}

// EncodeMWCBDecline re-encodes a MWCBDeclineMessage to its 35-byte wire
// form.
func EncodeMWCBDecline(msg MWCBDeclineMessage) []byte {
	buf := make([]byte, 35)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.Level1)
	binary.BigEndian.PutUint64(buf[19:27], msg.Level2)
	binary.BigEndian.PutUint64(buf[27:35], msg.Level3)
	return buf
}

// EncodeMWCBStatus re-encodes a MWCBStatusMessage to its 12-byte wire
// form.
func EncodeMWCBStatus(msg MWCBStatusMessage) []byte {
	buf := make([]byte, 12)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	buf[11] = msg.BreachedLevel
	return buf
}

// EncodeIPOQuoting re-encodes an IPOQuotingMessage to its 28-byte wire
// form.
func EncodeIPOQuoting(msg IPOQuotingMessage) []byte {
	buf := make([]byte, 28)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	copy(buf[11:19], msg.Stock[:])
	binary.BigEndian.PutUint32(buf[19:23], msg.IPOReleaseTime)
	buf[23] = msg.IPOReleaseQualifier
	binary.BigEndian.PutUint32(buf[24:28], msg.IPOPrice)
	return buf
}

// EncodeAuctionCollar re-encodes an AuctionCollarMessage to its 35-byte
// wire form.
func EncodeAuctionCollar(msg AuctionCollarMessage) []byte {
	buf := make([]byte, 35)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	copy(buf[11:19], msg.Stock[:])
	binary.BigEndian.PutUint32(buf[19:23], msg.AuctionCollarReferencePrice)
	binary.BigEndian.PutUint32(buf[23:27], msg.UpperAuctionCollarPrice)
	binary.BigEndian.PutUint32(buf[27:31], msg.LowerAuctionCollarPrice)
	binary.BigEndian.PutUint32(buf[31:35], msg.AuctionCollarExtension)
	return buf
}

// EncodeAddOrder re-encodes an AddOrderMessage to its 36-byte wire form.
func EncodeAddOrder(msg AddOrderMessage) []byte {
	buf := make([]byte, 36)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.OrderReferenceNumber)
	buf[19] = msg.BuySellIndicator
	binary.BigEndian.PutUint32(buf[20:24], msg.Shares)
	copy(buf[24:32], msg.Stock[:])
	binary.BigEndian.PutUint32(buf[32:36], msg.Price)
	return buf
}

// EncodeAddOrderMPID re-encodes an AddOrderMPIDMessage to its 40-byte
// wire form.
func EncodeAddOrderMPID(msg AddOrderMPIDMessage) []byte {
	buf := make([]byte, 40)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.OrderReferenceNumber)
	buf[19] = msg.BuySellIndicator
	binary.BigEndian.PutUint32(buf[20:24], msg.Shares)
	copy(buf[24:32], msg.Stock[:])
	binary.BigEndian.PutUint32(buf[32:36], msg.Price)
	copy(buf[36:40], msg.Attribution[:])
	return buf
}

// EncodeOrderExecuted re-encodes an OrderExecutedMessage to its 31-byte
// wire form.
func EncodeOrderExecuted(msg OrderExecutedMessage) []byte {
	buf := make([]byte, 31)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.OrderReferenceNumber)
	binary.BigEndian.PutUint32(buf[19:23], msg.ExecutedShares)
	binary.BigEndian.PutUint64(buf[23:31], msg.MatchNumber)
	return buf
}

// EncodeOrderExecutedWithPrice re-encodes an
// OrderExecutedWithPriceMessage to its 36-byte wire form.
func EncodeOrderExecutedWithPrice(msg OrderExecutedWithPriceMessage) []byte {
	buf := make([]byte, 36)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.OrderReferenceNumber)
	binary.BigEndian.PutUint32(buf[19:23], msg.ExecutedShares)
	binary.BigEndian.PutUint64(buf[23:31], msg.MatchNumber)
	buf[31] = msg.Printable
	binary.BigEndian.PutUint32(buf[32:36], msg.ExecutionPrice)
	return buf
}

// EncodeOrderCancel re-encodes an OrderCancelMessage to its 23-byte wire
// form.
func EncodeOrderCancel(msg OrderCancelMessage) []byte {
	buf := make([]byte, 23)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.OrderReferenceNumber)
	binary.BigEndian.PutUint32(buf[19:23], msg.CanceledShares)
	return buf
}

// EncodeOrderDelete re-encodes an OrderDeleteMessage to its 19-byte wire
// form.
func EncodeOrderDelete(msg OrderDeleteMessage) []byte {
	buf := make([]byte, 19)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.OrderReferenceNumber)
	return buf
}

// EncodeOrderReplace re-encodes an OrderReplaceMessage to its 35-byte
// wire form.
func EncodeOrderReplace(msg OrderReplaceMessage) []byte {
	buf := make([]byte, 35)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.OriginalOrderReferenceNumber)
	binary.BigEndian.PutUint64(buf[19:27], msg.NewOrderReferenceNumber)
	binary.BigEndian.PutUint32(buf[27:31], msg.Shares)
	binary.BigEndian.PutUint32(buf[31:35], msg.Price)
	return buf
}

// EncodeTrade re-encodes a TradeMessage to its 44-byte wire form.
func EncodeTrade(msg TradeMessage) []byte {
	buf := make([]byte, 44)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.OrderReferenceNumber)
	buf[19] = msg.BuySellIndicator
	binary.BigEndian.PutUint32(buf[20:24], msg.Shares)
	copy(buf[24:32], msg.Stock[:])
	binary.BigEndian.PutUint32(buf[32:36], msg.Price)
	binary.BigEndian.PutUint64(buf[36:44], msg.MatchNumber)
	return buf
}

// EncodeCrossTrade re-encodes a CrossTradeMessage to its 40-byte wire
// form.
func EncodeCrossTrade(msg CrossTradeMessage) []byte {
	buf := make([]byte, 40)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.Shares)
	copy(buf[19:27], msg.Stock[:])
	binary.BigEndian.PutUint32(buf[27:31], msg.CrossPrice)
	binary.BigEndian.PutUint64(buf[31:39], msg.MatchNumber)
	buf[39] = msg.CrossType
	return buf
}

// EncodeBrokenTrade re-encodes a BrokenTradeMessage to its 19-byte wire
// form.
func EncodeBrokenTrade(msg BrokenTradeMessage) []byte {
	buf := make([]byte, 19)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.MatchNumber)
	return buf
}

// EncodeNOII re-encodes a NOIIMessage to its 50-byte wire form.
func EncodeNOII(msg NOIIMessage) []byte {
	buf := make([]byte, 50)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], msg.PairedShares)
	binary.BigEndian.PutUint64(buf[19:27], msg.ImbalanceShares)
	buf[27] = msg.ImbalanceDirection
	copy(buf[28:36], msg.Stock[:])
	binary.BigEndian.PutUint32(buf[36:40], msg.FarPrice)
	binary.BigEndian.PutUint32(buf[40:44], msg.NearPrice)
	binary.BigEndian.PutUint32(buf[44:48], msg.CurrentRefPrice)
	buf[48] = msg.CrossType
	buf[49] = msg.PriceVariationIndicator
	return buf
}

// EncodeRPII re-encodes an RPIIMessage to its 20-byte wire form.
func EncodeRPII(msg RPIIMessage) []byte {
	buf := make([]byte, 20)
	putHeader(buf, msg.Type, msg.StockLocate, msg.TrackingNumber, msg.Timestamp)
	copy(buf[11:19], msg.Stock[:])
	buf[19] = msg.InterestFlag
	return buf
}

// Frame prepends the 2-byte big-endian length prefix a Decoder expects.
func Frame(payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(payload)))
	copy(out[2:], payload)
	return out
}
