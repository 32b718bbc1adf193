package itch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/marketdata/itchpipe/bytestream"
)

// DecodeError reports a malformed frame: an unknown kind byte, a
// truncated payload, or an invalid length prefix. It carries the
// absolute byte offset of the failing frame and the sizes of the three
// reads that preceded it, so operators can correlate a failure with a
// position in the daily feed without re-running under a debugger.
type DecodeError struct {
	Offset         int64
	LastReadSizes  []int
	Kind           byte
	Err            error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("itch: decode error at offset %d (kind=%q, last reads=%v): %v",
		e.Offset, e.Kind, e.LastReadSizes, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Parser parses framed ITCH payloads (length prefix already stripped)
// and dispatches each to Handler. A Parser is not itself responsible for
// reading from a stream; see Decoder for the streaming counterpart.
type Parser struct {
	handler Handler
}

// NewParser creates a Parser that dispatches decoded messages to handler.
func NewParser(handler Handler) *Parser {
	return &Parser{handler: handler}
}

// Parse decodes a single message from data (no length prefix) and
// dispatches it to the handler. It returns the number of bytes consumed
// from data.
func (p *Parser) Parse(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, ErrInsufficientData
	}

	msgType := data[0]
	var consumed int
	var err error

	switch msgType {
	case MessageTypeSystemEvent:
		consumed, err = p.parseSystemEvent(data)
	case MessageTypeStockDirectory:
		consumed, err = p.parseStockDirectory(data)
	case MessageTypeStockTradingAction:
		consumed, err = p.parseStockTradingAction(data)
	case MessageTypeRegSHO:
		consumed, err = p.parseRegSHO(data)
	case MessageTypeMarketParticipantPos:
		consumed, err = p.parseMarketParticipantPosition(data)
	case MessageTypeMWCBDecline:
		consumed, err = p.parseMWCBDecline(data)
	case MessageTypeMWCBStatus:
		consumed, err = p.parseMWCBStatus(data)
	case MessageTypeIPOQuoting:
		consumed, err = p.parseIPOQuoting(data)
	case MessageTypeAuctionCollar:
		consumed, err = p.parseAuctionCollar(data)
	case MessageTypeAddOrder:
		consumed, err = p.parseAddOrder(data)
	case MessageTypeAddOrderMPID:
		consumed, err = p.parseAddOrderMPID(data)
	case MessageTypeOrderExecuted:
		consumed, err = p.parseOrderExecuted(data)
	case MessageTypeOrderExecutedWithPrice:
		consumed, err = p.parseOrderExecutedWithPrice(data)
	case MessageTypeOrderCancel:
		consumed, err = p.parseOrderCancel(data)
	case MessageTypeOrderDelete:
		consumed, err = p.parseOrderDelete(data)
	case MessageTypeOrderReplace:
		consumed, err = p.parseOrderReplace(data)
	case MessageTypeTrade:
		consumed, err = p.parseTrade(data)
	case MessageTypeCrossTrade:
		consumed, err = p.parseCrossTrade(data)
	case MessageTypeBrokenTrade:
		consumed, err = p.parseBrokenTrade(data)
	case MessageTypeNOII:
		consumed, err = p.parseNOII(data)
	case MessageTypeRPII:
		consumed, err = p.parseRPII(data)
	default:
		err = p.handler.OnUnknownMessage(msgType, data)
		consumed = len(data)
	}

	return consumed, err
}

// ParseAll decodes every frame in data (no length prefixes — back-to-back
// message bodies of known size), stopping at the first error. It returns
// the number of bytes and the number of messages consumed.
func (p *Parser) ParseAll(data []byte) (int, int, error) {
	var consumed, count int
	for consumed < len(data) {
		n, err := p.Parse(data[consumed:])
		if err != nil {
			return consumed, count, err
		}
		if n == 0 {
			return consumed, count, ErrInsufficientData
		}
		consumed += n
		count++
	}
	return consumed, count, nil
}

func readUint16BE(data []byte) uint16 { return binary.BigEndian.Uint16(data) }
func readUint32BE(data []byte) uint32 { return binary.BigEndian.Uint32(data) }
func readUint64BE(data []byte) uint64 { return binary.BigEndian.Uint64(data) }

// readUint48BE reads a 6-byte big-endian nanosecond timestamp, the ITCH
// convention for "time since midnight".
func readUint48BE(data []byte) uint64 {
	return uint64(data[0])<<40 | uint64(data[1])<<32 | uint64(data[2])<<24 |
		uint64(data[3])<<16 | uint64(data[4])<<8 | uint64(data[5])
}

func (p *Parser) parseSystemEvent(data []byte) (int, error) {
	const size = 12
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := SystemEventMessage{
		Type:           data[0],
		StockLocate:    readUint16BE(data[1:3]),
		TrackingNumber: readUint16BE(data[3:5]),
		Timestamp:      readUint48BE(data[5:11]),
		EventCode:      data[11],
	}
	return size, p.handler.OnSystemEvent(msg)
}

func (p *Parser) parseStockDirectory(data []byte) (int, error) {
	const size = 39
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := StockDirectoryMessage{
		Type:                        data[0],
		StockLocate:                 readUint16BE(data[1:3]),
		TrackingNumber:              readUint16BE(data[3:5]),
		Timestamp:                   readUint48BE(data[5:11]),
		MarketCategory:              data[19],
		FinancialStatusIndicator:    data[20],
		RoundLotSize:                readUint32BE(data[21:25]),
		RoundLotsOnly:               data[25],
		IssueClassification:         data[26],
		Authenticity:                data[29],
		ShortSaleThresholdIndicator: data[30],
		IPOFlag:                     data[31],
		LULDReferencePriceTier:      data[32],
		ETPFlag:                     data[33],
		ETPLeverageFactor:           readUint32BE(data[34:38]),
		InverseIndicator:            data[38],
	}
	copy(msg.Stock[:], data[11:19])
	copy(msg.IssueSubType[:], data[27:29])
	return size, p.handler.OnStockDirectory(msg)
}

func (p *Parser) parseStockTradingAction(data []byte) (int, error) {
	const size = 25
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := StockTradingActionMessage{
		Type:           data[0],
		StockLocate:    readUint16BE(data[1:3]),
		TrackingNumber: readUint16BE(data[3:5]),
		Timestamp:      readUint48BE(data[5:11]),
		TradingState:   data[19],
		Reserved:       data[20],
	}
	copy(msg.Stock[:], data[11:19])
	copy(msg.Reason[:], data[21:25])
	return size, p.handler.OnStockTradingAction(msg)
}

func (p *Parser) parseRegSHO(data []byte) (int, error) {
	const size = 20
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := RegSHOMessage{
		Type:           data[0],
		StockLocate:    readUint16BE(data[1:3]),
		TrackingNumber: readUint16BE(data[3:5]),
		Timestamp:      readUint48BE(data[5:11]),
		RegSHOAction:   data[19],
	}
	copy(msg.Stock[:], data[11:19])
	return size, p.handler.OnRegSHO(msg)
}

func (p *Parser) parseMarketParticipantPosition(data []byte) (int, error) {
	const size = 26
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := MarketParticipantPositionMessage{
		Type:                   data[0],
		StockLocate:            readUint16BE(data[1:3]),
		TrackingNumber:         readUint16BE(data[3:5]),
		Timestamp:              readUint48BE(data[5:11]),
		PrimaryMarketMaker:     data[23],
		MarketMakerMode:        data[24],
		MarketParticipantState: data[25],
	}
	copy(msg.MPID[:], data[11:15])
	copy(msg.Stock[:], data[15:23])
	return size, p.handler.OnMarketParticipantPosition(msg)
}

func (p *Parser) parseMWCBDecline(data []byte) (int, error) {
	const size = 35
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := MWCBDeclineMessage{
		Type:           data[0],
		StockLocate:    readUint16BE(data[1:3]),
		TrackingNumber: readUint16BE(data[3:5]),
		Timestamp:      readUint48BE(data[5:11]),
		Level1:         readUint64BE(data[11:19]),
		Level2:         readUint64BE(data[19:27]),
		Level3:         readUint64BE(data[27:35]),
	}
	return size, p.handler.OnMWCBDecline(msg)
}

func (p *Parser) parseMWCBStatus(data []byte) (int, error) {
	const size = 12
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := MWCBStatusMessage{
		Type:           data[0],
		StockLocate:    readUint16BE(data[1:3]),
		TrackingNumber: readUint16BE(data[3:5]),
		Timestamp:      readUint48BE(data[5:11]),
		BreachedLevel:  data[11],
	}
	return size, p.handler.OnMWCBStatus(msg)
}

func (p *Parser) parseIPOQuoting(data []byte) (int, error) {
	const size = 28
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := IPOQuotingMessage{
		Type:                data[0],
		StockLocate:         readUint16BE(data[1:3]),
		TrackingNumber:      readUint16BE(data[3:5]),
		Timestamp:           readUint48BE(data[5:11]),
		IPOReleaseTime:      readUint32BE(data[19:23]),
		IPOReleaseQualifier: data[23],
		IPOPrice:            readUint32BE(data[24:28]),
	}
	copy(msg.Stock[:], data[11:19])
	return size, p.handler.OnIPOQuoting(msg)
}

// parseAuctionCollar decodes the "J" message: reference price plus upper
// and lower auction collar thresholds ahead of an auction.
func (p *Parser) parseAuctionCollar(data []byte) (int, error) {
	const size = 35
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := AuctionCollarMessage{
		Type:                        data[0],
		StockLocate:                 readUint16BE(data[1:3]),
		TrackingNumber:              readUint16BE(data[3:5]),
		Timestamp:                   readUint48BE(data[5:11]),
		AuctionCollarReferencePrice: readUint32BE(data[19:23]),
		UpperAuctionCollarPrice:     readUint32BE(data[23:27]),
		LowerAuctionCollarPrice:     readUint32BE(data[27:31]),
		AuctionCollarExtension:      readUint32BE(data[31:35]),
	}
	copy(msg.Stock[:], data[11:19])
	return size, p.handler.OnAuctionCollar(msg)
}

func (p *Parser) parseAddOrder(data []byte) (int, error) {
	const size = 36
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := AddOrderMessage{
		Type:                 data[0],
		StockLocate:          readUint16BE(data[1:3]),
		TrackingNumber:       readUint16BE(data[3:5]),
		Timestamp:            readUint48BE(data[5:11]),
		OrderReferenceNumber: readUint64BE(data[11:19]),
		BuySellIndicator:     data[19],
		Shares:               readUint32BE(data[20:24]),
		Price:                readUint32BE(data[32:36]),
	}
	copy(msg.Stock[:], data[24:32])
	return size, p.handler.OnAddOrder(msg)
}

func (p *Parser) parseAddOrderMPID(data []byte) (int, error) {
	const size = 40
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := AddOrderMPIDMessage{
		Type:                 data[0],
		StockLocate:          readUint16BE(data[1:3]),
		TrackingNumber:       readUint16BE(data[3:5]),
		Timestamp:            readUint48BE(data[5:11]),
		OrderReferenceNumber: readUint64BE(data[11:19]),
		BuySellIndicator:     data[19],
		Shares:               readUint32BE(data[20:24]),
		Price:                readUint32BE(data[32:36]),
	}
	copy(msg.Stock[:], data[24:32])
	copy(msg.Attribution[:], data[36:40])
	return size, p.handler.OnAddOrderMPID(msg)
}

func (p *Parser) parseOrderExecuted(data []byte) (int, error) {
	const size = 31
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := OrderExecutedMessage{
		Type:                 data[0],
		StockLocate:          readUint16BE(data[1:3]),
		TrackingNumber:       readUint16BE(data[3:5]),
		Timestamp:            readUint48BE(data[5:11]),
		OrderReferenceNumber: readUint64BE(data[11:19]),
		ExecutedShares:       readUint32BE(data[19:23]),
		MatchNumber:          readUint64BE(data[23:31]),
	}
	return size, p.handler.OnOrderExecuted(msg)
}

func (p *Parser) parseOrderExecutedWithPrice(data []byte) (int, error) {
	const size = 36
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := OrderExecutedWithPriceMessage{
		Type:                 data[0],
		StockLocate:          readUint16BE(data[1:3]),
		TrackingNumber:       readUint16BE(data[3:5]),
		Timestamp:            readUint48BE(data[5:11]),
		OrderReferenceNumber: readUint64BE(data[11:19]),
		ExecutedShares:       readUint32BE(data[19:23]),
		MatchNumber:          readUint64BE(data[23:31]),
		Printable:            data[31],
		ExecutionPrice:       readUint32BE(data[32:36]),
	}
	return size, p.handler.OnOrderExecutedWithPrice(msg)
}

func (p *Parser) parseOrderCancel(data []byte) (int, error) {
	const size = 23
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := OrderCancelMessage{
		Type:                 data[0],
		StockLocate:          readUint16BE(data[1:3]),
		TrackingNumber:       readUint16BE(data[3:5]),
		Timestamp:            readUint48BE(data[5:11]),
		OrderReferenceNumber: readUint64BE(data[11:19]),
		CanceledShares:       readUint32BE(data[19:23]),
	}
	return size, p.handler.OnOrderCancel(msg)
}

func (p *Parser) parseOrderDelete(data []byte) (int, error) {
	const size = 19
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := OrderDeleteMessage{
		Type:                 data[0],
		StockLocate:          readUint16BE(data[1:3]),
		TrackingNumber:       readUint16BE(data[3:5]),
		Timestamp:            readUint48BE(data[5:11]),
		OrderReferenceNumber: readUint64BE(data[11:19]),
	}
	return size, p.handler.OnOrderDelete(msg)
}

func (p *Parser) parseOrderReplace(data []byte) (int, error) {
	const size = 35
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := OrderReplaceMessage{
		Type:                         data[0],
		StockLocate:                  readUint16BE(data[1:3]),
		TrackingNumber:               readUint16BE(data[3:5]),
		Timestamp:                    readUint48BE(data[5:11]),
		OriginalOrderReferenceNumber: readUint64BE(data[11:19]),
		NewOrderReferenceNumber:      readUint64BE(data[19:27]),
		Shares:                       readUint32BE(data[27:31]),
		Price:                        readUint32BE(data[31:35]),
	}
	return size, p.handler.OnOrderReplace(msg)
}

func (p *Parser) parseTrade(data []byte) (int, error) {
	const size = 44
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := TradeMessage{
		Type:                 data[0],
		StockLocate:          readUint16BE(data[1:3]),
		TrackingNumber:       readUint16BE(data[3:5]),
		Timestamp:            readUint48BE(data[5:11]),
		OrderReferenceNumber: readUint64BE(data[11:19]),
		BuySellIndicator:     data[19],
		Shares:               readUint32BE(data[20:24]),
		Price:                readUint32BE(data[32:36]),
		MatchNumber:          readUint64BE(data[36:44]),
	}
	copy(msg.Stock[:], data[24:32])
	return size, p.handler.OnTrade(msg)
}

func (p *Parser) parseCrossTrade(data []byte) (int, error) {
	const size = 40
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := CrossTradeMessage{
		Type:           data[0],
		StockLocate:    readUint16BE(data[1:3]),
		TrackingNumber: readUint16BE(data[3:5]),
		Timestamp:      readUint48BE(data[5:11]),
		Shares:         readUint64BE(data[11:19]),
		CrossPrice:     readUint32BE(data[27:31]),
		MatchNumber:    readUint64BE(data[31:39]),
		CrossType:      data[39],
	}
	copy(msg.Stock[:], data[19:27])
	return size, p.handler.OnCrossTrade(msg)
}

func (p *Parser) parseBrokenTrade(data []byte) (int, error) {
	const size = 19
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := BrokenTradeMessage{
		Type:           data[0],
		StockLocate:    readUint16BE(data[1:3]),
		TrackingNumber: readUint16BE(data[3:5]),
		Timestamp:      readUint48BE(data[5:11]),
		MatchNumber:    readUint64BE(data[11:19]),
	}
	return size, p.handler.OnBrokenTrade(msg)
}

func (p *Parser) parseNOII(data []byte) (int, error) {
	const size = 50
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := NOIIMessage{
		Type:                    data[0],
		StockLocate:             readUint16BE(data[1:3]),
		TrackingNumber:          readUint16BE(data[3:5]),
		Timestamp:               readUint48BE(data[5:11]),
		PairedShares:            readUint64BE(data[11:19]),
		ImbalanceShares:         readUint64BE(data[19:27]),
		ImbalanceDirection:      data[27],
		FarPrice:                readUint32BE(data[36:40]),
		NearPrice:               readUint32BE(data[40:44]),
		CurrentRefPrice:         readUint32BE(data[44:48]),
		CrossType:               data[48],
		PriceVariationIndicator: data[49],
	}
	copy(msg.Stock[:], data[28:36])
	return size, p.handler.OnNOII(msg)
}

func (p *Parser) parseRPII(data []byte) (int, error) {
	const size = 20
	if len(data) < size {
		return 0, ErrInsufficientData
	}
	msg := RPIIMessage{
		Type:           data[0],
		StockLocate:    readUint16BE(data[1:3]),
		TrackingNumber: readUint16BE(data[3:5]),
		Timestamp:      readUint48BE(data[5:11]),
		InterestFlag:   data[19],
	}
	copy(msg.Stock[:], data[11:19])
	return size, p.handler.OnRPII(msg)
}

// Decoder pulls one length-prefixed ITCH frame at a time from a
// bytestream.ByteStream and dispatches it through a Parser. Unlike
// Parser.Parse (which operates on an in-memory frame), Decoder owns the
// stream-level framing: a 2-byte big-endian length prefix followed by
// that many bytes of payload.
type Decoder struct {
	stream *bytestream.ByteStream
	parser *Parser
}

// NewDecoder creates a Decoder reading frames from stream and dispatching
// them to handler.
func NewDecoder(stream *bytestream.ByteStream, handler Handler) *Decoder {
	return &Decoder{stream: stream, parser: NewParser(handler)}
}

// Next reads and dispatches exactly one frame. It returns io.EOF when the
// stream ends cleanly at a frame boundary (the normal end of a daily
// feed, independent of the S/'C' system event, which a Handler should
// also act on).
func (d *Decoder) Next() error {
	lenBuf, err := d.stream.ReadExact(2)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return &DecodeError{
			Offset:        d.stream.Offset(),
			LastReadSizes: d.stream.LastReadSizes(),
			Err:           fmt.Errorf("reading length prefix: %w", err),
		}
	}

	msgLen := binary.BigEndian.Uint16(lenBuf)
	if msgLen == 0 {
		return &DecodeError{
			Offset:        d.stream.Offset(),
			LastReadSizes: d.stream.LastReadSizes(),
			Err:           errors.New("zero-length frame"),
		}
	}

	payload, err := d.stream.ReadExact(int(msgLen))
	if err != nil {
		return &DecodeError{
			Offset:        d.stream.Offset(),
			LastReadSizes: d.stream.LastReadSizes(),
			Err:           fmt.Errorf("reading frame payload (len=%d): %w", msgLen, err),
		}
	}

	kind := payload[0]
	if _, err := d.parser.Parse(payload); err != nil {
		return &DecodeError{
			Offset:        d.stream.Offset(),
			LastReadSizes: d.stream.LastReadSizes(),
			Kind:          kind,
			Err:           err,
		}
	}
	return nil
}

// Run decodes and dispatches every frame until the stream ends, returning
// the total number of payload bytes consumed (excluding length prefixes).
func (d *Decoder) Run() (int64, error) {
	var total int64
	for {
		before := d.stream.Offset()
		err := d.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
		total += d.stream.Offset() - before - 2
	}
}
