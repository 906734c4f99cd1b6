package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"venuetrader/internal/schema"
	"venuetrader/pkg/exception"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	orig := schema.NewEnvelope(schema.MsgOrderAddRequest, EncodeOrderAdd(nil, schema.OrderAdd{
		Account:  "FW077",
		Contract: schema.Contract{Exchange: schema.ExchangeCME, SecDesc: "NQU5", WhName: "NQU5"},
		Side:     schema.SideSell,
		Qty:      2,
		Price:    2345025,
		Prefix:   "D",
		Tag:      "START_SELL",
		ClientID: "c-1",
	}))

	decoded, err := DecodeEnvelope(EncodeEnvelope(nil, orig))
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)

	add, err := DecodeOrderAdd(decoded.Payload)
	require.NoError(t, err)
	assert.Equal(t, "FW077", add.Account)
	assert.Equal(t, schema.SideSell, add.Side)
	assert.Equal(t, schema.Price(2345025), add.Price)
	assert.Equal(t, "START_SELL", add.Tag)
}

func TestEnvelopeEmptyPayload(t *testing.T) {
	orig := schema.Envelope{Header: schema.Header{Type: schema.MsgHeartbeat, Version: schema.ProtocolVersion}}

	decoded, err := DecodeEnvelope(EncodeEnvelope(nil, orig))
	require.NoError(t, err)
	assert.Equal(t, schema.MsgHeartbeat, decoded.Type())
	assert.Empty(t, decoded.Payload)
}

func TestEnvelopeMissingHeader(t *testing.T) {
	_, err := DecodeEnvelope(appendBytes(nil, 2, []byte{1, 2, 3}))
	require.ErrorIs(t, err, exception.ErrCodecMissingHeader)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	payload := EncodeOrderCancel(nil, schema.OrderCancel{OrderNo: "42"})
	payload = protowire.AppendTag(payload, 99, protowire.Fixed64Type)
	payload = protowire.AppendFixed64(payload, 7)
	payload = appendString(payload, 100, "ignored")

	cancel, err := DecodeOrderCancel(payload)
	require.NoError(t, err)
	assert.Equal(t, "42", cancel.OrderNo)
}

func TestDecodeMalformed(t *testing.T) {
	// length-delimited field claiming more bytes than available
	payload := protowire.AppendTag(nil, 1, protowire.BytesType)
	payload = protowire.AppendVarint(payload, 50)
	payload = append(payload, 'x')

	_, err := DecodeOrderEvent(payload)
	require.ErrorIs(t, err, exception.ErrCodecMalformed)
}

func TestMarketUpdatesRoundTrip(t *testing.T) {
	orig := schema.MarketUpdates{Updates: []schema.MarketUpdate{
		{
			Contract: schema.Contract{Exchange: schema.ExchangeCME, SecDesc: "NQU5"},
			Trades: []schema.TradeUpdate{
				{Price: 2345000, Qty: 1},
				{Price: 2345100, Qty: 3},
				{Price: 2344975, Qty: 2},
			},
			Tob: schema.TobUpdate{BidPrice: 2344975, BidQty: 4, AskPrice: 2345000, AskQty: 6},
		},
		{
			Contract: schema.Contract{Exchange: schema.ExchangeCME, SecDesc: "ESU5"},
		},
	}}

	decoded, err := DecodeMarketUpdates(EncodeMarketUpdates(nil, orig))
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestActiveOrdersAndPositionsRoundTrip(t *testing.T) {
	contract := schema.Contract{Exchange: schema.ExchangeCME, SecDesc: "NQU5", WhName: "NQU5"}

	orders := schema.ActiveOrders{Orders: []schema.OrderEvent{
		{OrderNo: "A", Account: "FW077", Contract: contract, Side: schema.SideBuy, Qty: 1, Price: 100, Prefix: "w"},
		{OrderNo: "B", Account: "FW077", Contract: contract, Side: schema.SideSell, Qty: 0, Price: 101, Tag: "x"},
	}}
	gotOrders, err := DecodeActiveOrders(EncodeActiveOrders(nil, orders))
	require.NoError(t, err)
	assert.Equal(t, orders, gotOrders)

	positions := schema.Positions{Positions: []schema.Position{
		{Account: "FW077", Contract: contract, TotalPos: -3},
		{Account: "FW078", Contract: contract, TotalPos: 2},
	}}
	gotPositions, err := DecodePositions(EncodePositions(nil, positions))
	require.NoError(t, err)
	assert.Equal(t, positions, gotPositions)
}

func TestSessionPayloadsRoundTrip(t *testing.T) {
	login := schema.Login{User: "u", Password: "p", AccessToken: "t", ConnectionType: schema.ConnectionPosition}
	gotLogin, err := DecodeLogin(EncodeLogin(nil, login))
	require.NoError(t, err)
	assert.Equal(t, login, gotLogin)

	sheets := schema.Sheets{Sheets: []schema.Sheet{{
		Name:      "main",
		Contracts: []schema.Contract{{Exchange: schema.ExchangeCME, SecDesc: "NQU5"}},
	}}}
	gotSheets, err := DecodeSheets(EncodeSheets(nil, sheets))
	require.NoError(t, err)
	assert.Equal(t, sheets, gotSheets)

	fill := schema.FillNotice{
		OrderNo: "9", Account: "FW077", Side: schema.SideSell, Qty: 1, Price: 2345025,
		TransactTime: 1_756_000_000_123_456_789,
	}
	gotFill, err := DecodeFillNotice(EncodeFillNotice(nil, fill))
	require.NoError(t, err)
	assert.Equal(t, fill, gotFill)
}
