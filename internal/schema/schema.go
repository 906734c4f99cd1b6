package schema

// ProtocolVersion is stamped on every outbound envelope header.
const ProtocolVersion = "v1.0.0"

// MsgType is the message-kind discriminator carried in the envelope header.
type MsgType int32

const (
	MsgUnknown MsgType = iota
	MsgLoginRequest
	MsgLoginResponse
	MsgHeartbeat
	MsgNinjaRequest
	MsgNinjaResponse
	MsgAccountsRequest
	MsgAccountsResponse
	MsgWorkingRulesRequest
	MsgWorkingRulesResponse
	MsgPriceFeedStatusRequest
	MsgPriceFeedStatusResponse
	MsgSheetsRequest
	MsgSheetsResponse
	MsgStartMarketDataRequest
	MsgStopMarketDataRequest
	MsgMarketUpdates
	MsgOrderAddRequest
	MsgOrderChangeRequest
	MsgOrderCancelRequest
	MsgOrderAddEvent
	MsgOrderChangeEvent
	MsgOrderCancelEvent
	MsgOrderAddFailure
	MsgOrderChangeFailure
	MsgOrderCancelFailure
	MsgCancelAllOrdersRequest
	MsgMassCancelEvent
	MsgFillNotice
	MsgActiveOrdersRequest
	MsgActiveOrdersResponse
	MsgPositionsRequest
	MsgPositionsResponse
	MsgError

	msgTypeEnd
)

var msgTypeNames = [...]string{
	MsgUnknown:                 "UNKNOWN",
	MsgLoginRequest:            "LOGIN_REQUEST",
	MsgLoginResponse:           "LOGIN_RESPONSE",
	MsgHeartbeat:               "HEARTBEAT",
	MsgNinjaRequest:            "NINJA_REQUEST",
	MsgNinjaResponse:           "NINJA_RESPONSE",
	MsgAccountsRequest:         "ACCOUNTS_REQUEST",
	MsgAccountsResponse:        "ACCOUNTS_RESPONSE",
	MsgWorkingRulesRequest:     "WORKING_RULES_REQUEST",
	MsgWorkingRulesResponse:    "WORKING_RULES_RESPONSE",
	MsgPriceFeedStatusRequest:  "PRICE_FEED_STATUS_REQUEST",
	MsgPriceFeedStatusResponse: "PRICE_FEED_STATUS_RESPONSE",
	MsgSheetsRequest:           "SHEETS_REQUEST",
	MsgSheetsResponse:          "SHEETS_RESPONSE",
	MsgStartMarketDataRequest:  "START_MARKET_DATA_REQUEST",
	MsgStopMarketDataRequest:   "STOP_MARKET_DATA_REQUEST",
	MsgMarketUpdates:           "MARKET_UPDATES",
	MsgOrderAddRequest:         "ORDER_ADD_REQUEST",
	MsgOrderChangeRequest:      "ORDER_CHANGE_REQUEST",
	MsgOrderCancelRequest:      "ORDER_CANCEL_REQUEST",
	MsgOrderAddEvent:           "ORDER_ADD_EVENT",
	MsgOrderChangeEvent:        "ORDER_CHANGE_EVENT",
	MsgOrderCancelEvent:        "ORDER_CANCEL_EVENT",
	MsgOrderAddFailure:         "ORDER_ADD_FAILURE",
	MsgOrderChangeFailure:      "ORDER_CHANGE_FAILURE",
	MsgOrderCancelFailure:      "ORDER_CANCEL_FAILURE",
	MsgCancelAllOrdersRequest:  "CANCEL_ALL_ORDERS_REQUEST",
	MsgMassCancelEvent:         "MASS_CANCEL_EVENT",
	MsgFillNotice:              "FILL_NOTICE",
	MsgActiveOrdersRequest:     "ACTIVE_ORDERS_REQUEST",
	MsgActiveOrdersResponse:    "ACTIVE_ORDERS_RESPONSE",
	MsgPositionsRequest:        "POSITIONS_REQUEST",
	MsgPositionsResponse:       "POSITIONS_RESPONSE",
	MsgError:                   "ERROR",
}

// Valid reports whether t is a known message kind.
func (t MsgType) Valid() bool {
	return t > MsgUnknown && t < msgTypeEnd
}

func (t MsgType) String() string {
	if t < 0 || t >= msgTypeEnd {
		return "UNKNOWN"
	}
	return msgTypeNames[t]
}

// Header is the common metadata attached to every envelope.
type Header struct {
	Type    MsgType
	Version string
}

// Envelope is the unit exchanged with the venue: a header plus the
// serialized payload selected by Header.Type.
type Envelope struct {
	Header  Header
	Payload []byte
}

// NewEnvelope builds an envelope with the current protocol version.
func NewEnvelope(t MsgType, payload []byte) Envelope {
	return Envelope{
		Header:  Header{Type: t, Version: ProtocolVersion},
		Payload: payload,
	}
}

// Type is a shortcut for e.Header.Type.
func (e Envelope) Type() MsgType {
	return e.Header.Type
}
