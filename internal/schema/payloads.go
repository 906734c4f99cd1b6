package schema

// Price is a scaled integer. The scale is the product's price divisor.
type Price int64

// Exchange identifies the venue-side exchange of a contract.
type Exchange int32

const (
	ExchangeUnknown Exchange = iota
	ExchangeCME
)

func (e Exchange) String() string {
	switch e {
	case ExchangeCME:
		return "CME"
	default:
		return "UNKNOWN"
	}
}

// Side describes order direction.
type Side int32

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// SideOf derives the order side from a signed quantity.
func SideOf(qty int64) Side {
	if qty < 0 {
		return SideSell
	}
	return SideBuy
}

// Signed applies the side to an absolute quantity: buys positive, sells negative.
func (s Side) Signed(qty int64) int64 {
	if s == SideSell {
		return -qty
	}
	return qty
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ConnectionType discriminates the login of a trading session from a position session.
type ConnectionType int32

const (
	ConnectionUnknown ConnectionType = iota
	ConnectionTrading
	ConnectionPosition
)

// Contract identifies an instrument on an exchange.
type Contract struct {
	Exchange Exchange
	SecDesc  string
	WhName   string
}

// Login is the payload for MsgLoginRequest.
type Login struct {
	User           string
	Password       string
	AccessToken    string
	ConnectionType ConnectionType
}

// LoginResponse is the payload for MsgLoginResponse.
type LoginResponse struct {
	Success bool
	Msg     string
}

// OrderAdd is the payload for MsgOrderAddRequest. Orders are always GTC.
type OrderAdd struct {
	Account  string
	Contract Contract
	Side     Side
	Qty      int64
	Price    Price
	Prefix   string
	Tag      string
	ClientID string
}

// OrderChange is the payload for MsgOrderChangeRequest.
type OrderChange struct {
	OrderNo string
	Qty     int64
	Price   Price
	Prefix  string
}

// OrderCancel is the payload for MsgOrderCancelRequest.
type OrderCancel struct {
	OrderNo string
}

// CancelAllOrders is the payload for MsgCancelAllOrdersRequest.
type CancelAllOrders struct {
	CancelGTCs bool
}

// GetActiveOrders is the payload for MsgActiveOrdersRequest.
type GetActiveOrders struct {
	ShowOnlyApiOrders bool
}

// OrderEvent describes an order as reported by the venue. It is the payload
// of add/change/cancel events and the element of active-order snapshots.
type OrderEvent struct {
	OrderNo  string
	Account  string
	Contract Contract
	Side     Side
	Qty      int64
	Price    Price
	Prefix   string
	Tag      string
	ClientID string
}

// ActiveOrders is the payload for MsgActiveOrdersResponse.
type ActiveOrders struct {
	Orders []OrderEvent
}

// OrderFailure is the payload for add/change/cancel failures.
type OrderFailure struct {
	OrderNo   string
	Contract  Contract
	Side      Side
	Qty       int64
	Price     Price
	Prefix    string
	ErrorCode int32
	Reason    string
	ClientID  string
}

// MassCancelEvent is the payload for MsgMassCancelEvent.
type MassCancelEvent struct {
	Canceled []OrderEvent
}

// FillNotice is the payload for MsgFillNotice.
type FillNotice struct {
	OrderNo      string
	Account      string
	Contract     Contract
	Side         Side
	Qty          int64
	Price        Price
	Prefix       string
	Tag          string
	TransactTime int64 // unix nanoseconds
	ClientID     string
}

// GetPositions is the payload for MsgPositionsRequest.
type GetPositions struct {
	Accounts    []string
	Filters     []Contract
	IncludeSpec bool
}

// Position is one entry of a positions snapshot.
type Position struct {
	Account  string
	Contract Contract
	TotalPos int64
}

// Positions is the payload for MsgPositionsResponse.
type Positions struct {
	Positions []Position
}

// StartMarketData is the payload for MsgStartMarketDataRequest.
type StartMarketData struct {
	Contracts           []Contract
	CadenceMillis       int64
	IncludeImplieds     bool
	IncludeTradeUpdates bool
}

// StopMarketData is the payload for MsgStopMarketDataRequest.
type StopMarketData struct {
	Contracts []Contract
}

// TradeUpdate is one trade print inside a market update.
type TradeUpdate struct {
	Price Price
	Qty   int64
}

// TobUpdate is the top of book inside a market update.
type TobUpdate struct {
	BidPrice Price
	BidQty   int64
	AskPrice Price
	AskQty   int64
}

// MarketUpdate carries the trades and top of book of one contract.
type MarketUpdate struct {
	Contract Contract
	Trades   []TradeUpdate
	Tob      TobUpdate
}

// MarketUpdates is the payload for MsgMarketUpdates.
type MarketUpdates struct {
	Updates []MarketUpdate
}

// Error is the payload for MsgError.
type Error struct {
	Code int32
	Msg  string
}

// NinjaInfo is the payload for MsgNinjaResponse.
type NinjaInfo struct {
	Name string
}

// Accounts is the payload for MsgAccountsResponse.
type Accounts struct {
	Accounts []string
}

// WorkingRule describes one venue-side working rule.
type WorkingRule struct {
	Prefix   string
	WorkType int32
}

// WorkingRules is the payload for MsgWorkingRulesResponse.
type WorkingRules struct {
	Rules []WorkingRule
}

// PriceFeedStatus is the payload for MsgPriceFeedStatusResponse.
type PriceFeedStatus struct {
	Status int32
}

// Sheet is a named list of contracts.
type Sheet struct {
	Name      string
	Contracts []Contract
}

// Sheets is the payload for MsgSheetsRequest and MsgSheetsResponse.
type Sheets struct {
	Sheets []Sheet
}
