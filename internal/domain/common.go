package domain

// Action is the decision emitted by the signal analyzer for one evaluation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// OrderSide represents the side of an executed order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// ChannelClass routes a notification to one of the configured outbound channels.
type ChannelClass string

const (
	ChannelStatus ChannelClass = "status"
	ChannelTrade  ChannelClass = "trade"
	ChannelReport ChannelClass = "report"
	ChannelError  ChannelClass = "error"
)
