package feed

import (
	"math"
	"time"
)

// Channel subscribed for every requested market.
const OrderbookChannel = "orderbook"

// PingFrame is the fixed keep-alive payload the feed expects.
var PingFrame = []byte(`{"op":"ping"}`)

// SubscribeRequest is the outbound subscription message, one per market.
type SubscribeRequest struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
	Market  string `json:"market"`
}

// NewSubscribeRequest builds an orderbook subscription for a market.
func NewSubscribeRequest(market string) SubscribeRequest {
	return SubscribeRequest{Op: "subscribe", Channel: OrderbookChannel, Market: market}
}

// Message is the decoded form of an inbound frame.
type Message struct {
	Channel string        `json:"channel"`
	Market  string        `json:"market"`
	Type    string        `json:"type"`
	Data    OrderbookData `json:"data"`
}

// OrderbookData carries the orderbook payload. Time is fractional seconds
// since the epoch as reported by the feed; 0 means the feed did not report one.
type OrderbookData struct {
	Time     float64      `json:"time"`
	Checksum uint32       `json:"checksum"`
	Bids     [][2]float64 `json:"bids"`
	Asks     [][2]float64 `json:"asks"`
	Action   string       `json:"action"`
}

// HasTime reports whether the feed attached a reported time to this payload.
func (d OrderbookData) HasTime() bool {
	return d.Time != 0
}

// ReportedAt converts the fractional-seconds reported time to an absolute
// instant at microsecond resolution.
func (d OrderbookData) ReportedAt() time.Time {
	sec, frac := math.Modf(d.Time)
	micros := int64(math.Round(frac * 1e6))
	return time.Unix(int64(sec), micros*int64(time.Microsecond)).UTC()
}
