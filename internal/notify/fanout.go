// Package notify implements NotifyFanout: two push channels, per-user trade
// notifications and group price-threshold notifications (spec.md §4.5,
// §6). Per-user unicast fills are pushed over a registered websocket
// connection; group threshold alerts are published to a shared,
// server-write-only NATS subject via a watermill publisher — spec.md §5:
// "The group notification endpoint is shared by all listeners; only the
// server writes" maps directly onto a publish-only pub/sub subject.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/crossx-exchange/crossx/internal/domain"
)

// FillNotification is the unicast payload sent to one side of a trade
// (spec.md §6 "Fill-notification frame").
type FillNotification struct {
	NotificationID string     `json:"notificationId"`
	Notification   string     `json:"notification"`
	Trades         []FillLeg  `json:"trades"`
}

// FillLeg is one entry in a FillNotification's Trades slice.
type FillLeg struct {
	OrderID      uint64 `json:"orderId"`
	Type         string `json:"type"`
	OrderType    string `json:"orderType"`
	Size         int64  `json:"size"`
	Price        int64  `json:"price"`
	Counterparty string `json:"counterparty"`
	Timestamp    int64  `json:"timestamp"`
}

// ThresholdAlert is the group broadcast payload (spec.md §6 "Threshold-
// alert frame").
type ThresholdAlert struct {
	Type           string `json:"type"`
	Username       string `json:"username"`
	ThresholdPrice int64  `json:"thresholdPrice"`
	CurrentPrice   int64  `json:"currentPrice"`
	Message        string `json:"message"`
	TimestampMs    int64  `json:"timestamp"`
}

// Unicaster delivers a fill notification to exactly one user. Implemented
// by the websocket hub (internal/notify/unicast.go); a no-op or test
// double may be substituted for callers that do not run a real socket.
type Unicaster interface {
	SendFill(user string, n FillNotification)
}

// Broadcaster publishes a threshold alert to the shared group channel.
// Implemented by the NATS/watermill publisher (internal/notify/
// broadcast.go).
type Broadcaster interface {
	PublishThreshold(a ThresholdAlert)
}

// Fanout delivers both kinds of notification. It is called from inside
// onTrade (under matchingLock) and hands each notification straight to
// its transport: it keeps no queue of its own, and UnicastHub.SendFill
// writes to the websocket synchronously, so a slow client delays the
// caller while the lock is held.
type Fanout struct {
	unicast   Unicaster
	broadcast Broadcaster
	logger    *zap.Logger

	mu      sync.Mutex
	pending []func()
}

// New creates a Fanout over the given transports.
func New(unicast Unicaster, broadcast Broadcaster, logger *zap.Logger) *Fanout {
	return &Fanout{unicast: unicast, broadcast: broadcast, logger: logger}
}

// NotifyFill sends the two per-user fill notifications for one
// execution (spec.md §4.5 step 2): one for the bid owner, one for the ask
// owner, each naming the other as counterparty. bidKind/askKind are each
// leg's own order kind (a resting limit order can be matched by a market
// or stop-activated order on the other side, so the two legs do not
// necessarily share a kind).
func (f *Fanout) NotifyFill(bidOrderID, askOrderID uint64, bidOwner, askOwner string, bidKind, askKind domain.Kind, size, price int64, ts time.Time) {
	bidLeg := FillLeg{
		OrderID: bidOrderID, Type: domain.Bid.String(), OrderType: bidKind.String(),
		Size: size, Price: price, Counterparty: askOwner, Timestamp: ts.Unix(),
	}
	askLeg := FillLeg{
		OrderID: askOrderID, Type: domain.Ask.String(), OrderType: askKind.String(),
		Size: size, Price: price, Counterparty: bidOwner, Timestamp: ts.Unix(),
	}

	f.unicast.SendFill(bidOwner, FillNotification{
		NotificationID: ksuid.New().String(),
		Notification:   "closedTrades",
		Trades:          []FillLeg{bidLeg},
	})
	f.unicast.SendFill(askOwner, FillNotification{
		NotificationID: ksuid.New().String(),
		Notification:   "closedTrades",
		Trades:          []FillLeg{askLeg},
	})
}

// NotifyThresholds publishes one group alert per fired threshold (spec.md
// §4.5 step 3).
func (f *Fanout) NotifyThresholds(fired []ThresholdFire) {
	for _, t := range fired {
		f.broadcast.PublishThreshold(ThresholdAlert{
			Type:           "priceThreshold",
			Username:       t.User,
			ThresholdPrice: t.ThresholdPrice,
			CurrentPrice:   t.CurrentPrice,
			Message:        "price threshold reached",
			TimestampMs:    time.Now().UnixMilli(),
		})
	}
}

// ThresholdFire is the minimal data NotifyThresholds needs per fired
// threshold; kept separate from market.Threshold so this package does not
// need to import internal/market.
type ThresholdFire struct {
	User           string
	ThresholdPrice int64
	CurrentPrice   int64
}

// JSON encodes a frame in its wire shape; BroadcastPublisher uses
// ThresholdAlert.JSON for its message payload.
func (n FillNotification) JSON() ([]byte, error) { return json.Marshal(n) }
func (a ThresholdAlert) JSON() ([]byte, error)    { return json.Marshal(a) }
