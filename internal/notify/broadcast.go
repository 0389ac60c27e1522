// Group broadcast publisher for threshold alerts, built over watermill's
// NATS pub/sub adapter. The subject is write-only from the server's
// perspective (spec.md §5: "The group notification endpoint is shared by
// all listeners; only the server writes"); any number of external
// subscribers (dashboards, other gateway instances) can fan the subject
// back out to their own connected clients without this process knowing
// about them.
package notify

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BroadcastPublisher publishes ThresholdAlert frames to a single NATS
// subject via watermill.
type BroadcastPublisher struct {
	publisher message.Publisher
	subject   string
	logger    *zap.Logger
}

// NewBroadcastPublisher dials natsURL and returns a publisher bound to
// subject. Closing is the caller's responsibility via Close.
func NewBroadcastPublisher(natsURL, subject string, logger *zap.Logger) (*BroadcastPublisher, error) {
	pub, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:       natsURL,
			Marshaler: wmnats.GobMarshaler{},
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	return &BroadcastPublisher{publisher: pub, subject: subject, logger: logger}, nil
}

// PublishThreshold implements Broadcaster.
func (p *BroadcastPublisher) PublishThreshold(a ThresholdAlert) {
	payload, err := a.JSON()
	if err != nil {
		p.logger.Error("failed to marshal threshold alert", zap.Error(err))
		return
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := p.publisher.Publish(p.subject, msg); err != nil {
		p.logger.Error("failed to publish threshold alert", zap.Error(err), zap.String("subject", p.subject))
	}
}

// Close releases the underlying NATS connection.
func (p *BroadcastPublisher) Close() error {
	return p.publisher.Close()
}
