package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/campushub/library-circulation-service/pkg/broker"
)

const eventTypeNotification = "library.notification"

type notificationEvent struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	Payload   *Notification `json:"payload"`
	Timestamp time.Time     `json:"timestamp"`
}

// KafkaSink publishes notification events for the notification service to
// consume and deliver (push/SMS/email).
type KafkaSink struct {
	producer *broker.Producer
}

func NewKafkaSink(producer *broker.Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Notify(ctx context.Context, n *Notification) error {
	event := notificationEvent{
		EventID:   uuid.New().String(),
		EventType: eventTypeNotification,
		Payload:   n,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.producer.Publish(ctx, n.UserID, data)
}
