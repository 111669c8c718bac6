package notifier

import "context"

// Notification is the payload handed to the platform's notification service.
// Delivery is fire-and-forget: a failed notify never rolls back the
// circulation, reservation, or fine change that produced it.
type Notification struct {
	UserID   string            `json:"user_id"`
	Category string            `json:"category"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Data     map[string]string `json:"data,omitempty"`
}

const CategoryLibrary = "library"

// Sink delivers notifications. Implemented elsewhere in the platform; the
// Kafka sink below publishes to the notification service's topic.
type Sink interface {
	Notify(ctx context.Context, n *Notification) error
}

// Directory resolves a studentID to its notification target. Identity
// management is external; the engine only needs the mapping.
type Directory interface {
	NotificationTarget(ctx context.Context, studentID string) (string, error)
}

// PassthroughDirectory is the default mapping: student ids double as
// notification user ids.
type PassthroughDirectory struct{}

func (PassthroughDirectory) NotificationTarget(_ context.Context, studentID string) (string, error) {
	return studentID, nil
}
