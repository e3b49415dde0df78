package mailer

import "context"

// Publisher enqueues a JSON-encodable job.
type Publisher interface {
	Publish(body interface{}) error
}

// QueueMailer hands messages to a queue instead of a provider; a consumer
// elsewhere performs the actual delivery.
type QueueMailer struct {
	publisher Publisher
}

// NewQueueMailer creates a QueueMailer publishing through p.
func NewQueueMailer(p Publisher) *QueueMailer {
	return &QueueMailer{publisher: p}
}

func (m *QueueMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return m.publisher.Publish(msg)
}
