package websocket

import (
	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/events"
)

// ClientSubscriber adapts a connected WebSocket client to the hub's
// Subscriber interface. Events are serialized once per subscriber and
// queued on the client's send buffer.
type ClientSubscriber struct {
	client *Client
}

// NewClientSubscriber wraps the client.
func NewClientSubscriber(client *Client) *ClientSubscriber {
	return &ClientSubscriber{client: client}
}

// ID reuses the client's connection id.
func (s *ClientSubscriber) ID() string {
	return s.client.ID()
}

// Send serializes the event and queues it on the client.
func (s *ClientSubscriber) Send(event events.Event) error {
	if s.client.isClosed() {
		return domain.ErrSubscriberClosed
	}

	data, err := event.ToJSON()
	if err != nil {
		return err
	}

	s.client.Send(data)
	return nil
}

// Close tears the client connection down.
func (s *ClientSubscriber) Close() error {
	s.client.Close()
	return nil
}

// Done is closed when the client disconnects.
func (s *ClientSubscriber) Done() <-chan struct{} {
	return s.client.done
}
