// Package channel implements the real-time event channel: topic-based
// fan-out of mission and drone state to connected observers.
//
// Delivery contract: at-most-once, best-effort, ordered per topic. Each
// subscriber owns a buffered mailbox; a full mailbox drops the message for
// that subscriber only. Nothing here is durable: an observer that connects
// after a publish never sees it.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/channel
package channel

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yajasvikhanna/Flytbase/internal/config"
	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
)

// Message is one delivery envelope handed to a subscriber's mailbox.
type Message struct {
	Event   domain.EventName `json:"event"`
	Topic   domain.Topic     `json:"topic,omitempty"`
	Payload interface{}      `json:"payload"`
}

// AuthorizeFunc decides whether an organization may subscribe to a topic.
// It returns an AppError (TOPIC_FORBIDDEN) on refusal.
type AuthorizeFunc func(ctx context.Context, organizationID string, topic domain.Topic) error

// Subscriber is one connected observer. A subscriber belongs to exactly one
// organization and may hold any number of topic subscriptions.
type Subscriber struct {
	id             string
	organizationID string
	mailbox        chan Message
}

// ID returns the connection identifier, used in logs.
func (s *Subscriber) ID() string { return s.id }

// OrganizationID returns the organization the subscriber authenticated as.
func (s *Subscriber) OrganizationID() string { return s.organizationID }

// Mailbox is the subscriber's delivery channel. It is closed when the
// subscriber disconnects.
func (s *Subscriber) Mailbox() <-chan Message { return s.mailbox }

// Hub routes published events to topic subscribers.
type Hub struct {
	mu        sync.Mutex
	topics    map[domain.Topic]map[*Subscriber]struct{}
	subs      map[*Subscriber]map[domain.Topic]struct{}
	authorize AuthorizeFunc
	buffer    int
	closed    bool
}

// NewHub creates a hub. authorize may be nil, which permits every subscribe
// (used by tests); production wiring always installs an organization check.
func NewHub(cfg config.ChannelConfig, authorize AuthorizeFunc) *Hub {
	buffer := cfg.SubscriberBuffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		topics:    make(map[domain.Topic]map[*Subscriber]struct{}),
		subs:      make(map[*Subscriber]map[domain.Topic]struct{}),
		authorize: authorize,
		buffer:    buffer,
	}
}

// Connect registers a new subscriber for the given organization.
func (h *Hub) Connect(organizationID string) *Subscriber {
	sub := &Subscriber{
		id:             uuid.NewString(),
		organizationID: organizationID,
		mailbox:        make(chan Message, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.mailbox)
		return sub
	}
	h.subs[sub] = make(map[domain.Topic]struct{})
	return sub
}

// Subscribe adds the subscriber to a topic after validating the topic shape
// and the subscriber's right to observe it.
func (h *Hub) Subscribe(ctx context.Context, sub *Subscriber, topic domain.Topic) error {
	kind, id, err := topic.Parse()
	if err != nil {
		return errors.BadRequest(errors.CodeTopicInvalid, "malformed topic").
			WithParams(map[string]interface{}{"topic": string(topic)})
	}
	if kind == domain.TopicOrg && id != sub.organizationID {
		return errors.Forbidden(errors.CodeTopicForbidden, "topic belongs to another organization").
			WithParams(map[string]interface{}{"topic": string(topic)})
	}
	if h.authorize != nil {
		if err := h.authorize(ctx, sub.organizationID, topic); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.Internal(errors.CodeChannelDeliveryFailed, "channel is shut down")
	}
	if _, ok := h.subs[sub]; !ok {
		return errors.Internal(errors.CodeChannelDeliveryFailed, "subscriber is disconnected")
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscriber]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	h.subs[sub][topic] = struct{}{}

	logger.Debug("subscriber joined topic",
		zap.String("subscriber_id", sub.id),
		zap.String("topic", string(topic)))
	return nil
}

// Unsubscribe removes the subscriber from a topic. Unknown topics are a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber, topic domain.Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub, topic)
}

func (h *Hub) removeLocked(sub *Subscriber, topic domain.Topic) {
	if members, ok := h.topics[topic]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics, ok := h.subs[sub]; ok {
		delete(topics, topic)
	}
}

// Disconnect removes the subscriber from every topic and closes its mailbox.
func (h *Hub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	topics, ok := h.subs[sub]
	if !ok {
		return
	}
	for topic := range topics {
		h.removeLocked(sub, topic)
	}
	delete(h.subs, sub)
	close(sub.mailbox)
}

// Publish delivers an event to every subscriber of the topic. Publishes are
// serialized under the hub lock, which is what makes delivery ordered per
// topic; each individual send is nonblocking so a slow consumer only loses
// its own messages.
func (h *Hub) Publish(topic domain.Topic, name domain.EventName, payload interface{}) {
	msg := Message{Event: name, Topic: topic, Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.topics[topic] {
		select {
		case sub.mailbox <- msg:
		default:
			logger.Warn("subscriber mailbox full, dropping event",
				zap.String("subscriber_id", sub.id),
				zap.String("topic", string(topic)),
				zap.String("event", string(name)))
		}
	}
}

// SendError delivers an error event to one subscriber only, never broadcast.
func (h *Hub) SendError(sub *Subscriber, message string) {
	msg := Message{Event: domain.EventError, Payload: domain.ErrorEvent{Message: message}}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if _, ok := h.subs[sub]; !ok {
		return
	}
	select {
	case sub.mailbox <- msg:
	default:
		logger.Warn("subscriber mailbox full, dropping error event",
			zap.String("subscriber_id", sub.id))
	}
}

// Send delivers an arbitrary message to one subscriber only; used for the
// initial snapshot after a mission topic subscribe.
func (h *Hub) Send(sub *Subscriber, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if _, ok := h.subs[sub]; !ok {
		return
	}
	select {
	case sub.mailbox <- msg:
	default:
		logger.Warn("subscriber mailbox full, dropping direct message",
			zap.String("subscriber_id", sub.id),
			zap.String("event", string(msg.Event)))
	}
}

// Shutdown disconnects every subscriber and rejects further publishes.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.mailbox)
	}
	h.subs = make(map[*Subscriber]map[domain.Topic]struct{})
	h.topics = make(map[domain.Topic]map[*Subscriber]struct{})
}

// SubscriberCount reports how many subscribers a topic currently has.
func (h *Hub) SubscriberCount(topic domain.Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}
