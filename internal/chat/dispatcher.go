package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	// EventChatMessage is emitted when a message is appended to a conversation.
	EventChatMessage = "chat-message"
	// EventHeartbeat keeps idle streams open through proxies.
	EventHeartbeat = "heartbeat"

	groupTopicPrefix  = "group:"
	directTopicPrefix = "direct:"
)

// Event is a live update for one topic.
type Event struct {
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// GroupTopic names the live stream of an organization's group chat.
func GroupTopic(organization string) string {
	return groupTopicPrefix + organization
}

// DirectTopic names the live stream of a direct conversation.
func DirectTopic(conversationKey string) string {
	return directTopicPrefix + conversationKey
}

// Dispatcher fans events out to in-process subscribers. Delivery is best effort:
// a subscriber whose buffer is full misses the event.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Event
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  32,
	}
}

// Subscribe registers for events on topic until ctx ends or the returned cleanup runs.
func (d *Dispatcher) Subscribe(ctx context.Context, topic string) (<-chan Event, func()) {
	if topic == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.register(topic, sub)
	var once sync.Once
	cleanup := func() {
		once.Do(func() { d.unregister(topic, sub.id) })
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers event to current subscribers of its topic.
func (d *Dispatcher) Publish(event Event) {
	if event.Topic == "" || event.Type == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.Topic]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

// Broadcast publishes locally. It satisfies Broadcaster for single instance deployments.
func (d *Dispatcher) Broadcast(_ context.Context, event Event) error {
	d.Publish(event)
	return nil
}

// SubscriberCount reports how many subscribers listen on topic.
func (d *Dispatcher) SubscriberCount(topic string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[topic])
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(topic string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[topic]; !ok {
		d.subscribers[topic] = make(map[int64]*subscriber)
	}
	d.subscribers[topic][sub.id] = sub
}

func (d *Dispatcher) unregister(topic string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[topic]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, topic)
		}
	}
	d.mu.Unlock()
}
