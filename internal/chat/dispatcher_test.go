package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, GroupTopic("org-1"))
	defer cleanup()

	dispatcher.Publish(Event{
		Topic:     GroupTopic("org-1"),
		Type:      EventChatMessage,
		Data:      json.RawMessage(`{"content":"hi"}`),
		Timestamp: time.Now().UTC(),
	})

	select {
	case received := <-stream:
		if received.Type != EventChatMessage {
			t.Fatalf("expected event type %s, got %s", EventChatMessage, received.Type)
		}
		if string(received.Data) != `{"content":"hi"}` {
			t.Fatalf("unexpected payload %s", received.Data)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event within deadline")
	}
}

func TestDispatcherIsolatesTopics(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupStream, cleanup := dispatcher.Subscribe(ctx, GroupTopic("org-1"))
	defer cleanup()

	directStream, directCleanup := dispatcher.Subscribe(ctx, DirectTopic("a_b"))
	defer directCleanup()

	dispatcher.Publish(Event{Topic: DirectTopic("a_b"), Type: EventChatMessage, Timestamp: time.Now().UTC()})

	select {
	case <-groupStream:
		t.Fatal("did not expect event for unrelated topic")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case event := <-directStream:
		if event.Topic != "direct:a_b" {
			t.Fatalf("expected direct:a_b, received %s", event.Topic)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event for subscribed topic")
	}
}

func TestDispatcherUnsubscribesWhenContextEnds(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx, GroupTopic("org-1"))
	if dispatcher.SubscriberCount(GroupTopic("org-1")) != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for dispatcher.SubscriberCount(GroupTopic("org-1")) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cleanup()
}

func TestDispatcherDropsForSlowSubscribers(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, GroupTopic("org-1"))
	defer cleanup()

	for index := 0; index < dispatcher.bufferSize*2; index++ {
		dispatcher.Publish(Event{Topic: GroupTopic("org-1"), Type: EventChatMessage})
	}
	if len(stream) != dispatcher.bufferSize {
		t.Fatalf("expected buffer to be full at %d, got %d", dispatcher.bufferSize, len(stream))
	}
}
