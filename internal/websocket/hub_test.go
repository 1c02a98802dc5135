package websocket

import (
	"fmt"
	"testing"
	"time"

	"commentengine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, userID string) *Client {
	c := NewClient(hub, nil, nil, userID, "user-"+userID, model.RoleUser)
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %q", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishReachesOnlySubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscriber := newTestClient(hub, "a")
	outsider := newTestClient(hub, "b")
	hub.Join(subscriber, PostTopic("p1"))

	hub.Publish(PostTopic("p1"), &Message{Type: EventCommentApproved})

	msg := receive(t, subscriber)
	assert.Equal(t, EventCommentApproved, msg.Type)
	assertNoMessage(t, outsider)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "a")
	hub.Join(client, PostTopic("p1"))
	require.True(t, hub.IsSubscribed(client, PostTopic("p1")))

	hub.Leave(client, PostTopic("p1"))
	assert.False(t, hub.IsSubscribed(client, PostTopic("p1")))

	hub.Publish(PostTopic("p1"), &Message{Type: EventCommentApproved})
	assertNoMessage(t, client)
}

func TestPublishOrderIsFIFO(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "a")
	hub.Join(client, PostTopic("p1"))

	const n = 50
	for i := 0; i < n; i++ {
		hub.Publish(PostTopic("p1"), &Message{
			Type:    EventCommentApproved,
			Payload: fmt.Sprintf("%d", i),
		})
	}

	for i := 0; i < n; i++ {
		msg := receive(t, client)
		assert.Equal(t, fmt.Sprintf("%d", i), msg.Payload)
	}
}

func TestPublishExceptSkipsSender(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	sender := newTestClient(hub, "a")
	other := newTestClient(hub, "b")
	hub.Join(sender, PostTopic("p1"))
	hub.Join(other, PostTopic("p1"))

	hub.PublishExcept(PostTopic("p1"), &Message{Type: EventTypingStart}, sender)

	msg := receive(t, other)
	assert.Equal(t, EventTypingStart, msg.Type)
	assertNoMessage(t, sender)
}

func TestUnregisterReleasesAllTopics(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "a")
	hub.Join(client, PostTopic("p1"))
	hub.Join(client, ModeratorTopic())
	require.Equal(t, 1, hub.SubscriberCount(PostTopic("p1")))

	hub.Unregister(client)

	assert.Zero(t, hub.SubscriberCount(PostTopic("p1")))
	assert.Zero(t, hub.SubscriberCount(ModeratorTopic()))

	// The send channel is closed so the write pump terminates.
	_, open := <-client.send
	assert.False(t, open)
}

func TestJoinAfterUnregisterIsIgnored(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "a")
	hub.Unregister(client)

	// A late join from a racing goroutine must not resurrect the client.
	hub.Join(client, PostTopic("p1"))
	assert.Zero(t, hub.SubscriberCount(PostTopic("p1")))
}

func TestSlowConsumerDoesNotBlockTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := newTestClient(hub, "slow")
	healthy := newTestClient(hub, "healthy")
	hub.Join(slow, PostTopic("p1"))
	hub.Join(healthy, PostTopic("p1"))

	// Fill the slow client's buffer to capacity so the next delivery to it
	// must be dropped.
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- &Message{Type: EventTypingStart}
	}

	hub.Publish(PostTopic("p1"), &Message{Type: EventCommentApproved})

	// The healthy client still gets its copy.
	msg := receive(t, healthy)
	assert.Equal(t, EventCommentApproved, msg.Type)
}
