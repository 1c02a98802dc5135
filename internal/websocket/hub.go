package websocket

import (
	"log"
	"sync"
)

// Hub maintains topic subscriptions and fans events out to subscribers.
// Clients join and leave topics explicitly; disconnect releases every
// membership. Subscription state is guarded by one RWMutex; publishes flow
// through a single goroutine so delivery to each subscriber follows publish
// order (FIFO per publisher within one instance).
type Hub struct {
	// topics maps topic name to its subscribed clients
	topics map[string]map[*Client]bool

	// memberships maps a client back to its topics for O(1) disconnect cleanup
	memberships map[*Client]map[string]bool

	publish chan *publication

	mu sync.RWMutex
}

type publication struct {
	topic   string
	message *Message
	exclude *Client
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		topics:      make(map[string]map[*Client]bool),
		memberships: make(map[*Client]map[string]bool),
		publish:     make(chan *publication, 256),
	}
}

// Run starts the hub's fan-out loop
func (h *Hub) Run() {
	for pub := range h.publish {
		h.mu.RLock()
		for client := range h.topics[pub.topic] {
			if client == pub.exclude {
				continue
			}
			select {
			case client.send <- pub.message:
			default:
				// Slow consumer: drop the message rather than block
				// delivery to the rest of the topic.
				log.Printf("Send buffer full, dropping message for user %s on topic %s", client.UserID, pub.topic)
			}
		}
		h.mu.RUnlock()
	}
}

// Register makes a client known to the hub. Must be called before any Join.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.memberships[client] = make(map[string]bool)
}

// Unregister releases every topic membership and closes the client's send
// channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topics, ok := h.memberships[client]
	if !ok {
		return
	}
	for topic := range topics {
		h.removeFromTopic(client, topic)
	}
	delete(h.memberships, client)
	close(client.send)
}

// Join subscribes a client to a topic. Authorization happens in the
// dispatcher before this is called.
func (h *Hub) Join(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.memberships[client]; !ok {
		// Client already unregistered; ignore the late join.
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true
	h.memberships[client][topic] = true
}

// Leave unsubscribes a client from a topic. Leaving a topic the client never
// joined is a no-op.
func (h *Hub) Leave(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromTopic(client, topic)
	if m, ok := h.memberships[client]; ok {
		delete(m, topic)
	}
}

// removeFromTopic must be called with mu held.
func (h *Hub) removeFromTopic(client *Client, topic string) {
	if clients, ok := h.topics[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish fans a message out to every subscriber of a topic.
func (h *Hub) Publish(topic string, message *Message) {
	h.PublishExcept(topic, message, nil)
}

// PublishExcept fans a message out to a topic, skipping one client. Used for
// typing signals so the sender does not echo to itself.
func (h *Hub) PublishExcept(topic string, message *Message, exclude *Client) {
	select {
	case h.publish <- &publication{topic: topic, message: message, exclude: exclude}:
	default:
		log.Printf("Publish channel full, dropping message on topic %s", topic)
	}
}

// SubscriberCount returns the number of clients on a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// IsSubscribed reports whether a client is currently on a topic
func (h *Hub) IsSubscribed(client *Client, topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.memberships[client][topic]
}
