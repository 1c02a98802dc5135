package service

import (
	"context"
	"encoding/json"
	"log"

	"commentengine/internal/model"
	"commentengine/internal/util"
	"commentengine/internal/websocket"
)

// NotificationWorker consumes persisted notifications from RabbitMQ and
// pushes them to the recipient's private topic on the hub. Decoupling the
// push from the request path keeps publishers fast and lets deliveries
// survive a restart between persist and fanout.
type NotificationWorker struct {
	rabbit    *util.RabbitMQClient
	publisher FanoutPublisher
}

func NewNotificationWorker(rabbit *util.RabbitMQClient, publisher FanoutPublisher) *NotificationWorker {
	return &NotificationWorker{
		rabbit:    rabbit,
		publisher: publisher,
	}
}

// Start declares the queue topology and consumes until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) error {
	if err := w.rabbit.DeclareQueue(NotificationExchange, NotificationQueue, NotificationRoutingKey); err != nil {
		return err
	}

	deliveries, err := w.rabbit.Consume(NotificationQueue, "notification-worker")
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					log.Printf("Notification consumer channel closed")
					return
				}

				var n model.Notification
				if err := json.Unmarshal(delivery.Body, &n); err != nil {
					// Poison message, drop it. Requeueing would loop forever.
					log.Printf("Dropping malformed notification message: %v", err)
					delivery.Nack(false, false)
					continue
				}

				w.publisher.Publish(websocket.UserTopic(n.RecipientID), &websocket.Message{
					Type:    websocket.EventNotification,
					Payload: NotificationToPayload(&n),
				})
				delivery.Ack(false)
			}
		}
	}()

	return nil
}
