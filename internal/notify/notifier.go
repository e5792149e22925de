package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	redisv9 "github.com/redis/go-redis/v9"

	"docchat/internal/model"
)

// MessageEvent is broadcast whenever a message is appended to a chat, by the
// send path or by the answering job. Subscribers receive it over Redis
// pub/sub, so delivery works across server replicas.
type MessageEvent struct {
	ChatID  uint          `json:"chat_id"`
	Message model.Message `json:"message"`
}

type Notifier struct {
	client *redisv9.Client
}

func NewNotifier(client *redisv9.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) PublishMessage(ctx context.Context, event MessageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal message event failed: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel(event.ChatID), payload).Err(); err != nil {
		return fmt.Errorf("publish message event failed: %w", err)
	}
	return nil
}

// Subscribe delivers message events for one chat until ctx is cancelled.
// Close the returned channel by cancelling ctx.
func (n *Notifier) Subscribe(ctx context.Context, chatID uint) (<-chan MessageEvent, func()) {
	pubsub := n.client.Subscribe(ctx, n.channel(chatID))
	events := make(chan MessageEvent, 16)

	go func() {
		defer close(events)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event MessageEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("notify: decode message event failed: %v", err)
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return events, cancel
}

func (n *Notifier) channel(chatID uint) string {
	return fmt.Sprintf("chat:events:%d", chatID)
}
