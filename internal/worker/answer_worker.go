package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"docchat/internal/job"
)

// AnswerRunner produces one assistant reply for a triggering message.
type AnswerRunner interface {
	Answer(ctx context.Context, j job.Answer) error
}

// InFlightSlot serializes answering jobs per chat.
type InFlightSlot interface {
	Acquire(ctx context.Context, chatID uint) (bool, error)
	Release(ctx context.Context, chatID uint) error
}

// AnswerWorker consumes answer jobs from the queue. Each delivery is
// attempted at most once: a failed job is dead-lettered, never requeued. A
// delivery for a chat whose slot is held is requeued so it runs after the
// current job finishes.
type AnswerWorker struct {
	conn      *amqp.Connection
	runner    AnswerRunner
	slot      InFlightSlot
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnswerWorker(conn *amqp.Connection, runner AnswerRunner, slot InFlightSlot, queueName string) *AnswerWorker {
	return &AnswerWorker{
		conn:      conn,
		runner:    runner,
		slot:      slot,
		queueName: queueName,
	}
}

func (w *AnswerWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open answer worker channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare answer queue failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume answer queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *AnswerWorker) handle(ctx context.Context, d amqp.Delivery) {
	var j job.Answer
	if err := json.Unmarshal(d.Body, &j); err != nil {
		log.Printf("answer worker: decode job failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	if w.slot != nil {
		held, err := w.slot.Acquire(ctx, j.ChatID)
		if err != nil {
			log.Printf("answer worker: acquire slot for chat %d failed: %v", j.ChatID, err)
			_ = d.Nack(false, false)
			return
		}
		if !held {
			// Another job for this chat is running; put the delivery back so
			// it is retried once the slot frees up.
			time.Sleep(200 * time.Millisecond)
			_ = d.Nack(false, true)
			return
		}
		defer func() {
			if err := w.slot.Release(context.Background(), j.ChatID); err != nil {
				log.Printf("answer worker: release slot for chat %d failed: %v", j.ChatID, err)
			}
		}()
	}

	if err := w.runner.Answer(ctx, j); err != nil {
		// At most one attempt per triggering message.
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (w *AnswerWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
