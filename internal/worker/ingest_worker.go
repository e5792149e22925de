package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docchat/internal/job"
)

// IngestRunner indexes an uploaded file into the vector store.
type IngestRunner interface {
	Ingest(ctx context.Context, j job.Ingest) error
}

type IngestWorker struct {
	conn      *amqp.Connection
	runner    IngestRunner
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, runner IngestRunner, queueName string) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		runner:    runner,
		queueName: queueName,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open ingest worker channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare ingest queue failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume ingest queue failed: %w", err)
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

				var j job.Ingest
				if err := json.Unmarshal(d.Body, &j); err != nil {
					log.Printf("ingest worker: decode job failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}
				if err := w.runner.Ingest(workerCtx, j); err != nil {
					log.Printf("ingest worker: %v", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
