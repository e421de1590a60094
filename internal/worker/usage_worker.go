package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"gemmachat/internal/model"
)

type usageCounter interface {
	Increment(ctx context.Context, userID uint, at time.Time) error
}

// acknowledger is the slice of amqp.Delivery the worker needs to settle a
// message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// UsageWorker drains the usage queue and folds events into redis counters,
// keeping that work off the chat request path.
type UsageWorker struct {
	conn      *amqp.Connection
	counter   usageCounter
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewUsageWorker(conn *amqp.Connection, counter usageCounter, queueName string) *UsageWorker {
	return &UsageWorker{
		conn:      conn,
		counter:   counter,
		queueName: queueName,
	}
}

func (w *UsageWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
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
				w.handleDelivery(workerCtx, d.Body, d)
			}
		}
	}()

	return nil
}

// handleDelivery settles one message: undecodable payloads and counter
// failures are both dropped without requeue, since requeueing while redis
// is down would spin and usage counts are advisory.
func (w *UsageWorker) handleDelivery(ctx context.Context, body []byte, ack acknowledger) {
	var event model.UsageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("worker decode usage event failed: %v", err)
		_ = ack.Nack(false, false)
		return
	}

	if err := w.counter.Increment(ctx, event.UserID, event.At); err != nil {
		log.Printf("worker count usage event failed: %v", err)
		_ = ack.Nack(false, false)
		return
	}

	_ = ack.Ack(false)
}

func (w *UsageWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
