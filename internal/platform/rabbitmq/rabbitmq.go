package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func New(ctx context.Context, url string) (*amqp.Connection, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	type dialResult struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		conn, err := amqp.Dial(url)
		done <- dialResult{conn: conn, err: err}
	}()

	select {
	case <-dialCtx.Done():
		return nil, fmt.Errorf("rabbitmq dial timeout: %w", dialCtx.Err())
	case result := <-done:
		if result.err != nil {
			return nil, fmt.Errorf("dial rabbitmq failed: %w", result.err)
		}
		return result.conn, nil
	}
}
