// Package amqp connects the engine to the ingestion pipeline: the pipeline
// publishes bank/email transactions, the engine consumes them and publishes
// a match result per transaction.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	txQueue      string
	resultQueue  string
}

func NewClient(url, exchangeName, txQueue, resultQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		txQueue:      txQueue,
		resultQueue:  resultQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.txQueue, c.resultQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key matches the queue name on a direct exchange.
		err = c.channel.QueueBind(queue, queue, c.exchangeName, false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// PublishMatchResult publishes the verdict for one processed transaction.
func (c *Client) PublishMatchResult(ctx context.Context, msg *MatchResultMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.resultQueue,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.InfoContext(ctx, "Published match result",
		"tx_id", msg.TransactionID,
		"outcome", msg.Outcome,
		"queue", c.resultQueue)

	return nil
}

// ConsumeTransactions delivers incoming transactions to the handler,
// processing up to concurrency messages at once. Each delivery is acked
// after its handler returns: a handler error nacks and requeues, while a
// malformed payload is rejected without requeue so one bad message cannot
// wedge the queue.
func (c *Client) ConsumeTransactions(ctx context.Context, concurrency int, handler func(context.Context, *TransactionMessage) error) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if err := c.channel.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.txQueue, // queue
		"",        // consumer
		false,     // auto-ack (we want manual ack)
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming transactions",
		"queue", c.txQueue,
		"concurrency", concurrency)

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping transaction consumption", "reason", ctx.Err())
			if err := g.Wait(); err != nil {
				slog.ErrorContext(ctx, "In-flight handler failed during shutdown", "error", err)
			}
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				g.Wait()
				return fmt.Errorf("message channel closed")
			}

			g.Go(func() error {
				msg, err := TransactionMessageFromJSON(delivery.Body)
				if err != nil {
					slog.ErrorContext(ctx, "Failed to unmarshal transaction", "error", err)
					delivery.Nack(false, false) // reject and don't requeue
					return nil
				}

				if err := handler(ctx, msg); err != nil {
					slog.ErrorContext(ctx, "Failed to handle transaction",
						"error", err,
						"tx_id", msg.ID)
					delivery.Nack(false, true) // reject and requeue
					return nil
				}

				delivery.Ack(false)
				return nil
			})
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
