package mq

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Blob cleanup topology: tasks, a TTL retry queue that dead-letters back to
// tasks, and a terminal DLQ.
const (
	ExchangeTasks = "blob.cleanup.exchange"
	ExchangeRetry = "blob.cleanup.retry.exchange"
	ExchangeDLQ   = "blob.cleanup.dlq.exchange"

	QueueTasks = "blob.cleanup.queue"
	QueueRetry = "blob.cleanup.retry.queue"
	QueueDLQ   = "blob.cleanup.dlq.queue"

	RoutingTask  = "blob.cleanup"
	RoutingRetry = "blob.cleanup.retry"
	RoutingDLQ   = "blob.cleanup.dlq"
)

type Client struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	publishMu sync.Mutex
}

// Dial opens a connection and a channel on it.
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, Channel: ch}, nil
}

// DialPublisher dials and declares the topology, ready for publishing.
func DialPublisher(url string) (*Client, error) {
	client, err := Dial(url)
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Healthy reports whether the connection and channel are still open.
func (c *Client) Healthy() bool {
	return c != nil && !c.Conn.IsClosed() && !c.Channel.IsClosed()
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

type binding struct {
	exchange string
	queue    string
	key      string
	args     amqp.Table
}

func topology() []binding {
	return []binding{
		{exchange: ExchangeTasks, queue: QueueTasks, key: RoutingTask},
		{exchange: ExchangeRetry, queue: QueueRetry, key: RoutingRetry, args: amqp.Table{
			"x-dead-letter-exchange":    ExchangeTasks,
			"x-dead-letter-routing-key": RoutingTask,
		}},
		{exchange: ExchangeDLQ, queue: QueueDLQ, key: RoutingDLQ},
	}
}

// DeclareTopology declares the durable exchanges, queues and bindings. It is idempotent.
func (c *Client) DeclareTopology() error {
	for _, b := range topology() {
		if err := c.Channel.ExchangeDeclare(b.exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
		}
		if _, err := c.Channel.QueueDeclare(b.queue, true, false, false, false, b.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := c.Channel.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", b.queue, err)
		}
	}
	return nil
}

func (c *Client) PublishTask(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeTasks, RoutingTask, body, "")
}

func (c *Client) PublishRetry(ctx context.Context, body []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	expiration := strconv.FormatInt(delay.Milliseconds(), 10)
	return c.publish(ctx, ExchangeRetry, RoutingRetry, body, expiration)
}

func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeDLQ, RoutingDLQ, body, "")
}

func (c *Client) publish(ctx context.Context, exchange, key string, body []byte, expiration string) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	if expiration != "" {
		msg.Expiration = expiration
	}
	return c.Channel.PublishWithContext(
		ctx,
		exchange,
		key,
		false,
		false,
		msg,
	)
}
