// Package amqp relays room-change notifications between splitroom instances
// over a RabbitMQ fanout exchange. Each instance publishes after every local
// commit and refreshes its own feeds when a peer's notification arrives.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"splitroom/internal/log"
	"splitroom/internal/store"
)

type Client struct {
	url          string
	exchangeName string
	instanceID   string
	logger       *log.Logger

	mu        sync.Mutex
	conn      *amqp091.Connection
	channel   *amqp091.Channel
	queueName string
}

func NewClient(url, exchangeName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		instanceID:   uuid.NewString(),
		logger:       logger.WithComponent(log.ComponentRelay),
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

// connect dials a fresh connection, declares the exchange and a new
// per-instance queue, and swaps out whatever connection came before.
// Also used to recover from broker outages: a dead channel never comes
// back on its own, so recovery is always a full re-dial.
func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	queueName, err := c.setup(channel)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	oldChannel, oldConn := c.channel, c.conn
	c.conn, c.channel, c.queueName = conn, channel, queueName
	c.mu.Unlock()

	if oldChannel != nil {
		oldChannel.Close()
	}
	if oldConn != nil {
		oldConn.Close()
	}
	return nil
}

func (c *Client) setup(channel *amqp091.Channel) (string, error) {
	// Fanout exchange so every instance sees every change.
	err := channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare exchange: %w", err)
	}

	// Per-instance queue: auto-deleted when the instance goes away,
	// exclusive so peers never steal each other's notifications.
	q, err := channel.QueueDeclare(
		"",    // server-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}

	err = channel.QueueBind(
		q.Name,         // queue name
		"",             // routing key (ignored by fanout)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("bind queue: %w", err)
	}

	return q.Name, nil
}

func (c *Client) currentChannel() (*amqp091.Channel, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, c.queueName
}

// InstanceID identifies this relay endpoint; used to drop echoes of our
// own notifications.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// RoomChanged implements store.Relay: it publishes a change notification
// after a local commit. Failures are logged and swallowed; the local write
// already succeeded and replication is best effort.
func (c *Client) RoomChanged(ctx context.Context, roomID string, feed store.Feed, revision uint64) {
	if err := c.publish(ctx, NewRoomChangeMessage(c.instanceID, roomID, feed, revision)); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish room change",
			log.FieldRoomID, roomID,
			log.FieldFeed, string(feed),
			log.FieldError, err)
	}
}

func (c *Client) publish(ctx context.Context, msg *RoomChangeMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	channel, _ := c.currentChannel()
	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key (fanout)
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.logger.InfoContext(ctx, "Published room change",
		log.FieldRoomID, msg.RoomID,
		log.FieldFeed, string(msg.Feed),
		log.FieldRevision, msg.Revision,
		log.FieldExchange, c.exchangeName)

	return nil
}

// Consume applies peers' change notifications to the ledger until the
// context is cancelled. Our own notifications are dropped by origin id.
func (c *Client) Consume(ctx context.Context, ledger *store.Ledger) error {
	channel, queueName := c.currentChannel()
	msgs, err := channel.Consume(
		queueName, // queue
		"",        // consumer
		true,      // auto-ack (notifications are idempotent refreshes)
		true,      // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming room changes", log.FieldQueue, queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping relay consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := RoomChangeMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to unmarshal room change", log.FieldError, err)
				continue
			}
			if msg.Origin == c.instanceID {
				continue
			}

			c.logger.InfoContext(ctx, "Applying remote room change",
				log.FieldRoomID, msg.RoomID,
				log.FieldFeed, string(msg.Feed),
				log.FieldRevision, msg.Revision)
			ledger.ApplyRemote(ctx, msg.RoomID, msg.Feed)
		}
	}
}

// ConsumeWithRetry keeps the consume loop alive across broker outages,
// backing off exponentially on connection-class errors. Each retry
// re-dials the broker before consuming again; the backoff restarts from
// one second once a reconnect succeeds.
func (c *Client) ConsumeWithRetry(ctx context.Context, ledger *store.Ledger) error {
	for attempt := 0; ; attempt++ {
		err := c.Consume(ctx, ledger)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		delay := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Relay consume failed, reconnecting",
			log.FieldError, err, "retry_in", delay.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.WarnContext(ctx, "Relay reconnect failed", log.FieldError, err)
			continue
		}
		attempt = -1
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	const maxDelay = 30 * time.Second
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Second
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

// isConnectionError reports whether an error looks like a broken broker
// connection worth a reconnect rather than a permanent failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	// Operations on a channel whose connection died fail with ErrClosed.
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
		"channel closed",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
