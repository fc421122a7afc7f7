// Package ingest consumes decoded webhook events from the intake queue
// and republishes them as typed trigger events on the event bus.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/gramflow/gramflow/pkg/eventbus"
	"github.com/gramflow/gramflow/pkg/events"
	"github.com/gramflow/gramflow/pkg/models"
)

// DefaultQueue is the Redis list the webhook tier pushes decoded events
// onto.
const DefaultQueue = "gramflow:webhooks"

const popTimeout = 1 * time.Second

// payload is the envelope the webhook tier writes to the queue. Exactly
// one of Comment or DM is set, matching Kind.
type payload struct {
	Kind      models.TriggerKind   `json:"kind"`
	AccountID string               `json:"account_id"`
	Comment   *models.CommentEvent `json:"comment,omitempty"`
	DM        *models.DMEvent      `json:"dm,omitempty"`
}

// Consumer pops decoded webhook events from a Redis list and publishes
// typed trigger events. Malformed entries are logged and dropped; the
// queue must keep draining.
type Consumer struct {
	client    redis.UniversalClient
	publisher eventbus.EventPublisher
	queue     string
	logger    *slog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewConsumer creates a consumer reading from the given queue. An empty
// queue name selects DefaultQueue.
func NewConsumer(logger *slog.Logger, client redis.UniversalClient, publisher eventbus.EventPublisher, queue string) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}

	return &Consumer{
		client:    client,
		publisher: publisher,
		queue:     queue,
		stopCh:    make(chan struct{}),
		logger: logger.With(
			"module", "ingest",
			"queue", queue,
		),
	}
}

// Start begins consuming in a background goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.logger.InfoContext(ctx, "Starting intake consumer")

	c.wg.Add(1)

	go c.consume(ctx)

	return nil
}

// Stop halts the consumer and waits for the in-flight pop to finish.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Stopping intake consumer")

	close(c.stopCh)
	c.wg.Wait()

	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Intake consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping intake consumer")

			return
		default:
			err := c.processMessage(ctx)
			if err != nil {
				c.logger.ErrorContext(ctx, "Error processing intake message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, popTimeout, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	var decoded payload
	if err := json.Unmarshal([]byte(message), &decoded); err != nil {
		c.logger.WarnContext(ctx, "Dropping malformed intake message", "error", err)

		return nil
	}

	event, err := c.buildEvent(decoded)
	if err != nil {
		c.logger.WarnContext(ctx, "Dropping invalid intake message", "error", err, "kind", decoded.Kind)

		return nil
	}

	err = c.publisher.Publish(ctx, decoded.AccountID, event)
	if err != nil {
		return fmt.Errorf("failed to publish trigger event: %w", err)
	}

	return nil
}

func (c *Consumer) buildEvent(decoded payload) (eventbus.Event, error) {
	switch decoded.Kind {
	case models.TriggerKindComment:
		if decoded.Comment == nil || decoded.Comment.ID == "" {
			return nil, errors.New("comment payload missing or has no id")
		}

		event := events.TriggerCommentReceived{
			BaseEvent: events.NewBaseEvent(events.TriggerCommentReceivedEvent, ""),
			Comment:   *decoded.Comment,
		}
		event.AccountID = decoded.AccountID

		return event, nil
	case models.TriggerKindDM:
		if decoded.DM == nil || decoded.DM.ID == "" {
			return nil, errors.New("dm payload missing or has no id")
		}

		event := events.TriggerDMReceived{
			BaseEvent: events.NewBaseEvent(events.TriggerDMReceivedEvent, ""),
			DM:        *decoded.DM,
		}
		event.AccountID = decoded.AccountID

		return event, nil
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", decoded.Kind)
	}
}
