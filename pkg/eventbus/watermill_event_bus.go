package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/gramflow/gramflow/pkg/events"
)

// WatermillEventBus implements EventBus on a watermill publisher and
// subscriber pair: gochannel in-process or kafka for multi-worker
// deployments.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

// NewWatermillEventBus wraps a watermill transport as an EventBus.
func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

// Handle registers the handler for an event type. Registration must
// happen before Subscribe.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

// Subscribe starts consuming the topic. Events without a registered
// handler are acked and dropped; decode and handler failures nack so the
// transport can redeliver.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := emptyEvent(eventType)
			if event == nil {
				msg.Nack()

				continue
			}

			if err := json.Unmarshal(msg.Payload, event); err != nil {
				msg.Nack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

// emptyEvent returns a zero value to decode the payload into, or nil for
// unknown event types.
func emptyEvent(eventType events.EventType) any {
	switch eventType {
	case events.TriggerCommentReceivedEvent:
		return &events.TriggerCommentReceived{}
	case events.TriggerDMReceivedEvent:
		return &events.TriggerDMReceived{}
	case events.WorkflowExecutionStartedEvent:
		return &events.WorkflowExecutionStarted{}
	case events.WorkflowExecutionCompletedEvent:
		return &events.WorkflowExecutionCompleted{}
	case events.WorkflowExecutionFailedEvent:
		return &events.WorkflowExecutionFailed{}
	default:
		return nil
	}
}
