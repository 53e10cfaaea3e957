// Package pubsub implements the broker on Google Cloud Pub/Sub. The
// topic plays the role of the exchange and the subscription plays the
// role of the named queue; the message body is the bare identifier.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/trendtube/ingest/internal/video"
)

// Config names the Pub/Sub resources the queue binds to.
type Config struct {
	ProjectID    string
	Topic        string
	Subscription string
	RoutingKey   string
}

// Queue publishes to a topic and consumes a subscription, adapting the
// callback-based Receive into the pull-style Dequeue/Ack/Nack contract.
type Queue struct {
	client     *pubsub.Client
	publisher  *pubsub.Publisher
	subscriber *pubsub.Subscriber
	routingKey string
	logger     *zap.Logger

	deliveries chan video.Delivery

	mu      sync.Mutex
	started bool
}

// receipt carries the ack decision back into the Receive callback.
type receipt struct {
	msg  *pubsub.Message
	done chan struct{}
}

func fullTopicName(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

func fullSubscriptionName(projectID, subID string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
}

// New creates a Pub/Sub client and handles to the configured topic and
// subscription. It authenticates via Application Default Credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Queue{
		client:     client,
		publisher:  client.Publisher(fullTopicName(cfg.ProjectID, cfg.Topic)),
		subscriber: client.Subscriber(fullSubscriptionName(cfg.ProjectID, cfg.Subscription)),
		routingKey: cfg.RoutingKey,
		logger:     logger,
		deliveries: make(chan video.Delivery),
	}, nil
}

// Publish sends the identifier to the topic and waits for the server ack,
// so broker-connectivity failures surface to the submission endpoint.
func (q *Queue) Publish(ctx context.Context, id video.ID) error {
	msg := &pubsub.Message{
		Data: []byte(id),
	}
	if q.routingKey != "" {
		msg.Attributes = map[string]string{"routing_key": q.routingKey}
	}
	result := q.publisher.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish video id: %w", err)
	}
	return nil
}

// Start begins pulling from the subscription. It blocks until the context
// finishes and must be running before Dequeue returns anything.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return errors.New("pubsub queue already started")
	}
	q.started = true
	q.mu.Unlock()

	err := q.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		attempt := 1
		if msg.DeliveryAttempt != nil && *msg.DeliveryAttempt > 0 {
			attempt = *msg.DeliveryAttempt
		}
		rc := &receipt{msg: msg, done: make(chan struct{})}
		d := video.Delivery{
			ID:      video.ID(msg.Data),
			Attempt: attempt,
			Receipt: rc,
		}
		select {
		case q.deliveries <- d:
			// Hold the callback open until the worker decides, so the
			// client's flow control reflects in-flight work.
			select {
			case <-rc.done:
			case <-ctx.Done():
				msg.Nack()
			}
		case <-ctx.Done():
			msg.Nack()
		}
	})
	if err != nil {
		return fmt.Errorf("receive from subscription: %w", err)
	}
	return nil
}

// Dequeue pops the next delivery, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (video.Delivery, error) {
	select {
	case <-ctx.Done():
		return video.Delivery{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case d := <-q.deliveries:
		return d, nil
	}
}

// Ack acknowledges the delivery with the broker.
func (q *Queue) Ack(_ context.Context, d video.Delivery) error {
	rc, err := q.receiptOf(d)
	if err != nil {
		return err
	}
	rc.msg.Ack()
	close(rc.done)
	return nil
}

// Nack returns the delivery to the broker for redelivery. Bounding
// redelivery is the subscription's job: configure a dead-letter topic and
// max delivery attempts on the subscription itself.
func (q *Queue) Nack(_ context.Context, d video.Delivery) error {
	rc, err := q.receiptOf(d)
	if err != nil {
		return err
	}
	rc.msg.Nack()
	close(rc.done)
	return nil
}

func (q *Queue) receiptOf(d video.Delivery) (*receipt, error) {
	rc, ok := d.Receipt.(*receipt)
	if !ok || rc == nil {
		return nil, errors.New("delivery does not carry a pubsub receipt")
	}
	return rc, nil
}

// Close releases the underlying client connection.
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
