package triggers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"cloud.google.com/go/pubsub"
)

// DefaultTopic carries friend-removal and push jobs.
const DefaultTopic = "friend-removal"

// PubSub publishes jobs to a topic and, when a subscription is given,
// consumes them with a Handler.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
}

func NewPubSub(ctx context.Context, projectID, topic, subscription string) (*PubSub, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to start pubsub client: %w", err)
	}
	if topic == "" {
		topic = DefaultTopic
	}
	ps := &PubSub{client: client, topic: client.Topic(topic)}
	if subscription != "" {
		ps.sub = client.Subscription(subscription)
	}
	return ps, nil
}

func (p *PubSub) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": string(job.Type)},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.ID, err)
	}
	return nil
}

// Receive handles messages until ctx is done. Failed jobs are nacked and
// redelivered by Pub/Sub.
func (p *PubSub) Receive(ctx context.Context, h Handler) error {
	if p.sub == nil {
		return nil
	}
	return p.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		var job Job
		if err := json.Unmarshal(m.Data, &job); err != nil {
			log.Printf("PubSub: dropping malformed message %s: %v", m.ID, err)
			m.Ack()
			return
		}
		if err := h.Handle(ctx, job); err != nil {
			jobsTotal.WithLabelValues(string(job.Type), "failed").Inc()
			log.Printf("PubSub: job %s (%s) failed: %v", job.ID, job.Type, err)
			m.Nack()
			return
		}
		jobsTotal.WithLabelValues(string(job.Type), "ok").Inc()
		m.Ack()
	})
}

func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
