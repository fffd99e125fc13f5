package main

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/registry"
)

// sink is the relay's view of Pub/Sub.
type sink interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type topicSource interface {
	Ping(ctx context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// gcpSink keeps one publisher per topic for the life of the process.
type gcpSink struct {
	source   topicSource
	ordering bool

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func newGCPSink(source topicSource, ordering bool) *gcpSink {
	return &gcpSink{source: source, ordering: ordering, publishers: map[string]*gcppubsub.Publisher{}}
}

func (s *gcpSink) Ping(ctx context.Context) error {
	return s.source.Ping(ctx)
}

func (s *gcpSink) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.publishers[topic]; ok {
		return p
	}
	p := s.source.Publisher(topic)
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = s.ordering
	s.publishers[topic] = p
	return p
}

func (s *gcpSink) Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	p := s.publisher(topic)
	if p == nil {
		return "", registry.NewNonRetryableError(enums.OutboxDLQReasonNonRetryable, fmt.Errorf("no publisher for topic %s", topic))
	}
	id, err := p.Publish(ctx, msg).Get(ctx)
	if err != nil && msg.OrderingKey != "" {
		// A failed ordered publish pauses the key until resumed.
		p.ResumePublish(msg.OrderingKey)
	}
	return id, err
}

// Stop flushes and stops every cached publisher.
func (s *gcpSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, p := range s.publishers {
		p.Stop()
		delete(s.publishers, topic)
	}
}
