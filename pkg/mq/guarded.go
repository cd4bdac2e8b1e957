package mq

import (
	"context"

	"todo-api/pkg/circuitbreaker"
)

// GuardedPublisher wraps an EventPublisher in a circuit breaker so a dead
// broker costs requests nothing once the breaker has opened.
type GuardedPublisher struct {
	next    EventPublisher
	breaker *circuitbreaker.Breaker
}

func NewGuardedPublisher(next EventPublisher, breaker *circuitbreaker.Breaker) *GuardedPublisher {
	return &GuardedPublisher{next: next, breaker: breaker}
}

func (g *GuardedPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	return g.breaker.Execute(func() error {
		return g.next.Publish(ctx, routingKey, payload)
	})
}

func (g *GuardedPublisher) IsConnected() bool {
	return g.next.IsConnected()
}

func (g *GuardedPublisher) Close() {
	g.next.Close()
}
