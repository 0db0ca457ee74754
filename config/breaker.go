package config

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Publisher is anything that can deliver a PubSubMessage and return the
// broker-assigned id.
type Publisher interface {
	Publish(ctx context.Context, msg PubSubMessage) (string, error)
}

// BreakerPublisher stops hammering the broker once it keeps failing. While the
// breaker is open Publish fails fast with gobreaker.ErrOpenState and the outbox
// row is simply rescheduled.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "pubsub-publisher",
		ConsecutiveFailures: uint32(intFromEnv("PUBLISH_BREAKER_FAILURES", 5)),
		OpenTimeout:         time.Duration(intFromEnv("PUBLISH_BREAKER_OPEN_SECONDS", 30)) * time.Second,
		HalfOpenRequests:    1,
	}
}

func NewBreakerPublisher(next Publisher, settings BreakerSettings, logger *logrus.Logger) *BreakerPublisher {
	failures := settings.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.WithFields(logrus.Fields{
				"field":   "BreakerPublisher",
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("publisher circuit breaker changed state")
		},
	})
	return &BreakerPublisher{next: next, breaker: cb}
}

func (p *BreakerPublisher) Publish(ctx context.Context, msg PubSubMessage) (string, error) {
	id, err := p.breaker.Execute(func() (interface{}, error) {
		return p.next.Publish(ctx, msg)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (p *BreakerPublisher) State() gobreaker.State {
	return p.breaker.State()
}
