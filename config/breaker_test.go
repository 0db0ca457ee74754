package config

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPublisher struct {
	err   error
	calls int
}

func (p *scriptedPublisher) Publish(_ context.Context, msg PubSubMessage) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("msg-%d", msg.ID), nil
}

func TestBreakerPublisherOpensAfterConsecutiveFailures(t *testing.T) {
	next := &scriptedPublisher{err: errors.New("unavailable")}
	p := NewBreakerPublisher(next, BreakerSettings{
		Name:                "test",
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := p.Publish(context.Background(), PubSubMessage{ID: 1})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	_, err := p.Publish(context.Background(), PubSubMessage{ID: 1})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestBreakerPublisherPassesThroughIds(t *testing.T) {
	next := &scriptedPublisher{}
	p := NewBreakerPublisher(next, DefaultBreakerSettings(), nil)

	id, err := p.Publish(context.Background(), PubSubMessage{ID: 42})
	require.NoError(t, err)
	assert.Equal(t, "msg-42", id)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}
