package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishBackoff(t *testing.T) {
	initial := 5 * time.Second
	assert.Equal(t, 5*time.Second, publishBackoff(initial, 1))
	assert.Equal(t, 10*time.Second, publishBackoff(initial, 2))
	assert.Equal(t, 40*time.Second, publishBackoff(initial, 4))
	assert.Equal(t, maxPublishBackoff, publishBackoff(initial, 10))
	assert.Equal(t, maxPublishBackoff, publishBackoff(initial, 200))
}
