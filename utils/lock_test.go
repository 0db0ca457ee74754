package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *redislock.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redislock.New(client)
}

func TestObtainLockIsExclusive(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	release, err := obtainLock(ctx, locker, "CashTransaction:1", time.Minute, "utils", "TestObtainLockIsExclusive")
	require.NoError(t, err)

	_, err = obtainLock(ctx, locker, "CashTransaction:1", time.Minute, "utils", "TestObtainLockIsExclusive")
	assert.ErrorIs(t, err, ErrorLockNotObtained)

	other, err := obtainLock(ctx, locker, "CashTransaction:2", time.Minute, "utils", "TestObtainLockIsExclusive")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := obtainLock(ctx, locker, "CashTransaction:1", time.Minute, "utils", "TestObtainLockIsExclusive")
	require.NoError(t, err)
	again()
}

func TestObtainLockWithoutRedisIsNoop(t *testing.T) {
	release, err := obtainLock(context.Background(), nil, "CashTransaction:1", time.Minute, "utils", "TestObtainLockWithoutRedisIsNoop")
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}
