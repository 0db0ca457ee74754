package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// ReleaseFunc releases a lock obtained by ObtainTransactionLock. Safe to call
// more than once.
type ReleaseFunc func()

// ObtainTransactionLock takes the cross-instance lock of a cash transaction.
// When redis is not configured the lock is skipped with a warning and a no-op
// release is returned. ErrorLockNotObtained means another worker holds it.
func ObtainTransactionLock(ctx context.Context, transactionId int, moduleName string, functionName string) (ReleaseFunc, error) {
	return obtainLock(ctx, config.GetRedisLock(), fmt.Sprintf("CashTransaction:%d", transactionId), config.TransactionLockTTL(), moduleName, functionName)
}

func obtainLock(ctx context.Context, locker *redislock.Client, lockKey string, ttl time.Duration, moduleName string, functionName string) (ReleaseFunc, error) {
	logger := config.GetLogger()
	if locker == nil {
		logger.WithFields(logrus.Fields{
			"field":  functionName,
			"module": moduleName,
			"key":    lockKey,
		}).Warn("redis lock not initialized; continuing without cross-instance lock")
		return func() {}, nil
	}

	// Retry a few times so a submitter doesn't fail on a lock about to be released.
	lock, err := locker.Obtain(ctx, lockKey, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock", lockKey, err)
		return nil, fmt.Errorf("%w: %s", ErrorLockNotObtained, lockKey)
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock", lockKey, err)
		return nil, err
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Release with a fresh context: ctx may already be cancelled.
		if rerr := lock.Release(context.Background()); rerr != nil && !errors.Is(rerr, redislock.ErrLockNotHeld) {
			config.LogError(logger, moduleName, functionName, "Error releasing lock", lockKey, rerr)
		}
	}, nil
}
