package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

const (
	redisKeyPrefix    = "custodia:erasure:decision:"
	defaultLockTTL    = 30 * time.Second
	acquirePollPeriod = 50 * time.Millisecond
)

// releaseScript deletes the lock only when the stored token still belongs to
// this holder, so a lock that expired and was re-acquired by someone else is
// never released from under them.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is the distributed decision locker for multi-instance deployments.
type Redis struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed locker. The TTL bounds how long a crashed
// holder can wedge a request; it must comfortably exceed the longest decision
// (CAS plus side effects plus audit write).
func NewRedis(client *goredis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Acquire polls SET NX until the lock is taken or ctx is done.
func (l *Redis) Acquire(ctx context.Context, requestID id.RequestID) (func(), error) {
	key := redisKeyPrefix + requestID.String()
	token := uuid.NewString()

	ticker := time.NewTicker(acquirePollPeriod)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal,
				fmt.Sprintf("acquiring decision lock on request %s", requestID))
		}
		if ok {
			release := func() {
				// Best effort: the TTL reclaims the lock if this fails.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout,
				fmt.Sprintf("waiting for decision lock on request %s", requestID))
		case <-ticker.C:
		}
	}
}
