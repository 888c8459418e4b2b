package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultRetryInterval = 100 * time.Millisecond

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a cross-process per-address lock built on SET NX PX. The lease
// expires after ttl so a crashed holder cannot block an address forever.
type Locker struct {
	client        goredis.UniversalClient
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

var _ ports.AddressLocker = (*Locker)(nil)

func NewLocker(client goredis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	if prefix == "" {
		prefix = "swb"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{client: client, prefix: prefix, ttl: ttl, retryInterval: defaultRetryInterval}
}

func (l *Locker) Lock(ctx context.Context, address string) (func(), error) {
	key := l.prefix + ":lock:" + address
	token := uuid.NewString()

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", address, err)
		}
		if acquired {
			break
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock %s: %w", address, ctx.Err())
		case <-timer.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// A failed release is left to the lease expiry.
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}
