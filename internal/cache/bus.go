package cache

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const PolicyChannel = "licensehub:returned_fields:invalidate"

var ErrBusUnavailable = errors.New("invalidation bus not configured")

// Bus publishes invalidated cache keys on a redis channel. Delivery is at
// most once, so subscribers should still expire entries on their own.
type Bus struct {
	rdb     redis.UniversalClient
	channel string
	log     *zap.Logger
}

func NewBus(rdb redis.UniversalClient, channel string, log *zap.Logger) *Bus {
	if rdb == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{rdb: rdb, channel: channel, log: log.Named("cache.bus")}
}

// PolicyBus carries returned-fields policy invalidations. It is nil without
// redis.
type PolicyBus struct{ *Bus }

func NewPolicyBus(rdb redis.UniversalClient, log *zap.Logger) *PolicyBus {
	bus := NewBus(rdb, PolicyChannel, log)
	if bus == nil {
		return nil
	}
	return &PolicyBus{Bus: bus}
}

func (b *Bus) Publish(ctx context.Context, key string) error {
	if b == nil {
		return ErrBusUnavailable
	}
	return b.rdb.Publish(ctx, b.channel, key).Err()
}

// Subscribe calls fn with every key published after it returns. The
// returned func ends the subscription.
func (b *Bus) Subscribe(ctx context.Context, fn func(key string)) (func() error, error) {
	if b == nil {
		return nil, ErrBusUnavailable
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	// wait for the subscribe confirmation so no publish after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	messages := sub.Channel()
	go func() {
		for msg := range messages {
			key := strings.TrimSpace(msg.Payload)
			if key == "" {
				continue
			}
			fn(key)
		}
		b.log.Debug("invalidation subscription closed", zap.String("channel", b.channel))
	}()
	return sub.Close, nil
}
