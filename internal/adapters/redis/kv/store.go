package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
	"github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

const (
	DefaultPrefix = "cercia:kv:"
	changesSuffix = "changes"
)

// Store is a Redis implementation of kv.Store. Values live under a key prefix and
// every write is announced on a pub/sub channel derived from that prefix.
type Store struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewStore(client *redis.Client, prefix string, log *zap.Logger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, prefix: prefix, log: log}
}

type notification struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed,omitempty"`
}

func (s *Store) channel() string { return s.prefix + changesSuffix }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, mapErr(err)
	}
	return raw, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	payload, err := jsonx.Marshal(notification{Key: key})
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.prefix+key, value, 0)
		p.Publish(ctx, s.channel(), payload)
		return nil
	})
	return mapErr(err)
}

func (s *Store) Remove(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return nil
	}
	payload, err := jsonx.Marshal(notification{Key: key, Removed: true})
	if err != nil {
		return err
	}
	return mapErr(s.client.Publish(ctx, s.channel(), payload).Err())
}

// Watch subscribes to the change channel. It returns once the subscription is
// confirmed, so writes made after Watch returns are always observed.
func (s *Store) Watch(ctx context.Context) (<-chan kv.Change, error) {
	ps := s.client.Subscribe(ctx, s.channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel(), mapErr(err))
	}

	out := make(chan kv.Change, 16)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var n notification
				if err := jsonx.Unmarshal([]byte(m.Payload), &n); err != nil {
					s.log.Warn("kv watch: bad payload", zap.String("payload", m.Payload), zap.Error(err))
					continue
				}
				select {
				case out <- kv.Change{Key: n.Key, Removed: n.Removed}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func mapErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return kv.ErrClosed
	}
	return err
}
