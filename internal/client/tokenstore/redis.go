package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/songbook/songbook-session/internal/common"
	"github.com/songbook/songbook-session/internal/logging"
)

const redisKeyPrefix = "songbook:session"

// redisNotice is the pub/sub payload published after every effective write.
type redisNotice struct {
	Origin  string `json:"origin"`
	Present bool   `json:"present"`
}

// RedisStore keeps the token under a Redis key shared by every instance
// pointing at the same server, and announces writes on a channel.
type RedisStore struct {
	rdb        *redis.Client
	ownsClient bool
	key        string
	channel    string
	origin     string
	log        logging.Logger
	subs       subscribers

	pubsub    *redis.PubSub
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// OpenRedis connects to addr and returns a store for key.
func OpenRedis(ctx context.Context, addr, key string, log logging.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	s, err := NewRedisStore(ctx, rdb, key, log)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

// NewRedisStore subscribes to the change channel of key before returning, so
// no notice published after construction is missed.
func NewRedisStore(ctx context.Context, rdb *redis.Client, key string, log logging.Logger) (*RedisStore, error) {
	s := &RedisStore{
		rdb:    rdb,
		key:    redisKeyPrefix + ":" + key,
		origin: newOrigin(),
		done:   make(chan struct{}),
	}
	s.channel = s.key + ":events"
	s.log = log.With("store", "redis", "origin", s.origin)

	ps := rdb.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}
	s.pubsub = ps

	go s.listen(ps.Channel())
	return s, nil
}

func (s *RedisStore) Origin() string { return s.origin }

func (s *RedisStore) Get(ctx context.Context) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrEmptyToken
	}
	prev, err := s.rdb.SetArgs(ctx, s.key, token, redis.SetArgs{Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	if errors.Is(err, redis.Nil) || prev != token {
		return s.publish(ctx, true)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	n, err := s.rdb.Del(ctx, s.key).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	if n > 0 {
		return s.publish(ctx, false)
	}
	return nil
}

func (s *RedisStore) publish(ctx context.Context, present bool) error {
	b, err := json.Marshal(redisNotice{Origin: s.origin, Present: present})
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, s.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel, err)
	}
	return nil
}

func (s *RedisStore) Subscribe(fn func(Change)) func() {
	return s.subs.add(fn)
}

func (s *RedisStore) listen(ch <-chan *redis.Message) {
	defer close(s.done)
	ctx := context.Background()

	for msg := range ch {
		var n redisNotice
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			s.log.Warn(ctx, "malformed token notice", "error", err)
			continue
		}
		if n.Origin == s.origin {
			continue
		}
		s.log.Debug(ctx, "foreign token change observed", "present", n.Present, "from", n.Origin)
		s.subs.notify(Change{Present: n.Present, Origin: n.Origin})
	}
}

// Close unsubscribes, waits for the listener to exit and closes the client
// if the store created it.
func (s *RedisStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pubsub.Close()
		<-s.done
		if s.ownsClient {
			if err := s.rdb.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}
