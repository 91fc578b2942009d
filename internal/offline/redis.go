package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "offline:"

// redisChange is the broadcast payload published on every write.
type redisChange struct {
	Key     string `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Removed bool   `json:"removed"`
	Origin  string `json:"origin"`
}

// RedisStore keeps backups in Redis and broadcasts changes over pub/sub so
// every process sharing the server sees writes made by the others.
type RedisStore struct {
	client     *redis.Client
	ownsClient bool
	prefix     string
	origin     string
	subs       *subscribers
	pubsub     *redis.PubSub
	logger     *slog.Logger
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewRedisStore connects to redisURL and starts listening for changes.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	s, err := newRedisStore(ctx, client, defaultRedisPrefix)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

// NewRedisStoreWithClient uses an existing client. Close leaves the client
// open.
func NewRedisStoreWithClient(ctx context.Context, client *redis.Client, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return newRedisStore(ctx, client, prefix)
}

func newRedisStore(ctx context.Context, client *redis.Client, prefix string) (*RedisStore, error) {
	s := &RedisStore{
		client: client,
		prefix: prefix,
		origin: uuid.NewString(),
		subs:   newSubscribers(),
		logger: slog.Default(),
	}
	s.pubsub = client.Subscribe(ctx, s.channel())
	// Wait for the subscription to be confirmed so no change published after
	// construction is missed.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", s.channel(), err)
	}
	s.wg.Add(1)
	go s.listen()
	return s, nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) channel() string {
	return s.prefix + "changes"
}

func (s *RedisStore) listen() {
	defer s.wg.Done()
	for msg := range s.pubsub.Channel() {
		var change redisChange
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			s.logger.Warn("offline: ignoring malformed change message", "channel", msg.Channel, "error", err)
			continue
		}
		if change.Origin == s.origin {
			continue
		}
		s.subs.notify(Change{
			Key:     change.Key,
			Value:   change.Value,
			Removed: change.Removed,
			Origin:  change.Origin,
		})
	}
}

func (s *RedisStore) publish(ctx context.Context, change redisChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get backup %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set backup %s: %w", key, err)
	}
	return s.publish(ctx, redisChange{Key: key, Value: value, Origin: s.origin})
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	removed, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("remove backup %s: %w", key, err)
	}
	if removed == 0 {
		return nil
	}
	return s.publish(ctx, redisChange{Key: key, Removed: true, Origin: s.origin})
}

func (s *RedisStore) Subscribe(key string, fn func(Change)) func() {
	return s.subs.add(key, fn)
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.pubsub.Close()
		s.wg.Wait()
		if s.ownsClient {
			if closeErr := s.client.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	})
	return err
}
