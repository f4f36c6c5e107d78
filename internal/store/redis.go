package store

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "gh:"   // document keys
	redisEventPrefix = "ghev:" // pub/sub channels, one per path
	transformRetries = 16
)

// RedisStore persists the document tree in Redis: one JSON value per path
// key, MULTI/EXEC for multi-path batches and WATCH-based optimistic
// transactions for atomic transforms. Every mutation publishes a
// post-mutation event on the path's channel, which is what Subscribe taps.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Read(ctx context.Context, path string, dest interface{}) error {
	raw, err := s.client.Get(ctx, redisKeyPrefix+path).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *RedisStore) Write(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+path, raw, 0).Err(); err != nil {
		return err
	}
	s.publish(ctx, Event{Path: path, Value: raw})
	return nil
}

func (s *RedisStore) MultiWrite(ctx context.Context, writes map[string]interface{}) error {
	encoded := make(map[string]json.RawMessage, len(writes))
	for path, value := range writes {
		if value == nil {
			encoded[path] = nil
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		encoded[path] = raw
	}

	// MULTI/EXEC: either every SET/DEL in the batch lands or none does.
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for path, raw := range encoded {
			if raw == nil {
				pipe.Del(ctx, redisKeyPrefix+path)
			} else {
				pipe.Set(ctx, redisKeyPrefix+path, []byte(raw), 0)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for path, raw := range encoded {
		s.publish(ctx, Event{Path: path, Value: raw})
	}
	return nil
}

func (s *RedisStore) AtomicTransform(ctx context.Context, path string, fn TransformFunc) error {
	key := redisKeyPrefix + path
	var written json.RawMessage
	aborted := false

	txn := func(tx *redis.Tx) error {
		written = nil
		aborted = false

		var current json.RawMessage
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			current = raw
		}

		next, err := fn(current)
		if err != nil {
			if err == ErrAbortTransform {
				aborted = true
				return nil
			}
			return err
		}

		out, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, []byte(out), 0)
			return nil
		})
		if err == nil {
			written = out
		}
		return err
	}

	for i := 0; i < transformRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue // another writer got in first; re-read and retry
		}
		if err != nil {
			return err
		}
		if !aborted && written != nil {
			s.publish(ctx, Event{Path: path, Value: written})
		}
		return nil
	}
	return ErrConflictExhausted
}

func (s *RedisStore) ReadPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+prefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		out[strings.TrimPrefix(keys[i], redisKeyPrefix)] = json.RawMessage(str)
	}
	return out, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, prefix string) (<-chan Event, func()) {
	out := make(chan Event, 256)
	subCtx, stop := context.WithCancel(ctx)

	var once sync.Once
	cancel := func() {
		once.Do(stop)
	}

	go s.runSubscriber(subCtx, prefix, out)
	return out, cancel
}

// runSubscriber keeps a pattern subscription alive with exponential backoff,
// mirroring how the chat event subscriber recovers from dropped connections.
func (s *RedisStore) runSubscriber(ctx context.Context, prefix string, out chan<- Event) {
	defer close(out)
	pattern := redisEventPrefix + prefix + "*"
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := s.client.PSubscribe(ctx, pattern)
			defer pubsub.Close()

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("store subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}
				backoff = time.Second

				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Printf("store subscriber: bad event payload: %v", err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}()

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *RedisStore) publish(ctx context.Context, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, redisEventPrefix+evt.Path, data).Err(); err != nil {
		log.Printf("store: publish event for %s failed: %v", evt.Path, err)
	}
}
