package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stream = "noema:telemetry"

// RedisSink publishes telemetry events onto a Redis stream so external
// consumers (dashboards, the transport layer) can tail them.
type RedisSink struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisSink connects to Redis and returns a stream-backed sink.
func NewRedisSink(redisURL string, logger *zap.Logger) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisSink{rdb: rdb, logger: logger}, nil
}

// Publish appends the event to the telemetry stream. Failures are logged
// and swallowed; telemetry carries no delivery guarantee.
func (s *RedisSink) Publish(ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 1024,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		s.logger.Debug("telemetry publish failed",
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}

// Tail listens for telemetry events on the stream.
// Returns a channel that emits events. Cancel the context to stop.
func (s *RedisSink) Tail(ctx context.Context) <-chan *Event {
	ch := make(chan *Event, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := s.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()

			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- &ev
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
