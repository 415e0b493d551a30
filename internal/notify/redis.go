package notify

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "library:"
	publishTimeout = 5 * time.Second
)

// Message is the envelope published on each channel.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisNotifier publishes events over Redis pub/sub for the push collaborator to fan out.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewRedisNotifier creates a Redis-backed notifier.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, logger: logger}
}

// Notify publishes in the background and returns immediately.
func (n *RedisNotifier) Notify(audience Audience, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("notification payload", zap.String("event", event), zap.Error(err))
		return
	}
	body, err := json.Marshal(Message{Event: event, Data: data, At: time.Now().Unix()})
	if err != nil {
		n.logger.Warn("notification envelope", zap.String("event", event), zap.Error(err))
		return
	}
	channel := audience.Channel()
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := n.client.Publish(ctx, channel, body).Err(); err != nil {
			n.logger.Warn("notification publish failed", zap.String("channel", channel), zap.String("event", event), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight publishes finish. Used on shutdown.
func (n *RedisNotifier) Wait() {
	n.wg.Wait()
}
