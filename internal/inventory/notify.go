package inventory

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StockChannel is the Redis pub/sub channel carrying balance change
// notifications for open entry forms.
const StockChannel = "papyrus:stock_changed"

// StockEvent is the pub/sub envelope. EventID lets consumers dedupe replayed
// deliveries.
type StockEvent struct {
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Changes    []BalanceChange `json:"changes"`
}

// RedisNotifier publishes committed balance changes to Redis pub/sub.
// Delivery is best effort; publish failures are logged and dropped so a Redis
// outage never blocks stock postings.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisNotifier constructs the notifier.
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger}
}

// BalanceChanged implements BalanceListener.
func (n *RedisNotifier) BalanceChanged(ctx context.Context, changes []BalanceChange) {
	if n == nil || n.client == nil || len(changes) == 0 {
		return
	}
	payload, err := json.Marshal(StockEvent{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Changes:    changes,
	})
	if err != nil {
		n.logger.Error("stock notify marshal failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := n.client.Publish(ctx, StockChannel, payload).Err(); err != nil {
		n.logger.Warn("stock notify publish failed", "error", err, "changes", len(changes))
	}
}
