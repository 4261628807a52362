package inventory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisNotifierPublishesChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, StockChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notifier := NewRedisNotifier(client, nil)
	notifier.BalanceChanged(ctx, []BalanceChange{{
		StoreID:    1,
		ProductID:  7,
		QtyPackets: 12,
		WeightKg:   46.45,
		Kind:       KindPurchaseReceipt,
	}})

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event StockEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.NotEmpty(t, event.EventID)
	require.Len(t, event.Changes, 1)
	require.Equal(t, int64(7), event.Changes[0].ProductID)
	require.Equal(t, KindPurchaseReceipt, event.Changes[0].Kind)
}

func TestRedisNotifierNilClientNoPanic(t *testing.T) {
	notifier := NewRedisNotifier(nil, nil)
	notifier.BalanceChanged(context.Background(), []BalanceChange{{StoreID: 1}})
}
