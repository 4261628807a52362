package inventory

import "context"

// BalanceListener is notified after a movement commits. Implementations must
// be fast and non-blocking; a slow transport should buffer internally. The
// core is transport-agnostic: Redis pub/sub, SSE and polling adapters all hang
// off this hook.
type BalanceListener interface {
	BalanceChanged(ctx context.Context, changes []BalanceChange)
}

// BalanceListenerFunc adapts a function to BalanceListener.
type BalanceListenerFunc func(ctx context.Context, changes []BalanceChange)

func (f BalanceListenerFunc) BalanceChanged(ctx context.Context, changes []BalanceChange) {
	f(ctx, changes)
}
