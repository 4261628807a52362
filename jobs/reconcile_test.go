package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

func TestDiffSumsCleanWhenEqual(t *testing.T) {
	key := inventory.BalanceKey{StoreID: 1, ProductID: 2}
	ledger := map[inventory.BalanceKey]Sums{key: {Qty: 10, Weight: 12.9032}}
	balances := map[inventory.BalanceKey]Sums{key: {Qty: 10, Weight: 12.9032}}
	require.Empty(t, diffSums(ledger, balances))
}

func TestDiffSumsToleratesStoragePrecisionNoise(t *testing.T) {
	key := inventory.BalanceKey{StoreID: 1, ProductID: 2}
	ledger := map[inventory.BalanceKey]Sums{key: {Qty: 10, Weight: 12.90325}}
	balances := map[inventory.BalanceKey]Sums{key: {Qty: 10, Weight: 12.9032}}
	require.Empty(t, diffSums(ledger, balances))
}

func TestDiffSumsFlagsDivergence(t *testing.T) {
	key := inventory.BalanceKey{StoreID: 1, ProductID: 2}
	ledger := map[inventory.BalanceKey]Sums{key: {Qty: 10, Weight: 100}}
	balances := map[inventory.BalanceKey]Sums{key: {Qty: 9, Weight: 100}}

	mismatches := diffSums(ledger, balances)
	require.Len(t, mismatches, 1)
	require.Equal(t, key, mismatches[0].Key)
	require.InDelta(t, 10, mismatches[0].LedgerQty, 1e-9)
	require.InDelta(t, 9, mismatches[0].BalanceQty, 1e-9)
}

func TestDiffSumsMissingSideCountsAsZero(t *testing.T) {
	keyA := inventory.BalanceKey{StoreID: 1, ProductID: 1}
	keyB := inventory.BalanceKey{StoreID: 1, ProductID: 2}
	ledger := map[inventory.BalanceKey]Sums{keyA: {Qty: 5}}
	balances := map[inventory.BalanceKey]Sums{keyB: {Qty: 5}}

	mismatches := diffSums(ledger, balances)
	require.Len(t, mismatches, 2)

	// zero ledger sum with no balance row is clean
	zeroed := map[inventory.BalanceKey]Sums{keyA: {}}
	require.Empty(t, diffSums(zeroed, map[inventory.BalanceKey]Sums{}))
}

type stubReader struct {
	stores   []int64
	ledger   map[int64]map[inventory.BalanceKey]Sums
	balances map[int64]map[inventory.BalanceKey]Sums
}

func (s stubReader) StoreIDs(context.Context) ([]int64, error) { return s.stores, nil }

func (s stubReader) LedgerSums(_ context.Context, storeID int64) (map[inventory.BalanceKey]Sums, error) {
	return s.ledger[storeID], nil
}

func (s stubReader) BalanceSums(_ context.Context, storeID int64) (map[inventory.BalanceKey]Sums, error) {
	return s.balances[storeID], nil
}

func TestReconcilerRunReportsIntegrityFailure(t *testing.T) {
	key := inventory.BalanceKey{StoreID: 2, ProductID: 1}
	reader := stubReader{
		stores: []int64{1, 2},
		ledger: map[int64]map[inventory.BalanceKey]Sums{
			2: {key: {Qty: 10, Weight: 10}},
		},
		balances: map[int64]map[inventory.BalanceKey]Sums{
			2: {key: {Qty: 7, Weight: 10}},
		},
	}

	err := NewReconciler(reader, nil).Run(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrIntegrity)
}

func TestReconcilerRunCleanStores(t *testing.T) {
	key := inventory.BalanceKey{StoreID: 1, ProductID: 1}
	reader := stubReader{
		stores:   []int64{1},
		ledger:   map[int64]map[inventory.BalanceKey]Sums{1: {key: {Qty: 3, Weight: 4}}},
		balances: map[int64]map[inventory.BalanceKey]Sums{1: {key: {Qty: 3, Weight: 4}}},
	}
	require.NoError(t, NewReconciler(reader, nil).Run(context.Background(), 0))
}
