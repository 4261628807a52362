package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

// memoryRepo implements RepositoryPort with transactional rollback semantics:
// a failing callback leaves the stored maps untouched.
type memoryRepo struct {
	mu       sync.Mutex
	balances map[BalanceKey]StockBalance
	ledger   []StockTransaction
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: map[BalanceKey]StockBalance{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{repo: m, balances: map[BalanceKey]StockBalance{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for key, bal := range tx.balances {
		m.balances[key] = bal
	}
	m.ledger = append(m.ledger, tx.ledger...)
	return nil
}

func (m *memoryRepo) GetBalance(_ context.Context, key BalanceKey) (StockBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal, ok := m.balances[key]; ok {
		return bal, nil
	}
	return StockBalance{StoreID: key.StoreID, ProductID: key.ProductID, Lot: key.Lot}, nil
}

func (m *memoryRepo) ListStoreStock(_ context.Context, storeID int64) ([]StockBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []StockBalance{}
	for _, bal := range m.balances {
		if bal.StoreID == storeID {
			out = append(out, bal)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListTransactions(_ context.Context, filter LedgerFilter) ([]StockTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []StockTransaction{}
	for _, t := range m.ledger {
		if filter.StoreID != 0 && t.StoreID != filter.StoreID {
			continue
		}
		if filter.ProductID != 0 && t.ProductID != filter.ProductID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type memoryTx struct {
	repo     *memoryRepo
	balances map[BalanceKey]StockBalance
	ledger   []StockTransaction
}

func (t *memoryTx) InsertTransaction(_ context.Context, tx StockTransaction) (int64, error) {
	tx.ID = int64(len(t.repo.ledger)+len(t.ledger)) + 1
	t.ledger = append(t.ledger, tx)
	return tx.ID, nil
}

func (t *memoryTx) GetBalanceForUpdate(_ context.Context, key BalanceKey) (StockBalance, error) {
	if bal, ok := t.balances[key]; ok {
		return bal, nil
	}
	if bal, ok := t.repo.balances[key]; ok {
		return bal, nil
	}
	return StockBalance{StoreID: key.StoreID, ProductID: key.ProductID, Lot: key.Lot}, ErrBalanceNotFound
}

func (t *memoryTx) UpsertBalance(_ context.Context, bal StockBalance) error {
	t.balances[bal.Key()] = bal
	return nil
}

type stubProducts struct {
	items map[int64]products.Product
}

func (s stubProducts) Get(_ context.Context, id int64) (products.Product, error) {
	if p, ok := s.items[id]; ok {
		return p, nil
	}
	return products.Product{}, &shared.ReferenceError{Entity: "product", ID: id}
}

func board(id int64) products.Product {
	return products.Product{ID: id, Code: "B1", Length: 10, Width: 20, Grams: 100, Type: products.TypeBoard, Packing: 100}
}

func newTestService(repo RepositoryPort, cfg ServiceConfig) *Service {
	return NewService(repo, stubProducts{items: map[int64]products.Product{
		1: board(1),
	}}, nil, nil, nil, cfg)
}

func TestApplyDeltaConservesQtyAndWeight(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	bal, err := svc.ApplyDelta(ctx, Delta{Kind: KindStoreIn, StoreID: 1, ProductID: 1, QtyDelta: 5, WeightDelta: 6.45})
	require.NoError(t, err)
	require.InDelta(t, 5, bal.QtyPackets, 1e-9)
	require.InDelta(t, 6.45, bal.WeightKg, 1e-9)

	bal, err = svc.ApplyDelta(ctx, Delta{Kind: KindSaleIssue, StoreID: 1, ProductID: 1, QtyDelta: -2, WeightDelta: -2.58})
	require.NoError(t, err)
	require.InDelta(t, 3, bal.QtyPackets, 1e-9)
	require.InDelta(t, 3.87, bal.WeightKg, 1e-9)

	entries, err := svc.ListLedger(ctx, LedgerFilter{StoreID: 1, ProductID: 1})
	require.NoError(t, err)
	var qtySum, weightSum float64
	for _, e := range entries {
		qtySum += e.QtyDelta
		weightSum += e.WeightDelta
	}
	require.InDelta(t, bal.QtyPackets, qtySum, 1e-9)
	require.InDelta(t, bal.WeightKg, weightSum, 1e-9)
}

func TestNegativeStockAllowedByDefault(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})

	bal, err := svc.ApplyDelta(context.Background(), Delta{Kind: KindSaleIssue, StoreID: 1, ProductID: 1, QtyDelta: -4, WeightDelta: -5})
	require.NoError(t, err)
	require.InDelta(t, -4, bal.QtyPackets, 1e-9)
	require.InDelta(t, -5, bal.WeightKg, 1e-9)
}

func TestNegativeStockRejectedInStrictMode(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{RejectNegativeStock: true})
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, Delta{Kind: KindStoreIn, StoreID: 1, ProductID: 1, QtyDelta: 3, WeightDelta: 3})
	require.NoError(t, err)

	_, err = svc.ApplyDelta(ctx, Delta{Kind: KindSaleIssue, StoreID: 1, ProductID: 1, QtyDelta: -4, WeightDelta: -4})
	require.ErrorIs(t, err, ErrNegativeStock)

	bal, err := svc.GetBalance(ctx, BalanceKey{StoreID: 1, ProductID: 1})
	require.NoError(t, err)
	require.InDelta(t, 3, bal.QtyPackets, 1e-9)
}

func TestBatchIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{RejectNegativeStock: true})
	ctx := context.Background()

	// Second delta drives a fresh key negative: nothing must land.
	_, err := svc.ApplyDeltas(ctx, []Delta{
		{Kind: KindStoreIn, StoreID: 1, ProductID: 1, QtyDelta: 10, WeightDelta: 10},
		{Kind: KindSaleIssue, StoreID: 2, ProductID: 1, QtyDelta: -1, WeightDelta: -1},
	})
	require.ErrorIs(t, err, ErrNegativeStock)

	bal, err := svc.GetBalance(ctx, BalanceKey{StoreID: 1, ProductID: 1})
	require.NoError(t, err)
	require.Zero(t, bal.QtyPackets)
	entries, err := svc.ListLedger(ctx, LedgerFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBatchValidatesBeforeWriting(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})

	_, err := svc.ApplyDeltas(context.Background(), []Delta{
		{Kind: KindStoreIn, StoreID: 1, ProductID: 1, QtyDelta: 1},
		{Kind: KindStoreIn, StoreID: 1, QtyDelta: 1},
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "product_id", verr.Field)
	require.Empty(t, repo.ledger)

	_, err = svc.ApplyDeltas(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestConcurrentDeltasSerialize(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyDelta(ctx, Delta{Kind: KindStoreIn, StoreID: 1, ProductID: 1, QtyDelta: 5, WeightDelta: 5})
			require.NoError(t, err)
			_, err = svc.ApplyDelta(ctx, Delta{Kind: KindSaleIssue, StoreID: 1, ProductID: 1, QtyDelta: -3, WeightDelta: -3})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	bal, err := svc.GetBalance(ctx, BalanceKey{StoreID: 1, ProductID: 1})
	require.NoError(t, err)
	require.InDelta(t, workers*2, bal.QtyPackets, 1e-6)
	require.InDelta(t, workers*2, bal.WeightKg, 1e-6)
	require.Len(t, repo.ledger, workers*2)
}

func TestPostReceiptDerivesWeightFromDimensions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})

	// board 10x20x100 / 15500 = 1.290322... per packet, 3 packets ≈ 3.8710
	bal, err := svc.PostReceipt(context.Background(), ReceiptInput{
		StoreID: 1, ProductID: 1, QtyPackets: 3, UnitRate: 120, RateBasis: RateBasisWeight,
	})
	require.NoError(t, err)
	require.InDelta(t, 3.8710, bal.WeightKg, 1e-4)
	require.InDelta(t, 3, bal.QtyPackets, 1e-9)
}

func TestPostReceiptHonoursManualWeight(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})

	bal, err := svc.PostReceipt(context.Background(), ReceiptInput{
		StoreID: 1, ProductID: 1, QtyPackets: 3, WeightKg: 4.2,
	})
	require.NoError(t, err)
	require.InDelta(t, 4.2, bal.WeightKg, 1e-9)
}

func TestPostIssueRecordsNegativeDeltas(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.PostStoreIn(ctx, StoreInInput{StoreID: 1, ProductID: 1, QtyPackets: 10, WeightKg: 12})
	require.NoError(t, err)
	bal, err := svc.PostIssue(ctx, IssueInput{StoreID: 1, ProductID: 1, QtyPackets: 4, WeightKg: 4.8})
	require.NoError(t, err)
	require.InDelta(t, 6, bal.QtyPackets, 1e-9)
	require.InDelta(t, 7.2, bal.WeightKg, 1e-9)

	entries, err := svc.ListLedger(ctx, LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, KindSaleIssue, entries[1].Kind)
	require.InDelta(t, -4, entries[1].QtyDelta, 1e-9)
}

func TestPostReceiptUnknownProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})

	_, err := svc.PostReceipt(context.Background(), ReceiptInput{StoreID: 1, ProductID: 99, QtyPackets: 1})
	var rerr *shared.ReferenceError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, "product", rerr.Entity)
	require.Empty(t, repo.ledger)
}

func TestListenersReceiveCommittedChanges(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})

	var mu sync.Mutex
	var got []BalanceChange
	svc.Subscribe(BalanceListenerFunc(func(_ context.Context, changes []BalanceChange) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, changes...)
	}))

	_, err := svc.ApplyDelta(context.Background(), Delta{Kind: KindStoreIn, StoreID: 1, ProductID: 1, QtyDelta: 2, WeightDelta: 2})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, KindStoreIn, got[0].Kind)
	require.InDelta(t, 2, got[0].QtyPackets, 1e-9)
}

func TestListenersNotCalledOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{RejectNegativeStock: true})

	called := false
	svc.Subscribe(BalanceListenerFunc(func(context.Context, []BalanceChange) { called = true }))

	_, err := svc.ApplyDelta(context.Background(), Delta{Kind: KindSaleIssue, StoreID: 1, ProductID: 1, QtyDelta: -1, WeightDelta: -1})
	require.Error(t, err)
	require.False(t, called)
	require.True(t, errors.Is(err, ErrNegativeStock))
}
