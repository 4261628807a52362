package production

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

// memRepo implements RepositoryPort with commit/rollback semantics across the
// run tables and the stock tables, so atomicity tests observe real behaviour.
type memRepo struct {
	mu        sync.Mutex
	seq       int64
	nextRunID int64
	runs      map[int64]ProductionRun
	materials map[int64][]MaterialOutLine
	items     map[int64][]ItemLine
	balances  map[inventory.BalanceKey]inventory.StockBalance
	ledger    []inventory.StockTransaction
}

func newMemRepo() *memRepo {
	return &memRepo{
		runs:      map[int64]ProductionRun{},
		materials: map[int64][]MaterialOutLine{},
		items:     map[int64][]ItemLine{},
		balances:  map[inventory.BalanceKey]inventory.StockBalance{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{
		repo:      m,
		runs:      map[int64]ProductionRun{},
		materials: map[int64][]MaterialOutLine{},
		items:     map[int64][]ItemLine{},
		deleted:   map[int64]bool{},
		voided:    map[int64]bool{},
		balances:  map[inventory.BalanceKey]inventory.StockBalance{},
	}
	if err := fn(ctx, tx); err != nil {
		m.seq -= tx.seqTaken
		return err
	}
	for id, run := range tx.runs {
		m.runs[id] = run
	}
	for id := range tx.deleted {
		delete(m.materials, id)
		delete(m.items, id)
	}
	for id, lines := range tx.materials {
		m.materials[id] = lines
	}
	for id, lines := range tx.items {
		m.items[id] = lines
	}
	for id := range tx.voided {
		run := m.runs[id]
		run.Status = StatusVoid
		m.runs[id] = run
	}
	for key, bal := range tx.balances {
		m.balances[key] = bal
	}
	m.ledger = append(m.ledger, tx.ledger...)
	return nil
}

func (m *memRepo) GetRun(_ context.Context, id int64) (RunDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return RunDetail{}, shared.ErrNotFound
	}
	return RunDetail{Run: run, Materials: m.materials[id], Items: m.items[id]}, nil
}

func (m *memRepo) ListRuns(_ context.Context, _, _ int) ([]ProductionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ProductionRun{}
	for _, run := range m.runs {
		out = append(out, run)
	}
	return out, nil
}

type memTx struct {
	repo      *memRepo
	seqTaken  int64
	runs      map[int64]ProductionRun
	materials map[int64][]MaterialOutLine
	items     map[int64][]ItemLine
	deleted   map[int64]bool
	voided    map[int64]bool
	balances  map[inventory.BalanceKey]inventory.StockBalance
	ledger    []inventory.StockTransaction
}

func (t *memTx) NextNumber(context.Context, string) (int64, error) {
	t.repo.seq++
	t.seqTaken++
	return t.repo.seq, nil
}

func (t *memTx) InsertRun(_ context.Context, run ProductionRun) (int64, error) {
	t.repo.nextRunID++
	run.ID = t.repo.nextRunID
	t.runs[run.ID] = run
	return run.ID, nil
}

func (t *memTx) UpdateRun(_ context.Context, run ProductionRun) error {
	t.runs[run.ID] = run
	return nil
}

func (t *memTx) MarkVoid(_ context.Context, runID int64) error {
	t.voided[runID] = true
	return nil
}

func (t *memTx) InsertMaterialLine(_ context.Context, line MaterialOutLine) error {
	t.materials[line.RunID] = append(t.materials[line.RunID], line)
	return nil
}

func (t *memTx) InsertItemLine(_ context.Context, line ItemLine) error {
	t.items[line.RunID] = append(t.items[line.RunID], line)
	return nil
}

func (t *memTx) DeleteLines(_ context.Context, runID int64) error {
	t.deleted[runID] = true
	return nil
}

func (t *memTx) Inventory() inventory.TxRepository { return &memInvTx{tx: t} }

type memInvTx struct {
	tx *memTx
}

func (m *memInvTx) InsertTransaction(_ context.Context, entry inventory.StockTransaction) (int64, error) {
	entry.ID = int64(len(m.tx.repo.ledger)+len(m.tx.ledger)) + 1
	m.tx.ledger = append(m.tx.ledger, entry)
	return entry.ID, nil
}

func (m *memInvTx) GetBalanceForUpdate(_ context.Context, key inventory.BalanceKey) (inventory.StockBalance, error) {
	if bal, ok := m.tx.balances[key]; ok {
		return bal, nil
	}
	if bal, ok := m.tx.repo.balances[key]; ok {
		return bal, nil
	}
	return inventory.StockBalance{StoreID: key.StoreID, ProductID: key.ProductID, Lot: key.Lot}, inventory.ErrBalanceNotFound
}

func (m *memInvTx) UpsertBalance(_ context.Context, bal inventory.StockBalance) error {
	m.tx.balances[bal.Key()] = bal
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

type stubStores struct {
	ids map[int64]bool
}

func (s stubStores) Exists(_ context.Context, id int64) error {
	if s.ids[id] {
		return nil
	}
	return &shared.ReferenceError{Entity: "store", ID: id}
}

func newFixture(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	catalog := stubProducts{items: map[int64]products.Product{
		1: {ID: 1, Code: "RAW", Length: 0, Width: 0, Grams: 0, Type: products.TypeReel},
		2: {ID: 2, Code: "FIN", Length: 10, Width: 20, Grams: 100, Type: products.TypeBoard},
	}}
	inv := inventory.NewService(nil, catalog, nil, nil, nil, inventory.ServiceConfig{})
	svc := NewService(repo, catalog, stubStores{ids: map[int64]bool{1: true, 2: true}}, inv, nil, 1)
	return svc, repo
}

func validInput() ExecuteInput {
	return ExecuteInput{
		Date:          time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		OutputStoreID: 2,
		Remarks:       "first run",
		Materials: []MaterialInput{
			{StoreID: 1, ProductID: 1, QtyPackets: 10, WeightKg: 250},
		},
		Items: []ItemInput{
			{ProductID: 2, QtyPackets: 100, Rate: 2, RateOn: inventory.RateBasisQuantity},
		},
	}
}

func TestExecutePostsRunAtomically(t *testing.T) {
	svc, repo := newFixture(t)
	ctx := context.Background()

	detail, err := svc.Execute(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, "PRD-000001", detail.Run.Number)
	require.Equal(t, StatusPosted, detail.Run.Status)
	require.InDelta(t, 200, detail.Items[0].Value, 1e-9) // 2 x 100 qty

	raw := repo.balances[inventory.BalanceKey{StoreID: 1, ProductID: 1}]
	require.InDelta(t, -10, raw.QtyPackets, 1e-9)
	require.InDelta(t, -250, raw.WeightKg, 1e-9)

	fin := repo.balances[inventory.BalanceKey{StoreID: 2, ProductID: 2}]
	require.InDelta(t, 100, fin.QtyPackets, 1e-9)
	// board 10x20x100/15500 per packet, 100 packets ≈ 129.0323
	require.InDelta(t, 129.0323, fin.WeightKg, 1e-3)

	require.Len(t, repo.ledger, 2)
	require.Equal(t, inventory.KindProductionConsume, repo.ledger[0].Kind)
	require.Equal(t, inventory.KindProductionProduce, repo.ledger[1].Kind)
	require.Equal(t, "PRD-000001", repo.ledger[1].SourceRef)
	require.InDelta(t, 2, repo.ledger[1].UnitRate, 1e-9)
}

func TestExecuteUnknownProductWritesNothing(t *testing.T) {
	svc, repo := newFixture(t)

	input := validInput()
	input.Materials = append(input.Materials, MaterialInput{StoreID: 1, ProductID: 99, QtyPackets: 1})

	_, err := svc.Execute(context.Background(), input)
	var rerr *shared.ReferenceError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, int64(99), rerr.ID)

	require.Empty(t, repo.runs)
	require.Empty(t, repo.ledger)
	require.Empty(t, repo.balances)
}

func TestExecuteValidatesBeforeResolving(t *testing.T) {
	svc, repo := newFixture(t)

	input := validInput()
	input.Items = nil
	_, err := svc.Execute(context.Background(), input)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "items", verr.Field)
	require.Empty(t, repo.runs)

	input = validInput()
	input.Materials[0].StoreID = 0
	_, err = svc.Execute(context.Background(), input)
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "material_out[0].store_id", verr.Field)
}

func TestRemarksOnlyUpdateLeavesBalancesUnchanged(t *testing.T) {
	svc, repo := newFixture(t)
	ctx := context.Background()

	detail, err := svc.Execute(ctx, validInput())
	require.NoError(t, err)

	before := map[inventory.BalanceKey]inventory.StockBalance{}
	for k, v := range repo.balances {
		before[k] = v
	}

	input := validInput()
	input.Remarks = "corrected remarks"
	updated, err := svc.Update(ctx, detail.Run.ID, input)
	require.NoError(t, err)
	require.Equal(t, "corrected remarks", updated.Run.Remarks)
	require.Equal(t, detail.Run.Number, updated.Run.Number)

	for key, prev := range before {
		require.InDelta(t, prev.QtyPackets, repo.balances[key].QtyPackets, 1e-9)
		require.InDelta(t, prev.WeightKg, repo.balances[key].WeightKg, 1e-9)
	}
	// ledger keeps the correction trail: original 2 + reversal 2 + reapply 2
	require.Len(t, repo.ledger, 6)
}

func TestUpdateRewritesQuantities(t *testing.T) {
	svc, repo := newFixture(t)
	ctx := context.Background()

	detail, err := svc.Execute(ctx, validInput())
	require.NoError(t, err)

	input := validInput()
	input.Materials[0].QtyPackets = 4
	input.Materials[0].WeightKg = 100
	_, err = svc.Update(ctx, detail.Run.ID, input)
	require.NoError(t, err)

	raw := repo.balances[inventory.BalanceKey{StoreID: 1, ProductID: 1}]
	require.InDelta(t, -4, raw.QtyPackets, 1e-9)
	require.InDelta(t, -100, raw.WeightKg, 1e-9)
}

func TestDeleteReversesAndVoids(t *testing.T) {
	svc, repo := newFixture(t)
	ctx := context.Background()

	detail, err := svc.Execute(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, detail.Run.ID, 7))

	for key, bal := range repo.balances {
		require.InDelta(t, 0, bal.QtyPackets, 1e-9, "key %+v", key)
		require.InDelta(t, 0, bal.WeightKg, 1e-9, "key %+v", key)
	}
	got, err := svc.Get(ctx, detail.Run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, got.Run.Status)

	// voiding twice is rejected
	err = svc.Delete(ctx, detail.Run.ID, 7)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestItemValueUsesWeightBasis(t *testing.T) {
	svc, repo := newFixture(t)

	input := validInput()
	input.Items[0].Rate = 1.5
	input.Items[0].RateOn = inventory.RateBasisWeight
	input.Items[0].WeightKg = 120

	detail, err := svc.Execute(context.Background(), input)
	require.NoError(t, err)
	require.InDelta(t, 180, detail.Items[0].Value, 1e-9) // 1.5 x 120 kg
	require.Len(t, repo.ledger, 2)
}
