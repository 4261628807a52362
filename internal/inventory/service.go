package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
	"github.com/papyrus-erp/papyrus-erp/internal/platform/cache"
	platformdb "github.com/papyrus-erp/papyrus-erp/internal/platform/db"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
	"github.com/papyrus-erp/papyrus-erp/internal/uom"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, key BalanceKey) (StockBalance, error)
	ListStoreStock(ctx context.Context, storeID int64) ([]StockBalance, error)
	ListTransactions(ctx context.Context, filter LedgerFilter) ([]StockTransaction, error)
}

// ProductPort resolves product references and dimension data.
type ProductPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// StorePort resolves store references.
type StorePort interface {
	Exists(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// RejectNegativeStock enables the strict mode. The default (false)
	// matches form behaviour: available stock is advisory, submissions are
	// never blocked on it.
	RejectNegativeStock bool
	// RetryAttempts bounds internal retries on lock contention.
	RetryAttempts int
}

// Service coordinates stock movements: every write appends ledger entries and
// updates balances in the same transaction.
type Service struct {
	repo        RepositoryPort
	productsSvc ProductPort
	storesSvc   StorePort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	listeners   []BalanceListener
	preview     *cache.JSONCache
	rejectNeg   bool
	attempts    int
}

// NewService builds Service. productsSvc and storesSvc may be nil in tests;
// reference checks and weight derivation are then skipped.
func NewService(repo RepositoryPort, productsSvc ProductPort, storesSvc StorePort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig) *Service {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Service{
		repo:        repo,
		productsSvc: productsSvc,
		storesSvc:   storesSvc,
		audit:       audit,
		idempotency: idem,
		rejectNeg:   cfg.RejectNegativeStock,
		attempts:    attempts,
	}
}

// SetPreviewCache enables caching of store stock previews. Previews are
// advisory and lock-free, so serving a snapshot invalidated on write is fine.
func (s *Service) SetPreviewCache(c *cache.JSONCache) {
	s.preview = c
}

// Subscribe registers a listener for committed balance changes.
func (s *Service) Subscribe(l BalanceListener) {
	if l != nil {
		s.listeners = append(s.listeners, l)
	}
}

// Announce fans committed changes out to listeners. Best effort; listeners
// never affect the outcome of the write that triggered them.
func (s *Service) Announce(ctx context.Context, changes []BalanceChange) {
	if len(changes) == 0 {
		return
	}
	if s.preview != nil {
		seen := map[int64]bool{}
		keys := []string{}
		for _, c := range changes {
			if !seen[c.StoreID] {
				seen[c.StoreID] = true
				keys = append(keys, previewKey(c.StoreID))
			}
		}
		_ = s.preview.Delete(ctx, keys...)
	}
	for _, l := range s.listeners {
		l.BalanceChanged(ctx, changes)
	}
}

func previewKey(storeID int64) string {
	return fmt.Sprintf("store:%d", storeID)
}

// GetBalance returns the current balance for one key; zero when absent.
func (s *Service) GetBalance(ctx context.Context, key BalanceKey) (StockBalance, error) {
	if key.StoreID == 0 {
		return StockBalance{}, shared.NewValidationError("store_id")
	}
	if key.ProductID == 0 {
		return StockBalance{}, shared.NewValidationError("product_id")
	}
	return s.repo.GetBalance(ctx, key)
}

// GetStoreStock lists balances for a store. Lock-free: a stale preview is an
// accepted tradeoff, concurrent writers are never blocked by it.
func (s *Service) GetStoreStock(ctx context.Context, storeID int64) ([]StockBalance, error) {
	if storeID == 0 {
		return nil, shared.NewValidationError("store_id")
	}
	if s.preview != nil {
		var cached []StockBalance
		if hit, err := s.preview.Get(ctx, previewKey(storeID), &cached); err == nil && hit {
			return cached, nil
		}
	}
	balances, err := s.repo.ListStoreStock(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if s.preview != nil {
		_ = s.preview.Set(ctx, previewKey(storeID), balances)
	}
	return balances, nil
}

// ListLedger returns ledger entries matching the filter.
func (s *Service) ListLedger(ctx context.Context, filter LedgerFilter) ([]StockTransaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// ApplyDelta applies one movement atomically.
func (s *Service) ApplyDelta(ctx context.Context, delta Delta) (StockBalance, error) {
	balances, err := s.ApplyDeltas(ctx, []Delta{delta})
	if err != nil {
		return StockBalance{}, err
	}
	return balances[0], nil
}

// ApplyDeltas applies a batch of movements as one atomic unit: either every
// ledger entry and balance update commits, or none do. Lock contention is
// retried with backoff a bounded number of times before surfacing a
// ConcurrencyError.
func (s *Service) ApplyDeltas(ctx context.Context, deltas []Delta) ([]StockBalance, error) {
	if err := s.validateBatch(ctx, deltas); err != nil {
		return nil, err
	}
	var balances []StockBalance
	err := platformdb.Retry(ctx, s.attempts, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var applyErr error
			balances, applyErr = s.ApplyBatchTx(ctx, tx, deltas)
			return applyErr
		})
	})
	if err != nil {
		if platformdb.IsRetryable(err) {
			return nil, &shared.ConcurrencyError{Attempts: s.attempts, Err: err}
		}
		return nil, err
	}
	s.Announce(ctx, changesFor(deltas, balances))
	return balances, nil
}

// ApplyBatchTx applies a validated batch inside the caller's transaction.
// Balances are locked in sorted key order so concurrent batches touching the
// same keys cannot deadlock. Returns the resulting balance per delta, in the
// input order.
func (s *Service) ApplyBatchTx(ctx context.Context, tx TxRepository, deltas []Delta) ([]StockBalance, error) {
	if len(deltas) == 0 {
		return nil, ErrEmptyBatch
	}

	keys := make([]BalanceKey, 0, len(deltas))
	seen := make(map[BalanceKey]bool, len(deltas))
	for _, d := range deltas {
		if !seen[d.Key()] {
			seen[d.Key()] = true
			keys = append(keys, d.Key())
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	working := make(map[BalanceKey]*StockBalance, len(keys))
	for _, key := range keys {
		bal, err := tx.GetBalanceForUpdate(ctx, key)
		if err != nil && err != ErrBalanceNotFound {
			return nil, err
		}
		b := bal
		working[key] = &b
	}

	now := time.Now().UTC()
	results := make([]StockBalance, len(deltas))
	for i, d := range deltas {
		if _, err := tx.InsertTransaction(ctx, StockTransaction{
			Kind:        d.Kind,
			StoreID:     d.StoreID,
			ProductID:   d.ProductID,
			Lot:         d.Lot,
			QtyDelta:    d.QtyDelta,
			WeightDelta: d.WeightDelta,
			UnitRate:    d.UnitRate,
			RateBasis:   d.RateBasis,
			SourceRef:   d.SourceRef,
			Note:        d.Note,
			PostedAt:    now,
			CreatedBy:   d.ActorID,
		}); err != nil {
			return nil, err
		}
		bal := working[d.Key()]
		bal.QtyPackets = roundStock(bal.QtyPackets + d.QtyDelta)
		bal.WeightKg = roundStock(bal.WeightKg + d.WeightDelta)
		bal.UpdatedAt = now
		results[i] = *bal
	}

	for _, key := range keys {
		bal := working[key]
		if s.rejectNeg && (bal.QtyPackets < -1e-9 || bal.WeightKg < -1e-9) {
			return nil, ErrNegativeStock
		}
		if err := tx.UpsertBalance(ctx, *bal); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ReceiptInput describes a purchase receipt posting.
type ReceiptInput struct {
	StoreID    int64
	ProductID  int64
	Lot        string
	QtyPackets float64
	WeightKg   float64
	UnitRate   float64
	RateBasis  RateBasis
	SourceRef  string
	Note       string
	ActorID    int64
}

// PostReceipt posts inbound stock received against a purchase document.
func (s *Service) PostReceipt(ctx context.Context, input ReceiptInput) (StockBalance, error) {
	if input.QtyPackets <= 0 {
		return StockBalance{}, &shared.ValidationError{Field: "qty_packets", Reason: "must be positive"}
	}
	weight, err := s.resolveWeight(ctx, input.ProductID, input.QtyPackets, input.WeightKg)
	if err != nil {
		return StockBalance{}, err
	}
	basis := input.RateBasis
	if input.UnitRate != 0 && basis == "" {
		basis = RateBasisWeight
	}
	return s.post(ctx, Delta{
		Kind:        KindPurchaseReceipt,
		StoreID:     input.StoreID,
		ProductID:   input.ProductID,
		Lot:         input.Lot,
		QtyDelta:    input.QtyPackets,
		WeightDelta: weight,
		UnitRate:    input.UnitRate,
		RateBasis:   basis,
		SourceRef:   input.SourceRef,
		Note:        input.Note,
		ActorID:     input.ActorID,
	})
}

// StoreInInput describes a manual store-in entry.
type StoreInInput struct {
	StoreID    int64
	ProductID  int64
	Lot        string
	QtyPackets float64
	WeightKg   float64
	SourceRef  string
	Note       string
	ActorID    int64
}

// PostStoreIn posts a manual store-in.
func (s *Service) PostStoreIn(ctx context.Context, input StoreInInput) (StockBalance, error) {
	if input.QtyPackets == 0 && input.WeightKg == 0 {
		return StockBalance{}, &shared.ValidationError{Field: "qty_packets", Reason: "must be non zero"}
	}
	weight, err := s.resolveWeight(ctx, input.ProductID, input.QtyPackets, input.WeightKg)
	if err != nil {
		return StockBalance{}, err
	}
	return s.post(ctx, Delta{
		Kind:        KindStoreIn,
		StoreID:     input.StoreID,
		ProductID:   input.ProductID,
		Lot:         input.Lot,
		QtyDelta:    input.QtyPackets,
		WeightDelta: weight,
		SourceRef:   input.SourceRef,
		Note:        input.Note,
		ActorID:     input.ActorID,
	})
}

// IssueInput describes an outbound posting (sale issue or purchase return).
type IssueInput struct {
	StoreID    int64
	ProductID  int64
	Lot        string
	QtyPackets float64
	WeightKg   float64
	SourceRef  string
	Note       string
	ActorID    int64
}

// PostIssue posts stock issued against a sale invoice. Quantities are given
// positive and recorded as negative deltas.
func (s *Service) PostIssue(ctx context.Context, input IssueInput) (StockBalance, error) {
	return s.postOutbound(ctx, KindSaleIssue, input)
}

// PostReturn posts stock returned to a supplier.
func (s *Service) PostReturn(ctx context.Context, input IssueInput) (StockBalance, error) {
	return s.postOutbound(ctx, KindPurchaseReturn, input)
}

func (s *Service) postOutbound(ctx context.Context, kind TransactionKind, input IssueInput) (StockBalance, error) {
	if input.QtyPackets <= 0 {
		return StockBalance{}, &shared.ValidationError{Field: "qty_packets", Reason: "must be positive"}
	}
	weight, err := s.resolveWeight(ctx, input.ProductID, input.QtyPackets, input.WeightKg)
	if err != nil {
		return StockBalance{}, err
	}
	return s.post(ctx, Delta{
		Kind:        kind,
		StoreID:     input.StoreID,
		ProductID:   input.ProductID,
		Lot:         input.Lot,
		QtyDelta:    -input.QtyPackets,
		WeightDelta: -weight,
		SourceRef:   input.SourceRef,
		Note:        input.Note,
		ActorID:     input.ActorID,
	})
}

func (s *Service) post(ctx context.Context, delta Delta) (StockBalance, error) {
	key := ""
	insertedKey := false
	if s.idempotency != nil && delta.SourceRef != "" {
		key = fmt.Sprintf("%s:%s:%d:%d:%s", delta.Kind, delta.SourceRef, delta.StoreID, delta.ProductID, delta.Lot)
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return StockBalance{}, err
		}
		insertedKey = true
	}
	bal, err := s.ApplyDelta(ctx, delta)
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return StockBalance{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  delta.ActorID,
			Action:   fmt.Sprintf("inventory:%s", delta.Kind),
			Entity:   "stock_transactions",
			EntityID: fmt.Sprintf("%s:%d:%d", delta.Kind, delta.StoreID, delta.ProductID),
			Meta: map[string]any{
				"store_id":     delta.StoreID,
				"product_id":   delta.ProductID,
				"lot":          delta.Lot,
				"qty_delta":    delta.QtyDelta,
				"weight_delta": delta.WeightDelta,
				"source_ref":   delta.SourceRef,
			},
		})
	}
	return bal, nil
}

// resolveWeight derives the row weight from the product dimensions when the
// caller did not supply one. A supplied weight always wins: weight and
// quantity are independently settable by contract.
func (s *Service) resolveWeight(ctx context.Context, productID int64, qtyPackets, weightKg float64) (float64, error) {
	if productID == 0 {
		return 0, shared.NewValidationError("product_id")
	}
	if s.productsSvc == nil {
		return weightKg, nil
	}
	product, err := s.productsSvc.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if weightKg != 0 {
		return weightKg, nil
	}
	derived, _ := uom.RowWeight(qtyPackets, product).Float64()
	return derived, nil
}

func (s *Service) validateBatch(ctx context.Context, deltas []Delta) error {
	if len(deltas) == 0 {
		return ErrEmptyBatch
	}
	for _, d := range deltas {
		if d.StoreID == 0 {
			return shared.NewValidationError("store_id")
		}
		if d.ProductID == 0 {
			return shared.NewValidationError("product_id")
		}
		if d.Kind == "" {
			return shared.NewValidationError("kind")
		}
	}
	if s.storesSvc != nil {
		checked := map[int64]bool{}
		for _, d := range deltas {
			if checked[d.StoreID] {
				continue
			}
			if err := s.storesSvc.Exists(ctx, d.StoreID); err != nil {
				return err
			}
			checked[d.StoreID] = true
		}
	}
	return nil
}

func changesFor(deltas []Delta, balances []StockBalance) []BalanceChange {
	changes := make([]BalanceChange, 0, len(deltas))
	for i, d := range deltas {
		if i >= len(balances) {
			break
		}
		changes = append(changes, BalanceChange{
			StoreID:    d.StoreID,
			ProductID:  d.ProductID,
			Lot:        d.Lot,
			QtyPackets: balances[i].QtyPackets,
			WeightKg:   balances[i].WeightKg,
			Kind:       d.Kind,
		})
	}
	return changes
}

// roundStock trims float accumulation noise at the storage precision.
func roundStock(v float64) float64 {
	return math.Round(v*10000) / 10000
}
