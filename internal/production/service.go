package production

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
	platformdb "github.com/papyrus-erp/papyrus-erp/internal/platform/db"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
	"github.com/papyrus-erp/papyrus-erp/internal/uom"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRun(ctx context.Context, id int64) (RunDetail, error)
	ListRuns(ctx context.Context, limit, offset int) ([]ProductionRun, error)
}

// ProductPort resolves products for weight derivation.
type ProductPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// StorePort resolves store references.
type StorePort interface {
	Exists(ctx context.Context, id int64) error
}

// InventoryPort applies stock deltas inside the run's transaction and fans
// out committed changes.
type InventoryPort interface {
	ApplyBatchTx(ctx context.Context, tx inventory.TxRepository, deltas []inventory.Delta) ([]inventory.StockBalance, error)
	Announce(ctx context.Context, changes []inventory.BalanceChange)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const numberSeries = "production_run"

// Service orchestrates production runs: material out of source stores,
// finished items into the output store, all in one transaction.
type Service struct {
	repo        RepositoryPort
	productsSvc ProductPort
	storesSvc   StorePort
	inv         InventoryPort
	audit       AuditPort
	attempts    int
}

// NewService constructs the production service.
func NewService(repo RepositoryPort, productsSvc ProductPort, storesSvc StorePort, inv InventoryPort, audit AuditPort, retryAttempts int) *Service {
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	return &Service{repo: repo, productsSvc: productsSvc, storesSvc: storesSvc, inv: inv, audit: audit, attempts: retryAttempts}
}

// MaterialInput is one raw-material line of an execute payload. WeightKg zero
// means "derive from the product dimensions".
type MaterialInput struct {
	StoreID    int64
	ProductID  int64
	Lot        string
	QtyPackets float64
	WeightKg   float64
}

// ItemInput is one finished-output line.
type ItemInput struct {
	ProductID  int64
	Lot        string
	QtyPackets float64
	WeightKg   float64
	Rate       float64
	RateOn     inventory.RateBasis
}

// ExecuteInput is a full production run payload.
type ExecuteInput struct {
	Date          time.Time
	OutputStoreID int64
	Remarks       string
	Materials     []MaterialInput
	Items         []ItemInput
	ActorID       int64
}

// Execute validates, numbers and posts a production run. Nothing is written
// until the whole payload validates; the header, every line and every stock
// delta commit in one transaction or not at all.
func (s *Service) Execute(ctx context.Context, input ExecuteInput) (RunDetail, error) {
	materials, items, err := s.resolveLines(ctx, input)
	if err != nil {
		return RunDetail{}, err
	}

	var detail RunDetail
	var changes []inventory.BalanceChange
	err = platformdb.Retry(ctx, s.attempts, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			seq, err := tx.NextNumber(ctx, numberSeries)
			if err != nil {
				return err
			}
			run := ProductionRun{
				Number:        fmt.Sprintf("PRD-%06d", seq),
				Date:          input.Date,
				OutputStoreID: input.OutputStoreID,
				Remarks:       input.Remarks,
				Status:        StatusPosted,
				CreatedBy:     input.ActorID,
			}
			runID, err := tx.InsertRun(ctx, run)
			if err != nil {
				return err
			}
			run.ID = runID
			if err := insertLines(ctx, tx, runID, materials, items); err != nil {
				return err
			}
			deltas := runDeltas(run, materials, items, input.OutputStoreID, input.ActorID, 1)
			balances, err := s.inv.ApplyBatchTx(ctx, tx.Inventory(), deltas)
			if err != nil {
				return err
			}
			changes = balanceChanges(deltas, balances)
			detail = RunDetail{Run: run, Materials: materials, Items: items}
			return nil
		})
	})
	if err != nil {
		if platformdb.IsRetryable(err) {
			return RunDetail{}, &shared.ConcurrencyError{Attempts: s.attempts, Err: err}
		}
		return RunDetail{}, err
	}

	s.inv.Announce(ctx, changes)
	s.recordAudit(ctx, "PRODUCTION_EXECUTE", detail.Run, input.ActorID)
	return detail, nil
}

// Update replaces a posted run: the stored lines are reversed with offsetting
// ledger entries, then the new payload is applied, all in one transaction.
// A remarks-only edit therefore leaves every balance numerically unchanged
// while the ledger keeps the full correction trail.
func (s *Service) Update(ctx context.Context, id int64, input ExecuteInput) (RunDetail, error) {
	existing, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	if existing.Run.Status == StatusVoid {
		return RunDetail{}, &shared.ValidationError{Field: "status", Reason: "run is void"}
	}
	materials, items, err := s.resolveLines(ctx, input)
	if err != nil {
		return RunDetail{}, err
	}

	var detail RunDetail
	var changes []inventory.BalanceChange
	err = platformdb.Retry(ctx, s.attempts, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			run := existing.Run
			run.Date = input.Date
			run.OutputStoreID = input.OutputStoreID
			run.Remarks = input.Remarks

			reversal := runDeltas(existing.Run, existing.Materials, existing.Items, existing.Run.OutputStoreID, input.ActorID, -1)
			reapply := runDeltas(run, materials, items, input.OutputStoreID, input.ActorID, 1)
			deltas := append(reversal, reapply...)

			if err := tx.UpdateRun(ctx, run); err != nil {
				return err
			}
			if err := tx.DeleteLines(ctx, id); err != nil {
				return err
			}
			if err := insertLines(ctx, tx, id, materials, items); err != nil {
				return err
			}
			balances, err := s.inv.ApplyBatchTx(ctx, tx.Inventory(), deltas)
			if err != nil {
				return err
			}
			changes = balanceChanges(deltas, balances)
			detail = RunDetail{Run: run, Materials: materials, Items: items}
			return nil
		})
	})
	if err != nil {
		if platformdb.IsRetryable(err) {
			return RunDetail{}, &shared.ConcurrencyError{Attempts: s.attempts, Err: err}
		}
		return RunDetail{}, err
	}

	s.inv.Announce(ctx, changes)
	s.recordAudit(ctx, "PRODUCTION_UPDATE", detail.Run, input.ActorID)
	return detail, nil
}

// Delete reverses a run's stock effect and marks the header void. The header
// and lines stay queryable; only the ledger effect is undone.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	existing, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if existing.Run.Status == StatusVoid {
		return &shared.ValidationError{Field: "status", Reason: "run is already void"}
	}

	var changes []inventory.BalanceChange
	err = platformdb.Retry(ctx, s.attempts, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			reversal := runDeltas(existing.Run, existing.Materials, existing.Items, existing.Run.OutputStoreID, actorID, -1)
			balances, err := s.inv.ApplyBatchTx(ctx, tx.Inventory(), reversal)
			if err != nil {
				return err
			}
			changes = balanceChanges(reversal, balances)
			return tx.MarkVoid(ctx, id)
		})
	})
	if err != nil {
		if platformdb.IsRetryable(err) {
			return &shared.ConcurrencyError{Attempts: s.attempts, Err: err}
		}
		return err
	}

	s.inv.Announce(ctx, changes)
	s.recordAudit(ctx, "PRODUCTION_VOID", existing.Run, actorID)
	return nil
}

// Get returns a run with its lines.
func (s *Service) Get(ctx context.Context, id int64) (RunDetail, error) {
	return s.repo.GetRun(ctx, id)
}

// List returns run headers, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]ProductionRun, error) {
	return s.repo.ListRuns(ctx, limit, offset)
}

// resolveLines validates the payload and resolves every master reference
// before any write. Weights are derived from product dimensions unless the
// line carries an override; item values are fixed from rate and basis extent.
func (s *Service) resolveLines(ctx context.Context, input ExecuteInput) ([]MaterialOutLine, []ItemLine, error) {
	if input.Date.IsZero() {
		return nil, nil, shared.NewValidationError("date")
	}
	if input.OutputStoreID == 0 {
		return nil, nil, shared.NewValidationError("output_store_id")
	}
	if len(input.Materials) == 0 {
		return nil, nil, shared.NewValidationError("material_out")
	}
	if len(input.Items) == 0 {
		return nil, nil, shared.NewValidationError("items")
	}
	if s.storesSvc != nil {
		if err := s.storesSvc.Exists(ctx, input.OutputStoreID); err != nil {
			return nil, nil, err
		}
	}

	materials := make([]MaterialOutLine, 0, len(input.Materials))
	for i, m := range input.Materials {
		if m.StoreID == 0 {
			return nil, nil, shared.NewValidationError(fmt.Sprintf("material_out[%d].store_id", i))
		}
		if m.ProductID == 0 {
			return nil, nil, shared.NewValidationError(fmt.Sprintf("material_out[%d].product_id", i))
		}
		if m.QtyPackets <= 0 {
			return nil, nil, &shared.ValidationError{Field: fmt.Sprintf("material_out[%d].qty_packets", i), Reason: "must be positive"}
		}
		if s.storesSvc != nil {
			if err := s.storesSvc.Exists(ctx, m.StoreID); err != nil {
				return nil, nil, err
			}
		}
		weight, err := s.lineWeight(ctx, m.ProductID, m.QtyPackets, m.WeightKg)
		if err != nil {
			return nil, nil, err
		}
		materials = append(materials, MaterialOutLine{
			StoreID: m.StoreID, ProductID: m.ProductID, Lot: m.Lot,
			QtyPackets: m.QtyPackets, WeightKg: weight,
		})
	}

	items := make([]ItemLine, 0, len(input.Items))
	for i, it := range input.Items {
		if it.ProductID == 0 {
			return nil, nil, shared.NewValidationError(fmt.Sprintf("items[%d].product_id", i))
		}
		if it.QtyPackets <= 0 {
			return nil, nil, &shared.ValidationError{Field: fmt.Sprintf("items[%d].qty_packets", i), Reason: "must be positive"}
		}
		rateOn := it.RateOn
		if rateOn == "" {
			rateOn = inventory.RateBasisWeight
		}
		if rateOn != inventory.RateBasisWeight && rateOn != inventory.RateBasisQuantity {
			return nil, nil, &shared.ValidationError{Field: fmt.Sprintf("items[%d].rate_on", i), Reason: "must be WEIGHT or QUANTITY"}
		}
		weight, err := s.lineWeight(ctx, it.ProductID, it.QtyPackets, it.WeightKg)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, ItemLine{
			ProductID: it.ProductID, Lot: it.Lot,
			QtyPackets: it.QtyPackets, WeightKg: weight,
			Rate: it.Rate, RateOn: rateOn,
			Value: lineValue(it.Rate, rateOn, it.QtyPackets, weight),
		})
	}
	return materials, items, nil
}

func (s *Service) lineWeight(ctx context.Context, productID int64, qty, override float64) (float64, error) {
	if s.productsSvc == nil {
		return override, nil
	}
	product, err := s.productsSvc.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if override != 0 {
		return override, nil
	}
	derived, _ := uom.RowWeight(qty, product).Float64()
	return derived, nil
}

// lineValue fixes the item value at posting: rate applied to the basis
// extent, rounded to two decimals.
func lineValue(rate float64, rateOn inventory.RateBasis, qty, weight float64) float64 {
	extent := weight
	if rateOn == inventory.RateBasisQuantity {
		extent = qty
	}
	v, _ := decimal.NewFromFloat(rate).Mul(decimal.NewFromFloat(extent)).Round(2).Float64()
	return v
}

func insertLines(ctx context.Context, tx TxRepository, runID int64, materials []MaterialOutLine, items []ItemLine) error {
	for i := range materials {
		materials[i].RunID = runID
		if err := tx.InsertMaterialLine(ctx, materials[i]); err != nil {
			return err
		}
	}
	for i := range items {
		items[i].RunID = runID
		if err := tx.InsertItemLine(ctx, items[i]); err != nil {
			return err
		}
	}
	return nil
}

// runDeltas translates a run into stock deltas. sign +1 posts the run, -1
// produces the offsetting reversal entries; reversals of produce lines carry
// the original rate so average-cost figures back it out.
func runDeltas(run ProductionRun, materials []MaterialOutLine, items []ItemLine, outputStoreID, actorID int64, sign float64) []inventory.Delta {
	note := ""
	if sign < 0 {
		note = "reversal"
	}
	deltas := make([]inventory.Delta, 0, len(materials)+len(items))
	for _, m := range materials {
		deltas = append(deltas, inventory.Delta{
			Kind:        inventory.KindProductionConsume,
			StoreID:     m.StoreID,
			ProductID:   m.ProductID,
			Lot:         m.Lot,
			QtyDelta:    -sign * m.QtyPackets,
			WeightDelta: -sign * m.WeightKg,
			SourceRef:   run.Number,
			Note:        note,
			ActorID:     actorID,
		})
	}
	for _, it := range items {
		deltas = append(deltas, inventory.Delta{
			Kind:        inventory.KindProductionProduce,
			StoreID:     outputStoreID,
			ProductID:   it.ProductID,
			Lot:         it.Lot,
			QtyDelta:    sign * it.QtyPackets,
			WeightDelta: sign * it.WeightKg,
			UnitRate:    it.Rate,
			RateBasis:   it.RateOn,
			SourceRef:   run.Number,
			Note:        note,
			ActorID:     actorID,
		})
	}
	return deltas
}

func balanceChanges(deltas []inventory.Delta, balances []inventory.StockBalance) []inventory.BalanceChange {
	changes := make([]inventory.BalanceChange, 0, len(deltas))
	for i := range deltas {
		if i >= len(balances) {
			break
		}
		changes = append(changes, inventory.BalanceChange{
			StoreID:    deltas[i].StoreID,
			ProductID:  deltas[i].ProductID,
			Lot:        deltas[i].Lot,
			QtyPackets: balances[i].QtyPackets,
			WeightKg:   balances[i].WeightKg,
			Kind:       deltas[i].Kind,
		})
	}
	return changes
}

func (s *Service) recordAudit(ctx context.Context, action string, run ProductionRun, actorID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "production_runs",
		EntityID: fmt.Sprintf("%d", run.ID),
		Meta:     map[string]any{"number": run.Number, "output_store_id": run.OutputStoreID},
	})
}
