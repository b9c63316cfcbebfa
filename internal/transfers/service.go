package transfers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/warehouses"
)

// Balances are compared with a small epsilon, quantities can be fractional.
const qtyEpsilon = 1e-4

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransfer(ctx context.Context, id int64) (Transfer, []TransferItem, error)
	ListTransfers(ctx context.Context, filter ListFilter) ([]Transfer, error)
	ListOrphanedProposals(ctx context.Context, olderThan time.Time) ([]Transfer, error)
}

// TxRepository exposes the operations available inside a transfer transaction.
type TxRepository interface {
	NextTransferNumber(ctx context.Context, day time.Time) (int, error)
	CreateTransfer(ctx context.Context, t Transfer) (int64, error)
	InsertTransferItem(ctx context.Context, item TransferItem) (int64, error)
	GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error)
	TransferItems(ctx context.Context, transferID int64) ([]TransferItem, error)
	SetApproved(ctx context.Context, id, actorID int64, at time.Time) error
	SetCancelled(ctx context.Context, id, actorID int64, at time.Time) error
	SetCompleted(ctx context.Context, id, actorID int64, at time.Time) error
	MarkOrderWaiting(ctx context.Context, orderID, transferID int64) error
	GetBalanceForUpdate(ctx context.Context, warehouseID, itemID int64) (stock.Balance, error)
	UpsertBalance(ctx context.Context, balance stock.Balance) error
	InsertMovement(ctx context.Context, m stock.Movement) error
	SetItemSnapshot(ctx context.Context, transferItemID int64, fromBefore, fromAfter, toBefore, toAfter float64) error
	RecomputeItemStock(ctx context.Context, itemID int64) (float64, error)
}

// OrdersPort exposes the order boundary.
type OrdersPort interface {
	Get(ctx context.Context, id int64) (orders.Order, []orders.Line, error)
}

// WarehousePort exposes warehouse master data.
type WarehousePort interface {
	Get(ctx context.Context, id int64) (warehouses.Warehouse, error)
	Operational(ctx context.Context) (warehouses.Warehouse, error)
}

// StockPort exposes stock reads used outside the execution transaction.
type StockPort interface {
	ResolveItem(ctx context.Context, itemID int64, sku string) (stock.Item, error)
	GetItem(ctx context.Context, id int64) (stock.Item, error)
	Balance(ctx context.Context, warehouseID, itemID int64) (float64, error)
	CandidateSources(ctx context.Context, itemID, excludeWarehouseID int64) ([]stock.Balance, error)
}

// AccessPort checks per-warehouse grants.
type AccessPort interface {
	CanAccessWarehouse(ctx context.Context, userID, warehouseID int64) (bool, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReactorPort receives the completion signal that unblocks waiting orders.
type ReactorPort interface {
	TransferCompleted(ctx context.Context, transferID int64) error
}

// MetricsPort records execution metrics.
type MetricsPort interface {
	TransferExecuted(movements int, quantity float64)
}

// Service coordinates the transfer lifecycle.
type Service struct {
	repo        RepositoryPort
	orders      OrdersPort
	warehouses  WarehousePort
	stock       StockPort
	access      AccessPort
	audit       AuditPort
	reactor     ReactorPort
	metrics     MetricsPort
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
}

// ServiceParams groups the service dependencies.
type ServiceParams struct {
	Repo        RepositoryPort
	Orders      OrdersPort
	Warehouses  WarehousePort
	Stock       StockPort
	Access      AccessPort
	Audit       AuditPort
	Reactor     ReactorPort
	Metrics     MetricsPort
	Idempotency *shared.IdempotencyStore
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(params ServiceParams) *Service {
	return &Service{
		repo:        params.Repo,
		orders:      params.Orders,
		warehouses:  params.Warehouses,
		stock:       params.Stock,
		access:      params.Access,
		audit:       params.Audit,
		reactor:     params.Reactor,
		metrics:     params.Metrics,
		idempotency: params.Idempotency,
		logger:      params.Logger,
	}
}

// Get returns a transfer with its items.
func (s *Service) Get(ctx context.Context, id int64) (Transfer, []TransferItem, error) {
	if id <= 0 {
		return Transfer{}, nil, ErrValidation
	}
	return s.repo.GetTransfer(ctx, id)
}

// List returns transfers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	return s.repo.ListTransfers(ctx, filter)
}

// CreateItemInput is one requested line of a manual transfer.
type CreateItemInput struct {
	ItemID   int64
	Quantity float64
}

// CreateInput describes a manual transfer request.
type CreateInput struct {
	FromWarehouseID int64
	ToWarehouseID   int64
	Note            string
	Items           []CreateItemInput
	ActorID         int64
}

// Create persists a manual DRAFT transfer.
func (s *Service) Create(ctx context.Context, input CreateInput) (Transfer, []TransferItem, error) {
	if input.FromWarehouseID == 0 || input.ToWarehouseID == 0 || len(input.Items) == 0 {
		return Transfer{}, nil, ErrValidation
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return Transfer{}, nil, fmt.Errorf("%w: source and destination must differ", ErrValidation)
	}
	if _, err := s.warehouses.Get(ctx, input.FromWarehouseID); err != nil {
		return Transfer{}, nil, err
	}
	if _, err := s.warehouses.Get(ctx, input.ToWarehouseID); err != nil {
		return Transfer{}, nil, err
	}
	lines := make([]TransferItem, 0, len(input.Items))
	for _, line := range input.Items {
		if line.ItemID == 0 || line.Quantity <= 0 {
			return Transfer{}, nil, ErrValidation
		}
		item, err := s.stock.GetItem(ctx, line.ItemID)
		if err != nil {
			return Transfer{}, nil, err
		}
		lines = append(lines, TransferItem{ItemID: item.ID, SKU: item.SKU, Quantity: line.Quantity})
	}
	transfer := Transfer{
		FromWarehouseID: input.FromWarehouseID,
		ToWarehouseID:   input.ToWarehouseID,
		Status:          StatusDraft,
		IsAutoProposed:  false,
		Note:            input.Note,
		CreatedBy:       input.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := time.Now().UTC()
		seq, err := tx.NextTransferNumber(ctx, now)
		if err != nil {
			return err
		}
		transfer.Number = formatTransferNumber(now, seq)
		transfer.CreatedAt = now
		id, err := tx.CreateTransfer(ctx, transfer)
		if err != nil {
			return err
		}
		transfer.ID = id
		for i := range lines {
			lines[i].TransferID = id
			itemID, err := tx.InsertTransferItem(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		return Transfer{}, nil, err
	}
	s.recordAudit(ctx, input.ActorID, "TRANSFER_CREATE", transfer.ID, map[string]any{"number": transfer.Number})
	return transfer, lines, nil
}

// Approve moves a DRAFT transfer to PENDING. No stock is touched.
func (s *Service) Approve(ctx context.Context, transferID, actorID int64) (Transfer, error) {
	transfer, _, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	if !transfer.CanApprove() {
		return Transfer{}, fmt.Errorf("%w: cannot approve %s transfer", ErrInvalidState, transfer.Status)
	}
	now := time.Now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !locked.CanApprove() {
			return fmt.Errorf("%w: cannot approve %s transfer", ErrInvalidState, locked.Status)
		}
		return tx.SetApproved(ctx, transferID, actorID, now)
	})
	if err != nil {
		return Transfer{}, err
	}
	transfer.Status = StatusPending
	transfer.ApprovedBy = actorID
	transfer.ApprovedAt = now
	s.recordAudit(ctx, actorID, "TRANSFER_APPROVE", transferID, map[string]any{"number": transfer.Number})
	return transfer, nil
}

// Cancel voids a DRAFT or PENDING transfer. Terminal states are immutable.
func (s *Service) Cancel(ctx context.Context, transferID, actorID int64) (Transfer, error) {
	transfer, _, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	if !transfer.CanCancel() {
		return Transfer{}, fmt.Errorf("%w: cannot cancel %s transfer", ErrInvalidState, transfer.Status)
	}
	now := time.Now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !locked.CanCancel() {
			return fmt.Errorf("%w: cannot cancel %s transfer", ErrInvalidState, locked.Status)
		}
		return tx.SetCancelled(ctx, transferID, actorID, now)
	})
	if err != nil {
		return Transfer{}, err
	}
	transfer.Status = StatusCancelled
	transfer.CancelledBy = actorID
	transfer.CancelledAt = now
	s.recordAudit(ctx, actorID, "TRANSFER_CANCEL", transferID, map[string]any{"number": transfer.Number})
	return transfer, nil
}

// ExecutionResult summarises a completed execution.
type ExecutionResult struct {
	Transfer              Transfer       `json:"transfer"`
	Items                 []TransferItem `json:"items"`
	ItemsTransferred      int            `json:"items_transferred"`
	StockMovementsCreated int            `json:"stock_movements_created"`
}

// Execute runs the atomic stock movement for an approved transfer.
//
// Every precondition is checked before any mutation and all failures are
// reported together. The transaction either applies the whole transfer or
// nothing: balances, ledger entries, item snapshots, the derived item totals
// and the COMPLETED flag commit as one unit. Stock sufficiency is rechecked
// under row locks inside the transaction; the pre-checks exist to fail cheap,
// not to be trusted.
func (s *Service) Execute(ctx context.Context, transferID, actorID int64) (ExecutionResult, error) {
	transfer, items, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return ExecutionResult{}, err
	}
	if !transfer.CanExecute() {
		return ExecutionResult{}, fmt.Errorf("%w: cannot execute %s transfer", ErrInvalidState, transfer.Status)
	}
	if len(items) == 0 {
		return ExecutionResult{}, fmt.Errorf("%w: transfer has no items", ErrValidation)
	}

	if err := s.checkWarehouseAccess(ctx, actorID, transfer); err != nil {
		return ExecutionResult{}, err
	}
	if execErr := s.validateExecution(ctx, transfer, items); execErr != nil {
		return ExecutionResult{}, execErr
	}

	idemKey := fmt.Sprintf("TRF-EXEC:%s", transfer.Number)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "transfers"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ExecutionResult{}, fmt.Errorf("%w: execution already in progress", ErrInvalidState)
			}
			return ExecutionResult{}, err
		}
		insertedKey = true
	}

	now := time.Now().UTC()
	result := ExecutionResult{}
	var quantityMoved float64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// The row lock serializes concurrent execution attempts; the loser
		// re-reads a COMPLETED transfer and fails without side effects.
		locked, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !locked.CanExecute() {
			return fmt.Errorf("%w: cannot execute %s transfer", ErrInvalidState, locked.Status)
		}
		txItems, err := tx.TransferItems(ctx, transferID)
		if err != nil {
			return err
		}
		batchID := uuid.NewSHA1(uuid.Nil, []byte("TRF:"+locked.Number))
		movements := 0
		quantityMoved = 0
		recompute := make(map[int64]struct{}, len(txItems))
		for _, item := range txItems {
			fromBal, err := tx.GetBalanceForUpdate(ctx, locked.FromWarehouseID, item.ItemID)
			if err != nil && !errors.Is(err, stock.ErrBalanceNotFound) {
				return err
			}
			if fromBal.CurrentStock+qtyEpsilon < item.Quantity {
				return &ExecutionError{Violations: []Violation{{
					Reason:    ReasonInsufficientStock,
					ItemID:    item.ItemID,
					SKU:       item.SKU,
					Required:  item.Quantity,
					Available: fromBal.CurrentStock,
				}}}
			}
			toBal, err := tx.GetBalanceForUpdate(ctx, locked.ToWarehouseID, item.ItemID)
			if err != nil {
				if !errors.Is(err, stock.ErrBalanceNotFound) {
					return err
				}
				toBal = stock.Balance{WarehouseID: locked.ToWarehouseID, ItemID: item.ItemID}
			}
			fromBefore, toBefore := fromBal.CurrentStock, toBal.CurrentStock
			fromAfter := fromBefore - item.Quantity
			// Sufficiency was checked within qtyEpsilon above, so a negative
			// result here is float noise. Tiny positive residuals are real
			// stock and must survive.
			if fromAfter < 0 {
				fromAfter = 0
			}
			toAfter := toBefore + item.Quantity

			fromBal.CurrentStock = fromAfter
			toBal.CurrentStock = toAfter
			if err := tx.UpsertBalance(ctx, fromBal); err != nil {
				return err
			}
			if err := tx.UpsertBalance(ctx, toBal); err != nil {
				return err
			}
			out := stock.Movement{
				BatchID:       batchID,
				ItemID:        item.ItemID,
				Type:          stock.MovementTransfer,
				Quantity:      -item.Quantity,
				PreviousStock: fromBefore,
				NewStock:      fromAfter,
				WarehouseID:   locked.FromWarehouseID,
				TransferID:    transferID,
				ActorID:       actorID,
				OccurredAt:    now,
			}
			in := stock.Movement{
				BatchID:       batchID,
				ItemID:        item.ItemID,
				Type:          stock.MovementTransfer,
				Quantity:      item.Quantity,
				PreviousStock: toBefore,
				NewStock:      toAfter,
				WarehouseID:   locked.ToWarehouseID,
				TransferID:    transferID,
				ActorID:       actorID,
				OccurredAt:    now,
			}
			if err := tx.InsertMovement(ctx, out); err != nil {
				return err
			}
			if err := tx.InsertMovement(ctx, in); err != nil {
				return err
			}
			if err := tx.SetItemSnapshot(ctx, item.ID, fromBefore, fromAfter, toBefore, toAfter); err != nil {
				return err
			}
			movements += 2
			quantityMoved += item.Quantity
			recompute[item.ItemID] = struct{}{}
		}
		// Recompute instead of patching: the derived total self-heals any
		// drift accumulated before this execution.
		for itemID := range recompute {
			if _, err := tx.RecomputeItemStock(ctx, itemID); err != nil {
				return err
			}
		}
		if err := tx.SetCompleted(ctx, transferID, actorID, now); err != nil {
			return err
		}
		result.ItemsTransferred = len(txItems)
		result.StockMovementsCreated = movements
		result.Transfer = locked
		result.Transfer.Status = StatusCompleted
		result.Transfer.ExecutedBy = actorID
		result.Transfer.ExecutedAt = now
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return ExecutionResult{}, err
	}

	_, result.Items, err = s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		// Execution committed; the reload is best effort.
		result.Items = items
	}

	if s.metrics != nil {
		s.metrics.TransferExecuted(result.StockMovementsCreated, quantityMoved)
	}
	s.recordAudit(ctx, actorID, "TRANSFER_EXECUTE", transferID, map[string]any{
		"number":    transfer.Number,
		"movements": result.StockMovementsCreated,
	})
	if s.reactor != nil {
		if err := s.reactor.TransferCompleted(ctx, transferID); err != nil && s.logger != nil {
			s.logger.Error("signal order unblock", slog.Int64("transfer_id", transferID), slog.Any("error", err))
		}
	}
	return result, nil
}

// ReconcileOrphans cancels aged auto-proposed drafts whose order no longer
// references them, so they cannot be executed against stale intent.
func (s *Service) ReconcileOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	orphans, err := s.repo.ListOrphanedProposals(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, orphan := range orphans {
		if _, err := s.Cancel(ctx, orphan.ID, 0); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *Service) checkWarehouseAccess(ctx context.Context, actorID int64, transfer Transfer) error {
	for _, warehouseID := range []int64{transfer.FromWarehouseID, transfer.ToWarehouseID} {
		ok, err := s.access.CanAccessWarehouse(ctx, actorID, warehouseID)
		if err != nil {
			return err
		}
		if !ok {
			s.recordAudit(ctx, actorID, "TRANSFER_EXECUTE_DENIED", transfer.ID, map[string]any{
				"number":       transfer.Number,
				"warehouse_id": warehouseID,
			})
			return fmt.Errorf("%w: no access to warehouse %d", shared.ErrForbidden, warehouseID)
		}
	}
	return nil
}

// validateExecution collects every violation instead of failing fast so the
// operator can correct the transfer in one pass.
func (s *Service) validateExecution(ctx context.Context, transfer Transfer, items []TransferItem) error {
	var violations []Violation
	for _, warehouseID := range []int64{transfer.FromWarehouseID, transfer.ToWarehouseID} {
		warehouse, err := s.warehouses.Get(ctx, warehouseID)
		if err != nil {
			return err
		}
		if !warehouse.IsActive {
			violations = append(violations, Violation{Reason: ReasonWarehouseInactive, WarehouseID: warehouseID})
		}
	}
	for _, line := range items {
		item, err := s.stock.GetItem(ctx, line.ItemID)
		if err != nil {
			return err
		}
		if item.IsComposite {
			violations = append(violations, Violation{
				Reason: ReasonCompositeItem,
				ItemID: item.ID,
				SKU:    item.SKU,
			})
			continue
		}
		available, err := s.stock.Balance(ctx, transfer.FromWarehouseID, line.ItemID)
		if err != nil {
			return err
		}
		if available+qtyEpsilon < line.Quantity {
			violations = append(violations, Violation{
				Reason:      ReasonInsufficientStock,
				ItemID:      item.ID,
				SKU:         item.SKU,
				WarehouseID: transfer.FromWarehouseID,
				Required:    line.Quantity,
				Available:   available,
			})
		}
	}
	if len(violations) > 0 {
		return &ExecutionError{Violations: violations}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, transferID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "warehouse_transfer",
		EntityID: fmt.Sprintf("%d", transferID),
		Meta:     meta,
	})
}

func formatTransferNumber(day time.Time, seq int) string {
	return fmt.Sprintf("TRF-%s-%03d", day.Format("20060102"), seq)
}
