package transfers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/orders"
)

// ProposeTransfer builds a DRAFT transfer covering the order's shortfalls and
// blocks the order on it. The draft, its items and the order status change
// commit in one transaction; the order is either fully blocked on a persisted
// proposal or untouched.
//
// The source warehouse is chosen by total coverage: each candidate is scored
// by how much of the combined shortfall it can supply, and the best one
// becomes the single source. Items the chosen warehouse does not hold at all
// are left out of the proposal.
func (s *Service) ProposeTransfer(ctx context.Context, orderID, actorID int64) (Transfer, []TransferItem, error) {
	order, _, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Transfer{}, nil, err
	}
	if order.RequiredTransferID != 0 {
		return Transfer{}, nil, fmt.Errorf("%w: transfer %d", ErrAlreadyProposed, order.RequiredTransferID)
	}
	if order.Status == orders.StatusCancelled {
		return Transfer{}, nil, fmt.Errorf("%w: order is cancelled", ErrInvalidState)
	}

	report, err := s.CheckAvailability(ctx, orderID)
	if err != nil {
		return Transfer{}, nil, err
	}
	if report.HasAllStock {
		return Transfer{}, nil, ErrNoShortfall
	}

	sourceID, picks := pickSource(report.Shortfalls)
	if sourceID == 0 {
		return Transfer{}, nil, ErrNoCandidates
	}

	transfer := Transfer{
		FromWarehouseID: sourceID,
		ToWarehouseID:   report.WarehouseID,
		Status:          StatusDraft,
		IsAutoProposed:  true,
		Note:            fmt.Sprintf("Auto-proposed for order %s", order.Number),
		CreatedBy:       actorID,
	}
	items := make([]TransferItem, 0, len(picks))
	for _, pick := range picks {
		items = append(items, TransferItem{
			ItemID:   pick.itemID,
			SKU:      pick.sku,
			Quantity: pick.quantity,
		})
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
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
		for i := range items {
			items[i].TransferID = id
			itemID, err := tx.InsertTransferItem(ctx, items[i])
			if err != nil {
				return err
			}
			items[i].ID = itemID
		}
		return tx.MarkOrderWaiting(ctx, orderID, id)
	})
	if err != nil {
		return Transfer{}, nil, err
	}

	if s.logger != nil {
		s.logger.Info("transfer proposed",
			slog.Int64("order_id", orderID),
			slog.Int64("transfer_id", transfer.ID),
			slog.String("number", transfer.Number),
			slog.Int64("from_warehouse_id", sourceID),
			slog.Int("items", len(items)))
	}
	s.recordAudit(ctx, actorID, "TRANSFER_PROPOSE", transfer.ID, map[string]any{
		"number":   transfer.Number,
		"order_id": orderID,
	})
	return transfer, items, nil
}

type pick struct {
	itemID   int64
	sku      string
	quantity float64
}

// pickSource scores each candidate warehouse by the total shortfall quantity
// it can cover and returns the best one with the per-item quantities to move.
// Per item the quantity is min(missing, available at the source). Ties break
// on the lower warehouse id so the choice is stable.
func pickSource(shortfalls []Shortfall) (int64, []pick) {
	coverage := make(map[int64]float64)
	for _, shortfall := range shortfalls {
		for _, candidate := range shortfall.Candidates {
			qty := candidate.Available
			if qty > shortfall.Missing {
				qty = shortfall.Missing
			}
			coverage[candidate.WarehouseID] += qty
		}
	}
	var bestID int64
	var bestScore float64
	for warehouseID, score := range coverage {
		if score > bestScore+qtyEpsilon ||
			(score > bestScore-qtyEpsilon && (bestID == 0 || warehouseID < bestID)) {
			bestID = warehouseID
			bestScore = score
		}
	}
	if bestID == 0 || bestScore < qtyEpsilon {
		return 0, nil
	}
	var picks []pick
	for _, shortfall := range shortfalls {
		for _, candidate := range shortfall.Candidates {
			if candidate.WarehouseID != bestID || candidate.Available < qtyEpsilon {
				continue
			}
			qty := shortfall.Missing
			if candidate.Available < qty {
				qty = candidate.Available
			}
			picks = append(picks, pick{itemID: shortfall.ItemID, sku: shortfall.SKU, quantity: qty})
		}
	}
	return bestID, picks
}
