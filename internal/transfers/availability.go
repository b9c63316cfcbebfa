package transfers

import (
	"context"
	"errors"

	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/stock"
)

// Candidate is a warehouse that holds part of a missing item.
type Candidate struct {
	WarehouseID int64   `json:"warehouse_id"`
	Available   float64 `json:"available"`
}

// Shortfall describes one item the operational warehouse cannot cover.
// ItemID is zero when the order line's SKU resolves to no inventory item; in
// that case the whole requirement is missing and no candidates exist.
type Shortfall struct {
	ItemID     int64       `json:"item_id,omitempty"`
	SKU        string      `json:"sku"`
	Name       string      `json:"name,omitempty"`
	Required   float64     `json:"required"`
	Available  float64     `json:"available"`
	Missing    float64     `json:"missing"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// AvailabilityReport is the result of checking an order against the
// operational warehouse.
type AvailabilityReport struct {
	OrderID     int64       `json:"order_id"`
	WarehouseID int64       `json:"warehouse_id"`
	HasAllStock bool        `json:"has_all_stock"`
	Shortfalls  []Shortfall `json:"shortfalls,omitempty"`
}

type requirement struct {
	itemID   int64
	sku      string
	name     string
	required float64
	resolved bool
}

// CheckAvailability compares an order's aggregate demand against the
// operational warehouse and reports per-item shortfalls with candidate source
// warehouses. Read only; no state changes.
func (s *Service) CheckAvailability(ctx context.Context, orderID int64) (AvailabilityReport, error) {
	order, lines, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return AvailabilityReport{}, err
	}
	operational, err := s.warehouses.Operational(ctx)
	if err != nil {
		return AvailabilityReport{}, err
	}

	requirements, err := s.aggregateDemand(ctx, lines)
	if err != nil {
		return AvailabilityReport{}, err
	}

	report := AvailabilityReport{
		OrderID:     order.ID,
		WarehouseID: operational.ID,
		HasAllStock: true,
	}
	for _, req := range requirements {
		if !req.resolved {
			// Unresolvable lines can never be fulfilled from stock, so the
			// report treats the full quantity as missing.
			report.HasAllStock = false
			report.Shortfalls = append(report.Shortfalls, Shortfall{
				SKU:      req.sku,
				Required: req.required,
				Missing:  req.required,
			})
			continue
		}
		available, err := s.stock.Balance(ctx, operational.ID, req.itemID)
		if err != nil {
			return AvailabilityReport{}, err
		}
		if available+qtyEpsilon >= req.required {
			continue
		}
		report.HasAllStock = false
		shortfall := Shortfall{
			ItemID:    req.itemID,
			SKU:       req.sku,
			Name:      req.name,
			Required:  req.required,
			Available: available,
			Missing:   req.required - available,
		}
		sources, err := s.stock.CandidateSources(ctx, req.itemID, operational.ID)
		if err != nil {
			return AvailabilityReport{}, err
		}
		for _, source := range sources {
			shortfall.Candidates = append(shortfall.Candidates, Candidate{
				WarehouseID: source.WarehouseID,
				Available:   source.CurrentStock,
			})
		}
		report.Shortfalls = append(report.Shortfalls, shortfall)
	}
	return report, nil
}

// aggregateDemand sums order line quantities per inventory item. Lines whose
// item link is missing resolve through the SKU; lines that resolve nowhere
// stay keyed by SKU with resolved=false.
func (s *Service) aggregateDemand(ctx context.Context, lines []orders.Line) ([]requirement, error) {
	byItem := make(map[int64]int)
	bySKU := make(map[string]int)
	var out []requirement
	for _, line := range lines {
		item, err := s.stock.ResolveItem(ctx, line.ItemID, line.SKU)
		if err != nil {
			if errors.Is(err, stock.ErrItemNotFound) {
				if idx, ok := bySKU[line.SKU]; ok {
					out[idx].required += line.Quantity
					continue
				}
				out = append(out, requirement{sku: line.SKU, required: line.Quantity})
				bySKU[line.SKU] = len(out) - 1
				continue
			}
			return nil, err
		}
		if idx, ok := byItem[item.ID]; ok {
			out[idx].required += line.Quantity
			continue
		}
		out = append(out, requirement{
			itemID:   item.ID,
			sku:      item.SKU,
			name:     item.Name,
			required: line.Quantity,
			resolved: true,
		})
		byItem[item.ID] = len(out) - 1
	}
	return out, nil
}
