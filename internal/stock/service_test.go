package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	items     map[int64]Item
	balances  map[int64][]Balance
	movements []Movement
}

func (f *fakeRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := f.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (f *fakeRepo) ListBalances(ctx context.Context, itemID int64) ([]Balance, error) {
	return f.balances[itemID], nil
}

func (f *fakeRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range f.movements {
		if filter.ItemID != 0 && m.ItemID != filter.ItemID {
			continue
		}
		if filter.WarehouseID != 0 && m.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.TransferID != 0 && m.TransferID != filter.TransferID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func TestItemBalancesReturnsItemWithBalances(t *testing.T) {
	repo := &fakeRepo{
		items: map[int64]Item{10: {ID: 10, SKU: "WIDGET", CurrentStock: 25}},
		balances: map[int64][]Balance{10: {
			{WarehouseID: 1, ItemID: 10, CurrentStock: 20},
			{WarehouseID: 2, ItemID: 10, CurrentStock: 5},
		}},
	}
	svc := NewService(repo)

	item, balances, err := svc.ItemBalances(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, "WIDGET", item.SKU)
	require.Len(t, balances, 2)

	var total float64
	for _, b := range balances {
		total += b.CurrentStock
	}
	require.InDelta(t, item.CurrentStock, total, 1e-9)
}

func TestItemBalancesValidatesID(t *testing.T) {
	svc := NewService(&fakeRepo{})
	_, _, err := svc.ItemBalances(context.Background(), 0)
	require.Error(t, err)
}

func TestItemBalancesUnknownItem(t *testing.T) {
	svc := NewService(&fakeRepo{items: map[int64]Item{}})
	_, _, err := svc.ItemBalances(context.Background(), 99)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestMovementsRequiresFilter(t *testing.T) {
	svc := NewService(&fakeRepo{})
	_, err := svc.Movements(context.Background(), MovementFilter{})
	require.Error(t, err)
}

func TestMovementsFiltersByTransfer(t *testing.T) {
	repo := &fakeRepo{movements: []Movement{
		{ID: 1, ItemID: 10, WarehouseID: 2, TransferID: 5, Quantity: -3},
		{ID: 2, ItemID: 10, WarehouseID: 1, TransferID: 5, Quantity: 3},
		{ID: 3, ItemID: 11, WarehouseID: 1, TransferID: 6, Quantity: 1},
	}}
	svc := NewService(repo)

	moves, err := svc.Movements(context.Background(), MovementFilter{TransferID: 5})
	require.NoError(t, err)
	require.Len(t, moves, 2)

	var sum float64
	for _, m := range moves {
		sum += m.Quantity
	}
	require.Zero(t, sum)
}
