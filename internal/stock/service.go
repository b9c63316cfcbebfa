package stock

import (
	"context"
	"errors"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	GetItem(ctx context.Context, id int64) (Item, error)
	ListBalances(ctx context.Context, itemID int64) ([]Balance, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// Service exposes read access to the stock ledger.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ItemBalances returns the item plus its per-warehouse balances.
func (s *Service) ItemBalances(ctx context.Context, itemID int64) (Item, []Balance, error) {
	if itemID <= 0 {
		return Item{}, nil, errors.New("stock: item id required")
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, nil, err
	}
	balances, err := s.repo.ListBalances(ctx, itemID)
	if err != nil {
		return Item{}, nil, err
	}
	return item, balances, nil
}

// Movements lists ledger entries matching the filter.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ItemID == 0 && filter.WarehouseID == 0 && filter.TransferID == 0 {
		return nil, errors.New("stock: movement filter requires item, warehouse or transfer")
	}
	return s.repo.ListMovements(ctx, filter)
}
