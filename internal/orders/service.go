package orders

import (
	"context"
	"errors"
	"log/slog"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Order, []Line, error)
	ReleaseBlocked(ctx context.Context, transferID int64) (int64, error)
}

// Service exposes the order boundary consumed by the transfer engine.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, []Line, error) {
	if id <= 0 {
		return Order{}, nil, errors.New("orders: order id required")
	}
	return s.repo.Get(ctx, id)
}

// ReleaseBlocked re-queues orders that were waiting on the completed
// transfer. Orders changed by an operator in the meantime keep their status.
func (s *Service) ReleaseBlocked(ctx context.Context, transferID int64) (int64, error) {
	if transferID <= 0 {
		return 0, errors.New("orders: transfer id required")
	}
	released, err := s.repo.ReleaseBlocked(ctx, transferID)
	if err != nil {
		return 0, err
	}
	if s.logger != nil && released > 0 {
		s.logger.Info("released blocked orders",
			slog.Int64("transfer_id", transferID),
			slog.Int64("count", released))
	}
	return released, nil
}
