package senior

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Senior entities.
type Repository interface {
	// Upsert creates the senior or, when the phone number is already enrolled,
	// updates its language and active flag.
	Upsert(ctx context.Context, s *Senior) error
	GetByID(ctx context.Context, id int64) (*Senior, error)
	GetByPhone(ctx context.Context, phone string) (*Senior, error)
	Update(ctx context.Context, s *Senior) error // only IsActive and Language are mutable
	ListActive(ctx context.Context) ([]*Senior, error)
	ListAll(ctx context.Context) ([]*Senior, error)
}
