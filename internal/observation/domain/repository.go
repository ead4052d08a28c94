package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists observations. Rows are append-only.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, obs *Observation) error
	List(ctx context.Context, db *gorm.DB) ([]Observation, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
