// Package store opens the backing stores repositories run on.
package store

import (
	"context"

	"gorm.io/gorm"
)

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// GormProvider is implemented by the relational adapters. The session it
// returns backs repository.NewGormRepository.
type GormProvider interface {
	Gorm() *gorm.DB
}
