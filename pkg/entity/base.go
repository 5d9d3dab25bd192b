// Package entity defines the lifecycle fields every stored record carries.
package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyID is returned when an identifier is blank or the nil UUID.
var ErrEmptyID = errors.New("id is empty")

// Base holds identity and lifecycle fields. Embed it in every stored entity;
// document entities must embed it with `bson:",inline"`.
type Base struct {
	ID        string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime:false" bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime:false" bson:"updatedAt" json:"updated_at"`
	DeletedAt *time.Time `bson:"deletedAt,omitempty" json:"deleted_at,omitempty"`
	IsDeleted bool       `gorm:"not null;default:false;index" bson:"isDeleted" json:"is_deleted"`
}

// Entity is satisfied by any pointer to a struct embedding Base.
type Entity interface {
	EntityBase() *Base
}

// Pointer constrains PT to be *T and to expose the embedded Base.
type Pointer[T any] interface {
	*T
	Entity
}

// EntityBase returns the receiver.
func (b *Base) EntityBase() *Base {
	return b
}

// NewBase returns a live Base with a fresh identifier and both stamps set to now.
func NewBase(clock Clock, ids IDGenerator) Base {
	now := clock.Now()
	return Base{
		ID:        ids.NewID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Stamp fills a missing identifier and zero timestamps. Values already set
// by the caller are kept.
func (b *Base) Stamp(clock Clock, ids IDGenerator) {
	if strings.TrimSpace(b.ID) == "" {
		b.ID = ids.NewID()
	}
	now := clock.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
}

// Live reports whether the record is visible to default queries.
func (b *Base) Live() bool {
	return !b.IsDeleted
}

// ValidateID rejects blank identifiers and the nil UUID.
func ValidateID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || trimmed == uuid.Nil.String() {
		return ErrEmptyID
	}
	return nil
}
