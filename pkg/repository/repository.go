// Package repository defines the generic soft-delete repository contract and
// its relational implementation on GORM. The document implementation lives in
// the document subpackage.
package repository

import (
	"context"

	"github.com/nimburion/repokit/pkg/query"
	"github.com/nimburion/repokit/pkg/result"
)

// Messages carried by repository results. Both backends use the same text.
const (
	MsgItemNull       = "Item is null"
	MsgItemsEmpty     = "Items list is null or empty"
	MsgIDNull         = "Id is null"
	MsgItemNotFound   = "Item not found"
	MsgListNotFound   = "Item list not found or empty"
	MsgNotFoundOrGone = "Item not found or already deleted"
	MsgAdded          = "Add new item successfully"
	MsgAddedMany      = "Add new items successfully"
	MsgFound          = "Get item by Id successfully"
	MsgListed         = "Get item list successfully"
	MsgPaged          = "Retrieve data successfully"
	MsgRemoved        = "Deleted item successfully"
	MsgSoftRemoved    = "Soft deleted item successfully"
	MsgUpdated        = "Updated item successfully"
)

const (
	actionAdd        = "adding new item"
	actionAddMany    = "adding new items"
	actionGetByID    = "getting item by Id"
	actionGetList    = "getting item list"
	actionRemove     = "deleting item"
	actionSoftRemove = "soft deleting item"
	actionUpdate     = "updating item"
	actionCount      = "counting items"
)

// Operation names used in logs and metrics.
const (
	OpAddItem        = "AddItem"
	OpAddManyItems   = "AddManyItems"
	OpGetByID        = "GetByID"
	OpGetByFilter    = "GetByFilter"
	OpGetPaging      = "GetPaging"
	OpRemoveItem     = "RemoveItem"
	OpSoftRemoveItem = "SoftRemoveItem"
	OpUpdateItem     = "UpdateItem"
	OpCount          = "Count"
)

// Action returns the "Error while ..." phrase for an operation.
func Action(op string) string {
	switch op {
	case OpAddItem:
		return actionAdd
	case OpAddManyItems:
		return actionAddMany
	case OpGetByID:
		return actionGetByID
	case OpGetByFilter, OpGetPaging:
		return actionGetList
	case OpRemoveItem:
		return actionRemove
	case OpSoftRemoveItem:
		return actionSoftRemove
	case OpUpdateItem:
		return actionUpdate
	case OpCount:
		return actionCount
	default:
		return op
	}
}

// Repository is the uniform data-access contract over one entity type.
// Only live records (IsDeleted == false) are visible to reads, updates and
// soft-deletes; RemoveItem deletes regardless.
type Repository[T any] interface {
	AddItem(ctx context.Context, item *T) result.Ack
	AddManyItems(ctx context.Context, items []*T) result.Ack
	GetByID(ctx context.Context, id string) result.Result[*T]
	// GetByFilter returns every live record matching filter. A nil filter
	// matches everything. include names related collections to attach.
	GetByFilter(ctx context.Context, filter query.Predicate, include ...string) result.Result[[]*T]
	// GetPaging translates search, orders and pages the live matches. An
	// empty page is a success.
	GetPaging(ctx context.Context, search query.SearchSpec, page query.PageRequest) result.Result[[]*T]
	RemoveItem(ctx context.Context, id string) result.Ack
	SoftRemoveItem(ctx context.Context, id string) result.Ack
	UpdateItem(ctx context.Context, id string, item *T) result.Ack
	// Count returns the number of pages of pageSize live matches. Every
	// failure wraps result.ErrInvalidArgument.
	Count(ctx context.Context, search query.SearchSpec, pageSize int) (int64, error)
	Capabilities() Capabilities
}

// Capabilities describes how a backend interprets the shared contract.
type Capabilities struct {
	// Backend names the implementation, e.g. "gorm" or "mongodb".
	Backend string
	// PatternMatch is true when free-text criteria match substrings. When
	// false they compare for equality.
	PatternMatch bool
	// Include is true when related collections can be attached to results.
	Include bool
	// OptimisticLocking is true when Versioned entities are checked on update.
	OptimisticLocking bool
}
