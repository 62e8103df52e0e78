package database

import (
	"context"

	"github.com/lysyi3m/price-comb/app/pricefile"
)

// ProductRepository applies normalized price records to the product and
// price tables. Implementations must make each batch atomic.
type ProductRepository interface {
	ApplyBatch(ctx context.Context, records []pricefile.Record) (UpsertResult, error)
}

// LedgerRepository is the idempotency gate: a file whose key is recorded
// with a success outcome is skipped on later runs.
type LedgerRepository interface {
	IsProcessed(ctx context.Context, retailerID int, fileKey string) (bool, error)
	MarkProcessed(ctx context.Context, retailerID int, fileKey, outcome string, rowsAdded int) error
}

// StoreRepository provisions stores on first sight; price files reference
// stores that no other feed declares upfront.
type StoreRepository interface {
	EnsureStores(ctx context.Context, retailerID int, storeCodes []string, displayName string) error
}
