package database

import (
	"context"
	"fmt"
)

var _ StoreRepository = (*StoreRepo)(nil)

type StoreRepo struct {
	db *DB
}

func NewStoreRepo(db *DB) *StoreRepo {
	return &StoreRepo{db: db}
}

// EnsureStores creates placeholder rows for store codes seen in price
// files. Existing rows are left untouched; a store's real name arrives
// with later data and must not be clobbered by a placeholder.
func (r *StoreRepo) EnsureStores(ctx context.Context, retailerID int, storeCodes []string, displayName string) error {
	if len(storeCodes) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(storeCodes)*3)
	for _, code := range storeCodes {
		args = append(args, retailerID, code, fmt.Sprintf("%s Store %s", displayName, code))
	}

	query := fmt.Sprintf(`
		INSERT INTO stores (retailer_id, store_code, name)
		VALUES %s
		ON CONFLICT (retailer_id, store_code) DO NOTHING
	`, valuesPlaceholders(len(storeCodes), 3))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to ensure stores: %w", err)
	}

	return nil
}
