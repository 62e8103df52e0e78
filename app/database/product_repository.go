package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/price-comb/app/pricefile"
)

var _ ProductRepository = (*ProductRepo)(nil)

// ProductRepo is the upsert engine. Each batch runs in one transaction:
// canonical identity upsert, retailer product upsert, then a price
// observation append. A failure anywhere rolls the whole batch back.
type ProductRepo struct {
	db *DB
}

func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) ApplyBatch(ctx context.Context, records []pricefile.Record) (UpsertResult, error) {
	var result UpsertResult
	if len(records) == 0 {
		return result, nil
	}

	canonical := dedupCanonical(records)
	retailer := dedupRetailer(records)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.upsertCanonical(ctx, tx, canonical); err != nil {
		return result, fmt.Errorf("failed to upsert canonical products: %w", err)
	}
	if err := r.upsertRetailer(ctx, tx, retailer); err != nil {
		return result, fmt.Errorf("failed to upsert retailer products: %w", err)
	}
	if err := r.appendPrices(ctx, tx, records); err != nil {
		return result, fmt.Errorf("failed to append prices: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit batch: %w", err)
	}

	result.CanonicalUpserts = len(canonical)
	result.RetailerUpserts = len(retailer)
	result.PriceRows = len(records)
	return result, nil
}

// dedupCanonical collapses a batch to one row per barcode; a single
// INSERT ... ON CONFLICT may not touch the same row twice. The first
// record wins, with empty name/brand backfilled from later duplicates.
func dedupCanonical(records []pricefile.Record) []pricefile.Record {
	index := make(map[string]int)
	var out []pricefile.Record

	for _, rec := range records {
		if rec.Barcode == "" {
			continue
		}
		if i, ok := index[rec.Barcode]; ok {
			if out[i].Name == "" {
				out[i].Name = rec.Name
			}
			if out[i].Brand == "" {
				out[i].Brand = rec.Brand
			}
			continue
		}
		index[rec.Barcode] = len(out)
		out = append(out, rec)
	}

	return out
}

// dedupRetailer keeps the last record per (retailer, item code), matching
// the latest-feed-wins conflict rule.
func dedupRetailer(records []pricefile.Record) []pricefile.Record {
	index := make(map[string]int)
	var out []pricefile.Record

	for _, rec := range records {
		key := fmt.Sprintf("%d|%s", rec.RetailerID, rec.RetailerItemCode)
		if i, ok := index[key]; ok {
			out[i] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}

	return out
}

func (r *ProductRepo) upsertCanonical(ctx context.Context, tx *sql.Tx, records []pricefile.Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	args := make([]interface{}, 0, len(records)*4)
	for _, rec := range records {
		args = append(args, rec.Barcode, nullString(rec.Name), nullString(rec.Brand), now)
	}

	_, err := tx.ExecContext(ctx, canonicalUpsertQuery(len(records)), args...)
	return err
}

// canonicalUpsertQuery merges identity rows: an existing non-null
// name/brand is kept over the incoming value, and the seen timestamp is
// always refreshed.
func canonicalUpsertQuery(rows int) string {
	return fmt.Sprintf(`
		INSERT INTO canonical_products (barcode, name, brand, last_scraped_at)
		VALUES %s
		ON CONFLICT (barcode) DO UPDATE SET
			name = COALESCE(canonical_products.name, EXCLUDED.name),
			brand = COALESCE(canonical_products.brand, EXCLUDED.brand),
			last_scraped_at = EXCLUDED.last_scraped_at
	`, valuesPlaceholders(rows, 4))
}

func (r *ProductRepo) upsertRetailer(ctx context.Context, tx *sql.Tx, records []pricefile.Record) error {
	if len(records) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(records)*4)
	for _, rec := range records {
		args = append(args, rec.RetailerID, rec.RetailerItemCode, nullString(rec.Barcode), rec.Name)
	}

	_, err := tx.ExecContext(ctx, retailerUpsertQuery(len(records)), args...)
	return err
}

// retailerUpsertQuery overwrites the retailer's local view on conflict:
// the latest feed's barcode and name win.
func retailerUpsertQuery(rows int) string {
	return fmt.Sprintf(`
		INSERT INTO retailer_products (retailer_id, retailer_item_code, barcode, original_name)
		VALUES %s
		ON CONFLICT (retailer_id, retailer_item_code) DO UPDATE SET
			barcode = EXCLUDED.barcode,
			original_name = EXCLUDED.original_name,
			updated_at = NOW()
	`, valuesPlaceholders(rows, 4))
}

// appendPrices inserts one observation row per record. Price history is
// never upserted; rerun protection lives in the file ledger.
func (r *ProductRepo) appendPrices(ctx context.Context, tx *sql.Tx, records []pricefile.Record) error {
	if len(records) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(records)*6)
	for _, rec := range records {
		args = append(args, rec.RetailerID, rec.RetailerItemCode, rec.StoreCode,
			nullFloat(rec.PriceAmount), rec.Currency, rec.ObservedAt)
	}

	_, err := tx.ExecContext(ctx, priceInsertQuery(len(records)), args...)
	return err
}

// priceInsertQuery is a plain append: no conflict clause, so every
// observation lands as its own history row.
func priceInsertQuery(rows int) string {
	return fmt.Sprintf(`
		INSERT INTO prices (retailer_id, retailer_item_code, store_code, price_amount, currency, observed_at)
		VALUES %s
	`, valuesPlaceholders(rows, 6))
}

// valuesPlaceholders renders "($1, $2), ($3, $4), ..." for a multi-row
// insert of rows x cols parameters.
func valuesPlaceholders(rows, cols int) string {
	var b strings.Builder
	n := 1
	for row := 0; row < rows; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for col := 0; col < cols; col++ {
			if col > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
