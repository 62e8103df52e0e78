package database

import (
	"time"
)

type CanonicalProduct struct {
	Barcode       string
	Name          *string
	Brand         *string
	LastScrapedAt time.Time
}

type RetailerProduct struct {
	RetailerID       int
	RetailerItemCode string
	Barcode          *string
	OriginalName     string
	UpdatedAt        time.Time
}

type Store struct {
	RetailerID int
	StoreCode  string
	Name       string
	Address    string
	City       string
	IsActive   bool
}

type ProcessedFile struct {
	RetailerID  int
	FileKey     string
	ProcessedAt time.Time
	Outcome     string
	RowsAdded   int
}

// Processed file outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// UpsertResult reports what one batch changed.
type UpsertResult struct {
	CanonicalUpserts int
	RetailerUpserts  int
	PriceRows        int
}

func (r UpsertResult) Add(other UpsertResult) UpsertResult {
	return UpsertResult{
		CanonicalUpserts: r.CanonicalUpserts + other.CanonicalUpserts,
		RetailerUpserts:  r.RetailerUpserts + other.RetailerUpserts,
		PriceRows:        r.PriceRows + other.PriceRows,
	}
}
