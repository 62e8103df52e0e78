package pricefile

import (
	"time"
)

// Record is the normalized unit of ingestion, one priced item observation
// from one store. Barcode stays empty when the retailer's item code is
// not a plausible barcode and no explicit barcode element is present;
// such records are still keyed by (retailer, item code).
type Record struct {
	RetailerID       int
	RetailerItemCode string
	Barcode          string
	Name             string
	Brand            string
	PriceAmount      *float64
	Currency         string
	StoreCode        string
	ObservedAt       time.Time
}

// Report carries the parse counters a run must never swallow.
type Report struct {
	ItemsSeen       int
	WithBarcode     int
	UnparsedPrice   int
	MissingItemCode int
}
