package discovery

import (
	"regexp"
	"time"
)

// FileDescriptor identifies one published price file on a retailer portal.
// Filename is the stable dedup key; URL may carry a short-lived signature
// and is only valid for the current run.
type FileDescriptor struct {
	URL        string
	Filename   string
	RetailerID int
	SourceName string

	// DeclaredAt is parsed from the filename's embedded timestamp when
	// present, nil otherwise.
	DeclaredAt *time.Time

	// StoreCode is taken from the ChainId-StoreId-Timestamp filename
	// pattern when present.
	StoreCode string
}

var (
	timestampRe = regexp.MustCompile(`-(\d{8})(\d{4})?`)
	storeCodeRe = regexp.MustCompile(`^[A-Za-z]+(\d{13})-(\d{1,4})-`)
)

// parseDeclaredTimestamp extracts the publication timestamp portals embed
// in filenames, e.g. PriceFull7290172900007-001-202609150830.gz.
func parseDeclaredTimestamp(filename string) *time.Time {
	m := timestampRe.FindStringSubmatch(filename)
	if m == nil {
		return nil
	}

	layout, value := "20060102", m[1]
	if m[2] != "" {
		layout, value = "200601021504", m[1]+m[2]
	}

	ts, err := time.Parse(layout, value)
	if err != nil {
		return nil
	}
	return &ts
}

func extractStoreCode(filename string) string {
	m := storeCodeRe.FindStringSubmatch(filename)
	if m == nil {
		return ""
	}
	return m[2]
}
