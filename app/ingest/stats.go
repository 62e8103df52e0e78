package ingest

import (
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/pricefile"
)

// SourceStats accumulates one source's run totals. Every discovered file
// lands in exactly one of skipped/discarded/succeeded/failed, and every
// parsed record is visible through the report counters.
type SourceStats struct {
	Source string

	DiscoveryErr error

	FilesDiscovered int
	FilesSkipped    int
	FilesDiscarded  int
	FilesSucceeded  int
	FilesFailed     int

	ItemsSeen       int
	WithBarcode     int
	UnparsedPrice   int
	MissingItemCode int

	Upserts database.UpsertResult
}

func (s *SourceStats) addReport(report *pricefile.Report) {
	s.ItemsSeen += report.ItemsSeen
	s.WithBarcode += report.WithBarcode
	s.UnparsedPrice += report.UnparsedPrice
	s.MissingItemCode += report.MissingItemCode
}

// Failed reports whether the source ended with nothing to show: either
// discovery broke, or files failed and none succeeded.
func (s *SourceStats) Failed() bool {
	if s.DiscoveryErr != nil {
		return true
	}
	return s.FilesFailed > 0 && s.FilesSucceeded == 0
}

type RunStats struct {
	Sources []*SourceStats
}

// Failed implements the run-level exit policy: any source that ended
// Failed with zero succeeded files fails the run.
func (r *RunStats) Failed() bool {
	for _, s := range r.Sources {
		if s.Failed() {
			return true
		}
	}
	return false
}

func (r *RunStats) Totals() SourceStats {
	var total SourceStats
	for _, s := range r.Sources {
		total.FilesDiscovered += s.FilesDiscovered
		total.FilesSkipped += s.FilesSkipped
		total.FilesDiscarded += s.FilesDiscarded
		total.FilesSucceeded += s.FilesSucceeded
		total.FilesFailed += s.FilesFailed
		total.ItemsSeen += s.ItemsSeen
		total.WithBarcode += s.WithBarcode
		total.UnparsedPrice += s.UnparsedPrice
		total.MissingItemCode += s.MissingItemCode
		total.Upserts = total.Upserts.Add(s.Upserts)
	}
	return total
}
