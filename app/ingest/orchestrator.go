package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/price-comb/app/cfg"
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/discovery"
	"github.com/lysyi3m/price-comb/app/download"
	"github.com/lysyi3m/price-comb/app/pricefile"
	"github.com/lysyi3m/price-comb/app/sources"
)

// Orchestrator drives the pipeline: a bounded worker pool processes
// retailer sources in parallel; within one source files are handled
// sequentially so ledger writes stay ordered and only one decompressed
// payload is resident per worker.
type Orchestrator struct {
	productRepo database.ProductRepository
	ledgerRepo  database.LedgerRepository
	storeRepo   database.StoreRepository
	parser      *pricefile.Parser

	userAgent   string
	workerCount int
	batchSize   int
	force       bool
	maxPages    int
	daysBack    int

	// Factories so tests can substitute the network-facing pieces.
	discovererFor func(source *sources.Source) FileDiscoverer
	fetcherFor    func(source *sources.Source) FileFetcher
}

func NewOrchestrator(productRepo database.ProductRepository, ledgerRepo database.LedgerRepository,
	storeRepo database.StoreRepository, httpClient *http.Client) *Orchestrator {
	c := cfg.Get()

	o := &Orchestrator{
		productRepo: productRepo,
		ledgerRepo:  ledgerRepo,
		storeRepo:   storeRepo,
		parser:      pricefile.NewParser(),
		userAgent:   c.UserAgent,
		workerCount: c.WorkerCount,
		batchSize:   c.BatchSize,
		force:       c.Force,
		maxPages:    c.MaxPages,
		daysBack:    c.DaysBack,
	}

	o.discovererFor = func(source *sources.Source) FileDiscoverer {
		return discovery.NewDiscoverer(source, httpClient, o.userAgent, o.maxPages)
	}
	o.fetcherFor = func(source *sources.Source) FileFetcher {
		timeout := time.Duration(source.Settings.Timeout) * time.Second
		return download.NewDownloader(httpClient, o.userAgent, source.Headers, timeout)
	}

	return o
}

// Run processes the given sources and returns aggregated statistics.
// Cancellation stops new sources and new files from starting; an upsert
// batch already in flight commits atomically before its worker exits.
func (o *Orchestrator) Run(ctx context.Context, srcs []*sources.Source) *RunStats {
	jobs := make(chan *sources.Source)
	results := make(chan *SourceStats, len(srcs))

	var wg sync.WaitGroup
	for i := 0; i < o.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for source := range jobs {
				results <- o.processSource(ctx, source)
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for _, source := range srcs {
			select {
			case <-ctx.Done():
				slog.Warn("Run cancelled, not launching remaining sources")
				return
			case jobs <- source:
			}
		}
	}()

	wg.Wait()
	close(results)

	stats := &RunStats{}
	for s := range results {
		stats.Sources = append(stats.Sources, s)
	}
	sort.Slice(stats.Sources, func(i, j int) bool {
		return stats.Sources[i].Source < stats.Sources[j].Source
	})

	total := stats.Totals()
	slog.Info("Run finished",
		"sources", len(stats.Sources),
		"files_discovered", total.FilesDiscovered,
		"files_skipped", total.FilesSkipped,
		"files_discarded", total.FilesDiscarded,
		"files_succeeded", total.FilesSucceeded,
		"files_failed", total.FilesFailed,
		"items_seen", total.ItemsSeen,
		"price_rows", total.Upserts.PriceRows)

	return stats
}

func (o *Orchestrator) processSource(ctx context.Context, source *sources.Source) *SourceStats {
	stats := &SourceStats{Source: source.Name}
	started := time.Now()

	cutoff := o.cutoffFor(source)
	descriptors, err := o.discovererFor(source).Run(ctx, cutoff)
	if err != nil {
		slog.Error("Discovery failed", "source", source.Name, "error", err)
		stats.DiscoveryErr = err
		return stats
	}

	stats.FilesDiscovered = len(descriptors)
	fetcher := o.fetcherFor(source)

	for _, desc := range descriptors {
		select {
		case <-ctx.Done():
			slog.Warn("Source processing cancelled", "source", source.Name,
				"remaining_files", stats.FilesDiscovered-stats.FilesSkipped-stats.FilesSucceeded-stats.FilesFailed-stats.FilesDiscarded)
			return stats
		default:
		}

		o.processFile(ctx, source, fetcher, desc, stats)
	}

	slog.Info("Source completed",
		"source", source.Name,
		"duration", time.Since(started).Round(time.Millisecond).String(),
		"discovered", stats.FilesDiscovered,
		"skipped", stats.FilesSkipped,
		"discarded", stats.FilesDiscarded,
		"succeeded", stats.FilesSucceeded,
		"failed", stats.FilesFailed,
		"items", stats.ItemsSeen,
		"unparsed_prices", stats.UnparsedPrice)

	return stats
}

// processFile walks one file through the ledger gate, download, parse and
// upsert. Failures are absorbed into stats; they never abort sibling
// files or sources.
func (o *Orchestrator) processFile(ctx context.Context, source *sources.Source,
	fetcher FileFetcher, desc discovery.FileDescriptor, stats *SourceStats) {

	// Force mode bypasses only the read gate; ledger history stays put.
	if !o.force {
		processed, err := o.ledgerRepo.IsProcessed(ctx, source.RetailerID, desc.Filename)
		if err != nil {
			slog.Error("Ledger check failed", "source", source.Name, "file", desc.Filename, "error", err)
			stats.FilesFailed++
			return
		}
		if processed {
			stats.FilesSkipped++
			return
		}
	}

	payload, err := fetcher.Fetch(ctx, desc)
	if err != nil {
		slog.Error("Download failed", "source", source.Name, "file", desc.Filename, "error", err)
		o.markFailed(ctx, source, desc)
		stats.FilesFailed++
		return
	}

	// Filtered-scan listings mix chains; filenames can claim a chain the
	// document does not contain.
	if source.Discovery.Strategy == sources.StrategyFilteredScan &&
		!pricefile.VerifyChain(payload.Data, source.ChainID, source.Discovery.SubChainID) {
		slog.Debug("File belongs to another chain, discarding", "source", source.Name, "file", desc.Filename)
		o.markIngested(ctx, source, desc, 0)
		stats.FilesDiscarded++
		return
	}

	records, report, err := o.parser.Run(payload.Data, desc)
	if err != nil {
		slog.Error("Parse failed", "source", source.Name, "file", desc.Filename, "error", err)
		o.markFailed(ctx, source, desc)
		stats.FilesFailed++
		return
	}
	stats.addReport(report)

	// The batch in flight must land atomically even when the run is being
	// cancelled, so persistence runs on an uncancelable context.
	upsertCtx := context.WithoutCancel(ctx)

	if err := o.storeRepo.EnsureStores(upsertCtx, source.RetailerID, storeCodes(records), source.DisplayName); err != nil {
		slog.Error("Store provisioning failed", "source", source.Name, "file", desc.Filename, "error", err)
		o.markFailed(ctx, source, desc)
		stats.FilesFailed++
		return
	}

	var fileResult database.UpsertResult
	for start := 0; start < len(records); start += o.batchSize {
		end := start + o.batchSize
		if end > len(records) {
			end = len(records)
		}

		result, err := o.productRepo.ApplyBatch(upsertCtx, records[start:end])
		if err != nil {
			slog.Error("Upsert batch failed", "source", source.Name, "file", desc.Filename,
				"batch_start", start, "error", err)
			o.markFailed(ctx, source, desc)
			stats.FilesFailed++
			return
		}
		fileResult = fileResult.Add(result)
	}

	o.markIngested(ctx, source, desc, fileResult.PriceRows)
	stats.Upserts = stats.Upserts.Add(fileResult)
	stats.FilesSucceeded++

	slog.Info("File ingested",
		"source", source.Name,
		"file", desc.Filename,
		"items", report.ItemsSeen,
		"with_barcode", report.WithBarcode,
		"unparsed_prices", report.UnparsedPrice,
		"price_rows", fileResult.PriceRows)
}

// markIngested writes the ledger row only after all batch work committed.
func (o *Orchestrator) markIngested(ctx context.Context, source *sources.Source, desc discovery.FileDescriptor, rows int) {
	err := o.ledgerRepo.MarkProcessed(context.WithoutCancel(ctx), source.RetailerID, desc.Filename, database.OutcomeSuccess, rows)
	if err != nil {
		slog.Error("Ledger write failed", "source", source.Name, "file", desc.Filename, "error", err)
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, source *sources.Source, desc discovery.FileDescriptor) {
	err := o.ledgerRepo.MarkProcessed(context.WithoutCancel(ctx), source.RetailerID, desc.Filename, database.OutcomeFailed, 0)
	if err != nil {
		slog.Error("Ledger write failed", "source", source.Name, "file", desc.Filename, "error", err)
	}
}

func (o *Orchestrator) cutoffFor(source *sources.Source) time.Time {
	daysBack := o.daysBack
	if source.Settings.DaysBack > 0 {
		daysBack = source.Settings.DaysBack
	}
	if daysBack <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().AddDate(0, 0, -daysBack)
}

func storeCodes(records []pricefile.Record) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, rec := range records {
		if rec.StoreCode == "" || seen[rec.StoreCode] {
			continue
		}
		seen[rec.StoreCode] = true
		codes = append(codes, rec.StoreCode)
	}
	sort.Strings(codes)
	return codes
}
