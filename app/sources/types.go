package sources

// Strategy selects how price files are discovered on a retailer portal.
type Strategy string

const (
	// StrategyDirectFeed walks the portal's own paginated file index.
	StrategyDirectFeed Strategy = "direct_feed"
	// StrategyFilteredScan pages through a shared portal listing and keeps
	// only files carrying the source's chain identifier.
	StrategyFilteredScan Strategy = "filtered_scan"
)

// Source is one retailer chain's configuration. Loaded once at startup
// and never mutated afterwards.
type Source struct {
	Name        string            // Derived from filename (without .yml extension)
	RetailerID  int               `yaml:"retailer_id"`
	ChainID     string            `yaml:"chain_id"`
	DisplayName string            `yaml:"display_name"`
	Discovery   Discovery         `yaml:"discovery"`
	Headers     map[string]string `yaml:"headers"`
	Settings    Settings          `yaml:"settings"`
}

type Discovery struct {
	Strategy   Strategy `yaml:"strategy"`
	ListingURL string   `yaml:"listing_url"`

	// FilePrefix selects the file kind to ingest, e.g. "PriceFull".
	// Other kinds on the same listing (PromoFull, StoresFull) are excluded.
	FilePrefix string `yaml:"file_prefix"`

	// SubChainID narrows a filtered scan when several sub-chains publish
	// under the same chain id (empty means any).
	SubChainID string `yaml:"sub_chain_id"`

	// MinMatches lets a filtered scan stop early once enough files are
	// found; 0 disables early stop.
	MinMatches int `yaml:"min_matches"`

	MaxPages       int    `yaml:"max_pages"`
	EmptyPageLimit int    `yaml:"empty_page_limit"`
	PageParam      string `yaml:"page_param"`
}

type Settings struct {
	Enabled           bool `yaml:"enabled"`
	Timeout           int  `yaml:"timeout"`             // seconds, per HTTP request
	RequestsPerMinute int  `yaml:"requests_per_minute"` // politeness limit against the portal
	DaysBack          int  `yaml:"days_back"`           // 0 falls back to the global cutoff
}
