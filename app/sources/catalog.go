package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds all retailer source configurations. It is populated once
// by Load and is read-only afterwards, so it is safe to share across
// source workers without locking.
type Catalog struct {
	sourcesDir string
	sources    map[string]*Source
}

func NewCatalog(sourcesDir string) *Catalog {
	return &Catalog{
		sourcesDir: sourcesDir,
		sources:    make(map[string]*Source),
	}
}

func (c *Catalog) Load() error {
	if _, err := os.Stat(c.sourcesDir); os.IsNotExist(err) {
		return fmt.Errorf("sources directory does not exist: %s", c.sourcesDir)
	}

	files, err := filepath.Glob(filepath.Join(c.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		source, err := c.parseSource(file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		source.Name = strings.TrimSuffix(filepath.Base(file), ".yml")
		c.setDefaults(source)

		if err := c.validate(source); err != nil {
			return fmt.Errorf("invalid source %s: %w", file, err)
		}

		c.sources[source.Name] = source
		slog.Debug("Source configuration loaded", "source", source.Name,
			"strategy", string(source.Discovery.Strategy), "enabled", source.Settings.Enabled)
	}

	if len(c.sources) == 0 {
		return fmt.Errorf("no source configurations found in %s", c.sourcesDir)
	}

	return nil
}

func (c *Catalog) parseSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &source, nil
}

func (c *Catalog) setDefaults(source *Source) {
	if source.Discovery.MaxPages == 0 {
		source.Discovery.MaxPages = 20
	}
	if source.Discovery.EmptyPageLimit == 0 {
		source.Discovery.EmptyPageLimit = 3
	}
	if source.Discovery.PageParam == "" {
		source.Discovery.PageParam = "page"
	}
	if source.Discovery.FilePrefix == "" {
		source.Discovery.FilePrefix = "PriceFull"
	}
	if source.Settings.Timeout == 0 {
		source.Settings.Timeout = 60 // seconds
	}
	if source.Settings.RequestsPerMinute == 0 {
		source.Settings.RequestsPerMinute = 30
	}
}

func (c *Catalog) validate(source *Source) error {
	if source.RetailerID <= 0 {
		return fmt.Errorf("retailer_id is required and must be positive")
	}
	if source.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if source.Discovery.ListingURL == "" {
		return fmt.Errorf("discovery listing_url is required")
	}

	switch source.Discovery.Strategy {
	case StrategyDirectFeed:
	case StrategyFilteredScan:
		if source.Discovery.MinMatches < 0 {
			return fmt.Errorf("min_matches must be non-negative")
		}
	default:
		return fmt.Errorf("unknown discovery strategy: %q", source.Discovery.Strategy)
	}

	if source.Discovery.MaxPages < 1 {
		return fmt.Errorf("max_pages must be positive")
	}
	if source.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	// A negative rate would turn the politeness limiter into an infinite
	// one; reject it rather than hammer the portal.
	if source.Settings.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be non-negative")
	}
	if source.Settings.DaysBack < 0 {
		return fmt.Errorf("days_back must be non-negative")
	}

	return nil
}

func (c *Catalog) Get(name string) (*Source, error) {
	source, ok := c.sources[name]
	if !ok {
		return nil, fmt.Errorf("source with name '%s' not found", name)
	}
	return source, nil
}

// All returns every configured source sorted by name for deterministic
// scheduling order.
func (c *Catalog) All() []*Source {
	all := make([]*Source, 0, len(c.sources))
	for _, source := range c.sources {
		all = append(all, source)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func (c *Catalog) Enabled() []*Source {
	enabled := make([]*Source, 0, len(c.sources))
	for _, source := range c.All() {
		if source.Settings.Enabled {
			enabled = append(enabled, source)
		}
	}
	return enabled
}
