package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}
}

func TestLoadDirectFeedSource(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "super-pharm.yml", `
retailer_id: 52
chain_id: "7290172900007"
display_name: "Super-Pharm"
discovery:
  strategy: direct_feed
  listing_url: "https://prices.example.co.il/"
  file_prefix: "PriceFull"
  max_pages: 96
settings:
  enabled: true
  timeout: 60
`)

	catalog := NewCatalog(dir)
	if err := catalog.Load(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	source, err := catalog.Get("super-pharm")
	if err != nil {
		t.Fatalf("Expected source to be present: %v", err)
	}
	if source.Name != "super-pharm" {
		t.Errorf("Expected name 'super-pharm', got '%s'", source.Name)
	}
	if source.RetailerID != 52 {
		t.Errorf("Expected retailer id 52, got %d", source.RetailerID)
	}
	if source.ChainID != "7290172900007" {
		t.Errorf("Expected chain id '7290172900007', got '%s'", source.ChainID)
	}
	if source.Discovery.Strategy != StrategyDirectFeed {
		t.Errorf("Expected direct_feed strategy, got '%s'", source.Discovery.Strategy)
	}
	if source.Discovery.MaxPages != 96 {
		t.Errorf("Expected max pages 96, got %d", source.Discovery.MaxPages)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "good-pharm.yml", `
retailer_id: 97
chain_id: "7290058197699"
discovery:
  strategy: direct_feed
  listing_url: "https://goodpharm.example.com/"
settings:
  enabled: true
`)

	catalog := NewCatalog(dir)
	if err := catalog.Load(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	source, _ := catalog.Get("good-pharm")
	if source.Discovery.MaxPages != 20 {
		t.Errorf("Expected default max pages 20, got %d", source.Discovery.MaxPages)
	}
	if source.Discovery.EmptyPageLimit != 3 {
		t.Errorf("Expected default empty page limit 3, got %d", source.Discovery.EmptyPageLimit)
	}
	if source.Discovery.PageParam != "page" {
		t.Errorf("Expected default page param 'page', got '%s'", source.Discovery.PageParam)
	}
	if source.Discovery.FilePrefix != "PriceFull" {
		t.Errorf("Expected default file prefix 'PriceFull', got '%s'", source.Discovery.FilePrefix)
	}
	if source.Settings.Timeout != 60 {
		t.Errorf("Expected default timeout 60, got %d", source.Settings.Timeout)
	}
	if source.Settings.RequestsPerMinute != 30 {
		t.Errorf("Expected default requests per minute 30, got %d", source.Settings.RequestsPerMinute)
	}
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "broken.yml", `
retailer_id: 1
chain_id: "123"
discovery:
  strategy: crawl_everything
  listing_url: "https://example.com/"
`)

	catalog := NewCatalog(dir)
	if err := catalog.Load(); err == nil {
		t.Error("Expected error for unknown discovery strategy")
	}
}

func TestLoadRejectsMissingChainID(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "broken.yml", `
retailer_id: 1
discovery:
  strategy: direct_feed
  listing_url: "https://example.com/"
`)

	catalog := NewCatalog(dir)
	if err := catalog.Load(); err == nil {
		t.Error("Expected error for missing chain_id")
	}
}

func TestLoadRejectsNegativeSettings(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "rude.yml", `
retailer_id: 1
chain_id: "123"
discovery:
  strategy: direct_feed
  listing_url: "https://example.com/"
settings:
  requests_per_minute: -5
`)

	catalog := NewCatalog(dir)
	if err := catalog.Load(); err == nil {
		t.Error("Expected error for negative requests_per_minute")
	}

	dir = t.TempDir()
	writeSourceFile(t, dir, "backwards.yml", `
retailer_id: 1
chain_id: "123"
discovery:
  strategy: direct_feed
  listing_url: "https://example.com/"
settings:
  days_back: -7
`)

	catalog = NewCatalog(dir)
	if err := catalog.Load(); err == nil {
		t.Error("Expected error for negative days_back")
	}
}

func TestEnabledFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "b-chain.yml", `
retailer_id: 2
chain_id: "222"
discovery:
  strategy: direct_feed
  listing_url: "https://b.example.com/"
settings:
  enabled: true
`)
	writeSourceFile(t, dir, "a-chain.yml", `
retailer_id: 1
chain_id: "111"
discovery:
  strategy: direct_feed
  listing_url: "https://a.example.com/"
settings:
  enabled: false
`)

	catalog := NewCatalog(dir)
	if err := catalog.Load(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	all := catalog.All()
	if len(all) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(all))
	}
	if all[0].Name != "a-chain" || all[1].Name != "b-chain" {
		t.Errorf("Expected sorted order [a-chain b-chain], got [%s %s]", all[0].Name, all[1].Name)
	}

	enabled := catalog.Enabled()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled source, got %d", len(enabled))
	}
	if enabled[0].Name != "b-chain" {
		t.Errorf("Expected enabled source 'b-chain', got '%s'", enabled[0].Name)
	}
}
