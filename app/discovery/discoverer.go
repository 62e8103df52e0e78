package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/price-comb/app/sources"
)

// Discoverer enumerates candidate price files on a retailer portal by
// walking its paginated HTML listing. One Discoverer serves one source so
// the politeness limiter is scoped to that portal.
type Discoverer struct {
	source     *sources.Source
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	maxPages   int
}

// NewDiscoverer builds a discoverer for the given source. maxPagesOverride
// replaces the source's configured page cap when positive.
func NewDiscoverer(source *sources.Source, httpClient *http.Client, userAgent string, maxPagesOverride int) *Discoverer {
	maxPages := source.Discovery.MaxPages
	if maxPagesOverride > 0 {
		maxPages = maxPagesOverride
	}

	rpm := source.Settings.RequestsPerMinute
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)

	return &Discoverer{
		source:     source,
		httpClient: httpClient,
		userAgent:  userAgent,
		limiter:    limiter,
		maxPages:   maxPages,
	}
}

// Run walks listing pages and returns matching descriptors, deduplicated
// by filename. Files whose declared timestamp is older than cutoff are
// excluded. A filtered scan that exhausts the page cap with zero matches
// returns an error rather than an empty result.
func (d *Discoverer) Run(ctx context.Context, cutoff time.Time) ([]FileDescriptor, error) {
	var descriptors []FileDescriptor
	seen := make(map[string]bool)
	emptyStreak := 0

	for page := 1; page <= d.maxPages; page++ {
		doc, err := d.fetchListingPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to load listing page %d: %w", page, err)
		}

		pageLinks := 0
		pageMatches := 0
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if strings.Contains(href, ".gz") || strings.Contains(href, ".xml") {
				pageLinks++
			}
			desc, ok := d.matchLink(href, cutoff)
			if !ok || seen[desc.Filename] {
				return
			}
			seen[desc.Filename] = true
			descriptors = append(descriptors, desc)
			pageMatches++
		})

		slog.Debug("Listing page scanned", "source", d.source.Name, "page", page,
			"links", pageLinks, "matches", pageMatches)

		// A page with file links for other chains or file kinds is not the
		// end of the listing; only linkless pages advance the streak.
		if pageLinks == 0 {
			emptyStreak++
			if emptyStreak >= d.source.Discovery.EmptyPageLimit {
				break
			}
		} else {
			emptyStreak = 0
		}

		if d.source.Discovery.Strategy == sources.StrategyFilteredScan {
			min := d.source.Discovery.MinMatches
			if min > 0 && len(descriptors) >= min {
				slog.Debug("Filtered scan reached match target", "source", d.source.Name,
					"matches", len(descriptors), "pages_walked", page)
				break
			}
		}
	}

	if d.source.Discovery.Strategy == sources.StrategyFilteredScan && len(descriptors) == 0 {
		return nil, fmt.Errorf("filtered scan found no %s files for chain %s within %d pages",
			d.source.Discovery.FilePrefix, d.source.ChainID, d.maxPages)
	}

	return descriptors, nil
}

func (d *Discoverer) fetchListingPage(ctx context.Context, page int) (*goquery.Document, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageURL, err := d.buildPageURL(page)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(d.source.Settings.Timeout) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	for name, value := range d.source.Headers {
		req.Header.Set(name, value)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}

	return doc, nil
}

// buildPageURL appends the page parameter to the listing URL; page 1 is
// the bare listing URL, matching observed portal behavior.
func (d *Discoverer) buildPageURL(page int) (string, error) {
	if page == 1 {
		return d.source.Discovery.ListingURL, nil
	}

	u, err := url.Parse(d.source.Discovery.ListingURL)
	if err != nil {
		return "", fmt.Errorf("invalid listing URL: %w", err)
	}

	q := u.Query()
	q.Set(d.source.Discovery.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// matchLink decides whether an anchor points at a file this source wants.
func (d *Discoverer) matchLink(href string, cutoff time.Time) (FileDescriptor, bool) {
	if !strings.Contains(href, ".gz") && !strings.Contains(href, ".xml") {
		return FileDescriptor{}, false
	}

	filename := linkFilename(href)
	if filename == "" {
		return FileDescriptor{}, false
	}

	if !strings.HasPrefix(filename, d.source.Discovery.FilePrefix) {
		return FileDescriptor{}, false
	}

	if d.source.Discovery.Strategy == sources.StrategyFilteredScan &&
		!strings.Contains(filename, d.source.ChainID) {
		return FileDescriptor{}, false
	}

	declaredAt := parseDeclaredTimestamp(filename)
	if declaredAt != nil && !cutoff.IsZero() && declaredAt.Before(cutoff) {
		return FileDescriptor{}, false
	}

	fileURL := href
	if u, err := url.Parse(href); err == nil && !u.IsAbs() {
		if base, err := url.Parse(d.source.Discovery.ListingURL); err == nil {
			fileURL = base.ResolveReference(u).String()
		}
	}

	return FileDescriptor{
		URL:        fileURL,
		Filename:   filename,
		RetailerID: d.source.RetailerID,
		SourceName: d.source.Name,
		DeclaredAt: declaredAt,
		StoreCode:  extractStoreCode(filename),
	}, true
}

// linkFilename strips path and query from a file link. Signed blob URLs
// carry the signature in the query string, never in the filename.
func linkFilename(href string) string {
	trimmed := href
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return path.Base(trimmed)
}
