package download

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/price-comb/app/discovery"
)

const (
	defaultMaxAttempts = 3
	maxBackoff         = 30 * time.Second
)

// Payload is the decompressed body of one price file. It lives only for
// the duration of parsing.
type Payload struct {
	Filename string
	Data     []byte
	// Gzipped reports whether the response carried gzip framing,
	// detected by magic bytes rather than the declared content type.
	Gzipped bool
}

type Downloader struct {
	httpClient  *http.Client
	userAgent   string
	headers     map[string]string
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
}

func NewDownloader(httpClient *http.Client, userAgent string, headers map[string]string, timeout time.Duration) *Downloader {
	return &Downloader{
		httpClient:  httpClient,
		userAgent:   userAgent,
		headers:     headers,
		timeout:     timeout,
		maxAttempts: defaultMaxAttempts,
		backoffBase: time.Second,
	}
}

// Fetch downloads a discovered file and returns its decompressed bytes.
// Transient failures are retried with exponential backoff up to the
// attempt budget; 4xx responses and corrupt gzip payloads are returned
// immediately as permanent errors.
func (d *Downloader) Fetch(ctx context.Context, desc discovery.FileDescriptor) (*Payload, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := d.backoffBase * time.Duration(1<<uint(attempt-2))
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			slog.Debug("Retrying download", "file", desc.Filename, "attempt", attempt, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := d.fetchOnce(ctx, desc.URL)
		if err == nil {
			return d.decode(desc.Filename, body)
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("download failed after %d attempts: %w", d.maxAttempts, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	for name, value := range d.headers {
		req.Header.Set(name, value)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, &TransientError{URL: url, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return nil, &PermanentError{URL: url, StatusCode: resp.StatusCode}
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, &TransientError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{URL: url, Err: err}
	}

	return body, nil
}

// decode sniffs gzip framing by magic bytes. Portals routinely mislabel
// content types, and some serve plain XML under a .gz name.
func (d *Downloader) decode(filename string, body []byte) (*Payload, error) {
	if !isGzip(body) {
		return &Payload{Filename: filename, Data: body}, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, &CorruptFileError{Filename: filename, Err: err}
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &CorruptFileError{Filename: filename, Err: err}
	}

	return &Payload{Filename: filename, Data: data, Gzipped: true}, nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
