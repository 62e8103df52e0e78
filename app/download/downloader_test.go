package download

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lysyi3m/price-comb/app/discovery"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Failed to gzip test data: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

func descriptorFor(url string) discovery.FileDescriptor {
	return discovery.FileDescriptor{
		URL:        url,
		Filename:   "PriceFull7290172900007-001-202608200700.gz",
		RetailerID: 52,
		SourceName: "test-chain",
	}
}

func TestFetchDecompressesGzip(t *testing.T) {
	xml := []byte("<root><Items><Item/></Items></root>")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("Expected user agent 'test-agent', got '%s'", ua)
		}
		// Deliberately mislabeled content type; detection must rely on
		// magic bytes.
		w.Header().Set("Content-Type", "text/html")
		w.Write(gzipBytes(t, xml))
	}))
	defer server.Close()

	d := NewDownloader(server.Client(), "test-agent", nil, 10*time.Second)
	payload, err := d.Fetch(context.Background(), descriptorFor(server.URL))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !payload.Gzipped {
		t.Error("Expected payload to be marked gzipped")
	}
	if !bytes.Equal(payload.Data, xml) {
		t.Errorf("Expected decompressed XML, got: %s", payload.Data)
	}
}

func TestFetchPassesThroughPlainXML(t *testing.T) {
	xml := []byte("<root/>")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(xml)
	}))
	defer server.Close()

	d := NewDownloader(server.Client(), "test-agent", nil, 10*time.Second)
	payload, err := d.Fetch(context.Background(), descriptorFor(server.URL))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if payload.Gzipped {
		t.Error("Expected payload not to be marked gzipped")
	}
	if !bytes.Equal(payload.Data, xml) {
		t.Errorf("Expected raw XML, got: %s", payload.Data)
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<root/>"))
	}))
	defer server.Close()

	d := NewDownloader(server.Client(), "test-agent", nil, 10*time.Second)
	d.backoffBase = time.Millisecond
	payload, err := d.Fetch(context.Background(), descriptorFor(server.URL))
	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(payload.Data) == 0 {
		t.Error("Expected payload data after retry")
	}
}

func TestFetchGivesUpAfterAttemptBudget(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewDownloader(server.Client(), "test-agent", nil, 10*time.Second)
	d.backoffBase = time.Millisecond
	_, err := d.Fetch(context.Background(), descriptorFor(server.URL))
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if attempts != defaultMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", defaultMaxAttempts, attempts)
	}
	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Errorf("Expected TransientError in chain, got: %v", err)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		// Expired signed URLs surface as 403.
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	d := NewDownloader(server.Client(), "test-agent", nil, 10*time.Second)
	_, err := d.Fetch(context.Background(), descriptorFor(server.URL))

	var permanent *PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("Expected PermanentError, got: %v", err)
	}
	if permanent.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", permanent.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt for 4xx, got %d", attempts)
	}
}

func TestFetchReportsCorruptGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Valid magic bytes followed by garbage.
		w.Write([]byte{0x1f, 0x8b, 0xde, 0xad, 0xbe, 0xef})
	}))
	defer server.Close()

	d := NewDownloader(server.Client(), "test-agent", nil, 10*time.Second)
	_, err := d.Fetch(context.Background(), descriptorFor(server.URL))

	var corrupt *CorruptFileError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Expected CorruptFileError, got: %v", err)
	}
	if corrupt.Filename != "PriceFull7290172900007-001-202608200700.gz" {
		t.Errorf("Expected filename in error, got '%s'", corrupt.Filename)
	}
}

func TestFetchSendsExtraHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Portal-Token") != "secret" {
			t.Errorf("Expected configured header to be sent")
		}
		w.Write([]byte("<root/>"))
	}))
	defer server.Close()

	headers := map[string]string{"X-Portal-Token": "secret"}
	d := NewDownloader(server.Client(), "test-agent", headers, 10*time.Second)
	if _, err := d.Fetch(context.Background(), descriptorFor(server.URL)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}
