package ingest

import (
	"context"
	"time"

	"github.com/lysyi3m/price-comb/app/discovery"
	"github.com/lysyi3m/price-comb/app/download"
)

// FileDiscoverer enumerates one source's candidate files.
type FileDiscoverer interface {
	Run(ctx context.Context, cutoff time.Time) ([]discovery.FileDescriptor, error)
}

// FileFetcher downloads and decompresses one discovered file.
type FileFetcher interface {
	Fetch(ctx context.Context, desc discovery.FileDescriptor) (*download.Payload, error)
}
