package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/meridianvc/dealflow-backend/internal/logger"
)

// maxFetchBytes caps a single document body.
const maxFetchBytes = 64 << 20

// Fetcher resolves a storage locator into raw bytes. The scheme picks the
// strategy: https/http, gs, or a bare local path.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

type fetcher struct {
	log        *logger.Logger
	httpClient *http.Client

	gcsOnce sync.Once
	gcsErr  error
	gcs     *gcs.Client
}

func NewFetcher(log *logger.Logger) Fetcher {
	return &fetcher{
		log:        log.With("service", "ObjectFetcher"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (f *fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, fmt.Errorf("empty storage locator")
	}
	switch {
	case strings.HasPrefix(locator, "https://"), strings.HasPrefix(locator, "http://"):
		return f.fetchHTTP(ctx, locator)
	case strings.HasPrefix(locator, "gs://"):
		return f.fetchGCS(ctx, locator)
	default:
		return f.fetchLocal(locator)
	}
}

func (f *fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: http %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return data, nil
}

func (f *fetcher) fetchGCS(ctx context.Context, locator string) ([]byte, error) {
	f.gcsOnce.Do(func() {
		f.gcs, f.gcsErr = gcs.NewClient(context.Background())
	})
	if f.gcsErr != nil {
		return nil, fmt.Errorf("gcs client: %w", f.gcsErr)
	}
	rest := strings.TrimPrefix(locator, "gs://")
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("malformed gs locator %q", locator)
	}
	rc, err := f.gcs.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", locator, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", locator, err)
	}
	return data, nil
}

func (f *fetcher) fetchLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
