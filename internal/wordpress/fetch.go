package wordpress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "cmscal/internal/log"
)

// maxBodyBytes caps a single backend response.
const maxBodyBytes = 16 << 20

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Response is the body of one fetch, fresh or revalidated from cache.
type Response struct {
	Body      []byte
	FromCache bool
}

// Fetcher performs conditional GETs (ETag / Last-Modified) backed by a
// disk cache, so an unchanged list costs a 304 and a flaky backend falls
// back to the last good body.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir. client may be nil.
func NewFetcher(client *http.Client, cacheDir string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cacheDir == "" {
		cacheDir = "./cache/http"
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Get fetches rawURL, honoring and updating the disk cache.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (Response, error) {
	if rawURL == "" {
		return Response{}, errors.New("wordpress: url is empty")
	}

	cachePath := f.cachePathForURL(rawURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Response{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("wordpress fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == nil && len(cachedBody) > 0 {
			appLog.Error("wordpress fetch network error, using cached body", err, "url", redactURL(rawURL))
			return Response{Body: cachedBody, FromCache: true}, nil
		}
		return Response{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return Response{}, err
		}

		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("wordpress cache save failed", err, "url", redactURL(rawURL))
		}

		appLog.Info("wordpress fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		return Response{Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Response{}, errors.New("wordpress: 304 Not Modified but no cached body available")
		}
		appLog.Info("wordpress fetch not modified; using cache", "url", redactURL(rawURL))
		return Response{Body: cachedBody, FromCache: true}, nil

	default:
		statusErr := fmt.Errorf("wordpress: unexpected status %s", resp.Status)
		if len(cachedBody) > 0 {
			appLog.Error("wordpress fetch non-OK, using cached body", statusErr, "url", redactURL(rawURL))
			return Response{Body: cachedBody, FromCache: true}, nil
		}
		return Response{}, statusErr
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only, e.g.
// https://cms.example.org/wp-json/...?token=x -> https://cms.example.org/...(redacted)
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
