package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads image bytes from public URLs.
type Fetcher struct {
	http     *resty.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher. Bodies larger than maxBytes are rejected.
func NewFetcher(timeout time.Duration, maxBytes int64, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	client := resty.New()
	client.SetTimeout(timeout)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &Fetcher{http: client, maxBytes: maxBytes}
}

// Fetch returns the body of rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode())
	}
	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", rawURL, f.maxBytes)
	}
	return data, nil
}
