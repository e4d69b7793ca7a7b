package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/timmy/shopmedia/internal/logger"
)

// RetryPolicy bounds retries of one operation.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	Delay       time.Duration // fixed pause between attempts
}

// DefaultRetryPolicy retries a rate-limited page once after two seconds.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, Delay: 2 * time.Second}

// Retry runs op until it succeeds, fails with a non-retryable error, or the
// policy's attempts are spent. It returns op's last error.
func Retry(ctx context.Context, policy RetryPolicy, clock Clock, op func(ctx context.Context) error, retryable func(error) bool) error {
	if clock == nil {
		clock = SystemClock
	}
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil || !retryable(err) || attempt == attempts {
			return err
		}
		logger.With(logger.Fields{logger.FieldAttempt: attempt}).
			Debug(ctx, "Retrying after %s: %v", policy.Delay, err)
		if sleepErr := clock.Sleep(ctx, policy.Delay); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

// Page is one fetched page. An empty Next ends the walk.
type Page[T any] struct {
	Items []T
	Next  string
}

// FetchFunc fetches the page addressed by cursor; "" is the first page.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Listing is everything collected from a paginated resource.
type Listing[T any] struct {
	Items   []T
	Pages   int
	Partial bool // stopped early on rate limit, page cap, or memory ceiling
}

// Pager walks paginated resources one page at a time.
type Pager struct {
	Policy   RetryPolicy
	MaxPages int
	Guard    ResourceGuard
	Clock    Clock
}

// Do runs a single-resource call under the pager's retry policy.
func (p *Pager) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return Retry(ctx, p.Policy, p.Clock, op, IsRateLimited)
}

// Walk fetches pages in order and hands each to visit until visit returns
// false, the resource is exhausted, or a limit is hit.
//
// A page that stays rate limited after the retry policy ends the walk with
// partial=true and no error. Any other error aborts the walk and is returned.
func Walk[T any](ctx context.Context, p *Pager, fetch FetchFunc[T], visit func(items []T) bool) (pages int, partial bool, err error) {
	cursor := ""
	for {
		if p.MaxPages > 0 && pages >= p.MaxPages {
			logger.With(logger.Fields{logger.FieldPages: pages}).
				Warn(ctx, "Page limit reached, returning partial listing")
			return pages, true, nil
		}
		if p.Guard != nil {
			if exceeded, reason := p.Guard.Exceeded(); exceeded {
				logger.CtxWarn(ctx, "Stopping pagination: %s", reason)
				return pages, true, nil
			}
		}

		var page Page[T]
		err := Retry(ctx, p.Policy, p.Clock, func(ctx context.Context) error {
			var fetchErr error
			page, fetchErr = fetch(ctx, cursor)
			return fetchErr
		}, IsRateLimited)
		if err != nil {
			if IsRateLimited(err) {
				logger.With(logger.Fields{logger.FieldPages: pages}).
					Warn(ctx, "Still rate limited after retry, returning partial listing")
				return pages, true, nil
			}
			return pages, false, err
		}

		pages++
		if !visit(page.Items) || page.Next == "" {
			return pages, false, nil
		}
		cursor = page.Next
	}
}

// Collect walks every page and concatenates the items.
func Collect[T any](ctx context.Context, p *Pager, fetch FetchFunc[T]) (*Listing[T], error) {
	listing := &Listing[T]{}
	pages, partial, err := Walk(ctx, p, fetch, func(items []T) bool {
		listing.Items = append(listing.Items, items...)
		return true
	})
	listing.Pages = pages
	listing.Partial = partial
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// LinkPages fetches REST pages that advertise the next page through the
// Link header. key names the array in the response body, e.g. "products".
func LinkPages[T any](c *Client, first, key string) FetchFunc[T] {
	return func(ctx context.Context, cursor string) (Page[T], error) {
		target := first
		if cursor != "" {
			target = cursor
		}

		resp, err := c.Get(ctx, target, nil)
		if err != nil {
			return Page[T]{}, err
		}

		var envelope map[string]json.RawMessage
		if err := sonic.Unmarshal(resp.Body, &envelope); err != nil {
			return Page[T]{}, &UpstreamError{URL: resp.URL, Status: resp.Status, Message: "decode page", Err: err}
		}
		var items []T
		if raw, ok := envelope[key]; ok && len(raw) > 0 {
			if err := sonic.Unmarshal(raw, &items); err != nil {
				return Page[T]{}, &UpstreamError{URL: resp.URL, Status: resp.Status, Message: fmt.Sprintf("decode %s", key), Err: err}
			}
		}

		return Page[T]{Items: items, Next: parseLinkHeader(resp.Header.Get("Link"))["next"]}, nil
	}
}

// parseLinkHeader maps rel values to URLs in an RFC 8288 Link header.
func parseLinkHeader(header string) map[string]string {
	links := make(map[string]string)
	if header == "" {
		return links
	}
	for _, part := range strings.Split(header, ",") {
		seg := strings.Split(strings.TrimSpace(part), ";")
		if len(seg) < 2 {
			continue
		}
		target := strings.Trim(seg[0], "<> ")
		for _, param := range seg[1:] {
			kv := strings.SplitN(strings.TrimSpace(param), "=", 2)
			if len(kv) == 2 && kv[0] == "rel" {
				links[strings.Trim(kv[1], `"`)] = target
			}
		}
	}
	return links
}
