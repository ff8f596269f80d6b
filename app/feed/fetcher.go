package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	minFeedBytes = 100
	maxFeedBytes = 20 << 20

	acceptHeader = "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8"
)

var (
	ErrEmptyFeed = errors.New("feed response is empty or too short")
	ErrNotXML    = errors.New("feed response is not an RSS or Atom document")
	ErrTooLarge  = errors.New("feed response exceeds size limit")
)

// HTTPError reports a non-success status from the feed source.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

var feedMarkers = [][]byte{[]byte("<rss"), []byte("<feed"), []byte("<rdf:RDF")}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		maxBytes:   maxFeedBytes,
	}
}

// Run downloads the feed document, cancelling the request once timeout elapses.
func (f *Fetcher) Run(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}

	if err := validateDocument(data); err != nil {
		return nil, err
	}

	return data, nil
}

func validateDocument(data []byte) error {
	if len(bytes.TrimSpace(data)) < minFeedBytes {
		return ErrEmptyFeed
	}

	for _, marker := range feedMarkers {
		if bytes.Contains(data, marker) {
			return nil
		}
	}

	return ErrNotXML
}
