package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"turnover-sync/core/retry"
	"turnover-sync/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ErrFeedFetch indicates a feed could not be read this run.
var ErrFeedFetch = errors.New("feed fetch failed")

// ErrFeedTooLarge is returned when a feed body exceeds maxFeedBytes.
var ErrFeedTooLarge = errors.New("feed body exceeds size limit")

// maxFeedBytes caps the body read from a single feed or export.
var maxFeedBytes int64 = 32 << 20

// readLimited reads r whole, failing rather than truncating past maxFeedBytes.
func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxFeedBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxFeedBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrFeedTooLarge, maxFeedBytes)
	}
	return body, nil
}

// FetchError describes a failed feed read.
type FetchError struct {
	FeedID string
	// Status is the HTTP status, zero for transport and storage failures.
	Status int
	Err    error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("feed %s: unexpected status %d", e.FeedID, e.Status)
	}
	return fmt.Sprintf("feed %s: %v", e.FeedID, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	return target == ErrFeedFetch
}

// HTTPFetcher downloads calendar feeds with a per-attempt timeout and retries.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	policy  retry.Policy
	logger  *zap.Logger
}

// NewHTTPFetcher creates a fetcher. client may be nil.
func NewHTTPFetcher(client *http.Client, cfg Config, logger *zap.Logger) *HTTPFetcher {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPFetcher{
		client:  client,
		timeout: cfg.FetchTimeout,
		policy: retry.Policy{
			Attempts:   cfg.FetchAttempts,
			Backoff:    cfg.FetchBackoff,
			MaxBackoff: 10 * cfg.FetchBackoff,
		},
		logger: logger,
	}
}

// Fetch returns the body of an ics feed. Server errors and timeouts are
// retried; other client errors are not.
func (f *HTTPFetcher) Fetch(ctx context.Context, feed Feed) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, f.policy, func(attempt int) error {
		b, err := f.fetchOnce(ctx, feed)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && fe.Status >= 400 && fe.Status < 500 && fe.Status != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			f.logger.Warn("Feed fetch attempt failed",
				zap.String("feed", feed.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, feed Feed) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, retry.Permanent(&FetchError{FeedID: feed.ID, Err: err})
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{FeedID: feed.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{FeedID: feed.ID, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := readLimited(resp.Body)
	if errors.Is(err, ErrFeedTooLarge) {
		return nil, retry.Permanent(&FetchError{FeedID: feed.ID, Err: err})
	}
	if err != nil {
		return nil, &FetchError{FeedID: feed.ID, Err: err}
	}
	return body, nil
}

// ObjectReader reads csv exports from object storage.
type ObjectReader struct {
	client storage.Client
	bucket string
	prefix string
	policy retry.Policy
}

// NewObjectReader creates a reader over bucket, resolving feed objects below prefix.
func NewObjectReader(client storage.Client, bucket, prefix string, cfg Config) *ObjectReader {
	cfg = cfg.withDefaults()
	return &ObjectReader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		policy: retry.Policy{
			Attempts:   cfg.FetchAttempts,
			Backoff:    cfg.FetchBackoff,
			MaxBackoff: 10 * cfg.FetchBackoff,
		},
	}
}

// Keys resolves the object keys of a csv feed.
func (r *ObjectReader) Keys(ctx context.Context, feed Feed) ([]string, error) {
	key := storage.Key(r.prefix, feed.Object)
	if !feed.IsPrefix() {
		return []string{key}, nil
	}

	var keys []string
	err := retry.Do(ctx, r.policy, func(int) error {
		var err error
		keys, err = storage.ListKeys(ctx, r.client, r.bucket, key, ".csv")
		return err
	})
	if err != nil {
		return nil, &FetchError{FeedID: feed.ID, Err: err}
	}
	return keys, nil
}

// Read downloads one object.
func (r *ObjectReader) Read(ctx context.Context, feed Feed, key string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, r.policy, func(int) error {
		obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()

		b, err := readLimited(obj)
		if err != nil {
			if errors.Is(err, ErrFeedTooLarge) || minio.ToErrorResponse(err).Code == "NoSuchKey" {
				return retry.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, &FetchError{FeedID: feed.ID, Err: fmt.Errorf("object %s: %w", key, err)}
	}
	return body, nil
}

var (
	errNoFetcher = errors.New("no http fetcher configured")
	errNoStorage = errors.New("no object storage configured")
)
