package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pbaille/tiku/internal/domain"
)

// ErrInvalidSize is returned by Chunk for a non-positive size
var ErrInvalidSize = errors.New("chunk size must be positive")

// Chunk partitions items into contiguous groups of at most size elements,
// preserving order. Only the last group may be shorter.
func Chunk[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}

// Source retrieves full details for a batch of ids
type Source interface {
	Solutions(ctx context.Context, ids []int64) ([]domain.Question, error)
}

// Config configures a Fetcher
type Config struct {
	Size     int           // ids per request
	Interval time.Duration // minimum gap between requests, 0 for none
}

// Fetcher retrieves details chunk by chunk, one request at a time
type Fetcher struct {
	source  Source
	size    int
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Fetcher
func New(source Source, cfg Config, logger *slog.Logger) (*Fetcher, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, cfg.Size)
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &Fetcher{
		source:  source,
		size:    cfg.Size,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

// Result is one chunk's response
type Result struct {
	Requested []int64
	Questions []domain.Question // in service order
	Missing   []int64           // requested but not returned
}

// Each fetches ids chunk by chunk and hands every result to fn before
// requesting the next chunk. The first error from the source or from fn
// stops the walk.
func (f *Fetcher) Each(ctx context.Context, ids []int64, fn func(Result) error) error {
	chunks, err := Chunk(ids, f.size)
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for chunk %d: %w", i, err)
		}

		questions, err := f.source.Solutions(ctx, chunk)
		if err != nil {
			return fmt.Errorf("fetch chunk %d/%d: %w", i+1, len(chunks), err)
		}

		res, err := reconcile(chunk, questions)
		if err != nil {
			return fmt.Errorf("fetch chunk %d/%d: %w", i+1, len(chunks), err)
		}

		f.logger.Debug("chunk fetched",
			"chunk", i+1, "of", len(chunks),
			"requested", len(chunk), "returned", len(questions))
		if len(res.Missing) > 0 {
			f.logger.Warn("solutions missing from response", "ids", res.Missing)
		}

		if err := fn(res); err != nil {
			return err
		}
	}

	return nil
}

// reconcile matches returned records to the request by their own id field
func reconcile(requested []int64, questions []domain.Question) (Result, error) {
	want := make(domain.IDSet, len(requested))
	want.Add(requested...)

	got := make(domain.IDSet, len(questions))
	for _, q := range questions {
		if !want.Has(q.ID) {
			return Result{}, fmt.Errorf("%w: unrequested question %d", domain.ErrMalformedResponse, q.ID)
		}
		if got.Has(q.ID) {
			return Result{}, fmt.Errorf("%w: question %d returned twice", domain.ErrMalformedResponse, q.ID)
		}
		got.Add(q.ID)
	}

	var missing []int64
	for _, id := range requested {
		if !got.Has(id) {
			missing = append(missing, id)
		}
	}

	return Result{Requested: requested, Questions: questions, Missing: missing}, nil
}
