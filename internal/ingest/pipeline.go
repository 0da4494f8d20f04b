package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pbaille/tiku/internal/batch"
	"github.com/pbaille/tiku/internal/catalog"
	"github.com/pbaille/tiku/internal/domain"
)

// CatalogKey is the config entry holding the last catalog snapshot
const CatalogKey = "keypoint-tree"

// CommitMode decides when the refreshed catalog snapshot is persisted
type CommitMode string

const (
	// CommitAfter persists the snapshot once every new question is stored.
	CommitAfter CommitMode = "after"
	// CommitBefore persists the snapshot right after it is fetched.
	CommitBefore CommitMode = "before"
)

// ParseCommitMode validates a mode name
func ParseCommitMode(s string) (CommitMode, error) {
	switch m := CommitMode(s); m {
	case CommitAfter, CommitBefore:
		return m, nil
	case "":
		return CommitAfter, nil
	default:
		return "", fmt.Errorf("unknown catalog commit mode %q: %w", s, domain.ErrConfiguration)
	}
}

// Store is the persistence the pipeline needs
type Store interface {
	GetConfig(ctx context.Context, name string) (string, bool, error)
	SetConfig(ctx context.Context, name, value string) error
	InsertQuestion(ctx context.Context, q *domain.Question) error
	QuestionIDs(ctx context.Context) (domain.IDSet, error)
}

// Source is the remote question bank
type Source interface {
	batch.Source
	Catalog(ctx context.Context) ([]byte, domain.Catalog, error)
}

// Config configures a Pipeline
type Config struct {
	ChunkSize int
	Interval  time.Duration
	Commit    CommitMode
}

// Pipeline orchestrates a sync run
type Pipeline struct {
	store   Store
	source  Source
	fetcher *batch.Fetcher
	commit  CommitMode
	logger  *slog.Logger
}

// New creates a Pipeline
func New(store Store, source Source, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	commit, err := ParseCommitMode(string(cfg.Commit))
	if err != nil {
		return nil, err
	}

	f, err := batch.New(source, batch.Config{Size: cfg.ChunkSize, Interval: cfg.Interval}, logger)
	if err != nil {
		return nil, fmt.Errorf("create batch fetcher: %w", err)
	}

	return &Pipeline{
		store:   store,
		source:  source,
		fetcher: f,
		commit:  commit,
		logger:  logger,
	}, nil
}

// Result describes a finished run
type Result struct {
	RunID     string
	Questions []domain.Question // newly stored, in ingestion order
	Missing   []int64           // new ids the service did not return
	Catalog   domain.Catalog
}

// Run executes one sync. Any error aborts the run; whatever was already
// committed stays committed and the next run diffs against it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.logger.With("run_id", res.RunID)

	prev, err := p.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	raw, next, err := p.source.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh catalog: %w", err)
	}
	res.Catalog = next

	if p.commit == CommitBefore {
		if err := p.store.SetConfig(ctx, CatalogKey, string(raw)); err != nil {
			return nil, fmt.Errorf("save catalog: %w", err)
		}
	}

	fresh, err := p.unseen(ctx, prev, next)
	if err != nil {
		return nil, err
	}
	log.Info("catalog diffed",
		"previous", len(catalog.Flatten(prev)),
		"current", len(catalog.Flatten(next)),
		"new", len(fresh))

	err = p.fetcher.Each(ctx, fresh, func(r batch.Result) error {
		for i := range r.Questions {
			if err := p.store.InsertQuestion(ctx, &r.Questions[i]); err != nil {
				return err
			}
		}
		res.Questions = append(res.Questions, r.Questions...)
		res.Missing = append(res.Missing, r.Missing...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest questions: %w", err)
	}

	if p.commit == CommitAfter {
		if err := p.store.SetConfig(ctx, CatalogKey, string(raw)); err != nil {
			return nil, fmt.Errorf("save catalog: %w", err)
		}
	}

	log.Info("sync finished", "stored", len(res.Questions), "missing", len(res.Missing))
	return res, nil
}

func (p *Pipeline) loadCatalog(ctx context.Context) (domain.Catalog, error) {
	raw, ok, err := p.store.GetConfig(ctx, CatalogKey)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if !ok {
		return domain.Catalog{}, nil
	}

	c, err := catalog.Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return c, nil
}

// unseen diffs the catalogs and drops ids already stored by an
// interrupted earlier run
func (p *Pipeline) unseen(ctx context.Context, prev, next domain.Catalog) ([]int64, error) {
	diff := catalog.Diff(prev, next)
	if len(diff) == 0 {
		return nil, nil
	}

	stored, err := p.store.QuestionIDs(ctx)
	if err != nil {
		return nil, err
	}

	fresh := diff[:0:0]
	for _, id := range diff {
		if !stored.Has(id) {
			fresh = append(fresh, id)
		}
	}
	if skipped := len(diff) - len(fresh); skipped > 0 {
		p.logger.Info("skipping already stored questions", "count", skipped)
	}
	return fresh, nil
}
