package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-router/internal/llm"
	"github.com/spec-kit/ticket-router/internal/vectorstore"
)

const defaultFetchWorkers = 4

// Fetcher loads one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// PageFailure records a URL that could not be ingested.
type PageFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Report summarizes an ingestion run.
type Report struct {
	Collection string        `json:"collection"`
	Pages      int           `json:"pages"`
	Chunks     int           `json:"chunks"`
	Failures   []PageFailure `json:"failures"`
}

// Ingestor fetches pages, splits and embeds them, and writes the chunks to a collection.
type Ingestor struct {
	fetcher   Fetcher
	splitter  *Splitter
	embedder  llm.Embedder
	store     vectorstore.Writer
	dimension int
	workers   int
	logger    *zap.Logger
}

// Dependencies bundles the collaborators of an Ingestor.
type Dependencies struct {
	Fetcher   Fetcher
	Splitter  *Splitter
	Embedder  llm.Embedder
	Store     vectorstore.Writer
	Dimension int
	Workers   int
	Logger    *zap.Logger
}

func New(deps Dependencies) *Ingestor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	return &Ingestor{
		fetcher:   deps.Fetcher,
		splitter:  deps.Splitter,
		embedder:  deps.Embedder,
		store:     deps.Store,
		dimension: deps.Dimension,
		workers:   workers,
		logger:    logger.Named("ingest"),
	}
}

// Ingest stores every URL's chunks in collection, creating it if needed. A page
// that fails to load is reported and skipped; embedding or store errors abort.
func (i *Ingestor) Ingest(ctx context.Context, collection string, urls []string) (Report, error) {
	report := Report{Collection: collection, Failures: []PageFailure{}}
	if err := i.store.EnsureCollection(ctx, collection, i.dimension); err != nil {
		return report, fmt.Errorf("ensure collection %s: %w", collection, err)
	}

	pages := make([]*Page, len(urls))
	fetchErrs := make([]error, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for idx, u := range urls {
		idx, u := idx, u
		g.Go(func() error {
			page, err := i.fetcher.Fetch(gctx, u)
			if err != nil {
				fetchErrs[idx] = err
				return nil
			}
			pages[idx] = &page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for idx, page := range pages {
		if page == nil {
			i.logger.Warn("page skipped", zap.String("url", urls[idx]), zap.Error(fetchErrs[idx]))
			report.Failures = append(report.Failures, PageFailure{URL: urls[idx], Error: fetchErrs[idx].Error()})
			continue
		}
		n, err := i.storePage(ctx, collection, *page)
		if err != nil {
			return report, err
		}
		report.Pages++
		report.Chunks += n
	}

	i.logger.Info("ingestion finished",
		zap.String("collection", collection),
		zap.Int("pages", report.Pages),
		zap.Int("chunks", report.Chunks),
		zap.Int("failed", len(report.Failures)),
	)
	return report, nil
}

func (i *Ingestor) storePage(ctx context.Context, collection string, page Page) (int, error) {
	chunks := i.splitter.Split(page.Text)
	if len(chunks) == 0 {
		i.logger.Debug("page has no text", zap.String("url", page.URL))
		return 0, nil
	}
	vectors, err := i.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", page.URL, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", page.URL, len(vectors), len(chunks))
	}
	docs := make([]vectorstore.Document, len(chunks))
	for k, chunk := range chunks {
		docs[k] = vectorstore.Document{Text: chunk, Source: page.URL, Vector: vectors[k]}
	}
	if err := i.store.Insert(ctx, collection, docs); err != nil {
		return 0, fmt.Errorf("insert %s: %w", page.URL, err)
	}
	i.logger.Debug("page stored", zap.String("url", page.URL), zap.String("title", page.Title), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
