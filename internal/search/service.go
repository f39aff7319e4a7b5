package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbase/kbase/internal/cache"
	"github.com/kbase/kbase/internal/embedder"
	"github.com/kbase/kbase/internal/metrics"
	"github.com/kbase/kbase/internal/vectorstore"
)

// Config wires a search Service.
type Config struct {
	Embedder embedder.Embedder
	Index    vectorstore.VectorIndex

	// Cache is optional; without one every call computes directly.
	Cache    cache.Store
	CacheTTL time.Duration

	// Timeout bounds one whole search call, defaulting to DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Service executes semantic, keyword and hybrid searches over a user's
// collection and reranks the outcome. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	embedder  embedder.Embedder
	index     vectorstore.VectorIndex
	cache     cache.Store
	cacheTTL  time.Duration
	timeout   time.Duration
	dimension int
	logger    *slog.Logger
}

// NewService creates a search service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		timeout:   cfg.Timeout,
		dimension: cfg.Embedder.Dimension(),
		logger:    cfg.Logger,
	}, nil
}

// Search runs one search call end to end: validate, consult the result
// cache, dispatch on mode, rerank, cache, respond.
func (s *Service) Search(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		metrics.SearchesTotal.WithLabelValues(req.Mode.String(), "invalid").Inc()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()

	// Keyword results depend only on exact lexical state and are cheap
	// relative to an embedding round-trip, so only semantic and hybrid
	// calls go through the cache.
	useCache := s.cache != nil && req.Mode != ModeKeyword
	key := cacheKey(req)

	if useCache {
		if results, ok := s.cacheGet(ctx, key); ok {
			metrics.SearchesTotal.WithLabelValues(req.Mode.String(), "success").Inc()
			metrics.SearchDuration.WithLabelValues(req.Mode.String()).Observe(time.Since(start).Seconds())
			return &Response{
				Results:      results,
				TotalResults: len(results),
				SearchTimeMs: time.Since(start).Milliseconds(),
				CacheHit:     true,
			}, nil
		}
	}

	results, err := s.compute(ctx, req)
	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.SearchesTotal.WithLabelValues(req.Mode.String(), status).Inc()
		return nil, err
	}

	if useCache {
		s.cachePut(ctx, key, results)
	}

	metrics.SearchesTotal.WithLabelValues(req.Mode.String(), "success").Inc()
	metrics.SearchDuration.WithLabelValues(req.Mode.String()).Observe(time.Since(start).Seconds())

	return &Response{
		Results:      results,
		TotalResults: len(results),
		SearchTimeMs: time.Since(start).Milliseconds(),
		CacheHit:     false,
	}, nil
}

// compute dispatches on the search mode and returns final reranked
// results, at most req.MaxResults of them.
func (s *Service) compute(ctx context.Context, req *Request) ([]Result, error) {
	switch req.Mode {
	case ModeSemantic:
		candidates, err := s.semanticCandidates(ctx, req)
		if err != nil {
			return nil, err
		}
		return rerank(req.Query, candidates, req.MaxResults), nil

	case ModeKeyword:
		candidates, err := s.keywordCandidates(ctx, req)
		if err != nil {
			return nil, err
		}
		return keywordResults(candidates, req.MaxResults), nil

	case ModeHybrid:
		semantic, keyword, err := s.hybridCandidates(ctx, req)
		if err != nil {
			return nil, err
		}
		merged := mergeCandidates(semantic, keyword)
		return rerank(req.Query, merged, req.MaxResults), nil

	default:
		return nil, &ValidationError{Field: "searchType", Reason: fmt.Sprintf("unknown search type %d", int(req.Mode))}
	}
}

// hybridCandidates runs both retrieval paths concurrently. The two
// sub-searches share no mutable state; a failure of either fails the
// whole call, there is no partial-result fallback.
func (s *Service) hybridCandidates(ctx context.Context, req *Request) (semantic, keyword []Candidate, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		semantic, err = s.semanticCandidates(gctx, req)
		return err
	})
	g.Go(func() error {
		var err error
		keyword, err = s.keywordCandidates(gctx, req)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return semantic, keyword, nil
}

// keywordResults converts lexically scored candidates into results,
// keeping the lexical ordering; the lexical score is the final score.
func keywordResults(candidates []Candidate, maxResults int) []Result {
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{
			DocumentID:    c.DocumentID,
			Title:         c.Title,
			Content:       c.Content,
			ChunkPosition: c.ChunkPosition,
			SourceType:    c.SourceType,
			FinalScore:    c.Score,
		})
	}
	return results
}

// cacheKey derives a fixed-length namespaced key from everything that
// determines a search outcome.
func cacheKey(req *Request) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%d|%g",
		req.Mode, req.Query, req.UserID, req.MaxResults, req.MinScore))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// cacheGet looks a result list up, failing open on any cache error.
func (s *Service) cacheGet(ctx context.Context, key string) ([]Result, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			metrics.SearchCacheTotal.WithLabelValues("miss").Inc()
		} else {
			metrics.SearchCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("result cache read failed", "error", err)
		}
		return nil, false
	}

	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		metrics.SearchCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn("result cache entry corrupt", "error", err)
		return nil, false
	}

	metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
	return results, true
}

// cachePut stores a result list, failing open on any cache error.
func (s *Service) cachePut(ctx context.Context, key string, results []Result) {
	data, err := json.Marshal(results)
	if err != nil {
		s.logger.Warn("result cache encode failed", "error", err)
		return
	}
	if err := s.cache.SetWithTTL(ctx, key, data, s.cacheTTL); err != nil {
		metrics.SearchCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn("result cache write failed", "error", err)
	}
}
