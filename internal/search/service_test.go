package search

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kbase/kbase/internal/cache"
	"github.com/kbase/kbase/internal/vectorstore"
)

// fakeEmbedder returns a fixed vector or a canned error.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int    { return 4 }
func (f *fakeEmbedder) ModelName() string { return "fake" }

// fakeIndex serves matches from an in-memory corpus, honoring the
// limit and score floor like a real index.
type fakeIndex struct {
	corpus []vectorstore.Match
	err    error

	// last Search call, for assertions
	lastVector   []float32
	lastLimit    int
	lastMinScore float64
	searchCalls  int
}

func (f *fakeIndex) Search(_ context.Context, _ string, vector []float32, limit int, minScore float64) ([]vectorstore.Match, error) {
	f.searchCalls++
	f.lastVector = vector
	f.lastLimit = limit
	f.lastMinScore = minScore
	if f.err != nil {
		return nil, f.err
	}

	matches := make([]vectorstore.Match, 0, len(f.corpus))
	for _, m := range f.corpus {
		if m.Score >= minScore {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeIndex) EnsureCollection(context.Context, string, int) error { return nil }
func (f *fakeIndex) CollectionExists(context.Context, string) (bool, error) {
	return true, nil
}
func (f *fakeIndex) Upsert(context.Context, string, []vectorstore.Point) error { return nil }
func (f *fakeIndex) DeleteDocument(context.Context, string, string) error      { return nil }
func (f *fakeIndex) DeleteCollection(context.Context, string) error            { return nil }

var _ vectorstore.VectorIndex = (*fakeIndex)(nil)

// failingStore simulates an unreachable cache backend.
type failingStore struct {
	gets, sets int
}

func (f *failingStore) Get(context.Context, string) ([]byte, error) {
	f.gets++
	return nil, errors.New("connection refused")
}

func (f *failingStore) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	f.sets++
	return errors.New("connection refused")
}

func newTestService(t *testing.T, index *fakeIndex, store cache.Store) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Embedder: &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}},
		Index:    index,
		Cache:    store,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func validRequest(mode Mode) *Request {
	return &Request{
		Query:      "machine learning basics",
		UserID:     uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		Username:   "alice",
		Mode:       mode,
		MaxResults: 5,
		MinScore:   0.7,
	}
}

// corpus of 8 chunks with known similarities, used by several tests
func similarityCorpus() []vectorstore.Match {
	sims := []float64{0.95, 0.88, 0.82, 0.76, 0.71, 0.65, 0.60, 0.55}
	matches := make([]vectorstore.Match, len(sims))
	for i, s := range sims {
		matches[i] = vectorstore.Match{
			DocumentID:    "doc-" + string(rune('a'+i)),
			Title:         "Doc",
			Content:       "machine learning basics chapter text for testing purposes",
			ChunkPosition: i,
			Score:         s,
		}
	}
	return matches
}

func TestSearch_SemanticAppliesScoreFloor(t *testing.T) {
	index := &fakeIndex{corpus: similarityCorpus()}
	svc := newTestService(t, index, nil)

	resp, err := svc.Search(context.Background(), validRequest(ModeSemantic))
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	// Only the 5 chunks at or above 0.71 clear the floor.
	if len(resp.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(resp.Results))
	}
	if index.lastMinScore != 0.7 {
		t.Errorf("index should receive the caller's score floor, got %g", index.lastMinScore)
	}
	if index.lastLimit != 10 {
		t.Errorf("expected over-fetch of maxResults*2=10, got %d", index.lastLimit)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].FinalScore > resp.Results[i-1].FinalScore {
			t.Errorf("results not sorted by final score at %d", i)
		}
	}
	if resp.CacheHit {
		t.Errorf("first call must not be a cache hit")
	}
}

func TestSearch_EmptyCorpusIsNotAnError(t *testing.T) {
	svc := newTestService(t, &fakeIndex{}, nil)

	resp, err := svc.Search(context.Background(), validRequest(ModeSemantic))
	if err != nil {
		t.Fatalf("empty corpus should not fail: %v", err)
	}
	if len(resp.Results) != 0 || resp.TotalResults != 0 {
		t.Errorf("expected empty results, got %+v", resp)
	}
}

func TestSearch_RejectsBadInputBeforeIO(t *testing.T) {
	embed := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	index := &fakeIndex{corpus: similarityCorpus()}
	svc, err := NewService(Config{Embedder: embed, Index: index})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty query", func(r *Request) { r.Query = "  " }},
		{"zero maxResults", func(r *Request) { r.MaxResults = 0 }},
		{"maxResults too large", func(r *Request) { r.MaxResults = 101 }},
		{"minScore too low", func(r *Request) { r.MinScore = 0.4 }},
		{"minScore too high", func(r *Request) { r.MinScore = 1.5 }},
		{"missing user", func(r *Request) { r.UserID = uuid.Nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest(ModeSemantic)
			tc.mutate(req)

			_, err := svc.Search(context.Background(), req)

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	if embed.calls != 0 || index.searchCalls != 0 {
		t.Errorf("validation failures must happen before any I/O: embed=%d search=%d",
			embed.calls, index.searchCalls)
	}
}

func TestSearch_EmbedderFailureIsUpstream(t *testing.T) {
	svc, err := NewService(Config{
		Embedder: &fakeEmbedder{err: errors.New("provider down")},
		Index:    &fakeIndex{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Search(context.Background(), validRequest(ModeSemantic))

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstreamErr.Source != SourceEmbedder {
		t.Errorf("expected embedder source, got %s", upstreamErr.Source)
	}
}

func TestSearch_IndexFailureIsUpstream(t *testing.T) {
	svc := newTestService(t, &fakeIndex{err: errors.New("index down")}, nil)

	_, err := svc.Search(context.Background(), validRequest(ModeSemantic))

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstreamErr.Source != SourceIndex {
		t.Errorf("expected index source, got %s", upstreamErr.Source)
	}
}

func TestSearch_KeywordUsesZeroVector(t *testing.T) {
	index := &fakeIndex{corpus: []vectorstore.Match{
		{DocumentID: "doc-a", Content: "an introduction to machine learning", ChunkPosition: 0, Score: 0},
		{DocumentID: "doc-b", Content: "cooking for beginners", ChunkPosition: 0, Score: 0},
	}}
	svc := newTestService(t, index, nil)

	req := validRequest(ModeKeyword)
	resp, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if index.lastMinScore != 0 {
		t.Errorf("keyword scan must not apply a similarity floor, got %g", index.lastMinScore)
	}
	if index.lastLimit != keywordScanLimit {
		t.Errorf("keyword scan limit should be %d, got %d", keywordScanLimit, index.lastLimit)
	}
	for _, v := range index.lastVector {
		if v != 0 {
			t.Fatalf("keyword scan must use a zero vector, got %v", index.lastVector)
		}
	}

	// Only the chunk containing a query token survives.
	if len(resp.Results) != 1 || resp.Results[0].DocumentID != "doc-a" {
		t.Errorf("expected only doc-a, got %+v", resp.Results)
	}
	if resp.Results[0].FinalScore <= 0 {
		t.Errorf("lexical score should be positive, got %g", resp.Results[0].FinalScore)
	}
}

func TestSearch_HybridDedupAndBounds(t *testing.T) {
	// The same corpus serves both sub-searches: the semantic path gets
	// the scored view, the keyword path rescans it lexically, so every
	// chunk shows up in both candidate sets.
	index := &fakeIndex{corpus: similarityCorpus()}
	svc := newTestService(t, index, nil)

	resp, err := svc.Search(context.Background(), validRequest(ModeHybrid))
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if len(resp.Results) > 5 {
		t.Fatalf("results exceed maxResults: %d", len(resp.Results))
	}

	seen := make(map[string]bool)
	for _, r := range resp.Results {
		key := r.DocumentID + "#" + string(rune('0'+r.ChunkPosition))
		if seen[key] {
			t.Errorf("duplicate (documentId, chunkPosition): %s", key)
		}
		seen[key] = true
	}

	if index.searchCalls != 2 {
		t.Errorf("hybrid should hit the index twice, got %d", index.searchCalls)
	}
}

func TestSearch_HybridFailsWhenSubSearchFails(t *testing.T) {
	svc, err := NewService(Config{
		Embedder: &fakeEmbedder{err: errors.New("provider down")},
		Index:    &fakeIndex{corpus: similarityCorpus()},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Search(context.Background(), validRequest(ModeHybrid))

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("a failed sub-search must fail the whole call, got %v", err)
	}
}

func TestSearch_CacheDeterminism(t *testing.T) {
	index := &fakeIndex{corpus: similarityCorpus()}
	svc := newTestService(t, index, cache.NewMemory(10))

	first, err := svc.Search(context.Background(), validRequest(ModeSemantic))
	if err != nil {
		t.Fatalf("first search failed: %v", err)
	}
	second, err := svc.Search(context.Background(), validRequest(ModeSemantic))
	if err != nil {
		t.Fatalf("second search failed: %v", err)
	}

	if first.CacheHit {
		t.Errorf("first call should miss")
	}
	if !second.CacheHit {
		t.Errorf("second call should hit")
	}
	if index.searchCalls != 1 {
		t.Errorf("cache hit must not touch the index, got %d calls", index.searchCalls)
	}

	if len(first.Results) != len(second.Results) {
		t.Fatalf("cached list length differs: %d vs %d", len(first.Results), len(second.Results))
	}
	for i := range first.Results {
		if first.Results[i] != second.Results[i] {
			t.Errorf("result %d differs: %+v vs %+v", i, first.Results[i], second.Results[i])
		}
	}
}

func TestSearch_KeywordSkipsCache(t *testing.T) {
	index := &fakeIndex{corpus: similarityCorpus()}
	store := cache.NewMemory(10)
	svc := newTestService(t, index, store)

	for i := 0; i < 2; i++ {
		resp, err := svc.Search(context.Background(), validRequest(ModeKeyword))
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if resp.CacheHit {
			t.Errorf("keyword searches are never cached")
		}
	}
	if store.Len() != 0 {
		t.Errorf("keyword search must not write to the cache, got %d entries", store.Len())
	}
}

func TestSearch_CacheFailsOpen(t *testing.T) {
	index := &fakeIndex{corpus: similarityCorpus()}
	store := &failingStore{}
	svc := newTestService(t, index, store)

	resp, err := svc.Search(context.Background(), validRequest(ModeSemantic))
	if err != nil {
		t.Fatalf("cache failure must not fail the search: %v", err)
	}
	if len(resp.Results) != 5 {
		t.Errorf("expected direct computation to return 5 results, got %d", len(resp.Results))
	}
	if store.gets == 0 || store.sets == 0 {
		t.Errorf("cache should have been attempted: gets=%d sets=%d", store.gets, store.sets)
	}
}

func TestCacheKey_DistinguishesParameters(t *testing.T) {
	base := validRequest(ModeSemantic)

	variants := []*Request{
		func() *Request { r := *base; r.Query = "different query"; return &r }(),
		func() *Request { r := *base; r.MaxResults = 6; return &r }(),
		func() *Request { r := *base; r.MinScore = 0.8; return &r }(),
		func() *Request { r := *base; r.Mode = ModeHybrid; return &r }(),
		func() *Request { r := *base; r.UserID = uuid.MustParse("99999999-8888-7777-6666-555555555555"); return &r }(),
	}

	baseKey := cacheKey(base)
	for i, v := range variants {
		if cacheKey(v) == baseKey {
			t.Errorf("variant %d shares the base cache key", i)
		}
	}
	if cacheKey(base) != baseKey {
		t.Errorf("cache key is not deterministic")
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"semantic", ModeSemantic, true},
		{"SEMANTIC", ModeSemantic, true},
		{" keyword ", ModeKeyword, true},
		{"Hybrid", ModeHybrid, true},
		{"fulltext", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Errorf("ParseMode(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
			}
		} else if err == nil {
			t.Errorf("ParseMode(%q) should fail", tc.in)
		}
	}
}
