package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kbase/kbase/internal/auth"
	"github.com/kbase/kbase/internal/search"
	"github.com/kbase/kbase/internal/vectorstore"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := s.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int    { return 4 }
func (s *stubEmbedder) ModelName() string { return "stub" }

type stubIndex struct {
	matches []vectorstore.Match

	lastLimit    int
	lastMinScore float64
}

func (s *stubIndex) Search(_ context.Context, _ string, _ []float32, limit int, minScore float64) ([]vectorstore.Match, error) {
	s.lastLimit = limit
	s.lastMinScore = minScore
	return s.matches, nil
}

func (s *stubIndex) EnsureCollection(context.Context, string, int) error      { return nil }
func (s *stubIndex) CollectionExists(context.Context, string) (bool, error)  { return true, nil }
func (s *stubIndex) Upsert(context.Context, string, []vectorstore.Point) error { return nil }
func (s *stubIndex) DeleteDocument(context.Context, string, string) error    { return nil }
func (s *stubIndex) DeleteCollection(context.Context, string) error          { return nil }

func newTestServer(t *testing.T, embed *stubEmbedder, index *stubIndex) (*HTTPServer, string) {
	t.Helper()

	searchSvc, err := search.NewService(search.Config{
		Embedder: embed,
		Index:    index,
	})
	if err != nil {
		t.Fatalf("failed to create search service: %v", err)
	}

	jwtManager := auth.NewJWTManager(auth.DefaultJWTConfig("test-secret"))
	token, err := jwtManager.GenerateToken(uuid.New(), "alice")
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}

	srv, err := NewHTTPServer(HTTPServerConfig{
		Port:   0,
		Search: searchSvc,
		Auth:   jwtManager,
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, token
}

func postSearch(t *testing.T, srv *HTTPServer, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(rec, req)
	return rec
}

func TestHandleSearch_AppliesDefaults(t *testing.T) {
	index := &stubIndex{matches: []vectorstore.Match{
		{DocumentID: "doc-a", Content: "some indexed content here", ChunkPosition: 0, Score: 0.9},
	}}
	srv, token := newTestServer(t, &stubEmbedder{}, index)

	rec := postSearch(t, srv, token, `{"query":"indexed content"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Defaults: maxResults 10 (over-fetched to 20), minScore 0.7
	if index.lastLimit != 20 {
		t.Errorf("expected default over-fetch limit 20, got %d", index.lastLimit)
	}
	if index.lastMinScore != 0.7 {
		t.Errorf("expected default minScore 0.7, got %g", index.lastMinScore)
	}

	var resp search.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("malformed response: %v", err)
	}
	if resp.TotalResults != 1 {
		t.Errorf("expected 1 result, got %d", resp.TotalResults)
	}
}

func TestHandleSearch_RejectsExplicitZeroMaxResults(t *testing.T) {
	srv, token := newTestServer(t, &stubEmbedder{}, &stubIndex{})

	rec := postSearch(t, srv, token, `{"query":"anything","maxResults":0}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("malformed error body: %v", err)
	}
	if resp.Code != "validation_error" {
		t.Errorf("expected validation_error, got %s", resp.Code)
	}
}

func TestHandleSearch_UpstreamFailureMapsTo502(t *testing.T) {
	srv, token := newTestServer(t, &stubEmbedder{err: errors.New("provider down")}, &stubIndex{})

	rec := postSearch(t, srv, token, `{"query":"anything"}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestHandleSearch_RequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, &stubEmbedder{}, &stubIndex{})

	rec := postSearch(t, srv, "", `{"query":"anything"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleSearch_UnknownModeRejected(t *testing.T) {
	srv, token := newTestServer(t, &stubEmbedder{}, &stubIndex{})

	rec := postSearch(t, srv, token, `{"query":"anything","searchType":"fulltext"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
