// Package search implements the hybrid retrieval and reranking engine:
// semantic and keyword retrieval over a per-user vector index, score
// fusion, deterministic multi-factor reranking, and a time-bounded
// result cache.
package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request bounds and defaults. Defaults are applied by the transport
// layer when a field is absent; the engine itself rejects out-of-range
// values, including zero.
const (
	DefaultMaxResults = 10
	MinResults        = 1
	MaxResults        = 100

	DefaultMinScore = 0.7
	MinScoreFloor   = 0.5
	MinScoreCeil    = 1.0

	// DefaultTimeout bounds a whole search call.
	DefaultTimeout = 5 * time.Second
)

// Engine internals.
const (
	// maxCandidates is the absolute ceiling on candidates fetched from
	// the index in one call, regardless of the requested over-fetch.
	maxCandidates = 1000

	// keywordScanLimit bounds the unfiltered candidate pool the keyword
	// engine scans. Acceptable because each user's corpus is bounded;
	// this is not a general full-text index.
	keywordScanLimit = 1000

	// semanticWeight is applied to semantic scores before hybrid
	// merging, reflecting higher trust in vector similarity.
	semanticWeight = 1.2
)

// Cache tunables.
const (
	DefaultCacheTTL = 300 * time.Second
	cacheKeyPrefix  = "vector:search:"
)

// Mode selects the retrieval strategy.
type Mode int

const (
	ModeSemantic Mode = iota
	ModeKeyword
	ModeHybrid
)

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "semantic":
		return ModeSemantic, nil
	case "keyword":
		return ModeKeyword, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return 0, &ValidationError{Field: "searchType", Reason: fmt.Sprintf("unknown search type %q", s)}
	}
}

func (m Mode) String() string {
	switch m {
	case ModeSemantic:
		return "semantic"
	case ModeKeyword:
		return "keyword"
	case ModeHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Request is a fully specified search call. All fields are required.
type Request struct {
	Query      string
	UserID     uuid.UUID
	Username   string
	Mode       Mode
	MaxResults int
	MinScore   float64
}

// Validate rejects malformed requests before any I/O happens.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if r.UserID == uuid.Nil || r.Username == "" {
		return &ValidationError{Field: "user", Reason: "user identity is required"}
	}
	switch r.Mode {
	case ModeSemantic, ModeKeyword, ModeHybrid:
	default:
		return &ValidationError{Field: "searchType", Reason: fmt.Sprintf("unknown search type %d", int(r.Mode))}
	}
	if r.MaxResults < MinResults || r.MaxResults > MaxResults {
		return &ValidationError{
			Field:  "maxResults",
			Reason: fmt.Sprintf("must be in [%d, %d], got %d", MinResults, MaxResults, r.MaxResults),
		}
	}
	if r.MinScore < MinScoreFloor || r.MinScore > MinScoreCeil {
		return &ValidationError{
			Field:  "minScore",
			Reason: fmt.Sprintf("must be in [%.1f, %.1f], got %g", MinScoreFloor, MinScoreCeil, r.MinScore),
		}
	}
	return nil
}

// Candidate is a pre-rerank hit from one of the retrieval engines.
// Score carries the engine's raw score: index similarity for semantic
// hits, lexical match score for keyword hits.
type Candidate struct {
	DocumentID    string
	Title         string
	Content       string
	ChunkPosition int
	SourceType    string
	Score         float64
}

// Result is a final, reranked hit. Results are immutable value objects;
// cache entries are copied on read.
type Result struct {
	DocumentID    string  `json:"documentId"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	ChunkPosition int     `json:"chunkPosition"`
	SourceType    string  `json:"sourceType"`
	FinalScore    float64 `json:"finalScore"`
}

// Response is the outcome of one search call.
type Response struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"totalResults"`
	SearchTimeMs int64    `json:"searchTimeMs"`
	CacheHit     bool     `json:"cacheHit"`
}
