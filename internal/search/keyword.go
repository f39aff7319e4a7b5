package search

import (
	"context"
	"sort"

	"github.com/kbase/kbase/internal/vectorstore"
)

// keywordCandidates scans a bounded candidate pool and scores each
// chunk lexically against the query tokens. Similarity is irrelevant
// here, so the scan uses a zero query vector with no score floor. Only
// chunks containing at least one query token survive.
func (s *Service) keywordCandidates(ctx context.Context, req *Request) ([]Candidate, error) {
	tokens := tokenize(req.Query)
	if len(tokens) == 0 {
		return []Candidate{}, nil
	}

	collection := vectorstore.CollectionName(req.Username, req.UserID)
	zeroVector := make([]float32, s.dimension)

	matches, err := s.index.Search(ctx, collection, zeroVector, keywordScanLimit, 0)
	if err != nil {
		return nil, &UpstreamError{Source: SourceIndex, Err: err}
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		score := lexicalScore(m.Content, tokens)
		if score <= 0 {
			continue
		}
		c := candidateFromMatch(m)
		c.Score = score
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].ChunkPosition != candidates[j].ChunkPosition {
			return candidates[i].ChunkPosition < candidates[j].ChunkPosition
		}
		return candidates[i].DocumentID < candidates[j].DocumentID
	})

	return candidates, nil
}
