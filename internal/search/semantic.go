package search

import (
	"context"

	"github.com/kbase/kbase/internal/vectorstore"
)

// semanticCandidates embeds the query and fetches nearest neighbors
// above the similarity floor. It over-fetches to give reranking room to
// reorder, bounded by the absolute candidate ceiling.
func (s *Service) semanticCandidates(ctx context.Context, req *Request) ([]Candidate, error) {
	vector, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, &UpstreamError{Source: SourceEmbedder, Err: err}
	}

	collection := vectorstore.CollectionName(req.Username, req.UserID)
	limit := overFetchLimit(req.MaxResults)

	matches, err := s.index.Search(ctx, collection, vector, limit, req.MinScore)
	if err != nil {
		return nil, &UpstreamError{Source: SourceIndex, Err: err}
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, candidateFromMatch(m))
	}
	return candidates, nil
}

func candidateFromMatch(m vectorstore.Match) Candidate {
	return Candidate{
		DocumentID:    m.DocumentID,
		Title:         m.Title,
		Content:       m.Content,
		ChunkPosition: m.ChunkPosition,
		SourceType:    m.SourceType,
		Score:         m.Score,
	}
}

func overFetchLimit(maxResults int) int {
	limit := maxResults * 2
	if limit > maxCandidates {
		limit = maxCandidates
	}
	return limit
}
