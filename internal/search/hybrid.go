package search

import "sort"

type mergeKey struct {
	documentID    string
	chunkPosition int
}

// mergeCandidates fuses semantic and keyword candidate sets. Semantic
// scores are weighted up before comparison; on a (documentId,
// chunkPosition) collision the higher weighted score wins, so the merge
// is commutative. The output ordering is deterministic regardless of
// which sub-search finished first.
func mergeCandidates(semantic, keyword []Candidate) []Candidate {
	merged := make(map[mergeKey]Candidate, len(semantic)+len(keyword))

	for _, c := range semantic {
		c.Score *= semanticWeight
		key := mergeKey{c.DocumentID, c.ChunkPosition}
		if existing, ok := merged[key]; !ok || c.Score > existing.Score {
			merged[key] = c
		}
	}

	for _, c := range keyword {
		key := mergeKey{c.DocumentID, c.ChunkPosition}
		if existing, ok := merged[key]; !ok || c.Score > existing.Score {
			merged[key] = c
		}
	}

	out := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].ChunkPosition != out[j].ChunkPosition {
			return out[i].ChunkPosition < out[j].ChunkPosition
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}
