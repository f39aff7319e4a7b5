package search

import (
	"sort"
	"strings"
)

// Reranking weights. They sum to 1.0; semantic similarity dominates,
// lexical relevance second, the remaining signals refine ordering.
const (
	weightSemantic   = 0.35
	weightRelevance  = 0.25
	weightDiversity  = 0.15
	weightFreshness  = 0.10
	weightPositional = 0.10
	weightLength     = 0.05
)

// tokenize lowercases the query and splits it on whitespace.
func tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// containsWholeWord reports whether content contains token delimited by
// spaces or string boundaries, as opposed to a substring match.
func containsWholeWord(content, token string) bool {
	if content == token {
		return true
	}
	if strings.HasPrefix(content, token+" ") {
		return true
	}
	if strings.HasSuffix(content, " "+token) {
		return true
	}
	return strings.Contains(content, " "+token+" ")
}

// lexicalScore scores content against query tokens. Whole-word matches
// count double; the result is clamped to [0, 1].
func lexicalScore(content string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(content)

	var totalMatches, exactMatches int
	for _, token := range tokens {
		if !strings.Contains(lower, token) {
			continue
		}
		totalMatches++
		if containsWholeWord(lower, token) {
			exactMatches++
		}
	}

	score := float64(2*exactMatches+totalMatches) / float64(2*len(tokens))
	return min(1.0, score)
}

// relevanceComponent is the fraction of query tokens literally present
// in the content, case-insensitively.
func relevanceComponent(content string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, token := range tokens {
		if strings.Contains(lower, token) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// diversityComponent penalizes over-representation of one document:
// 1/(1+N) where N is the number of other candidates from the same one.
func diversityComponent(documentID string, sameDocCount int) float64 {
	others := sameDocCount - 1
	if others < 0 {
		others = 0
	}
	return 1.0 / float64(1+others)
}

// freshnessComponent favors earlier chunks with a gentle linear decay.
func freshnessComponent(position int) float64 {
	return max(0.1, 1.0-0.01*float64(position))
}

// positionalComponent is a second, steeper position decay.
func positionalComponent(position int) float64 {
	return max(0.1, 1.0/(1.0+0.1*float64(position)))
}

// lengthComponent favors mid-sized chunks: content between 100 and 1000
// bytes scores 1.0, shorter and longer content decays.
func lengthComponent(content string) float64 {
	n := len(content)
	switch {
	case n == 0:
		return 0
	case n < 100:
		return float64(n) / 100.0
	case n <= 1000:
		return 1.0
	default:
		return max(0.1, 1000.0/float64(n))
	}
}

// rerank computes final scores for every candidate and returns results
// sorted by score descending, truncated to maxResults. The input slice
// is not mutated. Ordering is fully deterministic: ties break on
// ascending chunk position, then document ID.
func rerank(query string, candidates []Candidate, maxResults int) []Result {
	if len(candidates) == 0 {
		return []Result{}
	}

	tokens := tokenize(query)

	docCounts := make(map[string]int, len(candidates))
	for _, c := range candidates {
		docCounts[c.DocumentID]++
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		score := weightSemantic*c.Score +
			weightRelevance*relevanceComponent(c.Content, tokens) +
			weightDiversity*diversityComponent(c.DocumentID, docCounts[c.DocumentID]) +
			weightFreshness*freshnessComponent(c.ChunkPosition) +
			weightPositional*positionalComponent(c.ChunkPosition) +
			weightLength*lengthComponent(c.Content)

		results = append(results, Result{
			DocumentID:    c.DocumentID,
			Title:         c.Title,
			Content:       c.Content,
			ChunkPosition: c.ChunkPosition,
			SourceType:    c.SourceType,
			FinalScore:    score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		if results[i].ChunkPosition != results[j].ChunkPosition {
			return results[i].ChunkPosition < results[j].ChunkPosition
		}
		return results[i].DocumentID < results[j].DocumentID
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}
