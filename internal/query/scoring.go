package query

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/memexlabs/memex/internal/episode"
)

// EmbeddingProvider replaces the Jaccard word-overlap fallback for L4
// text similarity with embedding cosine similarity, when supplied.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

func domainMatch(episodeDomain, queryDomain string) float64 {
	if queryDomain == "" || episodeDomain == queryDomain {
		return 1.0
	}
	return 0.0
}

func taskTypeMatch(episodeTaskType, queryTaskType string) float64 {
	if queryTaskType == "" || episodeTaskType == queryTaskType {
		return 1.0
	}
	return 0.0
}

// temporalProximity decays exponentially with a 30-day half-life
// relative to now, matching quality.recencyScore's formula so the
// capacity manager and the retrieval engine rank "old" consistently.
func temporalProximity(t, now time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	const halfLife = 30 * 24 * time.Hour
	age := now.Sub(t)
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * float64(age) / float64(halfLife))
}

// textSimilarity scores req.Text against the episode's description and
// key insights, preferring embedding cosine similarity when a provider
// is configured and falling back to Jaccard word overlap otherwise.
func (e *Engine) textSimilarity(ctx context.Context, ep *episode.Episode, text string) float64 {
	if text == "" {
		return 0
	}
	doc := episodeDoc(ep)

	if e.cfg.Embedding != nil {
		qv, err1 := e.cfg.Embedding.Embed(ctx, text)
		dv, err2 := e.cfg.Embedding.Embed(ctx, doc)
		if err1 == nil && err2 == nil {
			return cosineSimilarity(qv, dv)
		}
	}
	return wordOverlap(text, doc)
}

func episodeDoc(ep *episode.Episode) string {
	var b strings.Builder
	b.WriteString(ep.Description)
	if ep.Salient != nil {
		for _, insight := range ep.Salient.KeyInsights {
			b.WriteString(" ")
			b.WriteString(insight)
		}
	}
	return b.String()
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// wordOverlap computes Jaccard similarity over the lowercase word sets
// of two strings, the text-similarity fallback when no embedding
// provider is configured.
func wordOverlap(a, b string) float64 {
	setA := toSet(words(a))
	setB := toSet(words(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func words(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
