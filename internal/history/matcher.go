package history

import (
	"regexp"
	"strings"

	"lighthouse.app/cityintel/internal/model"
)

// Matcher decides whether a fresh title refers to an issue already in the log.
type Matcher interface {
	// Match returns the id of the first past issue matching title.
	Match(title string, issues []model.PastIssue) (int, bool)
}

// PrefixMatcher matches when either lowercase title contains the first Words words of the other.
type PrefixMatcher struct {
	Words int
}

func NewPrefixMatcher() PrefixMatcher {
	return PrefixMatcher{Words: 3}
}

func (m PrefixMatcher) Match(title string, issues []model.PastIssue) (int, bool) {
	words := m.Words
	if words <= 0 {
		words = 3
	}

	fresh := strings.ToLower(strings.TrimSpace(title))
	freshPrefix := leadingWords(fresh, words)
	for _, p := range issues {
		past := strings.ToLower(strings.TrimSpace(p.Title))
		pastPrefix := leadingWords(past, words)

		if freshPrefix != "" && strings.Contains(past, freshPrefix) {
			return p.ID, true
		}
		if pastPrefix != "" && strings.Contains(fresh, pastPrefix) {
			return p.ID, true
		}
	}
	return 0, false
}

func leadingWords(s string, n int) string {
	fields := strings.Split(s, " ")
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.TrimSpace(strings.Join(fields, " "))
}

// JaccardThreshold is the minimum keyword similarity for JaccardMatcher.
const JaccardThreshold = 0.5

var wordSplitter = regexp.MustCompile(`[^a-z0-9]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "for": true, "to": true, "at": true, "by": true,
	"with": true, "from": true, "is": true, "are": true, "across": true,
	"sf": true, "city": true, "san": true, "francisco": true,
}

// JaccardMatcher matches on keyword-set overlap and picks the most similar past issue.
type JaccardMatcher struct {
	Threshold float64
}

func NewJaccardMatcher() JaccardMatcher {
	return JaccardMatcher{Threshold: JaccardThreshold}
}

func (m JaccardMatcher) Match(title string, issues []model.PastIssue) (int, bool) {
	threshold := m.Threshold
	if threshold <= 0 {
		threshold = JaccardThreshold
	}

	fresh := extractKeywords(title)
	bestID, best := 0, 0.0
	for _, p := range issues {
		sim := jaccardSimilarity(fresh, extractKeywords(p.Title))
		if sim >= threshold && sim > best {
			bestID, best = p.ID, sim
		}
	}
	return bestID, best > 0
}

// TitleSimilarity returns the keyword Jaccard similarity of two titles in [0, 1].
func TitleSimilarity(a, b string) float64 {
	return jaccardSimilarity(extractKeywords(a), extractKeywords(b))
}

func extractKeywords(s string) map[string]bool {
	keywords := make(map[string]bool)
	for _, word := range wordSplitter.Split(strings.ToLower(s), -1) {
		if len(word) < 2 || stopWords[word] {
			continue
		}
		keywords[word] = true
	}
	return keywords
}

func jaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for word := range set1 {
		if set2[word] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	return float64(intersection) / float64(union)
}
