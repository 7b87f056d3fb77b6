package catalog

import (
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/unicode/norm"

	"github.com/fitpro/fitsync/internal/domain"
)

// Match is a course matching a search query.
type Match struct {
	Course         domain.Course
	Score          int   // lower is better
	MatchedIndexes []int // rune positions in Course.Name
}

// Search ranks courses whose display or Latin name matches every word of query.
// Word order does not matter and longer words tolerate typos.
func (c *Catalog) Search(query string) []Match {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var matches []Match
	for _, course := range c.Courses() {
		best, ok := matchName(course.Name, queryTokens)
		if en, enOK := matchName(course.NameEN, queryTokens); enOK && (!ok || en.score < best.score) {
			best, ok = en, true
			best.indexes = nil // positions refer to NameEN
		}
		if !ok {
			continue
		}
		matches = append(matches, Match{Course: course, Score: best.score, MatchedIndexes: best.indexes})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score < matches[j].Score
		}
		return len(matches[i].Course.Name) < len(matches[j].Course.Name)
	})
	return matches
}

// normalize folds case and composes characters so "й" typed as и+breve
// matches the precomposed form.
func normalize(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

type token struct {
	text       string
	start, end int // rune positions in the normalized string
}

func tokenize(s string) []token {
	runes := []rune(normalize(s))

	var tokens []token
	start := -1
	for i, r := range runes {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			tokens = append(tokens, token{text: string(runes[start:i]), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{text: string(runes[start:]), start: start, end: len(runes)})
	}
	return tokens
}

type nameMatch struct {
	score   int
	indexes []int
}

// matchName requires every query token to match a distinct name token.
func matchName(name string, queryTokens []token) (nameMatch, bool) {
	if name == "" {
		return nameMatch{}, false
	}
	nameTokens := tokenize(name)
	used := make([]bool, len(nameTokens))

	var result nameMatch
	for _, q := range queryTokens {
		bestScore, bestIdx := -1, -1
		for i, t := range nameTokens {
			if used[i] {
				continue
			}
			if s := scoreToken(q.text, t.text); s >= 0 && (bestScore < 0 || s < bestScore) {
				bestScore, bestIdx = s, i
			}
		}
		if bestIdx < 0 {
			return nameMatch{}, false
		}
		used[bestIdx] = true
		result.score += bestScore

		t := nameTokens[bestIdx]
		end := t.end
		if bestScore == 10 {
			end = t.start + len([]rune(q.text))
		}
		for p := t.start; p < end; p++ {
			result.indexes = append(result.indexes, p)
		}
	}

	// prefer names without many unmatched words
	if extra := len(nameTokens) - len(queryTokens); extra > 0 {
		result.score += extra * 5
	}
	sort.Ints(result.indexes)
	return result, true
}

// scoreToken returns -1 when query does not match word.
func scoreToken(query, word string) int {
	switch {
	case query == word:
		return 0
	case strings.HasPrefix(word, query):
		return 10
	case strings.Contains(word, query):
		return 50
	}
	if limit := allowedTypos(len([]rune(query))); limit > 0 {
		if d := fuzzy.LevenshteinDistance(query, word); d <= limit {
			return 100 + d*20
		}
	}
	return -1
}

// allowedTypos: 1-3 runes none, 4-6 one, 7+ two.
func allowedTypos(n int) int {
	switch {
	case n <= 3:
		return 0
	case n <= 6:
		return 1
	default:
		return 2
	}
}
