package domain

import (
	"net/url"
	"sort"
	"strings"
)

// Score constants for palette matching
const (
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
	ScoreFuzzyMatch     = 25.0

	// Bonus for matches found early in the title
	ScorePositionBonus = 10.0

	// Bonus applied to exact title matches
	ScoreExactTitleBonus = 200.0

	// Weight of a match on the URL host compared to the title
	ScoreHostWeight = 0.6
)

// Palette limits
const (
	PaletteMaxResults   = 8
	PaletteEmptyResults = 6
)

// BookmarkCandidate represents a bookmark candidate with its match score
type BookmarkCandidate struct {
	Bookmark Bookmark
	Score    float64
}

// ScoreBookmark calculates the match score for a bookmark against a query string.
// Title matches dominate; a match on the URL host counts for less.
func ScoreBookmark(queryStr string, bookmark Bookmark) float64 {
	queryStr = fold(strings.TrimSpace(queryStr))
	if queryStr == "" {
		return 0.0
	}

	title := scoreText(queryStr, fold(bookmark.Title))
	host := scoreText(queryStr, fold(hostOf(bookmark.URL))) * ScoreHostWeight
	if host > title {
		return host
	}
	return title
}

func scoreText(queryStr, text string) float64 {
	if text == "" {
		return 0.0
	}

	// Exact match (highest score)
	if queryStr == text {
		return ScoreExactMatch + ScoreExactTitleBonus
	}

	if strings.HasPrefix(text, queryStr) {
		return ScorePrefixMatch
	}

	if idx := strings.Index(text, queryStr); idx >= 0 {
		// Earlier substring matches get higher score
		return ScoreSubstringMatch + ScorePositionBonus*(1.0-float64(idx)/float64(len(text)))
	}

	// Every query word appears somewhere
	queryWords := strings.Fields(queryStr)
	if len(queryWords) > 1 {
		allMatch := true
		for _, word := range queryWords {
			if !strings.Contains(text, word) {
				allMatch = false
				break
			}
		}
		if allMatch {
			return ScoreFuzzyMatch
		}
	}

	if similarity := calculateSimilarity(queryStr, text); similarity > 0.8 {
		return ScoreFuzzyMatch * similarity
	}

	return 0.0
}

// calculateSimilarity is the share of query runes present in s2.
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0.0
	}

	matches, total := 0, 0
	for _, c := range s1 {
		total++
		if strings.ContainsRune(s2, c) {
			matches++
		}
	}

	return float64(matches) / float64(total)
}

// RankBookmarkCandidates ranks bookmark candidates by score. Ties keep the
// input order, which is newest first.
func RankBookmarkCandidates(queryStr string, bookmarks []Bookmark) []BookmarkCandidate {
	candidates := make([]BookmarkCandidate, 0, len(bookmarks))

	for _, bookmark := range bookmarks {
		score := ScoreBookmark(queryStr, bookmark)
		if score == 0.0 {
			continue
		}
		candidates = append(candidates, BookmarkCandidate{Bookmark: bookmark, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates
}

// PaletteResults returns what the command palette shows for a query: the
// best PaletteMaxResults matches, or the first PaletteEmptyResults
// bookmarks when the query is blank.
func PaletteResults(queryStr string, bookmarks []Bookmark) []Bookmark {
	if strings.TrimSpace(queryStr) == "" {
		n := min(len(bookmarks), PaletteEmptyResults)
		out := make([]Bookmark, n)
		copy(out, bookmarks[:n])
		return out
	}

	candidates := RankBookmarkCandidates(queryStr, bookmarks)
	if len(candidates) > PaletteMaxResults {
		candidates = candidates[:PaletteMaxResults]
	}
	out := make([]Bookmark, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Bookmark)
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
