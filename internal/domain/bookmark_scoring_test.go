package domain

import (
	"fmt"
	"testing"
)

func TestScoreBookmark(t *testing.T) {
	tests := []struct {
		name           string
		queryStr       string
		title          string
		url            string
		expectPositive bool
	}{
		{
			name:           "exact match",
			queryStr:       "chatgpt",
			title:          "ChatGPT",
			url:            "https://example.com",
			expectPositive: true,
		},
		{
			name:           "prefix match",
			queryStr:       "chat",
			title:          "ChatGPT",
			url:            "https://example.com",
			expectPositive: true,
		},
		{
			name:           "substring match",
			queryStr:       "gpt",
			title:          "ChatGPT",
			url:            "https://example.com",
			expectPositive: true,
		},
		{
			name:           "no match",
			queryStr:       "xyz",
			title:          "ChatGPT",
			url:            "https://example.com",
			expectPositive: false,
		},
		{
			name:           "multi-word match",
			queryStr:       "docker hub",
			title:          "Docker Hub",
			url:            "https://hub.docker.com",
			expectPositive: true,
		},
		{
			name:           "host match",
			queryStr:       "github",
			title:          "My dotfiles",
			url:            "https://www.github.com/me/dotfiles",
			expectPositive: true,
		},
		{
			name:           "case folded",
			queryStr:       "STRASSE",
			title:          "Straße",
			url:            "https://example.com",
			expectPositive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookmark := Bookmark{ID: "test-id", Title: tt.title, URL: tt.url}

			score := ScoreBookmark(tt.queryStr, bookmark)

			if tt.expectPositive && score <= 0 {
				t.Errorf("Expected positive score, got %f", score)
			}

			if !tt.expectPositive && score > 0 {
				t.Errorf("Expected zero score, got %f", score)
			}
		})
	}
}

func TestRankBookmarkCandidates_TitleBeatsHost(t *testing.T) {
	bookmarks := []Bookmark{
		{ID: "host", Title: "Some repo", URL: "https://github.com/a/b"},
		{ID: "title", Title: "GitHub", URL: "https://example.com"},
	}

	candidates := RankBookmarkCandidates("github", bookmarks)
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Bookmark.ID != "title" {
		t.Errorf("Expected exact title match first, got %s", candidates[0].Bookmark.ID)
	}
}

func TestPaletteResults(t *testing.T) {
	bookmarks := make([]Bookmark, 0, 12)
	for i := 0; i < 12; i++ {
		bookmarks = append(bookmarks, Bookmark{
			ID:    fmt.Sprintf("b%d", i),
			Title: fmt.Sprintf("Docs page %d", i),
			URL:   fmt.Sprintf("https://docs.example.com/%d", i),
		})
	}

	tests := []struct {
		name    string
		query   string
		want    int
		firstID string
	}{
		{name: "empty query shows first six", query: "", want: PaletteEmptyResults, firstID: "b0"},
		{name: "blank query shows first six", query: "   ", want: PaletteEmptyResults, firstID: "b0"},
		{name: "matching query capped", query: "docs", want: PaletteMaxResults, firstID: "b0"},
		{name: "no match", query: "zzzz", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PaletteResults(tt.query, bookmarks)
			if len(got) != tt.want {
				t.Fatalf("PaletteResults() returned %d results, want %d", len(got), tt.want)
			}
			if tt.firstID != "" && got[0].ID != tt.firstID {
				t.Errorf("PaletteResults()[0] = %s, want %s", got[0].ID, tt.firstID)
			}
		})
	}
}
