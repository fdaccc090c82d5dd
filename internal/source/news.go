package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"lighthouse.app/cityintel/core/config"
	"lighthouse.app/cityintel/internal/model"
)

// NewsFetcher scrapes local news listings and keeps headlines matching the area's keywords.
type NewsFetcher struct {
	scraper scraper
	catalog config.NewsCatalog
}

func NewNewsFetcher(client *http.Client, catalog config.NewsCatalog, timeout time.Duration) *NewsFetcher {
	if catalog.MaxArticles <= 0 {
		catalog.MaxArticles = 5
	}
	return &NewsFetcher{scraper: newScraper(client, timeout), catalog: catalog}
}

type newsArticle struct {
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	Date           string `json:"date"`
	URL            string `json:"url"`
	RelevanceScore int    `json:"relevance_score"`
}

type newsPayload struct {
	Articles []newsArticle `json:"articles"`
	Sources  []string      `json:"sources"`
	Keywords []string      `json:"keywords"`
}

func (f *NewsFetcher) Fetch(ctx context.Context, agent model.Agent) (string, error) {
	ctx = component(ctx, "lighthouse.source.news")

	keywords := f.catalog.Keywords[agent.Area.Code()]
	if len(keywords) == 0 {
		return "", fmt.Errorf("no news keywords configured for %s: %w", agent.Area, ErrNoData)
	}

	pages := f.catalog.Pages
	items := make([][]Item, len(pages))
	errs := make([]error, len(pages))

	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		go func(idx int, page config.PageSpec) {
			defer wg.Done()
			items[idx], errs[idx] = f.scraper.scrapePage(ctx, page)
		}(i, page)
	}
	wg.Wait()

	payload := newsPayload{Articles: []newsArticle{}, Sources: []string{}, Keywords: keywords}
	seen := map[string]struct{}{}
	for i, page := range pages {
		if errs[i] != nil {
			slog.WarnContext(ctx, "news page fetch failed",
				"page", page.Name,
				"error", errs[i])
			continue
		}
		payload.Sources = append(payload.Sources, page.URL)

		for _, item := range items[i] {
			score := relevance(item, keywords)
			if score == 0 {
				continue
			}
			if _, dup := seen[item.Title]; dup {
				continue
			}
			seen[item.Title] = struct{}{}
			payload.Articles = append(payload.Articles, newsArticle{
				Title:          item.Title,
				Summary:        item.Summary,
				Date:           item.Date,
				URL:            item.URL,
				RelevanceScore: score,
			})
		}
	}

	if len(payload.Sources) == 0 {
		return "", fmt.Errorf("no news page reachable: %w", ErrNoData)
	}
	if len(payload.Articles) == 0 {
		return "", fmt.Errorf("no articles matching %s: %w", strings.Join(keywords, ", "), ErrNoData)
	}

	sort.SliceStable(payload.Articles, func(i, j int) bool {
		return payload.Articles[i].RelevanceScore > payload.Articles[j].RelevanceScore
	})
	if len(payload.Articles) > f.catalog.MaxArticles {
		payload.Articles = payload.Articles[:f.catalog.MaxArticles]
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding news payload: %w", err)
	}
	return string(raw), nil
}

// relevance scores an item 0-10 by the share of keywords it mentions. Zero means no match.
func relevance(item Item, keywords []string) int {
	text := strings.ToLower(item.Title + " " + item.Summary)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	score := hits * 10 / len(keywords)
	if score < 1 {
		score = 1
	}
	return score
}
