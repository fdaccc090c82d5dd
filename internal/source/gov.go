package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"lighthouse.app/cityintel/core/config"
	"lighthouse.app/cityintel/internal/model"
)

// GovFetcher reads government records in two passes under one time budget: pass A covers
// departmental pages, pass B the legislative calendar.
type GovFetcher struct {
	scraper scraper
	catalog map[string]config.GovCatalog
	budget  time.Duration
	now     func() time.Time
}

func NewGovFetcher(client *http.Client, catalog map[string]config.GovCatalog, timeout, budget time.Duration, opts ...Option) *GovFetcher {
	o := applyOptions(opts)
	if budget <= 0 {
		budget = 90 * time.Second
	}
	return &GovFetcher{
		scraper: newScraper(client, timeout),
		catalog: catalog,
		budget:  budget,
		now:     o.now,
	}
}

type passError struct {
	Error string `json:"error"`
}

type passSkipped struct {
	Status string `json:"status"`
}

type passAResult struct {
	Metrics []Item `json:"metrics"`
	News    []Item `json:"news"`
}

type legislativeItem struct {
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
	Date   string `json:"date,omitempty"`
	URL    string `json:"url,omitempty"`
}

type passBResult struct {
	Legislation []legislativeItem `json:"legislation"`
}

type govPayload struct {
	PassA   any      `json:"pass_a"`
	PassB   any      `json:"pass_b"`
	Sources []string `json:"sources"`
}

func (f *GovFetcher) Fetch(ctx context.Context, agent model.Agent) (string, error) {
	ctx = component(ctx, "lighthouse.source.gov")

	catalog, ok := f.catalog[agent.Area.Code()]
	if !ok {
		return "", fmt.Errorf("no government pages configured for %s: %w", agent.Area, ErrNoData)
	}

	start := f.now()
	ctx, cancel := context.WithTimeout(ctx, f.budget)
	defer cancel()

	payload := govPayload{Sources: []string{}}

	itemsA, sourcesA, errA := f.runPass(ctx, catalog.PassA)
	if errA != nil {
		slog.WarnContext(ctx, "government pass A failed", "error", errA)
		payload.PassA = passError{Error: "Pass A Failed"}
	} else {
		payload.PassA = splitMetrics(itemsA)
		payload.Sources = append(payload.Sources, sourcesA...)
	}

	var errB error
	if elapsed := f.now().Sub(start); elapsed > f.budget {
		slog.WarnContext(ctx, "government pass B skipped, budget exhausted",
			"elapsed", elapsed,
			"budget", f.budget)
		payload.PassB = passSkipped{Status: "SKIPPED_TIMEOUT"}
		errB = fmt.Errorf("pass B skipped after %s", elapsed)
	} else {
		itemsB, sourcesB, err := f.runPass(ctx, catalog.PassB)
		errB = err
		if err != nil {
			slog.WarnContext(ctx, "government pass B failed", "error", err)
			payload.PassB = passError{Error: "Pass B Failed"}
		} else {
			payload.PassB = legislation(itemsB)
			payload.Sources = appendUnique(payload.Sources, sourcesB...)
		}
	}

	if errA != nil && errB != nil {
		return "", fmt.Errorf("both government passes failed: %v; %v: %w", errA, errB, ErrNoData)
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding government payload: %w", err)
	}
	return string(raw), nil
}

// runPass scrapes the pass's pages in order. It fails only when no page could be read.
func (f *GovFetcher) runPass(ctx context.Context, pages []config.PageSpec) ([]Item, []string, error) {
	if len(pages) == 0 {
		return nil, nil, fmt.Errorf("no pages configured")
	}

	var (
		items   []Item
		sources []string
		lastErr error
	)
	for _, page := range pages {
		pageItems, err := f.scraper.scrapePage(ctx, page)
		if err != nil {
			lastErr = err
			slog.DebugContext(ctx, "government page failed", "page", page.Name, "error", err)
			continue
		}
		items = append(items, pageItems...)
		sources = append(sources, page.URL)
	}

	if len(sources) == 0 {
		return nil, nil, lastErr
	}
	return items, sources, nil
}

// splitMetrics separates headline items carrying figures from plain news.
func splitMetrics(items []Item) passAResult {
	result := passAResult{Metrics: []Item{}, News: []Item{}}
	for _, item := range items {
		if strings.IndexFunc(item.Title, unicode.IsDigit) >= 0 {
			result.Metrics = append(result.Metrics, item)
			continue
		}
		result.News = append(result.News, item)
	}
	return result
}

func legislation(items []Item) passBResult {
	result := passBResult{Legislation: make([]legislativeItem, 0, len(items))}
	for _, item := range items {
		result.Legislation = append(result.Legislation, legislativeItem{
			Title:  item.Title,
			Status: item.Summary,
			Date:   item.Date,
			URL:    item.URL,
		})
	}
	return result
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
