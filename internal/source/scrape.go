package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"lighthouse.app/cityintel/core/config"
)

const userAgent = "Lighthouse/1.0 (+https://lighthouse.app)"

// Item is one entry extracted from an HTML listing page.
type Item struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Date    string `json:"date,omitempty"`
	URL     string `json:"url,omitempty"`
}

type scraper struct {
	client *http.Client
}

func newScraper(client *http.Client, timeout time.Duration) scraper {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return scraper{client: client}
}

func (s scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// scrapePage extracts items from one listing page using the page's selectors.
func (s scraper) scrapePage(ctx context.Context, page config.PageSpec) ([]Item, error) {
	doc, err := s.fetchDocument(ctx, page.URL)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(page.URL)
	var items []Item
	seen := map[string]struct{}{}

	doc.Find(page.Item).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		item := Item{
			Title:   firstText(sel, page.Title),
			Summary: firstText(sel, page.Summary),
			Date:    dateOf(sel, page.Date),
			URL:     linkOf(sel, page.Link, base),
		}
		if item.Title == "" {
			return true
		}
		if _, dup := seen[item.Title]; dup {
			return true
		}
		seen[item.Title] = struct{}{}
		items = append(items, item)

		return page.MaxItems <= 0 || len(items) < page.MaxItems
	})

	return items, nil
}

func firstText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapseSpace(sel.Find(selector).First().Text())
}

func dateOf(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	node := sel.Find(selector).First()
	if dt, ok := node.Attr("datetime"); ok && dt != "" {
		return strings.TrimSpace(dt)
	}
	return collapseSpace(node.Text())
}

func linkOf(sel *goquery.Selection, selector string, base *url.URL) string {
	if selector == "" {
		selector = "a"
	}
	href, ok := sel.Find(selector).First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
