package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"lighthouse.app/cityintel/core/config"
	"lighthouse.app/cityintel/internal/cache"
	"lighthouse.app/cityintel/internal/model"
)

const (
	datasetStatusOK     = "OK"
	datasetStatusFailed = "FAILED"
)

type DatasetConfig struct {
	BaseURL  string
	AppToken string
	Timeout  time.Duration
	Catalog  map[string]config.DatasetGroup
}

// DatasetFetcher reads an area's SODA datasets concurrently and memoizes the combined payload.
type DatasetFetcher struct {
	client *http.Client
	cfg    DatasetConfig
	cache  *cache.Cache
	now    func() time.Time
}

func NewDatasetFetcher(client *http.Client, cfg DatasetConfig, c *cache.Cache, opts ...Option) *DatasetFetcher {
	o := applyOptions(opts)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &DatasetFetcher{
		client: client,
		cfg:    cfg,
		cache:  c,
		now:    o.now,
	}
}

type datasetStatus struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type datasetPayload struct {
	Agent     string                       `json:"agent"`
	Timestamp string                       `json:"timestamp"`
	Sources   []datasetStatus              `json:"sources"`
	Data      map[string][]json.RawMessage `json:"data"`
}

func (f *DatasetFetcher) Fetch(ctx context.Context, agent model.Agent) (string, error) {
	ctx = component(ctx, "lighthouse.source.dataset")

	group, ok := f.cfg.Catalog[agent.Area.Code()]
	if !ok || len(group.Datasets) == 0 {
		return "", fmt.Errorf("no datasets configured for %s: %w", agent.Area, ErrNoData)
	}

	if f.cache != nil {
		if cached, hit := f.cache.Get(group.CacheKey); hit {
			slog.DebugContext(ctx, "using cached dataset payload", "cache_key", group.CacheKey)
			return cached, nil
		}
	}

	rows := make([][]json.RawMessage, len(group.Datasets))
	errs := make([]error, len(group.Datasets))

	var wg sync.WaitGroup
	for i, ds := range group.Datasets {
		wg.Add(1)
		go func(idx int, ds config.DatasetSpec) {
			defer wg.Done()
			rows[idx], errs[idx] = f.query(ctx, ds)
		}(i, ds)
	}
	wg.Wait()

	payload := datasetPayload{
		Agent:     agent.Name,
		Timestamp: f.now().UTC().Format(time.RFC3339),
		Sources:   make([]datasetStatus, 0, len(group.Datasets)),
		Data:      make(map[string][]json.RawMessage, len(group.Datasets)),
	}

	failed := 0
	for i, ds := range group.Datasets {
		status := datasetStatus{ID: ds.ID, Name: ds.Name, Status: datasetStatusOK, Count: len(rows[i])}
		if errs[i] != nil {
			failed++
			status.Status = datasetStatusFailed
			status.Count = 0
			slog.WarnContext(ctx, "dataset fetch failed",
				"dataset", ds.ID,
				"error", errs[i])
		}
		payload.Sources = append(payload.Sources, status)

		data := rows[i]
		if data == nil {
			data = []json.RawMessage{}
		}
		payload.Data[ds.Key] = data
	}

	if failed == len(group.Datasets) {
		return "", fmt.Errorf("all %d datasets failed for %s: %w", failed, agent.Area, ErrNoData)
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding dataset payload: %w", err)
	}
	result := string(raw)

	if f.cache != nil {
		if f.cache.Changed(group.CacheKey, result) {
			slog.DebugContext(ctx, "dataset payload changed", "cache_key", group.CacheKey)
		}
		f.cache.Set(group.CacheKey, result)
	}

	slog.InfoContext(ctx, "datasets fetched",
		"datasets", len(group.Datasets),
		"failed", failed)

	return result, nil
}

func (f *DatasetFetcher) query(ctx context.Context, ds config.DatasetSpec) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/%s.json?%s", strings.TrimRight(f.cfg.BaseURL, "/"), ds.ID, f.queryParams(ds))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if f.cfg.AppToken != "" {
		req.Header.Set("X-App-Token", f.cfg.AppToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request dataset %s: %w", ds.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SODA API error for %s: %s", ds.ID, resp.Status)
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", ds.ID, err)
	}
	return rows, nil
}

// queryParams builds the SoQL window: rows newer than WindowDays, newest first.
func (f *DatasetFetcher) queryParams(ds config.DatasetSpec) string {
	params := url.Values{}
	if ds.DateField != "" && ds.WindowDays > 0 {
		since := f.now().UTC().AddDate(0, 0, -ds.WindowDays).Format("2006-01-02")
		params.Set("$where", fmt.Sprintf("%s > '%s'", ds.DateField, since))
	}
	params.Set("$limit", strconv.Itoa(ds.Limit))
	if ds.OrderField != "" {
		params.Set("$order", ds.OrderField+" DESC")
	}
	return params.Encode()
}
