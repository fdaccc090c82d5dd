package source_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/core/config"
	"lighthouse.app/cityintel/internal/cache"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/source"
)

var _ = Describe("DatasetFetcher", func() {
	var (
		server   *httptest.Server
		requests atomic.Int32
		queries  chan string
		failing  map[string]bool
		c        *cache.Cache
		fetcher  *source.DatasetFetcher
		agent    model.Agent
		now      = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	)

	BeforeEach(func() {
		requests.Store(0)
		queries = make(chan string, 10)
		failing = map[string]bool{}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			queries <- r.URL.Path + "?" + r.URL.RawQuery
			if failing[r.URL.Path] {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"incident_id":"1"},{"incident_id":"2"}]`))
		}))

		c = cache.New(5 * time.Minute)
		fetcher = source.NewDatasetFetcher(server.Client(), source.DatasetConfig{
			BaseURL: server.URL,
			Timeout: 2 * time.Second,
			Catalog: map[string]config.DatasetGroup{
				"PS": {
					CacheKey: "PS_DATA",
					Datasets: []config.DatasetSpec{
						{ID: "wg3w-h783", Name: "Police Incidents", Key: "police_incidents", DateField: "incident_date", WindowDays: 7, OrderField: "incident_date", Limit: 50},
						{ID: "nuek-vuh3", Name: "Fire Calls", Key: "fire_calls", DateField: "call_date", WindowDays: 30, OrderField: "call_date", Limit: 50},
					},
				},
			},
		}, c, source.WithClock(func() time.Time { return now }))

		agent = model.DefaultAgents()[0]
	})

	AfterEach(func() {
		server.Close()
	})

	It("combines every dataset into one payload with per-source status", func() {
		raw, err := fetcher.Fetch(context.Background(), agent)
		Expect(err).NotTo(HaveOccurred())

		var payload struct {
			Agent     string `json:"agent"`
			Timestamp string `json:"timestamp"`
			Sources   []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Count  int    `json:"count"`
			} `json:"sources"`
			Data map[string][]map[string]any `json:"data"`
		}
		Expect(json.Unmarshal([]byte(raw), &payload)).To(Succeed())
		Expect(payload.Agent).To(Equal("PS-1 (SODA)"))
		Expect(payload.Timestamp).To(Equal("2025-06-10T08:00:00Z"))
		Expect(payload.Sources).To(HaveLen(2))
		Expect(payload.Sources[0].Status).To(Equal("OK"))
		Expect(payload.Sources[0].Count).To(Equal(2))
		Expect(payload.Data).To(HaveKey("police_incidents"))
		Expect(payload.Data["fire_calls"]).To(HaveLen(2))
	})

	It("queries a dated window ordered newest first", func() {
		_, err := fetcher.Fetch(context.Background(), agent)
		Expect(err).NotTo(HaveOccurred())

		seen := []string{<-queries, <-queries}
		Expect(seen).To(ContainElement(And(
			ContainSubstring("/wg3w-h783.json?"),
			ContainSubstring("%24where=incident_date+%3E+%272025-06-03%27"),
			ContainSubstring("%24limit=50"),
			ContainSubstring("%24order=incident_date+DESC"),
		)))
	})

	It("reports a failed dataset without failing the fetch", func() {
		failing["/nuek-vuh3.json"] = true

		raw, err := fetcher.Fetch(context.Background(), agent)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(ContainSubstring(`"status": "FAILED"`))
		Expect(raw).To(ContainSubstring(`"fire_calls": []`))
	})

	It("fails with ErrNoData when every dataset fails", func() {
		failing["/nuek-vuh3.json"] = true
		failing["/wg3w-h783.json"] = true

		_, err := fetcher.Fetch(context.Background(), agent)
		Expect(err).To(MatchError(source.ErrNoData))
		Expect(c.Len()).To(Equal(0))
	})

	It("serves repeated fetches from the cache until it is cleared", func() {
		first, err := fetcher.Fetch(context.Background(), agent)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(BeEquivalentTo(2))

		second, err := fetcher.Fetch(context.Background(), agent)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
		Expect(requests.Load()).To(BeEquivalentTo(2))

		c.Clear()
		_, err = fetcher.Fetch(context.Background(), agent)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(BeEquivalentTo(4))
	})

	It("fails for areas without configured datasets", func() {
		_, err := fetcher.Fetch(context.Background(), model.DefaultAgents()[6])
		Expect(err).To(MatchError(source.ErrNoData))
	})
})
