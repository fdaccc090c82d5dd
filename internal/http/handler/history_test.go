package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/internal/history"
	"lighthouse.app/cityintel/internal/http/dto"
	"lighthouse.app/cityintel/internal/http/handler"
	"lighthouse.app/cityintel/internal/http/router"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/store"
)

var _ = Describe("HistoryHandler", func() {
	var (
		tracker *history.Tracker
		engine  *gin.Engine
	)

	patch := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		tracker = history.NewTracker(store.NewMemoryPastIssueStore(50))
		Expect(tracker.AddPastIssues(context.Background(), []model.IssueCard{
			{ID: 1, Title: "Transit delays near Civic Center", Areas: []model.Area{model.AreaInfrastructure}, Severity: model.SeverityHigh},
		})).To(Succeed())

		engine = gin.New()
		router.HistoryRouter(engine.Group("/history"), handler.NewHistoryHandler(tracker))
	})

	It("lists past issues", func() {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp dto.PastIssueListResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Count).To(Equal(1))
		Expect(resp.Issues[0].Title).To(Equal("Transit delays near Civic Center"))
		Expect(resp.Issues[0].Status).To(Equal(model.PastIssueMonitoring))
	})

	It("returns an empty list rather than null", func() {
		engine = gin.New()
		router.HistoryRouter(engine.Group("/history"), handler.NewHistoryHandler(&mockPastIssues{}))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))
		Expect(w.Body.String()).To(MatchJSON(`{"issues":[],"count":0}`))
	})

	It("updates a past issue status", func() {
		issues, err := tracker.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		path := "/history/" + strconv.Itoa(issues[0].ID) + "/status"

		w := patch(path, `{"status":"resolved"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		issues, err = tracker.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(issues[0].Status).To(Equal(model.PastIssueResolved))
	})

	DescribeTable("rejecting bad updates",
		func(path, body string, code int) {
			Expect(patch(path, body).Code).To(Equal(code))
		},
		Entry("non-numeric id", "/history/abc/status", `{"status":"resolved"}`, http.StatusBadRequest),
		Entry("unknown status", "/history/1/status", `{"status":"closed"}`, http.StatusBadRequest),
		Entry("unknown issue", "/history/999/status", `{"status":"resolved"}`, http.StatusNotFound),
	)

	It("reports load failures as 500", func() {
		engine = gin.New()
		router.HistoryRouter(engine.Group("/history"), handler.NewHistoryHandler(&mockPastIssues{
			loadFn: func(context.Context) ([]model.PastIssue, error) { return nil, errors.New("redis down") },
		}))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
