package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/internal/http/dto"
	"lighthouse.app/cityintel/internal/http/handler"
	"lighthouse.app/cityintel/internal/http/router"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/store"
)

var _ = Describe("IssueHandler", func() {
	var (
		archive store.IssueArchive
		counter *countRecorder
		engine  *gin.Engine
		docIDs  []string
	)

	BeforeEach(func() {
		archive = store.NewMemoryArchive()
		counter = &countRecorder{}

		var err error
		docIDs, err = archive.SaveAll(context.Background(),
			[]model.IssueCard{
				{ID: 1, Title: "Transit delays near Civic Center", Severity: model.SeverityHigh},
				{ID: 2, Title: "Encampment reports rising", Severity: model.SeverityMedium},
			},
			[]model.AgentContext{{Name: "IU-1 (Transit)", Analysis: "Delays up.", Payload: `{"rows":3}`}},
			nil,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(docIDs).To(HaveLen(2))

		engine = gin.New()
		router.IssueRouter(engine.Group("/issues"), handler.NewIssueHandler(archive, counter))
	})

	list := func(path string) dto.ArchivedIssueListResponse {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp dto.ArchivedIssueListResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	It("lists archived issues without raw payloads by default", func() {
		resp := list("/issues")
		Expect(resp.Count).To(Equal(2))
		for _, issue := range resp.Issues {
			Expect(issue.RawData).To(BeEmpty())
			Expect(issue.AgentAnalysis).To(HaveKeyWithValue("IU-1 (Transit)", "Delays up."))
		}
	})

	It("includes raw payloads on request", func() {
		resp := list("/issues?raw=true")
		Expect(resp.Issues[0].RawData).To(HaveKey("IU-1 (Transit)"))
	})

	DescribeTable("updating status",
		func(docID func() string, body string, code int) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/issues/"+docID()+"/status", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			engine.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(code))
		},
		Entry("valid status", func() string { return docIDs[0] }, `{"status":"resolved"}`, http.StatusOK),
		Entry("unknown status", func() string { return docIDs[0] }, `{"status":"closed"}`, http.StatusBadRequest),
		Entry("missing status", func() string { return docIDs[0] }, `{}`, http.StatusBadRequest),
		Entry("unknown issue", func() string { return "issue_9_1" }, `{"status":"resolved"}`, http.StatusNotFound),
	)

	It("persists the updated status", func() {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/issues/"+docIDs[1]+"/status", strings.NewReader(`{"status":"monitoring"}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))

		records, err := archive.LoadAll(context.Background())
		Expect(err).NotTo(HaveOccurred())
		for _, r := range records {
			if r.DocID == docIDs[1] {
				Expect(r.Status).To(Equal(model.ArchiveMonitoring))
			}
		}
	})

	It("deletes an issue and refreshes the archive count", func() {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/issues/"+docIDs[0], nil))

		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(counter.count).To(Equal(1))
		Expect(list("/issues").Count).To(Equal(1))
	})

	It("returns 404 when deleting an unknown issue", func() {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/issues/issue_9_1", nil))

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(counter.count).To(Equal(0))
	})
})
