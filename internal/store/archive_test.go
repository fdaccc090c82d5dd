package store_test

import (
	"context"
	"database/sql"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/core/db"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/store"
)

var (
	archiveCards = []model.IssueCard{
		{ID: 1, Title: "Response times rising", Severity: model.SeverityHigh, Areas: []model.Area{model.AreaPublicSafety}},
		{ID: 2, Title: "Permit backlog", Severity: model.SeverityMedium, Areas: []model.Area{model.AreaLandUse}},
	}
	archiveAgents = []model.AgentContext{
		{Name: "PS-1 (SODA)", Analysis: "Incidents up 12%", Payload: `{"count":3}`},
		{Name: "PS-2 (News)", Analysis: "Coverage of fires", Payload: "plain text payload"},
		{Name: "PS-3 (Gov)"},
	}
	archiveLogs = []model.LogEntry{
		{Timestamp: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), Source: model.SystemSource, Message: "Cycle started"},
		{Timestamp: time.Date(2025, 6, 1, 9, 0, 5, 0, time.UTC), Source: "PS-1 (SODA)", Message: "Payload received. Queued."},
	}
)

var _ = Describe("BuildArchivedIssues", func() {
	now := time.UnixMilli(1748768400123).UTC()

	It("builds one active record per card with a time-stamped document id", func() {
		records := store.BuildArchivedIssues(archiveCards, archiveAgents, archiveLogs, now)
		Expect(records).To(HaveLen(2))
		Expect(records[0].DocID).To(Equal("issue_1_1748768400123"))
		Expect(records[1].DocID).To(Equal("issue_2_1748768400123"))
		for _, r := range records {
			Expect(r.Status).To(Equal(model.ArchiveActive))
			Expect(r.CreatedAt).To(Equal(now))
			Expect(r.UpdatedAt).To(Equal(now))
		}
	})

	It("parses JSON payloads and keeps other payloads as strings", func() {
		r := store.BuildArchivedIssues(archiveCards[:1], archiveAgents, archiveLogs, now)[0]
		Expect(r.RawData).To(HaveKeyWithValue("PS-1 (SODA)", map[string]any{"count": float64(3)}))
		Expect(r.RawData).To(HaveKeyWithValue("PS-2 (News)", "plain text payload"))
		Expect(r.RawData).NotTo(HaveKey("PS-3 (Gov)"))
		Expect(r.AgentAnalysis).To(HaveLen(2))
	})

	It("excludes system entries from the agent conversation", func() {
		r := store.BuildArchivedIssues(archiveCards[:1], archiveAgents, archiveLogs, now)[0]
		Expect(r.AgentConversation).To(Equal([]string{
			"[2025-06-01T09:00:05Z] PS-1 (SODA): Payload received. Queued.",
		}))
	})

	It("returns nothing for an empty card list", func() {
		Expect(store.BuildArchivedIssues(nil, archiveAgents, archiveLogs, now)).To(BeEmpty())
	})
})

// archiveContract runs the same behavior checks against every archive backend.
func archiveContract(newArchive func() store.IssueArchive) {
	var (
		ctx     context.Context
		archive store.IssueArchive
	)

	BeforeEach(func() {
		ctx = context.Background()
		archive = newArchive()
	})

	It("saves and loads records with their context", func() {
		ids, err := archive.SaveAll(ctx, archiveCards, archiveAgents, archiveLogs)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(HaveLen(2))

		records, err := archive.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].Card.Title).To(Equal("Response times rising"))
		Expect(records[1].Card.Title).To(Equal("Permit backlog"))
		Expect(records[0].AgentAnalysis).To(HaveKeyWithValue("PS-1 (SODA)", "Incidents up 12%"))
		Expect(records[0].AgentConversation).To(HaveLen(1))
		Expect(records[0].Status).To(Equal(model.ArchiveActive))
	})

	It("writes nothing when there are no cards", func() {
		ids, err := archive.SaveAll(ctx, nil, archiveAgents, archiveLogs)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(BeEmpty())

		records, err := archive.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("updates a record's status", func() {
		ids, err := archive.SaveAll(ctx, archiveCards[:1], archiveAgents, archiveLogs)
		Expect(err).NotTo(HaveOccurred())

		Expect(archive.UpdateStatus(ctx, ids[0], model.ArchiveResolved)).To(Succeed())

		records, _ := archive.LoadAll(ctx)
		Expect(records[0].Status).To(Equal(model.ArchiveResolved))
	})

	It("reports unknown documents as not found", func() {
		Expect(archive.UpdateStatus(ctx, "issue_9_1", model.ArchiveResolved)).To(MatchError(store.ErrNotFound))
		Expect(archive.Delete(ctx, "issue_9_1")).To(MatchError(store.ErrNotFound))
	})

	It("deletes one record and clears the rest", func() {
		ids, err := archive.SaveAll(ctx, archiveCards, archiveAgents, archiveLogs)
		Expect(err).NotTo(HaveOccurred())

		Expect(archive.Delete(ctx, ids[0])).To(Succeed())
		records, _ := archive.LoadAll(ctx)
		Expect(records).To(HaveLen(1))

		Expect(archive.Clear(ctx)).To(Succeed())
		records, _ = archive.LoadAll(ctx)
		Expect(records).To(BeEmpty())
	})
}

var _ = Describe("MemoryArchive", func() {
	archiveContract(func() store.IssueArchive { return store.NewMemoryArchive() })
})

var _ = Describe("SQLiteArchive", func() {
	var conn *sql.DB

	BeforeEach(func() {
		var err error
		conn, err = db.OpenSQLite(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())

		archive := store.NewSQLiteArchive(conn)
		Expect(archive.Migrate(context.Background())).To(Succeed())
	})

	AfterEach(func() {
		Expect(conn.Close()).To(Succeed())
	})

	archiveContract(func() store.IssueArchive { return store.NewSQLiteArchive(conn) })
})
