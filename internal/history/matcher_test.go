package history_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/internal/history"
	"lighthouse.app/cityintel/internal/model"
)

var _ = Describe("Matchers", func() {
	issues := []model.PastIssue{
		{ID: 7, Title: "Emergency Response Delays"},
		{ID: 8, Title: "Housing permit backlog grows"},
	}

	DescribeTable("PrefixMatcher",
		func(title string, wantID int, wantOK bool) {
			id, ok := history.NewPrefixMatcher().Match(title, issues)
			Expect(ok).To(Equal(wantOK))
			if wantOK {
				Expect(id).To(Equal(wantID))
			}
		},
		Entry("fresh title extends the past title", "Emergency response delays in the Mission", 7, true),
		Entry("past title prefix found inside fresh title", "Citywide housing permit backlog grows sharply", 8, true),
		Entry("fresh prefix found inside past title", "Housing permit", 8, true),
		Entry("unrelated title", "Sewer overflow risk", 0, false),
		Entry("empty title never matches", "", 0, false),
	)

	DescribeTable("JaccardMatcher",
		func(title string, wantID int, wantOK bool) {
			id, ok := history.NewJaccardMatcher().Match(title, issues)
			Expect(ok).To(Equal(wantOK))
			if wantOK {
				Expect(id).To(Equal(wantID))
			}
		},
		Entry("reordered keywords", "Delays in emergency response", 7, true),
		Entry("partial overlap below threshold", "Emergency sewer overflow risk", 0, false),
		Entry("stop words only", "the and of", 0, false),
	)

	It("scores title similarity symmetrically", func() {
		a, b := "Permit backlog in housing", "housing permit backlog"
		Expect(history.TitleSimilarity(a, b)).To(Equal(history.TitleSimilarity(b, a)))
		Expect(history.TitleSimilarity(a, b)).To(BeNumerically("==", 1.0))
	})
})

var _ = Describe("ClassifyCards", func() {
	issues := []model.PastIssue{
		{ID: 1, Title: "Transit service cuts", Severity: model.SeverityMedium},
	}

	DescribeTable("compares fresh severity with the logged severity",
		func(title string, severity model.Severity, want model.TrendStatus) {
			trends := history.ClassifyCards([]model.IssueCard{{ID: 3, Title: title, Severity: severity}}, issues, history.NewPrefixMatcher())
			Expect(trends).To(HaveLen(1))
			Expect(trends[0].CardID).To(Equal(3))
			Expect(trends[0].Status).To(Equal(want))
			if want == model.TrendNew {
				Expect(trends[0].PastIssueID).To(BeNil())
			} else {
				Expect(*trends[0].PastIssueID).To(Equal(1))
			}
		},
		Entry("higher severity is worsening", "Transit service cuts expand", model.SeverityCritical, model.TrendWorsening),
		Entry("lower severity is improving", "Transit service cuts ease", model.SeverityLow, model.TrendImproving),
		Entry("equal severity is stagnant", "Transit service cuts", model.SeverityMedium, model.TrendStagnant),
		Entry("unknown severity counts as medium", "Transit service cuts", model.Severity("Unclear"), model.TrendStagnant),
		Entry("unmatched card is new", "Sewer overflow risk", model.SeverityHigh, model.TrendNew),
	)
})
