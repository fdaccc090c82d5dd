package model

import (
	"encoding/json"
	"strings"
)

// AreaReport is the consolidated output for one area: the raw structured JSON plus its parsed form.
type AreaReport struct {
	Area    Area          `json:"area"`
	Raw     string        `json:"raw"`
	Content AreaReportDoc `json:"content"`
	Failed  bool          `json:"failed,omitempty"`
}

type AreaReportDoc struct {
	Summary    string   `json:"summary"`
	Issues     []string `json:"issues"`
	Signals    []string `json:"signals,omitempty"`
	Conflicts  []string `json:"conflicts,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
}

// ConsolidationFailedReport is substituted when an area's synthesis fails.
func ConsolidationFailedReport(area Area) AreaReport {
	doc := AreaReportDoc{Summary: "Consolidation failed", Issues: []string{}}
	raw, _ := json.Marshal(struct {
		Summary string   `json:"summary"`
		Issues  []string `json:"issues"`
	}{doc.Summary, doc.Issues})
	return AreaReport{Area: area, Raw: string(raw), Content: doc, Failed: true}
}

// AreaSet decodes either a JSON array of areas or a joined string such as "PS+IU".
type AreaSet []Area

func (s *AreaSet) UnmarshalJSON(data []byte) error {
	var list []Area
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}

	set := AreaSet{}
	for _, part := range strings.FieldsFunc(joined, func(r rune) bool { return r == '+' || r == ',' || r == '/' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if area, ok := AreaFromCode(strings.ToUpper(part)); ok {
			set = append(set, area)
			continue
		}
		set = append(set, Area(part))
	}
	*s = set
	return nil
}

type CrossAreaIssue struct {
	Involves AreaSet `json:"involves"`
	Title    string  `json:"title"`
	Impact   string  `json:"impact"`
}

// Discussion is the roundtable outcome across all areas.
type Discussion struct {
	Thoughts           string           `json:"thoughts"`
	SingleAreaIssues   []string         `json:"single_area_issues"`
	CrossAreaIssues    []CrossAreaIssue `json:"cross_area_issues"`
	AllAreaConvergence []string         `json:"all_area_convergence,omitempty"`
}

// Trace returns the human-readable discussion trace.
func (d Discussion) Trace() string {
	if d.Thoughts == "" {
		return "Roundtable completed."
	}
	return d.Thoughts
}

// DiscussionFailed is substituted when the roundtable synthesis fails.
func DiscussionFailed() Discussion {
	return Discussion{
		Thoughts:         "Discussion Failed",
		SingleAreaIssues: []string{},
		CrossAreaIssues:  []CrossAreaIssue{},
	}
}
