package pipeline

import (
	"maps"
	"slices"
	"time"

	"lighthouse.app/cityintel/internal/model"
)

// MaxLogEntries bounds the running log kept in snapshots.
const MaxLogEntries = 200

// Snapshot is a read-only copy of pipeline state. Observers never see live slices or maps.
type Snapshot struct {
	CycleID      int64                           `json:"cycle_id,string"`
	Stage        model.Stage                     `json:"stage"`
	StageName    string                          `json:"stage_name"`
	Running      bool                            `json:"running"`
	Agents       []model.Agent                   `json:"agents"`
	Reports      map[model.Area]model.AreaReport `json:"reports"`
	Discussion   *model.Discussion               `json:"discussion,omitempty"`
	Cards        []model.IssueCard               `json:"cards"`
	Chart        *model.ChartConfig              `json:"chart,omitempty"`
	FollowUp     []model.FollowUpResult          `json:"follow_up"`
	Escalations  int                             `json:"escalations"`
	Trends       []model.CardTrend               `json:"trends"`
	ArchiveCount int                             `json:"archive_count"`
	Logs         []model.LogEntry                `json:"logs"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

// state is the orchestrator-owned mutable pipeline state.
type state struct {
	cycleID      int64
	stage        model.Stage
	running      bool
	agents       []model.Agent
	reports      map[model.Area]model.AreaReport
	discussion   *model.Discussion
	cards        []model.IssueCard
	chart        *model.ChartConfig
	followUp     []model.FollowUpResult
	escalations  int
	trends       []model.CardTrend
	archiveCount int
	logs         []model.LogEntry
	updatedAt    time.Time
}

// reset overwrites everything a cycle produces. Logs and the archive count carry over.
func (s *state) reset(cycleID int64) {
	s.cycleID = cycleID
	s.agents = model.DefaultAgents()
	s.reports = map[model.Area]model.AreaReport{}
	s.discussion = nil
	s.cards = nil
	s.chart = nil
	s.followUp = nil
	s.escalations = 0
	s.trends = nil
}

func (s *state) appendLog(e model.LogEntry) {
	s.logs = append(s.logs, e)
	if over := len(s.logs) - MaxLogEntries; over > 0 {
		s.logs = slices.Clone(s.logs[over:])
	}
}

func (s *state) agent(id int) *model.Agent {
	for i := range s.agents {
		if s.agents[i].ID == id {
			return &s.agents[i]
		}
	}
	return nil
}

func (s *state) snapshot() Snapshot {
	snap := Snapshot{
		CycleID:      s.cycleID,
		Stage:        s.stage,
		StageName:    s.stage.String(),
		Running:      s.running,
		Agents:       slices.Clone(s.agents),
		Reports:      maps.Clone(s.reports),
		Cards:        cloneCards(s.cards),
		FollowUp:     slices.Clone(s.followUp),
		Escalations:  s.escalations,
		Trends:       slices.Clone(s.trends),
		ArchiveCount: s.archiveCount,
		Logs:         slices.Clone(s.logs),
		UpdatedAt:    s.updatedAt,
	}
	if snap.Reports == nil {
		snap.Reports = map[model.Area]model.AreaReport{}
	}
	if s.discussion != nil {
		d := *s.discussion
		snap.Discussion = &d
	}
	if s.chart != nil {
		c := *s.chart
		snap.Chart = &c
	}
	return snap
}

func cloneCards(cards []model.IssueCard) []model.IssueCard {
	if cards == nil {
		return nil
	}
	out := make([]model.IssueCard, len(cards))
	for i, c := range cards {
		c.Areas = slices.Clone(c.Areas)
		c.ContributingAgents = slices.Clone(c.ContributingAgents)
		c.DataRefs = slices.Clone(c.DataRefs)
		out[i] = c
	}
	return out
}
