package model

import "fmt"

// Area is one of the three fixed domains partitioning the city.
type Area string

const (
	AreaPublicSafety   Area = "Public Safety"
	AreaInfrastructure Area = "Infrastructure & Utilities"
	AreaLandUse        Area = "Land Use & Zoning"
)

// Areas lists every area in pipeline order.
var Areas = []Area{AreaPublicSafety, AreaInfrastructure, AreaLandUse}

// Code returns the short area code used in agent names, catalogs and cache keys.
func (a Area) Code() string {
	switch a {
	case AreaPublicSafety:
		return "PS"
	case AreaInfrastructure:
		return "IU"
	case AreaLandUse:
		return "LZ"
	default:
		return ""
	}
}

func (a Area) IsValid() bool {
	return a.Code() != ""
}

// AreaFromCode resolves a short area code (PS, IU, LZ).
func AreaFromCode(code string) (Area, bool) {
	for _, a := range Areas {
		if a.Code() == code {
			return a, true
		}
	}
	return "", false
}

type SourceType string

const (
	SourceStructuredData SourceType = "data"
	SourceNews           SourceType = "news"
	SourceGovRecord      SourceType = "gov"
)

// SourceTypes lists source types in the order agents are numbered within an area.
var SourceTypes = []SourceType{SourceStructuredData, SourceNews, SourceGovRecord}

func (s SourceType) Label() string {
	switch s {
	case SourceStructuredData:
		return "SODA"
	case SourceNews:
		return "News"
	case SourceGovRecord:
		return "Gov"
	default:
		return string(s)
	}
}

type AgentStatus string

const (
	AgentStatusIdle      AgentStatus = "idle"
	AgentStatusFetching  AgentStatus = "fetching"
	AgentStatusAnalyzing AgentStatus = "analyzing"
	AgentStatusDone      AgentStatus = "done"
	AgentStatusError     AgentStatus = "error"
)

// Settled reports whether the agent finished its current step, successfully or not.
func (s AgentStatus) Settled() bool {
	return s == AgentStatusDone || s == AgentStatusError
}

type Agent struct {
	ID          int         `json:"id"`
	Area        Area        `json:"area"`
	Source      SourceType  `json:"source"`
	Name        string      `json:"name"`
	Status      AgentStatus `json:"status"`
	Payload     string      `json:"payload,omitempty"`
	Analysis    string      `json:"analysis,omitempty"`
	LastMessage string      `json:"last_message,omitempty"`
}

// DefaultAgents builds the nine fixed agents: ids 1-3 Public Safety, 4-6 Infrastructure,
// 7-9 Land Use, each area ordered data, news, gov.
func DefaultAgents() []Agent {
	agents := make([]Agent, 0, len(Areas)*len(SourceTypes))
	id := 1
	for _, area := range Areas {
		for _, source := range SourceTypes {
			agents = append(agents, Agent{
				ID:     id,
				Area:   area,
				Source: source,
				Name:   fmt.Sprintf("%s-%d (%s)", area.Code(), id, source.Label()),
				Status: AgentStatusIdle,
			})
			id++
		}
	}
	return agents
}
