package model

type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Rank orders severities for trend comparison. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Value maps a severity onto the 0-100 scale stored in trend series.
func (s Severity) Value() int {
	switch s {
	case SeverityCritical:
		return 90
	case SeverityHigh:
		return 70
	case SeverityLow:
		return 30
	default:
		return 50
	}
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

type TimeHorizon string

const (
	Horizon1Week   TimeHorizon = "1wk"
	Horizon30Days  TimeHorizon = "30d"
	Horizon90Days  TimeHorizon = "90d"
	Horizon1Year   TimeHorizon = "1yr"
	Horizon5Years  TimeHorizon = "5yr"
	Horizon10Years TimeHorizon = "10yr"
)

type Forecast struct {
	OneYear  string `json:"1y"`
	FiveYear string `json:"5y"`
	TenYear  string `json:"10y"`
}

// IssueCard is the primary output of a cycle.
type IssueCard struct {
	ID                 int          `json:"id"`
	Title              string       `json:"title"`
	Summary            string       `json:"summary"`
	Areas              []Area       `json:"areas"`
	CrossArea          bool         `json:"cross_area"`
	ContributingAgents []int        `json:"contributing_agents"`
	Confidence         Confidence   `json:"confidence"`
	Severity           Severity     `json:"severity"`
	TimeHorizon        TimeHorizon  `json:"time_horizon"`
	Forecast           Forecast     `json:"forecast"`
	DataRefs           []string     `json:"data_refs"`
	ActionItem         string       `json:"action_item"`
	ChartSpec          *ChartConfig `json:"chart_spec,omitempty"`
}

type ChartType string

const (
	ChartLine       ChartType = "line"
	ChartBar        ChartType = "bar"
	ChartArea       ChartType = "area"
	ChartComposed   ChartType = "composed"
	ChartTimeSeries ChartType = "time_series"
	ChartHeatmap    ChartType = "heatmap"
	ChartFunnel     ChartType = "funnel"
)

// ChartConfig is a best-effort visualization descriptor derived from cards.
type ChartConfig struct {
	ChartType ChartType        `json:"chart_type"`
	Title     string           `json:"title"`
	Data      []map[string]any `json:"data"`
	Config    ChartAxes        `json:"config"`
}

type ChartAxes struct {
	XKey            string        `json:"xKey"`
	YKeys           []ChartSeries `json:"yKeys"`
	ForecastOverlay bool          `json:"forecast_overlay,omitempty"`
}

type ChartSeries struct {
	Key   string `json:"key"`
	Color string `json:"color"`
	Label string `json:"label"`
}
