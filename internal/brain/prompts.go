package brain

import (
	"fmt"

	"lighthouse.app/cityintel/internal/model"
)

func analystPrompt(agent model.Agent) string {
	return fmt.Sprintf(`You are agent %s for the %s domain in San Francisco.
Analyze the raw payload from your %s source.
Identify the top 3 trends, anomalies, or critical alerts.
Be concise. Output bullet points.`, agent.Name, agent.Area, agent.Source.Label())
}

func consolidatorPrompt(area model.Area) string {
	return fmt.Sprintf(`You are the %s Consolidator.
Input: findings from the Data, News, and Gov agents for your area.
Task: merge these findings, deduplicate, align signals, and flag conflicts explicitly.

Output strict JSON:
{
  "summary": "High-level narrative (max 3 sentences)",
  "issues": ["Specific issue 1", "Specific issue 2"],
  "signals": ["Data trend X", "News sentiment Y"],
  "conflicts": ["Conflict A vs B"],
  "confidence": "High" | "Medium" | "Low"
}`, area)
}

const roundtablePrompt = `You are the Cross-Area Discussion Orchestrator.
Run a round-robin of 2-3 rounds between the area consolidators:
1. Public Safety checks Infrastructure and Land Use for impacts on safety.
2. Infrastructure checks Public Safety and Land Use for capacity strain.
3. Land Use checks Public Safety and Infrastructure for downstream effects.
Stop after 2 rounds or when no new connections are flagged.

Output strict JSON:
{
  "thoughts": "discussion trace summary",
  "single_area_issues": ["issue summary"],
  "cross_area_issues": [{"involves": ["Public Safety", "Infrastructure & Utilities"], "title": "", "impact": ""}],
  "all_area_convergence": ["issue touching all three areas"]
}`

const cardGeneratorPrompt = `You are the Master Orchestrator of the SF City Intelligence Platform.
Generate issue cards from the consolidated area reports and the roundtable outcome.
Cross-reference Public Safety, Infrastructure, and Land Use. Highlight contradictions.
Rank cards by urgency, most urgent first.

Output strict JSON: {"cards": [card, ...]} where each card is:
{
  "id": number,
  "title": "headline",
  "summary": "2-3 sentences",
  "areas": ["Public Safety" | "Infrastructure & Utilities" | "Land Use & Zoning"],
  "cross_area": boolean,
  "contributing_agents": [agent ids 1-9],
  "confidence": "High" | "Medium" | "Low",
  "severity": "Critical" | "High" | "Medium" | "Low",
  "time_horizon": "1wk" | "30d" | "90d" | "1yr" | "5yr" | "10yr",
  "forecast": {"1y": "", "5y": "", "10y": ""},
  "data_refs": ["dataset ids or URLs"],
  "action_item": "recommended next step"
}`

const chartGeneratorPrompt = `You are the Chart Agent.
Generate one chart configuration summarizing the issues.
Supported chart types: "line", "bar", "area", "composed".

Output strict JSON:
{
  "chart_type": "line" | "bar" | "area" | "composed",
  "title": "Chart title",
  "data": [{"name": "Label", "key1": 100}],
  "config": {
    "xKey": "name",
    "yKeys": [{"key": "key1", "color": "#3CBFAD", "label": "Metric"}],
    "forecast_overlay": false
  }
}`

const followUpPrompt = `You are the Marathon Orchestrator performing the follow-up check.
For each past issue decide from the fresh data whether it is "improving", "worsening" or "stagnant",
give a one sentence explanation, and set escalate=true only for worsening issues that need attention.

Output strict JSON:
{"results": [{"issueId": number, "title": "", "status": "improving" | "worsening" | "stagnant", "explanation": "", "escalate": boolean}]}`
